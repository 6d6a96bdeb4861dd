// Package config loads coordinator configuration from file, environment, and
// flags via viper.
package config

import (
	"strings"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/spf13/viper"

	"github.com/coordination-labs/auction-sdk/auction"
	"github.com/coordination-labs/auction-sdk/coordinator"
	"github.com/coordination-labs/auction-sdk/types"
)

// Config is the full runtime configuration.
type Config struct {
	ListenAddr  string
	MetricsAddr string

	CoordinatorShare math.LegacyDec
	PendingTTL       time.Duration
	TickInterval     time.Duration
	ResultRetention  uint64

	Windows map[types.AuctionType]auction.WindowConfig

	ChainPolicy coordinator.ChainPolicy

	// Relaxed is the testnet mode: lower minimum bid, longer windows.
	Relaxed bool
}

// SetDefaults registers every key with its default on the viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8480")
	v.SetDefault("metrics_addr", ":9480")

	v.SetDefault("revenue.coordinator_share", "0.25")
	v.SetDefault("pending_ttl", "5m")
	v.SetDefault("tick_interval", "25ms")
	v.SetDefault("result_retention", 4096)

	for _, t := range types.AuctionTypes {
		prefix := "window." + t.String() + "."
		d := auction.DefaultWindowConfig
		if t == types.EmergencyPriority {
			d.Duration = auction.MicroWindowDuration
		}
		v.SetDefault(prefix+"duration", d.Duration.String())
		v.SetDefault(prefix+"max_transactions", d.MaxTransactions)
		v.SetDefault(prefix+"total_gas_limit", d.TotalGasLimit)
	}

	v.SetDefault("chain.rate_per_second", coordinator.DefaultChainPolicy.RatePerSecond)
	v.SetDefault("chain.burst", coordinator.DefaultChainPolicy.Burst)
	v.SetDefault("chain.minimum_bid", coordinator.DefaultChainPolicy.MinimumBid)

	v.SetDefault("testnet.relaxed", false)
}

// Load reads the configuration. The optional path points at a config file;
// environment variables with the AUCTIOND_ prefix override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("AUCTIOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return FromViper(v)
}

// FromViper maps a viper instance onto a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	share, err := math.LegacyNewDecFromStr(v.GetString("revenue.coordinator_share"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddr:       v.GetString("listen_addr"),
		MetricsAddr:      v.GetString("metrics_addr"),
		CoordinatorShare: share,
		PendingTTL:       v.GetDuration("pending_ttl"),
		TickInterval:     v.GetDuration("tick_interval"),
		ResultRetention:  v.GetUint64("result_retention"),
		Windows:          make(map[types.AuctionType]auction.WindowConfig, len(types.AuctionTypes)),
		ChainPolicy: coordinator.ChainPolicy{
			RatePerSecond: v.GetFloat64("chain.rate_per_second"),
			Burst:         v.GetInt("chain.burst"),
			MinimumBid:    v.GetUint64("chain.minimum_bid"),
		},
		Relaxed: v.GetBool("testnet.relaxed"),
	}

	for _, t := range types.AuctionTypes {
		prefix := "window." + t.String() + "."
		cfg.Windows[t] = auction.WindowConfig{
			Duration:        v.GetDuration(prefix + "duration"),
			MaxTransactions: v.GetUint32(prefix + "max_transactions"),
			TotalGasLimit:   v.GetUint64(prefix + "total_gas_limit"),
		}
	}

	if cfg.Relaxed {
		cfg.applyRelaxed()
	}

	return cfg, nil
}

// applyRelaxed loosens bounds for testnets: minimum bid drops to zero and
// every window runs four times longer.
func (c *Config) applyRelaxed() {
	c.ChainPolicy.MinimumBid = 0
	for t, w := range c.Windows {
		w.Duration *= 4
		c.Windows[t] = w
	}
}

// ManagerConfig builds the window manager configuration.
func (c *Config) ManagerConfig(logger log.Logger) auction.ManagerConfig {
	mc := auction.DefaultManagerConfig(logger)
	mc.Windows = c.Windows
	mc.CoordinatorShare = c.CoordinatorShare
	mc.PendingTTL = c.PendingTTL
	mc.TickInterval = c.TickInterval
	mc.ResultRetention = c.ResultRetention
	return mc
}
