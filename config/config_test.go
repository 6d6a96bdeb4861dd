package config_test

import (
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/coordination-labs/auction-sdk/auction"
	"github.com/coordination-labs/auction-sdk/config"
	"github.com/coordination-labs/auction-sdk/types"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	require.Equal(t, ":8480", cfg.ListenAddr)
	require.Equal(t, ":9480", cfg.MetricsAddr)
	require.True(t, cfg.CoordinatorShare.Equal(math.LegacyNewDecWithPrec(25, 2)))
	require.Equal(t, 5*time.Minute, cfg.PendingTTL)
	require.Equal(t, 25*time.Millisecond, cfg.TickInterval)
	require.Equal(t, uint64(4096), cfg.ResultRetention)
	require.False(t, cfg.Relaxed)

	require.Len(t, cfg.Windows, len(types.AuctionTypes))
	require.Equal(t, auction.DefaultWindowConfig.Duration, cfg.Windows[types.StandardExecution].Duration)
	require.Equal(t, auction.MicroWindowDuration, cfg.Windows[types.EmergencyPriority].Duration)

	require.Equal(t, float64(100), cfg.ChainPolicy.RatePerSecond)
	require.Equal(t, uint64(1), cfg.ChainPolicy.MinimumBid)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("listen_addr", ":9999")
	v.Set("revenue.coordinator_share", "0.10")
	v.Set("window.standard_execution.duration", "500ms")
	v.Set("chain.minimum_bid", 50)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	require.Equal(t, ":9999", cfg.ListenAddr)
	require.True(t, cfg.CoordinatorShare.Equal(math.LegacyNewDecWithPrec(10, 2)))
	require.Equal(t, 500*time.Millisecond, cfg.Windows[types.StandardExecution].Duration)
	require.Equal(t, uint64(50), cfg.ChainPolicy.MinimumBid)
}

func TestMalformedShare(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("revenue.coordinator_share", "not-a-number")

	_, err := config.FromViper(v)
	require.Error(t, err)
}

func TestRelaxedMode(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("testnet.relaxed", true)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	require.Zero(t, cfg.ChainPolicy.MinimumBid)
	require.Equal(t, 4*auction.DefaultWindowConfig.Duration, cfg.Windows[types.StandardExecution].Duration)
}

func TestManagerConfig(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("pending_ttl", "90s")
	v.Set("result_retention", 128)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	mc := cfg.ManagerConfig(log.NewNopLogger())
	require.NoError(t, mc.ValidateBasic())
	require.Equal(t, 90*time.Second, mc.PendingTTL)
	require.Equal(t, uint64(128), mc.ResultRetention)
	require.Equal(t, cfg.Windows, mc.Windows)
}
