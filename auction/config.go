package auction

import (
	"fmt"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"

	"github.com/coordination-labs/auction-sdk/metrics"
	"github.com/coordination-labs/auction-sdk/types"
)

// WindowConfig bounds one auction type's windows.
type WindowConfig struct {
	Duration        time.Duration
	MaxTransactions uint32
	TotalGasLimit   uint64
}

// DefaultCoordinatorShare is the coordinator's fraction of auction revenue.
var DefaultCoordinatorShare = math.LegacyNewDecWithPrec(25, 2)

// ManagerConfig carries everything a Manager needs. Construct it, then call
// ValidateBasic before use.
type ManagerConfig struct {
	Logger log.Logger

	// Windows maps every auction type to its window bounds. Types without an
	// entry get Defaults.
	Windows map[types.AuctionType]WindowConfig

	// CoordinatorShare of each window's revenue; the remainder goes to
	// partner chains so no unit is lost to rounding.
	CoordinatorShare math.LegacyDec

	// PendingTTL expires transactions that were never sealed. Zero disables
	// the sweep.
	PendingTTL time.Duration

	// TickInterval drives the window timer. Deadlines are checked against an
	// ordered index, so a tick is cheap.
	TickInterval time.Duration

	// ResultRetention bounds how many delivered windows stay queryable.
	// Older windows, their results, and their winner snapshots are pruned
	// after delivery; lookups for pruned windows fail ErrWindowNotFound.
	// Zero retains everything.
	ResultRetention uint64

	Metrics *metrics.Metrics
}

// DefaultWindowConfig is used for auction types without an explicit entry.
// The emergency type overrides the duration with MicroWindowDuration.
var DefaultWindowConfig = WindowConfig{
	Duration:        2 * time.Second,
	MaxTransactions: 512,
	TotalGasLimit:   30_000_000,
}

// MicroWindowDuration bounds an emergency micro-window. The seal fires on
// admission, the duration only backstops an idle lane.
const MicroWindowDuration = 50 * time.Millisecond

// DefaultManagerConfig returns a config with the default policy bounds.
func DefaultManagerConfig(logger log.Logger) ManagerConfig {
	windows := make(map[types.AuctionType]WindowConfig, len(types.AuctionTypes))
	for _, t := range types.AuctionTypes {
		cfg := DefaultWindowConfig
		if t == types.EmergencyPriority {
			cfg.Duration = MicroWindowDuration
		}
		windows[t] = cfg
	}

	return ManagerConfig{
		Logger:           logger,
		Windows:          windows,
		CoordinatorShare: DefaultCoordinatorShare,
		TickInterval:     25 * time.Millisecond,
		ResultRetention:  4096,
		Metrics:          metrics.Nop(),
	}
}

// ValidateBasic validates the manager configuration.
func (c *ManagerConfig) ValidateBasic() error {
	if c.Logger == nil {
		return fmt.Errorf("logger cannot be nil")
	}

	if c.CoordinatorShare.IsNil() || c.CoordinatorShare.IsNegative() || c.CoordinatorShare.GT(math.LegacyOneDec()) {
		return fmt.Errorf("coordinator share must be between 0 and 1")
	}

	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}

	for t, w := range c.Windows {
		if !t.Valid() {
			return fmt.Errorf("window config for unknown auction type %d", t)
		}
		if w.Duration <= 0 {
			return fmt.Errorf("%s window duration must be positive", t)
		}
		if w.MaxTransactions == 0 {
			return fmt.Errorf("%s window must allow at least one transaction", t)
		}
		if w.TotalGasLimit == 0 {
			return fmt.Errorf("%s window gas limit must be positive", t)
		}
	}

	return nil
}

// windowConfig resolves the bounds for an auction type.
func (c *ManagerConfig) windowConfig(t types.AuctionType) WindowConfig {
	if cfg, ok := c.Windows[t]; ok {
		return cfg
	}
	if t == types.EmergencyPriority {
		cfg := DefaultWindowConfig
		cfg.Duration = MicroWindowDuration
		return cfg
	}
	return DefaultWindowConfig
}
