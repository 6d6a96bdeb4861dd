// Package coordinator enforces per-partner-chain admission policy: only
// registered, healthy chains within their rate limit and above their minimum
// bid reach a lane's commitment tree.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	"golang.org/x/time/rate"

	"github.com/coordination-labs/auction-sdk/auction"
	"github.com/coordination-labs/auction-sdk/metrics"
	"github.com/coordination-labs/auction-sdk/types"
)

// HealthState tracks a partner chain's standing. Degraded chains still admit
// transactions; unhealthy chains are refused.
type HealthState uint8

const (
	Healthy HealthState = iota
	Degraded
	Unhealthy
)

func (h HealthState) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return fmt.Sprintf("health_state(%d)", uint8(h))
	}
}

// MarshalJSON encodes the state as its string form.
func (h HealthState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

// UnmarshalJSON decodes the string form.
func (h *HealthState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHealthState(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHealthState parses the string form produced by String.
func ParseHealthState(s string) (HealthState, error) {
	switch s {
	case "healthy":
		return Healthy, nil
	case "degraded":
		return Degraded, nil
	case "unhealthy":
		return Unhealthy, nil
	default:
		return 0, fmt.Errorf("unknown health state %q", s)
	}
}

// ChainPolicy is the admission policy the partner-chain registry supplies at
// onboarding.
type ChainPolicy struct {
	// RatePerSecond caps sustained submissions; Burst caps the bucket.
	RatePerSecond float64
	Burst         int

	// MinimumBid refuses dust bids outright. Relaxed (testnet) deployments
	// configure this lower.
	MinimumBid uint64
}

// DefaultChainPolicy is applied when the registry supplies no overrides.
var DefaultChainPolicy = ChainPolicy{
	RatePerSecond: 100,
	Burst:         200,
	MinimumBid:    1,
}

// PartnerChainRecord is the coordinator's bookkeeping for one chain.
type PartnerChainRecord struct {
	ChainID        uint64      `json:"chain_id"`
	SubmittedCount uint64      `json:"submitted_count"`
	AdmittedCount  uint64      `json:"admitted_count"`
	TotalBidAmount uint64      `json:"total_bid_amount"`
	LastSeen       time.Time   `json:"last_seen"`
	HealthState    HealthState `json:"health_state"`
}

type chainEntry struct {
	record  PartnerChainRecord
	policy  ChainPolicy
	limiter *rate.Limiter
}

// Coordinator owns the chain registry and fronts lane admission.
type Coordinator struct {
	logger  log.Logger
	manager *auction.Manager
	metrics *metrics.Metrics

	mu     sync.Mutex
	chains map[uint64]*chainEntry
}

// New builds a coordinator over the given window manager.
func New(logger log.Logger, manager *auction.Manager, mets *metrics.Metrics) *Coordinator {
	if mets == nil {
		mets = metrics.Nop()
	}
	return &Coordinator{
		logger:  logger.With("module", "coordinator"),
		manager: manager,
		metrics: mets,
		chains:  make(map[uint64]*chainEntry),
	}
}

// RegisterChain onboards a partner chain with its admission policy.
// Re-registering replaces the policy and resets the rate limiter but keeps
// the counters.
func (c *Coordinator) RegisterChain(chainID uint64, policy ChainPolicy) {
	if policy.RatePerSecond <= 0 {
		policy.RatePerSecond = DefaultChainPolicy.RatePerSecond
	}
	if policy.Burst <= 0 {
		policy.Burst = DefaultChainPolicy.Burst
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.chains[chainID]
	if !ok {
		entry = &chainEntry{record: PartnerChainRecord{ChainID: chainID, HealthState: Healthy}}
		c.chains[chainID] = entry
	}
	entry.policy = policy
	entry.limiter = rate.NewLimiter(rate.Limit(policy.RatePerSecond), policy.Burst)

	c.logger.Info("registered partner chain", "chain_id", chainID, "rate", policy.RatePerSecond, "min_bid", policy.MinimumBid)
}

// UpdateHealth sets a chain's health state.
func (c *Coordinator) UpdateHealth(chainID uint64, state HealthState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.chains[chainID]
	if !ok {
		return types.ErrChainUnknown.Wrapf("chain %d", chainID)
	}
	entry.record.HealthState = state
	return nil
}

// Chain returns the bookkeeping record for a chain.
func (c *Coordinator) Chain(chainID uint64) (PartnerChainRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.chains[chainID]
	if !ok {
		return PartnerChainRecord{}, types.ErrChainUnknown.Wrapf("chain %d", chainID)
	}
	return entry.record, nil
}

// Admit validates a transaction and runs it through the chain's admission
// policy before inserting it into its lane. Refusals are synchronous and
// never mutate any tree: ErrChainUnknown for unregistered chains,
// ErrChainUnhealthy while health refuses admission, ErrRateLimited when the
// token bucket is empty, ErrBidTooLow under the chain's minimum. On success
// the new lane root is returned.
func (c *Coordinator) Admit(ctx context.Context, tx *types.BidTransaction) ([32]byte, error) {
	if err := ctx.Err(); err != nil {
		return [32]byte{}, err
	}

	if err := tx.Validate(); err != nil {
		c.reject("validation")
		return [32]byte{}, err
	}

	c.mu.Lock()
	entry, ok := c.chains[tx.ChainID]
	if !ok {
		c.mu.Unlock()
		c.reject("chain_unknown")
		return [32]byte{}, types.ErrChainUnknown.Wrapf("chain %d", tx.ChainID)
	}

	entry.record.SubmittedCount++
	entry.record.LastSeen = time.Now()
	c.metrics.SubmissionsTotal.WithLabelValues(fmt.Sprintf("%d", tx.ChainID)).Inc()

	if entry.record.HealthState == Unhealthy {
		c.mu.Unlock()
		c.reject("chain_unhealthy")
		return [32]byte{}, types.ErrChainUnhealthy.Wrapf("chain %d", tx.ChainID)
	}

	if !entry.limiter.Allow() {
		c.mu.Unlock()
		c.reject("rate_limited")
		return [32]byte{}, types.ErrRateLimited.Wrapf("chain %d", tx.ChainID)
	}

	if tx.BidAmount < entry.policy.MinimumBid {
		c.mu.Unlock()
		c.reject("bid_too_low")
		return [32]byte{}, types.ErrBidTooLow.Wrapf("bid %d below minimum %d", tx.BidAmount, entry.policy.MinimumBid)
	}
	c.mu.Unlock()

	root, err := c.manager.Submit(tx)
	if err != nil {
		c.reject("structural")
		return [32]byte{}, err
	}

	c.mu.Lock()
	if entry, ok := c.chains[tx.ChainID]; ok {
		entry.record.AdmittedCount++
		entry.record.TotalBidAmount += tx.BidAmount
	}
	c.mu.Unlock()

	return root, nil
}

func (c *Coordinator) reject(reason string) {
	c.metrics.RejectionsTotal.WithLabelValues(reason).Inc()
}
