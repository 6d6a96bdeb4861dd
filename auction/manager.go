// Package auction owns the window lifecycle: per-type lanes over ordered
// commitment trees, a deadline-driven timer, the per-type policy table, and
// the sealing and revenue allocation that turn a window into an immutable
// result.
package auction

import (
	"context"
	"sync"
	"time"

	"cosmossdk.io/errors"
	"cosmossdk.io/log"
	"github.com/huandu/skiplist"

	"github.com/coordination-labs/auction-sdk/metrics"
	"github.com/coordination-labs/auction-sdk/tree"
	"github.com/coordination-labs/auction-sdk/types"
)

// ResultSink consumes sealed results. The manager delivers each result
// exactly once, in window-id order, from a single dispatch goroutine.
type ResultSink interface {
	PublishResult(result *AuctionResult)
}

// Lane pairs one auction type's policy with its own commitment tree and its
// single active window. Lanes are independent: a slow seal on one never
// blocks admission into another.
type Lane struct {
	policy Policy
	tree   *tree.Tree

	mu     sync.Mutex
	active *AuctionWindow
}

// Tree exposes the lane's commitment tree.
func (l *Lane) Tree() *tree.Tree {
	return l.tree
}

// deadlineKey orders the timer index by deadline, then window id.
type deadlineKey struct {
	at time.Time
	id uint64
}

func newDeadlineIndex() *skiplist.SkipList {
	return skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
		a := lhs.(deadlineKey)
		b := rhs.(deadlineKey)

		switch {
		case a.at.Before(b.at):
			return -1
		case a.at.After(b.at):
			return 1
		}

		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		default:
			return 0
		}
	}))
}

// Manager owns every lane and window. It is the only component that mutates
// window state.
type Manager struct {
	cfg      ManagerConfig
	logger   log.Logger
	policies map[types.AuctionType]Policy
	lanes    map[types.AuctionType]*Lane

	mu           sync.Mutex
	windows      map[uint64]*AuctionWindow
	deadlines    *skiplist.SkipList
	nextWindowID uint64

	results     map[uint64]*AuctionResult
	sealedSnaps map[[32]byte]*tree.Snapshot

	// undelivered holds sealed results awaiting ordered dispatch: a result
	// leaves only when no unsealed window with a smaller id remains.
	undelivered map[uint64]*AuctionResult
	delivered   uint64
	pruned      uint64
	sinks       []ResultSink
}

// NewManager builds a manager with one lane per auction type and opens the
// first window of each.
func NewManager(cfg ManagerConfig, sinks ...ResultSink) (*Manager, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:          cfg,
		logger:       cfg.Logger.With("module", "auction"),
		policies:     defaultPolicies(),
		lanes:        make(map[types.AuctionType]*Lane),
		windows:      make(map[uint64]*AuctionWindow),
		deadlines:    newDeadlineIndex(),
		nextWindowID: 1,
		results:      make(map[uint64]*AuctionResult),
		sealedSnaps:  make(map[[32]byte]*tree.Snapshot),
		undelivered:  make(map[uint64]*AuctionResult),
		sinks:        sinks,
	}
	if m.cfg.Metrics == nil {
		m.cfg.Metrics = metrics.Nop()
	}

	for _, t := range types.AuctionTypes {
		m.lanes[t] = &Lane{policy: m.policies[t], tree: tree.New()}
	}

	m.mu.Lock()
	for _, t := range types.AuctionTypes {
		m.openWindowLocked(t, time.Now())
	}
	m.mu.Unlock()

	return m, nil
}

// Lane returns the lane for an auction type.
func (m *Manager) Lane(t types.AuctionType) *Lane {
	return m.lanes[t]
}

// openWindowLocked activates the next window for a type. Caller holds m.mu.
func (m *Manager) openWindowLocked(t types.AuctionType, now time.Time) *AuctionWindow {
	id := m.nextWindowID
	m.nextWindowID++

	w := newWindow(id, t, m.cfg.windowConfig(t), now)
	w.state = WindowActive

	m.windows[id] = w
	m.deadlines.Set(deadlineKey{at: w.Deadline(), id: id}, w)

	lane := m.lanes[t]
	lane.mu.Lock()
	lane.active = w
	lane.mu.Unlock()

	m.logger.Debug("opened auction window", "window_id", id, "auction_type", t.String(), "deadline", w.Deadline())
	return w
}

// Submit inserts a validated transaction into its lane and returns the new
// lane root. Capacity triggers and emergency micro-windows seal
// asynchronously so the submitter never waits on a seal.
func (m *Manager) Submit(tx *types.BidTransaction) ([32]byte, error) {
	lane, ok := m.lanes[tx.AuctionType]
	if !ok {
		return [32]byte{}, types.ErrUnknownAuctionType.Wrapf("%d", tx.AuctionType)
	}

	root, err := lane.tree.Insert(tx)
	if err != nil {
		return [32]byte{}, err
	}

	m.cfg.Metrics.AdmissionsTotal.WithLabelValues(tx.AuctionType.String()).Inc()
	m.cfg.Metrics.PendingTransactions.WithLabelValues(tx.AuctionType.String()).Set(float64(lane.tree.Len()))

	var sealNow *AuctionWindow
	lane.mu.Lock()
	if w := lane.active; w != nil && w.state == WindowActive {
		if w.recordAdmission(tx) || lane.policy.Immediate {
			sealNow = w
		}
	}
	lane.mu.Unlock()

	if sealNow != nil {
		go func(id uint64) {
			if _, err := m.SealWindow(id); err != nil {
				m.logger.Error("capacity-triggered seal failed", "window_id", id, "err", err)
			}
		}(sealNow.WindowID)
	}

	return root, nil
}

// Withdraw removes a pending transaction before it is sealed. A withdrawal
// racing an in-progress seal that already captured its snapshot loses:
// the seal's critical section completes first and the withdrawal observes
// ErrTxNotFound.
func (m *Manager) Withdraw(id types.TxID) error {
	for _, t := range types.AuctionTypes {
		lane := m.lanes[t]
		if !lane.tree.Contains(id) {
			continue
		}
		if _, err := lane.tree.Remove(id); err != nil {
			return err
		}
		m.cfg.Metrics.PendingTransactions.WithLabelValues(t.String()).Set(float64(lane.tree.Len()))
		return nil
	}
	return types.ErrTxNotFound.Wrapf("%s", id)
}

// ActiveWindow returns the lane's currently active window.
func (m *Manager) ActiveWindow(t types.AuctionType) (*AuctionWindow, error) {
	lane, ok := m.lanes[t]
	if !ok {
		return nil, types.ErrUnknownAuctionType.Wrapf("%d", t)
	}

	lane.mu.Lock()
	defer lane.mu.Unlock()
	if lane.active == nil {
		return nil, types.ErrWindowNotFound.Wrapf("no active %s window", t)
	}
	return lane.active, nil
}

// Window returns a window by id.
func (m *Manager) Window(id uint64) (*AuctionWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[id]
	if !ok {
		return nil, types.ErrWindowNotFound.Wrapf("window %d", id)
	}
	return w, nil
}

// Result returns the sealed result for a window id.
func (m *Manager) Result(windowID uint64) (*AuctionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.results[windowID]
	if !ok {
		if _, known := m.windows[windowID]; !known {
			return nil, types.ErrWindowNotFound.Wrapf("window %d", windowID)
		}
		return nil, types.ErrWindowNotFound.Wrapf("window %d is not sealed", windowID)
	}
	return r, nil
}

// Results returns every sealed result in window-id order.
func (m *Manager) Results() []*AuctionResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*AuctionResult, 0, len(m.results))
	for id := uint64(1); id < m.nextWindowID; id++ {
		if r, ok := m.results[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// SnapshotForRoot resolves a commitment root to a provable snapshot: a
// sealed result's winner set, or the live pending set of a lane whose policy
// allows visibility. Unknown roots and hidden lanes fail ErrProofUnavailable.
func (m *Manager) SnapshotForRoot(root [32]byte) (*tree.Snapshot, error) {
	m.mu.Lock()
	if snap, ok := m.sealedSnaps[root]; ok {
		m.mu.Unlock()
		return snap, nil
	}
	m.mu.Unlock()

	for _, t := range types.AuctionTypes {
		lane := m.lanes[t]
		snap := lane.tree.Snapshot()
		if snap.Root() != root {
			continue
		}
		if lane.policy.HideUntilSealed {
			return nil, types.ErrProofUnavailable.Wrapf("%s lane is hidden until sealed", t)
		}
		return snap, nil
	}

	return nil, types.ErrProofUnavailable.Wrap("root not held by coordinator")
}

// LaneSnapshot returns the live pending snapshot for an auction type, unless
// the lane hides its order until sealing.
func (m *Manager) LaneSnapshot(t types.AuctionType) (*tree.Snapshot, error) {
	lane, ok := m.lanes[t]
	if !ok {
		return nil, types.ErrUnknownAuctionType.Wrapf("%d", t)
	}
	if lane.policy.HideUntilSealed {
		return nil, types.ErrProofUnavailable.Wrapf("%s lane is hidden until sealed", t)
	}
	return lane.tree.Snapshot(), nil
}

// Start runs the timer driver until the context is canceled. Each tick seals
// due windows and sweeps expired transactions.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.tick(now)
		}
	}
}

// tick seals every window whose deadline has passed and runs the TTL sweep.
// Window timers are independent per auction type: seals run in parallel
// goroutines so one lane's slow seal does not delay another's deadline.
func (m *Manager) tick(now time.Time) {
	var due []*AuctionWindow

	m.mu.Lock()
	for el := m.deadlines.Front(); el != nil; el = m.deadlines.Front() {
		key := el.Key().(deadlineKey)
		if key.at.After(now) {
			break
		}
		m.deadlines.Remove(el.Key())
		due = append(due, el.Value.(*AuctionWindow))
	}
	m.mu.Unlock()

	for _, w := range due {
		go func(id uint64) {
			if _, err := m.SealWindow(id); err != nil && !errors.IsOf(err, types.ErrAlreadySealed) {
				m.logger.Error("deadline seal failed", "window_id", id, "err", err)
			}
		}(w.WindowID)
	}

	if m.cfg.PendingTTL > 0 {
		m.sweepExpired(now)
	}
}

// sweepExpired removes pending transactions older than the TTL.
func (m *Manager) sweepExpired(now time.Time) {
	cutoff := now.Add(-m.cfg.PendingTTL).Unix()
	if cutoff < 0 {
		return
	}

	for _, t := range types.AuctionTypes {
		lane := m.lanes[t]
		var expired []types.TxID
		for it := lane.tree.Snapshot().Iterator(); it.Valid(); it.Next() {
			if it.Tx().Timestamp < uint64(cutoff) {
				expired = append(expired, it.Tx().TxID)
			}
		}

		for _, id := range expired {
			if _, err := lane.tree.Remove(id); err != nil {
				// Sealed or withdrawn since the scan; nothing to do.
				continue
			}
			m.cfg.Metrics.ExpiredTotal.Inc()
			m.logger.Debug("expired pending transaction", "tx_id", id.String(), "auction_type", t.String())
		}
		m.cfg.Metrics.PendingTransactions.WithLabelValues(t.String()).Set(float64(lane.tree.Len()))
	}
}

// dispatchLocked delivers sealed results in window-id order, exactly once:
// a result is released only when every smaller window id is sealed. Caller
// holds m.mu.
func (m *Manager) dispatchLocked() {
	watermark := m.nextWindowID
	for id, w := range m.windows {
		if w.state != WindowSealed && id < watermark {
			watermark = id
		}
	}

	for id := m.delivered + 1; id < watermark; id++ {
		if r, ok := m.undelivered[id]; ok {
			delete(m.undelivered, id)
			for _, sink := range m.sinks {
				sink.PublishResult(r)
			}
		}
		m.delivered = id
	}

	m.pruneLocked()
}

// pruneLocked drops delivered windows beyond the retention bound so the
// window, result, and snapshot maps stay bounded over the process lifetime.
// Caller holds m.mu.
func (m *Manager) pruneLocked() {
	if m.cfg.ResultRetention == 0 || m.delivered <= m.cfg.ResultRetention {
		return
	}

	cutoff := m.delivered - m.cfg.ResultRetention
	for id := m.pruned + 1; id <= cutoff; id++ {
		if r, ok := m.results[id]; ok {
			delete(m.results, id)
			if !m.rootRetainedLocked(r.MerkleRoot) {
				delete(m.sealedSnaps, r.MerkleRoot)
			}
		}
		delete(m.windows, id)
	}
	m.pruned = cutoff
}

// rootRetainedLocked reports whether a retained result still commits to root.
// Empty windows share one root, so its snapshot is dropped only with the last
// result that uses it. Caller holds m.mu.
func (m *Manager) rootRetainedLocked(root [32]byte) bool {
	for _, r := range m.results {
		if r.MerkleRoot == root {
			return true
		}
	}
	return false
}
