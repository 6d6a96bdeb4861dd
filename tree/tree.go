// Package tree implements the ordered commitment tree that holds the live
// pending set. Transactions are kept in two merkleized treap indexes under a
// single composite root: one in auction order (driving snapshots and
// selection) and one in tx-id order (driving inclusion and exclusion proofs
// keyed by id alone). Node priorities derive from entry hashes, so the root
// is a canonical function of the stored set and independent recomputation
// over the same transactions agrees bit for bit.
package tree

import (
	"sync"
	"sync/atomic"

	"cosmossdk.io/errors"

	"github.com/coordination-labs/auction-sdk/types"
)

// Tree is the single shared mutable pending set. Writes are serialized by a
// mutex; the committed snapshot is swapped atomically so readers run without
// locks under snapshot isolation.
type Tree struct {
	mu     sync.Mutex
	snap   atomic.Pointer[Snapshot]
	halted atomic.Bool
}

// New returns an empty tree.
func New() *Tree {
	t := &Tree{}
	t.snap.Store(emptySnapshot())
	return t
}

// Snapshot captures the current committed state. The result is immutable and
// safe to read concurrently with any writes.
func (t *Tree) Snapshot() *Snapshot {
	return t.snap.Load()
}

// Root returns the current composite commitment. Updated incrementally on
// every write; never recomputed from scratch.
func (t *Tree) Root() [32]byte {
	return t.snap.Load().root
}

// Len returns the number of pending transactions.
func (t *Tree) Len() int {
	return t.snap.Load().Len()
}

// Contains reports whether the id is pending.
func (t *Tree) Contains(id types.TxID) bool {
	_, ok := t.snap.Load().Get(id)
	return ok
}

// Insert adds a validated transaction to the pending set and returns the new
// root. Fails with ErrInvalidTransaction when the effective bid rate is
// undefined, ErrDuplicateTransaction when the id is already pending, and
// ErrIntegrityHalted once the tree has been halted.
func (t *Tree) Insert(tx *types.BidTransaction) ([32]byte, error) {
	if t.halted.Load() {
		return nilHash, types.ErrIntegrityHalted
	}

	if tx.GasLimit == 0 || tx.DataSize == 0 {
		return nilHash, types.ErrInvalidTransaction.Wrap("effective bid rate undefined for zero gas limit or data size")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.snap.Load()
	if _, ok := cur.Get(tx.TxID); ok {
		return nilHash, types.ErrDuplicateTransaction.Wrapf("%s", tx.TxID)
	}

	next := &Snapshot{
		order: insert(cur.order, newNode(tx, orderIndexSalt), orderCompare),
		byID:  insert(cur.byID, newNode(tx, idIndexSalt), idCompare),
		count: cur.count + 1,
	}
	if err := t.commit(cur, next); err != nil {
		return nilHash, err
	}
	return next.root, nil
}

// Remove deletes the transaction with the given id and returns the new root.
// Fails with ErrTxNotFound when the id is not pending; a withdrawal racing a
// seal that already captured the id sees this error after the seal's critical
// section completes.
func (t *Tree) Remove(id types.TxID) ([32]byte, error) {
	if t.halted.Load() {
		return nilHash, types.ErrIntegrityHalted
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.snap.Load()
	next, err := removeLocked(cur, id)
	if err != nil {
		if errors.IsOf(err, types.ErrIntegrityHalted) {
			t.halted.Store(true)
		}
		return nilHash, err
	}
	if err := t.commit(cur, next); err != nil {
		return nilHash, err
	}
	return next.root, nil
}

// Extract atomically selects and removes transactions: fn inspects the
// captured snapshot and returns the ids to remove, and no other writer
// interleaves between capture and removal. Sealing uses this so the set it
// captures is exactly the set it removes. The returned snapshot is the state
// fn observed.
func (t *Tree) Extract(fn func(snap *Snapshot) ([]types.TxID, error)) (*Snapshot, error) {
	if t.halted.Load() {
		return nil, types.ErrIntegrityHalted
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.snap.Load()
	ids, err := fn(cur)
	if err != nil {
		return nil, err
	}

	next := cur
	for _, id := range ids {
		next, err = removeLocked(next, id)
		if err != nil {
			// fn selected from this very snapshot, so every id must be
			// present. Anything else is a structural defect.
			t.halted.Store(true)
			return nil, types.ErrIntegrityHalted.Wrapf("selected id %s missing during extraction", id)
		}
	}

	if err := t.commit(cur, next); err != nil {
		return nil, err
	}
	return cur, nil
}

// Halted reports whether the tree has stopped accepting writes after an
// integrity failure.
func (t *Tree) Halted() bool {
	return t.halted.Load()
}

// removeLocked returns a new snapshot without the given id. Caller holds the
// write lock.
func removeLocked(cur *Snapshot, id types.TxID) (*Snapshot, error) {
	seek := &types.BidTransaction{TxID: id}
	byID, removed := remove(cur.byID, seek, idCompare)
	if removed == nil {
		return nil, types.ErrTxNotFound.Wrapf("%s", id)
	}

	// The order index needs the stored transaction to locate the node, since
	// its comparator reads the full ordering key.
	order, orderRemoved := remove(cur.order, removed.tx, orderCompare)
	if orderRemoved == nil {
		return nil, types.ErrIntegrityHalted.Wrapf("id %s present in id index but not order index", id)
	}

	return &Snapshot{order: order, byID: byID, count: cur.count - 1}, nil
}

// commit verifies the structural invariant shared by both indexes and swaps
// the published snapshot. An inconsistent snapshot halts the tree: the stale
// but consistent state stays published and every later write fails.
func (t *Tree) commit(_, next *Snapshot) error {
	if subtreeSize(next.order) != next.count || subtreeSize(next.byID) != next.count {
		t.halted.Store(true)
		return types.ErrIntegrityHalted.Wrapf(
			"index sizes %d/%d diverge from count %d",
			subtreeSize(next.order), subtreeSize(next.byID), next.count,
		)
	}

	next.root = compositeRoot(subtreeHash(next.order), subtreeHash(next.byID), next.count)
	t.snap.Store(next)
	return nil
}
