package tree

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/coordination-labs/auction-sdk/types"
)

// index salts for the two treaps under the composite root.
const (
	orderIndexSalt = 0x10
	idIndexSalt    = 0x20
)

func orderCompare(a, b *types.BidTransaction) int {
	return types.CompareBids(a, b)
}

func idCompare(a, b *types.BidTransaction) int {
	return bytes.Compare(a.TxID[:], b.TxID[:])
}

// Snapshot is an immutable point-in-time view of the pending set. Readers
// holding a snapshot never observe writes that commit after capture: the
// underlying nodes are copy-on-write and shared, never mutated in place.
type Snapshot struct {
	order *node
	byID  *node
	count uint64
	root  [32]byte
}

func emptySnapshot() *Snapshot {
	s := &Snapshot{}
	s.root = compositeRoot(nilHash, nilHash, 0)
	return s
}

// compositeRoot commits both indexes and the count. Either index alone
// anchors a proof; the composite binds them together.
func compositeRoot(orderRoot, idRoot [32]byte, count uint64) [32]byte {
	h := sha256.New()
	h.Write(orderRoot[:])
	h.Write(idRoot[:])

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count)
	h.Write(buf[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Root returns the snapshot's commitment.
func (s *Snapshot) Root() [32]byte {
	return s.root
}

// Len returns the number of pending transactions in the snapshot.
func (s *Snapshot) Len() int {
	return int(s.count)
}

// Get returns the transaction with the given id, if present.
func (s *Snapshot) Get(id types.TxID) (*types.BidTransaction, bool) {
	n := find(s.byID, &types.BidTransaction{TxID: id}, idCompare)
	if n == nil {
		return nil, false
	}
	return n.tx, true
}

// Iterator returns a lazy iterator over the snapshot in auction order. The
// iterator is restartable via Reset and is independent of any concurrent
// writes to the live tree.
func (s *Snapshot) Iterator() *Iterator {
	it := &Iterator{root: s.order}
	it.Reset()
	return it
}

// Transactions materializes the snapshot in auction order.
func (s *Snapshot) Transactions() []*types.BidTransaction {
	txs := make([]*types.BidTransaction, 0, s.count)
	for it := s.Iterator(); it.Valid(); it.Next() {
		txs = append(txs, it.Tx())
	}
	return txs
}

// Iterator walks a snapshot's order index with an explicit descent stack.
type Iterator struct {
	root  *node
	stack []*node
}

// Reset rewinds the iterator to the first transaction in auction order.
func (it *Iterator) Reset() {
	it.stack = it.stack[:0]
	it.push(it.root)
}

func (it *Iterator) push(n *node) {
	for n != nil {
		it.stack = append(it.stack, n)
		n = n.left
	}
}

// Valid reports whether the iterator points at a transaction.
func (it *Iterator) Valid() bool {
	return len(it.stack) > 0
}

// Tx returns the current transaction. Only valid while Valid reports true.
func (it *Iterator) Tx() *types.BidTransaction {
	return it.stack[len(it.stack)-1].tx
}

// Next advances to the next transaction in auction order.
func (it *Iterator) Next() {
	n := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
	it.push(n.right)
}
