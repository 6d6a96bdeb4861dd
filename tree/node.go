package tree

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/coordination-labs/auction-sdk/types"
)

// compareFunc orders two transactions within one index. It must be total:
// zero is returned only for the same transaction.
type compareFunc func(a, b *types.BidTransaction) int

// node is an immutable treap node. Mutations copy the path from the root to
// the touched node and share every untouched subtree, so a captured root is a
// stable snapshot and the commitment is recomputed incrementally along the
// copied path only.
//
// The heap priority is derived from the entry hash, which makes the treap
// shape a canonical function of the stored set: any insertion order over the
// same transactions produces the same tree and therefore the same root.
type node struct {
	tx        *types.BidTransaction
	entryHash [32]byte
	priority  uint64

	left  *node
	right *node

	size uint64
	hash [32]byte
}

// nilHash commits an empty subtree.
var nilHash [32]byte

func subtreeHash(n *node) [32]byte {
	if n == nil {
		return nilHash
	}
	return n.hash
}

func subtreeSize(n *node) uint64 {
	if n == nil {
		return 0
	}
	return n.size
}

// newNode builds a detached node for tx. The priority is salted per index so
// the two indexes do not share a shape.
func newNode(tx *types.BidTransaction, indexSalt byte) *node {
	entryHash := tx.Hash()

	h := sha256.Sum256(append([]byte{indexSalt}, entryHash[:]...))
	n := &node{
		tx:        tx,
		entryHash: entryHash,
		priority:  binary.BigEndian.Uint64(h[:8]),
		size:      1,
	}
	n.rehash()
	return n
}

// rehash recomputes the node's size and commitment from its children. Must be
// called on every freshly copied node after its children are final.
func (n *node) rehash() {
	n.size = 1 + subtreeSize(n.left) + subtreeSize(n.right)
	n.hash = hashNode(n.tx.TxID, n.entryHash, subtreeHash(n.left), subtreeHash(n.right))
}

// hashNode commits the tx id separately from the entry hash. Proof verifiers
// recompute node hashes from the claimed search keys, so a prover cannot
// misstate a node's key to route a search path around a committed entry.
func hashNode(id types.TxID, entry, left, right [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{nodeTag})
	h.Write(id[:])
	h.Write(entry[:])
	h.Write(left[:])
	h.Write(right[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

const nodeTag = 0x01

func (n *node) clone() *node {
	c := *n
	return &c
}

// higherPriority breaks priority ties by entry hash so merge order is
// deterministic even in the negligible collision case.
func higherPriority(a, b *node) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return bytes.Compare(a.entryHash[:], b.entryHash[:]) > 0
}

// insert returns the root of n with the detached node e added, or nil if a
// transaction comparing equal already exists.
func insert(n, e *node, cmp compareFunc) *node {
	if n == nil {
		return e
	}

	c := cmp(e.tx, n.tx)
	if c == 0 {
		return nil
	}

	out := n.clone()
	if c < 0 {
		left := insert(n.left, e, cmp)
		if left == nil {
			return nil
		}
		out.left = left
		if higherPriority(left, out) {
			out = rotateRight(out)
		}
	} else {
		right := insert(n.right, e, cmp)
		if right == nil {
			return nil
		}
		out.right = right
		if higherPriority(right, out) {
			out = rotateLeft(out)
		}
	}

	out.rehash()
	return out
}

// rotateRight lifts the left child. The rotated child is already a fresh copy
// because insert copies the full descent path.
func rotateRight(n *node) *node {
	l := n.left.clone()
	n.left = l.right
	n.rehash()
	l.right = n
	return l
}

func rotateLeft(n *node) *node {
	r := n.right.clone()
	n.right = r.left
	n.rehash()
	r.left = n
	return r
}

// remove returns the root of n with the node comparing equal to seek
// removed, plus the removed node. Returns (n, nil) unchanged if absent.
func remove(n *node, seek *types.BidTransaction, cmp compareFunc) (*node, *node) {
	if n == nil {
		return nil, nil
	}

	c := cmp(seek, n.tx)
	if c == 0 {
		return merge(n.left, n.right), n
	}

	var (
		child   *node
		removed *node
	)
	if c < 0 {
		child, removed = remove(n.left, seek, cmp)
		if removed == nil {
			return n, nil
		}
		out := n.clone()
		out.left = child
		out.rehash()
		return out, removed
	}

	child, removed = remove(n.right, seek, cmp)
	if removed == nil {
		return n, nil
	}
	out := n.clone()
	out.right = child
	out.rehash()
	return out, removed
}

// merge joins two treaps where every key in l precedes every key in r.
func merge(l, r *node) *node {
	if l == nil {
		return r
	}
	if r == nil {
		return l
	}

	if higherPriority(l, r) {
		out := l.clone()
		out.right = merge(l.right, r)
		out.rehash()
		return out
	}

	out := r.clone()
	out.left = merge(l, r.left)
	out.rehash()
	return out
}

// find descends by cmp and returns the matching node, or nil.
func find(n *node, seek *types.BidTransaction, cmp compareFunc) *node {
	for n != nil {
		c := cmp(seek, n.tx)
		if c == 0 {
			return n
		}
		if c < 0 {
			n = n.left
		} else {
			n = n.right
		}
	}
	return nil
}
