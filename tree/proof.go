package tree

import (
	"bytes"

	"github.com/coordination-labs/auction-sdk/types"
)

// InclusionProof is an authenticated-search-tree proof that a transaction is
// part of the set committed by a composite root. It carries the transaction
// itself: verifiers recompute the entry hash from canonical fields rather
// than trusting the prover.
type InclusionProof struct {
	Tx *types.BidTransaction `json:"tx"`

	// LeftHash and RightHash commit the target node's subtrees.
	LeftHash  [32]byte `json:"left_hash"`
	RightHash [32]byte `json:"right_hash"`

	// Steps walk bottom-up from the target's parent to the id-index root.
	Steps []InclusionStep `json:"steps"`

	// OrderRoot and Count complete the composite commitment.
	OrderRoot [32]byte `json:"order_root"`
	Count     uint64   `json:"count"`
}

// InclusionStep is one ancestor on the proof path.
type InclusionStep struct {
	Key         types.TxID `json:"key"`
	EntryHash   [32]byte   `json:"entry_hash"`
	SiblingHash [32]byte   `json:"sibling_hash"`

	// TargetLeft is true when the target subtree is this ancestor's left child.
	TargetLeft bool `json:"target_left"`
}

// Verify checks the proof against a root for the given id. It is a free
// function: nothing beyond the proof, the root, and the id is needed.
func (p *InclusionProof) Verify(root [32]byte, id types.TxID) bool {
	if p.Tx == nil || p.Tx.TxID != id {
		return false
	}

	cur := hashNode(p.Tx.TxID, p.Tx.Hash(), p.LeftHash, p.RightHash)
	for _, step := range p.Steps {
		if step.TargetLeft {
			cur = hashNode(step.Key, step.EntryHash, cur, step.SiblingHash)
		} else {
			cur = hashNode(step.Key, step.EntryHash, step.SiblingHash, cur)
		}
	}

	return compositeRoot(p.OrderRoot, cur, p.Count) == root
}

// ExclusionProof shows the unique id-index search path for a transaction id
// terminating in an empty subtree: given the committed tree's ordering
// invariant, the id cannot be present anywhere else.
type ExclusionProof struct {
	// Steps walk top-down from the id-index root to the empty slot.
	Steps []ExclusionStep `json:"steps"`

	OrderRoot [32]byte `json:"order_root"`
	Count     uint64   `json:"count"`
}

// ExclusionStep is one visited node on the search path.
type ExclusionStep struct {
	Key         types.TxID `json:"key"`
	EntryHash   [32]byte   `json:"entry_hash"`
	OffPathHash [32]byte   `json:"off_path_hash"`
}

// Verify checks the proof against a root for the given id. Each step's key is
// bound into the recomputed node hash, so a proof only verifies when every
// claimed key matches the committed one: a misstated key cannot steer the
// search path around a present transaction.
func (p *ExclusionProof) Verify(root [32]byte, id types.TxID) bool {
	cur := nilHash
	for i := len(p.Steps) - 1; i >= 0; i-- {
		step := p.Steps[i]
		switch c := bytes.Compare(id[:], step.Key[:]); {
		case c == 0:
			return false
		case c < 0:
			cur = hashNode(step.Key, step.EntryHash, cur, step.OffPathHash)
		default:
			cur = hashNode(step.Key, step.EntryHash, step.OffPathHash, cur)
		}
	}

	return compositeRoot(p.OrderRoot, cur, p.Count) == root
}

// ProveInclusion builds an O(log n) inclusion proof for the id against this
// snapshot's root. Fails with ErrTxNotFound when the id is absent.
func (s *Snapshot) ProveInclusion(id types.TxID) (*InclusionProof, error) {
	seek := &types.BidTransaction{TxID: id}

	path := make([]*node, 0, 16)
	n := s.byID
	for n != nil {
		c := idCompare(seek, n.tx)
		if c == 0 {
			break
		}
		path = append(path, n)
		if c < 0 {
			n = n.left
		} else {
			n = n.right
		}
	}
	if n == nil {
		return nil, types.ErrTxNotFound.Wrapf("%s", id)
	}

	proof := &InclusionProof{
		Tx:        n.tx,
		LeftHash:  subtreeHash(n.left),
		RightHash: subtreeHash(n.right),
		Steps:     make([]InclusionStep, 0, len(path)),
		OrderRoot: subtreeHash(s.order),
		Count:     s.count,
	}

	child := n
	for i := len(path) - 1; i >= 0; i-- {
		parent := path[i]
		step := InclusionStep{Key: parent.tx.TxID, EntryHash: parent.entryHash}
		if parent.left == child {
			step.TargetLeft = true
			step.SiblingHash = subtreeHash(parent.right)
		} else {
			step.SiblingHash = subtreeHash(parent.left)
		}
		proof.Steps = append(proof.Steps, step)
		child = parent
	}

	return proof, nil
}

// ProveExclusion builds an O(log n) exclusion proof for the id against this
// snapshot's root. Fails with ErrDuplicateTransaction when the id is present.
func (s *Snapshot) ProveExclusion(id types.TxID) (*ExclusionProof, error) {
	seek := &types.BidTransaction{TxID: id}

	proof := &ExclusionProof{
		Steps:     make([]ExclusionStep, 0, 16),
		OrderRoot: subtreeHash(s.order),
		Count:     s.count,
	}

	n := s.byID
	for n != nil {
		c := idCompare(seek, n.tx)
		if c == 0 {
			return nil, types.ErrDuplicateTransaction.Wrapf("%s is pending, cannot prove exclusion", id)
		}

		step := ExclusionStep{Key: n.tx.TxID, EntryHash: n.entryHash}
		if c < 0 {
			step.OffPathHash = subtreeHash(n.right)
			n = n.left
		} else {
			step.OffPathHash = subtreeHash(n.left)
			n = n.right
		}
		proof.Steps = append(proof.Steps, step)
	}

	return proof, nil
}

// ProveInclusion proves against the tree's current root.
func (t *Tree) ProveInclusion(id types.TxID) (*InclusionProof, error) {
	return t.Snapshot().ProveInclusion(id)
}

// ProveExclusion proves against the tree's current root.
func (t *Tree) ProveExclusion(id types.TxID) (*ExclusionProof, error) {
	return t.Snapshot().ProveExclusion(id)
}
