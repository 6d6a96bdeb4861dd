package tree_test

import (
	"math/rand"
	"testing"

	sdkerrors "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"

	"github.com/coordination-labs/auction-sdk/tree"
	"github.com/coordination-labs/auction-sdk/types"
)

func populatedTree(t *testing.T, n int) (*tree.Tree, []*types.BidTransaction) {
	t.Helper()
	rng := rand.New(rand.NewSource(99))
	txs := randomTxs(t, rng, n)

	tr := tree.New()
	for _, tx := range txs {
		_, err := tr.Insert(tx)
		require.NoError(t, err)
	}
	return tr, txs
}

func TestInclusionProof(t *testing.T) {
	tr, txs := populatedTree(t, 64)
	root := tr.Root()

	t.Run("every member verifies", func(t *testing.T) {
		for _, tx := range txs {
			proof, err := tr.ProveInclusion(tx.TxID)
			require.NoError(t, err)
			require.True(t, proof.Verify(root, tx.TxID))
		}
	})

	t.Run("absent id has no proof", func(t *testing.T) {
		_, err := tr.ProveInclusion(txWithID(10_000, 1, 1, 1).TxID)
		require.True(t, sdkerrors.IsOf(err, types.ErrTxNotFound))
	})

	t.Run("tampered transaction fails", func(t *testing.T) {
		proof, err := tr.ProveInclusion(txs[0].TxID)
		require.NoError(t, err)

		tampered := *proof.Tx
		tampered.BidAmount++
		bad := *proof
		bad.Tx = &tampered
		require.False(t, bad.Verify(root, txs[0].TxID))
	})

	t.Run("mismatched id fails", func(t *testing.T) {
		proof, err := tr.ProveInclusion(txs[0].TxID)
		require.NoError(t, err)
		require.False(t, proof.Verify(root, txs[1].TxID))
	})

	t.Run("stale root fails", func(t *testing.T) {
		proof, err := tr.ProveInclusion(txs[0].TxID)
		require.NoError(t, err)

		_, err = tr.Remove(txs[1].TxID)
		require.NoError(t, err)
		require.False(t, proof.Verify(tr.Root(), txs[0].TxID))

		// The original root still accepts it.
		require.True(t, proof.Verify(root, txs[0].TxID))
	})
}

func TestExclusionProof(t *testing.T) {
	tr, txs := populatedTree(t, 64)
	root := tr.Root()

	t.Run("absent ids verify", func(t *testing.T) {
		for i := uint64(500); i < 540; i++ {
			id := txWithID(i, 1, 1, 1).TxID
			proof, err := tr.ProveExclusion(id)
			require.NoError(t, err)
			require.True(t, proof.Verify(root, id))
		}
	})

	t.Run("pending id has no exclusion proof", func(t *testing.T) {
		_, err := tr.ProveExclusion(txs[0].TxID)
		require.True(t, sdkerrors.IsOf(err, types.ErrDuplicateTransaction))
	})

	t.Run("proof for one id does not transfer to a member", func(t *testing.T) {
		absent := txWithID(700, 1, 1, 1).TxID
		proof, err := tr.ProveExclusion(absent)
		require.NoError(t, err)
		require.False(t, proof.Verify(root, txs[0].TxID))
	})

	t.Run("empty tree proves any exclusion", func(t *testing.T) {
		empty := tree.New()
		id := txWithID(1, 1, 1, 1).TxID
		proof, err := empty.ProveExclusion(id)
		require.NoError(t, err)
		require.Empty(t, proof.Steps)
		require.True(t, proof.Verify(empty.Root(), id))
	})

	t.Run("stale root fails", func(t *testing.T) {
		absent := txWithID(800, 1, 1, 1).TxID
		proof, err := tr.ProveExclusion(absent)
		require.NoError(t, err)

		_, err = tr.Remove(txs[2].TxID)
		require.NoError(t, err)
		require.False(t, proof.Verify(tr.Root(), absent))
	})
}

func TestProofKeyBinding(t *testing.T) {
	t.Run("fabricated exclusion path for a present id fails", func(t *testing.T) {
		tr := tree.New()
		tx := txWithID(1, 100, 10, 10)
		_, err := tr.Insert(tx)
		require.NoError(t, err)
		root := tr.Root()

		// Harvest the committed order root and count from a genuine proof,
		// then claim a one-node search path whose key sorts above the
		// present id while reusing the present entry's hash.
		genuine, err := tr.ProveExclusion(txWithID(2, 1, 1, 1).TxID)
		require.NoError(t, err)

		var fakeKey types.TxID
		for i := range fakeKey {
			fakeKey[i] = 0xFF
		}
		forged := &tree.ExclusionProof{
			Steps:     []tree.ExclusionStep{{Key: fakeKey, EntryHash: tx.Hash()}},
			OrderRoot: genuine.OrderRoot,
			Count:     genuine.Count,
		}
		require.False(t, forged.Verify(root, tx.TxID))
	})

	t.Run("misstated inclusion step key fails", func(t *testing.T) {
		tr, txs := populatedTree(t, 8)
		root := tr.Root()

		for _, tx := range txs {
			proof, err := tr.ProveInclusion(tx.TxID)
			require.NoError(t, err)
			if len(proof.Steps) == 0 {
				continue
			}

			bad := *proof
			bad.Steps = append([]tree.InclusionStep(nil), proof.Steps...)
			bad.Steps[0].Key[0] ^= 0x01
			require.False(t, bad.Verify(root, tx.TxID))
		}
	})
}

func TestProofsAfterRemoval(t *testing.T) {
	tr, txs := populatedTree(t, 32)

	removed := txs[5]
	_, err := tr.Remove(removed.TxID)
	require.NoError(t, err)
	root := tr.Root()

	// The removed id now has an exclusion proof and no inclusion proof.
	proof, err := tr.ProveExclusion(removed.TxID)
	require.NoError(t, err)
	require.True(t, proof.Verify(root, removed.TxID))

	_, err = tr.ProveInclusion(removed.TxID)
	require.True(t, sdkerrors.IsOf(err, types.ErrTxNotFound))
}
