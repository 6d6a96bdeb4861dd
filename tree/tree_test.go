package tree_test

import (
	"encoding/binary"
	"math/rand"
	"sort"
	"testing"

	sdkerrors "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"

	"github.com/coordination-labs/auction-sdk/tree"
	"github.com/coordination-labs/auction-sdk/types"
)

func txWithID(i uint64, bid, gas uint64, dataSize uint32) *types.BidTransaction {
	var id types.TxID
	binary.BigEndian.PutUint64(id[24:], i)
	tx := types.NewBidTransaction(id, 1, bid, gas, dataSize, "sender")
	tx.Timestamp = 1_700_000_000 + i
	return tx
}

func randomTxs(t *testing.T, rng *rand.Rand, n int) []*types.BidTransaction {
	t.Helper()
	txs := make([]*types.BidTransaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, txWithID(
			uint64(i)+1,
			uint64(rng.Intn(10_000))+1,
			uint64(rng.Intn(100))+1,
			uint32(rng.Intn(64))+1,
		))
	}
	return txs
}

func TestInsertRemove(t *testing.T) {
	tr := tree.New()
	tx := txWithID(1, 100, 10, 10)

	_, err := tr.Insert(tx)
	require.NoError(t, err)
	require.Equal(t, 1, tr.Len())
	require.True(t, tr.Contains(tx.TxID))

	t.Run("duplicate id rejected", func(t *testing.T) {
		_, err := tr.Insert(tx)
		require.True(t, sdkerrors.IsOf(err, types.ErrDuplicateTransaction))
	})

	t.Run("undefined rate rejected", func(t *testing.T) {
		_, err := tr.Insert(txWithID(2, 100, 0, 10))
		require.True(t, sdkerrors.IsOf(err, types.ErrInvalidTransaction))
	})

	t.Run("remove unknown id", func(t *testing.T) {
		_, err := tr.Remove(txWithID(99, 1, 1, 1).TxID)
		require.True(t, sdkerrors.IsOf(err, types.ErrTxNotFound))
	})

	_, err = tr.Remove(tx.TxID)
	require.NoError(t, err)
	require.Equal(t, 0, tr.Len())
	require.False(t, tr.Contains(tx.TxID))
}

func TestIterationOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	txs := randomTxs(t, rng, 200)

	tr := tree.New()
	for _, tx := range txs {
		_, err := tr.Insert(tx)
		require.NoError(t, err)
	}

	want := make([]*types.BidTransaction, len(txs))
	copy(want, txs)
	sort.SliceStable(want, func(i, j int) bool {
		return types.CompareBids(want[i], want[j]) < 0
	})

	got := tr.Snapshot().Transactions()
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].TxID, got[i].TxID, "position %d", i)
	}

	// The order must also survive removals.
	for i := 0; i < 50; i++ {
		_, err := tr.Remove(want[i*3].TxID)
		require.NoError(t, err)
	}

	got = tr.Snapshot().Transactions()
	for i := 1; i < len(got); i++ {
		require.Negative(t, types.CompareBids(got[i-1], got[i]))
	}
}

func TestCanonicalRoot(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	txs := randomTxs(t, rng, 100)

	build := func(order []*types.BidTransaction) [32]byte {
		tr := tree.New()
		for _, tx := range order {
			_, err := tr.Insert(tx)
			require.NoError(t, err)
		}
		return tr.Root()
	}

	want := build(txs)

	t.Run("insertion order does not matter", func(t *testing.T) {
		for trial := 0; trial < 5; trial++ {
			shuffled := make([]*types.BidTransaction, len(txs))
			copy(shuffled, txs)
			rng.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			require.Equal(t, want, build(shuffled))
		}
	})

	t.Run("insert then remove restores the root", func(t *testing.T) {
		tr := tree.New()
		for _, tx := range txs {
			_, err := tr.Insert(tx)
			require.NoError(t, err)
		}

		extra := txWithID(10_000, 555, 7, 3)
		_, err := tr.Insert(extra)
		require.NoError(t, err)
		require.NotEqual(t, want, tr.Root())

		root, err := tr.Remove(extra.TxID)
		require.NoError(t, err)
		require.Equal(t, want, root)
	})

	t.Run("empty trees share a root", func(t *testing.T) {
		require.Equal(t, tree.New().Root(), tree.New().Root())
	})
}

func TestSnapshotIsolation(t *testing.T) {
	tr := tree.New()
	first := txWithID(1, 100, 10, 10)
	_, err := tr.Insert(first)
	require.NoError(t, err)

	snap := tr.Snapshot()
	root := snap.Root()

	_, err = tr.Insert(txWithID(2, 200, 10, 10))
	require.NoError(t, err)
	_, err = tr.Remove(first.TxID)
	require.NoError(t, err)

	// The captured snapshot still reflects the state at capture time.
	require.Equal(t, 1, snap.Len())
	require.Equal(t, root, snap.Root())
	_, ok := snap.Get(first.TxID)
	require.True(t, ok)

	require.Equal(t, 1, tr.Len())
	require.False(t, tr.Contains(first.TxID))
}

func TestExtract(t *testing.T) {
	tr := tree.New()
	txs := []*types.BidTransaction{
		txWithID(1, 100, 10, 10),
		txWithID(2, 200, 10, 10),
		txWithID(3, 300, 10, 10),
	}
	for _, tx := range txs {
		_, err := tr.Insert(tx)
		require.NoError(t, err)
	}

	t.Run("selected ids are removed atomically", func(t *testing.T) {
		snap, err := tr.Extract(func(snap *tree.Snapshot) ([]types.TxID, error) {
			return []types.TxID{txs[0].TxID, txs[2].TxID}, nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, snap.Len())

		require.Equal(t, 1, tr.Len())
		require.True(t, tr.Contains(txs[1].TxID))
		require.False(t, tr.Contains(txs[0].TxID))
		require.False(t, tr.Contains(txs[2].TxID))
	})

	t.Run("selector error leaves the tree unchanged", func(t *testing.T) {
		root := tr.Root()
		_, err := tr.Extract(func(*tree.Snapshot) ([]types.TxID, error) {
			return nil, types.ErrWindowNotSealable
		})
		require.True(t, sdkerrors.IsOf(err, types.ErrWindowNotSealable))
		require.Equal(t, root, tr.Root())
		require.Equal(t, 1, tr.Len())
	})

	t.Run("selecting an absent id halts the tree", func(t *testing.T) {
		_, err := tr.Extract(func(*tree.Snapshot) ([]types.TxID, error) {
			return []types.TxID{txWithID(77, 1, 1, 1).TxID}, nil
		})
		require.True(t, sdkerrors.IsOf(err, types.ErrIntegrityHalted))
		require.True(t, tr.Halted())

		_, err = tr.Insert(txWithID(78, 1, 1, 1))
		require.True(t, sdkerrors.IsOf(err, types.ErrIntegrityHalted))
	})
}

func TestIteratorReset(t *testing.T) {
	tr := tree.New()
	for i := uint64(1); i <= 5; i++ {
		_, err := tr.Insert(txWithID(i, i*100, 10, 10))
		require.NoError(t, err)
	}

	it := tr.Snapshot().Iterator()
	first := make([]types.TxID, 0, 5)
	for ; it.Valid(); it.Next() {
		first = append(first, it.Tx().TxID)
	}
	require.Len(t, first, 5)

	it.Reset()
	second := make([]types.TxID, 0, 5)
	for ; it.Valid(); it.Next() {
		second = append(second, it.Tx().TxID)
	}
	require.Equal(t, first, second)
}
