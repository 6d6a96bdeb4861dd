package coordinator_test

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/coordination-labs/auction-sdk/auction"
	"github.com/coordination-labs/auction-sdk/coordinator"
	"github.com/coordination-labs/auction-sdk/types"
)

func newCoordinator(t *testing.T) (*coordinator.Coordinator, *auction.Manager) {
	t.Helper()

	cfg := auction.DefaultManagerConfig(log.NewNopLogger())
	for at, w := range cfg.Windows {
		w.Duration = time.Hour
		cfg.Windows[at] = w
	}

	m, err := auction.NewManager(cfg)
	require.NoError(t, err)
	return coordinator.New(log.NewNopLogger(), m, nil), m
}

func chainTx(i, chainID, bid uint64) *types.BidTransaction {
	var id types.TxID
	binary.BigEndian.PutUint64(id[16:], chainID)
	binary.BigEndian.PutUint64(id[24:], i)
	tx := types.NewBidTransaction(id, chainID, bid, 10, 10, "sender")
	tx.Timestamp = 1_700_000_000 + i
	return tx
}

func TestAdmit(t *testing.T) {
	c, m := newCoordinator(t)
	c.RegisterChain(7, coordinator.DefaultChainPolicy)

	ctx := context.Background()

	t.Run("registered healthy chain admits", func(t *testing.T) {
		tx := chainTx(1, 7, 100)
		root, err := c.Admit(ctx, tx)
		require.NoError(t, err)
		require.NotEqual(t, [32]byte{}, root)
		require.True(t, m.Lane(types.StandardExecution).Tree().Contains(tx.TxID))
	})

	t.Run("unknown chain refused", func(t *testing.T) {
		_, err := c.Admit(ctx, chainTx(2, 99, 100))
		require.True(t, sdkerrors.IsOf(err, types.ErrChainUnknown))
	})

	t.Run("invalid transaction refused before registry lookup", func(t *testing.T) {
		tx := chainTx(3, 99, 100)
		tx.GasLimit = 0
		_, err := c.Admit(ctx, tx)
		require.True(t, sdkerrors.IsOf(err, types.ErrInvalidTransaction))
	})

	t.Run("canceled context refused", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.Admit(canceled, chainTx(4, 7, 100))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestAdmitHealthGate(t *testing.T) {
	c, _ := newCoordinator(t)
	c.RegisterChain(7, coordinator.DefaultChainPolicy)
	ctx := context.Background()

	require.NoError(t, c.UpdateHealth(7, coordinator.Unhealthy))
	_, err := c.Admit(ctx, chainTx(1, 7, 100))
	require.True(t, sdkerrors.IsOf(err, types.ErrChainUnhealthy))

	// Degraded chains still admit.
	require.NoError(t, c.UpdateHealth(7, coordinator.Degraded))
	_, err = c.Admit(ctx, chainTx(2, 7, 100))
	require.NoError(t, err)

	t.Run("unknown chain health update fails", func(t *testing.T) {
		err := c.UpdateHealth(99, coordinator.Unhealthy)
		require.True(t, sdkerrors.IsOf(err, types.ErrChainUnknown))
	})
}

func TestAdmitRateLimit(t *testing.T) {
	c, _ := newCoordinator(t)
	c.RegisterChain(7, coordinator.ChainPolicy{RatePerSecond: 0.5, Burst: 1, MinimumBid: 1})
	ctx := context.Background()

	_, err := c.Admit(ctx, chainTx(1, 7, 100))
	require.NoError(t, err)

	// The bucket holds one token; the refill rate is far too slow to matter.
	_, err = c.Admit(ctx, chainTx(2, 7, 100))
	require.True(t, sdkerrors.IsOf(err, types.ErrRateLimited))
}

func TestAdmitMinimumBid(t *testing.T) {
	c, _ := newCoordinator(t)
	c.RegisterChain(7, coordinator.ChainPolicy{RatePerSecond: 100, Burst: 100, MinimumBid: 50})
	ctx := context.Background()

	_, err := c.Admit(ctx, chainTx(1, 7, 49))
	require.True(t, sdkerrors.IsOf(err, types.ErrBidTooLow))

	_, err = c.Admit(ctx, chainTx(2, 7, 50))
	require.NoError(t, err)
}

func TestChainBookkeeping(t *testing.T) {
	c, _ := newCoordinator(t)
	c.RegisterChain(7, coordinator.DefaultChainPolicy)
	ctx := context.Background()

	_, err := c.Admit(ctx, chainTx(1, 7, 100))
	require.NoError(t, err)
	_, err = c.Admit(ctx, chainTx(2, 7, 200))
	require.NoError(t, err)
	_, err = c.Admit(ctx, chainTx(3, 7, 0))
	require.True(t, sdkerrors.IsOf(err, types.ErrBidTooLow))

	record, err := c.Chain(7)
	require.NoError(t, err)
	require.Equal(t, uint64(3), record.SubmittedCount)
	require.Equal(t, uint64(2), record.AdmittedCount)
	require.Equal(t, uint64(300), record.TotalBidAmount)
	require.Equal(t, coordinator.Healthy, record.HealthState)
	require.False(t, record.LastSeen.IsZero())

	t.Run("unknown chain lookup fails", func(t *testing.T) {
		_, err := c.Chain(99)
		require.True(t, sdkerrors.IsOf(err, types.ErrChainUnknown))
	})
}

func TestReRegisterKeepsCounters(t *testing.T) {
	c, _ := newCoordinator(t)
	c.RegisterChain(7, coordinator.DefaultChainPolicy)
	ctx := context.Background()

	_, err := c.Admit(ctx, chainTx(1, 7, 100))
	require.NoError(t, err)

	c.RegisterChain(7, coordinator.ChainPolicy{RatePerSecond: 10, Burst: 10, MinimumBid: 500})

	record, err := c.Chain(7)
	require.NoError(t, err)
	require.Equal(t, uint64(1), record.AdmittedCount)

	// The replaced policy takes effect immediately.
	_, err = c.Admit(ctx, chainTx(2, 7, 100))
	require.True(t, sdkerrors.IsOf(err, types.ErrBidTooLow))
}
