package auction

import (
	"encoding/hex"
	"sort"
	"time"

	"cosmossdk.io/math"

	"github.com/coordination-labs/auction-sdk/tree"
	"github.com/coordination-labs/auction-sdk/types"
)

// SealWindow converts a window into its AuctionResult: capture the lane's
// snapshot, fix the candidate order under the window's policy, select
// greedily under the gas and count budget, split revenue, commit the winner
// set, and remove the winners from the live tree. Capture, selection, and
// removal form one critical section on the lane's tree, so the set captured
// is exactly the set removed and no competing insert or withdrawal
// interleaves into the window's budget.
//
// The lane lock is held from the state check through the Sealed transition.
// Concurrent seal attempts on one window serialize on it: exactly one builds
// the result, the rest observe WindowSealed and fail ErrAlreadySealed. A
// capacity-triggered seal racing the deadline timer therefore cannot seal a
// window twice.
//
// An empty window is not an error: it seals into a valid zero-revenue
// result. Sealing a sealed window fails ErrAlreadySealed and never touches
// the existing result. Any failure before the critical section commits
// leaves the window in Sealing for retry.
func (m *Manager) SealWindow(windowID uint64) (*AuctionResult, error) {
	m.mu.Lock()
	w, ok := m.windows[windowID]
	m.mu.Unlock()
	if !ok {
		return nil, types.ErrWindowNotFound.Wrapf("window %d", windowID)
	}

	lane := m.lanes[w.AuctionType]

	lane.mu.Lock()
	switch w.state {
	case WindowSealed:
		lane.mu.Unlock()
		return nil, types.ErrAlreadySealed.Wrapf("window %d", windowID)
	case WindowActive, WindowSealing:
		w.state = WindowSealing
	default:
		lane.mu.Unlock()
		return nil, types.ErrWindowNotSealable.Wrapf("window %d is %s", windowID, w.state)
	}

	start := time.Now()

	var (
		result      *AuctionResult
		winnersSnap *tree.Snapshot
	)
	_, err := lane.tree.Extract(func(snap *tree.Snapshot) ([]types.TxID, error) {
		winners := selectWinners(snap, lane.policy, w)

		var totalRevenue, totalGas uint64
		ids := make([]types.TxID, 0, len(winners))
		for _, tx := range winners {
			totalRevenue += tx.BidAmount
			totalGas += tx.GasLimit
			ids = append(ids, tx.TxID)
		}

		coordinatorShare, partnerShare := splitRevenue(totalRevenue, m.cfg.CoordinatorShare)

		var err error
		winnersSnap, err = commitWinners(winners)
		if err != nil {
			return nil, err
		}

		result = &AuctionResult{
			WindowID:                windowID,
			AuctionType:             w.AuctionType,
			WinningTransactions:     winners,
			TotalRevenue:            totalRevenue,
			CoordinatorRevenueShare: coordinatorShare,
			PartnerRevenueShare:     partnerShare,
			TotalGasUsed:            totalGas,
			MerkleRoot:              winnersSnap.Root(),
			SealedAt:                time.Now().UTC(),
		}
		return ids, nil
	})
	if err != nil {
		// Window stays in Sealing; the timer or caller may retry.
		lane.mu.Unlock()
		return nil, err
	}

	w.state = WindowSealed
	lane.mu.Unlock()

	m.mu.Lock()
	m.results[windowID] = result
	m.sealedSnaps[result.MerkleRoot] = winnersSnap
	m.undelivered[windowID] = result
	m.openWindowLocked(w.AuctionType, time.Now())
	m.dispatchLocked()
	m.mu.Unlock()

	mets := m.cfg.Metrics
	mets.SealedWindowsTotal.WithLabelValues(w.AuctionType.String()).Inc()
	mets.SealLatency.Observe(time.Since(start).Seconds())
	mets.WinnersPerWindow.Observe(float64(len(result.WinningTransactions)))
	mets.RevenueTotal.Add(float64(result.TotalRevenue))
	mets.CoordinatorRevenueTotal.Add(float64(result.CoordinatorRevenueShare))
	mets.PartnerRevenueTotal.Add(float64(result.PartnerRevenueShare))
	mets.PendingTransactions.WithLabelValues(w.AuctionType.String()).Set(float64(lane.tree.Len()))

	m.logger.Info("sealed auction window",
		"window_id", windowID,
		"auction_type", w.AuctionType.String(),
		"winners", len(result.WinningTransactions),
		"total_revenue", result.TotalRevenue,
		"merkle_root", hex.EncodeToString(result.MerkleRoot[:]),
	)

	return result, nil
}

// selectWinners filters the snapshot to policy-eligible candidates, fixes
// their final order, and walks greedily under the window's budget. The walk
// stops at the first transaction that would exceed either bound: the
// ordering's fairness guarantee beats gas-packing optimality, so no later,
// smaller transaction is reshuffled in.
func selectWinners(snap *tree.Snapshot, policy Policy, w *AuctionWindow) []*types.BidTransaction {
	candidates := make([]*types.BidTransaction, 0, snap.Len())
	for it := snap.Iterator(); it.Valid(); it.Next() {
		if policy.Eligible != nil && !policy.Eligible(it.Tx()) {
			continue
		}
		candidates = append(candidates, it.Tx())
	}

	if policy.Order != nil {
		less := policy.Order(snap.Root())
		sort.SliceStable(candidates, func(i, j int) bool {
			return less(candidates[i], candidates[j]) < 0
		})
	}

	winners := make([]*types.BidTransaction, 0, len(candidates))
	var gasUsed uint64
	for _, tx := range candidates {
		if uint32(len(winners)) >= w.MaxTransactions {
			break
		}
		if gasUsed+tx.GasLimit > w.TotalGasLimit {
			break
		}
		winners = append(winners, tx)
		gasUsed += tx.GasLimit
	}

	return winners
}

// splitRevenue computes the exact split: the coordinator takes the truncated
// share, partners take the remainder, so the two always sum to the total.
func splitRevenue(total uint64, share math.LegacyDec) (coordinator, partner uint64) {
	coordinator = share.MulInt(math.NewIntFromUint64(total)).TruncateInt().Uint64()
	partner = total - coordinator
	return coordinator, partner
}

// commitWinners builds the fresh commitment over exactly the included set.
// The winner set uses the same dual-index structure as the live tree, so a
// result root answers both inclusion and exclusion proofs.
func commitWinners(winners []*types.BidTransaction) (*tree.Snapshot, error) {
	t := tree.New()
	for _, tx := range winners {
		if _, err := t.Insert(tx); err != nil {
			return nil, err
		}
	}
	return t.Snapshot(), nil
}
