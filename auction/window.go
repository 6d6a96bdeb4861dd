package auction

import (
	"fmt"
	"time"

	"github.com/coordination-labs/auction-sdk/types"
)

// WindowState tracks a window's lifecycle. Transitions are strictly forward:
// Open -> Active -> Sealing -> Sealed. Sealed is terminal and irreversible.
type WindowState uint8

const (
	WindowOpen WindowState = iota
	WindowActive
	WindowSealing
	WindowSealed
)

func (s WindowState) String() string {
	switch s {
	case WindowOpen:
		return "open"
	case WindowActive:
		return "active"
	case WindowSealing:
		return "sealing"
	case WindowSealed:
		return "sealed"
	default:
		return fmt.Sprintf("window_state(%d)", uint8(s))
	}
}

// AuctionWindow is a bounded-time, bounded-capacity auction round. Window ids
// are monotonic across every auction type. Counter fields are guarded by the
// owning lane's lock.
type AuctionWindow struct {
	WindowID        uint64
	StartTime       time.Time
	Duration        time.Duration
	MaxTransactions uint32
	TotalGasLimit   uint64
	AuctionType     types.AuctionType

	state         WindowState
	admittedCount uint32
	admittedGas   uint64
}

func newWindow(id uint64, auctionType types.AuctionType, cfg WindowConfig, now time.Time) *AuctionWindow {
	return &AuctionWindow{
		WindowID:        id,
		StartTime:       now,
		Duration:        cfg.Duration,
		MaxTransactions: cfg.MaxTransactions,
		TotalGasLimit:   cfg.TotalGasLimit,
		AuctionType:     auctionType,
		state:           WindowOpen,
	}
}

// Deadline is the instant after which the timer driver seals the window.
func (w *AuctionWindow) Deadline() time.Time {
	return w.StartTime.Add(w.Duration)
}

// State returns the lifecycle state. Read under the owning lane's lock for a
// consistent view with the admission counters.
func (w *AuctionWindow) State() WindowState {
	return w.state
}

// capacityReached reports whether admissions alone require sealing.
func (w *AuctionWindow) capacityReached() bool {
	return w.admittedCount >= w.MaxTransactions || w.admittedGas >= w.TotalGasLimit
}

// recordAdmission accounts for an admitted transaction and reports whether
// the window hit a capacity bound as a result.
func (w *AuctionWindow) recordAdmission(tx *types.BidTransaction) bool {
	w.admittedCount++
	w.admittedGas += tx.GasLimit
	return w.capacityReached()
}

// AuctionResult is the immutable outcome of a sealed window, created exactly
// once. WinningTransactions are in final auction order; the merkle root is a
// fresh commitment over exactly the included set.
type AuctionResult struct {
	WindowID                uint64                  `json:"window_id"`
	AuctionType             types.AuctionType       `json:"auction_type"`
	WinningTransactions     []*types.BidTransaction `json:"winning_transactions"`
	TotalRevenue            uint64                  `json:"total_revenue"`
	CoordinatorRevenueShare uint64                  `json:"coordinator_revenue_share"`
	PartnerRevenueShare     uint64                  `json:"partner_revenue_share"`
	TotalGasUsed            uint64                  `json:"total_gas_used"`
	MerkleRoot              [32]byte                `json:"merkle_root"`
	SealedAt                time.Time               `json:"sealed_at"`
}

// RevenueSplit is the slice of a result fed to the economic coordinator.
type RevenueSplit struct {
	WindowID                uint64 `json:"window_id"`
	TotalRevenue            uint64 `json:"total_revenue"`
	CoordinatorRevenueShare uint64 `json:"coordinator_revenue_share"`
	PartnerRevenueShare     uint64 `json:"partner_revenue_share"`
}

// Split extracts the revenue feed entry for the result.
func (r *AuctionResult) Split() RevenueSplit {
	return RevenueSplit{
		WindowID:                r.WindowID,
		TotalRevenue:            r.TotalRevenue,
		CoordinatorRevenueShare: r.CoordinatorRevenueShare,
		PartnerRevenueShare:     r.PartnerRevenueShare,
	}
}
