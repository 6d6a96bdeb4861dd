package auction

import (
	"bytes"
	"crypto/sha256"

	"github.com/coordination-labs/auction-sdk/types"
)

type (
	// EligibilityHandler reports whether a transaction may win a window of
	// this policy's type. Ineligible transactions stay pending but are
	// skipped by the sealer.
	EligibilityHandler func(tx *types.BidTransaction) bool

	// SealOrdering returns the comparator fixing the final order of a
	// window's candidates. The seed is the lane's commitment root captured
	// at close; policies that do not re-break ties ignore it.
	SealOrdering func(seed [32]byte) func(a, b *types.BidTransaction) int
)

// Policy is one row of the closed per-type policy table: eligibility filter,
// seal-time comparator, visibility, and timing behavior. New auction types
// are added by extending the table, nothing is open-ended.
type Policy struct {
	Type types.AuctionType

	// Eligible filters seal candidates. Nil admits everything.
	Eligible EligibilityHandler

	// Order fixes the final candidate order at seal time. Nil keeps the
	// standard auction comparator.
	Order SealOrdering

	// HideUntilSealed refuses live snapshot and proof queries for the lane:
	// the pending order becomes visible only through sealed results.
	HideUntilSealed bool

	// Immediate seals a micro-window as soon as a transaction is admitted,
	// bypassing the window timer.
	Immediate bool
}

// BridgeSecurityFloor is the minimum security score a transaction needs to
// win a cross-chain bridge window. Partner chains carry the bridge security
// score in the priority score field.
const BridgeSecurityFloor = 250

// defaultPolicies builds the policy table over the closed variant set.
func defaultPolicies() map[types.AuctionType]Policy {
	return map[types.AuctionType]Policy{
		types.StandardExecution: {
			Type: types.StandardExecution,
		},
		types.CrossChainBridge: {
			Type: types.CrossChainBridge,
			// Below-floor transactions are excluded regardless of bid rate.
			Eligible: func(tx *types.BidTransaction) bool {
				return tx.PriorityScore >= BridgeSecurityFloor
			},
		},
		types.MEVProtection: {
			Type:            types.MEVProtection,
			HideUntilSealed: true,
			Order:           seededOrdering,
		},
		types.GovernanceVote: {
			Type:  types.GovernanceVote,
			Order: func([32]byte) func(a, b *types.BidTransaction) int { return stakeWeightOrdering },
		},
		types.EmergencyPriority: {
			Type:      types.EmergencyPriority,
			Immediate: true,
		},
	}
}

// seededOrdering keeps the effective bid rate as the primary key but replaces
// every secondary tie-break with a digest keyed by the sealed root. Ties
// between equal-rate bids are therefore unpredictable until the window
// closes, which removes the payoff of last-moment reordering.
func seededOrdering(seed [32]byte) func(a, b *types.BidTransaction) int {
	return func(a, b *types.BidTransaction) int {
		switch aRate, bRate := a.EffectiveBidRate(), b.EffectiveBidRate(); {
		case aRate.GT(bRate):
			return -1
		case aRate.LT(bRate):
			return 1
		}

		aKey := seededTieKey(seed, a.TxID)
		bKey := seededTieKey(seed, b.TxID)
		if c := bytes.Compare(aKey[:], bKey[:]); c != 0 {
			return c
		}
		return bytes.Compare(a.TxID[:], b.TxID[:])
	}
}

func seededTieKey(seed [32]byte, id types.TxID) [32]byte {
	h := sha256.New()
	h.Write(seed[:])
	h.Write(id[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// stakeWeightOrdering replaces the bid-rate comparator for governance votes:
// the stake bond posted as the bid amount decides, higher first, ties by
// timestamp then tx id.
func stakeWeightOrdering(a, b *types.BidTransaction) int {
	switch {
	case a.BidAmount > b.BidAmount:
		return -1
	case a.BidAmount < b.BidAmount:
		return 1
	}

	switch {
	case a.Timestamp < b.Timestamp:
		return -1
	case a.Timestamp > b.Timestamp:
		return 1
	}

	return bytes.Compare(a.TxID[:], b.TxID[:])
}
