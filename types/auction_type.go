package types

import "fmt"

// AuctionType partitions transactions into independently windowed auctions.
// The set is closed: adding a variant requires a policy table entry in the
// auction package, so new types are bounded, reviewable additions.
type AuctionType uint8

const (
	// StandardExecution is the default auction for regular execution bids.
	StandardExecution AuctionType = iota

	// CrossChainBridge auctions bridge operations and enforces a security
	// score floor on top of the standard comparator.
	CrossChainBridge

	// MEVProtection auctions hide the pending order until the window seals
	// and re-break ties with a seed derived from the sealed root.
	MEVProtection

	// GovernanceVote auctions order by stake weight instead of bid rate.
	GovernanceVote

	// EmergencyPriority transactions bypass the window timer and seal in an
	// immediate micro-window.
	EmergencyPriority
)

// AuctionTypes lists every variant in declaration order.
var AuctionTypes = []AuctionType{
	StandardExecution,
	CrossChainBridge,
	MEVProtection,
	GovernanceVote,
	EmergencyPriority,
}

var auctionTypeNames = map[AuctionType]string{
	StandardExecution: "standard_execution",
	CrossChainBridge:  "cross_chain_bridge",
	MEVProtection:     "mev_protection",
	GovernanceVote:    "governance_vote",
	EmergencyPriority: "emergency_priority",
}

func (t AuctionType) String() string {
	if name, ok := auctionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("auction_type(%d)", uint8(t))
}

// Valid reports whether t is part of the closed variant set.
func (t AuctionType) Valid() bool {
	_, ok := auctionTypeNames[t]
	return ok
}

// ParseAuctionType parses the string form produced by String.
func ParseAuctionType(s string) (AuctionType, error) {
	for t, name := range auctionTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, ErrUnknownAuctionType.Wrapf("%q", s)
}
