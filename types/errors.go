package types

import "cosmossdk.io/errors"

// Codespace for all errors returned by the auction coordinator.
const Codespace = "auctionsdk"

var (
	// ErrInvalidTransaction is returned when a transaction fails format
	// validation and is rejected before it reaches any tree.
	ErrInvalidTransaction = errors.Register(Codespace, 2, "invalid transaction")

	// ErrInvalidSignature is returned when a transaction carries a signature
	// that does not verify against its sender key.
	ErrInvalidSignature = errors.Register(Codespace, 3, "invalid signature")

	// ErrBidTooLow is returned when a bid is below the chain's minimum.
	ErrBidTooLow = errors.Register(Codespace, 4, "bid below minimum")

	// ErrDuplicateTransaction is returned when inserting a tx id that is
	// already pending.
	ErrDuplicateTransaction = errors.Register(Codespace, 5, "duplicate transaction")

	// ErrTxNotFound is returned when removing or proving a tx id that is not
	// pending. A withdrawal that loses the race against an in-flight seal
	// observes this error.
	ErrTxNotFound = errors.Register(Codespace, 6, "transaction not found")

	// ErrWindowNotFound is returned when a window id is unknown.
	ErrWindowNotFound = errors.Register(Codespace, 7, "auction window not found")

	// ErrAlreadySealed is returned when sealing a window that has already
	// produced a result. The existing result is never mutated.
	ErrAlreadySealed = errors.Register(Codespace, 8, "auction window already sealed")

	// ErrWindowNotSealable is returned when a seal is requested for a window
	// that is neither Active nor Sealing.
	ErrWindowNotSealable = errors.Register(Codespace, 9, "auction window not sealable")

	// ErrChainUnknown is returned when a transaction references a partner
	// chain that was never registered.
	ErrChainUnknown = errors.Register(Codespace, 10, "partner chain unknown")

	// ErrRateLimited is returned when a partner chain exceeds its admission
	// rate. The transaction never reaches the tree.
	ErrRateLimited = errors.Register(Codespace, 11, "partner chain rate limited")

	// ErrChainUnhealthy is returned when a partner chain's health state
	// refuses admission.
	ErrChainUnhealthy = errors.Register(Codespace, 12, "partner chain unhealthy")

	// ErrIntegrityHalted is returned by every mutation after a commitment
	// tree has failed a structural invariant check. The instance accepts no
	// further writes until replaced.
	ErrIntegrityHalted = errors.Register(Codespace, 13, "commitment tree halted on integrity failure")

	// ErrProofUnavailable is returned when a proof is requested against a
	// root the coordinator does not hold, or for a lane that hides its
	// pending set until sealing.
	ErrProofUnavailable = errors.Register(Codespace, 14, "proof unavailable for requested root")

	// ErrUnknownAuctionType is returned when parsing an auction type that is
	// not part of the closed variant set.
	ErrUnknownAuctionType = errors.Register(Codespace, 15, "unknown auction type")
)
