package types

import (
	"crypto/ed25519"
	"encoding/hex"
)

const (
	// MaxPriorityScore bounds the QoS priority score.
	MaxPriorityScore = 1000

	// DefaultPriorityScore is assigned when a submitter does not set one.
	DefaultPriorityScore = 500
)

// Validate checks the transaction's format. It rejects anything with a zero
// gas limit or data size (the effective bid rate would be undefined), an
// unknown auction type, an out-of-range priority score, or a missing sender.
// Semantic validation beyond format and signature is out of scope.
func (tx *BidTransaction) Validate() error {
	if tx.TxID == (TxID{}) {
		return ErrInvalidTransaction.Wrap("tx id is zero")
	}

	if tx.GasLimit == 0 {
		return ErrInvalidTransaction.Wrap("gas limit must be positive")
	}

	if tx.DataSize == 0 {
		return ErrInvalidTransaction.Wrap("data size must be positive")
	}

	if tx.PriorityScore > MaxPriorityScore {
		return ErrInvalidTransaction.Wrapf("priority score %d exceeds %d", tx.PriorityScore, MaxPriorityScore)
	}

	if tx.Sender == "" {
		return ErrInvalidTransaction.Wrap("sender is empty")
	}

	if !tx.AuctionType.Valid() {
		return ErrUnknownAuctionType.Wrapf("%d", tx.AuctionType)
	}

	if len(tx.Signature) > 0 {
		return tx.VerifySignature()
	}

	return nil
}

// VerifySignature checks the attached ed25519 signature over the canonical
// digest. The sender field carries the hex-encoded public key.
func (tx *BidTransaction) VerifySignature() error {
	pub, err := hex.DecodeString(tx.Sender)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return ErrInvalidSignature.Wrapf("sender %q is not an ed25519 public key", tx.Sender)
	}

	if len(tx.Signature) != ed25519.SignatureSize {
		return ErrInvalidSignature.Wrapf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(tx.Signature))
	}

	digest := tx.Hash()
	if !ed25519.Verify(pub, digest[:], tx.Signature) {
		return ErrInvalidSignature.Wrap("signature does not verify against sender key")
	}

	return nil
}

// Sign attaches an ed25519 signature over the canonical digest and sets the
// sender to the hex form of the public key. Used by tests and client tooling.
func (tx *BidTransaction) Sign(priv ed25519.PrivateKey) {
	tx.Sender = hex.EncodeToString(priv.Public().(ed25519.PublicKey))
	digest := tx.Hash()
	tx.Signature = ed25519.Sign(priv, digest[:])
}
