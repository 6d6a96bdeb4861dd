package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"

	"cosmossdk.io/math"
)

// TxID is the canonical 32-byte transaction identity.
type TxID [32]byte

// String returns the lowercase hex form of the id.
func (id TxID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalJSON encodes the id as a hex string.
func (id TxID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes the hex string form.
func (id *TxID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := TxIDFromString(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// TxIDFromString parses the hex form produced by String.
func TxIDFromString(s string) (TxID, error) {
	var id TxID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, ErrInvalidTransaction.Wrapf("tx id %q: %s", s, err)
	}
	if len(raw) != len(id) {
		return id, ErrInvalidTransaction.Wrapf("tx id must be %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// rateScale is the fixed-point scale for effective bid rates. It matches the
// 18-decimal precision of math.LegacyDec so rates and revenue ratios live in
// the same arithmetic.
var rateScale = math.NewIntWithDecimal(1, 18)

// BidTransaction is a bid submitted by a partner chain. It is immutable once
// validated: the pending tree owns it until it is sealed into a result,
// withdrawn, or expired.
type BidTransaction struct {
	TxID          TxID        `json:"tx_id"`
	ChainID       uint64      `json:"chain_id"`
	BidAmount     uint64      `json:"bid_amount"`
	GasLimit      uint64      `json:"gas_limit"`
	DataSize      uint32      `json:"data_size"`
	PriorityScore uint16      `json:"priority_score"`
	Timestamp     uint64      `json:"timestamp"`
	Nonce         uint64      `json:"nonce"`
	Sender        string      `json:"sender"`
	Signature     []byte      `json:"signature,omitempty"`
	AuctionType   AuctionType `json:"auction_type"`
	TargetChain   uint64      `json:"target_chain,omitempty"`
}

// NewBidTransaction returns a transaction with the default priority score and
// the current timestamp.
func NewBidTransaction(id TxID, chainID, bidAmount, gasLimit uint64, dataSize uint32, sender string) *BidTransaction {
	return &BidTransaction{
		TxID:          id,
		ChainID:       chainID,
		BidAmount:     bidAmount,
		GasLimit:      gasLimit,
		DataSize:      dataSize,
		PriorityScore: DefaultPriorityScore,
		Timestamp:     uint64(time.Now().Unix()),
		Sender:        sender,
		AuctionType:   StandardExecution,
	}
}

// EffectiveBidRate returns the bid amount normalized by resource cost,
// scaled by 10^18 and truncated. Integer arithmetic only: independent
// recomputation must yield an identical ordering and root, so floating point
// is never used. The rate is undefined when gas limit or data size is zero;
// such transactions are rejected by Validate before they can be ordered.
func (tx *BidTransaction) EffectiveBidRate() math.Int {
	if tx.GasLimit == 0 || tx.DataSize == 0 {
		return math.ZeroInt()
	}

	cost := math.NewIntFromUint64(tx.GasLimit).Mul(math.NewIntFromUint64(uint64(tx.DataSize)))
	return math.NewIntFromUint64(tx.BidAmount).Mul(rateScale).Quo(cost)
}

// Hash returns the canonical SHA-256 digest of the transaction: fixed-width
// big-endian fields in declaration order. Signatures are excluded so the
// digest doubles as the signing payload.
func (tx *BidTransaction) Hash() [32]byte {
	h := sha256.New()
	h.Write(tx.TxID[:])

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], tx.ChainID)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], tx.BidAmount)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], tx.GasLimit)
	h.Write(buf[:])
	binary.BigEndian.PutUint32(buf[:4], tx.DataSize)
	h.Write(buf[:4])
	binary.BigEndian.PutUint16(buf[:2], tx.PriorityScore)
	h.Write(buf[:2])
	binary.BigEndian.PutUint64(buf[:], tx.Timestamp)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], tx.Nonce)
	h.Write(buf[:])
	h.Write([]byte(tx.Sender))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CompareBids defines the auction total order. It returns -1 when a ranks
// before b (a wins first), 1 when a ranks after b, and 0 only when a and b
// are the same transaction:
//
//  1. higher effective bid rate
//  2. higher priority score
//  3. earlier timestamp
//  4. lexicographically smaller tx id
//
// The tx id tiebreak makes the order total, so no comparison is ever left
// unresolved.
func CompareBids(a, b *BidTransaction) int {
	switch aRate, bRate := a.EffectiveBidRate(), b.EffectiveBidRate(); {
	case aRate.GT(bRate):
		return -1
	case aRate.LT(bRate):
		return 1
	}

	switch {
	case a.PriorityScore > b.PriorityScore:
		return -1
	case a.PriorityScore < b.PriorityScore:
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
