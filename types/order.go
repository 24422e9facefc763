package types

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/sha3"

	"github.com/nimbusdex/matcher/num"
)

// PriceConstant is the implicit fixed-point multiplier every Order.Price is
// normalized to, matching the reference matcher's price representation.
const PriceConstant uint64 = 1e8

// Side is the direction of an order relative to the amount asset.
type Side uint8

const (
	SideUnspecified Side = iota
	Buy
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unspecified"
	}
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderVersion enumerates the signed-order wire formats the validator
// accepts; newer versions add fields (e.g. priceMode) without breaking
// older signatures.
type OrderVersion uint8

const (
	OrderV1 OrderVersion = 1
	OrderV2 OrderVersion = 2
	OrderV3 OrderVersion = 3
	OrderV4 OrderVersion = 4
)

// PublicKey is an owner's verification key, hex-encoded by the caller.
type PublicKey [32]byte

func (k PublicKey) String() string {
	return string(k[:])
}

// OrderID is the SHA3-256 digest of an order's canonical byte encoding.
type OrderID [32]byte

func (id OrderID) String() string {
	return string(id[:])
}

func (id OrderID) Less(other OrderID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

var ErrInvalidOrder = errors.New("order invariant violated")

// Order is the immutable, signed intent a client submits. It never changes
// after construction; all mutable state (remaining amount, status) lives
// alongside it in LimitOrder / OrderDB.
type Order struct {
	ID          OrderID
	Owner       PublicKey
	Pair        AssetPair
	Side        Side
	Amount      *num.Uint
	Price       *num.Uint
	MatcherFee  *num.Uint
	FeeAsset    AssetID
	Timestamp   uint64
	Expiration  uint64
	Version     OrderVersion
	Signature   []byte
}

// CanonicalBytes returns the deterministic byte encoding an Order's ID and
// signature are computed over. Field order is fixed and versioned by
// o.Version so old signatures keep verifying after the layout grows.
func (o *Order) CanonicalBytes() []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, o.Owner[:]...)
	buf = append(buf, []byte(o.Pair.AmountAsset)...)
	buf = append(buf, 0)
	buf = append(buf, []byte(o.Pair.PriceAsset)...)
	buf = append(buf, 0)
	buf = append(buf, byte(o.Side))
	buf = appendUint64(buf, o.Amount.Uint64())
	buf = appendUint64(buf, o.Price.Uint64())
	buf = appendUint64(buf, o.MatcherFee.Uint64())
	buf = append(buf, []byte(o.FeeAsset)...)
	buf = append(buf, 0)
	buf = appendUint64(buf, o.Timestamp)
	buf = appendUint64(buf, o.Expiration)
	buf = append(buf, byte(o.Version))
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// ComputeID derives the order id as sha3-256 of the canonical bytes.
func (o *Order) ComputeID() OrderID {
	sum := sha3.Sum256(o.CanonicalBytes())
	return OrderID(sum)
}

// Validate checks the structural invariants spec.md §3 requires of every
// Order regardless of validator policy: positive amount/price, expiration
// strictly after timestamp, and an id consistent with its contents.
func (o *Order) Validate() error {
	if o.Amount == nil || o.Amount.IsZero() {
		return ErrInvalidOrder
	}
	if o.Price == nil || o.Price.IsZero() {
		return ErrInvalidOrder
	}
	if o.Expiration <= o.Timestamp {
		return ErrInvalidOrder
	}
	if o.ID != o.ComputeID() {
		return ErrInvalidOrder
	}
	return nil
}

// LimitOrder is an Order resting on (or passing through) an OrderBook,
// carrying the mutable remaining amounts the matching algorithm consumes.
type LimitOrder struct {
	Order           *Order
	AmountRemaining *num.Uint
	FeeRemaining    *num.Uint
}

func NewLimitOrder(o *Order) *LimitOrder {
	return &LimitOrder{
		Order:           o,
		AmountRemaining: o.Amount.Clone(),
		FeeRemaining:    o.MatcherFee.Clone(),
	}
}

func (l *LimitOrder) IsExhausted() bool {
	return l.AmountRemaining.IsZero()
}
