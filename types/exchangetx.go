package types

import (
	"encoding/hex"

	"github.com/nimbusdex/matcher/num"
)

// ExchangeTransaction is the on-chain settlement transaction the
// OrderBookActor constructs for every crossing. The blockchain eventually
// confirms (or rejects) it independently of the matcher's own event log,
// which stays authoritative for order state (spec.md §7).
type ExchangeTransaction struct {
	ID           TxID
	BuyOrder     *Order
	SellOrder    *Order
	Pair         AssetPair
	Price        *num.Uint
	Amount       *num.Uint
	BuyMatcherFee  *num.Uint
	SellMatcherFee *num.Uint
	Timestamp    uint64
}

// TxID is the blockchain-assigned id of a broadcast ExchangeTransaction,
// computed by the same canonical-bytes + digest scheme as Order.ID.
type TxID [32]byte

func (id TxID) String() string {
	return hex.EncodeToString(id[:])
}

// BriefAssetDescription is the subset of on-chain asset metadata the
// matcher needs: display decimals and whether a script gates transfers.
type BriefAssetDescription struct {
	Name      string
	Decimals  uint8
	HasScript bool
}

// ScriptResultKind tags the outcome of BlockchainContext.RunScript.
type ScriptResultKind uint8

const (
	ScriptAllowed ScriptResultKind = iota
	ScriptDenied
	ScriptError
)

// ScriptResult is the outcome of evaluating an account or asset script
// against a candidate transaction.
type ScriptResult struct {
	Kind   ScriptResultKind
	Reason string
}

func Allowed() ScriptResult { return ScriptResult{Kind: ScriptAllowed} }

func Denied(reason string) ScriptResult { return ScriptResult{Kind: ScriptDenied, Reason: reason} }

func ScriptErr(reason string) ScriptResult { return ScriptResult{Kind: ScriptError, Reason: reason} }
