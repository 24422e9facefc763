// Package blockchain defines the matcher's one external collaborator
// interface (spec.md §6): balance lookup, asset metadata, script
// evaluation, and transaction broadcast against the underlying chain. The
// matcher never implements a real chain client itself (blockchain/stub
// is an in-memory stand-in for tests and local development).
package blockchain

import (
	"context"

	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

//go:generate go run github.com/golang/mock/mockgen -destination mocks/context_mock.go -package mocks github.com/nimbusdex/matcher/blockchain Context

// Context is the BlockchainContext of spec.md §6, consumed by
// AddressActor (balance), OrderValidator (script) and
// ExchangeTransactionBroadcaster (broadcast, inclusion polling).
type Context interface {
	WasForged(ctx context.Context, txID types.TxID) (bool, error)
	BroadcastTx(ctx context.Context, tx *types.ExchangeTransaction) (bool, error)
	IsFeatureActivated(ctx context.Context, id string) (bool, error)
	AssetDescription(asset types.AssetID) (*types.BriefAssetDescription, bool)
	HasScript(ctx context.Context, subject Subject) (bool, error)
	RunScript(ctx context.Context, subject Subject, tx *types.ExchangeTransaction) (types.ScriptResult, error)
	SpendableBalance(ctx context.Context, address types.PublicKey, asset types.AssetID) (*num.Uint, error)
	ForgedOrder(ctx context.Context, orderID types.OrderID) (bool, error)
}

// Subject is either an account (address) or an asset, the two script
// evaluation targets spec.md §6 names together as "account/asset".
type Subject struct {
	Address *types.PublicKey
	Asset   *types.AssetID
}

func AddressSubject(addr types.PublicKey) Subject { return Subject{Address: &addr} }
func AssetSubject(asset types.AssetID) Subject     { return Subject{Asset: &asset} }
