// Package stub is an in-memory blockchain.Context usable for integration
// tests and local development. It is not a production chain client; a
// real client is an external collaborator per spec.md §1.
package stub

import (
	"context"
	"sync"

	"github.com/nimbusdex/matcher/blockchain"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

// Chain is a programmable in-memory blockchain.Context: tests set
// balances and script outcomes directly instead of talking to a network.
type Chain struct {
	mu sync.Mutex

	balances    map[types.PublicKey]map[types.AssetID]*num.Uint
	descriptors map[types.AssetID]*types.BriefAssetDescription
	scripts     map[string]types.ScriptResult
	forged      map[types.TxID]bool
	forgedOrder map[types.OrderID]bool
	broadcast   []*types.ExchangeTransaction
	features    map[string]bool
}

func New() *Chain {
	return &Chain{
		balances:    make(map[types.PublicKey]map[types.AssetID]*num.Uint),
		descriptors: make(map[types.AssetID]*types.BriefAssetDescription),
		scripts:     make(map[string]types.ScriptResult),
		forged:      make(map[types.TxID]bool),
		forgedOrder: make(map[types.OrderID]bool),
		features:    make(map[string]bool),
	}
}

func (c *Chain) SetBalance(addr types.PublicKey, asset types.AssetID, amount *num.Uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balances[addr] == nil {
		c.balances[addr] = make(map[types.AssetID]*num.Uint)
	}
	c.balances[addr][asset] = amount
}

func (c *Chain) SpendableBalance(_ context.Context, addr types.PublicKey, asset types.AssetID) (*num.Uint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if byAsset, ok := c.balances[addr]; ok {
		if v, ok := byAsset[asset]; ok {
			return v.Clone(), nil
		}
	}
	return num.NewUint(0), nil
}

func (c *Chain) SetAssetDescription(asset types.AssetID, desc *types.BriefAssetDescription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptors[asset] = desc
}

func (c *Chain) AssetDescription(asset types.AssetID) (*types.BriefAssetDescription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.descriptors[asset]
	return d, ok
}

func (c *Chain) SetScriptResult(key string, result types.ScriptResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[key] = result
}

func (c *Chain) HasScript(_ context.Context, subject blockchain.Subject) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.scripts[subjectKey(subject)]
	return ok, nil
}

func (c *Chain) RunScript(_ context.Context, subject blockchain.Subject, _ *types.ExchangeTransaction) (types.ScriptResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if result, ok := c.scripts[subjectKey(subject)]; ok {
		return result, nil
	}
	return types.Allowed(), nil
}

func subjectKey(s blockchain.Subject) string {
	if s.Address != nil {
		return "addr:" + s.Address.String()
	}
	if s.Asset != nil {
		return "asset:" + s.Asset.String()
	}
	return ""
}

func (c *Chain) BroadcastTx(_ context.Context, tx *types.ExchangeTransaction) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcast = append(c.broadcast, tx)
	c.forged[tx.ID] = true
	return true, nil
}

func (c *Chain) Broadcasted() []*types.ExchangeTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.ExchangeTransaction(nil), c.broadcast...)
}

func (c *Chain) WasForged(_ context.Context, txID types.TxID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forged[txID], nil
}

func (c *Chain) SetFeatureActivated(id string, activated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.features[id] = activated
}

func (c *Chain) IsFeatureActivated(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.features[id], nil
}

func (c *Chain) SetOrderForged(id types.OrderID, forged bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forgedOrder[id] = forged
}

func (c *Chain) ForgedOrder(_ context.Context, id types.OrderID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forgedOrder[id], nil
}

var _ blockchain.Context = (*Chain)(nil)
