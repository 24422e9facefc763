package store

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

const (
	ratePrefix    = "rate/"
	decimalPrefix = "decimals/"

	// DefaultDecimals is what AssetDecimalsCache returns when the
	// blockchain context lookup fails (spec.md §4.9).
	DefaultDecimals uint8 = 8
)

// RateCache is an in-memory (hashicorp/golang-lru) cache of fee-asset
// rates in front of a durable KVStore backing, so OrderValidator's
// "fee >= minimum given rate cache" stage never blocks on disk for a hot
// asset.
type RateCache struct {
	kv  *KVStore
	lru *lru.Cache
}

func NewRateCache(kv *KVStore, size int) (*RateCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &RateCache{kv: kv, lru: c}, nil
}

// Set atomically updates both the in-memory and durable layers so a
// restart sees the same rate a running process last observed.
func (c *RateCache) Set(asset types.AssetID, microRate uint64) error {
	if err := c.kv.Put(rateKey(asset), []byte(strconv.FormatUint(microRate, 10))); err != nil {
		return err
	}
	c.lru.Add(asset, microRate)
	return nil
}

func (c *RateCache) Get(asset types.AssetID) (uint64, bool) {
	if v, ok := c.lru.Get(asset); ok {
		return v.(uint64), true
	}
	data, ok, err := c.kv.Get(rateKey(asset))
	if err != nil || !ok {
		return 0, false
	}
	rate, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false
	}
	c.lru.Add(asset, rate)
	return rate, true
}

func rateKey(asset types.AssetID) []byte {
	return []byte(ratePrefix + string(asset))
}

// AssetDecimalsLookup is the subset of BlockchainContext AssetDecimalsCache
// needs to populate lazily; satisfied by blockchain.Context.
type AssetDecimalsLookup interface {
	AssetDescription(asset types.AssetID) (*types.BriefAssetDescription, bool)
}

// AssetDecimalsCache caches an asset's display decimals, populated lazily
// on first lookup and defaulting to DefaultDecimals (logged) when the
// chain lookup fails (spec.md §4.9).
type AssetDecimalsCache struct {
	kv     *KVStore
	lru    *lru.Cache
	chain  AssetDecimalsLookup
	log    *logging.Logger
}

func NewAssetDecimalsCache(kv *KVStore, chain AssetDecimalsLookup, log *logging.Logger, size int) (*AssetDecimalsCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &AssetDecimalsCache{kv: kv, lru: c, chain: chain, log: log}, nil
}

func (c *AssetDecimalsCache) Decimals(asset types.AssetID) uint8 {
	if v, ok := c.lru.Get(asset); ok {
		return v.(uint8)
	}
	if data, ok, err := c.kv.Get(decimalsKey(asset)); err == nil && ok {
		d := uint8(data[0])
		c.lru.Add(asset, d)
		return d
	}
	desc, ok := c.chain.AssetDescription(asset)
	if !ok {
		c.log.Warn("asset decimals lookup failed, defaulting", zap.String("asset", asset.String()), zap.Uint8("default", DefaultDecimals))
		return DefaultDecimals
	}
	c.lru.Add(asset, desc.Decimals)
	_ = c.kv.Put(decimalsKey(asset), []byte{desc.Decimals})
	return desc.Decimals
}

func decimalsKey(asset types.AssetID) []byte {
	return []byte(decimalPrefix + string(asset))
}

// ScaleToPriceConstant converts an amount expressed in asset's own
// decimals to the matcher's fixed PriceConstant (10^8) precision, the
// normalization spec.md §3 requires of every Order.Price.
func ScaleToPriceConstant(amount *num.Uint, decimals uint8) *num.Uint {
	if decimals == 8 {
		return amount.Clone()
	}
	if decimals < 8 {
		scale := num.NewUint(1)
		for i := uint8(0); i < 8-decimals; i++ {
			scale = num.NewUint(0).Mul(scale, num.NewUint(10))
		}
		return num.NewUint(0).Mul(amount, scale)
	}
	scale := num.NewUint(1)
	for i := uint8(0); i < decimals-8; i++ {
		scale = num.NewUint(0).Mul(scale, num.NewUint(10))
	}
	return num.NewUint(0).Div(amount, scale)
}
