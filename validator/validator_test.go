package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdex/matcher/blockchain/stub"
	"github.com/nimbusdex/matcher/core/apperrors"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

var testPair = types.NewAssetPair("A", "W")

func mkOrder(side types.Side, amount, price, fee, timestamp, expiration uint64, version types.OrderVersion) *types.Order {
	o := &types.Order{
		Owner:      types.PublicKey{1},
		Pair:       testPair,
		Side:       side,
		Amount:     num.NewUint(amount),
		Price:      num.NewUint(price),
		MatcherFee: num.NewUint(fee),
		FeeAsset:   testPair.PriceAsset,
		Timestamp:  timestamp,
		Expiration: expiration,
		Version:    version,
	}
	o.ID = o.ComputeID()
	return o
}

func defaultSettings() Settings {
	return Settings{
		AllowedPairs:         map[types.AssetPair]struct{}{testPair: {}},
		AllowedOrderVersions: map[types.OrderVersion]struct{}{types.OrderV3: {}},
		MinExpiryWindow:      10,
		MaxExpiryWindow:      10_000,
	}
}

func nowAt(ts uint64) func() uint64 {
	return func() uint64 { return ts }
}

func TestValidateAcceptsWellFormedOrder(t *testing.T) {
	v := New(defaultSettings(), nil, nil, nil, nil, nowAt(100))
	o := mkOrder(types.Buy, 100, 2e8, 1000, 100, 1000, types.OrderV3)
	assert.NoError(t, v.Validate(context.Background(), o))
}

func TestValidateRejectsUnknownPair(t *testing.T) {
	settings := defaultSettings()
	settings.AllowedPairs = map[types.AssetPair]struct{}{}
	v := New(settings, nil, nil, nil, nil, nowAt(100))
	o := mkOrder(types.Buy, 100, 2e8, 1000, 100, 1000, types.OrderV3)
	err := v.Validate(context.Background(), o)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalid))
}

func TestValidateRejectsUnsupportedVersion(t *testing.T) {
	v := New(defaultSettings(), nil, nil, nil, nil, nowAt(100))
	o := mkOrder(types.Buy, 100, 2e8, 1000, 100, 1000, types.OrderV1)
	err := v.Validate(context.Background(), o)
	require.Error(t, err)
}

func TestValidateRejectsAlreadyExpired(t *testing.T) {
	v := New(defaultSettings(), nil, nil, nil, nil, nowAt(2000))
	o := mkOrder(types.Buy, 100, 2e8, 1000, 100, 1000, types.OrderV3)
	err := v.Validate(context.Background(), o)
	require.Error(t, err)
}

func TestValidateRejectsBlacklistedAddress(t *testing.T) {
	settings := defaultSettings()
	settings.BlacklistedAddresses = map[types.PublicKey]struct{}{{1}: {}}
	v := New(settings, nil, nil, nil, nil, nowAt(100))
	o := mkOrder(types.Buy, 100, 2e8, 1000, 100, 1000, types.OrderV3)
	err := v.Validate(context.Background(), o)
	require.Error(t, err)
}

func TestValidateRejectsScriptDenial(t *testing.T) {
	chain := stub.New()
	pk := types.PublicKey{1}
	chain.SetScriptResult("addr:"+string(pk[:]), types.Denied("frozen"))
	v := New(defaultSettings(), nil, nil, chain, nil, nowAt(100))
	o := mkOrder(types.Buy, 100, 2e8, 1000, 100, 1000, types.OrderV3)
	err := v.Validate(context.Background(), o)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalid))
}

func TestValidateRejectsTickMisalignment(t *testing.T) {
	rules := func(types.AssetPair) types.TickSize { return types.EnabledTickSize(num.NewUint(100)) }
	v := New(defaultSettings(), nil, nil, nil, rules, nowAt(100))
	o := mkOrder(types.Buy, 100, 250, 1000, 100, 1000, types.OrderV3)
	err := v.Validate(context.Background(), o)
	require.Error(t, err)
}
