// Package validator implements the OrderValidator stage pipeline of
// spec.md §4.7: a stateless set of checks applied before an order is
// accepted into the queue, each stage contributing to one property-keyed
// apperrors.Errors accumulator so a rejected client sees a failure for
// every violated property at once rather than just the first. An unknown
// pair ends the settings stage early, and a script evaluation error or a
// chain lookup failure is returned on its own.
package validator

import (
	"context"

	"github.com/nimbusdex/matcher/blockchain"
	"github.com/nimbusdex/matcher/core/apperrors"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/store"
	"github.com/nimbusdex/matcher/types"
)

// Settings is the matcher-settings-aware stage's static policy, one field
// per configuration key named in spec.md §6. Empty maps mean "no
// restriction" except AllowedPairs/AllowedOrderVersions, which must be
// populated for any order to pass.
type Settings struct {
	AllowedPairs         map[types.AssetPair]struct{}
	AllowedOrderVersions map[types.OrderVersion]struct{}
	AllowedFeeAssets     map[types.AssetID]struct{}
	BlacklistedAssets    map[types.AssetID]struct{}
	BlacklistedAddresses map[types.PublicKey]struct{}

	// MaxTimestampSkew bounds now-timestamp (either direction); 0 disables.
	MaxTimestampSkew uint64
	MinExpiryWindow  uint64
	MaxExpiryWindow  uint64

	// DeviationBps bounds |price-bestOpposite|*10000/bestOpposite; 0 disables.
	DeviationBps uint64
}

// MarketView is the read-only subset of MatcherActor the market-aware
// stage consults for the pair's current best opposite price.
type MarketView interface {
	MarketStatus(ctx context.Context, pair types.AssetPair) (types.MarketStatus, bool, error)
}

// RuleLookup resolves the matching rule (and therefore tick size) in
// effect for a pair right now, for the tick-alignment check.
type RuleLookup func(pair types.AssetPair) types.TickSize

// Validator runs every stage of spec.md §4.7 over an incoming Order. It
// holds no per-order state; Validate is safe to call concurrently.
type Validator struct {
	settings Settings
	rates    *store.RateCache
	market   MarketView
	chain    blockchain.Context
	rules    RuleLookup
	now      func() uint64
}

func New(settings Settings, rates *store.RateCache, market MarketView, chain blockchain.Context, rules RuleLookup, now func() uint64) *Validator {
	return &Validator{settings: settings, rates: rates, market: market, chain: chain, rules: rules, now: now}
}

// Validate runs the full pipeline, accumulating every stage's failures
// before returning. A nil return means the order may proceed to
// AddressActor.PlaceCheck (the reservable-balance check stays there,
// delegated per spec.md §4.7's last bullet).
func (v *Validator) Validate(ctx context.Context, o *types.Order) error {
	errs := apperrors.NewErrors()

	v.checkSettings(o, errs)
	v.checkTiming(o, errs)
	v.checkMarket(ctx, o, errs)
	if err := v.checkBlockchain(ctx, o, errs); err != nil {
		return err
	}

	return errs.ErrorOrNil()
}

func (v *Validator) checkSettings(o *types.Order, errs apperrors.Errors) {
	if _, ok := v.settings.AllowedPairs[o.Pair]; !ok {
		errs.AddForProperty("pair", apperrors.ErrUnknownPair)
		return
	}
	if _, ok := v.settings.AllowedOrderVersions[o.Version]; !ok {
		errs.AddForProperty("version", apperrors.ErrUnsupportedVersion)
	}
	if len(v.settings.AllowedFeeAssets) > 0 {
		if _, ok := v.settings.AllowedFeeAssets[o.FeeAsset]; !ok {
			errs.AddForProperty("feeAsset", apperrors.ErrUnsupportedFeeAsset)
		}
	}
	if v.rates == nil {
		return
	}
	microRate, ok := v.rates.Get(o.FeeAsset)
	if !ok {
		return
	}
	notional := num.MulDivCeil(o.Amount, o.Price, num.NewUint(types.PriceConstant))
	minFee := num.MulDivCeil(notional, num.NewUint(microRate), num.NewUint(1_000_000))
	if o.MatcherFee.LT(minFee) {
		errs.AddForProperty("matcherFee", apperrors.ErrFeeBelowMinimum)
	}
}

func (v *Validator) checkTiming(o *types.Order, errs apperrors.Errors) {
	now := v.now()
	if v.settings.MaxTimestampSkew > 0 {
		skew, _ := num.NewUint(now).Delta(num.NewUint(now), num.NewUint(o.Timestamp))
		if skew.GTUint64(v.settings.MaxTimestampSkew) {
			errs.AddForProperty("timestamp", apperrors.ErrTimestampOutOfWindow)
		}
	}
	if o.Expiration <= now {
		errs.AddForProperty("expiration", apperrors.ErrAlreadyExpired)
		return
	}
	window := o.Expiration - now
	if v.settings.MinExpiryWindow > 0 && window < v.settings.MinExpiryWindow {
		errs.AddForProperty("expiration", apperrors.ErrExpirationOutOfBounds)
	}
	if v.settings.MaxExpiryWindow > 0 && window > v.settings.MaxExpiryWindow {
		errs.AddForProperty("expiration", apperrors.ErrExpirationOutOfBounds)
	}
}

func (v *Validator) checkMarket(ctx context.Context, o *types.Order, errs apperrors.Errors) {
	if v.rules != nil {
		tick := v.rules(o.Pair)
		if tick.IsEnabled() {
			bucket := num.FloorBucket(o.Price, tick.Ticks)
			if !bucket.EQ(o.Price) {
				errs.AddForProperty("price", apperrors.ErrTickMisaligned)
			}
		}
	}

	if v.settings.DeviationBps == 0 || v.market == nil {
		return
	}
	status, found, err := v.market.MarketStatus(ctx, o.Pair)
	if err != nil || !found {
		return
	}
	opposite := status.BestAsk
	if o.Side == types.Sell {
		opposite = status.BestBid
	}
	if opposite == nil || opposite.IsZero() {
		return
	}
	diff, _ := num.NewUint(0).Delta(o.Price, opposite)
	allowed := num.MulDivCeil(opposite, num.NewUint(v.settings.DeviationBps), num.NewUint(10_000))
	if diff.GT(allowed) {
		errs.AddForProperty("price", apperrors.ErrPriceDeviation)
	}
}

// checkBlockchain covers the script and blacklist half of spec.md §4.7's
// blockchain-aware stage; the reservable-balance half is delegated to
// AddressActor.PlaceCheck by the caller. A script denial is reported
// through errs like any other stage; a script evaluation error is
// returned immediately as apperrors.ScriptError, and a chain lookup
// failure is promoted to an apperrors error and returned immediately
// since no further stage can meaningfully proceed.
func (v *Validator) checkBlockchain(ctx context.Context, o *types.Order, errs apperrors.Errors) error {
	if _, ok := v.settings.BlacklistedAddresses[o.Owner]; ok {
		errs.AddForProperty("owner", apperrors.ErrAddressBlacklisted)
	}
	if _, ok := v.settings.BlacklistedAssets[o.Pair.AmountAsset]; ok {
		errs.AddForProperty("pair", apperrors.ErrAssetBlacklisted)
	}
	if _, ok := v.settings.BlacklistedAssets[o.Pair.PriceAsset]; ok {
		errs.AddForProperty("pair", apperrors.ErrAssetBlacklisted)
	}

	if v.chain == nil {
		return nil
	}
	has, err := v.chain.HasScript(ctx, blockchain.AddressSubject(o.Owner))
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternalInvariant, "validator: script presence lookup", err)
	}
	if !has {
		return nil
	}

	// No counterparty exists yet at placement time, so the order is run
	// against a synthetic transaction standing in for itself; a denial here
	// rejects placement outright, matching spec.md §7's "script errors at
	// placement time reject the order".
	synthetic := &types.ExchangeTransaction{
		Pair:           o.Pair,
		Price:          o.Price,
		Amount:         o.Amount,
		BuyMatcherFee:  num.NewUint(0),
		SellMatcherFee: num.NewUint(0),
		Timestamp:      o.Timestamp,
	}
	if o.Side == types.Buy {
		synthetic.BuyOrder = o
	} else {
		synthetic.SellOrder = o
	}
	result, err := v.chain.RunScript(ctx, blockchain.AddressSubject(o.Owner), synthetic)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternalInvariant, "validator: script evaluation", err)
	}
	switch result.Kind {
	case types.ScriptDenied:
		errs.AddForProperty("owner", apperrors.ScriptDenied(result.Reason))
	case types.ScriptError:
		return apperrors.ScriptError(result.Reason)
	}
	return nil
}
