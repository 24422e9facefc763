package types

import "github.com/nimbusdex/matcher/num"

// Reservation is the funds an in-flight order has set aside, contributed
// toward AddressState.ReservedBalances[asset]. OrderPrice and
// FilledAmount exist only to reproduce a Buy order's reserved-asset cost
// (amount*price/PriceConstant) with the same cumulative-ceil proration
// feeDeltaForFill uses for fees, so repeated partial releases never drift
// from ceil(totalFilled*price/PriceConstant) (spec.md §4.3 point 7,
// generalized from fee to reservation cost). Sell reservations need no
// proration: the reserved asset is the traded asset itself, 1:1.
type Reservation struct {
	Pair           AssetPair
	Side           Side
	Asset          AssetID
	ReservedAmount *num.Uint
	FeeAsset       AssetID
	ReservedFee    *num.Uint
	OrderPrice     *num.Uint
	FilledAmount   *num.Uint
}

// AddressState is the AddressActor's owned state: every asset currently
// reserved against in-flight orders, and the per-order breakdown that
// must always sum back to it.
type AddressState struct {
	Owner            PublicKey
	ReservedBalances map[AssetID]*num.Uint
	ActiveOrders     map[OrderID]Reservation
}

func NewAddressState(owner PublicKey) *AddressState {
	return &AddressState{
		Owner:            owner,
		ReservedBalances: make(map[AssetID]*num.Uint),
		ActiveOrders:     make(map[OrderID]Reservation),
	}
}

func (s *AddressState) reserve(asset AssetID, amount *num.Uint) {
	cur, ok := s.ReservedBalances[asset]
	if !ok {
		cur = num.NewUint(0)
	}
	s.ReservedBalances[asset] = num.Sum(cur, amount)
}

func (s *AddressState) release(asset AssetID, amount *num.Uint) {
	cur, ok := s.ReservedBalances[asset]
	if !ok || cur.LT(amount) {
		s.ReservedBalances[asset] = num.NewUint(0)
		return
	}
	s.ReservedBalances[asset] = num.NewUint(0).Sub(cur, amount)
}

// Add records a new order's reservation, crediting both the
// per-order breakdown and the per-asset total.
func (s *AddressState) Add(orderID OrderID, r Reservation) {
	if r.FilledAmount == nil {
		r.FilledAmount = num.NewUint(0)
	}
	s.ActiveOrders[orderID] = r
	s.reserve(r.Asset, r.ReservedAmount)
	s.reserve(r.FeeAsset, r.ReservedFee)
}

// ApplyFill releases the portion of orderID's reservation consumed by a
// fill of fillAmount base-asset units (executedFeeDelta already computed
// by the matching engine's own fee proration). closed marks the order
// terminal, releasing whatever reservation remains outright. Returns
// false if the order is not tracked, making the call idempotent against
// replay.
func (s *AddressState) ApplyFill(orderID OrderID, fillAmount, executedFeeDelta *num.Uint, closed bool) bool {
	r, ok := s.ActiveOrders[orderID]
	if !ok {
		return false
	}

	var costDelta *num.Uint
	if r.Side == Buy {
		filledBefore := r.FilledAmount
		filledAfter := num.Sum(filledBefore, fillAmount)
		idealBefore := num.MulDivCeil(filledBefore, r.OrderPrice, num.NewUint(PriceConstant))
		idealAfter := num.MulDivCeil(filledAfter, r.OrderPrice, num.NewUint(PriceConstant))
		if idealAfter.LTE(idealBefore) {
			costDelta = num.NewUint(0)
		} else {
			costDelta = num.NewUint(0).Sub(idealAfter, idealBefore)
		}
		r.FilledAmount = filledAfter
	} else {
		costDelta = fillAmount.Clone()
	}
	costDelta = num.Min(costDelta, r.ReservedAmount)
	feeDelta := num.Min(executedFeeDelta, r.ReservedFee)

	s.release(r.Asset, costDelta)
	s.release(r.FeeAsset, feeDelta)
	r.ReservedAmount = num.NewUint(0).Sub(r.ReservedAmount, costDelta)
	r.ReservedFee = num.NewUint(0).Sub(r.ReservedFee, feeDelta)

	if closed {
		s.release(r.Asset, r.ReservedAmount)
		s.release(r.FeeAsset, r.ReservedFee)
		delete(s.ActiveOrders, orderID)
	} else {
		s.ActiveOrders[orderID] = r
	}
	return true
}

// Remove fully releases an order's remaining reservation (a cancel, not
// a fill). Returns false if the order was not tracked.
func (s *AddressState) Remove(orderID OrderID) bool {
	r, ok := s.ActiveOrders[orderID]
	if !ok {
		return false
	}
	s.release(r.Asset, r.ReservedAmount)
	s.release(r.FeeAsset, r.ReservedFee)
	delete(s.ActiveOrders, orderID)
	return true
}

// Reserved returns the current reservation for asset, zero if none.
func (s *AddressState) Reserved(asset AssetID) *num.Uint {
	if v, ok := s.ReservedBalances[asset]; ok {
		return v.Clone()
	}
	return num.NewUint(0)
}
