package num

// CeilDiv returns ceil(x / y), used for fee proration (spec.md §4.3
// "executedFee = ceil(matcherFee * executedAmount / orderAmount)"). y must
// be non-zero; nothing here or on the matching path checks it, and orders
// placed through MatcherActor.PlaceOrder have a zero amount rejected by
// Order.Validate.
func CeilDiv(x, y *Uint) *Uint {
	if x.IsZero() {
		return NewUint(0)
	}
	q := NewUint(0).Div(x, y)
	r := NewUint(0).Sub(x, NewUint(0).Mul(q, y))
	if !r.IsZero() {
		q = Sum(q, NewUint(1))
	}
	return q
}

// MulDivCeil returns ceil(x * y / z), the fee-proration building block:
// ceil(matcherFee * executedAmount / orderAmount).
func MulDivCeil(x, y, z *Uint) *Uint {
	return CeilDiv(NewUint(0).Mul(x, y), z)
}

// FloorBucket returns floor(price / tick) * tick, the bid-side tick
// aggregation bucket of spec.md §4.3.
func FloorBucket(price, tick *Uint) *Uint {
	if tick.IsZero() {
		return price.Clone()
	}
	q := NewUint(0).Div(price, tick)
	return NewUint(0).Mul(q, tick)
}

// CeilBucket returns ceil(price / tick) * tick, the ask-side tick
// aggregation bucket of spec.md §4.3.
func CeilBucket(price, tick *Uint) *Uint {
	if tick.IsZero() {
		return price.Clone()
	}
	floor := FloorBucket(price, tick)
	if floor.EQ(price) {
		return floor
	}
	return Sum(floor, tick)
}
