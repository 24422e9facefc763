package types

import "github.com/nimbusdex/matcher/num"

// StatusKind tags the variant carried by OrderStatus.
type StatusKind uint8

const (
	StatusAccepted StatusKind = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusNotFound
)

func (k StatusKind) String() string {
	switch k {
	case StatusAccepted:
		return "Accepted"
	case StatusPartiallyFilled:
		return "PartiallyFilled"
	case StatusFilled:
		return "Filled"
	case StatusCancelled:
		return "Cancelled"
	case StatusNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// OrderStatus is the tagged variant tracked in OrderDB. Filled and
// Cancelled are terminal: WithFill and WithCancel refuse any further
// transition out of them.
type OrderStatus struct {
	Kind       StatusKind
	Filled     *num.Uint
	FilledFee  *num.Uint
}

func Accepted() OrderStatus {
	return OrderStatus{Kind: StatusAccepted, Filled: num.NewUint(0), FilledFee: num.NewUint(0)}
}

func (s OrderStatus) IsTerminal() bool {
	return s.Kind == StatusFilled || s.Kind == StatusCancelled
}

// WithFill returns the status after an additional fill of filledAmount at
// cost filledFeeDelta, transitioning to Filled when fullyFilled is true.
// It is a no-op (returns s unchanged) when s is already terminal, so
// idempotent replay of the same fill event never double-counts.
func (s OrderStatus) WithFill(filledAmountDelta, filledFeeDelta *num.Uint, fullyFilled bool) OrderStatus {
	if s.IsTerminal() {
		return s
	}
	next := OrderStatus{
		Kind:      StatusPartiallyFilled,
		Filled:    num.Sum(s.Filled, filledAmountDelta),
		FilledFee: num.Sum(s.FilledFee, filledFeeDelta),
	}
	if fullyFilled {
		next.Kind = StatusFilled
	}
	return next
}

// WithCancel returns the terminal Cancelled status, preserving whatever
// was filled before the cancel. A no-op if s is already terminal.
func (s OrderStatus) WithCancel() OrderStatus {
	if s.IsTerminal() {
		return s
	}
	return OrderStatus{Kind: StatusCancelled, Filled: s.Filled, FilledFee: s.FilledFee}
}
