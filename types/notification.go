package types

import "github.com/nimbusdex/matcher/num"

// NotificationKind tags the concrete Notification variant a subscriber
// filters on. NotifyAll is a sentinel meaning "every kind", matching a
// Subscriber that passed no Types() of its own.
type NotificationKind uint8

const (
	NotifyAll NotificationKind = iota
	NotifyOrderAccepted
	NotifyOrderFilled
	NotifyOrderCancelled
	NotifyMarketStatusUpdated
)

// Notification is one domain event OrderBookActor pushes onto the broker (spec.md §4.10's supplemented event fan-out), distinct
// from the durable QueueEvent log: notifications are at-most-once, for
// observers, and carry no replay guarantee.
type Notification interface {
	Kind() NotificationKind
}

// OrderAccepted is pushed once an order clears validation and is durably
// queued.
type OrderAccepted struct {
	OrderID   OrderID
	Owner     PublicKey
	Pair      AssetPair
	Timestamp uint64
}

func (OrderAccepted) Kind() NotificationKind { return NotifyOrderAccepted }

// OrderFilled is pushed for every Fill an OrderBookActor applies,
// separately for the taker and each maker leg.
type OrderFilled struct {
	OrderID        OrderID
	Owner          PublicKey
	Pair           AssetPair
	FilledDelta    *num.Uint
	FeeDelta       *num.Uint
	ExecutionPrice *num.Uint
	Status         OrderStatus
	Timestamp      uint64
}

func (OrderFilled) Kind() NotificationKind { return NotifyOrderFilled }

// OrderCancelled is pushed once a cancel is applied, carrying whatever
// was filled before it.
type OrderCancelled struct {
	OrderID   OrderID
	Owner     PublicKey
	Pair      AssetPair
	Status    OrderStatus
	Timestamp uint64
}

func (OrderCancelled) Kind() NotificationKind { return NotifyOrderCancelled }

// MarketStatusUpdated is pushed after every event that changes a pair's
// published read view.
type MarketStatusUpdated struct {
	Status MarketStatus
}

func (MarketStatusUpdated) Kind() NotificationKind { return NotifyMarketStatusUpdated }
