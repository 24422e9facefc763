package actor

import (
	"context"
	"encoding/binary"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nimbusdex/matcher/broadcaster"
	"github.com/nimbusdex/matcher/broker"
	"github.com/nimbusdex/matcher/core/apperrors"
	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/matching"
	"github.com/nimbusdex/matcher/metrics"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/store"
	"github.com/nimbusdex/matcher/types"
	"go.uber.org/zap"
)

// broadcastWindow is how long a produced ExchangeTransaction is retried
// before Broadcaster gives up (spec.md §4.8).
const broadcastWindow = 2 * time.Minute

// ApplyEventResult is what ApplyEvent reports back to MatcherActor: the
// resulting status of the event's primary order (the placed order, or
// the order named by a cancel), and whether this call found the event
// already applied.
type ApplyEventResult struct {
	Status    types.OrderStatus
	Fills     []matching.Fill
	Duplicate bool
	Deleted   bool
}

// OrderBookActor is the single-writer owner of one AssetPair's Book and
// its published MarketStatus (spec.md §4.4): every PlaceOrder,
// CancelOrder and OrderBookDeleted event for this pair is applied on its
// own goroutine, one at a time, off its mailbox.
type OrderBookActor struct {
	pair     types.AssetPair
	settings types.PairSettings
	book     *matching.Book

	lastAppliedOffset  uint64
	lastSnapshotOffset uint64
	deleted            bool

	orderDB   *store.OrderDB
	snapshots *store.SnapshotStore
	addresses *AddressRegistry
	txs       *broadcaster.Broadcaster
	events    broker.I

	mailbox *Mailbox[*OrderBookActor]
	log     *logging.Logger
}

func NewOrderBookActor(
	pair types.AssetPair,
	settings types.PairSettings,
	orderDB *store.OrderDB,
	snapshots *store.SnapshotStore,
	addresses *AddressRegistry,
	txs *broadcaster.Broadcaster,
	events broker.I,
	log *logging.Logger,
) *OrderBookActor {
	return &OrderBookActor{
		pair:      pair,
		settings:  settings,
		book:      matching.NewBook(pair, settings.Rules.RuleAt(0), settings.MinFillUnit),
		orderDB:   orderDB,
		snapshots: snapshots,
		addresses: addresses,
		txs:       txs,
		events:    events,
		mailbox:   NewMailbox[*OrderBookActor](1024),
		log:       log.Named("orderbook-actor").With(zap.String("pair", pair.Key())),
	}
}

// Restore loads the pair's last snapshot, if any, rebuilding the book
// synchronously before Run starts (spec.md §4.4's restart sequence: this
// must happen before any event reaches the mailbox, so it takes no lock).
// It returns the snapshot's offset, or 0 if none was found.
func (a *OrderBookActor) Restore() (uint64, error) {
	snap, ok, err := a.snapshots.Get(a.pair)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternalInvariant, "orderbookactor: load snapshot", err)
	}
	if !ok {
		return 0, nil
	}
	a.book = matching.RestoreFromSnapshot(snap, a.settings.MinFillUnit)
	a.lastAppliedOffset = snap.Offset
	a.lastSnapshotOffset = snap.Offset
	return snap.Offset, nil
}

func (a *OrderBookActor) Run(ctx context.Context) { Run(ctx, a, a.mailbox) }

// Pair returns the pair this actor owns.
func (a *OrderBookActor) Pair() types.AssetPair { return a.pair }

// --- ApplyEvent ---

type applyEventMsg struct {
	ev    types.QueueEventWithMeta
	reply chan<- applyEventReply
}

type applyEventReply struct {
	result ApplyEventResult
	err    error
}

func (m applyEventMsg) process(a *OrderBookActor) {
	result, err := a.applyEvent(m.ev)
	m.reply <- applyEventReply{result: result, err: err}
}

// ApplyEvent applies one durable event to this pair's book. It is
// idempotent by offset: an event at or below the last offset actually
// applied is a no-op, which is what makes replay after a crash safe
// (spec.md §8 scenario 6).
func (a *OrderBookActor) ApplyEvent(ctx context.Context, ev types.QueueEventWithMeta) (ApplyEventResult, error) {
	r, err := call(ctx, a.mailbox, func(reply chan<- applyEventReply) message[*OrderBookActor] {
		return applyEventMsg{ev: ev, reply: reply}
	})
	if err != nil {
		return ApplyEventResult{}, err
	}
	return r.result, r.err
}

func (a *OrderBookActor) applyEvent(ev types.QueueEventWithMeta) (ApplyEventResult, error) {
	if a.deleted {
		return ApplyEventResult{Deleted: true}, nil
	}
	if ev.Offset <= a.lastAppliedOffset {
		return ApplyEventResult{Duplicate: true}, nil
	}

	a.reaggregateIfNeeded(ev.Offset)

	var (
		result ApplyEventResult
		err    error
	)
	switch ev.Event.Kind {
	case types.EventPlaceOrder:
		result, err = a.applyPlaceOrder(ev)
	case types.EventCancelOrder:
		result, err = a.applyCancelOrder(ev)
	case types.EventOrderBookDeleted:
		result, err = a.applyOrderBookDeleted(ev)
	default:
		err = apperrors.InternalInvariant("orderbookactor: unknown event kind")
	}
	if err != nil {
		return result, err
	}

	metrics.IncEventApplied(a.pair.Key(), ev.Event.Kind.String())
	a.lastAppliedOffset = ev.Offset
	a.maybeSnapshot(ev.Offset)
	return result, nil
}

func (a *OrderBookActor) reaggregateIfNeeded(offset uint64) {
	want := a.settings.Rules.RuleAt(offset)
	a.book.Reaggregate(want)
}

func (a *OrderBookActor) applyPlaceOrder(ev types.QueueEventWithMeta) (ApplyEventResult, error) {
	o := ev.Event.Order
	exists, err := a.orderDB.Exists(o.ID)
	if err != nil {
		return ApplyEventResult{}, apperrors.Wrap(apperrors.KindInternalInvariant, "orderbookactor: order existence check", err)
	}
	if exists {
		return ApplyEventResult{Duplicate: true}, nil
	}

	a.events.Send(types.OrderAccepted{OrderID: o.ID, Owner: o.Owner, Pair: o.Pair, Timestamp: ev.Timestamp})

	result := a.book.Apply(o)
	status := types.Accepted()

	for _, fill := range result.Fills {
		status = status.WithFill(fill.Trade.Amount, fill.TakerFeeDelta, fill.TakerClosed)
		if err := a.addresses.GetOrCreate(o.Owner).ApplyFill(context.Background(), o.ID, fill.Trade.Amount, fill.TakerFeeDelta, fill.TakerClosed); err != nil {
			a.log.Warn("address actor apply-fill (taker) failed", zap.Error(err))
		}
		a.events.Send(types.OrderFilled{
			OrderID:        o.ID,
			Owner:          o.Owner,
			Pair:           fill.Trade.Pair,
			FilledDelta:    fill.Trade.Amount,
			FeeDelta:       fill.TakerFeeDelta,
			ExecutionPrice: fill.Trade.Price,
			Status:         status,
			Timestamp:      ev.Timestamp,
		})
		a.settleMakerLeg(fill, ev.Timestamp)
		a.broadcastFill(fill, ev.Timestamp)
	}

	if result.TakerDustClose {
		status = status.WithFill(num.NewUint(0), num.NewUint(0), true)
		if err := a.addresses.GetOrCreate(o.Owner).ApplyFill(context.Background(), o.ID, num.NewUint(0), num.NewUint(0), true); err != nil {
			a.log.Warn("address actor apply-fill (dust close) failed", zap.Error(err))
		}
	}

	if err := a.orderDB.Put(o.ID, o.Pair, o.Owner, status); err != nil {
		return ApplyEventResult{}, apperrors.Wrap(apperrors.KindInternalInvariant, "orderbookactor: persist order status", err)
	}
	a.publishMarketStatus()

	return ApplyEventResult{Status: status, Fills: result.Fills}, nil
}

func (a *OrderBookActor) settleMakerLeg(fill matching.Fill, timestamp uint64) {
	makerStatus, pair, _, found, err := a.orderDB.Get(fill.MakerID)
	if err != nil {
		a.log.Warn("order db lookup for maker leg failed", zap.Error(err))
		return
	}
	if !found {
		makerStatus = types.Accepted()
		pair = fill.Trade.Pair
	}
	makerStatus = makerStatus.WithFill(fill.Trade.Amount, fill.MakerFeeDelta, fill.MakerClosed)
	if err := a.orderDB.Put(fill.MakerID, pair, fill.MakerOrder.Owner, makerStatus); err != nil {
		a.log.Warn("order db persist for maker leg failed", zap.Error(err))
		return
	}
	if err := a.addresses.GetOrCreate(fill.MakerOrder.Owner).ApplyFill(context.Background(), fill.MakerID, fill.Trade.Amount, fill.MakerFeeDelta, fill.MakerClosed); err != nil {
		a.log.Warn("address actor apply-fill (maker) failed", zap.Error(err))
	}
	a.events.Send(types.OrderFilled{
		OrderID:        fill.MakerID,
		Owner:          fill.MakerOrder.Owner,
		Pair:           pair,
		FilledDelta:    fill.Trade.Amount,
		FeeDelta:       fill.MakerFeeDelta,
		ExecutionPrice: fill.Trade.Price,
		Status:         makerStatus,
		Timestamp:      timestamp,
	})
}

func (a *OrderBookActor) broadcastFill(fill matching.Fill, timestamp uint64) {
	tx := buildExchangeTransaction(fill, timestamp)
	go func() {
		if err := a.txs.Broadcast(context.Background(), tx, time.Now().Add(broadcastWindow)); err != nil {
			a.log.Warn("exchange transaction broadcast abandoned", zap.String("txID", tx.ID.String()), zap.Error(err))
		}
	}()
}

func buildExchangeTransaction(fill matching.Fill, timestamp uint64) *types.ExchangeTransaction {
	var buy, sell *types.Order
	var buyFee, sellFee *num.Uint
	if fill.TakerOrder.Side == types.Buy {
		buy, sell = fill.TakerOrder, fill.MakerOrder
		buyFee, sellFee = fill.TakerFeeDelta, fill.MakerFeeDelta
	} else {
		buy, sell = fill.MakerOrder, fill.TakerOrder
		buyFee, sellFee = fill.MakerFeeDelta, fill.TakerFeeDelta
	}
	tx := &types.ExchangeTransaction{
		BuyOrder:       buy,
		SellOrder:      sell,
		Pair:           fill.Trade.Pair,
		Price:          fill.Trade.Price,
		Amount:         fill.Trade.Amount,
		BuyMatcherFee:  buyFee,
		SellMatcherFee: sellFee,
		Timestamp:      timestamp,
	}
	tx.ID = exchangeTransactionID(tx)
	return tx
}

// exchangeTransactionID derives a deterministic id the same way Order.ID
// is derived: sha3-256 of a canonical byte encoding, so retried
// broadcasts of the same fill never produce two distinct transactions.
func exchangeTransactionID(tx *types.ExchangeTransaction) types.TxID {
	buf := make([]byte, 0, 128)
	buf = append(buf, tx.BuyOrder.ID[:]...)
	buf = append(buf, tx.SellOrder.ID[:]...)
	buf = appendUint64(buf, tx.Price.Uint64())
	buf = appendUint64(buf, tx.Amount.Uint64())
	buf = appendUint64(buf, tx.Timestamp)
	sum := sha3.Sum256(buf)
	return types.TxID(sum)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func (a *OrderBookActor) applyCancelOrder(ev types.QueueEventWithMeta) (ApplyEventResult, error) {
	id := ev.Event.CancelOrderID
	status, pair, owner, found, err := a.orderDB.Get(id)
	if err != nil {
		return ApplyEventResult{}, apperrors.Wrap(apperrors.KindInternalInvariant, "orderbookactor: order lookup for cancel", err)
	}
	if !found {
		return ApplyEventResult{Duplicate: true}, nil
	}
	if status.IsTerminal() {
		return ApplyEventResult{Status: status, Duplicate: true}, nil
	}
	if owner != ev.Event.CancelBy {
		return ApplyEventResult{}, apperrors.Invalid("cancel: submitting address does not own the order")
	}

	lo, ok := a.book.Cancel(id)
	if !ok {
		return ApplyEventResult{}, apperrors.InternalInvariant("orderbookactor: non-terminal order missing from book")
	}

	newStatus := status.WithCancel()
	if err := a.orderDB.Put(id, pair, lo.Order.Owner, newStatus); err != nil {
		return ApplyEventResult{}, apperrors.Wrap(apperrors.KindInternalInvariant, "orderbookactor: persist cancelled status", err)
	}
	if err := a.addresses.GetOrCreate(lo.Order.Owner).ApplyCancel(context.Background(), id); err != nil {
		a.log.Warn("address actor apply-cancel failed", zap.Error(err))
	}
	a.events.Send(types.OrderCancelled{OrderID: id, Owner: lo.Order.Owner, Pair: pair, Status: newStatus, Timestamp: ev.Timestamp})
	a.publishMarketStatus()

	return ApplyEventResult{Status: newStatus}, nil
}

func (a *OrderBookActor) applyOrderBookDeleted(ev types.QueueEventWithMeta) (ApplyEventResult, error) {
	for _, id := range a.book.RestingOrderIDs() {
		lo, ok := a.book.Cancel(id)
		if !ok {
			continue
		}
		status, pair, _, found, err := a.orderDB.Get(id)
		if err != nil {
			return ApplyEventResult{}, apperrors.Wrap(apperrors.KindInternalInvariant, "orderbookactor: order lookup during book deletion", err)
		}
		if !found {
			status, pair = types.Accepted(), a.pair
		}
		newStatus := status.WithCancel()
		if err := a.orderDB.Put(id, pair, lo.Order.Owner, newStatus); err != nil {
			return ApplyEventResult{}, apperrors.Wrap(apperrors.KindInternalInvariant, "orderbookactor: persist status during book deletion", err)
		}
		if err := a.addresses.GetOrCreate(lo.Order.Owner).ApplyCancel(context.Background(), id); err != nil {
			a.log.Warn("address actor apply-cancel (book deletion) failed", zap.Error(err))
		}
		a.events.Send(types.OrderCancelled{OrderID: id, Owner: lo.Order.Owner, Pair: pair, Status: newStatus, Timestamp: ev.Timestamp})
	}
	if err := a.snapshots.Drop(a.pair); err != nil {
		a.log.Warn("drop snapshot during book deletion failed", zap.Error(err))
	}
	a.deleted = true
	return ApplyEventResult{Deleted: true}, nil
}

// --- GetSnapshot / Ping ---

type getSnapshotMsg struct {
	reply chan<- *types.Snapshot
}

func (m getSnapshotMsg) process(a *OrderBookActor) {
	m.reply <- a.book.Snapshot(a.lastAppliedOffset)
}

// GetSnapshot returns the book's current resting state as of the actor's
// last applied offset (spec.md §4.4).
func (a *OrderBookActor) GetSnapshot(ctx context.Context) (*types.Snapshot, error) {
	return call(ctx, a.mailbox, func(reply chan<- *types.Snapshot) message[*OrderBookActor] {
		return getSnapshotMsg{reply: reply}
	})
}

type pingMsg struct {
	reply chan<- struct{}
}

func (m pingMsg) process(a *OrderBookActor) { close(m.reply) }

// Ping returns once every message queued ahead of it has been processed,
// the mechanism MatcherActor's PingAll uses to know a consumed batch has
// fully drained (spec.md §4.4).
func (a *OrderBookActor) Ping(ctx context.Context) error {
	_, err := call(ctx, a.mailbox, func(reply chan<- struct{}) message[*OrderBookActor] {
		return pingMsg{reply: reply}
	})
	return err
}

func (a *OrderBookActor) publishMarketStatus() {
	a.events.Send(types.MarketStatusUpdated{Status: a.book.MarketStatus()})
}

func (a *OrderBookActor) maybeSnapshot(offset uint64) {
	if a.settings.SnapshotInterval == 0 {
		return
	}
	if offset-a.lastSnapshotOffset < a.settings.SnapshotInterval {
		return
	}
	start := time.Now()
	snap := a.book.Snapshot(offset)
	if err := a.snapshots.Put(a.pair, snap); err != nil {
		a.log.Warn("snapshot write failed", zap.Uint64("offset", offset), zap.Error(err))
		return
	}
	metrics.ObserveSnapshotDuration(a.pair.Key(), time.Since(start).Seconds())
	a.lastSnapshotOffset = offset
}
