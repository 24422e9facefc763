package actor

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nimbusdex/matcher/blockchain"
	"github.com/nimbusdex/matcher/broadcaster"
	"github.com/nimbusdex/matcher/broker"
	"github.com/nimbusdex/matcher/core/apperrors"
	"github.com/nimbusdex/matcher/eventqueue"
	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/metrics"
	"github.com/nimbusdex/matcher/store"
	"github.com/nimbusdex/matcher/types"
	"github.com/nimbusdex/matcher/validator"
)

// Status is MatcherActor's own lifecycle state, gating order placement
// until recovery is complete (spec.md §4.4, §4.9).
type Status uint8

const (
	StatusStarting Status = iota
	StatusReady
)

func (s Status) String() string {
	if s == StatusReady {
		return "Ready"
	}
	return "Starting"
}

// PairConfig resolves the matching-rules schedule, minimum tradable
// residual and snapshot cadence for a pair, falling back to Default for
// any pair not explicitly listed (spec.md §6's per-pair configuration).
type PairConfig struct {
	Default types.PairSettings
	Pairs   map[types.AssetPair]types.PairSettings
}

func (c PairConfig) SettingsFor(pair types.AssetPair) types.PairSettings {
	if s, ok := c.Pairs[pair]; ok {
		return s
	}
	return c.Default
}

// MatcherActor is the root coordinator of spec.md §4.9: it owns the
// EventQueue consumer, creates and routes to one OrderBookActor per
// pair, and is the entry point PlaceOrder/Cancel calls reach before
// anything becomes durable.
type MatcherActor struct {
	chain     blockchain.Context
	queue     eventqueue.Queue
	pairs     *store.AssetPairRegistry
	orderDB   *store.OrderDB
	snapshots *store.SnapshotStore
	addresses *AddressRegistry
	txs       *broadcaster.Broadcaster
	events    broker.I
	config    PairConfig
	validate  *validator.Validator
	log       *logging.Logger

	mu    sync.RWMutex
	books map[types.AssetPair]*OrderBookActor

	status              atomic.Int32
	lastProcessedOffset atomic.Uint64
	readyTarget         atomic.Uint64
}

func NewMatcherActor(
	chain blockchain.Context,
	queue eventqueue.Queue,
	pairs *store.AssetPairRegistry,
	orderDB *store.OrderDB,
	snapshots *store.SnapshotStore,
	txs *broadcaster.Broadcaster,
	events broker.I,
	config PairConfig,
	log *logging.Logger,
) *MatcherActor {
	return &MatcherActor{
		chain:     chain,
		queue:     queue,
		pairs:     pairs,
		orderDB:   orderDB,
		snapshots: snapshots,
		txs:       txs,
		events:    events,
		config:    config,
		log:       log.Named("matcher-actor"),
		books:     make(map[types.AssetPair]*OrderBookActor),
	}
}

func (m *MatcherActor) Status() Status { return Status(m.status.Load()) }

// SetValidator installs the OrderValidator pipeline PlaceOrder runs
// before reserving funds and appending. It is set after construction,
// not passed to NewMatcherActor, because the validator's market-aware
// stage takes m itself as its validator.MarketView.
func (m *MatcherActor) SetValidator(v *validator.Validator) { m.validate = v }

// Start runs the restart sequence of spec.md §4.4/§4.9: restore every
// known pair's book from its last snapshot, compute the earliest offset
// that must be replayed, and begin consuming the event log from there.
// It returns once the consumer has been launched; reaching StatusReady
// happens asynchronously as replay catches up. ctx's lifetime governs
// every actor this call spawns, including lazily-created AddressActors.
func (m *MatcherActor) Start(ctx context.Context) error {
	m.addresses = NewAddressRegistry(ctx, m.chain, m.log)

	registered, err := m.pairs.List()
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternalInvariant, "matcheractor: list registered pairs", err)
	}

	restoreOffset := ^uint64(0) // max uint64, lowered by every pair actually restored
	haveAny := false
	for _, pair := range registered {
		ob := m.spawn(pair)
		offset, err := ob.Restore()
		if err != nil {
			return err
		}
		if !haveAny || offset < restoreOffset {
			restoreOffset = offset
			haveAny = true
		}
	}
	if !haveAny {
		restoreOffset = 0
	}

	for _, ob := range m.snapshotActors() {
		go ob.Run(ctx)
	}

	lastEventOffset, err := m.queue.LastEventOffset(ctx)
	if err != nil {
		return apperrors.QueueUnavailable(err)
	}
	m.readyTarget.Store(lastEventOffset)
	if lastEventOffset <= restoreOffset {
		m.status.Store(int32(StatusReady))
	}

	fromOffset := restoreOffset + 1
	go m.consume(ctx, fromOffset)
	return nil
}

func (m *MatcherActor) snapshotActors() []*OrderBookActor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*OrderBookActor, 0, len(m.books))
	for _, ob := range m.books {
		out = append(out, ob)
	}
	return out
}

func (m *MatcherActor) consume(ctx context.Context, fromOffset uint64) {
	err := m.queue.StartConsume(ctx, fromOffset, func(ev types.QueueEventWithMeta) error {
		return m.handle(ctx, ev)
	})
	if err != nil && ctx.Err() == nil {
		m.log.Error("event consumption stopped", zap.Error(err))
	}
}

func (m *MatcherActor) handle(ctx context.Context, ev types.QueueEventWithMeta) error {
	pair := ev.Event.Pair
	ob := m.getOrSpawn(ctx, pair)

	_, err := ob.ApplyEvent(ctx, ev)
	if err != nil {
		if apperrors.Is(err, apperrors.KindInternalInvariant) {
			return err
		}
		m.log.Warn("event application failed, continuing replay", zap.Uint64("offset", ev.Offset), zap.Error(err))
	}

	m.lastProcessedOffset.Store(ev.Offset)
	if target := m.readyTarget.Load(); target >= ev.Offset {
		metrics.SetQueueLag(pair.Key(), float64(target-ev.Offset))
	}
	if m.Status() == StatusStarting && ev.Offset >= m.readyTarget.Load() {
		m.status.Store(int32(StatusReady))
		m.log.Info("matcher ready", zap.Uint64("offset", ev.Offset))
	}
	return nil
}

// getOrSpawn routes to pair's actor, creating and registering a new one
// (with no snapshot to restore) the first time a pair is seen -
// OrderBooks are created on first PlaceOrder (spec.md §4.9).
func (m *MatcherActor) getOrSpawn(ctx context.Context, pair types.AssetPair) *OrderBookActor {
	m.mu.RLock()
	ob, ok := m.books[pair]
	m.mu.RUnlock()
	if ok {
		return ob
	}

	ob = m.spawn(pair)
	if err := m.pairs.Add(pair); err != nil {
		m.log.Warn("register new pair failed", zap.String("pair", pair.Key()), zap.Error(err))
	}
	go ob.Run(ctx)
	return ob
}

func (m *MatcherActor) spawn(pair types.AssetPair) *OrderBookActor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ob, ok := m.books[pair]; ok {
		return ob
	}
	ob := NewOrderBookActor(pair, m.config.SettingsFor(pair), m.orderDB, m.snapshots, m.addresses, m.txs, m.events, m.log)
	m.books[pair] = ob
	return ob
}

// PingAll blocks until every currently known pair's actor has drained
// its mailbox up to this call (spec.md §4.9's batch-ping), useful for
// tests and for a clean shutdown snapshot.
func (m *MatcherActor) PingAll(ctx context.Context) error {
	for _, ob := range m.snapshotActors() {
		if err := ob.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// PlaceOrder is the synchronous entry point for a client submission:
// reserve funds, durably append, and return. The actual match happens
// later, off the mailbox, once the event is consumed (spec.md §4.9,
// propagation policy of §7: failures here are surfaced to the client
// synchronously and never appended).
func (m *MatcherActor) PlaceOrder(ctx context.Context, o *types.Order, requestID string) error {
	if m.Status() != StatusReady {
		return apperrors.Wrap(apperrors.KindQueueUnavailable, "matcher is still recovering", apperrors.Timeout("not ready"))
	}
	if err := o.Validate(); err != nil {
		return apperrors.Invalid(err.Error())
	}
	if m.validate != nil {
		if err := m.validate.Validate(ctx, o); err != nil {
			return err
		}
	}
	if err := m.addresses.GetOrCreate(o.Owner).PlaceCheck(ctx, o); err != nil {
		return err
	}
	if _, _, err := m.queue.Append(ctx, types.PlaceOrderEvent(o, requestID), requestID); err != nil {
		return apperrors.QueueUnavailable(err)
	}
	return nil
}

// Cancel durably appends a cancel request; ownership and terminal-state
// checks happen when the OrderBookActor applies it, keeping the check
// and the mutation on the same single-writer goroutine.
func (m *MatcherActor) Cancel(ctx context.Context, id types.OrderID, by types.PublicKey, pair types.AssetPair, requestID string) error {
	if m.Status() != StatusReady {
		return apperrors.Wrap(apperrors.KindQueueUnavailable, "matcher is still recovering", apperrors.Timeout("not ready"))
	}
	if _, _, err := m.queue.Append(ctx, types.CancelOrderEvent(id, by, pair, requestID), requestID); err != nil {
		return apperrors.QueueUnavailable(err)
	}
	return nil
}

// DeletePair durably appends an OrderBookDeleted event for pair.
func (m *MatcherActor) DeletePair(ctx context.Context, pair types.AssetPair, requestID string) error {
	if m.Status() != StatusReady {
		return apperrors.Wrap(apperrors.KindQueueUnavailable, "matcher is still recovering", apperrors.Timeout("not ready"))
	}
	if _, _, err := m.queue.Append(ctx, types.OrderBookDeletedEvent(pair), requestID); err != nil {
		return apperrors.QueueUnavailable(err)
	}
	return nil
}

// MarketStatus returns pair's current published read view, if its book
// has been created yet.
func (m *MatcherActor) MarketStatus(ctx context.Context, pair types.AssetPair) (types.MarketStatus, bool, error) {
	m.mu.RLock()
	ob, ok := m.books[pair]
	m.mu.RUnlock()
	if !ok {
		return types.MarketStatus{}, false, nil
	}
	snap, err := ob.GetSnapshot(ctx)
	if err != nil {
		return types.MarketStatus{}, false, err
	}
	status := types.MarketStatus{Pair: pair, LastTrade: snap.LastTrade}
	if len(snap.Bids) > 0 {
		status.BestBid = snap.Bids[0].Price
	}
	if len(snap.Asks) > 0 {
		status.BestAsk = snap.Asks[0].Price
	}
	return status, true, nil
}

// OrderByID looks up a previously placed order's durable status, for the
// HTTP status surface's order-by-id endpoint.
func (m *MatcherActor) OrderByID(id types.OrderID) (types.OrderStatus, types.AssetPair, types.PublicKey, bool, error) {
	return m.orderDB.Get(id)
}

// Snapshot returns pair's current resting book, if its actor has been
// created yet, for the HTTP status surface's order-book endpoint.
func (m *MatcherActor) Snapshot(ctx context.Context, pair types.AssetPair) (*types.Snapshot, bool, error) {
	m.mu.RLock()
	ob, ok := m.books[pair]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	snap, err := ob.GetSnapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// LastProcessedOffset reports the highest event offset applied so far.
func (m *MatcherActor) LastProcessedOffset() uint64 { return m.lastProcessedOffset.Load() }
