package api

import (
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"

	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

// eventFeed is a broker.Subscriber that keeps the most recently delivered
// notifications in memory, the minimal read-model an order-history
// exporter would otherwise subscribe for (spec.md §1); /events exposes it
// so this module's own broker fan-out has a real in-process consumer
// instead of fanning out to nobody.
type eventFeed struct {
	mu  sync.Mutex
	id  int
	buf []types.Notification
	cap int

	ch     chan []types.Notification
	closed chan struct{}
}

func newEventFeed(capacity int) *eventFeed {
	return &eventFeed{
		cap:    capacity,
		ch:     make(chan []types.Notification, 16),
		closed: make(chan struct{}),
	}
}

// run drains notifications pushed by the broker into a capped ring
// buffer; it returns once the feed is closed.
func (f *eventFeed) run() {
	for {
		select {
		case <-f.closed:
			return
		case batch := <-f.ch:
			f.mu.Lock()
			f.buf = append(f.buf, batch...)
			if over := len(f.buf) - f.cap; over > 0 {
				f.buf = f.buf[over:]
			}
			f.mu.Unlock()
		}
	}
}

func (f *eventFeed) recent() []types.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Notification, len(f.buf))
	copy(out, f.buf)
	return out
}

func (f *eventFeed) stop() {
	close(f.closed)
}

func (f *eventFeed) Push(val ...types.Notification) {}
func (f *eventFeed) Closed() <-chan struct{}         { return f.closed }
func (f *eventFeed) C() chan<- []types.Notification  { return f.ch }
func (f *eventFeed) Types() []types.NotificationKind {
	return []types.NotificationKind{
		types.NotifyOrderAccepted,
		types.NotifyOrderFilled,
		types.NotifyOrderCancelled,
		types.NotifyMarketStatusUpdated,
	}
}
func (f *eventFeed) SetID(id int) { f.id = id }
func (f *eventFeed) ID() int      { return f.id }
func (f *eventFeed) Ack() bool    { return false }

type notificationDTO struct {
	Kind        string `json:"kind"`
	OrderID     string `json:"orderId,omitempty"`
	Pair        string `json:"pair,omitempty"`
	Owner       string `json:"owner,omitempty"`
	FilledDelta string `json:"filledDelta,omitempty"`
	Status      string `json:"status,omitempty"`
	Timestamp   uint64 `json:"timestamp,omitempty"`
}

func notificationDTOFrom(n types.Notification) notificationDTO {
	switch e := n.(type) {
	case types.OrderAccepted:
		return notificationDTO{
			Kind:      "OrderAccepted",
			OrderID:   e.OrderID.String(),
			Pair:      e.Pair.Key(),
			Owner:     e.Owner.String(),
			Timestamp: e.Timestamp,
		}
	case types.OrderFilled:
		return notificationDTO{
			Kind:        "OrderFilled",
			OrderID:     e.OrderID.String(),
			Pair:        e.Pair.Key(),
			Owner:       e.Owner.String(),
			FilledDelta: filledDeltaString(e.FilledDelta),
			Status:      e.Status.Kind.String(),
			Timestamp:   e.Timestamp,
		}
	case types.OrderCancelled:
		return notificationDTO{
			Kind:      "OrderCancelled",
			OrderID:   e.OrderID.String(),
			Pair:      e.Pair.Key(),
			Owner:     e.Owner.String(),
			Status:    e.Status.Kind.String(),
			Timestamp: e.Timestamp,
		}
	case types.MarketStatusUpdated:
		return notificationDTO{Kind: "MarketStatusUpdated", Pair: e.Status.Pair.Key()}
	default:
		return notificationDTO{Kind: "Unknown"}
	}
}

func filledDeltaString(d *num.Uint) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func (s *Server) recentEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.requireReady(w) {
		return
	}
	if s.feed == nil {
		writeJSON(w, http.StatusOK, []notificationDTO{})
		return
	}
	recent := s.feed.recent()
	out := make([]notificationDTO, 0, len(recent))
	for _, n := range recent {
		out = append(out, notificationDTOFrom(n))
	}
	writeJSON(w, http.StatusOK, out)
}
