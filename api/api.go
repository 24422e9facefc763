// Package api is the matcher's minimal HTTP status surface (spec.md §6),
// routed with github.com/julienschmidt/httprouter and wrapped in CORS via
// github.com/rs/cors, the way this codebase's own faucet and wallet HTTP
// servers embed *httprouter.Router and register one handler per route in
// their constructor.
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/nimbusdex/matcher/actor"
	"github.com/nimbusdex/matcher/broker"
	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/types"
)

// Matcher is the subset of *actor.MatcherActor the HTTP surface consults.
// Every handler except /health checks Status() first and answers 503 while Starting
// (spec.md §7, resolving §9's open question on request handling during
// recovery).
type Matcher interface {
	Status() actor.Status
	OrderByID(id types.OrderID) (types.OrderStatus, types.AssetPair, types.PublicKey, bool, error)
	MarketStatus(ctx context.Context, pair types.AssetPair) (types.MarketStatus, bool, error)
	Snapshot(ctx context.Context, pair types.AssetPair) (*types.Snapshot, bool, error)
	LastProcessedOffset() uint64
}

// Config controls CORS and the listen address.
type Config struct {
	Port           int
	AllowedOrigins []string
}

func NewDefaultConfig() Config {
	return Config{Port: 8080, AllowedOrigins: []string{"*"}}
}

// Server is the matcher's read-only status surface.
type Server struct {
	*httprouter.Router

	matcher Matcher
	cfg     Config
	log     *logging.Logger
	s       *http.Server

	events broker.I
	feed   *eventFeed
}

// New wires up the status surface. If events is non-nil, the server
// subscribes its own in-memory eventFeed to it so /events has something
// to serve; pass nil to run with no broker attached.
func New(matcher Matcher, cfg Config, log *logging.Logger, events broker.I) *Server {
	s := &Server{
		Router:  httprouter.New(),
		matcher: matcher,
		cfg:     cfg,
		log:     log.Named("api"),
		events:  events,
	}
	if events != nil {
		s.feed = newEventFeed(256)
		go s.feed.run()
		s.feed.SetID(events.Subscribe(s.feed))
	}
	s.GET("/health", s.health)
	s.GET("/status", s.status)
	s.GET("/orders/:id", s.orderByID)
	s.GET("/books/:amountAsset/:priceAsset", s.orderBook)
	s.GET("/markets/:amountAsset/:priceAsset", s.marketStatus)
	s.GET("/events", s.recentEvents)
	return s
}

// Start listens on cfg.Port, wrapping the router in a permissive-by-default
// CORS policy scoped to cfg.AllowedOrigins.
func (s *Server) Start() error {
	s.s = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: cors.New(corsOptions(s.cfg.AllowedOrigins)).Handler(withRequestID(s.Router)),
	}
	s.log.Info("starting status surface", zap.String("addr", s.s.Addr))
	return s.s.ListenAndServe()
}

// withRequestID stamps every response with a fresh request id, so a
// client-reported issue can be correlated with this server's own logs
// without the client having to generate one itself.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", uuid.New().String())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Stop(ctx context.Context) error {
	if s.feed != nil {
		s.events.Unsubscribe(s.feed.ID())
		s.feed.stop()
	}
	if s.s == nil {
		return nil
	}
	return s.s.Shutdown(ctx)
}

func corsOptions(allowedOrigins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedHeaders: []string{"*"},
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.requireReady(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              s.matcher.Status().String(),
		"lastProcessedOffset": s.matcher.LastProcessedOffset(),
	})
}

func (s *Server) orderByID(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !s.requireReady(w) {
		return
	}
	id, err := parseOrderID(p.ByName("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, pair, owner, found, err := s.matcher.OrderByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, orderStatusDTO{
		ID:     hex.EncodeToString(id[:]),
		Pair:   pair.Key(),
		Owner:  hex.EncodeToString(owner[:]),
		Status: status.Kind.String(),
		Filled: status.Filled.String(),
	})
}

func (s *Server) orderBook(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !s.requireReady(w) {
		return
	}
	pair := types.NewAssetPair(types.AssetID(p.ByName("amountAsset")), types.AssetID(p.ByName("priceAsset")))
	snap, found, err := s.matcher.Snapshot(r.Context(), pair)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshotDTO{
		Offset: snap.Offset,
		Bids:   levelsDTO(snap.Bids),
		Asks:   levelsDTO(snap.Asks),
	})
}

func (s *Server) marketStatus(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !s.requireReady(w) {
		return
	}
	pair := types.NewAssetPair(types.AssetID(p.ByName("amountAsset")), types.AssetID(p.ByName("priceAsset")))
	status, found, err := s.matcher.MarketStatus(r.Context(), pair)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	dto := marketStatusDTO{Pair: pair.Key()}
	if status.BestBid != nil {
		dto.BestBid = status.BestBid.String()
	}
	if status.BestAsk != nil {
		dto.BestAsk = status.BestAsk.String()
	}
	if status.LastTrade != nil {
		dto.LastTradePrice = status.LastTrade.Price.String()
		dto.LastTradeAmount = status.LastTrade.Amount.String()
	}
	writeJSON(w, http.StatusOK, dto)
}

// requireReady answers 503 and returns false while the matcher is still
// replaying its event log (spec.md §7).
func (s *Server) requireReady(w http.ResponseWriter) bool {
	if s.matcher.Status() != actor.StatusReady {
		writeError(w, http.StatusServiceUnavailable, errNotReady)
		return false
	}
	return true
}

type orderStatusDTO struct {
	ID     string `json:"id"`
	Pair   string `json:"pair"`
	Owner  string `json:"owner"`
	Status string `json:"status"`
	Filled string `json:"filled"`
}

type snapshotDTO struct {
	Offset uint64      `json:"offset"`
	Bids   []levelDTO  `json:"bids"`
	Asks   []levelDTO  `json:"asks"`
}

type levelDTO struct {
	Price   string         `json:"price"`
	Entries []orderEntryDTO `json:"entries"`
}

type orderEntryDTO struct {
	ID              string `json:"id"`
	Owner           string `json:"owner"`
	AmountRemaining string `json:"amountRemaining"`
}

func levelsDTO(levels []types.SnapshotLevel) []levelDTO {
	out := make([]levelDTO, 0, len(levels))
	for _, lvl := range levels {
		entries := make([]orderEntryDTO, 0, len(lvl.Entries))
		for _, e := range lvl.Entries {
			entries = append(entries, orderEntryDTO{
				ID:              hex.EncodeToString(e.Order.ID[:]),
				Owner:           hex.EncodeToString(e.Order.Owner[:]),
				AmountRemaining: e.AmountRemaining.String(),
			})
		}
		out = append(out, levelDTO{Price: lvl.Price.String(), Entries: entries})
	}
	return out
}

type marketStatusDTO struct {
	Pair            string `json:"pair"`
	BestBid         string `json:"bestBid,omitempty"`
	BestAsk         string `json:"bestAsk,omitempty"`
	LastTradePrice  string `json:"lastTradePrice,omitempty"`
	LastTradeAmount string `json:"lastTradeAmount,omitempty"`
}

var (
	errNotFound = &apiError{"not found"}
	errNotReady = &apiError{"matcher is still recovering"}
)

type apiError struct {
	Message string `json:"error"`
}

func (e *apiError) Error() string { return e.Message }

func parseOrderID(s string) (types.OrderID, error) {
	var id types.OrderID
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(raw) != len(id) {
		return id, &apiError{"invalid order id"}
	}
	copy(id[:], raw)
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	ae, ok := err.(*apiError)
	if !ok {
		ae = &apiError{err.Error()}
	}
	writeJSON(w, status, ae)
}
