package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdex/matcher/actor"
	"github.com/nimbusdex/matcher/broker"
	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

type fakeMatcher struct {
	ready   bool
	offset  uint64
	status  types.OrderStatus
	pair    types.AssetPair
	owner   types.PublicKey
	found   bool
	market  types.MarketStatus
	snap    *types.Snapshot
}

func (f *fakeMatcher) Status() actor.Status {
	if f.ready {
		return actor.StatusReady
	}
	return actor.StatusStarting
}

func (f *fakeMatcher) OrderByID(id types.OrderID) (types.OrderStatus, types.AssetPair, types.PublicKey, bool, error) {
	return f.status, f.pair, f.owner, f.found, nil
}

func (f *fakeMatcher) MarketStatus(ctx context.Context, pair types.AssetPair) (types.MarketStatus, bool, error) {
	return f.market, f.found, nil
}

func (f *fakeMatcher) Snapshot(ctx context.Context, pair types.AssetPair) (*types.Snapshot, bool, error) {
	return f.snap, f.found, nil
}

func (f *fakeMatcher) LastProcessedOffset() uint64 { return f.offset }

func testLogger() *logging.Logger { return logging.NewLoggerFromEnv("debug") }

func TestStatusReturns503WhileStarting(t *testing.T) {
	s := New(&fakeMatcher{ready: false}, NewDefaultConfig(), testLogger(), nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusReturnsOffsetWhenReady(t *testing.T) {
	s := New(&fakeMatcher{ready: true, offset: 42}, NewDefaultConfig(), testLogger(), nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "Ready", body["status"])
	assert.Equal(t, float64(42), body["lastProcessedOffset"])
}

func TestOrderByIDNotFound(t *testing.T) {
	s := New(&fakeMatcher{ready: true, found: false}, NewDefaultConfig(), testLogger(), nil)

	id := types.OrderID{1, 2, 3}
	req := httptest.NewRequest(http.MethodGet, "/orders/"+hex.EncodeToString(id[:]), nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderByIDInvalidHex(t *testing.T) {
	s := New(&fakeMatcher{ready: true}, NewDefaultConfig(), testLogger(), nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/not-hex", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderByIDFound(t *testing.T) {
	pair := types.NewAssetPair("A", "W")
	owner := types.PublicKey{9}
	status := types.Accepted()
	status = status.WithFill(num.NewUint(10), num.NewUint(1), false)

	s := New(&fakeMatcher{ready: true, found: true, pair: pair, owner: owner, status: status}, NewDefaultConfig(), testLogger(), nil)

	id := types.OrderID{1}
	req := httptest.NewRequest(http.MethodGet, "/orders/"+hex.EncodeToString(id[:]), nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var dto orderStatusDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
	assert.Equal(t, "PartiallyFilled", dto.Status)
	assert.Equal(t, "10", dto.Filled)
}

func TestMarketStatusFound(t *testing.T) {
	pair := types.NewAssetPair("A", "W")
	s := New(&fakeMatcher{ready: true, found: true, market: types.MarketStatus{
		Pair: pair, BestBid: num.NewUint(100), BestAsk: num.NewUint(110),
	}}, NewDefaultConfig(), testLogger(), nil)

	req := httptest.NewRequest(http.MethodGet, "/markets/A/W", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var dto marketStatusDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
	assert.Equal(t, "100", dto.BestBid)
	assert.Equal(t, "110", dto.BestAsk)
}

func TestEventsServesNotificationsPushedByTheBroker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, err := broker.New(ctx, testLogger(), broker.NewDefaultConfig())
	require.NoError(t, err)

	s := New(&fakeMatcher{ready: true}, NewDefaultConfig(), testLogger(), b)
	defer func() { _ = s.Stop(ctx) }()

	pair := types.NewAssetPair("A", "W")
	b.Send(types.OrderFilled{
		OrderID:     types.OrderID{7},
		Pair:        pair,
		FilledDelta: num.NewUint(5),
		Status:      types.Accepted(),
	})

	var dtos []notificationDTO
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		w := httptest.NewRecorder()
		s.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dtos))
		if len(dtos) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	require.Len(t, dtos, 1)
	assert.Equal(t, "OrderFilled", dtos[0].Kind)
	assert.Equal(t, "5", dtos[0].FilledDelta)
}

func TestEventsEmptyWithNoBrokerAttached(t *testing.T) {
	s := New(&fakeMatcher{ready: true}, NewDefaultConfig(), testLogger(), nil)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var dtos []notificationDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dtos))
	assert.Empty(t, dtos)
}

func TestHealthAlwaysOK(t *testing.T) {
	s := New(&fakeMatcher{ready: false}, NewDefaultConfig(), testLogger(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
