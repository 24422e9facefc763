// Package metrics exposes the matcher's prometheus instruments, following
// this codebase's own metrics package: package-level collectors registered
// once, a Config gating whether the HTTP handler starts, and small wrapper
// functions so callers never touch a prometheus type directly.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls whether /metrics is served and on which port.
type Config struct {
	Enabled bool
	Path    string
	Port    int
}

func NewDefaultConfig() Config {
	return Config{Enabled: true, Path: "/metrics", Port: 2112}
}

var (
	queueLag = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "matcher",
		Name:      "queue_lag",
		Help:      "difference between the queue's last committed offset and the last offset applied",
	}, []string{"pair"})

	snapshotDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "matcher",
		Name:      "snapshot_duration_seconds",
		Help:      "time spent serialising and writing one pair's snapshot",
		Buckets:   prometheus.DefBuckets,
	}, []string{"pair"})

	reservationRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matcher",
		Name:      "reservation_rejections_total",
		Help:      "orders rejected by AddressActor.PlaceCheck, by reason",
	}, []string{"reason"})

	broadcastRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matcher",
		Name:      "broadcast_retries_total",
		Help:      "BroadcastTx retry attempts issued by the backoff-wrapped broadcaster",
	}, []string{"pair"})

	broadcastFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matcher",
		Name:      "broadcast_failures_total",
		Help:      "exchange transactions that exhausted every retry without forging",
	}, []string{"pair"})

	eventsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matcher",
		Name:      "events_applied_total",
		Help:      "queue events applied by an OrderBookActor, by kind",
	}, []string{"pair", "kind"})

	registered bool
)

// Register adds every collector to the default registry. Calls after the
// first are no-ops, so the collectors are registered at most once.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(queueLag, snapshotDuration, reservationRejections, broadcastRetries, broadcastFailures, eventsApplied)
	registered = true
}

// Start registers every collector (if not already registered) and serves
// promhttp.Handler on conf.Path, the way this codebase's own metrics.Start
// gates the HTTP listener behind conf.Enabled.
func Start(conf Config) error {
	if !conf.Enabled {
		return nil
	}
	Register()
	mux := http.NewServeMux()
	mux.Handle(conf.Path, promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(fmt.Sprintf(":%d", conf.Port), mux)
	}()
	return nil
}

func SetQueueLag(pair string, lag float64) {
	queueLag.WithLabelValues(pair).Set(lag)
}

func ObserveSnapshotDuration(pair string, seconds float64) {
	snapshotDuration.WithLabelValues(pair).Observe(seconds)
}

func IncReservationRejection(reason string) {
	reservationRejections.WithLabelValues(reason).Inc()
}

func IncBroadcastRetry(pair string) {
	broadcastRetries.WithLabelValues(pair).Inc()
}

func IncBroadcastFailure(pair string) {
	broadcastFailures.WithLabelValues(pair).Inc()
}

func IncEventApplied(pair, kind string) {
	eventsApplied.WithLabelValues(pair, kind).Inc()
}
