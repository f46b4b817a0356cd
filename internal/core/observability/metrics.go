// Package observability holds the Prometheus instruments shared by the HTTP
// layer, the warehouse client, the result cache and the invalidation consumer.
package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type instruments struct {
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	warehouseStatementsTotal   *prometheus.CounterVec
	warehouseLatencySeconds    *prometheus.HistogramVec
	connectionState            *prometheus.GaugeVec
	cacheResults               *prometheus.CounterVec
	cacheOpSeconds             *prometheus.HistogramVec
	invalidationsTotal         *prometheus.CounterVec
	kafkaConsumerErrors        *prometheus.CounterVec
}

var current atomic.Pointer[instruments]

func init() {
	current.Store(newInstruments(prometheus.DefaultRegisterer))
}

// Init rebinds every instrument to reg. When disabled (or reg is nil) the
// instruments go to a private registry that is never scraped.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		reg = prometheus.NewRegistry()
	}
	current.Store(newInstruments(reg))
}

func newInstruments(reg prometheus.Registerer) *instruments {
	f := promauto.With(reg)
	return &instruments{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"method", "route", "status"},
		),
		warehouseStatementsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warehouse_statements_total",
				Help: "Warehouse calls by kind (connect|query|count) and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		warehouseLatencySeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warehouse_latency_seconds",
				Help:    "Latency of warehouse calls in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"kind"},
		),
		connectionState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "warehouse_connection_state",
				Help: "1 for the current warehouse connection state, 0 for the others.",
			},
			[]string{"state"},
		),
		cacheResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_results_total",
				Help: "Result cache lookups by outcome.",
			},
			[]string{"outcome"},
		),
		cacheOpSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cache_operation_duration_seconds",
				Help:    "Duration of cache backend operations.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"op", "outcome"},
		),
		invalidationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invalidation_events_total",
				Help: "Invalidation events by op and result.",
			},
			[]string{"op", "result"},
		),
		kafkaConsumerErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_consumer_errors_total",
				Help: "Kafka consumer errors by kind.",
			},
			[]string{"kind"},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	m := current.Load()
	st := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	m.httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveWarehouse(kind string, err error, durationSeconds float64) {
	m := current.Load()
	m.warehouseStatementsTotal.WithLabelValues(kind, outcome(err)).Inc()
	m.warehouseLatencySeconds.WithLabelValues(kind).Observe(durationSeconds)
}

// SetConnectionState sets the gauge for state to 1 and every other known
// state to 0.
func SetConnectionState(state string, all []string) {
	m := current.Load()
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.connectionState.WithLabelValues(s).Set(v)
	}
}

func IncCacheHit()  { current.Load().cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss() { current.Load().cacheResults.WithLabelValues("miss").Inc() }

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	current.Load().cacheOpSeconds.WithLabelValues(op, outcome(err)).Observe(durationSeconds)
}

func ObserveInvalidation(op, result string) {
	current.Load().invalidationsTotal.WithLabelValues(op, result).Inc()
}

func IncKafkaConsumerError(kind string) {
	current.Load().kafkaConsumerErrors.WithLabelValues(kind).Inc()
}
