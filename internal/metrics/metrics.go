// Package metrics provides Prometheus metrics for the stores.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics records store activity. A nil *Metrics records nothing.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	swallowedTotal    *prometheus.CounterVec
	cacheLookupsTotal *prometheus.CounterVec
}

// New registers the store metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		operationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idsrv_store_operations_total",
				Help: "Total number of store operations",
			},
			[]string{"store", "operation", "result"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idsrv_store_operation_duration_seconds",
				Help:    "Store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"store", "operation"},
		),
		swallowedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idsrv_store_swallowed_failures_total",
				Help: "Save or delete failures logged and not returned to the caller",
			},
			[]string{"store", "operation"},
		),
		cacheLookupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idsrv_store_cache_lookups_total",
				Help: "Configuration cache lookups",
			},
			[]string{"cache", "result"}, // result: "hit", "miss"
		),
	}
}

// Observe records one finished operation.
func (m *Metrics) Observe(store, operation string, start time.Time, err error) {
	if m == nil {
		return
	}

	result := ResultOK
	if err != nil {
		result = ResultError
	}

	m.operationsTotal.WithLabelValues(store, operation, result).Inc()
	m.operationDuration.WithLabelValues(store, operation).Observe(time.Since(start).Seconds())
}

// Swallowed records a failure that was logged instead of returned.
func (m *Metrics) Swallowed(store, operation string) {
	if m == nil {
		return
	}

	m.swallowedTotal.WithLabelValues(store, operation).Inc()
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	m.cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}
