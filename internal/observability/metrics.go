package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the engine and its HTTP surface.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	dispenseTotal       *prometheus.CounterVec
	allocationConflicts prometheus.Counter
	batchesExpiredTotal prometheus.Counter
}

// NewMetrics initialises the registry and engine metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rxledger_http_requests_total",
		Help: "HTTP request count by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rxledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	dispense := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rxledger_dispense_total",
		Help: "Dispense operations by outcome.",
	}, []string{"outcome"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rxledger_allocation_conflicts_total",
		Help: "Allocation plans invalidated by a concurrent commit.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rxledger_batches_expired_total",
		Help: "Approved batches flipped to EXPIRED by the sweep.",
	})
	registry.MustRegister(requests, duration, dispense, conflicts, expired)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		dispenseTotal:       dispense,
		allocationConflicts: conflicts,
		batchesExpiredTotal: expired,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// DispenseOutcome counts one dispense operation by outcome.
func (m *Metrics) DispenseOutcome(outcome string) {
	if m == nil {
		return
	}
	m.dispenseTotal.WithLabelValues(outcome).Inc()
}

// AllocationConflict counts one invalidated allocation plan.
func (m *Metrics) AllocationConflict() {
	if m == nil {
		return
	}
	m.allocationConflicts.Inc()
}

// BatchesExpired counts batches flipped by the expiry sweep.
func (m *Metrics) BatchesExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.batchesExpiredTotal.Add(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
