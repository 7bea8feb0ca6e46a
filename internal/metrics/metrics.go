// Package metrics provides Prometheus instrumentation for the league engines.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LedgerEntriesTotal counts ledger entries written, partitioned by type.
	LedgerEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "league_ledger_entries_total",
		Help: "Total number of ledger entries written",
	}, []string{"entry_type"})

	// BooksPhaseDuration tracks how long each books phase takes.
	BooksPhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "league_books_phase_duration_seconds",
		Help:    "Books phase latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	// TransactionsTotal counts executed roster and contract transactions.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "league_transactions_total",
		Help: "Total number of transactions executed",
	}, []string{"type"})

	// RollbacksTotal counts successful rollbacks.
	RollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "league_rollbacks_total",
		Help: "Total number of transactions rolled back",
	}, []string{"type"})

	// ProposalTransitions counts trade proposal state changes.
	ProposalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "league_trade_proposal_transitions_total",
		Help: "Trade proposal transitions by resulting status",
	}, []string{"status"})

	// RosterLimitRejections counts moves rejected by the roster limiter.
	RosterLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "league_roster_limit_rejections_total",
		Help: "Moves rejected by roster limits",
	})

	// ContractOutcomes counts end-of-season outcomes.
	ContractOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "league_contract_outcomes_total",
		Help: "End-of-season contract outcomes",
	}, []string{"outcome"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "league_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "league_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "league_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePhase records the duration of a books phase that began at start.
func ObservePhase(phase string, start time.Time) {
	BooksPhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}
