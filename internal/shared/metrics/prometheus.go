package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	patientsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patients_upserted_total",
			Help: "Total number of patient upserts",
		},
		[]string{"tenant", "result"},
	)

	encountersUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encounters_upserted_total",
			Help: "Total number of encounter upserts",
		},
		[]string{"tenant", "result"},
	)

	careTransitionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_transitions_created_total",
			Help: "Total number of care transitions created",
		},
		[]string{"tenant", "priority"},
	)

	careTransitionStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_transition_status_changed_total",
			Help: "Total number of care transition status changes",
		},
		[]string{"from_status", "to_status"},
	)

	outreachLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_transition_outreach_logged_total",
			Help: "Total number of outreach attempts logged",
		},
		[]string{"method", "outcome"},
	)

	hl7AuditsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hl7_audits_written_total",
			Help: "Total number of HL7 message audit records written",
		},
		[]string{"message_type", "status"},
	)

	authorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"permission", "decision"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
		[]string{"store"},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routePattern labels requests by their chi route template so tenant keys
// and record keys do not blow up label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// --- Business metric helpers ---

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordPatientUpsert records a patient upsert outcome
func RecordPatientUpsert(tenantKey string, err error) {
	patientsUpserted.WithLabelValues(tenantKey, result(err)).Inc()
}

// RecordEncounterUpsert records an encounter upsert outcome
func RecordEncounterUpsert(tenantKey string, err error) {
	encountersUpserted.WithLabelValues(tenantKey, result(err)).Inc()
}

// RecordCareTransitionCreated records a care transition creation
func RecordCareTransitionCreated(tenantKey, priority string) {
	careTransitionsCreated.WithLabelValues(tenantKey, priority).Inc()
}

// RecordCareTransitionStatusChange records a care transition status change
func RecordCareTransitionStatusChange(fromStatus, toStatus string) {
	careTransitionStatusChanged.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordOutreach records a logged outreach attempt
func RecordOutreach(method, outcome string) {
	outreachLogged.WithLabelValues(method, outcome).Inc()
}

// RecordHL7Audit records an HL7 audit write
func RecordHL7Audit(messageType, status string) {
	hl7AuditsWritten.WithLabelValues(messageType, status).Inc()
}

// RecordAuthorizationDecision records an authorization decision
func RecordAuthorizationDecision(permission string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authorizationDecisions.WithLabelValues(permission, decision).Inc()
}

// RecordDBConnections records active database connections
func RecordDBConnections(store string, count int) {
	dbConnectionsActive.WithLabelValues(store).Set(float64(count))
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
