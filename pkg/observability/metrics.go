package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec
	CacheErrorsTotal        *prometheus.CounterVec

	// State machine metrics
	MembershipTransitionsTotal *prometheus.CounterVec
	RegistrationOutcomesTotal  *prometheus.CounterVec
	AuthEventsTotal            *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen prometheus.Gauge
	DBConnectionsIdle prometheus.Gauge

	// Business metrics
	UsersTotal              prometheus.Gauge
	ClubsTotal              prometheus.Gauge
	EventsTotal             prometheus.Gauge
	PendingJoinRequests     prometheus.Gauge
	PendingRegistrations    prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clubhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubhub_cache_hits_total",
				Help: "Total number of collection cache hits",
			},
			[]string{"kind"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubhub_cache_misses_total",
				Help: "Total number of collection cache misses",
			},
			[]string{"kind"},
		),
		CacheInvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubhub_cache_invalidations_total",
				Help: "Total number of collection cache invalidations",
			},
			[]string{"kind"},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubhub_cache_errors_total",
				Help: "Total number of cache backend errors",
			},
			[]string{"operation"},
		),

		MembershipTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubhub_membership_transitions_total",
				Help: "Club membership state transitions",
			},
			[]string{"transition"},
		),
		RegistrationOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubhub_registration_outcomes_total",
				Help: "Event registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubhub_auth_events_total",
				Help: "Authentication events by type and result",
			},
			[]string{"event", "result"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clubhub_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clubhub_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clubhub_users_total",
				Help: "Total number of users",
			},
		),
		ClubsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clubhub_clubs_total",
				Help: "Total number of clubs",
			},
		),
		EventsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clubhub_events_total",
				Help: "Total number of events",
			},
		),
		PendingJoinRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clubhub_pending_join_requests",
				Help: "Club join requests awaiting review",
			},
		),
		PendingRegistrations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clubhub_pending_registrations",
				Help: "Event registrations awaiting review",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidationsTotal,
		m.CacheErrorsTotal,
		m.MembershipTransitionsTotal,
		m.RegistrationOutcomesTotal,
		m.AuthEventsTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsIdle,
		m.UsersTotal,
		m.ClubsTotal,
		m.EventsTotal,
		m.PendingJoinRequests,
		m.PendingRegistrations,
	)

	return m
}

// NewNopMetrics returns metrics registered on a throwaway registry, for tests and tools
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// The route label is the mux path template so IDs do not explode cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// MetricsHandler returns the /metrics handler for a registry
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
