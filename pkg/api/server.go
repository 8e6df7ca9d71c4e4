package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/clubhub/pkg/announcements"
	"github.com/platinummonkey/clubhub/pkg/audit"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/clubs"
	"github.com/platinummonkey/clubhub/pkg/events"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/middleware"
	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/platinummonkey/clubhub/pkg/rbac"
	"github.com/platinummonkey/clubhub/pkg/storage"
	"github.com/platinummonkey/clubhub/pkg/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// maxRequestBytes bounds JSON request bodies
const maxRequestBytes = 1 << 20

// Dependencies are the collaborators the HTTP layer is built from
type Dependencies struct {
	Users         users.Service
	Clubs         clubs.Service
	Events        events.Service
	Announcements announcements.Service
	Tokens        *auth.TokenManager
	Resolver      *rbac.Resolver

	// Images enables the upload and download routes when set
	Images *storage.Images

	// Audit records the audit trail; nil discards it
	Audit audit.Logger
	// AuditStore serves the audit routes when set
	AuditStore audit.Store

	// Limiter throttles login and register; nil disables throttling
	Limiter middleware.Limiter
	// Health serves the /health endpoints when set
	Health *observability.HealthChecker
	// Registry serves /metrics when set
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	Logger         logrus.FieldLogger
	AllowedOrigins []string
	// TracingService names the otelhttp spans; empty disables tracing
	TracingService string
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	deps    Dependencies

	// maxUploadBytes bounds multipart bodies
	maxUploadBytes int64
}

// NewServer creates a new API server with every route registered
func NewServer(deps Dependencies) *Server {
	if deps.Resolver == nil {
		deps.Resolver = rbac.NewResolver()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewNopMetrics()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NopLogger()
	}

	s := &Server{
		router:         mux.NewRouter(),
		deps:           deps,
		maxUploadBytes: maxRequestBytes,
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.setupRoutes()

	// Route-aware middleware runs after mux has matched the request.
	s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	s.router.Use(audit.Middleware(deps.Audit, auditedRoutes, deps.Logger))

	middlewares := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(deps.Logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.Logger),
		httputil.CORSMiddleware(deps.AllowedOrigins),
		httputil.BodyLimitMiddleware(maxRequestBytes, s.maxUploadBytes),
		httputil.ContentTypeMiddleware,
	}
	if deps.TracingService != "" {
		middlewares = append([]func(http.Handler) http.Handler{observability.TracingMiddleware(deps.TracingService)}, middlewares...)
	}
	s.handler = httputil.Chain(middlewares...)(s.router)

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	authn := middleware.NewAuthMiddleware(s.deps.Tokens, s.deps.Users, s.deps.Logger, false).Handler

	throttle := func(next http.Handler) http.Handler { return next }
	if s.deps.Limiter != nil {
		throttle = middleware.RateLimit(s.deps.Limiter, s.deps.Logger)
	}

	s.RegisterRoutes(NewAuthHandlers(s.deps.Users, s.deps.Tokens, s.deps.Resolver, s.deps.Metrics, s.deps.Logger, authn, throttle))
	s.RegisterRoutes(NewClubHandlers(s.deps.Clubs, s.deps.Announcements, s.deps.Resolver, s.deps.Logger, authn))
	s.RegisterRoutes(NewEventHandlers(s.deps.Events, s.deps.Resolver, s.deps.Logger, authn))
	s.RegisterRoutes(NewUserHandlers(s.deps.Users, s.deps.Clubs, s.deps.Events, s.deps.Resolver, s.deps.Logger, authn))

	if s.deps.Images != nil {
		images := NewImageHandlers(s.deps.Images, s.deps.Clubs, s.deps.Events, s.deps.Users, s.deps.Resolver, s.deps.Logger, authn)
		s.maxUploadBytes = images.MaxUploadBytes()
		s.RegisterRoutes(images)
	}

	if s.deps.AuditStore != nil {
		s.RegisterRoutes(NewAuditHandlers(s.deps.AuditStore, s.deps.Resolver, s.deps.Logger, authn))
	}

	if s.deps.Health != nil {
		s.router.HandleFunc("/health", s.deps.Health.Readiness).Methods(http.MethodGet)
		s.router.HandleFunc("/health/live", s.deps.Health.Liveness).Methods(http.MethodGet)
		s.router.HandleFunc("/health/ready", s.deps.Health.Readiness).Methods(http.MethodGet)
	}
	if s.deps.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.deps.Registry)).Methods(http.MethodGet)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router for additional registrations
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}
