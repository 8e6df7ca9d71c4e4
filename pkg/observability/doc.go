// Package observability provides logging, Prometheus metrics, health checks
// and OpenTelemetry wiring for the clubhub server.
//
// # Logging
//
// Loggers are logrus instances configured from config:
//
//	logger := observability.NewLogger(observability.ParseLevel("info"), observability.FormatJSON, os.Stdout)
//	observability.FromContext(ctx, logger).Info("Club created")
//
// FromContext attaches the request and user IDs placed on the context by the
// HTTP middleware.
//
// # Metrics
//
// All metrics are prefixed with clubhub_ and registered on an explicit
// registry so tests can use NewNopMetrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// Business gauges (users, clubs, events, pending requests) are refreshed by
// StatsCollector on a cron schedule.
//
// # Health Checks
//
// HealthChecker exposes /health/live and /health/ready. PostgreSQL is a hard
// dependency; a failing Redis only reports degraded.
//
// # Tracing
//
// InitOTel installs OTLP gRPC trace and metric exporters when enabled, and
// TracingMiddleware wraps the router with otelhttp.
//
// # Shutdown
//
// ShutdownManager stops HTTP servers first, then runs registered cleanup
// functions (stats collector, OTel providers, database, Redis) concurrently.
package observability
