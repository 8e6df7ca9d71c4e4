package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/platinummonkey/clubhub/pkg/announcements"
	"github.com/platinummonkey/clubhub/pkg/api"
	"github.com/platinummonkey/clubhub/pkg/audit"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/bus"
	"github.com/platinummonkey/clubhub/pkg/cache"
	"github.com/platinummonkey/clubhub/pkg/clubs"
	"github.com/platinummonkey/clubhub/pkg/config"
	"github.com/platinummonkey/clubhub/pkg/events"
	"github.com/platinummonkey/clubhub/pkg/middleware"
	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/platinummonkey/clubhub/pkg/storage"
	"github.com/platinummonkey/clubhub/pkg/storage/postgres"
	"github.com/platinummonkey/clubhub/pkg/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// In-process limiter bound used when Redis is not configured
const limiterKeys = 10000

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults to $"+config.EnvConfigFile+")")
	skipMigrations := flag.Bool("skip-migrations", false, "Do not apply pending migrations on startup")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(
		observability.ParseLevel(cfg.Observability.LogLevel),
		observability.LogFormat(cfg.Observability.LogFormat),
		os.Stdout,
	)

	if err := run(cfg, logger, *skipMigrations); err != nil {
		logger.WithError(err).Fatal("ClubHub exited with error")
	}
}

func run(cfg *config.Config, logger *logrus.Logger, skipMigrations bool) error {
	ctx := context.Background()

	otel, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, cfg.Database.Connection())
	if err != nil {
		return err
	}
	logger.Info("Connected to PostgreSQL")

	if !skipMigrations {
		applied, err := postgres.Migrate(ctx, db, logger)
		if err != nil {
			return err
		}
		logger.WithField("applied", applied).Info("Database migrations complete")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = postgres.NewRedisClient(ctx, cfg.Redis.Client())
		if err != nil {
			return err
		}
		logger.Info("Connected to Redis")
	}

	blobs, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.WithField("backend", cfg.Storage.Backend).Info("Image storage ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	// Shared state lives in Redis when configured, otherwise in process.
	var (
		store       cache.Store
		revocations auth.RevocationStore
		limiter     middleware.Limiter
	)
	if redisClient != nil {
		store = cache.NewRedisStore(redisClient, "")
		revocations = auth.NewRedisRevocationStore(redisClient)
		limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimit.Limits(), "")
	} else {
		store = cache.NewMemoryStore(cfg.Cache.MemoryMaxEntries, cfg.Cache.TTL)
		revocations = auth.NewMemoryRevocationStore(cfg.Auth.RefreshTTL)
		limiter = middleware.NewMemoryLimiter(cfg.RateLimit.Limits(), limiterKeys)
	}
	if !cfg.RateLimit.Enabled {
		limiter = nil
	}
	listCache := cache.New(store, cfg.Cache.Settings(), logger, metrics)

	eventBus := bus.New()
	userService := users.NewPostgresService(db, auth.NewPasswordHasher(cfg.Auth.BcryptCost), listCache, logger)
	userService.Subscribe(eventBus)

	deps := api.Dependencies{
		Users:          userService,
		Clubs:          clubs.NewPostgresService(db, listCache, eventBus, metrics, logger),
		Events:         events.NewPostgresService(db, listCache, metrics, logger),
		Announcements:  announcements.NewPostgresService(db, listCache),
		Tokens:         auth.NewTokenManager(cfg.Auth.Tokens(), revocations),
		Images:         storage.NewImages(blobs, cfg.Storage.MaxImageBytes, logger),
		Limiter:        limiter,
		Metrics:        metrics,
		Logger:         logger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}
	auditLog, err := audit.NewDBLogger(db)
	if err != nil {
		return err
	}
	if cfg.Audit.Enabled {
		deps.Audit = audit.NewMultiLogger(auditLog, audit.NewLogrusLogger(logger))
		deps.AuditStore = auditLog
	}
	pruner := audit.NewPruner(auditLog, cfg.Audit.Retention, logger)
	if cfg.Audit.Enabled {
		if err := pruner.Start(cfg.Audit.PruneSchedule); err != nil {
			return err
		}
	}

	if otel != nil {
		deps.TracingService = cfg.Observability.OTelServiceName
	}

	health := observability.NewHealthChecker(db, redisClient, cfg.Observability.OTelServiceVersion)
	health.AddCheck("images", blobs.HealthCheck)
	deps.Health = health
	if cfg.Observability.MetricsEnabled {
		deps.Registry = registry
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewServer(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Orchestrator probes and scrapes also get a listener on the health port.
	opsRouter := mux.NewRouter()
	opsRouter.HandleFunc("/health", health.Readiness).Methods(http.MethodGet)
	opsRouter.HandleFunc("/health/live", health.Liveness).Methods(http.MethodGet)
	opsRouter.HandleFunc("/health/ready", health.Readiness).Methods(http.MethodGet)
	if cfg.Observability.MetricsEnabled {
		opsRouter.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)
	}
	opsServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: opsRouter,
	}

	stats := observability.NewStatsCollector(db, metrics, logger)
	if cfg.Observability.MetricsEnabled {
		if err := stats.Start(cfg.Observability.StatsSchedule); err != nil {
			return err
		}
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, opsServer)
	shutdown.RegisterShutdownFunc(stats.Stop)
	shutdown.RegisterShutdownFunc(pruner.Stop)
	shutdown.RegisterShutdownFunc(otel.Shutdown)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		var errs []error
		if redisClient != nil {
			errs = append(errs, redisClient.Close())
		}
		errs = append(errs, db.Close())
		return errors.Join(errs...)
	})

	serve := func(name string, srv *http.Server) {
		logger.WithFields(logrus.Fields{"server": name, "addr": srv.Addr}).Info("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).WithField("server", name).Fatal("Server failed")
		}
	}
	go serve("api", apiServer)
	go serve("ops", opsServer)

	return shutdown.WaitForShutdown()
}
