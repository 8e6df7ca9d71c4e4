package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultStatsSchedule refreshes business gauges every minute
const DefaultStatsSchedule = "@every 1m"

type statQuery struct {
	name  string
	query string
	gauge prometheus.Gauge
}

// StatsCollector periodically counts domain rows and publishes them as gauges
type StatsCollector struct {
	db      *sql.DB
	metrics *Metrics
	logger  logrus.FieldLogger
	cron    *cron.Cron
	queries []statQuery
}

// NewStatsCollector creates a collector; call Start to schedule it
func NewStatsCollector(db *sql.DB, metrics *Metrics, logger logrus.FieldLogger) *StatsCollector {
	return &StatsCollector{
		db:      db,
		metrics: metrics,
		logger:  logger.WithField("component", "stats"),
		cron:    cron.New(),
		queries: []statQuery{
			{"users", "SELECT COUNT(*) FROM users", metrics.UsersTotal},
			{"clubs", "SELECT COUNT(*) FROM clubs", metrics.ClubsTotal},
			{"events", "SELECT COUNT(*) FROM events", metrics.EventsTotal},
			{"pending_join_requests", "SELECT COUNT(*) FROM club_user WHERE status = 'pending'", metrics.PendingJoinRequests},
			{"pending_registrations", "SELECT COUNT(*) FROM event_registrations WHERE status = 'pending'", metrics.PendingRegistrations},
		},
	}
}

// Start schedules Collect on the given cron spec and runs one collection immediately
func (s *StatsCollector) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultStatsSchedule
	}

	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Collect(ctx); err != nil {
			s.logger.WithError(err).Warn("Stats collection failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule stats collection: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", schedule).Info("Stats collector started")
	return nil
}

// Stop halts the scheduler and waits for a running collection to finish
func (s *StatsCollector) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Collect runs all count queries concurrently and updates the gauges
func (s *StatsCollector) Collect(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range s.queries {
		q := q
		g.Go(func() error {
			var n int64
			if err := s.db.QueryRowContext(gctx, q.query).Scan(&n); err != nil {
				return fmt.Errorf("failed to count %s: %w", q.name, err)
			}
			q.gauge.Set(float64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	dbStats := s.db.Stats()
	s.metrics.DBConnectionsOpen.Set(float64(dbStats.OpenConnections))
	s.metrics.DBConnectionsIdle.Set(float64(dbStats.Idle))
	return nil
}
