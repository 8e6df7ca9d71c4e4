package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultPruneSchedule runs retention cleanup once a day
const DefaultPruneSchedule = "@daily"

// Pruner deletes audit events older than the retention period
type Pruner struct {
	store     Store
	retention time.Duration
	logger    logrus.FieldLogger
	cron      *cron.Cron
	now       func() time.Time
}

// NewPruner creates a pruner; a zero retention keeps events forever
func NewPruner(store Store, retention time.Duration, logger logrus.FieldLogger) *Pruner {
	return &Pruner{
		store:     store,
		retention: retention,
		logger:    logger.WithField("component", "audit_pruner"),
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Prune deletes expired events once and returns how many were removed
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	cutoff := p.now().Add(-p.retention)
	deleted, err := p.store.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	p.logger.WithFields(logrus.Fields{"deleted": deleted, "cutoff": cutoff}).Info("Pruned audit events")
	return deleted, nil
}

// Start schedules Prune on the given cron spec
func (p *Pruner) Start(schedule string) error {
	if p.retention <= 0 {
		p.logger.Info("Audit retention disabled, events are kept forever")
		return nil
	}
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}

	_, err := p.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := p.Prune(ctx); err != nil {
			p.logger.WithError(err).Warn("Audit pruning failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit pruning: %w", err)
	}

	p.cron.Start()
	p.logger.WithFields(logrus.Fields{"schedule": schedule, "retention": p.retention}).Info("Audit pruner started")
	return nil
}

// Stop halts the scheduler and waits for a running prune to finish
func (p *Pruner) Stop(ctx context.Context) error {
	stopped := p.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
