// internal/app/health_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/sirupsen/logrus"
)

// HealthService reports aggregate statistics about the purged table.
type HealthService struct {
	store  retention.Store
	cfg    retention.Config
	loc    *time.Location
	logger *logrus.Entry
	opts   options
}

func NewHealthService(store retention.Store, cfg retention.Config, logger *logrus.Entry, opts ...Option) *HealthService {
	cfg = cfg.Sanitized()
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	return &HealthService{
		store:  store,
		cfg:    cfg,
		loc:    loc,
		logger: logger,
		opts:   buildOptions(opts),
	}
}

// CheckHealth runs one aggregate query. Failures, panics included, are logged
// and returned as an unhealthy snapshot carrying the error message.
func (s *HealthService) CheckHealth(ctx context.Context) (snap retention.HealthSnapshot) {
	now := s.opts.now().In(s.loc)
	snap = retention.HealthSnapshot{
		Table:     s.cfg.Table,
		Cutoff:    retention.ComputeCutoff(now, s.cfg.RetentionMonths),
		CheckedAt: now,
	}
	log := s.logger.WithField("table", s.cfg.Table)

	defer func() {
		if r := recover(); r != nil {
			snap = s.fail(log, retention.HealthSnapshot{
				Table:     snap.Table,
				Cutoff:    snap.Cutoff,
				CheckedAt: snap.CheckedAt,
			}, fmt.Errorf("panic during health check: %v", r))
		}
	}()

	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return s.fail(log, snap, fmt.Errorf("acquire connection: %w", err))
	}
	defer func() {
		if err := conn.Release(); err != nil {
			log.WithError(&retention.ReleaseError{Cause: err}).Error("Failed to release connection after health check")
		}
	}()

	stats, err := conn.AggregateStats(ctx, s.cfg.Table, s.cfg.DateColumn, snap.Cutoff)
	if err != nil {
		return s.fail(log, snap, fmt.Errorf("aggregate stats: %w", err))
	}

	snap.Healthy = true
	snap.TotalRows = stats.Total
	snap.ExpiredRows = stats.Expired
	snap.Earliest = stats.Earliest
	snap.Latest = stats.Latest

	entry := log.WithFields(logrus.Fields{
		"total_rows":   snap.TotalRows,
		"expired_rows": snap.ExpiredRows,
		"cutoff":       snap.Cutoff.Format(time.RFC3339),
	})
	if snap.Earliest != nil {
		entry = entry.WithField("earliest", snap.Earliest.Format(time.RFC3339))
	}
	if snap.Latest != nil {
		entry = entry.WithField("latest", snap.Latest.Format(time.RFC3339))
	}
	entry.Info("Health check completed")
	s.opts.observer.HealthChecked(snap)
	return snap
}

func (s *HealthService) fail(log *logrus.Entry, snap retention.HealthSnapshot, err error) retention.HealthSnapshot {
	snap.Healthy = false
	snap.Error = err.Error()
	log.WithError(err).Error("Health check failed")
	s.opts.observer.HealthChecked(snap)
	return snap
}
