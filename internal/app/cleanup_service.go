// internal/app/cleanup_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/Castellari-dev/cleaner/internal/retry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CleanupService runs one complete retention cleanup against a Store.
type CleanupService struct {
	store   retention.Store
	cfg     retention.Config
	loc     *time.Location
	deleter *BatchDeleter
	logger  *logrus.Entry
	opts    options
}

// NewCleanupService builds a cleanup service. Identifiers in cfg are
// sanitized here once; an unknown timezone falls back to UTC.
func NewCleanupService(store retention.Store, cfg retention.Config, logger *logrus.Entry, opts ...Option) *CleanupService {
	cfg = cfg.Sanitized()
	loc, err := cfg.Location()
	if err != nil {
		logger.WithError(err).WithField("timezone", cfg.Timezone).Warn("Unknown timezone, using UTC")
		loc = time.UTC
	}
	return &CleanupService{
		store:   store,
		cfg:     cfg,
		loc:     loc,
		deleter: NewBatchDeleter(cfg, logger, opts...),
		logger:  logger,
		opts:    buildOptions(opts),
	}
}

// Run performs one cleanup and always returns a result; errors are folded
// into a failed RunResult. The acquired connection is released on every path.
func (s *CleanupService) Run(ctx context.Context, trigger retention.Trigger) (res retention.RunResult) {
	started := s.opts.now()
	res = retention.RunResult{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: started,
	}
	log := s.logger.WithFields(logrus.Fields{
		"run_id":  res.RunID,
		"trigger": trigger,
		"table":   s.cfg.Table,
	})
	log.Info("Cleanup run started")

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic during cleanup: %v", r)
			res.Elapsed = s.opts.now().Sub(started)
			log.WithField("panic", r).Error("Cleanup run panicked")
		}
		s.opts.observer.RunFinished(res)
	}()

	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return s.fail(log, res, started, fmt.Errorf("acquire connection: %w", err))
	}
	defer s.release(log, conn)

	res.Cutoff = retention.ComputeCutoff(s.opts.now().In(s.loc), s.cfg.RetentionMonths)
	log = log.WithField("cutoff", res.Cutoff.Format(time.RFC3339))

	expired, err := retry.Do(ctx, s.policy(log, "count"), func(ctx context.Context) (int64, error) {
		return conn.CountExpired(ctx, s.cfg.Table, s.cfg.DateColumn, res.Cutoff)
	})
	if err != nil {
		return s.fail(log, res, started, fmt.Errorf("count expired rows: %w", err))
	}
	res.Expired = expired

	if expired == 0 {
		res.Success = true
		log.Info("No expired rows, nothing to delete")
		return res
	}
	log.WithField("expired", expired).Info("Deleting expired rows")

	report, err := s.deleter.DeleteExpired(ctx, conn, s.cfg.Table, s.cfg.DateColumn, res.Cutoff)
	res.Deleted = report.Deleted
	res.Batches = report.Batches
	if err != nil {
		return s.fail(log, res, started, fmt.Errorf("delete expired rows: %w", err))
	}

	res.Success = true
	res.Elapsed = s.opts.now().Sub(started)
	log.WithFields(logrus.Fields{
		"deleted":    res.Deleted,
		"batches":    res.Batches,
		"elapsed_ms": res.Elapsed.Milliseconds(),
	}).Info("Cleanup run completed")
	return res
}

func (s *CleanupService) fail(log *logrus.Entry, res retention.RunResult, started time.Time, err error) retention.RunResult {
	res.Success = false
	res.Error = err.Error()
	res.Elapsed = s.opts.now().Sub(started)
	log.WithError(err).WithFields(logrus.Fields{
		"deleted":    res.Deleted,
		"elapsed_ms": res.Elapsed.Milliseconds(),
	}).Error("Cleanup run failed")
	return res
}

func (s *CleanupService) release(log *logrus.Entry, conn retention.Conn) {
	if err := conn.Release(); err != nil {
		log.WithError(&retention.ReleaseError{Cause: err}).Error("Failed to release connection")
		return
	}
	log.Debug("Connection released")
}

func (s *CleanupService) policy(log *logrus.Entry, op string) retry.Policy {
	return retry.Policy{
		MaxAttempts: s.cfg.MaxRetries,
		BaseDelay:   s.cfg.RetryBaseDelay,
		Sleep:       s.opts.sleep,
		OnFailure: func(attempt, maxAttempts int, err error) {
			log.WithError(err).WithFields(logrus.Fields{
				"op":           op,
				"attempt":      attempt,
				"max_attempts": maxAttempts,
			}).Warn("Attempt failed")
			s.opts.observer.AttemptFailed(op, attempt, err)
		},
	}
}
