// internal/app/batch_deleter.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/Castellari-dev/cleaner/internal/retry"
	"github.com/sirupsen/logrus"
)

// BatchReport summarizes one DeleteExpired call.
type BatchReport struct {
	Deleted int64
	Batches int
}

// BatchDeleter removes expired rows in bounded, sequential batches.
type BatchDeleter struct {
	batchSize      int
	batchDelay     time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *logrus.Entry
	opts           options
}

func NewBatchDeleter(cfg retention.Config, logger *logrus.Entry, opts ...Option) *BatchDeleter {
	return &BatchDeleter{
		batchSize:      cfg.BatchSize,
		batchDelay:     cfg.BatchDelay,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		logger:         logger,
		opts:           buildOptions(opts),
	}
}

// DeleteExpired deletes every row of table whose column is before cutoff.
//
// Each batch selects the oldest ids first and deletes them by id, so the set
// a batch removes is fixed at selection time. Selection and deletion form one
// retry unit: a failure in either retries the whole batch, which is safe
// because deleting an already deleted id affects nothing. On error the report
// still holds what earlier batches removed.
func (d *BatchDeleter) DeleteExpired(ctx context.Context, conn retention.Conn, table, column string, cutoff time.Time) (BatchReport, error) {
	var report BatchReport
	log := d.logger.WithFields(logrus.Fields{
		"table":      table,
		"column":     column,
		"cutoff":     cutoff.Format(time.RFC3339),
		"batch_size": d.batchSize,
	})

	for {
		batchNo := report.Batches + 1
		policy := retry.Policy{
			MaxAttempts: d.maxRetries,
			BaseDelay:   d.retryBaseDelay,
			Sleep:       d.opts.sleep,
			OnFailure: func(attempt, maxAttempts int, err error) {
				log.WithError(err).WithFields(logrus.Fields{
					"batch":        batchNo,
					"attempt":      attempt,
					"max_attempts": maxAttempts,
				}).Warn("Batch attempt failed")
				d.opts.observer.AttemptFailed("batch", attempt, err)
			},
		}

		deleted, err := retry.Do(ctx, policy, func(ctx context.Context) (int64, error) {
			ids, err := conn.SelectExpiredIDs(ctx, table, column, cutoff, d.batchSize)
			if err != nil {
				return 0, err
			}
			if len(ids) == 0 {
				return 0, nil
			}
			return conn.DeleteByIDs(ctx, table, ids)
		})
		if err != nil {
			return report, fmt.Errorf("batch %d: %w", batchNo, err)
		}

		if deleted == 0 {
			log.WithField("total_deleted", report.Deleted).Debug("No expired rows left")
			return report, nil
		}

		report.Deleted += deleted
		report.Batches++
		d.opts.observer.BatchDeleted(deleted)
		log.WithFields(logrus.Fields{
			"batch":         report.Batches,
			"deleted":       deleted,
			"total_deleted": report.Deleted,
		}).Info("Batch deleted")

		if deleted < int64(d.batchSize) {
			return report, nil
		}

		if err := d.opts.sleep(ctx, d.batchDelay); err != nil {
			return report, err
		}
	}
}
