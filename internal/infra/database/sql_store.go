// internal/infra/database/sql_store.go
package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// SQLStore opens a fresh pool per acquisition, so no connection outlives the
// run that acquired it.
type SQLStore struct {
	driver       Driver
	dsn          string
	idColumn     string
	queryTimeout time.Duration
	logger       *logrus.Entry
}

func NewSQLStore(driver Driver, dsn, idColumn string, queryTimeout time.Duration, logger *logrus.Entry) *SQLStore {
	return &SQLStore{
		driver:       driver,
		dsn:          dsn,
		idColumn:     idColumn,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// Acquire implements retention.Store.
func (s *SQLStore) Acquire(ctx context.Context) (retention.Conn, error) {
	db, err := NewConnection(ctx, s.driver, s.dsn)
	if err != nil {
		return nil, retention.NewConnectionError("acquire", err)
	}
	s.logger.WithField("driver", s.driver).Debug("Database connection acquired")
	return &sqlConn{db: db, store: s}, nil
}

type sqlConn struct {
	db    *sql.DB
	store *SQLStore
}

func (c *sqlConn) builder(table, column string) queryBuilder {
	return newQueryBuilder(c.store.driver, table, column, c.store.idColumn)
}

func (c *sqlConn) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.store.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.store.queryTimeout)
}

func (c *sqlConn) CountExpired(ctx context.Context, table, column string, cutoff time.Time) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var n int64
	query := c.builder(table, column).countExpired()
	if err := c.db.QueryRowContext(ctx, query, c.store.driver.bindTime(cutoff)).Scan(&n); err != nil {
		return 0, classify("count", err)
	}
	return n, nil
}

func (c *sqlConn) SelectExpiredIDs(ctx context.Context, table, column string, cutoff time.Time, limit int) ([]retention.RowID, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query := c.builder(table, column).selectExpiredIDs()
	rows, err := c.db.QueryContext(ctx, query, c.store.driver.bindTime(cutoff), limit)
	if err != nil {
		return nil, classify("select", err)
	}
	defer rows.Close()

	ids := make([]retention.RowID, 0, limit)
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, classify("select", fmt.Errorf("error scanning id: %w", err))
		}
		if b, ok := id.([]byte); ok {
			id = string(b)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("select", err)
	}
	return ids, nil
}

func (c *sqlConn) DeleteByIDs(ctx context.Context, table string, ids []retention.RowID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	q := c.builder(table, "")
	var total int64
	for start := 0; start < len(ids); start += maxBindParams {
		end := min(start+maxBindParams, len(ids))
		chunk := ids[start:end]

		res, err := c.db.ExecContext(ctx, q.deleteByIDs(len(chunk)), chunk...)
		if err != nil {
			return total, classify("delete", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, classify("delete", err)
		}
		total += n
	}
	return total, nil
}

func (c *sqlConn) AggregateStats(ctx context.Context, table, column string, cutoff time.Time) (retention.TableStats, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var (
		stats    retention.TableStats
		earliest any
		latest   any
	)
	query := c.builder(table, column).aggregate()
	err := c.db.QueryRowContext(ctx, query, c.store.driver.bindTime(cutoff)).Scan(&stats.Total, &stats.Expired, &earliest, &latest)
	if err != nil {
		return retention.TableStats{}, classify("aggregate", err)
	}
	if stats.Earliest, err = parseTimestamp(earliest); err != nil {
		return retention.TableStats{}, retention.NewQueryError("aggregate", err)
	}
	if stats.Latest, err = parseTimestamp(latest); err != nil {
		return retention.TableStats{}, retention.NewQueryError("aggregate", err)
	}
	return stats, nil
}

func (c *sqlConn) Release() error {
	return c.db.Close()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	sqliteTimeLayout,
	"2006-01-02",
}

// parseTimestamp normalizes what drivers return for MIN/MAX of a timestamp
// column: time.Time from lib/pq, text from SQLite.
func parseTimestamp(v any) (*time.Time, error) {
	var s string
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &x, nil
	case int64:
		t := time.Unix(x, 0).UTC()
		return &t, nil
	case []byte:
		s = string(x)
	case string:
		s = x
	default:
		return nil, fmt.Errorf("unsupported timestamp value of type %T", v)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", s)
}

// classify maps driver errors onto the retention error taxonomy.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "57": // connection exception, operator intervention
			return retention.NewConnectionError(op, err)
		}
		return retention.NewQueryError(op, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) {
		return retention.NewConnectionError(op, err)
	}
	return retention.NewQueryError(op, err)
}
