// internal/domain/retention/store.go
package retention

import (
	"context"
	"time"
)

// RowID is a primary key value as returned by the driver (int64 or string).
type RowID = any

// Store hands out connections scoped to a single run.
type Store interface {
	// Acquire opens a connection. Failures are reported as *ConnectionError.
	Acquire(ctx context.Context) (Conn, error)
}

// Conn is one acquired connection. Table and column arguments are
// identifiers; every value travels as a bound parameter.
type Conn interface {
	CountExpired(ctx context.Context, table, column string, cutoff time.Time) (int64, error)
	// SelectExpiredIDs returns up to limit ids whose column is strictly
	// before cutoff, oldest first.
	SelectExpiredIDs(ctx context.Context, table, column string, cutoff time.Time, limit int) ([]RowID, error)
	// DeleteByIDs deletes exactly the given ids. Ids that no longer exist are
	// not an error; they just do not count towards the affected rows.
	DeleteByIDs(ctx context.Context, table string, ids []RowID) (int64, error)
	AggregateStats(ctx context.Context, table, column string, cutoff time.Time) (TableStats, error)
	Release() error
}

// Notifier is told about every finished run.
type Notifier interface {
	NotifyRun(ctx context.Context, result RunResult)
}
