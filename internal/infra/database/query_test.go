package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuilder_Postgres(t *testing.T) {
	q := newQueryBuilder(DriverPostgres, "events", "created_at", "id")

	assert.Equal(t, "SELECT COUNT(*) FROM events WHERE created_at < $1", q.countExpired())
	assert.Equal(t, "SELECT id FROM events WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2", q.selectExpiredIDs())
	assert.Equal(t, "DELETE FROM events WHERE id IN ($1, $2, $3)", q.deleteByIDs(3))
	assert.Equal(t,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN created_at < $1 THEN 1 ELSE 0 END), 0), MIN(created_at), MAX(created_at) FROM events",
		q.aggregate())
}

func TestQueryBuilder_SQLite(t *testing.T) {
	q := newQueryBuilder(DriverSQLite, "events", "created_at", "event_id")

	assert.Equal(t, "SELECT event_id FROM events WHERE created_at < ? ORDER BY created_at ASC LIMIT ?", q.selectExpiredIDs())
	assert.Equal(t, "DELETE FROM events WHERE event_id IN (?, ?)", q.deleteByIDs(2))
}

func TestQueryBuilder_SanitizesIdentifiers(t *testing.T) {
	q := newQueryBuilder(DriverPostgres, "events; DROP TABLE users", "created_at--", "id)")

	assert.Equal(t, "SELECT COUNT(*) FROM eventsDROPTABLEusers WHERE created_at < $1", q.countExpired())
	assert.Equal(t, "DELETE FROM eventsDROPTABLEusers WHERE id IN ($1)", q.deleteByIDs(1))
}

func TestDriver_BindTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.FixedZone("UTC-3", -3*60*60))

	assert.Equal(t, ts, DriverPostgres.bindTime(ts))
	assert.Equal(t, "2024-03-01 03:00:00", DriverSQLite.bindTime(ts))
}

func TestParseDriver(t *testing.T) {
	for in, want := range map[string]Driver{
		"postgres":   DriverPostgres,
		"postgresql": DriverPostgres,
		"sqlite":     DriverSQLite,
		"sqlite3":    DriverSQLite,
	} {
		got, err := ParseDriver(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseDriver("oracle")
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

	for _, v := range []any{
		want,
		"2024-02-03 04:05:06",
		[]byte("2024-02-03T04:05:06Z"),
		"2024-02-03 04:05:06+00:00",
		want.Unix(),
	} {
		got, err := parseTimestamp(v)
		require.NoError(t, err, "%T %v", v, v)
		require.NotNil(t, got)
		assert.True(t, want.Equal(*got), "%v parsed as %v", v, got)
	}

	got, err := parseTimestamp(nil)
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseTimestamp("yesterday")
	assert.Error(t, err)
	_, err = parseTimestamp(3.14)
	assert.Error(t, err)
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantConnection bool
	}{
		{"pq connection failure", &pq.Error{Code: "08006"}, true},
		{"pq admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"pq undefined table", &pq.Error{Code: "42P01"}, false},
		{"bad conn", driver.ErrBadConn, true},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", timeoutErr{}, true},
		{"syntax", errors.New("near \"FORM\": syntax error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("select", tt.err)

			var cerr *retention.ConnectionError
			var qerr *retention.QueryError
			if tt.wantConnection {
				require.True(t, errors.As(err, &cerr))
				assert.Equal(t, "select", cerr.Op)
			} else {
				require.True(t, errors.As(err, &qerr))
				assert.Equal(t, "select", qerr.Op)
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
