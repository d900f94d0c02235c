// internal/infra/database/query.go
package database

import (
	"strconv"
	"strings"
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
)

// maxBindParams keeps DELETE statements under the bind parameter limits of
// both PostgreSQL (65535) and SQLite (32766).
const maxBindParams = 30000

const sqliteTimeLayout = "2006-01-02 15:04:05"

// placeholder returns the n-th (1-based) bind parameter marker.
func (d Driver) placeholder(n int) string {
	if d == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// bindTime converts a timestamp into the value compared against the column.
// SQLite has no timestamp type, so values are compared as UTC text.
func (d Driver) bindTime(t time.Time) any {
	if d == DriverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t
}

// queryBuilder renders statements for one table. Identifiers are sanitized
// on construction and are the only text ever interpolated; values are
// always bind parameters.
type queryBuilder struct {
	driver   Driver
	table    string
	column   string
	idColumn string
}

func newQueryBuilder(driver Driver, table, column, idColumn string) queryBuilder {
	return queryBuilder{
		driver:   driver,
		table:    retention.SanitizeIdentifier(table),
		column:   retention.SanitizeIdentifier(column),
		idColumn: retention.SanitizeIdentifier(idColumn),
	}
}

func (q queryBuilder) countExpired() string {
	return "SELECT COUNT(*) FROM " + q.table + " WHERE " + q.column + " < " + q.driver.placeholder(1)
}

func (q queryBuilder) selectExpiredIDs() string {
	return "SELECT " + q.idColumn + " FROM " + q.table +
		" WHERE " + q.column + " < " + q.driver.placeholder(1) +
		" ORDER BY " + q.column + " ASC LIMIT " + q.driver.placeholder(2)
}

func (q queryBuilder) deleteByIDs(n int) string {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(q.table)
	b.WriteString(" WHERE ")
	b.WriteString(q.idColumn)
	b.WriteString(" IN (")
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		b.WriteString(q.driver.placeholder(i))
	}
	b.WriteString(")")
	return b.String()
}

func (q queryBuilder) aggregate() string {
	return "SELECT COUNT(*), COALESCE(SUM(CASE WHEN " + q.column + " < " + q.driver.placeholder(1) + " THEN 1 ELSE 0 END), 0), " +
		"MIN(" + q.column + "), MAX(" + q.column + ") FROM " + q.table
}
