// internal/domain/retention/config.go
package retention

import "time"

// Config describes one retention policy. It is built once at startup and
// passed by value; nothing mutates it afterwards.
type Config struct {
	Table           string        // table to purge
	DateColumn      string        // timestamp column compared against the cutoff
	IDColumn        string        // row identifier used to delete selected batches
	RetentionMonths int           // whole months of data to keep
	BatchSize       int           // rows per delete batch
	BatchDelay      time.Duration // pause between full batches
	MaxRetries      int           // attempts per batch before the run fails
	RetryBaseDelay  time.Duration // first backoff delay, doubled per attempt
	Schedule        string        // standard 5-field cron expression
	Timezone        string        // IANA zone for the schedule and the cutoff
}

// Sanitized returns a copy with every identifier passed through SanitizeIdentifier.
func (c Config) Sanitized() Config {
	c.Table = SanitizeIdentifier(c.Table)
	c.DateColumn = SanitizeIdentifier(c.DateColumn)
	c.IDColumn = SanitizeIdentifier(c.IDColumn)
	return c
}

// Validate checks the invariants of a retention policy and reports every
// problem at once.
func (c Config) Validate() error {
	cerr := &ConfigurationError{}
	s := c.Sanitized()
	if s.Table == "" {
		cerr.Missing = append(cerr.Missing, "TABLE_NAME")
	}
	if s.DateColumn == "" {
		cerr.Missing = append(cerr.Missing, "DATE_COLUMN")
	}
	if s.IDColumn == "" {
		cerr.Invalid = append(cerr.Invalid, "ID_COLUMN must contain at least one of [A-Za-z0-9_]")
	}
	if c.BatchSize <= 0 {
		cerr.Invalid = append(cerr.Invalid, "BATCH_SIZE must be > 0")
	}
	if c.RetentionMonths < 0 {
		cerr.Invalid = append(cerr.Invalid, "RETENTION_MONTHS must be >= 0")
	}
	if c.MaxRetries < 1 {
		cerr.Invalid = append(cerr.Invalid, "MAX_RETRIES must be >= 1")
	}
	if _, err := c.Location(); err != nil {
		cerr.Invalid = append(cerr.Invalid, "TIMEZONE: "+err.Error())
	}
	if c.BatchDelay < 0 || c.RetryBaseDelay < 0 {
		cerr.Invalid = append(cerr.Invalid, "delays must not be negative")
	}
	if cerr.Empty() {
		return nil
	}
	return cerr
}

// Location resolves Timezone, falling back to UTC when it is empty.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
