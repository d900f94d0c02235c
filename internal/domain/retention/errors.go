// internal/domain/retention/errors.go
package retention

import (
	"fmt"
	"strings"
)

// ConfigurationError reports missing or invalid required settings.
// It is fatal to startup and never retried.
type ConfigurationError struct {
	Missing []string // settings that are required but absent
	Invalid []string // settings that are present but malformed
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid settings: "+strings.Join(e.Invalid, "; "))
	}
	if len(parts) == 0 {
		return "configuration error"
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

// Empty reports whether no problem was recorded.
func (e *ConfigurationError) Empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// ConnectionError means the store could not be reached.
type ConnectionError struct {
	Op    string // "acquire", "count", "select", "delete", "aggregate"
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error [op=%s]: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(op string, cause error) *ConnectionError {
	return &ConnectionError{Op: op, Cause: cause}
}

// QueryError means the store rejected a statement.
type QueryError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query error [op=%s]: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// NewQueryError creates a new QueryError.
func NewQueryError(op string, cause error) *QueryError {
	return &QueryError{Op: op, Cause: cause}
}

// ReleaseError reports a failure to give a connection back. It is logged and
// never changes the outcome of the run that produced it.
type ReleaseError struct {
	Cause error
}

// Error implements the error interface.
func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release error: %v", e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ReleaseError) Unwrap() error {
	return e.Cause
}
