// internal/domain/retention/result.go
package retention

import "time"

// Trigger tells how a run was started.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// RunResult is the outcome of one cleanup run. It is built by the run and
// not modified once returned.
type RunResult struct {
	RunID     string        `json:"run_id"`
	Trigger   Trigger       `json:"trigger"`
	Success   bool          `json:"success"`
	Deleted   int64         `json:"deleted"`
	Batches   int           `json:"batches"`
	Expired   int64         `json:"expired"` // rows matching the cutoff when the run started
	Cutoff    time.Time     `json:"cutoff"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Error     string        `json:"error,omitempty"`
}

// SchedulerStats is a snapshot of the scheduler's cumulative counters.
// It is returned by value so holders cannot change the scheduler through it.
type SchedulerStats struct {
	State         string    `json:"state"`
	RunsAttempted int64     `json:"runs_attempted"`
	RunsSucceeded int64     `json:"runs_succeeded"`
	RunsFailed    int64     `json:"runs_failed"`
	LastRun       time.Time `json:"last_run"`
	NextRun       time.Time `json:"next_run"`
	LastResult    RunResult `json:"last_result"`
	RunInProgress bool      `json:"run_in_progress"`
}

// TableStats is what a store reports for one aggregate query.
type TableStats struct {
	Total    int64
	Expired  int64
	Earliest *time.Time
	Latest   *time.Time
}

// HealthSnapshot is a point-in-time view of the purged table. It is
// recomputed on every check and never persisted.
type HealthSnapshot struct {
	Healthy     bool       `json:"healthy"`
	Table       string     `json:"table"`
	Cutoff      time.Time  `json:"cutoff"`
	TotalRows   int64      `json:"total_rows"`
	ExpiredRows int64      `json:"expired_rows"`
	Earliest    *time.Time `json:"earliest,omitempty"`
	Latest      *time.Time `json:"latest,omitempty"`
	CheckedAt   time.Time  `json:"checked_at"`
	Error       string     `json:"error,omitempty"`
}
