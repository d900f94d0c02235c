package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
)

const dateLayout = "2006-01-02 15:04 MST"

// FormatRunResult renders a run summary for the admin chat.
func FormatRunResult(table string, res retention.RunResult) string {
	var b strings.Builder
	if res.Success {
		fmt.Fprintf(&b, "✅ Cleanup of %s succeeded\n", table)
	} else {
		fmt.Fprintf(&b, "❌ Cleanup of %s failed\n", table)
	}
	fmt.Fprintf(&b, "Run: %s (%s)\n", res.RunID, res.Trigger)
	if !res.Cutoff.IsZero() {
		fmt.Fprintf(&b, "Cutoff: %s\n", res.Cutoff.Format(dateLayout))
	}
	fmt.Fprintf(&b, "Deleted: %d of %d expired rows in %d batches\n", res.Deleted, res.Expired, res.Batches)
	fmt.Fprintf(&b, "Elapsed: %s", res.Elapsed.Round(time.Millisecond))
	if res.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", res.Error)
	}
	return b.String()
}

// FormatStats renders scheduler counters.
func FormatStats(stats retention.SchedulerStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scheduler: %s\n", stats.State)
	fmt.Fprintf(&b, "Runs: %d attempted, %d succeeded, %d failed\n", stats.RunsAttempted, stats.RunsSucceeded, stats.RunsFailed)
	fmt.Fprintf(&b, "Last run: %s\n", formatTime(stats.LastRun))
	fmt.Fprintf(&b, "Next run: %s", formatTime(stats.NextRun))
	if stats.RunInProgress {
		b.WriteString("\nA run is in progress")
	}
	return b.String()
}

// FormatHealth renders a health snapshot.
func FormatHealth(snap retention.HealthSnapshot) string {
	if !snap.Healthy {
		return fmt.Sprintf("❌ Health check of %s failed: %s", snap.Table, snap.Error)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✅ %s is reachable\n", snap.Table)
	fmt.Fprintf(&b, "Rows: %d total, %d older than %s\n", snap.TotalRows, snap.ExpiredRows, snap.Cutoff.Format(dateLayout))
	if snap.Earliest != nil && snap.Latest != nil {
		fmt.Fprintf(&b, "Range: %s .. %s", snap.Earliest.Format(dateLayout), snap.Latest.Format(dateLayout))
	} else {
		b.WriteString("Range: table is empty")
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(dateLayout)
}
