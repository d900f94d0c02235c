package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock returns start and advances by step on every call.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

var june15 = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func TestCleanupService_Run(t *testing.T) {
	// February rows are expired for a 3-month window on June 15th, March rows are not
	store := newFakeStore(rowsBetween(1, 2500, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))...)
	store.rows = append(store.rows, rowsBetween(5000, 40, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))...)
	obs := &recordingObserver{}
	log, _ := testLogger()

	svc := NewCleanupService(store, testConfig(), log,
		WithClock(steppingClock(june15, time.Second)),
		WithSleep((&sleepRecorder{}).sleep),
		WithObserver(obs),
	)
	res := svc.Run(context.Background(), retention.TriggerManual)

	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, retention.TriggerManual, res.Trigger)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), res.Cutoff)
	assert.Equal(t, int64(2500), res.Expired)
	assert.Equal(t, int64(2500), res.Deleted)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, june15, res.StartedAt)
	assert.Positive(t, res.Elapsed)
	assert.Equal(t, 40, store.remaining())
	assert.Equal(t, 1, store.acquires)
	assert.Equal(t, 1, store.releases)
	require.Len(t, obs.runs, 1)
	assert.Equal(t, res, obs.runs[0])
}

func TestCleanupService_NoExpiredRows(t *testing.T) {
	store := newFakeStore(rowsBetween(1, 10, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))...)
	log, _ := testLogger()

	svc := NewCleanupService(store, testConfig(), log, WithClock(steppingClock(june15, time.Second)))
	res := svc.Run(context.Background(), retention.TriggerScheduled)

	assert.True(t, res.Success)
	assert.Zero(t, res.Deleted)
	assert.Zero(t, res.Elapsed)
	assert.Zero(t, store.selectCalls, "batch loop must not be entered")
	assert.Empty(t, store.deleteSizes)
	assert.Equal(t, 1, store.releases)
}

func TestCleanupService_ConnectionFailsEveryAttempt(t *testing.T) {
	store := newFakeStore(rowsBetween(1, 10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))...)
	store.selectFailures = -1
	store.selectErr = retention.NewConnectionError("select", errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"))
	obs := &recordingObserver{}
	log, hook := testLogger()

	svc := NewCleanupService(store, testConfig(), log,
		WithClock(steppingClock(june15, time.Second)),
		WithSleep((&sleepRecorder{}).sleep),
		WithObserver(obs),
	)
	res := svc.Run(context.Background(), retention.TriggerScheduled)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection refused")
	assert.Contains(t, res.Error, "all 3 attempts failed")
	assert.Zero(t, res.Deleted)
	assert.Equal(t, 3, store.selectCalls)
	assert.Equal(t, 3, obs.failures)
	assert.Equal(t, 1, store.releases, "connection must be released exactly once")

	var errorLogged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "Cleanup run failed" {
			errorLogged = true
		}
	}
	assert.True(t, errorLogged)
}

func TestCleanupService_AcquireFails(t *testing.T) {
	store := newFakeStore()
	store.acquireErr = errors.New("no route to host")
	log, _ := testLogger()

	svc := NewCleanupService(store, testConfig(), log)
	res := svc.Run(context.Background(), retention.TriggerManual)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "acquire connection")
	assert.Zero(t, store.releases, "nothing was acquired, nothing to release")
}

func TestCleanupService_CountIsRetried(t *testing.T) {
	store := newFakeStore(rowsBetween(1, 5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))...)
	store.countErr = errors.New("timeout")
	log, _ := testLogger()
	sleeps := &sleepRecorder{}

	svc := NewCleanupService(store, testConfig(), log, WithSleep(sleeps.sleep), WithClock(steppingClock(june15, time.Millisecond)))
	res := svc.Run(context.Background(), retention.TriggerManual)

	assert.False(t, res.Success)
	assert.Equal(t, 3, store.countCalls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps.delays)
	assert.Equal(t, 1, store.releases)
}

func TestCleanupService_ReleaseErrorKeepsOutcome(t *testing.T) {
	store := newFakeStore(rowsBetween(1, 5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))...)
	store.releaseErr = errors.New("connection already closed")
	log, hook := testLogger()

	svc := NewCleanupService(store, testConfig(), log, WithClock(steppingClock(june15, time.Second)))
	res := svc.Run(context.Background(), retention.TriggerManual)

	assert.True(t, res.Success)
	assert.Equal(t, int64(5), res.Deleted)

	var found bool
	for _, e := range hook.AllEntries() {
		if err, ok := e.Data[logrus.ErrorKey].(error); ok {
			var rerr *retention.ReleaseError
			if errors.As(err, &rerr) {
				found = true
			}
		}
	}
	assert.True(t, found, "release failure must be logged as ReleaseError")
}

func TestCleanupService_SanitizesIdentifiers(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	cfg.Table = "events; DROP TABLE users"
	log, _ := testLogger()

	svc := NewCleanupService(store, cfg, log)

	assert.Equal(t, "eventsDROPTABLEusers", svc.cfg.Table)
}

type panickingStore struct{}

func (panickingStore) Acquire(context.Context) (retention.Conn, error) {
	panic("driver bug")
}

func TestCleanupService_RecoversPanics(t *testing.T) {
	log, _ := testLogger()
	obs := &recordingObserver{}

	svc := NewCleanupService(panickingStore{}, testConfig(), log, WithObserver(obs))
	res := svc.Run(context.Background(), retention.TriggerManual)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "driver bug")
	require.Len(t, obs.runs, 1)
	assert.False(t, obs.runs[0].Success)
}
