package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
)

type fakeRow struct {
	id int64
	ts time.Time
}

// fakeStore is an in-memory table driven through retention.Conn.
type fakeStore struct {
	mu sync.Mutex

	rows []fakeRow

	acquireErr error
	releaseErr error
	countErr   error
	aggErr     error
	// selectFailures makes the next N selects fail with selectErr;
	// a negative value fails every select.
	selectFailures int
	selectErr      error
	// phantomIDs makes selects return ids that do not exist.
	phantomIDs bool

	acquires    int
	releases    int
	countCalls  int
	selectCalls int
	deleteSizes []int
	deletedIDs  [][]int64
}

func newFakeStore(rows ...fakeRow) *fakeStore {
	return &fakeStore{rows: rows}
}

func (s *fakeStore) Acquire(context.Context) (retention.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquires++
	if s.acquireErr != nil {
		return nil, retention.NewConnectionError("acquire", s.acquireErr)
	}
	return &fakeConn{store: s}, nil
}

func (s *fakeStore) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fakeConn struct {
	store *fakeStore
}

func (c *fakeConn) CountExpired(_ context.Context, _, _ string, cutoff time.Time) (int64, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countCalls++
	if s.countErr != nil {
		return 0, s.countErr
	}
	var n int64
	for _, r := range s.rows {
		if r.ts.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (c *fakeConn) SelectExpiredIDs(_ context.Context, _, _ string, cutoff time.Time, limit int) ([]retention.RowID, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectCalls++
	if s.selectFailures != 0 {
		if s.selectFailures > 0 {
			s.selectFailures--
		}
		return nil, s.selectErr
	}
	if s.phantomIDs {
		return []retention.RowID{int64(-1), int64(-2)}, nil
	}

	expired := make([]fakeRow, 0)
	for _, r := range s.rows {
		if r.ts.Before(cutoff) {
			expired = append(expired, r)
		}
	}
	sort.SliceStable(expired, func(i, j int) bool { return expired[i].ts.Before(expired[j].ts) })
	if len(expired) > limit {
		expired = expired[:limit]
	}
	ids := make([]retention.RowID, 0, len(expired))
	for _, r := range expired {
		ids = append(ids, r.id)
	}
	return ids, nil
}

func (c *fakeConn) DeleteByIDs(_ context.Context, _ string, ids []retention.RowID) (int64, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteSizes = append(s.deleteSizes, len(ids))

	want := make(map[int64]bool, len(ids))
	batch := make([]int64, 0, len(ids))
	for _, id := range ids {
		want[id.(int64)] = true
		batch = append(batch, id.(int64))
	}
	s.deletedIDs = append(s.deletedIDs, batch)

	kept := s.rows[:0]
	var deleted int64
	for _, r := range s.rows {
		if want[r.id] {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return deleted, nil
}

func (c *fakeConn) AggregateStats(_ context.Context, _, _ string, cutoff time.Time) (retention.TableStats, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aggErr != nil {
		return retention.TableStats{}, s.aggErr
	}
	var stats retention.TableStats
	for _, r := range s.rows {
		ts := r.ts
		stats.Total++
		if ts.Before(cutoff) {
			stats.Expired++
		}
		if stats.Earliest == nil || ts.Before(*stats.Earliest) {
			stats.Earliest = &ts
		}
		if stats.Latest == nil || ts.After(*stats.Latest) {
			stats.Latest = &ts
		}
	}
	return stats, nil
}

func (c *fakeConn) Release() error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	return s.releaseErr
}

// rowsBetween builds n rows with ids starting at firstID, one minute apart
// starting at start.
func rowsBetween(firstID int64, n int, start time.Time) []fakeRow {
	rows := make([]fakeRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, fakeRow{id: firstID + int64(i), ts: start.Add(time.Duration(i) * time.Minute)})
	}
	return rows
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	failures int
	batches  []int64
	runs     []retention.RunResult
	health   []retention.HealthSnapshot
}

func (o *recordingObserver) AttemptFailed(string, int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func (o *recordingObserver) BatchDeleted(rows int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches = append(o.batches, rows)
}

func (o *recordingObserver) RunFinished(res retention.RunResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, res)
}

func (o *recordingObserver) HealthChecked(snap retention.HealthSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.health = append(o.health, snap)
}
