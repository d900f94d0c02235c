package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	// ErrRunInProgress is returned by Trigger while another run is executing.
	ErrRunInProgress = errors.New("cleanup run already in progress")
	// ErrStopped is returned by Trigger once the scheduler has been stopped.
	ErrStopped = errors.New("cleanup scheduler is stopped")
)

// State is the lifecycle state of a CleanupScheduler.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Runner executes one cleanup run.
type Runner interface {
	Run(ctx context.Context, trigger retention.Trigger) retention.RunResult
}

// HealthChecker reports the state of the purged table.
type HealthChecker interface {
	CheckHealth(ctx context.Context) retention.HealthSnapshot
}

// CleanupScheduler drives cleanup runs from a cron schedule and from manual
// triggers. At most one run executes at any time.
type CleanupScheduler struct {
	cfg         retention.Config
	runner      Runner
	health      HealthChecker
	notifier    retention.Notifier
	logger      *logrus.Entry
	now         func() time.Time
	healthDelay time.Duration

	inFlight atomic.Bool

	mu          sync.Mutex
	state       State
	cronEngine  *cron.Cron
	schedule    cron.Schedule
	loc         *time.Location
	healthTimer *time.Timer
	current     chan struct{} // closed when the in-flight run has been recorded
	stats       retention.SchedulerStats
}

// Option customizes a CleanupScheduler.
type Option func(*CleanupScheduler)

// WithNotifier reports every finished run to n.
func WithNotifier(n retention.Notifier) Option {
	return func(s *CleanupScheduler) { s.notifier = n }
}

// WithClock replaces time.Now for statistics and next-run computation.
func WithClock(now func() time.Time) Option {
	return func(s *CleanupScheduler) { s.now = now }
}

// WithHealthCheckDelay sets the delay of the one-off health check scheduled by
// Start. Zero or negative disables it.
func WithHealthCheckDelay(d time.Duration) Option {
	return func(s *CleanupScheduler) { s.healthDelay = d }
}

func NewCleanupScheduler(cfg retention.Config, runner Runner, health HealthChecker, logger *logrus.Entry, opts ...Option) *CleanupScheduler {
	s := &CleanupScheduler{
		cfg:         cfg,
		runner:      runner,
		health:      health,
		logger:      logger,
		now:         time.Now,
		healthDelay: 10 * time.Second,
		state:       StateIdle,
		loc:         time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates the configuration, registers the recurring trigger and
// schedules the deferred health check. Starting a running scheduler is a no-op.
func (s *CleanupScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		s.logger.Debug("Scheduler already running")
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	loc, err := s.cfg.Location()
	if err != nil {
		return &retention.ConfigurationError{Invalid: []string{"TIMEZONE: " + err.Error()}}
	}
	sched, err := cron.ParseStandard(s.cfg.Schedule)
	if err != nil {
		return &retention.ConfigurationError{Invalid: []string{fmt.Sprintf("CRON_SCHEDULE=%q: %v", s.cfg.Schedule, err)}}
	}

	cl := cronLogger{entry: s.logger}
	engine := cron.New(cron.WithLocation(loc), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl)))
	engine.Schedule(sched, cron.FuncJob(s.fire))
	engine.Start()

	s.cronEngine = engine
	s.schedule = sched
	s.loc = loc
	s.state = StateRunning
	s.stats.NextRun = sched.Next(s.now().In(loc))

	if s.healthDelay > 0 && s.health != nil {
		s.healthTimer = time.AfterFunc(s.healthDelay, func() {
			s.health.CheckHealth(context.Background())
		})
	}

	s.logger.WithFields(logrus.Fields{
		"schedule": s.cfg.Schedule,
		"timezone": loc.String(),
		"next_run": s.stats.NextRun.Format(time.RFC3339),
	}).Info("Cleanup scheduler started")
	return nil
}

// Stop deregisters the recurring trigger, rejects further triggers and waits
// for an in-flight run to finish. Stopping a stopped scheduler is a no-op.
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	engine := s.cronEngine
	s.cronEngine = nil
	s.schedule = nil
	s.state = StateStopped
	s.stats.NextRun = time.Time{}
	if s.healthTimer != nil {
		s.healthTimer.Stop()
		s.healthTimer = nil
	}
	running := s.current
	s.mu.Unlock()

	s.logger.Info("Stopping cleanup scheduler...")
	if engine != nil {
		<-engine.Stop().Done()
	}
	if running != nil {
		<-running
	}
	s.logger.Info("Cleanup scheduler stopped")
}

// Trigger runs a cleanup immediately, independent of the schedule. It fails
// with ErrRunInProgress when another run is executing and with ErrStopped
// after Stop.
func (s *CleanupScheduler) Trigger(ctx context.Context) (retention.RunResult, error) {
	return s.execute(ctx, retention.TriggerManual)
}

// Stats returns a snapshot of the counters.
func (s *CleanupScheduler) Stats() retention.SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.stats
	snap.State = string(s.state)
	snap.RunInProgress = s.inFlight.Load()
	return snap
}

// Health runs a health check on demand.
func (s *CleanupScheduler) Health(ctx context.Context) retention.HealthSnapshot {
	return s.health.CheckHealth(ctx)
}

func (s *CleanupScheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *CleanupScheduler) fire() {
	if _, err := s.execute(context.Background(), retention.TriggerScheduled); errors.Is(err, ErrRunInProgress) {
		s.logger.Warn("Scheduled run skipped, previous run still in progress")
	}
}

func (s *CleanupScheduler) execute(ctx context.Context, trigger retention.Trigger) (retention.RunResult, error) {
	// The state check, the in-flight flag and current are updated together so
	// Stop either rejects this run or waits for it.
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return retention.RunResult{}, ErrStopped
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return retention.RunResult{}, ErrRunInProgress
	}
	done := make(chan struct{})
	defer close(done)
	defer s.inFlight.Store(false)

	s.stats.RunsAttempted++
	s.stats.LastRun = s.now()
	s.current = done
	s.mu.Unlock()

	// A run is never cancelled halfway; callers going away must not abort it.
	runCtx := context.WithoutCancel(ctx)
	res := s.runner.Run(runCtx, trigger)

	s.mu.Lock()
	if res.Success {
		s.stats.RunsSucceeded++
	} else {
		s.stats.RunsFailed++
	}
	s.stats.LastResult = res
	if s.state == StateRunning && s.schedule != nil {
		s.stats.NextRun = s.schedule.Next(s.now().In(s.loc))
	}
	s.current = nil
	stats := s.stats
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"run_id":         res.RunID,
		"trigger":        trigger,
		"success":        res.Success,
		"runs_attempted": stats.RunsAttempted,
		"runs_failed":    stats.RunsFailed,
		"next_run":       stats.NextRun.Format(time.RFC3339),
	}).Info("Run recorded")

	if s.notifier != nil {
		s.notifier.NotifyRun(runCtx, res)
	}
	return res, nil
}

// cronLogger routes cron's own messages through logrus.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithError(err).WithFields(toFields(keysAndValues)).Error("cron: " + msg)
}

func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
