package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jellywatch/internal/logging"
	"jellywatch/internal/metrics"
	"jellywatch/internal/settings"
)

// SyncLibrariesID is the job that refreshes the library list on a fixed period.
const SyncLibrariesID = "sync_libraries"

// DefaultSyncInterval applies when New receives a non-positive interval.
const DefaultSyncInterval = 60 * time.Minute

// ErrUnknownJob is returned by RunNow for ids absent from the table.
var ErrUnknownJob = errors.New("job not scheduled")

// Runner builds the callback for a job id. Callbacks must not panic past
// their own boundary, but the scheduler recovers if they do.
type Runner interface {
	Job(id string) func()
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(id string) func()

// Job implements Runner.
func (f RunnerFunc) Job(id string) func() { return f(id) }

// Job is a snapshot of one scheduled entry.
type Job struct {
	ID       string        `json:"id"`
	Interval time.Duration `json:"interval"`
	Next     time.Time     `json:"next,omitempty"`
	Prev     time.Time     `json:"prev,omitempty"`
}

// IntervalMinutes reports the period in whole minutes.
func (j Job) IntervalMinutes() int {
	return int(j.Interval / time.Minute)
}

type entry struct {
	cronID   cron.EntryID
	interval time.Duration
	run      func()
}

// Scheduler is the explicit owner of the job table.
type Scheduler struct {
	mu           sync.Mutex
	cron         *cron.Cron
	entries      map[string]entry
	runner       Runner
	syncInterval time.Duration
	running      bool
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records job runs and table size.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates an idle scheduler with an empty table.
func New(runner Runner, syncInterval time.Duration, opts ...Option) *Scheduler {
	if syncInterval <= 0 {
		syncInterval = DefaultSyncInterval
	}
	s := &Scheduler{
		entries:      make(map[string]entry),
		runner:       runner,
		syncInterval: syncInterval,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "scheduler")
	cl := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// Rebuild removes every job, then schedules one job per enabled monitor at
// its timeframe and the library sync job at the fixed sync interval.
func (s *Scheduler) Rebuild(svc settings.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	for _, m := range settings.AllMonitors() {
		if !svc.Enabled(m) {
			continue
		}
		s.addLocked(string(m), svc.Timeframe(m).Interval())
	}
	s.addLocked(SyncLibrariesID, s.syncInterval)
	s.metrics.SetScheduledJobs(len(s.entries))

	s.logger.Info("job table rebuilt",
		logging.Int("jobs", len(s.entries)),
		logging.String(logging.FieldEventType, "scheduler_rebuild"),
	)
}

// Clear removes every job. An unconfigured daemon runs with an empty table.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	s.metrics.SetScheduledJobs(0)
	s.logger.Info("job table cleared", logging.String(logging.FieldEventType, "scheduler_clear"))
}

func (s *Scheduler) clearLocked() {
	for id, e := range s.entries {
		s.cron.Remove(e.cronID)
		delete(s.entries, id)
	}
}

func (s *Scheduler) addLocked(id string, interval time.Duration) {
	run := s.wrap(id)
	cronID := s.cron.Schedule(cron.Every(interval), cron.FuncJob(run))
	s.entries[id] = entry{cronID: cronID, interval: interval, run: run}
	s.logger.Debug("job scheduled",
		logging.String(logging.FieldJobID, id),
		logging.Duration("interval", interval),
	)
}

// wrap isolates a callback so a panic is logged and counted instead of
// escaping into cron or the caller of RunNow.
func (s *Scheduler) wrap(id string) func() {
	var fn func()
	if s.runner != nil {
		fn = s.runner.Job(id)
	}
	return func() {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				s.metrics.ObserveJob(id, metrics.OutcomePanic, time.Since(start))
				logging.ErrorWithContext(s.logger, "job panicked", "job_panic",
					logging.String(logging.FieldJobID, id),
					logging.String("panic", fmt.Sprint(r)),
				)
			}
		}()
		if fn != nil {
			fn()
		}
	}
}

// Start begins firing jobs. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", logging.Int("jobs", len(s.entries)))
}

// Stop halts firing and waits for in-flight jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	done := s.cron.Stop()
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SyncInterval reports the fixed library sync period.
func (s *Scheduler) SyncInterval() time.Duration {
	return s.syncInterval
}

// Jobs returns the table sorted by id.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.entries))
	for id, e := range s.entries {
		jobs = append(jobs, s.snapshotLocked(id, e))
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// Job looks up one entry by id.
func (s *Scheduler) Job(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Job{}, false
	}
	return s.snapshotLocked(id, e), true
}

func (s *Scheduler) snapshotLocked(id string, e entry) Job {
	job := Job{ID: id, Interval: e.interval}
	if ce := s.cron.Entry(e.cronID); ce.Valid() {
		job.Next = ce.Next
		job.Prev = ce.Prev
	}
	return job
}

// RunNow fires a scheduled job synchronously on the calling goroutine.
func (s *Scheduler) RunNow(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	e.run()
	return nil
}

// cronLogger routes robfig/cron diagnostics into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logging.Error(err)}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
