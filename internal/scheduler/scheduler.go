// Package scheduler runs batch jobs on fixed intervals with at most one
// in-flight run per job kind, across goroutines and processes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/thebtf/dojo/internal/metrics"
)

var (
	// ErrAlreadyRunning is returned when a run of the same kind is in flight.
	ErrAlreadyRunning = errors.New("job already running")
	// ErrUnknownJob is returned for a kind that was never registered.
	ErrUnknownJob = errors.New("unknown job")
)

// JobFunc runs one job. Its error is logged and recorded; it never stops
// the scheduler.
type JobFunc func(ctx context.Context) error

// Status describes the last known state of a job kind.
type Status struct {
	LastStart  time.Time     `json:"last_start,omitempty"`
	LastFinish time.Time     `json:"last_finish,omitempty"`
	Kind       string        `json:"kind"`
	LastError  string        `json:"last_error,omitempty"`
	Interval   time.Duration `json:"interval"`
	Runs       int           `json:"runs"`
	Running    bool          `json:"running"`
}

type job struct {
	run    JobFunc
	status Status
}

// Scheduler owns the registered jobs and their guards.
type Scheduler struct {
	jobs    map[string]*job
	metrics *metrics.Recorder
	stopCh  chan struct{}
	logger  zerolog.Logger
	lockDir string
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// New creates a scheduler. When lockDir is set, every run also holds
// <lockDir>/<kind>.lock so separate processes never overlap.
func New(lockDir string, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		jobs:    make(map[string]*job),
		lockDir: lockDir,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		stopCh:  make(chan struct{}),
	}
}

// SetMetrics sets the counter recorder.
func (s *Scheduler) SetMetrics(m *metrics.Recorder) {
	s.metrics = m
}

// Register adds a job kind. An interval <= 0 registers a job that only runs
// on demand.
func (s *Scheduler) Register(kind string, interval time.Duration, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[kind] = &job{run: fn, status: Status{Kind: kind, Interval: interval}}
}

// Start runs every scheduled job on its own ticker until ctx is done or Stop
// is called. Call from a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	kinds := make([]string, 0, len(s.jobs))
	for kind, j := range s.jobs {
		if j.status.Interval > 0 {
			kinds = append(kinds, kind)
		}
	}
	s.mu.Unlock()
	sort.Strings(kinds)

	s.logger.Info().Strs("jobs", kinds).Msg("Scheduler started")

	for _, kind := range kinds {
		s.wg.Add(1)
		go s.loop(ctx, kind)
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, kind string) {
	defer s.wg.Done()

	s.mu.Lock()
	interval := s.jobs[kind].status.Interval
	s.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str("job", kind).Msg("Job loop stopping (context done)")
			return
		case <-s.stopCh:
			s.logger.Info().Str("job", kind).Msg("Job loop stopping (stop signal)")
			return
		case <-ticker.C:
			err := s.TryRun(ctx, kind)
			if errors.Is(err, ErrAlreadyRunning) {
				s.logger.Info().Str("job", kind).Msg("Previous run still in flight, skipping tick")
			}
		}
	}
}

// Stop signals every job loop to shut down.
func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh:
		// Already stopped
	default:
		close(s.stopCh)
	}
}

// TryRun runs kind synchronously unless a run of that kind is in flight.
// The job's own error is returned after being recorded.
func (s *Scheduler) TryRun(ctx context.Context, kind string) error {
	release, err := s.acquire(kind)
	if err != nil {
		return err
	}
	return s.execute(ctx, kind, release)
}

// Launch starts kind in the background, failing fast with
// ErrAlreadyRunning. ctx must outlive the caller's request.
func (s *Scheduler) Launch(ctx context.Context, kind string) error {
	release, err := s.acquire(kind)
	if err != nil {
		return err
	}
	go func() {
		_ = s.execute(ctx, kind, release)
	}()
	return nil
}

func (s *Scheduler) acquire(kind string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, kind)
	}
	if j.status.Running {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, kind)
	}

	var lock *flock.Flock
	if s.lockDir != "" {
		if err := os.MkdirAll(s.lockDir, 0o750); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
		lock = flock.New(filepath.Join(s.lockDir, kind+".lock"))
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire %s lock: %w", kind, err)
		}
		if !locked {
			return nil, fmt.Errorf("%w: %s (held by another process)", ErrAlreadyRunning, kind)
		}
	}

	j.status.Running = true
	j.status.LastStart = time.Now()

	return func() {
		if lock != nil {
			if err := lock.Unlock(); err != nil {
				s.logger.Warn().Err(err).Str("job", kind).Msg("Failed to release job lock")
			}
		}
		s.mu.Lock()
		j.status.Running = false
		s.mu.Unlock()
	}, nil
}

func (s *Scheduler) execute(ctx context.Context, kind string, release func()) (err error) {
	defer release()

	s.mu.Lock()
	run := s.jobs[kind].run
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info().Str("job", kind).Msg("Job started")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", kind, r)
		}

		s.mu.Lock()
		st := &s.jobs[kind].status
		st.Runs++
		st.LastFinish = time.Now()
		st.LastError = ""
		if err != nil {
			st.LastError = err.Error()
		}
		s.mu.Unlock()

		s.metrics.Add(ctx, metrics.JobRuns, 1, metrics.Job(kind))
		if err != nil {
			s.logger.Error().Err(err).Str("job", kind).Dur("elapsed", time.Since(start)).Msg("Job failed")
			return
		}
		s.logger.Info().Str("job", kind).Dur("elapsed", time.Since(start)).Msg("Job finished")
	}()

	return run(ctx)
}

// Statuses returns every job's status ordered by kind.
func (s *Scheduler) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Status, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.status)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Kind < out[k].Kind })
	return out
}

// Kinds returns the registered job kinds in order.
func (s *Scheduler) Kinds() []string {
	statuses := s.Statuses()
	kinds := make([]string, 0, len(statuses))
	for _, st := range statuses {
		kinds = append(kinds, st.Kind)
	}
	return kinds
}
