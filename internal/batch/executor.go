// Package batch runs best-effort loops over work items and folds every
// per-item outcome into a single Result.
package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Status is the outcome class of one item.
type Status int

const (
	StatusSucceeded Status = iota
	StatusSkipped
	StatusFailed
)

// MaxRecordedErrors caps how many item errors a Result keeps.
const MaxRecordedErrors = 50

// Outcome is what a task reports for one item.
type Outcome struct {
	Err    error
	Reason string
	Status Status
	// Halt stops the run after this item. Items already in flight finish.
	Halt bool
}

// Succeeded reports a processed item.
func Succeeded() Outcome { return Outcome{Status: StatusSucceeded} }

// Skipped reports an item deliberately not processed, keyed by reason.
func Skipped(reason string) Outcome { return Outcome{Status: StatusSkipped, Reason: reason} }

// Failed reports a per-item error. The run continues.
func Failed(err error) Outcome { return Outcome{Status: StatusFailed, Err: err} }

// Halted reports an error that must stop the whole run.
func Halted(reason string, err error) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Err: err, Halt: true}
}

// ItemError records a failed item.
type ItemError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Result is the folded outcome of a run.
type Result struct {
	Skipped    map[string]int `json:"skipped"`
	HaltReason string         `json:"halt_reason,omitempty"`
	Errors     []ItemError    `json:"errors,omitempty"`
	Processed  int            `json:"processed"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Halted     bool           `json:"halted"`
}

// NewResult returns an empty result.
func NewResult() *Result {
	return &Result{Skipped: make(map[string]int)}
}

// Record folds one outcome into the result.
func (r *Result) Record(key string, o Outcome) {
	r.Processed++
	switch o.Status {
	case StatusSucceeded:
		r.Succeeded++
	case StatusSkipped:
		r.Skipped[o.Reason]++
	case StatusFailed:
		r.Failed++
		if o.Err != nil && len(r.Errors) < MaxRecordedErrors {
			r.Errors = append(r.Errors, ItemError{Key: key, Error: o.Err.Error()})
		}
	}
	if o.Halt && !r.Halted {
		r.Halted = true
		r.HaltReason = o.Reason
	}
}

// SkippedTotal sums skips across reasons.
func (r *Result) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// Config controls pacing of a run.
type Config struct {
	// Limiter is an external-call budget shared with other runs. Optional.
	Limiter *rate.Limiter
	// Delay is the pause between consecutive task starts.
	Delay time.Duration
	// Concurrency bounds in-flight tasks. Values below 1 mean sequential.
	Concurrency int
}

// Executor paces and folds task runs.
type Executor struct {
	sleep func(ctx context.Context, d time.Duration) error
	log   zerolog.Logger
	cfg   Config
}

// New creates an executor.
func New(cfg Config, log zerolog.Logger) *Executor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Executor{
		cfg:   cfg,
		log:   log,
		sleep: SleepWithContext,
	}
}

// Task processes one item. It must not panic on bad input; errors are
// reported through the returned Outcome.
type Task[T any] func(ctx context.Context, item T) Outcome

// Run processes items with the executor's pacing and returns the folded result.
// A Halt outcome or context cancellation stops new items from starting.
func Run[T any](ctx context.Context, e *Executor, items []T, key func(T) string, task Task[T]) *Result {
	result := NewResult()
	var (
		mu     sync.Mutex
		halted atomic.Bool
	)

	record := func(item T, o Outcome) {
		k := key(item)
		if o.Status == StatusFailed {
			e.log.Warn().Err(o.Err).Str("item", k).Bool("halt", o.Halt).Msg("Batch item failed")
		}
		mu.Lock()
		result.Record(k, o)
		mu.Unlock()
		if o.Halt {
			halted.Store(true)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, item := range items {
		if halted.Load() {
			break
		}
		if i > 0 {
			if err := e.sleep(gctx, e.cfg.Delay); err != nil {
				break
			}
		}
		if e.cfg.Limiter != nil {
			if err := e.cfg.Limiter.Wait(gctx); err != nil {
				break
			}
		}
		if halted.Load() {
			break
		}

		if e.cfg.Concurrency == 1 {
			record(item, task(gctx, item))
			continue
		}
		g.Go(func() error {
			record(item, task(gctx, item))
			return nil
		})
	}
	_ = g.Wait()

	if !result.Halted && ctx.Err() != nil {
		result.Halted = true
		result.HaltReason = "canceled"
	}
	return result
}

// SleepWithContext blocks for d, returning early if ctx is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
