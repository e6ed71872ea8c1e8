package credibility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/dojo/internal/batch"
	"github.com/thebtf/dojo/internal/catalog"
	"github.com/thebtf/dojo/internal/metrics"
	"github.com/thebtf/dojo/pkg/models"
)

// InstructorStore defines the instructor operations needed by the recalculator.
type InstructorStore interface {
	ListInstructors(ctx context.Context, names []string) ([]*models.InstructorCredibility, error)
	SaveCredibility(ctx context.Context, c *models.InstructorCredibility) error
}

// VideoCounter counts active library videos per channel.
type VideoCounter interface {
	CountActiveByChannel(ctx context.Context) (map[string]int, error)
}

// Recalculator refreshes instructor aggregates and priority scores.
type Recalculator struct {
	store   InstructorStore
	videos  VideoCounter
	lookup  catalog.ChannelLookup
	metrics *metrics.Recorder
	exec    *batch.Executor
	log     zerolog.Logger
	weights Weights
}

// NewRecalculator creates a recalculator. A nil lookup keeps stored
// subscriber counts and only refreshes library counts.
func NewRecalculator(store InstructorStore, videos VideoCounter, lookup catalog.ChannelLookup, weights Weights, delay time.Duration, log zerolog.Logger) *Recalculator {
	logger := log.With().Str("component", "credibility").Logger()
	return &Recalculator{
		store:   store,
		videos:  videos,
		lookup:  lookup,
		weights: weights,
		log:     logger,
		exec:    batch.New(batch.Config{Delay: delay, Concurrency: 1}, logger),
	}
}

// SetMetrics sets the counter recorder.
func (r *Recalculator) SetMetrics(m *metrics.Recorder) {
	r.metrics = m
}

// Recalculate refreshes every instructor, or only those named.
// A manually overridden priority score is read and kept; its counts still
// refresh. Quota exhaustion stops the run.
func (r *Recalculator) Recalculate(ctx context.Context, names []string) (*batch.Result, error) {
	now := time.Now()

	instructors, err := r.store.ListInstructors(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	counts, err := r.videos.CountActiveByChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("count videos by channel: %w", err)
	}

	key := func(c *models.InstructorCredibility) string { return c.Name }
	result := batch.Run(ctx, r.exec, instructors, key, func(ctx context.Context, c *models.InstructorCredibility) batch.Outcome {
		return r.refresh(ctx, c, counts[c.Name])
	})

	r.metrics.Add(ctx, metrics.CredibilityUpdated, int64(result.Succeeded))
	r.log.Info().
		Int("instructors", len(instructors)).
		Int("updated", result.Succeeded).
		Int("errors", result.Failed).
		Bool("halted", result.Halted).
		Dur("elapsed", time.Since(now)).
		Msg("Recalculated instructor credibility")
	return result, nil
}

func (r *Recalculator) refresh(ctx context.Context, c *models.InstructorCredibility, libraryVideos int) batch.Outcome {
	updated := *c
	updated.VideoCount = libraryVideos

	if r.lookup != nil && c.ExternalChannelRef != "" {
		stats, err := r.lookup.ChannelStats(ctx, c.ExternalChannelRef)
		switch {
		case catalog.IsQuotaExhausted(err):
			return batch.Halted("quota exhausted", err)
		case errors.Is(err, catalog.ErrNotFound):
			r.log.Warn().Str("instructor", c.Name).Str("channel_ref", c.ExternalChannelRef).Msg("Channel not found, keeping subscriber count")
		case err != nil:
			return batch.Failed(fmt.Errorf("channel stats for %s: %w", c.Name, err))
		default:
			updated.SubscriberCount = stats.Subscribers
		}
	}

	if !c.ManualOverride {
		updated.PriorityScore = Calculate(r.weights, updated.SubscriberCount, updated.VideoCount).Total
	}

	if err := r.store.SaveCredibility(ctx, &updated); err != nil {
		return batch.Failed(fmt.Errorf("save credibility for %s: %w", c.Name, err))
	}
	return batch.Succeeded()
}
