// Package profile derives per-user personalization fields from feedback.
package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/dojo/internal/batch"
	"github.com/thebtf/dojo/internal/metrics"
	"github.com/thebtf/dojo/pkg/models"
)

// Store reads feedback and writes derived profiles.
type Store interface {
	RecentSignals(ctx context.Context, userID string, limit int) ([]models.FeedbackSignal, error)
	UsersWithFeedbackSince(ctx context.Context, since time.Time) ([]string, error)
	UpsertProfile(ctx context.Context, userID string, u models.ProfileUpdate) error
}

// Config holds builder tunables.
type Config struct {
	Window         int           // Most recent feedback rows read per user
	MinSamples     int           // Fewer rows leave the profile untouched
	MaxInstructors int           // Size of the preferred instructor set
	LengthSpread   float64       // Minutes either side of the median
	LengthFloor    int           // Lowest preferred length in minutes
	LengthCeiling  int           // Highest preferred length in minutes
	ActiveWindow   time.Duration // Batch considers users with feedback this recent
	UserDelay      time.Duration // Pause between users in a batch
}

// DefaultConfig returns the default builder configuration.
func DefaultConfig() Config {
	return Config{
		Window:         100,
		MinSamples:     5,
		MaxInstructors: 3,
		LengthSpread:   5,
		LengthFloor:    5,
		LengthCeiling:  30,
		ActiveWindow:   30 * 24 * time.Hour,
		UserDelay:      500 * time.Millisecond,
	}
}

// Status is the outcome class of a single build.
type Status string

const (
	StatusUpdated          Status = "updated"
	StatusInsufficientData Status = "insufficient_data"
)

// Outcome reports what a build did. Insufficient data is a normal outcome,
// not an error.
type Outcome struct {
	UserID  string  `json:"user_id"`
	Status  Status  `json:"status"`
	Profile Derived `json:"profile"`
	Samples int     `json:"samples"`
}

// Builder derives and stores user profiles.
type Builder struct {
	store   Store
	metrics *metrics.Recorder
	exec    *batch.Executor
	now     func() time.Time
	log     zerolog.Logger
	cfg     Config
}

// NewBuilder creates a profile builder.
func NewBuilder(store Store, cfg Config, log zerolog.Logger) *Builder {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.MaxInstructors <= 0 {
		cfg.MaxInstructors = def.MaxInstructors
	}
	if cfg.LengthSpread <= 0 {
		cfg.LengthSpread = def.LengthSpread
	}
	if cfg.LengthFloor <= 0 {
		cfg.LengthFloor = def.LengthFloor
	}
	if cfg.LengthCeiling < cfg.LengthFloor {
		cfg.LengthCeiling = max(def.LengthCeiling, cfg.LengthFloor)
	}
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = def.ActiveWindow
	}
	logger := log.With().Str("component", "profile").Logger()
	return &Builder{
		store: store,
		cfg:   cfg,
		log:   logger,
		now:   time.Now,
		exec:  batch.New(batch.Config{Delay: cfg.UserDelay, Concurrency: 1}, logger),
	}
}

// SetMetrics sets the counter recorder.
func (b *Builder) SetMetrics(m *metrics.Recorder) {
	b.metrics = m
}

// Build derives and stores the profile of one user.
func (b *Builder) Build(ctx context.Context, userID string) (Outcome, error) {
	out := Outcome{UserID: userID}

	signals, err := b.store.RecentSignals(ctx, userID, b.cfg.Window)
	if err != nil {
		return out, fmt.Errorf("read feedback for %s: %w", userID, err)
	}
	out.Samples = len(signals)
	if len(signals) < b.cfg.MinSamples {
		out.Status = StatusInsufficientData
		b.log.Debug().Str("user_id", userID).Int("samples", len(signals)).Msg("Insufficient feedback, profile unchanged")
		b.metrics.Add(ctx, metrics.ProfileInsufficient, 1)
		return out, nil
	}

	out.Profile = Derive(signals, b.cfg)
	update := models.ProfileUpdate{Instructors: out.Profile.Instructors}
	if out.Profile.HasLength {
		update.LengthMin = &out.Profile.LengthMin
		update.LengthMax = &out.Profile.LengthMax
	}
	if err := b.store.UpsertProfile(ctx, userID, update); err != nil {
		return out, fmt.Errorf("save profile for %s: %w", userID, err)
	}

	out.Status = StatusUpdated
	b.metrics.Add(ctx, metrics.ProfileBuilt, 1)
	b.log.Debug().
		Str("user_id", userID).
		Int("samples", len(signals)).
		Strs("instructors", out.Profile.Instructors).
		Int("length_min", out.Profile.LengthMin).
		Int("length_max", out.Profile.LengthMax).
		Msg("Profile updated")
	return out, nil
}

// BuildAll rebuilds every user with feedback inside the active window.
// Per-user failures are recorded and the batch continues.
func (b *Builder) BuildAll(ctx context.Context) (*batch.Result, error) {
	since := b.now().Add(-b.cfg.ActiveWindow)
	users, err := b.store.UsersWithFeedbackSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return b.BuildUsers(ctx, users), nil
}

// BuildUsers rebuilds the given users in order.
func (b *Builder) BuildUsers(ctx context.Context, users []string) *batch.Result {
	result := batch.Run(ctx, b.exec, users, func(u string) string { return u },
		func(ctx context.Context, userID string) batch.Outcome {
			out, err := b.Build(ctx, userID)
			if err != nil {
				b.metrics.Add(ctx, metrics.ProfileErrors, 1)
				return batch.Failed(err)
			}
			if out.Status == StatusInsufficientData {
				return batch.Skipped(string(StatusInsufficientData))
			}
			return batch.Succeeded()
		})

	b.log.Info().
		Int("users", len(users)).
		Int("updated", result.Succeeded).
		Int("insufficient", result.Skipped[string(StatusInsufficientData)]).
		Int("errors", result.Failed).
		Msg("Profile batch complete")
	return result
}
