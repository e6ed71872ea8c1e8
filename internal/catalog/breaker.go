package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings tune the catalog circuit breaker.
type BreakerSettings struct {
	Interval    time.Duration // Count reset period while closed
	Timeout     time.Duration // Open period before a half-open probe
	MinRequests uint32        // Requests needed before the failure ratio is judged
	MaxRequests uint32        // Requests allowed while half-open
	TripRatio   float64       // Failure ratio that opens the circuit
}

// DefaultBreakerSettings returns the production breaker tuning.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		MinRequests: 10,
		TripRatio:   0.6,
	}
}

// BreakerCatalog wraps a Catalog with a circuit breaker. Quota and not-found
// answers prove the catalog is reachable and never count as failures.
type BreakerCatalog struct {
	next Catalog
	cb   *gobreaker.CircuitBreaker[any]
	log  zerolog.Logger
}

var _ Catalog = (*BreakerCatalog)(nil)

// NewBreakerCatalog wraps next with a circuit breaker named name.
func NewBreakerCatalog(name string, next Catalog, s BreakerSettings, log zerolog.Logger) *BreakerCatalog {
	logger := log.With().Str("component", "catalog-breaker").Str("breaker", name).Logger()

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.TripRatio {
				logger.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio).Msg("Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("Circuit state transition")
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrQuotaExhausted) ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &BreakerCatalog{next: next, cb: cb, log: logger}
}

// State returns the current breaker state.
func (b *BreakerCatalog) State() gobreaker.State {
	return b.cb.State()
}

// Search runs Search through the breaker.
func (b *BreakerCatalog) Search(ctx context.Context, query string, maxResults int) ([]Item, error) {
	return execute[[]Item](b.cb, func() ([]Item, error) {
		return b.next.Search(ctx, query, maxResults)
	})
}

// Duration runs Duration through the breaker.
func (b *BreakerCatalog) Duration(ctx context.Context, externalID string) (time.Duration, error) {
	return execute[time.Duration](b.cb, func() (time.Duration, error) {
		return b.next.Duration(ctx, externalID)
	})
}

// ChannelStats runs ChannelStats through the breaker.
func (b *BreakerCatalog) ChannelStats(ctx context.Context, channelRef string) (ChannelStats, error) {
	return execute[ChannelStats](b.cb, func() (ChannelStats, error) {
		return b.next.ChannelStats(ctx, channelRef)
	})
}

func execute[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	var zero T
	result, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, nil
	}
	return typed, nil
}
