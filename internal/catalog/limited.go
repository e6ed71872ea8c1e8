package catalog

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// LimitedCatalog spends one token of a shared limiter per catalog call.
type LimitedCatalog struct {
	next    Catalog
	limiter *rate.Limiter
}

var _ Catalog = (*LimitedCatalog)(nil)

// NewLimitedCatalog wraps next; a nil limiter disables limiting.
func NewLimitedCatalog(next Catalog, limiter *rate.Limiter) *LimitedCatalog {
	return &LimitedCatalog{next: next, limiter: limiter}
}

// NewLimiter builds a limiter allowing perSecond calls with a burst of one.
// perSecond <= 0 returns nil.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

func (l *LimitedCatalog) wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Search waits for a token, then searches.
func (l *LimitedCatalog) Search(ctx context.Context, query string, maxResults int) ([]Item, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.Search(ctx, query, maxResults)
}

// Duration waits for a token, then resolves the duration.
func (l *LimitedCatalog) Duration(ctx context.Context, externalID string) (time.Duration, error) {
	if err := l.wait(ctx); err != nil {
		return 0, err
	}
	return l.next.Duration(ctx, externalID)
}

// ChannelStats waits for a token, then fetches channel statistics.
func (l *LimitedCatalog) ChannelStats(ctx context.Context, channelRef string) (ChannelStats, error) {
	if err := l.wait(ctx); err != nil {
		return ChannelStats{}, err
	}
	return l.next.ChannelStats(ctx, channelRef)
}
