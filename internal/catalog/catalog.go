// Package catalog defines the external video catalog capability and its
// YouTube Data API implementation.
package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQuotaExhausted signals the catalog refuses further calls for the
	// current quota period. It halts an acquisition run.
	ErrQuotaExhausted = errors.New("catalog quota exhausted")

	// ErrNotFound is returned when the catalog has no such item or channel.
	ErrNotFound = errors.New("catalog item not found")
)

// IsQuotaExhausted reports whether err carries ErrQuotaExhausted.
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}

// Item is one search hit.
type Item struct {
	PublishedAt time.Time `json:"published_at"`
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	ChannelName string    `json:"channel_name"`
	ChannelRef  string    `json:"channel_ref"`
}

// ChannelStats are public aggregates of a catalog channel.
type ChannelStats struct {
	Subscribers int64 `json:"subscribers"`
	Videos      int   `json:"videos"`
}

// Adapter searches the catalog and resolves item durations.
type Adapter interface {
	Search(ctx context.Context, query string, maxResults int) ([]Item, error)
	Duration(ctx context.Context, externalID string) (time.Duration, error)
}

// ChannelLookup resolves channel statistics.
type ChannelLookup interface {
	ChannelStats(ctx context.Context, channelRef string) (ChannelStats, error)
}

// Catalog is the full capability set used by the jobs.
type Catalog interface {
	Adapter
	ChannelLookup
}
