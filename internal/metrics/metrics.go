// Package metrics records job counters through the OpenTelemetry metric API.
// Without a configured MeterProvider the global no-op provider is used.
package metrics

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of every dojo instrument.
const MeterName = "github.com/thebtf/dojo"

// Counter names.
const (
	AcquisitionQueries    = "dojo.acquisition.queries"
	AcquisitionFound      = "dojo.acquisition.found"
	AcquisitionAdded      = "dojo.acquisition.added"
	AcquisitionDuplicates = "dojo.acquisition.duplicates"
	AcquisitionTooShort   = "dojo.acquisition.too_short"
	AcquisitionErrors     = "dojo.acquisition.errors"
	AcquisitionQuotaHalts = "dojo.acquisition.quota_halts"
	TaggingTagged         = "dojo.tagging.tagged"
	TaggingErrors         = "dojo.tagging.errors"
	ProfileBuilt          = "dojo.profile.built"
	ProfileInsufficient   = "dojo.profile.insufficient"
	ProfileErrors         = "dojo.profile.errors"
	CredibilityUpdated    = "dojo.credibility.updated"
	JobRuns               = "dojo.job.runs"
)

// Recorder lazily creates Int64Counters by name. A nil Recorder discards
// everything.
type Recorder struct {
	meter    metric.Meter
	counters map[string]metric.Int64Counter
	log      zerolog.Logger
	mu       sync.Mutex
}

// New creates a Recorder on meter.
func New(meter metric.Meter, log zerolog.Logger) *Recorder {
	return &Recorder{
		meter:    meter,
		counters: make(map[string]metric.Int64Counter),
		log:      log.With().Str("component", "metrics").Logger(),
	}
}

// NewGlobal creates a Recorder on the global MeterProvider.
func NewGlobal(log zerolog.Logger) *Recorder {
	return New(otel.Meter(MeterName), log)
}

// Add increments counter name by n.
func (r *Recorder) Add(ctx context.Context, name string, n int64, attrs ...attribute.KeyValue) {
	if r == nil || n == 0 {
		return
	}
	c := r.counter(name)
	if c == nil {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attrs...))
}

func (r *Recorder) counter(name string) metric.Int64Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[name]; ok {
		return c
	}
	c, err := r.meter.Int64Counter(name)
	if err != nil {
		r.log.Warn().Err(err).Str("counter", name).Msg("Failed to create counter")
		return nil
	}
	r.counters[name] = c
	return c
}

// Job returns the attribute that labels a counter with its job kind.
func Job(kind string) attribute.KeyValue {
	return attribute.String("job", kind)
}
