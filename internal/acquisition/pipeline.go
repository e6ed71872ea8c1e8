// Package acquisition searches the external catalog and commits new videos.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thebtf/dojo/internal/batch"
	"github.com/thebtf/dojo/internal/catalog"
	"github.com/thebtf/dojo/internal/metrics"
	"github.com/thebtf/dojo/pkg/models"
)

// VideoStore persists accepted videos.
type VideoStore interface {
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	InsertVideo(ctx context.Context, v *models.Video) (int64, bool, error)
}

// Tagger classifies a freshly inserted video.
type Tagger interface {
	TagVideo(ctx context.Context, v *models.Video) ([]models.TagAssignment, error)
}

// InstructorRegistry records the channels new videos come from. Optional.
type InstructorRegistry interface {
	EnsureInstructor(ctx context.Context, name, channelRef string) error
}

// Config holds pipeline tunables.
type Config struct {
	PageSize    int           // Candidates requested per query
	MinDuration time.Duration // Shorter videos are rejected
	QueryDelay  time.Duration // Pause between consecutive queries
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:    25,
		MinDuration: 70 * time.Second,
		QueryDelay:  time.Second,
	}
}

// Result aggregates one acquisition run.
type Result struct {
	Batch           *batch.Result `json:"batch"`
	RunID           string        `json:"run_id"`
	QueriesExecuted int           `json:"queries_executed"`
	ItemsFound      int           `json:"items_found"`
	ItemsAdded      int           `json:"items_added"`
	Duplicates      int           `json:"duplicates"`
	TooShort        int           `json:"too_short"`
	Invalid         int           `json:"invalid"`
	Errors          int           `json:"errors"`
	TagErrors       int           `json:"tag_errors"`
	HaltedOnQuota   bool          `json:"halted_on_quota"`
}

// Pipeline runs acquisition queries one at a time.
type Pipeline struct {
	catalog     catalog.Adapter
	videos      VideoStore
	tagger      Tagger
	instructors InstructorRegistry
	metrics     *metrics.Recorder
	exec        *batch.Executor
	log         zerolog.Logger
	cfg         Config
}

// NewPipeline creates an acquisition pipeline.
func NewPipeline(cat catalog.Adapter, videos VideoStore, tagger Tagger, cfg Config, log zerolog.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.PageSize > catalog.MaxSearchResults {
		cfg.PageSize = catalog.MaxSearchResults
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = def.MinDuration
	}
	logger := log.With().Str("component", "acquisition").Logger()
	return &Pipeline{
		catalog: cat,
		videos:  videos,
		tagger:  tagger,
		cfg:     cfg,
		log:     logger,
		// Queries run strictly in sequence to respect the catalog quota.
		exec: batch.New(batch.Config{Delay: cfg.QueryDelay, Concurrency: 1}, logger),
	}
}

// SetInstructorRegistry records the channel of every added video.
func (p *Pipeline) SetInstructorRegistry(r InstructorRegistry) {
	p.instructors = r
}

// SetMetrics sets the counter recorder.
func (p *Pipeline) SetMetrics(m *metrics.Recorder) {
	p.metrics = m
}

type outcome int

const (
	outcomeAdded outcome = iota
	outcomeDuplicate
	outcomeTooShort
	outcomeInvalid
	outcomeError
	outcomeQuota
)

// Run executes queries in order. Per-item failures are counted and the run
// continues; a quota-exhausted signal stops every remaining query.
func (p *Pipeline) Run(ctx context.Context, queries []string) *Result {
	res := &Result{RunID: uuid.NewString()}
	log := p.log.With().Str("run_id", res.RunID).Logger()
	log.Info().Int("queries", len(queries)).Msg("Acquisition run started")

	res.Batch = batch.Run(ctx, p.exec, queries, func(q string) string { return q },
		func(ctx context.Context, query string) batch.Outcome {
			return p.runQuery(ctx, log, query, res)
		})

	p.record(ctx, res)
	log.Info().
		Int("queries_executed", res.QueriesExecuted).
		Int("found", res.ItemsFound).
		Int("added", res.ItemsAdded).
		Int("duplicates", res.Duplicates).
		Int("too_short", res.TooShort).
		Int("invalid", res.Invalid).
		Int("errors", res.Errors).
		Int("tag_errors", res.TagErrors).
		Bool("halted_on_quota", res.HaltedOnQuota).
		Msg("Acquisition run finished")
	return res
}

func (p *Pipeline) runQuery(ctx context.Context, log zerolog.Logger, query string, res *Result) batch.Outcome {
	query = strings.TrimSpace(query)
	if query == "" {
		return batch.Skipped("empty query")
	}

	res.QueriesExecuted++
	items, err := p.catalog.Search(ctx, query, p.cfg.PageSize)
	if err != nil {
		if catalog.IsQuotaExhausted(err) {
			res.HaltedOnQuota = true
			return batch.Halted("quota exhausted", err)
		}
		res.Errors++
		return batch.Failed(fmt.Errorf("search %q: %w", query, err))
	}
	res.ItemsFound += len(items)

	for _, item := range items {
		v, o, err := p.acceptItem(ctx, item)
		switch o {
		case outcomeAdded:
			res.ItemsAdded++
			if !p.afterInsert(ctx, log, v) {
				res.TagErrors++
			}
		case outcomeDuplicate:
			res.Duplicates++
		case outcomeTooShort:
			res.TooShort++
		case outcomeInvalid:
			res.Invalid++
		case outcomeError:
			res.Errors++
			log.Warn().Err(err).Str("query", query).Str("external_id", item.ExternalID).Msg("Candidate failed")
		case outcomeQuota:
			res.HaltedOnQuota = true
			return batch.Halted("quota exhausted", err)
		}
	}
	return batch.Succeeded()
}

func (p *Pipeline) acceptItem(ctx context.Context, item catalog.Item) (*models.Video, outcome, error) {
	if strings.TrimSpace(item.ExternalID) == "" || strings.TrimSpace(item.Title) == "" {
		return nil, outcomeInvalid, nil
	}

	exists, err := p.videos.ExistsByExternalID(ctx, item.ExternalID)
	if err != nil {
		return nil, outcomeError, fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		return nil, outcomeDuplicate, nil
	}

	d, err := p.catalog.Duration(ctx, item.ExternalID)
	switch {
	case catalog.IsQuotaExhausted(err):
		return nil, outcomeQuota, err
	case errors.Is(err, catalog.ErrNotFound):
		return nil, outcomeInvalid, nil
	case err != nil:
		return nil, outcomeError, fmt.Errorf("fetch duration: %w", err)
	}
	if d < p.cfg.MinDuration {
		return nil, outcomeTooShort, nil
	}

	v := &models.Video{
		ExternalID:      item.ExternalID,
		Title:           item.Title,
		Channel:         item.ChannelName,
		ChannelRef:      item.ChannelRef,
		PublishedAt:     item.PublishedAt,
		DurationSeconds: int(d / time.Second),
		AcceptanceScore: models.DefaultAcceptanceScore,
		Status:          models.VideoStatusActive,
	}
	id, inserted, err := p.videos.InsertVideo(ctx, v)
	if err != nil {
		return nil, outcomeError, fmt.Errorf("insert video: %w", err)
	}
	if !inserted {
		// Lost a race with another writer; the unique key kept one row.
		return nil, outcomeDuplicate, nil
	}
	v.ID = id
	return v, outcomeAdded, nil
}

// afterInsert tags a new video and registers its channel. It reports false
// when tagging failed; the video stays and the backfill job retags it later.
func (p *Pipeline) afterInsert(ctx context.Context, log zerolog.Logger, v *models.Video) bool {
	if p.instructors != nil && v.Channel != "" {
		if err := p.instructors.EnsureInstructor(ctx, v.Channel, v.ChannelRef); err != nil {
			log.Warn().Err(err).Str("channel", v.Channel).Msg("Register instructor failed")
		}
	}
	if p.tagger == nil {
		return true
	}
	if _, err := p.tagger.TagVideo(ctx, v); err != nil {
		log.Warn().Err(err).Int64("video_id", v.ID).Msg("Tagging new video failed")
		p.metrics.Add(ctx, metrics.TaggingErrors, 1, metrics.Job("acquire"))
		return false
	}
	p.metrics.Add(ctx, metrics.TaggingTagged, 1, metrics.Job("acquire"))
	return true
}

func (p *Pipeline) record(ctx context.Context, res *Result) {
	p.metrics.Add(ctx, metrics.AcquisitionQueries, int64(res.QueriesExecuted))
	p.metrics.Add(ctx, metrics.AcquisitionFound, int64(res.ItemsFound))
	p.metrics.Add(ctx, metrics.AcquisitionAdded, int64(res.ItemsAdded))
	p.metrics.Add(ctx, metrics.AcquisitionDuplicates, int64(res.Duplicates))
	p.metrics.Add(ctx, metrics.AcquisitionTooShort, int64(res.TooShort))
	p.metrics.Add(ctx, metrics.AcquisitionErrors, int64(res.Errors))
	if res.HaltedOnQuota {
		p.metrics.Add(ctx, metrics.AcquisitionQuotaHalts, 1)
	}
}
