// Package app wires the stores, services and scheduled jobs shared by the
// dojo CLI and the worker process.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"

	"github.com/thebtf/dojo/internal/acquisition"
	"github.com/thebtf/dojo/internal/batch"
	"github.com/thebtf/dojo/internal/catalog"
	"github.com/thebtf/dojo/internal/config"
	"github.com/thebtf/dojo/internal/coverage"
	"github.com/thebtf/dojo/internal/credibility"
	"github.com/thebtf/dojo/internal/db/gorm"
	"github.com/thebtf/dojo/internal/metrics"
	"github.com/thebtf/dojo/internal/privacy"
	"github.com/thebtf/dojo/internal/profile"
	"github.com/thebtf/dojo/internal/scheduler"
	"github.com/thebtf/dojo/internal/tagging"
	"github.com/thebtf/dojo/internal/taxonomy"
	"github.com/thebtf/dojo/pkg/similarity"
)

// Job kinds registered with the scheduler.
const (
	JobAcquire     = "acquire"
	JobCoverage    = "coverage"
	JobTag         = "tag"
	JobProfiles    = "profiles"
	JobCredibility = "credibility"
)

// ErrCatalogDisabled is returned by acquisition when no catalog API key is configured.
var ErrCatalogDisabled = errors.New("catalog disabled: DOJO_CATALOG_API_KEY is not set")

// App holds every long-lived component.
type App struct {
	Config *config.Config

	Store       *gorm.Store
	Videos      *gorm.VideoStore
	TaxonomyDB  *gorm.TaxonomyStore
	Instructors *gorm.InstructorStore
	Feedback    *gorm.FeedbackStore

	TaxonomyCache *taxonomy.Cache
	TaxonomyAdmin *taxonomy.Admin

	Tagger      *tagging.Tagger
	Analyzer    *coverage.Analyzer
	Planner     *acquisition.Planner
	Pipeline    *acquisition.Pipeline // nil without a catalog
	Profiles    *profile.Builder
	Credibility *credibility.Recalculator
	Breaker     *catalog.BreakerCatalog // nil without a catalog

	Scheduler *scheduler.Scheduler
	Metrics   *metrics.Recorder

	backfill *batch.Executor
	log      zerolog.Logger
}

// New opens the store and builds every component from cfg.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := gorm.NewStore(gorm.Config{
		DSN:      cfg.DBDSN,
		Path:     cfg.DBPath,
		MaxConns: cfg.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		return nil, privacy.RedactError(fmt.Errorf("open store: %w", err))
	}

	cat, err := newCatalog(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return Build(cfg, store, cat, log), nil
}

// newCatalog builds the rate limited, circuit broken catalog client.
// A missing API key disables the catalog.
func newCatalog(cfg *config.Config, log zerolog.Logger) (catalog.Catalog, error) {
	if cfg.CatalogAPIKey == "" {
		log.Warn().Msg("No catalog API key configured, acquisition is disabled")
		return nil, nil
	}
	client, err := catalog.NewYouTubeClient(cfg.CatalogAPIKey, cfg.CatalogBaseURL)
	if err != nil {
		return nil, fmt.Errorf("create catalog client: %w", err)
	}
	return client, nil
}

// Build assembles the components over an open store. cat may be nil, in
// which case acquisition is disabled and credibility keeps stored
// subscriber counts.
func Build(cfg *config.Config, store *gorm.Store, cat catalog.Catalog, log zerolog.Logger) *App {
	a := &App{
		Config:      cfg,
		Store:       store,
		Videos:      gorm.NewVideoStore(store),
		TaxonomyDB:  gorm.NewTaxonomyStore(store),
		Instructors: gorm.NewInstructorStore(store),
		Feedback:    gorm.NewFeedbackStore(store),
		Metrics:     metrics.NewGlobal(log),
		log:         log.With().Str("component", "app").Logger(),
	}

	a.TaxonomyCache = taxonomy.NewCache(a.TaxonomyDB, cfg.TaxonomyCacheTTL, log)
	a.TaxonomyAdmin = taxonomy.NewAdmin(a.TaxonomyDB, a.TaxonomyCache, log)

	a.Tagger = tagging.NewTagger(a.TaxonomyCache, a.Videos, tagging.DefaultRules(), taggingConfig(cfg), log)
	a.backfill = batch.New(batch.Config{}, log.With().Str("component", "backfill").Logger())

	a.Analyzer = coverage.NewAnalyzer(a.TaxonomyCache, a.Videos, coverage.Config{
		TargetPerTechnique: cfg.CoverageTargetPerTechnique,
		LibraryTarget:      cfg.CoverageLibraryTarget,
		TopN:               cfg.CoverageTopN,
	}, log)
	a.Planner = acquisition.NewPlanner(a.Analyzer, cfg.AcquisitionQueryTemplates, cfg.AcquisitionSeedQueries, log)

	var lookup catalog.ChannelLookup
	if cat != nil {
		a.Breaker = catalog.NewBreakerCatalog("catalog", cat, catalog.DefaultBreakerSettings(), log)
		guarded := catalog.NewLimitedCatalog(a.Breaker, catalog.NewLimiter(cfg.CatalogCallsPerSecond))
		lookup = guarded

		a.Pipeline = acquisition.NewPipeline(guarded, a.Videos, a.Tagger, acquisition.Config{
			PageSize:    cfg.AcquisitionPageSize,
			MinDuration: cfg.AcquisitionMinDuration,
			QueryDelay:  cfg.AcquisitionQueryDelay,
		}, log)
		a.Pipeline.SetInstructorRegistry(a.Instructors)
		a.Pipeline.SetMetrics(a.Metrics)
	}

	a.Profiles = profile.NewBuilder(a.Feedback, profileConfig(cfg), log)
	a.Profiles.SetMetrics(a.Metrics)

	a.Credibility = credibility.NewRecalculator(a.Instructors, a.Videos, lookup, credibility.DefaultWeights(), cfg.CredibilityDelay, log)
	a.Credibility.SetMetrics(a.Metrics)

	a.Scheduler = scheduler.New(cfg.LockDir, log)
	a.Scheduler.SetMetrics(a.Metrics)
	a.registerJobs()

	return a
}

func taggingConfig(cfg *config.Config) tagging.Config {
	return tagging.Config{
		FallbackSlug: cfg.TagFallbackSlug,
		Weights: similarity.Weights{
			Contains:    cfg.TagContainsWeight,
			ContainedBy: cfg.TagContainedByWeight,
			Overlap:     cfg.TagOverlapWeight,
		},
		NameThreshold:  cfg.TagNameThreshold,
		MaxNameMatches: cfg.TagMaxNameMatches,
	}
}

func profileConfig(cfg *config.Config) profile.Config {
	pc := profile.DefaultConfig()
	pc.Window = cfg.ProfileWindow
	pc.MinSamples = cfg.ProfileMinSamples
	pc.LengthFloor = cfg.ProfileLengthFloor
	pc.LengthCeiling = cfg.ProfileLengthCeiling
	pc.ActiveWindow = cfg.ProfileActiveWindow
	pc.UserDelay = cfg.ProfileUserDelay
	return pc
}

func (a *App) registerJobs() {
	cfg := a.Config
	a.Scheduler.Register(JobAcquire, cfg.ScheduleAcquire, func(ctx context.Context) error {
		_, err := a.Acquire(ctx, nil)
		return err
	})
	a.Scheduler.Register(JobCoverage, cfg.ScheduleCoverage, func(ctx context.Context) error {
		_, err := a.Coverage(ctx, nil)
		return err
	})
	a.Scheduler.Register(JobTag, cfg.ScheduleTag, func(ctx context.Context) error {
		_, err := a.Tag(ctx, false)
		return err
	})
	a.Scheduler.Register(JobProfiles, cfg.ScheduleProfiles, func(ctx context.Context) error {
		_, err := a.BuildProfiles(ctx, nil)
		return err
	})
	a.Scheduler.Register(JobCredibility, cfg.ScheduleCredibility, func(ctx context.Context) error {
		_, err := a.Credibility.Recalculate(ctx, nil)
		return err
	})
}

// EnsureTaxonomy loads the configured seed when the taxonomy table is empty.
func (a *App) EnsureTaxonomy(ctx context.Context) error {
	nodes, err := a.TaxonomyDB.ListTaxonomyNodes(ctx)
	if err != nil {
		return fmt.Errorf("list taxonomy: %w", err)
	}
	if len(nodes) > 0 {
		return nil
	}
	if a.Config.TaxonomySeedPath != "" {
		a.log.Info().Str("path", a.Config.TaxonomySeedPath).Msg("Seeding taxonomy from file")
		return a.TaxonomyAdmin.LoadFile(ctx, a.Config.TaxonomySeedPath)
	}
	a.log.Info().Msg("Seeding taxonomy from embedded default")
	return a.TaxonomyAdmin.LoadSeed(ctx, taxonomy.DefaultSeed())
}

// Acquire plans queries (explicit targets first, then coverage gaps, then
// seed queries) and runs the pipeline over them.
func (a *App) Acquire(ctx context.Context, targets []string) (*acquisition.Result, error) {
	if a.Pipeline == nil {
		return nil, ErrCatalogDisabled
	}
	queries, err := a.Planner.Plan(ctx, targets)
	if err != nil {
		return nil, err
	}
	res := a.Pipeline.Run(ctx, queries)
	if res.HaltedOnQuota {
		return res, fmt.Errorf("acquisition run %s: %w", res.RunID, catalog.ErrQuotaExhausted)
	}
	return res, nil
}

// Coverage analyzes the library. Empty targets analyze every technique.
func (a *App) Coverage(ctx context.Context, targets []string) (*coverage.Report, error) {
	return a.Analyzer.Analyze(ctx, targets)
}

// Tag backfills tags on active videos. With all set, videos that already
// carry tags are re-run; existing pairs are kept.
func (a *App) Tag(ctx context.Context, all bool) (*batch.Result, error) {
	videos, err := a.Videos.ListVideosForTagging(ctx, !all, 0)
	if err != nil {
		return nil, fmt.Errorf("list videos for tagging: %w", err)
	}
	return a.Tagger.Backfill(ctx, a.backfill, videos), nil
}

// BuildProfiles rebuilds the given users, or every recently active user
// when users is empty.
func (a *App) BuildProfiles(ctx context.Context, users []string) (*batch.Result, error) {
	users = trimmed(users)
	if len(users) == 0 {
		return a.Profiles.BuildAll(ctx)
	}
	return a.Profiles.BuildUsers(ctx, users), nil
}

// Close releases the store.
func (a *App) Close() error {
	a.Scheduler.Stop()
	return a.Store.Close()
}

func trimmed(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
