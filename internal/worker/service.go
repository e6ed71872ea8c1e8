// Package worker provides the dojo admin HTTP API.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/thebtf/dojo/internal/coverage"
	"github.com/thebtf/dojo/internal/db/gorm"
	"github.com/thebtf/dojo/internal/scheduler"
	"github.com/thebtf/dojo/pkg/models"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// MaxRequestBody caps request bodies (taxonomy documents are the largest).
	MaxRequestBody = 1 << 20

	// WriteRate and WriteBurst bound mutating requests per client.
	WriteRate  = 1.0
	WriteBurst = 5
)

// HealthChecker reports database health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) *gorm.HealthInfo
}

// CoverageAnalyzer produces coverage reports.
type CoverageAnalyzer interface {
	Analyze(ctx context.Context, targets []string) (*coverage.Report, error)
}

// TaxonomyReplacer replaces the whole taxonomy.
type TaxonomyReplacer interface {
	Replace(ctx context.Context, specs []models.TaxonomyNodeSpec) error
}

// JobRunner starts jobs and reports their state.
type JobRunner interface {
	Launch(ctx context.Context, kind string) error
	Statuses() []scheduler.Status
}

// FeedbackStore records feedback and serves stored profiles.
type FeedbackStore interface {
	RecordFeedback(ctx context.Context, f *models.UserFeedback) (int64, error)
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// VideoReader reads videos and their tags.
type VideoReader interface {
	GetVideo(ctx context.Context, id int64) (*models.Video, error)
	TagsForVideo(ctx context.Context, videoID int64) ([]models.VideoTechniqueTag, error)
}

// Deps are the components the API serves. Every field is required.
type Deps struct {
	Health   HealthChecker
	Coverage CoverageAnalyzer
	Taxonomy TaxonomyReplacer
	Jobs     JobRunner
	Feedback FeedbackStore
	Videos   VideoReader
}

// Service is the admin HTTP server.
type Service struct {
	startTime time.Time
	deps      Deps
	ctx       context.Context
	router    *chi.Mux
	server    *http.Server
	limiter   *PerClientRateLimiter
	cancel    context.CancelFunc
	log       zerolog.Logger
	version   string
	wg        sync.WaitGroup
}

// NewService creates the API. Jobs launched through it run under a context
// that lives until Shutdown.
func NewService(version string, deps Deps, log zerolog.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:   version,
		deps:      deps,
		router:    chi.NewRouter(),
		limiter:   NewPerClientRateLimiter(WriteRate, WriteBurst),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		log:       log.With().Str("component", "worker").Logger(),
	}

	svc.setupMiddleware()
	svc.setupRoutes()
	return svc
}

// Handler returns the routed HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	s.router.Use(RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(SecurityHeaders)
	s.router.Use(MaxBodySize(MaxRequestBody))
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/version", s.handleVersion)

	s.router.Get("/api/coverage", s.handleCoverage)
	s.router.Get("/api/jobs", s.handleJobs)
	s.router.Get("/api/videos/{id}", s.handleGetVideo)
	s.router.Get("/api/profiles/{user}", s.handleGetProfile)

	s.router.Group(func(r chi.Router) {
		r.Use(PerClientRateLimitMiddleware(s.limiter))

		r.Put("/api/taxonomy", s.handleReplaceTaxonomy)
		r.Post("/api/jobs/{kind}", s.handleRunJob)
		r.With(RequireJSONContentType).Post("/api/feedback", s.handleFeedback)
	})
}

// Start serves on port in the background.
func (s *Service) Start(port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.log.Info().Int("port", port).Msg("Admin API started")
	return nil
}

// Shutdown stops the server and cancels jobs launched through the API.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			s.log.Error().Err(err).Msg("HTTP server shutdown error")
			return err
		}
	}
	s.wg.Wait()

	s.log.Info().Msg("Admin API shutdown complete")
	return nil
}
