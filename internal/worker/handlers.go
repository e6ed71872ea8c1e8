package worker

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/dojo/internal/db/gorm"
	"github.com/thebtf/dojo/internal/scheduler"
	"github.com/thebtf/dojo/internal/taxonomy"
	"github.com/thebtf/dojo/pkg/models"
)

// Handler configuration constants
const (
	// DefaultCoverageLimit is the default number of priorities returned.
	DefaultCoverageLimit = 10

	// MaxCoverageLimit caps the priorities returned.
	MaxCoverageLimit = 500
)

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// handleHealth reports database health and job state.
// Returns 503 when the database check fails.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	db := s.deps.Health.HealthCheck(r.Context())
	status := http.StatusOK
	if db.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, status, map[string]interface{}{
		"status":   db.Status,
		"version":  s.version,
		"uptime":   time.Since(s.startTime).Round(time.Second).String(),
		"database": db,
		"jobs":     s.deps.Jobs.Statuses(),
	})
}

// handleVersion returns the worker version.
func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": s.version})
}

// handleCoverage runs a coverage analysis. Query parameters:
// target (repeatable) restricts the techniques; limit caps the priorities.
func (s *Service) handleCoverage(w http.ResponseWriter, r *http.Request) {
	limit := gorm.ParseLimitParamWithMax(r, DefaultCoverageLimit, MaxCoverageLimit)

	report, err := s.deps.Coverage.Analyze(r.Context(), r.URL.Query()["target"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(report.Priorities) > limit {
		report.Priorities = report.Priorities[:limit]
	}
	writeJSON(w, report)
}

// handleReplaceTaxonomy replaces the taxonomy with a seed document.
// YAML and JSON bodies are both accepted (JSON is valid YAML).
func (s *Service) handleReplaceTaxonomy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	seed, err := taxonomy.ParseSeed(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	specs := seed.Specs()
	if err := s.deps.Taxonomy.Replace(r.Context(), specs); err != nil {
		if errors.Is(err, taxonomy.ErrInvalidTaxonomy) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info().Int("nodes", len(specs)).Str("request_id", GetRequestID(r.Context())).Msg("Taxonomy replaced")
	writeJSON(w, map[string]interface{}{"status": "replaced", "nodes": len(specs)})
}

// handleJobs lists job statuses.
func (s *Service) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Jobs.Statuses())
}

// handleRunJob starts a job in the background.
// Returns 202 on launch, 404 for unknown kinds, 409 when already running.
func (s *Service) handleRunJob(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	err := s.deps.Jobs.Launch(s.ctx, kind)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info().Str("job", kind).Str("request_id", GetRequestID(r.Context())).Msg("Job launched")
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started", "job": kind})
}

// FeedbackRequest is the request body for recording feedback.
type FeedbackRequest struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
	VideoID  int64  `json:"video_id"`
	Helpful  bool   `json:"helpful"`
}

// handleFeedback appends one feedback vote.
func (s *Service) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || req.VideoID <= 0 {
		http.Error(w, "user_id and video_id are required", http.StatusBadRequest)
		return
	}

	if _, err := s.deps.Videos.GetVideo(r.Context(), req.VideoID); err != nil {
		if errors.Is(err, gorm.ErrNotFound) {
			http.Error(w, "video not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	id, err := s.deps.Feedback.RecordFeedback(r.Context(), &models.UserFeedback{
		UserID:   req.UserID,
		VideoID:  req.VideoID,
		Category: req.Category,
		Helpful:  req.Helpful,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]int64{"id": id})
}

// handleGetProfile returns a stored profile.
func (s *Service) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.Feedback.GetProfile(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		if errors.Is(err, gorm.ErrNotFound) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, profile)
}

// VideoResponse is a video with its taxonomy tags.
type VideoResponse struct {
	*models.Video
	Tags []models.VideoTechniqueTag `json:"tags"`
}

// handleGetVideo returns one video and its tags.
func (s *Service) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid video id", http.StatusBadRequest)
		return
	}

	video, err := s.deps.Videos.GetVideo(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrNotFound) {
			http.Error(w, "video not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tags, err := s.deps.Videos.TagsForVideo(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if tags == nil {
		tags = []models.VideoTechniqueTag{}
	}
	writeJSON(w, VideoResponse{Video: video, Tags: tags})
}
