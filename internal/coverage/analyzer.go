// Package coverage measures how well each technique is represented in the
// library and ranks the gaps that acquisition should fill next.
package coverage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/dojo/internal/taxonomy"
	"github.com/thebtf/dojo/pkg/models"
)

// TaxonomySource yields the current taxonomy snapshot.
type TaxonomySource interface {
	Get(ctx context.Context) (*taxonomy.Snapshot, error)
}

// CountSource reads active video counts.
type CountSource interface {
	CountActiveVideos(ctx context.Context) (int, error)
	CountActiveByTaxonomy(ctx context.Context) (map[int64]int, error)
}

// Config holds analyzer tunables.
type Config struct {
	Levels             []int // Taxonomy levels treated as techniques
	TargetPerTechnique int   // Videos wanted per technique
	LibraryTarget      int   // Videos wanted in the whole library
	TopN               int   // Priorities emitted per analysis
}

// DefaultConfig returns the default analyzer configuration.
func DefaultConfig() Config {
	return Config{
		TargetPerTechnique: 100,
		LibraryTarget:      3000,
		TopN:               10,
		Levels:             []int{models.LevelPosition, models.LevelTechnique},
	}
}

// Report is the outcome of one analysis.
type Report struct {
	GeneratedAt     time.Time                 `json:"generated_at"`
	Techniques      []models.CoveragePriority `json:"techniques"`
	Priorities      []models.CoveragePriority `json:"priorities"`
	Unknown         []string                  `json:"unknown_targets,omitempty"`
	TotalVideos     int                       `json:"total_videos"`
	LibraryTarget   int                       `json:"library_target"`
	LibraryCoverage float64                   `json:"library_coverage"`
}

// Analyzer computes coverage reports. It never writes to the store.
type Analyzer struct {
	taxonomy TaxonomySource
	counts   CountSource
	now      func() time.Time
	log      zerolog.Logger
	cfg      Config
}

// NewAnalyzer creates a coverage analyzer.
func NewAnalyzer(source TaxonomySource, counts CountSource, cfg Config, log zerolog.Logger) *Analyzer {
	def := DefaultConfig()
	if cfg.TargetPerTechnique <= 0 {
		cfg.TargetPerTechnique = def.TargetPerTechnique
	}
	if cfg.LibraryTarget <= 0 {
		cfg.LibraryTarget = def.LibraryTarget
	}
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if len(cfg.Levels) == 0 {
		cfg.Levels = def.Levels
	}
	return &Analyzer{
		taxonomy: source,
		counts:   counts,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With().Str("component", "coverage").Logger(),
	}
}

// Analyze builds a coverage report. A non-empty targets list restricts the
// analysis to those techniques, matched by slug or name; unknown targets
// are reported and otherwise ignored.
func (a *Analyzer) Analyze(ctx context.Context, targets []string) (*Report, error) {
	snap, err := a.taxonomy.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	byNode, err := a.counts.CountActiveByTaxonomy(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tagged videos: %w", err)
	}
	total, err := a.counts.CountActiveVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("count videos: %w", err)
	}

	nodes, unknown := a.techniques(snap, targets)
	for _, name := range unknown {
		a.log.Warn().Str("target", name).Msg("Unknown coverage target")
	}

	report := &Report{
		GeneratedAt:   a.now(),
		TotalVideos:   total,
		LibraryTarget: a.cfg.LibraryTarget,
		Unknown:       unknown,
		Techniques:    make([]models.CoveragePriority, 0, len(nodes)),
	}
	report.LibraryCoverage = min(float64(total)/float64(a.cfg.LibraryTarget), 1)

	for _, n := range nodes {
		report.Techniques = append(report.Techniques, Priority(n, byNode[n.ID], a.cfg.TargetPerTechnique))
	}
	sortByName(report.Techniques)
	report.Priorities = Rank(report.Techniques, a.cfg.TopN)

	a.log.Info().
		Int("techniques", len(report.Techniques)).
		Int("priorities", len(report.Priorities)).
		Int("total_videos", total).
		Msg("Coverage analyzed")
	return report, nil
}

func (a *Analyzer) techniques(snap *taxonomy.Snapshot, targets []string) ([]*models.TaxonomyNode, []string) {
	if len(targets) == 0 {
		var nodes []*models.TaxonomyNode
		for _, level := range a.cfg.Levels {
			nodes = append(nodes, snap.Level(level)...)
		}
		return nodes, nil
	}

	var (
		nodes   []*models.TaxonomyNode
		unknown []string
		seen    = make(map[int64]bool, len(targets))
	)
	for _, t := range targets {
		n, ok := snap.ByName(strings.TrimSpace(t))
		if !ok {
			unknown = append(unknown, t)
			continue
		}
		if !seen[n.ID] {
			seen[n.ID] = true
			nodes = append(nodes, n)
		}
	}
	return nodes, unknown
}

// Priority projects one technique's coverage. The score is the missing share
// of the target scaled to 0..100; covered techniques score 0.
func Priority(n *models.TaxonomyNode, current, target int) models.CoveragePriority {
	p := models.CoveragePriority{
		TechniqueName: n.Name,
		Slug:          n.Slug,
		TaxonomyID:    n.ID,
		Level:         n.Level,
		CurrentCount:  current,
		TargetCount:   target,
	}
	if target > 0 && current < target {
		p.NeedsCuration = true
		p.PriorityScore = 100 * float64(target-current) / float64(target)
	}
	return p
}

// Rank returns the top n under-covered techniques, highest score first.
// Ties break by technique name, then taxonomy id, so equal counts always
// rank the same way.
func Rank(all []models.CoveragePriority, n int) []models.CoveragePriority {
	ranked := make([]models.CoveragePriority, 0, len(all))
	for _, p := range all {
		if p.NeedsCuration {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].PriorityScore != ranked[j].PriorityScore {
			return ranked[i].PriorityScore > ranked[j].PriorityScore
		}
		if ranked[i].TechniqueName != ranked[j].TechniqueName {
			return ranked[i].TechniqueName < ranked[j].TechniqueName
		}
		return ranked[i].TaxonomyID < ranked[j].TaxonomyID
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func sortByName(ps []models.CoveragePriority) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].TechniqueName != ps[j].TechniqueName {
			return ps[i].TechniqueName < ps[j].TechniqueName
		}
		return ps[i].TaxonomyID < ps[j].TaxonomyID
	})
}
