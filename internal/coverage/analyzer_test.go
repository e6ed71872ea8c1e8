package coverage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/dojo/internal/taxonomy"
	"github.com/thebtf/dojo/pkg/models"
)

type staticSource struct {
	snap *taxonomy.Snapshot
	err  error
}

func (s staticSource) Get(ctx context.Context) (*taxonomy.Snapshot, error) { return s.snap, s.err }

type mockCounts struct {
	byNode map[int64]int
	err    error
	total  int
}

func (m *mockCounts) CountActiveVideos(ctx context.Context) (int, error) { return m.total, m.err }

func (m *mockCounts) CountActiveByTaxonomy(ctx context.Context) (map[int64]int, error) {
	return m.byNode, m.err
}

func node(id int64, slug, name string, level int, parent int64) models.TaxonomyNode {
	n := models.TaxonomyNode{ID: id, Slug: slug, Name: name, Level: level}
	if parent != 0 {
		n.ParentID = sql.NullInt64{Int64: parent, Valid: true}
	}
	return n
}

type AnalyzerSuite struct {
	suite.Suite
	snap   *taxonomy.Snapshot
	counts *mockCounts
}

func TestAnalyzerSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerSuite))
}

func (s *AnalyzerSuite) SetupTest() {
	snap, err := taxonomy.NewSnapshot([]models.TaxonomyNode{
		node(1, "guard-play", "Guard Play", 1, 0),
		node(2, "half-guard", "Half Guard", 2, 1),
		node(3, "closed-guard", "Closed Guard", 2, 1),
		node(4, "deep-half-guard-sweep", "Deep Half Guard Sweep", 3, 2),
		node(5, "scissor-sweep", "Scissor Sweep", 3, 3),
		node(6, "armbar-from-guard", "Armbar From Guard", 3, 3),
	})
	s.Require().NoError(err)
	s.snap = snap
	s.counts = &mockCounts{
		total: 150,
		byNode: map[int64]int{
			1: 150,
			2: 120, // covered
			3: 30,
			4: 40,
			5: 40,
			// 6 has no videos
		},
	}
}

func (s *AnalyzerSuite) analyzer(cfg Config) *Analyzer {
	a := NewAnalyzer(staticSource{snap: s.snap}, s.counts, cfg, zerolog.Nop())
	a.now = func() time.Time { return time.Unix(1700000000, 0) }
	return a
}

func (s *AnalyzerSuite) TestRanksUnderCoveredTechniques() {
	report, err := s.analyzer(DefaultConfig()).Analyze(context.Background(), nil)
	s.Require().NoError(err)

	s.Len(report.Techniques, 5)
	s.Require().Len(report.Priorities, 4)

	// 6 (0 videos) > 3 (30) > 4 and 5 tie at 40, broken by name.
	got := make([]string, 0, len(report.Priorities))
	for _, p := range report.Priorities {
		got = append(got, p.Slug)
	}
	s.Equal([]string{"armbar-from-guard", "closed-guard", "deep-half-guard-sweep", "scissor-sweep"}, got)

	top := report.Priorities[0]
	s.InDelta(100.0, top.PriorityScore, 1e-9)
	s.True(top.NeedsCuration)
	s.Equal(0, top.CurrentCount)
	s.Equal(100, top.TargetCount)
	s.InDelta(70.0, report.Priorities[1].PriorityScore, 1e-9)
}

func (s *AnalyzerSuite) TestCoveredTechniqueIsNotPriority() {
	report, err := s.analyzer(DefaultConfig()).Analyze(context.Background(), nil)
	s.Require().NoError(err)

	for _, p := range report.Techniques {
		if p.Slug == "half-guard" {
			s.False(p.NeedsCuration)
			s.Zero(p.PriorityScore)
			s.Equal(120, p.CurrentCount)
		}
	}
	for _, p := range report.Priorities {
		s.NotEqual("half-guard", p.Slug)
	}
}

func (s *AnalyzerSuite) TestLibraryTotals() {
	report, err := s.analyzer(DefaultConfig()).Analyze(context.Background(), nil)
	s.Require().NoError(err)

	s.Equal(150, report.TotalVideos)
	s.Equal(3000, report.LibraryTarget)
	s.InDelta(0.05, report.LibraryCoverage, 1e-9)
	s.Equal(time.Unix(1700000000, 0), report.GeneratedAt)
}

func (s *AnalyzerSuite) TestTopNLimitsPriorities() {
	cfg := DefaultConfig()
	cfg.TopN = 2
	report, err := s.analyzer(cfg).Analyze(context.Background(), nil)
	s.Require().NoError(err)
	s.Len(report.Priorities, 2)
}

func (s *AnalyzerSuite) TestDeterministicOrdering() {
	a := s.analyzer(DefaultConfig())
	first, err := a.Analyze(context.Background(), nil)
	s.Require().NoError(err)
	for i := 0; i < 5; i++ {
		again, err := a.Analyze(context.Background(), nil)
		s.Require().NoError(err)
		s.Equal(first.Priorities, again.Priorities)
		s.Equal(first.Techniques, again.Techniques)
	}
}

func (s *AnalyzerSuite) TestExplicitTargets() {
	report, err := s.analyzer(DefaultConfig()).Analyze(context.Background(), []string{"scissor-sweep", "Half Guard", "flying omoplata", "Scissor Sweep"})
	s.Require().NoError(err)

	s.Len(report.Techniques, 2)
	s.Equal([]string{"flying omoplata"}, report.Unknown)
	s.Require().Len(report.Priorities, 1)
	s.Equal("scissor-sweep", report.Priorities[0].Slug)
}

func (s *AnalyzerSuite) TestLevelFilter() {
	cfg := DefaultConfig()
	cfg.Levels = []int{models.LevelPosition}
	report, err := s.analyzer(cfg).Analyze(context.Background(), nil)
	s.Require().NoError(err)
	s.Len(report.Techniques, 2)
}

func (s *AnalyzerSuite) TestCountErrorPropagates() {
	s.counts.err = errors.New("db down")
	_, err := s.analyzer(DefaultConfig()).Analyze(context.Background(), nil)
	s.Error(err)
}

func TestAnalyze_TaxonomyError(t *testing.T) {
	a := NewAnalyzer(staticSource{err: errors.New("boom")}, &mockCounts{}, Config{}, zerolog.Nop())
	_, err := a.Analyze(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewAnalyzer_FillsDefaults(t *testing.T) {
	a := NewAnalyzer(staticSource{}, &mockCounts{}, Config{}, zerolog.Nop())
	assert.Equal(t, DefaultConfig(), a.cfg)
}

func TestRank_TieBreaks(t *testing.T) {
	in := []models.CoveragePriority{
		{TechniqueName: "B", TaxonomyID: 2, PriorityScore: 50, NeedsCuration: true},
		{TechniqueName: "A", TaxonomyID: 3, PriorityScore: 50, NeedsCuration: true},
		{TechniqueName: "A", TaxonomyID: 1, PriorityScore: 50, NeedsCuration: true},
		{TechniqueName: "C", TaxonomyID: 4, PriorityScore: 90, NeedsCuration: true},
		{TechniqueName: "D", TaxonomyID: 5},
	}
	ranked := Rank(in, 0)
	require.Len(t, ranked, 4)
	ids := []int64{ranked[0].TaxonomyID, ranked[1].TaxonomyID, ranked[2].TaxonomyID, ranked[3].TaxonomyID}
	assert.Equal(t, []int64{4, 1, 3, 2}, ids)
}

func TestPriority_ZeroTarget(t *testing.T) {
	n := &models.TaxonomyNode{ID: 1, Name: "X", Slug: "x", Level: 3}
	p := Priority(n, 0, 0)
	assert.False(t, p.NeedsCuration)
	assert.Zero(t, p.PriorityScore)
}
