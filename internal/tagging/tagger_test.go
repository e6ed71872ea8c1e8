package tagging

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/dojo/internal/batch"
	"github.com/thebtf/dojo/internal/taxonomy"
	"github.com/thebtf/dojo/pkg/models"
)

type staticSource struct {
	snap *taxonomy.Snapshot
	err  error
}

func (s *staticSource) Get(ctx context.Context) (*taxonomy.Snapshot, error) {
	return s.snap, s.err
}

type memoryTagStore struct {
	failFor map[int64]bool
	rows    map[[2]int64]models.Relevance
	mu      sync.Mutex
}

func newMemoryTagStore() *memoryTagStore {
	return &memoryTagStore{rows: make(map[[2]int64]models.Relevance), failFor: make(map[int64]bool)}
}

func (m *memoryTagStore) InsertTags(ctx context.Context, tags []models.VideoTechniqueTag) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, tag := range tags {
		if m.failFor[tag.VideoID] {
			return 0, errors.New("write failed")
		}
		k := [2]int64{tag.VideoID, tag.TaxonomyID}
		if _, ok := m.rows[k]; ok {
			continue
		}
		m.rows[k] = tag.Relevance
		inserted++
	}
	return inserted, nil
}

func (m *memoryTagStore) pairs(videoID int64) [][2]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][2]int64
	for k := range m.rows {
		if k[0] == videoID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][1] < out[j][1] })
	return out
}

func snapshotFromSpecs(t *testing.T, specs []models.TaxonomyNodeSpec) *taxonomy.Snapshot {
	t.Helper()
	nodes, err := taxonomy.BuildNodes(specs)
	require.NoError(t, err)
	snap, err := taxonomy.NewSnapshot(nodes)
	require.NoError(t, err)
	return snap
}

func guardTaxonomy(t *testing.T) *taxonomy.Snapshot {
	return snapshotFromSpecs(t, []models.TaxonomyNodeSpec{
		{Slug: "fundamentals", Name: "Fundamentals", Level: 1},
		{Slug: "guard-play", Name: "Guard Play", Level: 1},
		{Slug: "half-guard", Name: "Half Guard", Level: 2, ParentSlug: "guard-play"},
		{Slug: "submissions", Name: "Submissions", Level: 1},
		{Slug: "chokes", Name: "Chokes", Level: 2, ParentSlug: "submissions"},
		{Slug: "triangle-choke", Name: "Triangle Choke", Level: 3, ParentSlug: "chokes"},
		{Slug: "rear-naked-choke", Name: "Rear Naked Choke", Level: 3, ParentSlug: "chokes"},
		{Slug: "arm-triangle", Name: "Arm Triangle Choke", Level: 3, ParentSlug: "chokes"},
		{Slug: "guillotine-choke", Name: "Guillotine Choke", Level: 3, ParentSlug: "chokes"},
	})
}

func newTestTagger(snap *taxonomy.Snapshot, store TagStore) *Tagger {
	return NewTagger(&staticSource{snap: snap}, store, nil, DefaultConfig(), zerolog.Nop())
}

func bySlug(assignments []models.TagAssignment) map[string]models.TagAssignment {
	out := make(map[string]models.TagAssignment, len(assignments))
	for _, a := range assignments {
		out[a.Slug] = a
	}
	return out
}

func defaultSeedSnapshot(t *testing.T) *taxonomy.Snapshot {
	return snapshotFromSpecs(t, taxonomy.DefaultSeed().Specs())
}

func TestClassify_DeepHalfGuardScenario(t *testing.T) {
	snap := defaultSeedSnapshot(t)
	tagger := newTestTagger(snap, newMemoryTagStore())

	got, err := tagger.Classify(snap, Input{Title: "Deep Half Guard Sweep Tutorial"})
	require.NoError(t, err)

	require.Len(t, got, 2)
	m := bySlug(got)
	assert.Equal(t, models.RelevancePrimary, m["half-guard"].Relevance)
	assert.Equal(t, models.ProvenancePositionDetect, m["half-guard"].Provenance)
	assert.Equal(t, models.RelevanceSecondary, m["guard-play"].Relevance)
	assert.Equal(t, models.LevelCategory, m["guard-play"].Level)
	assert.NotContains(t, m, "deep-half-guard-sweep")
}

func TestClassify_NameMatchReadsTechniqueNameOnly(t *testing.T) {
	snap := defaultSeedSnapshot(t)
	tagger := newTestTagger(snap, newMemoryTagStore())

	got, err := tagger.Classify(snap, Input{Title: "Scissor Sweep"})
	require.NoError(t, err)
	m := bySlug(got)
	assert.NotContains(t, m, "scissor-sweep")

	got, err = tagger.Classify(snap, Input{Title: "Sunday drilling", TechniqueName: "Scissor Sweep"})
	require.NoError(t, err)
	m = bySlug(got)
	require.Contains(t, m, "scissor-sweep")
	assert.Equal(t, models.ProvenanceNameMatch, m["scissor-sweep"].Provenance)
	assert.InDelta(t, 1.0, m["scissor-sweep"].Score, 1e-9)
	assert.Contains(t, m, "closed-guard")
}

func TestClassify_FallbackWhenNothingMatches(t *testing.T) {
	snap := guardTaxonomy(t)
	tagger := newTestTagger(snap, newMemoryTagStore())

	got, err := tagger.Classify(snap, Input{Title: "Saturday open mat highlights"})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "fundamentals", got[0].Slug)
	assert.Equal(t, models.ProvenanceFallback, got[0].Provenance)
	// A lone root is primary.
	assert.Equal(t, models.RelevancePrimary, got[0].Relevance)
}

func TestClassify_MissingFallbackSlugUsesFirstRoot(t *testing.T) {
	snap := snapshotFromSpecs(t, []models.TaxonomyNodeSpec{
		{Slug: "escapes", Name: "Escapes", Level: 1},
		{Slug: "takedowns", Name: "Takedowns", Level: 1},
	})
	tagger := newTestTagger(snap, newMemoryTagStore())

	got, err := tagger.Classify(snap, Input{Title: "zzz"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "escapes", got[0].Slug)
}

func TestClassify_EmptyTaxonomyFails(t *testing.T) {
	snap, err := taxonomy.NewSnapshot(nil)
	require.NoError(t, err)
	tagger := newTestTagger(snap, newMemoryTagStore())

	_, err = tagger.Classify(snap, Input{Title: "anything"})
	assert.ErrorIs(t, err, ErrNoFallbackNode)
}

func TestClassify_TypeMapAddsRoots(t *testing.T) {
	snap := guardTaxonomy(t)
	tagger := newTestTagger(snap, newMemoryTagStore())

	got, err := tagger.Classify(snap, Input{Title: "Saturday open mat", TechniqueType: "Submission / Sweep"})
	require.NoError(t, err)

	m := bySlug(got)
	require.Len(t, m, 2)
	assert.Equal(t, models.ProvenanceTypeMap, m["submissions"].Provenance)
	assert.Equal(t, models.ProvenanceTypeMap, m["guard-play"].Provenance)
	assert.Equal(t, models.RelevanceSecondary, m["submissions"].Relevance)
}

func TestClassify_NameMatchKeepsTopThreeWithAncestors(t *testing.T) {
	snap := guardTaxonomy(t)
	tagger := newTestTagger(snap, newMemoryTagStore())

	got, err := tagger.Classify(snap, Input{Title: "Finishing from the top", TechniqueName: "Choke"})
	require.NoError(t, err)

	// "choke" is contained by all four level-3 names (0.85); the three lowest ids win.
	m := bySlug(got)
	assert.Contains(t, m, "triangle-choke")
	assert.Contains(t, m, "rear-naked-choke")
	assert.Contains(t, m, "arm-triangle")
	assert.NotContains(t, m, "guillotine-choke")
	assert.Equal(t, models.RelevancePrimary, m["chokes"].Relevance)
	assert.Equal(t, models.RelevanceSecondary, m["submissions"].Relevance)
	assert.InDelta(t, 0.85, m["triangle-choke"].Score, 1e-9)
	assert.Len(t, got, 5)
}

func TestClassify_NameMatchFallsBackToLevelTwo(t *testing.T) {
	snap := guardTaxonomy(t)
	tagger := newTestTagger(snap, newMemoryTagStore())

	got, err := tagger.Classify(snap, Input{Title: "x", TechniqueName: "chokes"})
	require.NoError(t, err)

	m := bySlug(got)
	require.Contains(t, m, "chokes")
	assert.Equal(t, models.ProvenanceNameMatch, m["chokes"].Provenance)
	assert.Contains(t, m, "submissions")
}

func TestClassify_BelowThresholdIgnored(t *testing.T) {
	snap := guardTaxonomy(t)
	cfg := DefaultConfig()
	cfg.NameThreshold = 0.95
	tagger := NewTagger(&staticSource{snap: snap}, newMemoryTagStore(), nil, cfg, zerolog.Nop())

	got, err := tagger.Classify(snap, Input{Title: "x", TechniqueName: "triangle choke setups"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.ProvenanceFallback, got[0].Provenance)
}

func TestTagVideo_IsIdempotent(t *testing.T) {
	snap := guardTaxonomy(t)
	store := newMemoryTagStore()
	tagger := newTestTagger(snap, store)
	ctx := context.Background()

	v := &models.Video{ID: 42, Title: "Half Guard to Triangle Choke", TechniqueType: "submission"}

	_, err := tagger.TagVideo(ctx, v)
	require.NoError(t, err)
	first := store.pairs(42)
	require.NotEmpty(t, first)

	_, err = tagger.TagVideo(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, first, store.pairs(42))
}

func TestTagVideo_TaxonomyErrorPropagates(t *testing.T) {
	tagger := NewTagger(&staticSource{err: errors.New("db down")}, newMemoryTagStore(), nil, DefaultConfig(), zerolog.Nop())

	_, err := tagger.TagVideo(context.Background(), &models.Video{ID: 1, Title: "Half guard"})
	assert.Error(t, err)
}

func TestBackfill_ContinuesPastFailures(t *testing.T) {
	snap := guardTaxonomy(t)
	store := newMemoryTagStore()
	store.failFor[2] = true
	tagger := newTestTagger(snap, store)

	videos := []*models.Video{
		{ID: 1, Title: "Half guard basics"},
		{ID: 2, Title: "Rear naked choke"},
		{ID: 3, Title: "Unrelated vlog"},
	}
	exec := batch.New(batch.Config{}, zerolog.Nop())

	result := tagger.Backfill(context.Background(), exec, videos)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.NotEmpty(t, store.pairs(1))
	assert.NotEmpty(t, store.pairs(3))
	assert.Empty(t, store.pairs(2))
}

func TestEveryVideoGetsAtLeastOneTag(t *testing.T) {
	nodes, err := taxonomy.BuildNodes(taxonomy.DefaultSeed().Specs())
	require.NoError(t, err)
	snap, err := taxonomy.NewSnapshot(nodes)
	require.NoError(t, err)
	tagger := newTestTagger(snap, newMemoryTagStore())

	inputs := []Input{
		{},
		{Title: "!!!"},
		{Title: "Competition vlog day 3"},
		{Title: "Deep Half Guard Sweep Tutorial"},
		{Title: "50/50 Heel Hook Entries", TechniqueType: "leg lock"},
		{Title: "Kimura trap system", TechniqueName: "Kimura", Position: "side control"},
	}
	for _, in := range inputs {
		got, err := tagger.Classify(snap, in)
		require.NoError(t, err)
		assert.NotEmpty(t, got, "%+v", in)
	}
}
