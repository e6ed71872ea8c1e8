package gorm

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/thebtf/dojo/pkg/models"
)

// testStore creates a Store backed by a temporary SQLite database.
func testStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedSpecs() []models.TaxonomyNodeSpec {
	return []models.TaxonomyNodeSpec{
		{Slug: "fundamentals", Name: "Fundamentals", Level: 1},
		{Slug: "guard-play", Name: "Guard Play", Level: 1},
		{Slug: "half-guard", Name: "Half Guard", Level: 2, ParentSlug: "guard-play"},
		{Slug: "deep-half-guard-sweep", Name: "Deep Half Guard Sweep", Level: 3, ParentSlug: "half-guard"},
	}
}

func TestNewStore_RequiresLocation(t *testing.T) {
	_, err := NewStore(Config{})
	assert.Error(t, err)
}

func TestStore_HealthCheck(t *testing.T) {
	store := testStore(t)

	info := store.HealthCheck(context.Background())
	require.NotNil(t, info)
	assert.NotEqual(t, "unhealthy", info.Status)
	assert.Empty(t, info.Error)

	// Second call inside the TTL returns the cached value.
	assert.Same(t, info, store.HealthCheck(context.Background()))
}

func TestStore_HealthCheckHonorsCancelledContext(t *testing.T) {
	store := testStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	info := store.HealthCheck(ctx)
	require.NotNil(t, info)
	assert.Equal(t, "unhealthy", info.Status)
	assert.NotEmpty(t, info.Error)
}

func TestTaxonomyStore_ReplaceAndList(t *testing.T) {
	store := testStore(t)
	ts := NewTaxonomyStore(store)
	ctx := context.Background()

	require.NoError(t, ts.ReplaceTaxonomy(ctx, seedSpecs()))

	nodes, err := ts.ListTaxonomyNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	bySlug := map[string]models.TaxonomyNode{}
	for _, n := range nodes {
		bySlug[n.Slug] = n
	}
	assert.False(t, bySlug["guard-play"].ParentID.Valid)
	assert.Equal(t, bySlug["guard-play"].ID, bySlug["half-guard"].ParentID.Int64)
	assert.Equal(t, bySlug["half-guard"].ID, bySlug["deep-half-guard-sweep"].ParentID.Int64)
	assert.Equal(t, 3, bySlug["deep-half-guard-sweep"].Level)
}

func TestTaxonomyStore_ReplaceKeepsIDsAndDropsStale(t *testing.T) {
	store := testStore(t)
	ts := NewTaxonomyStore(store)
	vs := NewVideoStore(store)
	ctx := context.Background()

	require.NoError(t, ts.ReplaceTaxonomy(ctx, seedSpecs()))
	before, err := ts.ListTaxonomyNodes(ctx)
	require.NoError(t, err)
	ids := map[string]int64{}
	for _, n := range before {
		ids[n.Slug] = n.ID
	}

	videoID, _, err := vs.InsertVideo(ctx, &models.Video{ExternalID: "yt-1", Title: "Deep half"})
	require.NoError(t, err)
	_, err = vs.InsertTags(ctx, []models.VideoTechniqueTag{
		{VideoID: videoID, TaxonomyID: ids["half-guard"], Relevance: models.RelevancePrimary},
		{VideoID: videoID, TaxonomyID: ids["deep-half-guard-sweep"], Relevance: models.RelevancePrimary},
	})
	require.NoError(t, err)

	// Drop the level-3 node and rename half guard.
	next := seedSpecs()[:3]
	next[2].Name = "Half-Guard"
	require.NoError(t, ts.ReplaceTaxonomy(ctx, next))

	after, err := ts.ListTaxonomyNodes(ctx)
	require.NoError(t, err)
	require.Len(t, after, 3)
	for _, n := range after {
		assert.Equal(t, ids[n.Slug], n.ID, "id of %s must survive replace", n.Slug)
		if n.Slug == "half-guard" {
			assert.Equal(t, "Half-Guard", n.Name)
		}
	}

	tags, err := vs.TagsForVideo(ctx, videoID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, ids["half-guard"], tags[0].TaxonomyID)
}

func TestVideoStore_InsertVideoIsIdempotent(t *testing.T) {
	store := testStore(t)
	vs := NewVideoStore(store)
	ctx := context.Background()

	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	v := &models.Video{
		ExternalID:      "yt-abc",
		Title:           "Kimura from side control",
		Channel:         "Coach A",
		DurationSeconds: 420,
		PublishedAt:     published,
		AcceptanceScore: models.DefaultAcceptanceScore,
	}

	id1, inserted, err := vs.InsertVideo(ctx, v)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Greater(t, id1, int64(0))

	id2, inserted, err := vs.InsertVideo(ctx, v)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id1, id2)

	exists, err := vs.ExistsByExternalID(ctx, "yt-abc")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := vs.GetVideo(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusActive, got.Status)
	assert.Equal(t, published.UnixMilli(), got.PublishedAt.UnixMilli())
	assert.InDelta(t, 0.5, got.AcceptanceScore, 1e-9)

	count, err := vs.CountActiveVideos(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVideoStore_GetVideoNotFound(t *testing.T) {
	vs := NewVideoStore(testStore(t))
	_, err := vs.GetVideo(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVideoStore_InsertTagsIgnoresExistingPairs(t *testing.T) {
	store := testStore(t)
	ts := NewTaxonomyStore(store)
	vs := NewVideoStore(store)
	ctx := context.Background()

	require.NoError(t, ts.ReplaceTaxonomy(ctx, seedSpecs()))
	videoID, _, err := vs.InsertVideo(ctx, &models.Video{ExternalID: "yt-1", Title: "x"})
	require.NoError(t, err)

	tags := []models.VideoTechniqueTag{
		{VideoID: videoID, TaxonomyID: 2, Relevance: models.RelevanceSecondary},
		{VideoID: videoID, TaxonomyID: 3, Relevance: models.RelevancePrimary},
	}
	n, err := vs.InsertTags(ctx, tags)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same pairs with a different relevance must not overwrite.
	tags[0].Relevance = models.RelevancePrimary
	n, err = vs.InsertTags(ctx, tags)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stored, err := vs.TagsForVideo(ctx, videoID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, models.RelevanceSecondary, stored[0].Relevance)
}

func TestVideoStore_CountsOnlyActiveVideos(t *testing.T) {
	store := testStore(t)
	ts := NewTaxonomyStore(store)
	vs := NewVideoStore(store)
	ctx := context.Background()

	require.NoError(t, ts.ReplaceTaxonomy(ctx, seedSpecs()))

	var ids []int64
	for _, ext := range []string{"a", "b", "c"} {
		id, _, err := vs.InsertVideo(ctx, &models.Video{ExternalID: ext, Title: ext, Channel: "Coach A"})
		require.NoError(t, err)
		ids = append(ids, id)
		_, err = vs.InsertTags(ctx, []models.VideoTechniqueTag{{VideoID: id, TaxonomyID: 3, Relevance: models.RelevancePrimary}})
		require.NoError(t, err)
	}
	require.NoError(t, vs.SetVideoStatus(ctx, ids[2], models.VideoStatusSuperseded))
	assert.ErrorIs(t, vs.SetVideoStatus(ctx, 999, models.VideoStatusInactive), ErrNotFound)

	byTaxonomy, err := vs.CountActiveByTaxonomy(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{3: 2}, byTaxonomy)

	byChannel, err := vs.CountActiveByChannel(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Coach A": 2}, byChannel)

	untagged, err := vs.ListVideosForTagging(ctx, true, 0)
	require.NoError(t, err)
	assert.Empty(t, untagged)

	all, err := vs.ListVideosForTagging(ctx, false, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInstructorStore_ManualOverride(t *testing.T) {
	is := NewInstructorStore(testStore(t))
	ctx := context.Background()

	require.NoError(t, is.EnsureInstructor(ctx, "Coach A", "UC1"))
	require.NoError(t, is.EnsureInstructor(ctx, "Coach A", "UC-other"))

	got, err := is.GetInstructor(ctx, "Coach A")
	require.NoError(t, err)
	assert.Equal(t, "UC1", got.ExternalChannelRef)

	require.NoError(t, is.SetManualPriority(ctx, "Coach A", 99, true))
	got, err = is.GetInstructor(ctx, "Coach A")
	require.NoError(t, err)
	assert.True(t, got.ManualOverride)
	assert.InDelta(t, 99, got.PriorityScore, 1e-9)

	got.SubscriberCount = 1000
	got.VideoCount = 7
	require.NoError(t, is.SaveCredibility(ctx, got))

	list, err := is.ListInstructors(ctx, []string{"Coach A"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].ManualOverride)
	assert.Equal(t, int64(1000), list[0].SubscriberCount)

	assert.ErrorIs(t, is.SetManualPriority(ctx, "nobody", 1, true), ErrNotFound)
}

func TestInstructorStore_SaveCredibilityKeepsPinLandedAfterRead(t *testing.T) {
	is := NewInstructorStore(testStore(t))
	ctx := context.Background()

	require.NoError(t, is.EnsureInstructor(ctx, "Coach B", "UC2"))
	stale, err := is.GetInstructor(ctx, "Coach B")
	require.NoError(t, err)
	require.False(t, stale.ManualOverride)

	require.NoError(t, is.SetManualPriority(ctx, "Coach B", 42, true))

	stale.SubscriberCount = 500
	stale.VideoCount = 3
	stale.PriorityScore = 28.5
	require.NoError(t, is.SaveCredibility(ctx, stale))

	got, err := is.GetInstructor(ctx, "Coach B")
	require.NoError(t, err)
	assert.True(t, got.ManualOverride)
	assert.InDelta(t, 42, got.PriorityScore, 1e-9)
	assert.Equal(t, int64(500), got.SubscriberCount)
	assert.Equal(t, 3, got.VideoCount)

	require.NoError(t, is.SetManualPriority(ctx, "Coach B", 0, false))
	got.PriorityScore = 28.5
	require.NoError(t, is.SaveCredibility(ctx, got))
	got, err = is.GetInstructor(ctx, "Coach B")
	require.NoError(t, err)
	assert.InDelta(t, 28.5, got.PriorityScore, 1e-9)
}

func TestFeedbackStore_SignalsAndProfiles(t *testing.T) {
	store := testStore(t)
	vs := NewVideoStore(store)
	fs := NewFeedbackStore(store)
	ctx := context.Background()

	videoID, _, err := vs.InsertVideo(ctx, &models.Video{ExternalID: "v1", Title: "t", Channel: "Coach A", DurationSeconds: 600})
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := fs.RecordFeedback(ctx, &models.UserFeedback{
			UserID:    "u1",
			VideoID:   videoID,
			Helpful:   i%2 == 0,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err = fs.RecordFeedback(ctx, &models.UserFeedback{UserID: "u0", VideoID: videoID, CreatedAt: base.Add(-40 * 24 * time.Hour)})
	require.NoError(t, err)

	signals, err := fs.RecentSignals(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.True(t, signals[0].CreatedAt.After(signals[1].CreatedAt))
	assert.Equal(t, "Coach A", signals[0].Channel)
	assert.Equal(t, 600, signals[0].DurationSeconds)
	assert.True(t, signals[0].Helpful)

	users, err := fs.UsersWithFeedbackSince(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)

	_, err = fs.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	lo, hi := 5, 15
	require.NoError(t, fs.UpsertProfile(ctx, "u1", models.ProfileUpdate{Instructors: []string{"Coach A"}, LengthMin: &lo, LengthMax: &hi}))

	// Without a length window the stored bounds stay.
	require.NoError(t, fs.UpsertProfile(ctx, "u1", models.ProfileUpdate{Instructors: []string{"Coach B", "Coach A"}}))

	p, err := fs.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Coach B", "Coach A"}, []string(p.PreferredInstructors))
	assert.Equal(t, 5, p.PreferredLengthMin)
	assert.Equal(t, 15, p.PreferredLengthMax)
}
