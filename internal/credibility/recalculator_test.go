package credibility

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/dojo/internal/catalog"
	"github.com/thebtf/dojo/pkg/models"
)

// MockInstructorStore is a mock implementation of InstructorStore for testing.
type MockInstructorStore struct {
	listErr     error
	saveErr     error
	saved       map[string]models.InstructorCredibility
	instructors []*models.InstructorCredibility
	mu          sync.Mutex
}

func (m *MockInstructorStore) ListInstructors(ctx context.Context, names []string) ([]*models.InstructorCredibility, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(names) == 0 {
		return m.instructors, nil
	}
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	var out []*models.InstructorCredibility
	for _, i := range m.instructors {
		if want[i.Name] {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *MockInstructorStore) SaveCredibility(ctx context.Context, c *models.InstructorCredibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.saved == nil {
		m.saved = make(map[string]models.InstructorCredibility)
	}
	m.saved[c.Name] = *c
	return nil
}

type mockCounter struct {
	counts map[string]int
	err    error
}

func (m mockCounter) CountActiveByChannel(ctx context.Context) (map[string]int, error) {
	return m.counts, m.err
}

type mockLookup struct {
	stats map[string]catalog.ChannelStats
	errs  map[string]error
	calls []string
}

func (m *mockLookup) ChannelStats(ctx context.Context, channelRef string) (catalog.ChannelStats, error) {
	m.calls = append(m.calls, channelRef)
	if err := m.errs[channelRef]; err != nil {
		return catalog.ChannelStats{}, err
	}
	return m.stats[channelRef], nil
}

func newRecalc(store *MockInstructorStore, counts map[string]int, lookup catalog.ChannelLookup) *Recalculator {
	return NewRecalculator(store, mockCounter{counts: counts}, lookup, DefaultWeights(), 0, zerolog.Nop())
}

func TestRecalculate_UpdatesCountsAndScore(t *testing.T) {
	store := &MockInstructorStore{instructors: []*models.InstructorCredibility{
		{ID: 1, Name: "Coach A", ExternalChannelRef: "UC-A"},
	}}
	lookup := &mockLookup{stats: map[string]catalog.ChannelStats{"UC-A": {Subscribers: 9999, Videos: 300}}}

	result, err := newRecalc(store, map[string]int{"Coach A": 12}, lookup).Recalculate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	saved := store.saved["Coach A"]
	assert.Equal(t, int64(9999), saved.SubscriberCount)
	assert.Equal(t, 12, saved.VideoCount)
	assert.InDelta(t, 40+6, saved.PriorityScore, 1e-9)
}

func TestRecalculate_PreservesManualOverride(t *testing.T) {
	store := &MockInstructorStore{instructors: []*models.InstructorCredibility{
		{ID: 1, Name: "Pinned", ExternalChannelRef: "UC-P", PriorityScore: 99, ManualOverride: true},
	}}
	lookup := &mockLookup{stats: map[string]catalog.ChannelStats{"UC-P": {Subscribers: 9}}}

	_, err := newRecalc(store, map[string]int{"Pinned": 4}, lookup).Recalculate(context.Background(), nil)
	require.NoError(t, err)

	saved := store.saved["Pinned"]
	assert.InDelta(t, 99, saved.PriorityScore, 1e-9)
	assert.True(t, saved.ManualOverride)
	assert.Equal(t, int64(9), saved.SubscriberCount)
	assert.Equal(t, 4, saved.VideoCount)
}

func TestRecalculate_NotFoundKeepsSubscribers(t *testing.T) {
	store := &MockInstructorStore{instructors: []*models.InstructorCredibility{
		{ID: 1, Name: "Gone", ExternalChannelRef: "UC-G", SubscriberCount: 99},
	}}
	lookup := &mockLookup{errs: map[string]error{"UC-G": catalog.ErrNotFound}}

	result, err := newRecalc(store, nil, lookup).Recalculate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, int64(99), store.saved["Gone"].SubscriberCount)
	assert.InDelta(t, 20, store.saved["Gone"].PriorityScore, 1e-9)
}

func TestRecalculate_QuotaHaltsRun(t *testing.T) {
	store := &MockInstructorStore{instructors: []*models.InstructorCredibility{
		{ID: 1, Name: "A", ExternalChannelRef: "UC-A"},
		{ID: 2, Name: "B", ExternalChannelRef: "UC-B"},
		{ID: 3, Name: "C", ExternalChannelRef: "UC-C"},
	}}
	lookup := &mockLookup{errs: map[string]error{"UC-B": catalog.ErrQuotaExhausted}}

	result, err := newRecalc(store, nil, lookup).Recalculate(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Halted)
	assert.Equal(t, []string{"UC-A", "UC-B"}, lookup.calls)
	assert.Len(t, store.saved, 1)
}

func TestRecalculate_TransientErrorContinues(t *testing.T) {
	store := &MockInstructorStore{instructors: []*models.InstructorCredibility{
		{ID: 1, Name: "A", ExternalChannelRef: "UC-A"},
		{ID: 2, Name: "B", ExternalChannelRef: "UC-B"},
	}}
	lookup := &mockLookup{errs: map[string]error{"UC-A": errors.New("timeout")}}

	result, err := newRecalc(store, nil, lookup).Recalculate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Succeeded)
	assert.Contains(t, store.saved, "B")
}

func TestRecalculate_WithoutLookupOrChannel(t *testing.T) {
	store := &MockInstructorStore{instructors: []*models.InstructorCredibility{
		{ID: 1, Name: "Local", SubscriberCount: 0},
	}}
	result, err := newRecalc(store, map[string]int{"Local": 60}, nil).Recalculate(context.Background(), []string{"Local"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.InDelta(t, 25, store.saved["Local"].PriorityScore, 1e-9)
}

func TestRecalculate_StoreErrors(t *testing.T) {
	_, err := newRecalc(&MockInstructorStore{listErr: errors.New("db")}, nil, nil).Recalculate(context.Background(), nil)
	assert.Error(t, err)

	r := NewRecalculator(&MockInstructorStore{}, mockCounter{err: errors.New("db")}, nil, DefaultWeights(), time.Millisecond, zerolog.Nop())
	_, err = r.Recalculate(context.Background(), nil)
	assert.Error(t, err)

	store := &MockInstructorStore{saveErr: errors.New("write"), instructors: []*models.InstructorCredibility{{ID: 1, Name: "A"}}}
	result, err := newRecalc(store, nil, nil).Recalculate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
}
