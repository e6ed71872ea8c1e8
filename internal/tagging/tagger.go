package tagging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/thebtf/dojo/internal/batch"
	"github.com/thebtf/dojo/internal/taxonomy"
	"github.com/thebtf/dojo/pkg/models"
	"github.com/thebtf/dojo/pkg/similarity"
)

// ErrNoFallbackNode is returned when nothing matched and the taxonomy has no
// node to fall back to.
var ErrNoFallbackNode = errors.New("no fallback taxonomy node")

// TaxonomySource returns the current taxonomy snapshot.
type TaxonomySource interface {
	Get(ctx context.Context) (*taxonomy.Snapshot, error)
}

// TagStore persists tag rows. Existing (video, taxonomy) pairs are left as-is.
type TagStore interface {
	InsertTags(ctx context.Context, tags []models.VideoTechniqueTag) (int, error)
}

// Config holds the tagger tunables.
type Config struct {
	// FallbackSlug is assigned when no rule matched.
	FallbackSlug string `json:"fallback_slug"`
	// Weights are the fuzzy match rule weights.
	Weights similarity.Weights `json:"weights"`
	// NameThreshold is the minimum fuzzy score for a name match.
	NameThreshold float64 `json:"name_threshold"`
	// MaxNameMatches caps name matches kept per level.
	MaxNameMatches int `json:"max_name_matches"`
}

// DefaultConfig returns the hand-tuned defaults.
func DefaultConfig() Config {
	return Config{
		FallbackSlug:   "fundamentals",
		Weights:        similarity.DefaultWeights(),
		NameThreshold:  0.6,
		MaxNameMatches: 3,
	}
}

// Input is the free text the tagger reads from a video.
type Input struct {
	Title         string
	TechniqueName string
	Position      string
	TechniqueType string
}

// InputFromVideo extracts tagger input from a video.
func InputFromVideo(v *models.Video) Input {
	return Input{
		Title:         v.Title,
		TechniqueName: v.TechniqueName,
		Position:      v.Position,
		TechniqueType: v.TechniqueType,
	}
}

// Tagger classifies videos against the taxonomy.
type Tagger struct {
	source TaxonomySource
	store  TagStore
	rules  *Rules
	log    zerolog.Logger
	cfg    Config
}

// NewTagger creates a tagger. A nil rules value uses DefaultRules.
func NewTagger(source TaxonomySource, store TagStore, rules *Rules, cfg Config, log zerolog.Logger) *Tagger {
	if rules == nil {
		rules = DefaultRules()
	}
	if cfg.MaxNameMatches <= 0 {
		cfg.MaxNameMatches = DefaultConfig().MaxNameMatches
	}
	return &Tagger{
		source: source,
		store:  store,
		rules:  rules,
		cfg:    cfg,
		log:    log.With().Str("component", "tagger").Logger(),
	}
}

// matchSet collects assignments in insertion order; the first provenance wins.
type matchSet struct {
	index map[int64]int
	items []models.TagAssignment
}

func newMatchSet() *matchSet {
	return &matchSet{index: make(map[int64]int)}
}

func (m *matchSet) add(n *models.TaxonomyNode, prov models.Provenance, score float64) {
	if _, ok := m.index[n.ID]; ok {
		return
	}
	m.index[n.ID] = len(m.items)
	m.items = append(m.items, models.TagAssignment{
		TaxonomyID: n.ID,
		Slug:       n.Slug,
		Level:      n.Level,
		Provenance: prov,
		Score:      score,
	})
}

// addWithAncestors adds n and every node above it.
func (m *matchSet) addWithAncestors(snap *taxonomy.Snapshot, n *models.TaxonomyNode, prov models.Provenance, score float64) {
	m.add(n, prov, score)
	for _, a := range snap.Ancestors(n.ID) {
		m.add(a, prov, 0)
	}
}

// Classify returns the taxonomy assignments for in. It is a pure function of
// the snapshot, the rules, and the input text.
func (t *Tagger) Classify(snap *taxonomy.Snapshot, in Input) ([]models.TagAssignment, error) {
	matches := newMatchSet()

	// 1. Position detection over the combined text
	combined := strings.ToLower(strings.Join([]string{in.Title, in.TechniqueName, in.Position}, " "))
	for _, slug := range t.rules.PositionSlugs(combined) {
		if n, ok := snap.BySlug(slug); ok {
			matches.addWithAncestors(snap, n, models.ProvenancePositionDetect, 0)
		}
	}

	// 2. Technique-type mapping to level-1 categories
	for _, slug := range t.rules.TypeSlugs(in.TechniqueType) {
		if n, ok := snap.BySlug(slug); ok {
			matches.add(n, models.ProvenanceTypeMap, 0)
		}
	}

	// 3. Fuzzy name match on the technique name: level 3 first, level 2 when
	// nothing clears the threshold
	found := t.nameMatches(snap, in.TechniqueName, models.LevelTechnique)
	if len(found) == 0 {
		found = t.nameMatches(snap, in.TechniqueName, models.LevelPosition)
	}
	for _, f := range found {
		matches.addWithAncestors(snap, f.node, models.ProvenanceNameMatch, f.score)
	}

	// 4. Fallback so every video carries at least one node
	if len(matches.items) == 0 {
		fallback, err := t.fallbackNode(snap)
		if err != nil {
			return nil, err
		}
		matches.add(fallback, models.ProvenanceFallback, 0)
	}

	// 5. Relevance: roots are secondary when anything else matched
	multi := len(matches.items) > 1
	for i := range matches.items {
		if multi && matches.items[i].Level == models.LevelCategory {
			matches.items[i].Relevance = models.RelevanceSecondary
		} else {
			matches.items[i].Relevance = models.RelevancePrimary
		}
	}

	return matches.items, nil
}

type scoredNode struct {
	node  *models.TaxonomyNode
	score float64
}

func (t *Tagger) nameMatches(snap *taxonomy.Snapshot, name string, level int) []scoredNode {
	var found []scoredNode
	for _, n := range snap.Level(level) {
		score := similarity.ScoreWith(t.cfg.Weights, name, n.Name)
		if score >= t.cfg.NameThreshold {
			found = append(found, scoredNode{node: n, score: score})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].score != found[j].score {
			return found[i].score > found[j].score
		}
		return found[i].node.ID < found[j].node.ID
	})
	if len(found) > t.cfg.MaxNameMatches {
		found = found[:t.cfg.MaxNameMatches]
	}
	return found
}

func (t *Tagger) fallbackNode(snap *taxonomy.Snapshot) (*models.TaxonomyNode, error) {
	if n, ok := snap.BySlug(t.cfg.FallbackSlug); ok {
		return n, nil
	}
	// Configured fallback missing: use the first root so the guarantee holds.
	if roots := snap.Level(models.LevelCategory); len(roots) > 0 {
		t.log.Warn().Str("slug", t.cfg.FallbackSlug).Str("using", roots[0].Slug).Msg("Fallback taxonomy node not found")
		return roots[0], nil
	}
	return nil, ErrNoFallbackNode
}

// TagVideo classifies v and persists its tags idempotently.
func (t *Tagger) TagVideo(ctx context.Context, v *models.Video) ([]models.TagAssignment, error) {
	snap, err := t.source.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	assignments, err := t.Classify(snap, InputFromVideo(v))
	if err != nil {
		return nil, err
	}

	tags := make([]models.VideoTechniqueTag, 0, len(assignments))
	for _, a := range assignments {
		tags = append(tags, models.VideoTechniqueTag{
			VideoID:    v.ID,
			TaxonomyID: a.TaxonomyID,
			Relevance:  a.Relevance,
		})
	}

	inserted, err := t.store.InsertTags(ctx, tags)
	if err != nil {
		return nil, fmt.Errorf("insert tags for video %d: %w", v.ID, err)
	}

	t.log.Debug().
		Int64("video_id", v.ID).
		Int("assigned", len(assignments)).
		Int("inserted", inserted).
		Interface("assignments", assignments).
		Msg("Video tagged")

	return assignments, nil
}

// Backfill tags every video in videos. A failure on one video is recorded and
// the batch continues.
func (t *Tagger) Backfill(ctx context.Context, exec *batch.Executor, videos []*models.Video) *batch.Result {
	key := func(v *models.Video) string { return strconv.FormatInt(v.ID, 10) }

	result := batch.Run(ctx, exec, videos, key, func(ctx context.Context, v *models.Video) batch.Outcome {
		if _, err := t.TagVideo(ctx, v); err != nil {
			return batch.Failed(err)
		}
		return batch.Succeeded()
	})

	t.log.Info().
		Int("videos", len(videos)).
		Int("tagged", result.Succeeded).
		Int("errors", result.Failed).
		Msg("Tag backfill complete")

	return result
}
