package taxonomy

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/dojo/pkg/models"
)

func node(id int64, slug string, level int, parent int64) models.TaxonomyNode {
	n := models.TaxonomyNode{ID: id, Slug: slug, Name: slug, Level: level}
	if parent != 0 {
		n.ParentID = sql.NullInt64{Int64: parent, Valid: true}
	}
	return n
}

func testNodes() []models.TaxonomyNode {
	return []models.TaxonomyNode{
		node(1, "guard-play", 1, 0),
		node(2, "half-guard", 2, 1),
		node(3, "deep-half-guard-sweep", 3, 2),
		node(4, "submissions", 1, 0),
	}
}

func TestNewSnapshot_Indexes(t *testing.T) {
	snap, err := NewSnapshot(testNodes())
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Len())
	n, ok := snap.BySlug("half-guard")
	require.True(t, ok)
	assert.Equal(t, int64(2), n.ID)

	n, ok = snap.ByName("Deep-Half-Guard-Sweep")
	require.True(t, ok)
	assert.Equal(t, int64(3), n.ID)

	roots := snap.Level(models.LevelCategory)
	require.Len(t, roots, 2)
	assert.Equal(t, "guard-play", roots[0].Slug)
	assert.Equal(t, "submissions", roots[1].Slug)
}

func TestSnapshot_AncestorsAndRoot(t *testing.T) {
	snap, err := NewSnapshot(testNodes())
	require.NoError(t, err)

	chain := snap.Ancestors(3)
	require.Len(t, chain, 2)
	assert.Equal(t, "half-guard", chain[0].Slug)
	assert.Equal(t, "guard-play", chain[1].Slug)

	root, ok := snap.Root(3)
	require.True(t, ok)
	assert.Equal(t, "guard-play", root.Slug)

	root, ok = snap.Root(4)
	require.True(t, ok)
	assert.Equal(t, "submissions", root.Slug)

	assert.Empty(t, snap.Ancestors(1))
	_, ok = snap.Root(99)
	assert.False(t, ok)
}

func TestNewSnapshot_RejectsBrokenTrees(t *testing.T) {
	tests := []struct {
		name  string
		nodes []models.TaxonomyNode
	}{
		{"duplicate id", []models.TaxonomyNode{node(1, "a", 1, 0), node(1, "b", 1, 0)}},
		{"duplicate slug", []models.TaxonomyNode{node(1, "a", 1, 0), node(2, "a", 1, 0)}},
		{"level out of range", []models.TaxonomyNode{node(1, "a", 4, 0)}},
		{"root with parent", []models.TaxonomyNode{node(1, "a", 1, 0), node(2, "b", 1, 1)}},
		{"orphan level 2", []models.TaxonomyNode{node(1, "a", 2, 0)}},
		{"missing parent", []models.TaxonomyNode{node(1, "a", 1, 0), node(2, "b", 2, 7)}},
		{"level skip", []models.TaxonomyNode{node(1, "a", 1, 0), node(2, "b", 3, 1)}},
		{"cycle", []models.TaxonomyNode{node(1, "a", 2, 2), node(2, "b", 2, 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSnapshot(tt.nodes)
			assert.ErrorIs(t, err, ErrInvalidTaxonomy)
		})
	}
}
