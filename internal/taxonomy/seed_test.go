package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/dojo/pkg/models"
)

func TestDefaultSeed_BuildsValidSnapshot(t *testing.T) {
	specs := DefaultSeed().Specs()
	require.NoError(t, ValidateSpecs(specs))

	nodes, err := BuildNodes(specs)
	require.NoError(t, err)
	snap, err := NewSnapshot(nodes)
	require.NoError(t, err)

	for _, slug := range []string{"fundamentals", "guard-play", "half-guard", "leg-locks", "deep-half-guard-sweep"} {
		_, ok := snap.BySlug(slug)
		assert.True(t, ok, slug)
	}
	assert.NotEmpty(t, snap.Level(models.LevelTechnique))
}

func TestParseSeed_LevelsFollowNesting(t *testing.T) {
	seed, err := ParseSeed([]byte(`
taxonomy:
  - slug: guard-play
    name: Guard Play
    children:
      - slug: half-guard
        name: Half Guard
        children:
          - slug: lockdown
            name: Lockdown
  - slug: submissions
    name: Submissions
`))
	require.NoError(t, err)

	assert.Equal(t, []models.TaxonomyNodeSpec{
		{Slug: "guard-play", Name: "Guard Play", Level: 1},
		{Slug: "half-guard", Name: "Half Guard", ParentSlug: "guard-play", Level: 2},
		{Slug: "lockdown", Name: "Lockdown", ParentSlug: "half-guard", Level: 3},
		{Slug: "submissions", Name: "Submissions", Level: 1},
	}, seed.Specs())
}

func TestParseSeed_Errors(t *testing.T) {
	_, err := ParseSeed([]byte("taxonomy: ["))
	assert.Error(t, err)

	_, err = ParseSeed([]byte("taxonomy: []"))
	assert.ErrorIs(t, err, ErrInvalidTaxonomy)
}

func TestValidateSpecs(t *testing.T) {
	tests := []struct {
		name  string
		specs []models.TaxonomyNodeSpec
		ok    bool
	}{
		{"empty", nil, false},
		{"valid", []models.TaxonomyNodeSpec{{Slug: "a", Name: "A", Level: 1}, {Slug: "b", Name: "B", Level: 2, ParentSlug: "a"}}, true},
		{"missing name", []models.TaxonomyNodeSpec{{Slug: "a", Level: 1}}, false},
		{"duplicate slug", []models.TaxonomyNodeSpec{{Slug: "a", Name: "A", Level: 1}, {Slug: "a", Name: "A2", Level: 1}}, false},
		{"too deep", []models.TaxonomyNodeSpec{{Slug: "a", Name: "A", Level: 4}}, false},
		{"root with parent", []models.TaxonomyNodeSpec{{Slug: "a", Name: "A", Level: 1}, {Slug: "b", Name: "B", Level: 1, ParentSlug: "a"}}, false},
		{"unknown parent", []models.TaxonomyNodeSpec{{Slug: "b", Name: "B", Level: 2, ParentSlug: "a"}}, false},
		{"parent level mismatch", []models.TaxonomyNodeSpec{{Slug: "a", Name: "A", Level: 1}, {Slug: "c", Name: "C", Level: 3, ParentSlug: "a"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSpecs(tt.specs)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTaxonomy)
			}
		})
	}
}
