package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/dojo/pkg/models"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedNode is one node of a YAML taxonomy document. Levels come from nesting depth.
type SeedNode struct {
	Slug     string     `yaml:"slug"`
	Name     string     `yaml:"name"`
	Children []SeedNode `yaml:"children,omitempty"`
}

// Seed is a whole taxonomy document.
type Seed struct {
	Taxonomy []SeedNode `yaml:"taxonomy"`
}

// ParseSeed decodes a YAML taxonomy document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse taxonomy seed: %w", err)
	}
	if len(seed.Taxonomy) == 0 {
		return nil, fmt.Errorf("%w: seed has no nodes", ErrInvalidTaxonomy)
	}
	return &seed, nil
}

// ReadSeedFile parses the YAML taxonomy document at path.
func ReadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy seed: %w", err)
	}
	return ParseSeed(data)
}

// DefaultSeed returns the built-in taxonomy.
func DefaultSeed() *Seed {
	seed, err := ParseSeed(defaultSeed)
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy seed is invalid: %v", err))
	}
	return seed
}

// Specs flattens the document into parent-first node specs.
func (s *Seed) Specs() []models.TaxonomyNodeSpec {
	var specs []models.TaxonomyNodeSpec
	var walk func(nodes []SeedNode, parent string, level int)
	walk = func(nodes []SeedNode, parent string, level int) {
		for _, n := range nodes {
			specs = append(specs, models.TaxonomyNodeSpec{
				Slug:       strings.TrimSpace(n.Slug),
				Name:       strings.TrimSpace(n.Name),
				ParentSlug: parent,
				Level:      level,
			})
			walk(n.Children, strings.TrimSpace(n.Slug), level+1)
		}
	}
	walk(s.Taxonomy, "", models.LevelCategory)
	return specs
}

// ValidateSpecs checks a bulk load before it is written.
func ValidateSpecs(specs []models.TaxonomyNodeSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("%w: no nodes", ErrInvalidTaxonomy)
	}

	levels := make(map[string]int, len(specs))
	for _, sp := range specs {
		if sp.Slug == "" || sp.Name == "" {
			return fmt.Errorf("%w: node with empty slug or name", ErrInvalidTaxonomy)
		}
		if _, dup := levels[sp.Slug]; dup {
			return fmt.Errorf("%w: duplicate slug %q", ErrInvalidTaxonomy, sp.Slug)
		}
		if sp.Level < models.LevelCategory || sp.Level > models.LevelTechnique {
			return fmt.Errorf("%w: node %q has level %d", ErrInvalidTaxonomy, sp.Slug, sp.Level)
		}
		levels[sp.Slug] = sp.Level
	}

	for _, sp := range specs {
		if sp.Level == models.LevelCategory {
			if sp.ParentSlug != "" {
				return fmt.Errorf("%w: root node %q has a parent", ErrInvalidTaxonomy, sp.Slug)
			}
			continue
		}
		parentLevel, ok := levels[sp.ParentSlug]
		if !ok {
			return fmt.Errorf("%w: node %q references unknown parent %q", ErrInvalidTaxonomy, sp.Slug, sp.ParentSlug)
		}
		if parentLevel != sp.Level-1 {
			return fmt.Errorf("%w: node %q (level %d) has parent %q at level %d", ErrInvalidTaxonomy, sp.Slug, sp.Level, sp.ParentSlug, parentLevel)
		}
	}
	return nil
}

// BuildNodes assigns sequential ids to specs and resolves parent links.
// It is used for in-memory taxonomies; persistent stores assign their own ids.
func BuildNodes(specs []models.TaxonomyNodeSpec) ([]models.TaxonomyNode, error) {
	if err := ValidateSpecs(specs); err != nil {
		return nil, err
	}

	ids := make(map[string]int64, len(specs))
	for i, sp := range specs {
		ids[sp.Slug] = int64(i + 1)
	}

	nodes := make([]models.TaxonomyNode, 0, len(specs))
	for _, sp := range specs {
		n := models.TaxonomyNode{
			ID:    ids[sp.Slug],
			Name:  sp.Name,
			Slug:  sp.Slug,
			Level: sp.Level,
		}
		if sp.ParentSlug != "" {
			n.ParentID.Int64 = ids[sp.ParentSlug]
			n.ParentID.Valid = true
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
