package models

import "database/sql"

// Taxonomy levels. Level 1 nodes are roots; every other node hangs off a node
// exactly one level above it.
const (
	LevelCategory  = 1
	LevelPosition  = 2
	LevelTechnique = 3

	// MaxTaxonomyDepth bounds the ancestor walk from any node to its root.
	MaxTaxonomyDepth = 3
)

// TaxonomyNode is one entry in the technique classification tree.
type TaxonomyNode struct {
	Name     string        `json:"name"`
	Slug     string        `json:"slug"`
	ParentID sql.NullInt64 `json:"parent_id"`
	ID       int64         `json:"id"`
	Level    int           `json:"level"`
}

// IsRoot reports whether the node is a level-1 category.
func (n *TaxonomyNode) IsRoot() bool {
	return n.Level == LevelCategory && !n.ParentID.Valid
}

// TaxonomyNodeSpec describes a node for bulk load. Parents are referenced by
// slug so a whole tree can be written before ids are known.
type TaxonomyNodeSpec struct {
	Slug       string `json:"slug" yaml:"slug"`
	Name       string `json:"name" yaml:"name"`
	ParentSlug string `json:"parent_slug,omitempty" yaml:"parent_slug,omitempty"`
	Level      int    `json:"level" yaml:"level"`
}
