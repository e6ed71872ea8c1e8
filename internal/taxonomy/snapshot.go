// Package taxonomy provides the technique taxonomy read path: an immutable
// snapshot of the tree, a TTL cache around it, and the administrative load path.
package taxonomy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/thebtf/dojo/pkg/models"
)

// ErrInvalidTaxonomy is returned when a node set violates the tree invariants.
var ErrInvalidTaxonomy = errors.New("invalid taxonomy")

// Snapshot is a read-only view of the taxonomy tree.
type Snapshot struct {
	byID    map[int64]*models.TaxonomyNode
	bySlug  map[string]*models.TaxonomyNode
	byLevel map[int][]*models.TaxonomyNode
	nodes   []*models.TaxonomyNode
}

// NewSnapshot validates nodes and indexes them.
func NewSnapshot(nodes []models.TaxonomyNode) (*Snapshot, error) {
	s := &Snapshot{
		byID:    make(map[int64]*models.TaxonomyNode, len(nodes)),
		bySlug:  make(map[string]*models.TaxonomyNode, len(nodes)),
		byLevel: make(map[int][]*models.TaxonomyNode, models.MaxTaxonomyDepth),
		nodes:   make([]*models.TaxonomyNode, 0, len(nodes)),
	}

	for i := range nodes {
		n := nodes[i]
		if _, dup := s.byID[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %d", ErrInvalidTaxonomy, n.ID)
		}
		if _, dup := s.bySlug[n.Slug]; dup {
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrInvalidTaxonomy, n.Slug)
		}
		s.byID[n.ID] = &n
		s.bySlug[n.Slug] = &n
		s.nodes = append(s.nodes, &n)
	}

	sort.Slice(s.nodes, func(i, j int) bool { return s.nodes[i].ID < s.nodes[j].ID })

	for _, n := range s.nodes {
		if err := s.checkNode(n); err != nil {
			return nil, err
		}
		s.byLevel[n.Level] = append(s.byLevel[n.Level], n)
	}

	return s, nil
}

// checkNode enforces level bounds and parent links, and that the ancestor
// chain reaches a root within MaxTaxonomyDepth hops.
func (s *Snapshot) checkNode(n *models.TaxonomyNode) error {
	if n.Level < models.LevelCategory || n.Level > models.LevelTechnique {
		return fmt.Errorf("%w: node %q has level %d", ErrInvalidTaxonomy, n.Slug, n.Level)
	}
	if n.Level == models.LevelCategory {
		if n.ParentID.Valid {
			return fmt.Errorf("%w: root node %q has a parent", ErrInvalidTaxonomy, n.Slug)
		}
		return nil
	}
	if !n.ParentID.Valid {
		return fmt.Errorf("%w: level %d node %q has no parent", ErrInvalidTaxonomy, n.Level, n.Slug)
	}

	cur := n
	for hops := 0; ; hops++ {
		if cur.Level == models.LevelCategory {
			return nil
		}
		if hops >= models.MaxTaxonomyDepth {
			return fmt.Errorf("%w: node %q does not reach a root within %d hops", ErrInvalidTaxonomy, n.Slug, models.MaxTaxonomyDepth)
		}
		parent, ok := s.byID[cur.ParentID.Int64]
		if !ok {
			return fmt.Errorf("%w: node %q references missing parent %d", ErrInvalidTaxonomy, cur.Slug, cur.ParentID.Int64)
		}
		if parent.Level != cur.Level-1 {
			return fmt.Errorf("%w: node %q (level %d) has parent %q at level %d", ErrInvalidTaxonomy, cur.Slug, cur.Level, parent.Slug, parent.Level)
		}
		cur = parent
	}
}

// Len returns the number of nodes.
func (s *Snapshot) Len() int { return len(s.nodes) }

// Nodes returns all nodes ordered by id.
func (s *Snapshot) Nodes() []*models.TaxonomyNode { return s.nodes }

// Node looks a node up by id.
func (s *Snapshot) Node(id int64) (*models.TaxonomyNode, bool) {
	n, ok := s.byID[id]
	return n, ok
}

// BySlug looks a node up by slug.
func (s *Snapshot) BySlug(slug string) (*models.TaxonomyNode, bool) {
	n, ok := s.bySlug[slug]
	return n, ok
}

// ByName finds a node by case-insensitive name or slug.
func (s *Snapshot) ByName(name string) (*models.TaxonomyNode, bool) {
	name = strings.TrimSpace(name)
	if n, ok := s.bySlug[strings.ToLower(name)]; ok {
		return n, true
	}
	for _, n := range s.nodes {
		if strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return nil, false
}

// Level returns the nodes at the given level ordered by id.
func (s *Snapshot) Level(level int) []*models.TaxonomyNode {
	return s.byLevel[level]
}

// Ancestors returns the parent chain of id, nearest first, ending at the root.
func (s *Snapshot) Ancestors(id int64) []*models.TaxonomyNode {
	n, ok := s.byID[id]
	if !ok {
		return nil
	}
	var chain []*models.TaxonomyNode
	for hops := 0; n.ParentID.Valid && hops < models.MaxTaxonomyDepth; hops++ {
		parent, ok := s.byID[n.ParentID.Int64]
		if !ok {
			break
		}
		chain = append(chain, parent)
		n = parent
	}
	return chain
}

// Root returns the level-1 ancestor of id, or the node itself when it is a root.
func (s *Snapshot) Root(id int64) (*models.TaxonomyNode, bool) {
	n, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	if n.Level == models.LevelCategory {
		return n, true
	}
	chain := s.Ancestors(id)
	if len(chain) == 0 {
		return nil, false
	}
	root := chain[len(chain)-1]
	return root, root.Level == models.LevelCategory
}
