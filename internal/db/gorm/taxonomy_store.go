package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/thebtf/dojo/pkg/models"
)

// TaxonomyStore provides taxonomy tree persistence.
type TaxonomyStore struct {
	store *Store
	db    *gorm.DB
}

// NewTaxonomyStore creates a new taxonomy store.
func NewTaxonomyStore(store *Store) *TaxonomyStore {
	return &TaxonomyStore{store: store, db: store.DB}
}

// ListTaxonomyNodes returns every node ordered by id.
func (s *TaxonomyStore) ListTaxonomyNodes(ctx context.Context) ([]models.TaxonomyNode, error) {
	var rows []TaxonomyNode
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	nodes := make([]models.TaxonomyNode, 0, len(rows))
	for i := range rows {
		nodes = append(nodes, rows[i].toModel())
	}
	return nodes, nil
}

// ReplaceTaxonomy makes the stored tree equal to specs in one transaction.
// Nodes are upserted by slug so ids of surviving nodes, and the tags that
// reference them, are kept. Nodes absent from specs are removed together
// with their tags. specs must be ordered parents first.
func (s *TaxonomyStore) ReplaceTaxonomy(ctx context.Context, specs []models.TaxonomyNodeSpec) error {
	ctx, cancel := s.store.WithTimeout(ctx, SlowQueryTimeout, "replace_taxonomy")
	defer cancel()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []TaxonomyNode
		if err := tx.Find(&existing).Error; err != nil {
			return err
		}
		bySlug := make(map[string]*TaxonomyNode, len(existing))
		for i := range existing {
			bySlug[existing[i].Slug] = &existing[i]
		}

		ids := make(map[string]int64, len(specs))
		for _, ns := range specs {
			var parentID int64
			if ns.ParentSlug != "" {
				pid, ok := ids[ns.ParentSlug]
				if !ok {
					return fmt.Errorf("taxonomy node %q: parent %q not written before child", ns.Slug, ns.ParentSlug)
				}
				parentID = pid
			}

			if row, ok := bySlug[ns.Slug]; ok {
				err := tx.Model(&TaxonomyNode{}).
					Where("id = ?", row.ID).
					Updates(map[string]any{
						"name":      ns.Name,
						"level":     ns.Level,
						"parent_id": sqlNullInt64(parentID),
					}).Error
				if err != nil {
					return fmt.Errorf("update taxonomy node %q: %w", ns.Slug, err)
				}
				ids[ns.Slug] = row.ID
				delete(bySlug, ns.Slug)
				continue
			}

			row := &TaxonomyNode{
				Name:     ns.Name,
				Slug:     ns.Slug,
				Level:    ns.Level,
				ParentID: sqlNullInt64(parentID),
			}
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("insert taxonomy node %q: %w", ns.Slug, err)
			}
			ids[ns.Slug] = row.ID
		}

		if len(bySlug) == 0 {
			return nil
		}
		stale := make([]int64, 0, len(bySlug))
		for _, row := range bySlug {
			stale = append(stale, row.ID)
		}
		if err := tx.Where("taxonomy_id IN ?", stale).Delete(&VideoTag{}).Error; err != nil {
			return fmt.Errorf("delete stale tags: %w", err)
		}
		return tx.Where("id IN ?", stale).Delete(&TaxonomyNode{}).Error
	})
}
