package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/dojo/pkg/models"
)

// InstructorStore provides instructor credibility persistence.
type InstructorStore struct {
	db *gorm.DB
}

// NewInstructorStore creates a new instructor store.
func NewInstructorStore(store *Store) *InstructorStore {
	return &InstructorStore{db: store.DB}
}

// EnsureInstructor creates an instructor row if none exists for name.
func (s *InstructorStore) EnsureInstructor(ctx context.Context, name, channelRef string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&Instructor{Name: name, ExternalChannelRef: channelRef}).Error
}

// ListInstructors returns every instructor ordered by name.
// A non-empty names list restricts the result to those instructors.
func (s *InstructorStore) ListInstructors(ctx context.Context, names []string) ([]*models.InstructorCredibility, error) {
	query := s.db.WithContext(ctx).Order("name ASC")
	if len(names) > 0 {
		query = query.Where("name IN ?", names)
	}

	var rows []Instructor
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.InstructorCredibility, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// GetInstructor returns an instructor by name.
func (s *InstructorStore) GetInstructor(ctx context.Context, name string) (*models.InstructorCredibility, error) {
	var row Instructor
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// SaveCredibility writes recalculated aggregates for an instructor.
// The manual override flag is never written here, and a pinned priority score
// is kept even when the pin landed after c was read.
func (s *InstructorStore) SaveCredibility(ctx context.Context, c *models.InstructorCredibility) error {
	result := s.db.WithContext(ctx).
		Model(&Instructor{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{
			"external_channel_ref": c.ExternalChannelRef,
			"subscriber_count":     c.SubscriberCount,
			"video_count":          c.VideoCount,
			"priority_score":       gorm.Expr("CASE WHEN manual_override THEN priority_score ELSE ? END", c.PriorityScore),
			"updated_at_epoch":     time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetManualPriority pins an instructor's priority score so recalculation keeps it.
// Passing override=false releases the pin and leaves the score as is.
func (s *InstructorStore) SetManualPriority(ctx context.Context, name string, score float64, override bool) error {
	updates := map[string]any{
		"manual_override":  override,
		"updated_at_epoch": time.Now().UnixMilli(),
	}
	if override {
		updates["priority_score"] = score
	}

	result := s.db.WithContext(ctx).
		Model(&Instructor{}).
		Where("name = ?", name).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
