package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/dojo/pkg/models"
)

// FeedbackStore provides user feedback and derived profile persistence.
type FeedbackStore struct {
	db *gorm.DB
}

// NewFeedbackStore creates a new feedback store.
func NewFeedbackStore(store *Store) *FeedbackStore {
	return &FeedbackStore{db: store.DB}
}

// RecordFeedback appends a feedback row and returns its id.
func (s *FeedbackStore) RecordFeedback(ctx context.Context, f *models.UserFeedback) (int64, error) {
	row := &UserFeedback{
		UserID:         f.UserID,
		VideoID:        f.VideoID,
		Helpful:        f.Helpful,
		Category:       f.Category,
		CreatedAtEpoch: epochOrZero(f.CreatedAt),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

// RecentSignals returns up to limit feedback rows of a user, newest first,
// joined with the rated video's channel and duration.
func (s *FeedbackStore) RecentSignals(ctx context.Context, userID string, limit int) ([]models.FeedbackSignal, error) {
	type row struct {
		Channel         string
		VideoID         int64
		DurationSeconds int
		CreatedAtEpoch  int64
		Helpful         bool
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Table("user_feedback AS f").
		Select("f.video_id AS video_id, f.helpful AS helpful, f.created_at_epoch AS created_at_epoch, v.channel AS channel, v.duration_seconds AS duration_seconds").
		Joins("JOIN videos v ON v.id = f.video_id").
		Where("f.user_id = ?", userID).
		Order("f.created_at_epoch DESC, f.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	signals := make([]models.FeedbackSignal, 0, len(rows))
	for _, r := range rows {
		signals = append(signals, models.FeedbackSignal{
			VideoID:         r.VideoID,
			Helpful:         r.Helpful,
			Channel:         r.Channel,
			DurationSeconds: r.DurationSeconds,
			CreatedAt:       time.UnixMilli(r.CreatedAtEpoch),
		})
	}
	return signals, nil
}

// UsersWithFeedbackSince returns the distinct users with feedback at or after since,
// sorted by user id.
func (s *FeedbackStore) UsersWithFeedbackSince(ctx context.Context, since time.Time) ([]string, error) {
	var users []string
	err := s.db.WithContext(ctx).
		Model(&UserFeedback{}).
		Distinct("user_id").
		Where("created_at_epoch >= ?", since.UnixMilli()).
		Order("user_id ASC").
		Pluck("user_id", &users).Error
	return users, err
}

// GetProfile returns a user's derived profile.
func (s *FeedbackStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var row UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// UpsertProfile writes derived fields onto a user's profile, creating it if needed.
func (s *FeedbackStore) UpsertProfile(ctx context.Context, userID string, u models.ProfileUpdate) error {
	row := &UserProfile{
		UserID:               userID,
		PreferredInstructors: models.JSONStringArray(u.Instructors),
		UpdatedAtEpoch:       time.Now().UnixMilli(),
	}
	columns := []string{"preferred_instructors", "updated_at_epoch"}
	if u.LengthMin != nil && u.LengthMax != nil {
		row.PreferredLenMin = *u.LengthMin
		row.PreferredLenMax = *u.LengthMax
		columns = append(columns, "preferred_len_min", "preferred_len_max")
	}
	if row.PreferredInstructors == nil {
		row.PreferredInstructors = models.JSONStringArray{}
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(row).Error
}
