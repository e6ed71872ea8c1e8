package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/dojo/pkg/models"
)

// VideoStore provides video and video tag persistence.
type VideoStore struct {
	db *gorm.DB
}

// NewVideoStore creates a new video store.
func NewVideoStore(store *Store) *VideoStore {
	return &VideoStore{db: store.DB}
}

// ExistsByExternalID reports whether a video with the catalog id is stored.
func (s *VideoStore) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Video{}).
		Where("external_id = ?", externalID).
		Count(&count).Error
	return count > 0, err
}

// InsertVideo stores v unless its external id already exists.
// It returns the row id and whether a new row was written; a duplicate
// external id is not an error.
func (s *VideoStore) InsertVideo(ctx context.Context, v *models.Video) (int64, bool, error) {
	row := videoFromModel(v)
	row.ID = 0

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).
		Create(row)
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected > 0 {
		return row.ID, true, nil
	}

	var existing Video
	err := s.db.WithContext(ctx).
		Select("id").
		Where("external_id = ?", v.ExternalID).
		First(&existing).Error
	if err != nil {
		return 0, false, err
	}
	return existing.ID, false, nil
}

// GetVideo returns a video by id.
func (s *VideoStore) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	var row Video
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// ListVideosForTagging returns active videos ordered by id.
// With untaggedOnly set, videos that already have at least one tag are skipped.
// limit <= 0 means no limit.
func (s *VideoStore) ListVideosForTagging(ctx context.Context, untaggedOnly bool, limit int) ([]*models.Video, error) {
	query := s.db.WithContext(ctx).
		Where("status = ?", string(models.VideoStatusActive)).
		Order("id ASC")
	if untaggedOnly {
		query = query.Where("NOT EXISTS (SELECT 1 FROM video_tags vt WHERE vt.video_id = videos.id)")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []Video
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	videos := make([]*models.Video, 0, len(rows))
	for i := range rows {
		videos = append(videos, rows[i].toModel())
	}
	return videos, nil
}

// SetVideoStatus flags a video active, inactive or superseded.
func (s *VideoStore) SetVideoStatus(ctx context.Context, id int64, status models.VideoStatus) error {
	result := s.db.WithContext(ctx).
		Model(&Video{}).
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActiveVideos returns the number of active videos.
func (s *VideoStore) CountActiveVideos(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Video{}).
		Where("status = ?", string(models.VideoStatusActive)).
		Count(&count).Error
	return int(count), err
}

// CountActiveByTaxonomy returns the number of distinct active videos tagged
// with each taxonomy node. Nodes without tags are absent from the map.
func (s *VideoStore) CountActiveByTaxonomy(ctx context.Context) (map[int64]int, error) {
	type row struct {
		TaxonomyID int64
		Count      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Table("video_tags AS vt").
		Select("vt.taxonomy_id AS taxonomy_id, COUNT(DISTINCT vt.video_id) AS count").
		Joins("JOIN videos v ON v.id = vt.video_id").
		Where("v.status = ?", string(models.VideoStatusActive)).
		Group("vt.taxonomy_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int, len(rows))
	for _, r := range rows {
		counts[r.TaxonomyID] = int(r.Count)
	}
	return counts, nil
}

// CountActiveByChannel returns the number of active videos per channel name.
func (s *VideoStore) CountActiveByChannel(ctx context.Context) (map[string]int, error) {
	type row struct {
		Channel string
		Count   int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&Video{}).
		Select("channel, COUNT(*) AS count").
		Where("status = ? AND channel <> ''", string(models.VideoStatusActive)).
		Group("channel").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Channel] = int(r.Count)
	}
	return counts, nil
}

// InsertTags stores tag rows, leaving existing (video, node) pairs untouched.
// It returns the number of rows actually written.
func (s *VideoStore) InsertTags(ctx context.Context, tags []models.VideoTechniqueTag) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	rows := make([]VideoTag, 0, len(tags))
	for _, t := range tags {
		rows = append(rows, VideoTag{
			VideoID:    t.VideoID,
			TaxonomyID: t.TaxonomyID,
			Relevance:  string(t.Relevance),
		})
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "video_id"}, {Name: "taxonomy_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	return int(result.RowsAffected), result.Error
}

// TagsForVideo returns the tags of a video ordered by taxonomy id.
func (s *VideoStore) TagsForVideo(ctx context.Context, videoID int64) ([]models.VideoTechniqueTag, error) {
	var rows []VideoTag
	err := s.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("taxonomy_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	tags := make([]models.VideoTechniqueTag, 0, len(rows))
	for _, r := range rows {
		tags = append(tags, models.VideoTechniqueTag{
			VideoID:    r.VideoID,
			TaxonomyID: r.TaxonomyID,
			Relevance:  models.Relevance(r.Relevance),
		})
	}
	return tags, nil
}
