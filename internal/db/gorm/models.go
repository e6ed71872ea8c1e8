package gorm

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/dojo/pkg/models"
)

// GORM Models
// Timestamps are stored as epoch milliseconds, matching across PostgreSQL and SQLite.

// TaxonomyNode is a row of the technique tree.
type TaxonomyNode struct {
	Name     string        `gorm:"not null"`
	Slug     string        `gorm:"uniqueIndex;not null"`
	ParentID sql.NullInt64 `gorm:"index"`
	ID       int64         `gorm:"primaryKey;autoIncrement"`
	Level    int           `gorm:"check:level BETWEEN 1 AND 3;not null;index"`
}

func (TaxonomyNode) TableName() string { return "taxonomy_nodes" }

func (n *TaxonomyNode) toModel() models.TaxonomyNode {
	return models.TaxonomyNode{
		ID:       n.ID,
		Name:     n.Name,
		Slug:     n.Slug,
		Level:    n.Level,
		ParentID: n.ParentID,
	}
}

// Video is a curated catalog item. external_id is the de-duplication key.
type Video struct {
	ExternalID       string `gorm:"uniqueIndex;not null"`
	Title            string `gorm:"type:text;not null"`
	Channel          string `gorm:"index"`
	ChannelRef       string
	TechniqueName    string
	Position         string
	TechniqueType    string
	Status           string  `gorm:"type:text;check:status IN ('active', 'inactive', 'superseded');default:'active';index"`
	ID               int64   `gorm:"primaryKey;autoIncrement"`
	DurationSeconds  int     `gorm:"default:0"`
	Score            float64 `gorm:"type:real;default:0.5"`
	PublishedAtEpoch int64   `gorm:"index"`
	CreatedAtEpoch   int64   `gorm:"index:idx_videos_created,sort:desc;not null"`
}

func (Video) TableName() string { return "videos" }

// BeforeCreate hook to ensure defaults are set.
func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.CreatedAtEpoch == 0 {
		v.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if v.Status == "" {
		v.Status = string(models.VideoStatusActive)
	}
	return nil
}

func videoFromModel(v *models.Video) *Video {
	row := &Video{
		ID:              v.ID,
		ExternalID:      v.ExternalID,
		Title:           v.Title,
		Channel:         v.Channel,
		ChannelRef:      v.ChannelRef,
		TechniqueName:   v.TechniqueName,
		Position:        v.Position,
		TechniqueType:   v.TechniqueType,
		Status:          string(v.Status),
		DurationSeconds: v.DurationSeconds,
		Score:           v.AcceptanceScore,
	}
	if !v.PublishedAt.IsZero() {
		row.PublishedAtEpoch = v.PublishedAt.UnixMilli()
	}
	if !v.CreatedAt.IsZero() {
		row.CreatedAtEpoch = v.CreatedAt.UnixMilli()
	}
	return row
}

func (v *Video) toModel() *models.Video {
	out := &models.Video{
		ID:              v.ID,
		ExternalID:      v.ExternalID,
		Title:           v.Title,
		Channel:         v.Channel,
		ChannelRef:      v.ChannelRef,
		TechniqueName:   v.TechniqueName,
		Position:        v.Position,
		TechniqueType:   v.TechniqueType,
		Status:          models.VideoStatus(v.Status),
		DurationSeconds: v.DurationSeconds,
		AcceptanceScore: v.Score,
		CreatedAt:       time.UnixMilli(v.CreatedAtEpoch),
	}
	if v.PublishedAtEpoch != 0 {
		out.PublishedAt = time.UnixMilli(v.PublishedAtEpoch)
	}
	return out
}

// VideoTag associates a video with a taxonomy node. The pair is the primary key.
type VideoTag struct {
	Relevance  string `gorm:"type:text;check:relevance IN ('primary', 'secondary');not null"`
	VideoID    int64  `gorm:"primaryKey;autoIncrement:false"`
	TaxonomyID int64  `gorm:"primaryKey;autoIncrement:false;index"`
}

func (VideoTag) TableName() string { return "video_tags" }

// Instructor holds per-instructor credibility aggregates.
type Instructor struct {
	Name               string  `gorm:"uniqueIndex;not null"`
	ExternalChannelRef string  `gorm:"index"`
	ID                 int64   `gorm:"primaryKey;autoIncrement"`
	SubscriberCount    int64   `gorm:"default:0"`
	VideoCount         int     `gorm:"default:0"`
	PriorityScore      float64 `gorm:"type:real;default:0"`
	ManualOverride     bool    `gorm:"default:false"`
	UpdatedAtEpoch     int64
}

func (Instructor) TableName() string { return "instructors" }

func (i *Instructor) toModel() *models.InstructorCredibility {
	out := &models.InstructorCredibility{
		ID:                 i.ID,
		Name:               i.Name,
		ExternalChannelRef: i.ExternalChannelRef,
		SubscriberCount:    i.SubscriberCount,
		VideoCount:         i.VideoCount,
		PriorityScore:      i.PriorityScore,
		ManualOverride:     i.ManualOverride,
	}
	if i.UpdatedAtEpoch != 0 {
		out.UpdatedAt = time.UnixMilli(i.UpdatedAtEpoch)
	}
	return out
}

// UserFeedback is an append-only vote on a video.
type UserFeedback struct {
	UserID         string `gorm:"index:idx_feedback_user_created,priority:1;not null"`
	Category       string
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	VideoID        int64 `gorm:"index;not null"`
	CreatedAtEpoch int64 `gorm:"index:idx_feedback_user_created,priority:2,sort:desc;index;not null"`
	Helpful        bool  `gorm:"not null"`
}

func (UserFeedback) TableName() string { return "user_feedback" }

// BeforeCreate hook to ensure timestamps are set.
func (f *UserFeedback) BeforeCreate(tx *gorm.DB) error {
	if f.CreatedAtEpoch == 0 {
		f.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// UserProfile holds derived personalization fields.
type UserProfile struct {
	UserID               string                 `gorm:"primaryKey"`
	PreferredInstructors models.JSONStringArray `gorm:"type:text"`
	PreferredLenMin      int                    `gorm:"column:preferred_len_min;default:0"`
	PreferredLenMax      int                    `gorm:"column:preferred_len_max;default:0"`
	UpdatedAtEpoch       int64
}

func (UserProfile) TableName() string { return "user_profiles" }

func (p *UserProfile) toModel() *models.UserProfile {
	out := &models.UserProfile{
		UserID:               p.UserID,
		PreferredInstructors: p.PreferredInstructors,
		PreferredLengthMin:   p.PreferredLenMin,
		PreferredLengthMax:   p.PreferredLenMax,
	}
	if p.UpdatedAtEpoch != 0 {
		out.UpdatedAt = time.UnixMilli(p.UpdatedAtEpoch)
	}
	return out
}
