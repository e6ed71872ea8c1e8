package models

import "time"

// UserFeedback is one append-only helpful/not-helpful vote on a video.
type UserFeedback struct {
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	ID        int64     `json:"id"`
	VideoID   int64     `json:"video_id"`
	Helpful   bool      `json:"helpful"`
}

// FeedbackSignal is a feedback row joined with the video fields the profile
// builder needs.
type FeedbackSignal struct {
	CreatedAt       time.Time `json:"created_at"`
	Channel         string    `json:"channel"`
	VideoID         int64     `json:"video_id"`
	DurationSeconds int       `json:"duration_seconds"`
	Helpful         bool      `json:"helpful"`
}

// UserProfile holds the personalization fields derived from feedback.
// Every field can be recomputed from UserFeedback and Video rows.
type UserProfile struct {
	UpdatedAt            time.Time       `json:"updated_at"`
	UserID               string          `json:"user_id"`
	PreferredInstructors JSONStringArray `json:"preferred_instructors"`
	PreferredLengthMin   int             `json:"preferred_length_min"`
	PreferredLengthMax   int             `json:"preferred_length_max"`
}

// ProfileUpdate carries derived profile fields. A nil length bound leaves
// the stored window unchanged.
type ProfileUpdate struct {
	LengthMin   *int     `json:"length_min,omitempty"`
	LengthMax   *int     `json:"length_max,omitempty"`
	Instructors []string `json:"instructors"`
}
