package models

import "time"

// VideoStatus is the lifecycle flag of a video. Videos are never deleted.
type VideoStatus string

const (
	VideoStatusActive     VideoStatus = "active"
	VideoStatusInactive   VideoStatus = "inactive"
	VideoStatusSuperseded VideoStatus = "superseded"
)

// DefaultAcceptanceScore is the initial score given to newly acquired videos
// until a re-scoring job revisits them.
const DefaultAcceptanceScore = 0.5

// Video is a curated catalog item.
type Video struct {
	PublishedAt     time.Time   `json:"published_at"`
	CreatedAt       time.Time   `json:"created_at"`
	ExternalID      string      `json:"external_id"`
	Title           string      `json:"title"`
	Channel         string      `json:"channel"`
	ChannelRef      string      `json:"channel_ref,omitempty"`
	TechniqueName   string      `json:"technique_name,omitempty"`
	Position        string      `json:"position,omitempty"`
	TechniqueType   string      `json:"technique_type,omitempty"`
	Status          VideoStatus `json:"status"`
	ID              int64       `json:"id"`
	DurationSeconds int         `json:"duration_seconds"`
	AcceptanceScore float64     `json:"acceptance_score"`
}

// Relevance marks how central a taxonomy node is to a video.
type Relevance string

const (
	RelevancePrimary   Relevance = "primary"
	RelevanceSecondary Relevance = "secondary"
)

// VideoTechniqueTag associates a video with a taxonomy node.
type VideoTechniqueTag struct {
	Relevance  Relevance `json:"relevance"`
	VideoID    int64     `json:"video_id"`
	TaxonomyID int64     `json:"taxonomy_id"`
}

// Provenance records which tagging heuristic produced an assignment.
// It is kept for logs and debugging only and is not persisted.
type Provenance string

const (
	ProvenancePositionDetect Provenance = "position-detect"
	ProvenanceTypeMap        Provenance = "type-map"
	ProvenanceNameMatch      Provenance = "name-match"
	ProvenanceFallback       Provenance = "fallback"
)

// TagAssignment is one taxonomy node chosen for a video.
type TagAssignment struct {
	Slug       string     `json:"slug"`
	Relevance  Relevance  `json:"relevance"`
	Provenance Provenance `json:"provenance"`
	TaxonomyID int64      `json:"taxonomy_id"`
	Level      int        `json:"level"`
	Score      float64    `json:"score,omitempty"`
}

// InstructorCredibility aggregates catalog and library signals per instructor.
// When ManualOverride is set, PriorityScore was hand-tuned and recalculation keeps it.
type InstructorCredibility struct {
	UpdatedAt          time.Time `json:"updated_at"`
	Name               string    `json:"name"`
	ExternalChannelRef string    `json:"external_channel_ref"`
	ID                 int64     `json:"id"`
	SubscriberCount    int64     `json:"subscriber_count"`
	VideoCount         int       `json:"video_count"`
	PriorityScore      float64   `json:"priority_score"`
	ManualOverride     bool      `json:"manual_override"`
}
