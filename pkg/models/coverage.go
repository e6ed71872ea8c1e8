package models

// CoveragePriority is the projected coverage state of one technique.
// It is recomputed on every analysis and never stored as its own record.
type CoveragePriority struct {
	TechniqueName string  `json:"technique_name"`
	Slug          string  `json:"slug"`
	TaxonomyID    int64   `json:"taxonomy_id"`
	Level         int     `json:"level"`
	CurrentCount  int     `json:"current_count"`
	TargetCount   int     `json:"target_count"`
	PriorityScore float64 `json:"priority_score"`
	NeedsCuration bool    `json:"needs_curation"`
}
