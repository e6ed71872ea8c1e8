// Package credibility recalculates per-instructor priority scores.
package credibility

import "math"

// Weights tune the priority formula.
type Weights struct {
	Subscriber float64 // Multiplier of log10(subscribers + 1)
	Video      float64 // Points per library video
	VideoCap   int     // Library videos beyond this add nothing
}

// DefaultWeights returns the default priority weights.
func DefaultWeights() Weights {
	return Weights{Subscriber: 10, Video: 0.5, VideoCap: 50}
}

// Components is a priority score split into its parts.
type Components struct {
	Audience float64 `json:"audience"`
	Library  float64 `json:"library"`
	Total    float64 `json:"total"`
}

// Calculate returns the priority components:
//
//	Audience = log10(subscribers + 1) × Subscriber
//	Library  = min(videos, VideoCap) × Video
func Calculate(w Weights, subscribers int64, videos int) Components {
	c := Components{
		Audience: math.Log10(float64(max(subscribers, 0))+1) * w.Subscriber,
		Library:  float64(min(max(videos, 0), w.VideoCap)) * w.Video,
	}
	c.Total = c.Audience + c.Library
	return c
}
