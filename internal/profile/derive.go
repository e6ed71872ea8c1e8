package profile

import (
	"math"
	"sort"

	"github.com/thebtf/dojo/pkg/models"
)

// Derived holds the profile fields computed from feedback.
type Derived struct {
	Instructors []string `json:"preferred_instructors"`
	LengthMin   int      `json:"preferred_length_min"`
	LengthMax   int      `json:"preferred_length_max"`
	// HasLength is false when no positively rated video had a known duration;
	// the stored length window is then left unchanged.
	HasLength bool `json:"has_length"`
	Positives int  `json:"positives"`
}

// Derive computes profile fields from feedback signals ordered newest first.
// It is a pure function of its input.
func Derive(signals []models.FeedbackSignal, cfg Config) Derived {
	var (
		d         Derived
		counts    = make(map[string]int)
		order     []string
		durations []float64
	)
	for _, s := range signals {
		if !s.Helpful {
			continue
		}
		d.Positives++
		if s.Channel != "" {
			if _, ok := counts[s.Channel]; !ok {
				order = append(order, s.Channel)
			}
			counts[s.Channel]++
		}
		if s.DurationSeconds > 0 {
			durations = append(durations, float64(s.DurationSeconds)/60)
		}
	}

	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > cfg.MaxInstructors {
		order = order[:cfg.MaxInstructors]
	}
	d.Instructors = order
	if d.Instructors == nil {
		d.Instructors = []string{}
	}

	if len(durations) > 0 {
		m := median(durations)
		d.LengthMin = clamp(int(math.Round(m-cfg.LengthSpread)), cfg.LengthFloor, cfg.LengthCeiling)
		d.LengthMax = clamp(int(math.Round(m+cfg.LengthSpread)), cfg.LengthFloor, cfg.LengthCeiling)
		d.HasLength = true
	}
	return d
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
