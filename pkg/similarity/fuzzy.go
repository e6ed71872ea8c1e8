// Package similarity provides text normalization and fuzzy matching utilities.
package similarity

import (
	"strings"
	"unicode"
)

// Weights holds the scores assigned by each fuzzy match rule.
// An exact normalized match always scores 1.0.
type Weights struct {
	// Contains is returned when the text contains the candidate.
	Contains float64 `json:"contains"`
	// ContainedBy is returned when the candidate contains the text.
	ContainedBy float64 `json:"contained_by"`
	// Overlap scales the fraction of candidate tokens found in the text.
	Overlap float64 `json:"overlap"`
}

// DefaultWeights returns the hand-tuned rule weights.
func DefaultWeights() Weights {
	return Weights{
		Contains:    0.9,
		ContainedBy: 0.85,
		Overlap:     0.8,
	}
}

// DefaultStopWords are dropped during tokenization. They carry no technique
// signal in instructional video titles.
var DefaultStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "of": true, "to": true,
	"in": true, "on": true, "for": true, "with": true, "from": true, "by": true,
	"at": true, "or": true, "vs": true, "is": true, "it": true, "this": true,
	"that": true, "your": true, "you": true, "my": true, "how": true,
	"what": true, "why": true, "when": true, "best": true, "easy": true,
	"bjj": true, "jiu": true, "jitsu": true, "jujitsu": true, "gi": true,
	"nogi": true, "tutorial": true, "instructional": true, "video": true,
	"lesson": true, "technique": true, "techniques": true, "part": true,
}

// Tokens lower-cases s, splits it on anything that is not a letter or digit,
// and drops stop words and single-character tokens. Apostrophes are removed
// rather than split on so contractions stay one token.
func Tokens(s string) []string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("'", "", "’", "").Replace(s)

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) <= 1 || DefaultStopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Normalize returns the space-joined tokens of s.
func Normalize(s string) string {
	return strings.Join(Tokens(s), " ")
}

// Score returns the fuzzy similarity of text a against candidate b using the
// default weights.
func Score(a, b string) float64 {
	return ScoreWith(DefaultWeights(), a, b)
}

// ScoreWith returns a heuristic similarity in [0, 1] of text a (the video
// text) against candidate b (a taxonomy node name):
//
//   - 0 if either side normalizes to nothing
//   - 1.0 if both normalize to the same string
//   - w.Contains if normalized a contains normalized b
//   - w.ContainedBy if normalized b contains normalized a
//   - otherwise (matched tokens of b / tokens of b) * w.Overlap, where a token
//     of b matches when some token of a equals it or one contains the other
func ScoreWith(w Weights, a, b string) float64 {
	ta := Tokens(a)
	tb := Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	na := strings.Join(ta, " ")
	nb := strings.Join(tb, " ")
	if na == nb {
		return 1.0
	}
	if strings.Contains(na, nb) {
		return clamp(w.Contains)
	}
	if strings.Contains(nb, na) {
		return clamp(w.ContainedBy)
	}

	matched := 0
	for _, bt := range tb {
		for _, at := range ta {
			if at == bt || strings.Contains(at, bt) || strings.Contains(bt, at) {
				matched++
				break
			}
		}
	}

	return clamp(float64(matched) / float64(len(tb)) * w.Overlap)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
