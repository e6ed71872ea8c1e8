// Package tagging assigns taxonomy nodes to videos with fuzzy text matching
// and static keyword rules.
package tagging

import (
	"regexp"
	"strings"
)

// PositionRule maps a text pattern to a taxonomy slug.
type PositionRule struct {
	Pattern *regexp.Regexp
	Slug    string
}

// Rules holds the static tables used by the tagger. They are data, not code
// branches, so they can be extended and tested on their own.
type Rules struct {
	// TypeMap maps a lower-cased technique-type token to level-1 slugs.
	TypeMap map[string][]string
	// TypeSeparators split the technique-type field into tokens.
	TypeSeparators *regexp.Regexp
	// Positions are applied in order against the combined video text.
	Positions []PositionRule
}

// DefaultRules returns the built-in rule tables.
func DefaultRules() *Rules {
	return &Rules{
		Positions:      defaultPositionRules(),
		TypeMap:        defaultTypeMap(),
		TypeSeparators: regexp.MustCompile(`\s*(?:[/,;|&+]|\band\b)\s*`),
	}
}

func defaultPositionRules() []PositionRule {
	rule := func(pattern, slug string) PositionRule {
		return PositionRule{Pattern: regexp.MustCompile(`(?i)` + pattern), Slug: slug}
	}
	return []PositionRule{
		rule(`\bhalf[\s-]?guard\b`, "half-guard"),
		rule(`\bclosed[\s-]?guard\b`, "closed-guard"),
		rule(`\bbutterfly\b`, "butterfly-guard"),
		rule(`\bde[\s-]?la[\s-]?riva\b|\bdlr\b`, "de-la-riva"),
		rule(`\bx[\s-]guard\b`, "x-guard"),
		rule(`\bspider[\s-]?guard\b`, "spider-guard"),
		rule(`\blasso\b`, "lasso-guard"),
		rule(`\brubber[\s-]?guard\b`, "rubber-guard"),
		rule(`\b50[\s/-]?50\b|\bfifty[\s-]fifty\b`, "leg-locks"),
		rule(`\bheel[\s-]?hooks?\b`, "heel-hooks"),
		rule(`\bknee[\s-]?bars?\b`, "knee-bars"),
		rule(`\bankle[\s-]?locks?\b`, "ankle-locks"),
		rule(`\btoe[\s-]?holds?\b`, "toe-holds"),
		rule(`\bashi[\s-]?garami\b|\bsaddle\b|\binside[\s-]sankaku\b`, "leg-entanglements"),
		rule(`\bback[\s-]?(?:take|takes|control)\b`, "back-control"),
		rule(`\b(?:full|top|s)[\s-]?mount\b`, "mount"),
		rule(`\bside[\s-]?control\b`, "side-control"),
		rule(`\bknee[\s-]?on[\s-]?belly\b`, "knee-on-belly"),
		rule(`\bnorth[\s-]?south\b`, "north-south"),
		rule(`\bturtle\b`, "turtle"),
		rule(`\bsingle[\s-]?leg\b|\bdouble[\s-]?leg\b`, "wrestling-takedowns"),
		rule(`\bguard[\s-]?pass(?:ing)?\b`, "guard-passing"),
	}
}

func defaultTypeMap() map[string][]string {
	return map[string][]string{
		"submission":      {"submissions"},
		"submissions":     {"submissions"},
		"choke":           {"submissions"},
		"chokes":          {"submissions"},
		"joint lock":      {"submissions"},
		"armlock":         {"submissions"},
		"arm lock":        {"submissions"},
		"leg lock":        {"leg-locks"},
		"leglock":         {"leg-locks"},
		"leg locks":       {"leg-locks"},
		"footlock":        {"leg-locks"},
		"sweep":           {"guard-play"},
		"sweeps":          {"guard-play"},
		"guard":           {"guard-play"},
		"guard retention": {"guard-play"},
		"pass":            {"guard-passing"},
		"passing":         {"guard-passing"},
		"guard pass":      {"guard-passing"},
		"takedown":        {"takedowns"},
		"takedowns":       {"takedowns"},
		"throw":           {"takedowns"},
		"wrestling":       {"takedowns"},
		"escape":          {"escapes"},
		"escapes":         {"escapes"},
		"defense":         {"escapes"},
		"back take":       {"back-control"},
		"back attack":     {"back-control", "submissions"},
		"pin":             {"pins"},
		"control":         {"pins"},
		"top control":     {"pins"},
		"transition":      {"pins"},
		"drill":           {"fundamentals"},
		"concept":         {"fundamentals"},
		"fundamental":     {"fundamentals"},
		"fundamentals":    {"fundamentals"},
	}
}

// TypeSlugs splits a technique-type field and maps each token through the
// type table. Slugs are returned in first-seen order without duplicates.
func (r *Rules) TypeSlugs(techniqueType string) []string {
	techniqueType = strings.ToLower(strings.TrimSpace(techniqueType))
	if techniqueType == "" {
		return nil
	}

	var slugs []string
	seen := make(map[string]bool)
	for _, token := range r.TypeSeparators.Split(techniqueType, -1) {
		token = strings.Join(strings.Fields(token), " ")
		for _, slug := range r.TypeMap[token] {
			if !seen[slug] {
				seen[slug] = true
				slugs = append(slugs, slug)
			}
		}
	}
	return slugs
}

// PositionSlugs returns the slugs of every position rule matching text, in
// rule order without duplicates.
func (r *Rules) PositionSlugs(text string) []string {
	var slugs []string
	seen := make(map[string]bool)
	for _, rule := range r.Positions {
		if seen[rule.Slug] || !rule.Pattern.MatchString(text) {
			continue
		}
		seen[rule.Slug] = true
		slugs = append(slugs, rule.Slug)
	}
	return slugs
}
