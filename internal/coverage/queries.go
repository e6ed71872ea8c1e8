package coverage

import (
	"fmt"
	"strings"

	"github.com/thebtf/dojo/pkg/models"
)

// DefaultQueryTemplates turn a technique name into catalog search queries.
var DefaultQueryTemplates = []string{"%s bjj", "%s tutorial"}

// QueriesFor expands priorities into search queries, keeping priority order
// and dropping duplicates.
func QueriesFor(priorities []models.CoveragePriority, templates []string) []string {
	return QueriesForNames(names(priorities), templates)
}

// QueriesForNames expands technique or instructor names into search queries.
func QueriesForNames(names []string, templates []string) []string {
	if len(templates) == 0 {
		templates = DefaultQueryTemplates
	}
	seen := make(map[string]bool)
	var queries []string
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		for _, tmpl := range templates {
			q := fmt.Sprintf(tmpl, name)
			if !seen[q] {
				seen[q] = true
				queries = append(queries, q)
			}
		}
	}
	return queries
}

func names(priorities []models.CoveragePriority) []string {
	out := make([]string, 0, len(priorities))
	for _, p := range priorities {
		out = append(out, p.TechniqueName)
	}
	return out
}
