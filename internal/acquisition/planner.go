package acquisition

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/thebtf/dojo/internal/coverage"
)

// PriorityAnalyzer reports current coverage gaps.
type PriorityAnalyzer interface {
	Analyze(ctx context.Context, targets []string) (*coverage.Report, error)
}

// Planner turns a job request into the query list of a run.
type Planner struct {
	analyzer    PriorityAnalyzer
	log         zerolog.Logger
	templates   []string
	seedQueries []string
}

// NewPlanner creates a query planner. seedQueries are used when neither an
// explicit target list nor any coverage gap yields a query.
func NewPlanner(analyzer PriorityAnalyzer, templates, seedQueries []string, log zerolog.Logger) *Planner {
	return &Planner{
		analyzer:    analyzer,
		templates:   templates,
		seedQueries: seedQueries,
		log:         log.With().Str("component", "acquisition-planner").Logger(),
	}
}

// Plan returns the queries for a run. Explicit targets (technique or
// instructor names) take precedence over coverage priorities.
func (p *Planner) Plan(ctx context.Context, targets []string) ([]string, error) {
	if queries := coverage.QueriesForNames(targets, p.templates); len(queries) > 0 {
		p.log.Info().Int("targets", len(targets)).Int("queries", len(queries)).Msg("Planned queries from targets")
		return queries, nil
	}

	report, err := p.analyzer.Analyze(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze coverage: %w", err)
	}
	queries := coverage.QueriesFor(report.Priorities, p.templates)
	if len(queries) == 0 {
		p.log.Info().Int("queries", len(p.seedQueries)).Msg("No coverage gaps, using seed queries")
		return p.seedQueries, nil
	}

	p.log.Info().Int("priorities", len(report.Priorities)).Int("queries", len(queries)).Msg("Planned queries from coverage priorities")
	return queries, nil
}
