package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thebtf/dojo/internal/acquisition"
	"github.com/thebtf/dojo/internal/batch"
	"github.com/thebtf/dojo/internal/coverage"
)

func newAcquireCommand(ctx *commandContext) *cobra.Command {
	var targets []string

	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Search the catalog and add qualifying videos",
		Long: "Runs one acquisition. Explicit --target names become queries; otherwise\n" +
			"queries come from the highest coverage priorities, then the seed queries.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			res, runErr := a.Acquire(cmd.Context(), targets)
			if res == nil {
				return runErr
			}
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, res); err != nil {
					return err
				}
				return runErr
			}
			printAcquisition(cmd.OutOrStdout(), res)
			return runErr
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "Technique or instructor name to search for (repeatable)")
	return cmd
}

func printAcquisition(out io.Writer, res *acquisition.Result) {
	fmt.Fprintf(out, "Run:        %s\n", res.RunID)
	fmt.Fprintf(out, "Queries:    %d\n", res.QueriesExecuted)
	fmt.Fprintf(out, "Found:      %d\n", res.ItemsFound)
	fmt.Fprintf(out, "Added:      %d\n", res.ItemsAdded)
	fmt.Fprintf(out, "Duplicates: %d\n", res.Duplicates)
	fmt.Fprintf(out, "Too short:  %d\n", res.TooShort)
	fmt.Fprintf(out, "Invalid:    %d\n", res.Invalid)
	fmt.Fprintf(out, "Errors:     %d (tagging %d)\n", res.Errors, res.TagErrors)
	if res.HaltedOnQuota {
		fmt.Fprintln(out, "Halted:     catalog quota exhausted")
	}
}

func newCoverageCommand(ctx *commandContext) *cobra.Command {
	var targets []string
	var showAll bool

	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Report technique coverage and the top curation priorities",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.Coverage(cmd.Context(), targets)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			printCoverage(cmd.OutOrStdout(), report, showAll)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "Restrict the analysis to these technique names (repeatable)")
	cmd.Flags().BoolVar(&showAll, "all", false, "List every technique instead of the priorities only")
	return cmd
}

func printCoverage(out io.Writer, report *coverage.Report, showAll bool) {
	fmt.Fprintf(out, "Library: %d / %d videos (%.1f%%)\n", report.TotalVideos, report.LibraryTarget, report.LibraryCoverage*100)
	for _, name := range report.Unknown {
		fmt.Fprintf(out, "Unknown target: %s\n", name)
	}

	rowsFrom := report.Priorities
	if showAll {
		rowsFrom = report.Techniques
	}
	if len(rowsFrom) == 0 {
		fmt.Fprintln(out, "Every technique meets its target")
		return
	}

	rows := make([][]string, 0, len(rowsFrom))
	for _, p := range rowsFrom {
		rows = append(rows, []string{
			p.TechniqueName,
			p.Slug,
			strconv.Itoa(p.CurrentCount),
			strconv.Itoa(p.TargetCount),
			strconv.FormatFloat(p.PriorityScore, 'f', 1, 64),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Technique", "Slug", "Videos", "Target", "Priority"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))
}

func newTagCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Tag active videos that have no taxonomy tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.Tag(cmd.Context(), all)
			if err != nil {
				return err
			}
			return printBatch(cmd, ctx, "Tagged", result)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Re-run the tagger over every active video")
	return cmd
}

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	var users []string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Rebuild user profiles from recent feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.BuildProfiles(cmd.Context(), users)
			if err != nil {
				return err
			}
			return printBatch(cmd, ctx, "Updated", result)
		},
	}
	cmd.Flags().StringSliceVarP(&users, "user", "u", nil, "Rebuild only these users (repeatable)")
	return cmd
}

func newCredibilityCommand(ctx *commandContext) *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "credibility",
		Short: "Recalculate instructor credibility scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.Credibility.Recalculate(cmd.Context(), names)
			if err != nil {
				return err
			}
			return printBatch(cmd, ctx, "Updated", result)
		},
	}
	cmd.Flags().StringSliceVarP(&names, "instructor", "i", nil, "Recalculate only these instructors (repeatable)")
	return cmd
}

func printBatch(cmd *cobra.Command, ctx *commandContext, verb string, result *batch.Result) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, result)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed: %d\n", result.Processed)
	fmt.Fprintf(out, "%-10s %d\n", verb+":", result.Succeeded)

	reasons := make([]string, 0, len(result.Skipped))
	for reason := range result.Skipped {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(out, "Skipped:   %d (%s)\n", result.Skipped[reason], reason)
	}
	fmt.Fprintf(out, "Failed:    %d\n", result.Failed)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  %s: %s\n", e.Key, e.Error)
	}
	if result.Halted {
		fmt.Fprintf(out, "Halted:    %s\n", result.HaltReason)
		return errors.New("run halted: " + result.HaltReason)
	}
	return nil
}
