package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thebtf/dojo/internal/taxonomy"
)

func newTaxonomyCommand(ctx *commandContext) *cobra.Command {
	taxonomyCmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Manage the technique taxonomy",
	}
	taxonomyCmd.AddCommand(newTaxonomyLoadCommand(ctx))
	return taxonomyCmd
}

func newTaxonomyLoadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load [file]",
		Short: "Replace the taxonomy from a YAML seed file (embedded default when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			seed := taxonomy.DefaultSeed()
			source := "embedded default"
			if len(args) == 1 {
				if seed, err = taxonomy.ReadSeedFile(args[0]); err != nil {
					return err
				}
				source = args[0]
			}
			if err := a.TaxonomyAdmin.LoadSeed(cmd.Context(), seed); err != nil {
				return err
			}

			nodes := len(seed.Specs())
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"source": source, "nodes": nodes})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d taxonomy nodes from %s\n", nodes, source)
			return nil
		},
	}
}
