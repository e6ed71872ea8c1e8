package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thebtf/dojo/internal/config"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the job scheduler and the admin API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if port <= 0 {
				port = a.Config.WorkerPort
			}
			return a.Serve(cmd.Context(), Version, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, fmt.Sprintf("Admin API port (default %d)", config.DefaultWorkerPort))
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dojo version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return nil
		},
	}
}
