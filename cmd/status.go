// Package cmd provides command-line interface functionality for the batchflow application.
/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newStatusCmd creates and returns the status command.
func newStatusCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "status <group-id>",
		Short: "Show the aggregate status of a batch group",
		Long: `Show the aggregate status of a batch group.

By default the report is built from stored state only. With --refresh each
non-terminal job is polled against the provider first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			deps, err := buildDependencies(ctx, GetConfig())
			if err != nil {
				return err
			}
			defer deps.cleanup()

			if refresh {
				report, refreshErr := deps.coordinator.RefreshGroup(ctx, groupID)
				if refreshErr != nil {
					return refreshErr
				}
				return printJSON(cmd, report)
			}

			report, err := deps.coordinator.GetGroupStatus(ctx, groupID)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Poll the provider before reporting")

	return cmd
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newStatusCmd())
}
