// Package cmd provides command-line interface functionality for the batchflow application.
/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newRetryCmd creates and returns the retry command.
func newRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <group-id>",
		Short: "Resubmit the failed jobs of a batch group",
		Long: `Resubmit the failed jobs of a batch group.

Each failed job is replaced by a fresh job carrying the same item chunk.
Completed and in-flight jobs are left untouched.`,
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

			if _, err := deps.coordinator.RetryFailed(ctx, groupID); err != nil {
				return err
			}

			report, err := deps.coordinator.GetGroupStatus(ctx, groupID)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}

	return cmd
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newRetryCmd())
}
