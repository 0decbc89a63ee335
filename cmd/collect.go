// Package cmd provides command-line interface functionality for the batchflow application.
/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newCollectCmd creates and returns the collect command.
func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect <group-id>",
		Short: "Collect the merged results of a batch group",
		Long: `Collect the merged results of a batch group.

Results are downloaded from the provider for every completed job that has
not been collected yet; already collected jobs are served from stored
results. Jobs that are still running or failed are reported alongside the
merged result map.`,
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

			result, err := deps.coordinator.CollectGroup(ctx, groupID)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	return cmd
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newCollectCmd())
}
