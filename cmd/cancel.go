// Package cmd provides command-line interface functionality for the batchflow application.
/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newCancelCmd creates and returns the cancel command.
func newCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <group-id>",
		Short: "Cancel every cancellable job in a batch group",
		Long: `Cancel every cancellable job in a batch group.

Jobs already in a terminal state keep that state; a job the provider
finished before the cancellation reached it stays completed or failed.`,
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

			report, err := deps.coordinator.CancelGroup(ctx, groupID)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}

	return cmd
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newCancelCmd())
}
