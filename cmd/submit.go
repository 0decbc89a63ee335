// Package cmd provides command-line interface functionality for the batchflow application.
/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"batchflow/internal/application/common/slogger"
	"batchflow/internal/domain/entity"
	domainservice "batchflow/internal/domain/service"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// submissionManifest is the YAML input accepted by the submit command.
type submissionManifest struct {
	Processor string         `yaml:"processor"`
	Items     []manifestItem `yaml:"items"`
}

type manifestItem struct {
	Namespace  string `yaml:"namespace"`
	Collection string `yaml:"collection"`
	ItemID     string `yaml:"item_id"`
	Payload    string `yaml:"payload"`
}

// newSubmitCmd creates and returns the submit command.
func newSubmitCmd() *cobra.Command {
	var (
		manifestPath string
		maxItems     int
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a collection of work items as a batch group",
		Long: `Submit a collection of work items as a batch group.

The manifest file names a processor and lists the items to process. The
collection is split into provider-sized submissions, each tracked as one
job inside the group. With --dry-run the split plan is printed and nothing
is submitted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manifest, err := readManifest(manifestPath)
			if err != nil {
				return err
			}
			items := manifest.workItems()

			if maxItems <= 0 {
				maxItems = GetConfig().Batch.MaxItemsPerSubmission
			}

			if dryRun {
				plan, planErr := domainservice.Plan(items, maxItems)
				if planErr != nil {
					return planErr
				}
				return printJSON(cmd, plan)
			}

			ctx := cmd.Context()
			deps, err := buildDependencies(ctx, GetConfig())
			if err != nil {
				return err
			}
			defer deps.cleanup()

			group, err := deps.coordinator.CreateGroup(ctx, items, manifest.Processor, maxItems)
			if err != nil {
				return err
			}

			slogger.Info(ctx, "Group created", slogger.Fields{
				"group_id":    group.ID().String(),
				"processor":   group.Processor(),
				"total_items": group.TotalItems(),
				"job_count":   group.JobCount(),
			})

			report, err := deps.coordinator.GetGroupStatus(ctx, group.ID())
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "file", "f", "", "Path to the YAML submission manifest")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Maximum items per submission (0 uses the configured default)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the split plan without submitting")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func readManifest(path string) (*submissionManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest submissionManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if manifest.Processor == "" {
		return nil, fmt.Errorf("manifest processor cannot be empty")
	}
	return &manifest, nil
}

func (m *submissionManifest) workItems() []entity.WorkItem {
	items := make([]entity.WorkItem, 0, len(m.Items))
	for _, item := range m.Items {
		items = append(items, entity.WorkItem{
			Namespace:  item.Namespace,
			Collection: item.Collection,
			ItemID:     item.ItemID,
			Processor:  m.Processor,
			Payload:    item.Payload,
		})
	}
	return items
}

func printJSON(cmd *cobra.Command, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newSubmitCmd())
}
