// Package cmd provides command-line interface functionality for the batchflow application.
/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"batchflow/internal/application/common/slogger"
	"batchflow/internal/application/worker"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// newPollCmd creates and returns the poll command.
func newPollCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run the polling worker",
		Long: `Run the polling worker that drives all active batch groups toward
completion.

Each cycle lists the groups with at least one non-terminal job, refreshes
their jobs against the provider, and optionally collects results for jobs
that completed. With --once a single cycle is run and the command exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := GetConfig()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownMetrics, err := setupMetricProvider(ctx)
			if err != nil {
				return err
			}
			defer shutdownMetrics()

			deps, err := buildDependencies(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.cleanup()

			metrics, err := worker.NewOrchestrationMetrics()
			if err != nil {
				return err
			}

			poller := worker.NewPoller(
				deps.coordinator,
				cfg.Batch.PollInterval,
				cfg.Batch.AutoCollect,
				metrics,
			)

			if once {
				refreshed, cycleErr := poller.RunCycle(ctx)
				if cycleErr != nil {
					return cycleErr
				}
				cmd.Printf("refreshed %d group(s)\n", refreshed)
				return nil
			}

			if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single poll cycle and exit")

	return cmd
}

// setupMetricProvider installs the global meter provider backing the worker
// instruments. The returned shutdown flushes pending metrics.
func setupMetricProvider(ctx context.Context) (func(), error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("batchflow"),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetMeterProvider(provider)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := provider.Shutdown(shutdownCtx); shutdownErr != nil {
			slogger.ErrorWithErrorNoCtx(shutdownErr, "Failed to shut down meter provider", nil)
		}
	}, nil
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newPollCmd())
}
