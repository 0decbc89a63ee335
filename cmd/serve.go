// Package cmd provides command-line interface functionality for the batchflow application.
/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"batchflow/internal/adapter/inbound/api"
	"batchflow/internal/application/common/slogger"

	"github.com/spf13/cobra"
)

// newServeCmd creates and returns the serve command.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the inspection API server",
		Long: `Start the read-only inspection API server.

The server exposes group listings, aggregate status reports, and merged
results over HTTP. It never submits or cancels jobs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := GetConfig()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := buildDependencies(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.cleanup()

			server := api.NewServer(cfg.API, deps.coordinator)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				slogger.InfoNoCtx("Shutting down inspection API", nil)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newServeCmd())
}
