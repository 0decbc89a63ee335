// Package cmd provides command-line interface functionality for the batchflow application.
/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"batchflow/internal/adapter/outbound/memstore"
	"batchflow/internal/adapter/outbound/messaging"
	"batchflow/internal/adapter/outbound/mock"
	"batchflow/internal/adapter/outbound/repository"
	"batchflow/internal/adapter/outbound/sqlitestore"
	"batchflow/internal/application/common/slogger"
	"batchflow/internal/application/service"
	"batchflow/internal/config"
	"batchflow/internal/port/outbound"
)

// dependencies holds the wired application services for a command invocation.
type dependencies struct {
	coordinator *service.GroupCoordinator
	store       outbound.GroupStore
	cleanup     func()
}

// buildDependencies wires the store, provider, and event publisher selected
// by configuration into a GroupCoordinator. The returned cleanup must be
// called before exit.
func buildDependencies(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	cleanups := make([]func(), 0, 2)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	store, storeCleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if storeCleanup != nil {
		cleanups = append(cleanups, storeCleanup)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		cleanup()
		return nil, err
	}

	events, eventsCleanup, err := buildEventPublisher(cfg)
	if err != nil {
		cleanup()
		return nil, err
	}
	if eventsCleanup != nil {
		cleanups = append(cleanups, eventsCleanup)
	}

	coordinator := service.NewGroupCoordinator(provider, store, events, cfg.Batch.MaxConcurrentPolls)
	return &dependencies{
		coordinator: coordinator,
		store:       store,
		cleanup:     cleanup,
	}, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (outbound.GroupStore, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := repository.NewDatabaseConnection(ctx, repository.DatabaseConfig{
			Host:           cfg.Database.Host,
			Port:           cfg.Database.Port,
			Database:       cfg.Database.Name,
			Username:       cfg.Database.User,
			Password:       cfg.Database.Password,
			MaxConnections: cfg.Database.MaxConnections,
			SSLMode:        cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return repository.NewPostgreSQLGroupStore(pool), pool.Close, nil
	case "sqlite":
		store, err := sqlitestore.New(cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, func() {
			if closeErr := store.Close(); closeErr != nil {
				slogger.ErrorWithErrorNoCtx(closeErr, "Failed to close sqlite store", nil)
			}
		}, nil
	case "memory":
		return memstore.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}
}

func buildProvider(cfg *config.Config) (outbound.BatchProvider, error) {
	switch cfg.Provider.Mode {
	case "mock":
		return mock.NewBatchProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider mode: %s", cfg.Provider.Mode)
	}
}

func buildEventPublisher(cfg *config.Config) (outbound.EventPublisher, func(), error) {
	if !cfg.NATS.Enabled {
		return noopEventPublisher{}, nil, nil
	}
	publisher, err := messaging.NewNATSEventPublisher(cfg.NATS)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return publisher, publisher.Close, nil
}

// noopEventPublisher discards lifecycle events when no event bus is configured.
type noopEventPublisher struct{}

func (noopEventPublisher) PublishLifecycleEvent(context.Context, outbound.LifecycleEvent) error {
	return nil
}
