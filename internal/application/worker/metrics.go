// Package worker provides the cooperative polling worker that drives
// non-terminal groups to completion, with OpenTelemetry instrumentation.
package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names following OpenTelemetry semantic conventions.
const (
	PollCycleDurationName = "batchflow_poll_cycle_duration_seconds"
	GroupsRefreshedName   = "batchflow_groups_refreshed_total"
	GroupsCollectedName   = "batchflow_groups_collected_total"
	PollErrorsName        = "batchflow_poll_errors_total"
	JobsTerminalName      = "batchflow_jobs_terminal_total"
)

// Common attribute keys for consistent labeling.
const (
	AttrGroupStatus = "group_status"
	AttrJobStatus   = "job_status"
)

// OrchestrationMetrics collects polling-loop metrics.
type OrchestrationMetrics struct {
	cycleDuration   metric.Float64Histogram
	groupsRefreshed metric.Int64Counter
	groupsCollected metric.Int64Counter
	pollErrors      metric.Int64Counter
	jobsTerminal    metric.Int64Counter
}

// NewOrchestrationMetrics registers the worker's instruments on the global
// meter provider.
func NewOrchestrationMetrics() (*OrchestrationMetrics, error) {
	meter := otel.Meter("batchflow/worker", metric.WithInstrumentationVersion("1.0.0"))

	cycleDuration, err := meter.Float64Histogram(
		PollCycleDurationName,
		metric.WithDescription("Duration of one full poll cycle across all active groups"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	groupsRefreshed, err := meter.Int64Counter(
		GroupsRefreshedName,
		metric.WithDescription("Groups refreshed, labeled by resulting aggregate status"),
	)
	if err != nil {
		return nil, err
	}

	groupsCollected, err := meter.Int64Counter(
		GroupsCollectedName,
		metric.WithDescription("Groups whose completed results were collected"),
	)
	if err != nil {
		return nil, err
	}

	pollErrors, err := meter.Int64Counter(
		PollErrorsName,
		metric.WithDescription("Group refreshes that failed outright"),
	)
	if err != nil {
		return nil, err
	}

	jobsTerminal, err := meter.Int64Counter(
		JobsTerminalName,
		metric.WithDescription("Jobs observed entering a terminal state, labeled by status"),
	)
	if err != nil {
		return nil, err
	}

	return &OrchestrationMetrics{
		cycleDuration:   cycleDuration,
		groupsRefreshed: groupsRefreshed,
		groupsCollected: groupsCollected,
		pollErrors:      pollErrors,
		jobsTerminal:    jobsTerminal,
	}, nil
}

// RecordCycle records one completed poll cycle.
func (m *OrchestrationMetrics) RecordCycle(ctx context.Context, duration time.Duration) {
	m.cycleDuration.Record(ctx, duration.Seconds())
}

// RecordGroupRefreshed records a refreshed group and its aggregate status.
func (m *OrchestrationMetrics) RecordGroupRefreshed(ctx context.Context, status string) {
	m.groupsRefreshed.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrGroupStatus, status)))
}

// RecordGroupCollected records a collected group.
func (m *OrchestrationMetrics) RecordGroupCollected(ctx context.Context) {
	m.groupsCollected.Add(ctx, 1)
}

// RecordPollError records a group refresh failure.
func (m *OrchestrationMetrics) RecordPollError(ctx context.Context) {
	m.pollErrors.Add(ctx, 1)
}

// RecordJobTerminal records a job entering a terminal state.
func (m *OrchestrationMetrics) RecordJobTerminal(ctx context.Context, status string) {
	m.jobsTerminal.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrJobStatus, status)))
}
