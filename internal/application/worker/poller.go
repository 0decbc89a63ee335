package worker

import (
	"context"
	"time"

	"batchflow/internal/application/common/retry"
	"batchflow/internal/application/common/slogger"
	"batchflow/internal/application/service"

	"github.com/google/uuid"
)

// Poller drives all active groups toward completion on a fixed interval.
// It is a cooperative loop: each cycle refreshes every active group once,
// optionally collects newly completed results, and goes back to sleep.
// Single-writer semantics hold because only the poller touches jobs while
// it runs.
type Poller struct {
	coordinator  *service.GroupCoordinator
	interval     time.Duration
	autoCollect  bool
	metrics      *OrchestrationMetrics
	retrier      *retry.Executor
	seenTerminal map[uuid.UUID]bool
}

// NewPoller creates a Poller. metrics may be nil to disable instrumentation.
func NewPoller(
	coordinator *service.GroupCoordinator,
	interval time.Duration,
	autoCollect bool,
	metrics *OrchestrationMetrics,
) *Poller {
	return &Poller{
		coordinator:  coordinator,
		interval:     interval,
		autoCollect:  autoCollect,
		metrics:      metrics,
		retrier:      retry.NewExecutor(retry.DefaultConfig()),
		seenTerminal: make(map[uuid.UUID]bool),
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	slogger.Info(ctx, "Polling worker started", slogger.Field("interval", p.interval.String()))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunCycle(ctx); err != nil {
			slogger.ErrorWithError(ctx, err, "Poll cycle failed", nil)
		}
		select {
		case <-ctx.Done():
			slogger.Info(ctx, "Polling worker stopping", nil)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle refreshes every active group once and returns how many groups
// were processed. Per-group failures are logged and counted, never fatal
// to the cycle.
func (p *Poller) RunCycle(ctx context.Context) (int, error) {
	start := time.Now()

	groups, err := p.coordinator.ListActiveGroups(ctx)
	if err != nil {
		return 0, err
	}

	for _, group := range groups {
		groupID := group.ID()
		var report *service.GroupStatusReport
		err := p.retrier.Execute(ctx, func(ctx context.Context) error {
			var refreshErr error
			report, refreshErr = p.coordinator.RefreshGroup(ctx, groupID)
			return refreshErr
		})
		if err != nil {
			slogger.ErrorWithError(ctx, err, "Failed to refresh group",
				slogger.Field("group_id", groupID.String()))
			if p.metrics != nil {
				p.metrics.RecordPollError(ctx)
			}
			continue
		}

		p.observe(ctx, report)

		if p.autoCollect && report.CompletedBatches > 0 {
			if _, err := p.coordinator.CollectGroup(ctx, groupID); err != nil {
				slogger.ErrorWithError(ctx, err, "Failed to collect group results",
					slogger.Field("group_id", groupID.String()))
			} else if p.metrics != nil {
				p.metrics.RecordGroupCollected(ctx)
			}
		}
	}

	if p.metrics != nil {
		p.metrics.RecordCycle(ctx, time.Since(start))
	}
	slogger.Debug(ctx, "Poll cycle finished", slogger.Fields2(
		"active_groups", len(groups),
		"duration", time.Since(start).String(),
	))
	return len(groups), nil
}

func (p *Poller) observe(ctx context.Context, report *service.GroupStatusReport) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordGroupRefreshed(ctx, report.Status.String())
	for _, job := range report.Jobs {
		if job.Status.IsTerminal() && !p.seenTerminal[job.JobID] {
			p.seenTerminal[job.JobID] = true
			p.metrics.RecordJobTerminal(ctx, job.Status.String())
		}
	}
}
