package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobStatus(t *testing.T) {
	t.Run("should accept all defined statuses", func(t *testing.T) {
		for _, status := range AllJobStatuses() {
			parsed, err := NewJobStatus(status.String())
			require.NoError(t, err)
			assert.Equal(t, status, parsed)
		}
	})

	t.Run("should reject unknown status strings", func(t *testing.T) {
		_, err := NewJobStatus("exploded")
		require.Error(t, err)
	})
}

func TestJobStatusIsTerminal(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobStatusCompleted: true,
		JobStatusFailed:    true,
		JobStatusCancelled: true,
	}
	for _, status := range AllJobStatuses() {
		assert.Equal(t, terminal[status], status.IsTerminal(), "status %s", status)
	}
}

func TestJobStatusCanTransitionTo(t *testing.T) {
	t.Run("should allow the forward lifecycle", func(t *testing.T) {
		testCases := []struct {
			from, to JobStatus
		}{
			{JobStatusCreated, JobStatusSubmitted},
			{JobStatusCreated, JobStatusFailed},
			{JobStatusSubmitted, JobStatusValidating},
			{JobStatusSubmitted, JobStatusCompleted},
			{JobStatusValidating, JobStatusInProgress},
			{JobStatusInProgress, JobStatusFinalizing},
			{JobStatusInProgress, JobStatusFailed},
			{JobStatusFinalizing, JobStatusCompleted},
		}
		for _, tc := range testCases {
			assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
		}
	})

	t.Run("should allow cancellation from any non-terminal state", func(t *testing.T) {
		for _, status := range AllJobStatuses() {
			if status.IsTerminal() {
				continue
			}
			assert.True(t, status.CanTransitionTo(JobStatusCancelled), "from %s", status)
		}
	})

	t.Run("should reject backwards transitions", func(t *testing.T) {
		testCases := []struct {
			from, to JobStatus
		}{
			{JobStatusSubmitted, JobStatusCreated},
			{JobStatusInProgress, JobStatusValidating},
			{JobStatusInProgress, JobStatusSubmitted},
			{JobStatusFinalizing, JobStatusInProgress},
		}
		for _, tc := range testCases {
			assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
		}
	})

	t.Run("should reject any transition out of terminal states", func(t *testing.T) {
		for _, from := range []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled} {
			for _, to := range AllJobStatuses() {
				assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
			}
		}
	})
}

func TestFromProviderStatus(t *testing.T) {
	t.Run("should map known provider vocabulary", func(t *testing.T) {
		testCases := []struct {
			provider string
			want     JobStatus
		}{
			{"validating", JobStatusValidating},
			{"pending", JobStatusValidating},
			{"in_progress", JobStatusInProgress},
			{"running", JobStatusInProgress},
			{"processing", JobStatusInProgress},
			{"cancelling", JobStatusInProgress},
			{"finalizing", JobStatusFinalizing},
			{"completed", JobStatusCompleted},
			{"succeeded", JobStatusCompleted},
			{"ended", JobStatusCompleted},
			{"failed", JobStatusFailed},
			{"errored", JobStatusFailed},
			{"expired", JobStatusFailed},
			{"cancelled", JobStatusCancelled},
			{"canceled", JobStatusCancelled},
		}
		for _, tc := range testCases {
			assert.Equal(t, tc.want, FromProviderStatus(tc.provider), "provider status %q", tc.provider)
		}
	})

	t.Run("should map unrecognized statuses to in_progress", func(t *testing.T) {
		for _, unknown := range []string{"", "warming_up", "COMPLETED", "done?"} {
			mapped := FromProviderStatus(unknown)
			assert.Equal(t, JobStatusInProgress, mapped, "provider status %q", unknown)
			assert.False(t, mapped.IsTerminal())
		}
	})
}
