package valueobject

// GroupStatus represents the aggregate status of a job group, derived from
// the statuses of its member jobs. It is never stored; callers recompute it
// from current job states so a stale aggregate can never be observed.
type GroupStatus string

// Group status constants.
const (
	GroupStatusSubmitted      GroupStatus = "submitted"
	GroupStatusPartial        GroupStatus = "partial"
	GroupStatusCompleted      GroupStatus = "completed"
	GroupStatusPartialFailure GroupStatus = "partial_failure"
	GroupStatusFailed         GroupStatus = "failed"
	GroupStatusCancelled      GroupStatus = "cancelled"
)

// String returns the string representation of the status.
func (s GroupStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no member job can transition further.
func (s GroupStatus) IsTerminal() bool {
	switch s {
	case GroupStatusCompleted, GroupStatusPartialFailure, GroupStatusFailed, GroupStatusCancelled:
		return true
	default:
		return false
	}
}

// DeriveGroupStatus computes the aggregate status from member job statuses.
//
//   - all jobs non-terminal            -> submitted
//   - some terminal, some not          -> partial
//   - all completed                    -> completed
//   - all failed                       -> failed
//   - all cancelled                    -> cancelled
//   - any other all-terminal mix       -> partial_failure
//
// A mix of completed and cancelled jobs is a valid terminal outcome and is
// reported as partial_failure rather than an error.
func DeriveGroupStatus(statuses []JobStatus) GroupStatus {
	if len(statuses) == 0 {
		return GroupStatusSubmitted
	}

	terminal := 0
	completed := 0
	failed := 0
	cancelled := 0
	for _, s := range statuses {
		if !s.IsTerminal() {
			continue
		}
		terminal++
		switch s {
		case JobStatusCompleted:
			completed++
		case JobStatusFailed:
			failed++
		case JobStatusCancelled:
			cancelled++
		}
	}

	switch {
	case terminal == 0:
		return GroupStatusSubmitted
	case terminal < len(statuses):
		return GroupStatusPartial
	case completed == len(statuses):
		return GroupStatusCompleted
	case failed == len(statuses):
		return GroupStatusFailed
	case cancelled == len(statuses):
		return GroupStatusCancelled
	default:
		return GroupStatusPartialFailure
	}
}
