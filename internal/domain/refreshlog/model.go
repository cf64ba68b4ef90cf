package refreshlog

import "time"

const (
	PathFast = "fast"
	PathSlow = "slow"
)

// Event is an orchestrator heartbeat; readers use the latest row per path to
// display staleness.
type Event struct {
	OccurredAt time.Time
	Path       string
}

// BatchRun is the crash-safe record of one post-deadline batch attempt.
type BatchRun struct {
	ID            int64
	GameweekID    int
	StartedAt     time.Time
	FinishedAt    *time.Time
	Success       *bool
	FailureReason string
	// PhaseBreakdown maps phase name to elapsed duration.
	PhaseBreakdown map[string]time.Duration
}
