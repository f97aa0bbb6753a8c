package matchqueue

import "time"

// TickJob advances one match when its countdown or round timer expires.
type TickJob struct {
	MatchID string    `json:"match_id"`
	DueAt   time.Time `json:"due_at"`
}

// Kind returns the job type identifier for River
func (TickJob) Kind() string { return "match_tick" }

// TransferRetryJob re-attempts the prize transfer of a settled match.
type TransferRetryJob struct {
	MatchID string    `json:"match_id"`
	DueAt   time.Time `json:"due_at"`
}

// Kind returns the job type identifier for River
func (TransferRetryJob) Kind() string { return "transfer_retry" }

// JobInfo represents information about a scheduled job (for debugging/monitoring)
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	MatchID     string `json:"match_id"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	CreatedAt   string `json:"created_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}
