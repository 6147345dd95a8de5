package domain

import (
	"fmt"
	"time"
)

// Notification kinds.
const (
	NotifyPowerOn  = "power_on"
	NotifyPowerOff = "power_off"
	NotifyWarning  = "warning"
	NotifySchedule = "schedule"
	NotifyCustom   = "custom"
)

// Notification job statuses.
const (
	JobStatusQueued   = "queued"
	JobStatusInFlight = "in_flight"
	JobStatusDone     = "done"
	JobStatusFailed   = "failed"
)

// Notification is one dispatch job audit record (notifications table).
// Fingerprint deduplicates jobs spawned by the same confirmed transition:
// two near-simultaneous commits of one logical event collapse onto one row.
type Notification struct {
	ID          string  `db:"id"` // UUID
	Fingerprint string  `db:"fingerprint"`
	QueueID     *int    `db:"queue_id"` // nil = broadcast to all queues
	Kind        string  `db:"kind"`
	Message     string  `db:"message"`
	TierFilter  []string `db:"tier_filter"` // empty = no tier restriction

	Status       string     `db:"status"`
	SuccessCount int        `db:"success_count"`
	FailCount    int        `db:"fail_count"`
	CreatedAt    time.Time  `db:"created_at"`
	SentAt       *time.Time `db:"sent_at"`
}

// TransitionFingerprint builds the dedupe key for a confirmed transition.
// The timestamp is truncated to a coarse bucket so retried or racing
// commits of the same event map to the same fingerprint.
func TransitionFingerprint(queueID int, isPowerOn bool, at time.Time, bucket time.Duration) string {
	state := "off"
	if isPowerOn {
		state = "on"
	}
	return fmt.Sprintf("q%d:%s:%d", queueID, state, at.Unix()/int64(bucket.Seconds()))
}

// DispatchResult are aggregate delivery counts for one job attempt.
// Errors holds at most the first sampled failures; full detail is logged.
type DispatchResult struct {
	Total   int             `json:"total"`
	Success int             `json:"success"`
	Failed  int             `json:"failed"`
	Errors  []DispatchError `json:"errors"`
}

// DispatchError describes one failed recipient send.
type DispatchError struct {
	UserID int64  `json:"user_id"`
	Error  string `json:"error"`
}
