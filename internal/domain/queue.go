package domain

import "time"

// Change sources recorded on queues.last_change_source.
const (
	SourceIoT         = "iot"
	SourceCrowdReport = "crowdreport"
	SourceManual      = "manual"
)

// MaxQueueID bounds the provisioned queue range (queues 1..12).
const MaxQueueID = 12

// Queue is the per-zone power state (queues table). One row per queue,
// created at provisioning with power ON; mutated only by a confirmed
// quorum decision or a manual override.
type Queue struct {
	QueueID int    `db:"queue_id"` // 1..12, PRIMARY KEY
	Name    string `db:"name"`     // e.g. "Черга 5"

	IsPowerOn        bool       `db:"is_power_on"`
	LastChangeAt     *time.Time `db:"last_change_at"`     // nullable until first transition
	LastChangeSource *string    `db:"last_change_source"` // 'iot', 'crowdreport', 'manual'

	TotalOutages       int `db:"total_outages"`
	TotalUptimeMinutes int `db:"total_uptime_minutes"`

	CreatedAt time.Time `db:"created_at"`
}

// ValidQueueID reports whether id falls in the provisioned range.
func ValidQueueID(id int) bool {
	return id >= 1 && id <= MaxQueueID
}

// ToJSON converts the queue to an HTTP response map.
func (q *Queue) ToJSON() map[string]any {
	m := map[string]any{
		"queue_id":             q.QueueID,
		"name":                 q.Name,
		"is_power_on":          q.IsPowerOn,
		"total_outages":        q.TotalOutages,
		"total_uptime_minutes": q.TotalUptimeMinutes,
	}
	if q.LastChangeAt != nil {
		m["last_change_at"] = q.LastChangeAt
	} else {
		m["last_change_at"] = nil
	}
	if q.LastChangeSource != nil {
		m["last_change_source"] = *q.LastChangeSource
	} else {
		m["last_change_source"] = nil
	}
	return m
}
