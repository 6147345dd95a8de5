package domain

import "time"

// Crowd report kinds and moderation statuses.
const (
	ReportPowerOn  = "power_on"
	ReportPowerOff = "power_off"

	ReportStatusPending   = "pending"
	ReportStatusConfirmed = "confirmed"
	ReportStatusRejected  = "rejected"
)

// CrowdReport is a user-submitted power observation (crowdreports table,
// append-only). Reports are advisory: they never drive queue transitions.
type CrowdReport struct {
	ID        int64  `db:"id"`
	UserID    int64  `db:"user_id"`
	AddressID int64  `db:"address_id"`
	QueueID   int    `db:"queue_id"`
	ReportType string `db:"report_type"` // 'power_on' or 'power_off'

	ReportedAt time.Time `db:"reported_at"`

	Status      string     `db:"status"` // 'pending', 'confirmed', 'rejected'
	ModeratedAt *time.Time `db:"moderated_at"`
	ModeratedBy *int64     `db:"moderated_by"`

	Latitude  *float64 `db:"latitude"`
	Longitude *float64 `db:"longitude"`
}

// ValidReportType reports whether t is a known report kind.
func ValidReportType(t string) bool {
	return t == ReportPowerOn || t == ReportPowerOff
}

// CrowdReportStats are rolling on/off counts for one queue.
type CrowdReportStats struct {
	QueueID       int       `json:"queue_id"`
	OnCount       int       `json:"on_count"`
	OffCount      int       `json:"off_count"`
	PeriodMinutes int       `json:"period_minutes"`
	LastUpdate    time.Time `json:"last_update"`
}
