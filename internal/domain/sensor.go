package domain

import "time"

// Sensor domain model (iot_sensors table).
// Priority is fixed at registration: 1 is the primary sensor of a queue,
// 2 the corroborating one.
type Sensor struct {
	SensorID string `db:"sensor_id"` // e.g. "ESP32_CH5_01", PRIMARY KEY
	QueueID  int    `db:"queue_id"`  // NOT NULL
	Priority int    `db:"priority"`  // CHECK IN (1, 2)

	IsOnline   bool       `db:"is_online"`
	LastPingAt *time.Time `db:"last_ping_at"` // nullable

	FirmwareVersion *string `db:"firmware_version"` // nullable
	IPAddress       *string `db:"ip_address"`       // nullable
	SIMCard         *string `db:"sim_card"`         // nullable

	CreatedAt time.Time `db:"created_at"`
}

// ToJSON converts the sensor to an HTTP response map.
func (s *Sensor) ToJSON() map[string]any {
	m := map[string]any{
		"sensor_id": s.SensorID,
		"queue_id":  s.QueueID,
		"priority":  s.Priority,
		"is_online": s.IsOnline,
	}
	if s.LastPingAt != nil {
		m["last_ping_at"] = s.LastPingAt
	} else {
		m["last_ping_at"] = nil
	}
	if s.FirmwareVersion != nil {
		m["firmware_version"] = *s.FirmwareVersion
	}
	return m
}

// SensorReading is one telemetry sample (iot_data table, append-only).
type SensorReading struct {
	ID         int64     `db:"id"`
	SensorID   string    `db:"sensor_id"`
	IsPowerOn  bool      `db:"is_power_on"`
	Voltage    *float64  `db:"voltage"`   // PRO sensors only
	Frequency  *float64  `db:"frequency"` // PRO sensors only
	ReceivedAt time.Time `db:"received_at"`
}
