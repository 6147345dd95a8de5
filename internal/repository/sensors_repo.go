package repository

import (
	"context"
	"time"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// SensorRepository is the narrow sensor-directory interface the ingest
// path depends on. Registration happens out-of-band through the admin API.
type SensorRepository interface {
	GetSensor(ctx context.Context, sensorID string) (*domain.Sensor, error)
	ListSensors(ctx context.Context, queueID int) ([]*domain.Sensor, error)
	RegisterSensor(ctx context.Context, sensor *domain.Sensor) (*domain.Sensor, error)
	MarkOnline(ctx context.Context, sensorID string, at time.Time) error

	// GetPartnerSensor returns the other sensor registered on the same
	// queue, or nil when the queue is single-sensored.
	GetPartnerSensor(ctx context.Context, queueID int, sensorID string) (*domain.Sensor, error)

	AppendReading(ctx context.Context, reading *domain.SensorReading) error
	RecentReadings(ctx context.Context, sensorID string, limit int) ([]*domain.SensorReading, error)

	// LatestReading returns the sensor's most recent sample not older than
	// maxAge, or nil when none qualifies.
	LatestReading(ctx context.Context, sensorID string, maxAge time.Duration) (*domain.SensorReading, error)
}
