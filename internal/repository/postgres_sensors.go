package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// PostgresSensorsRepository implements SensorRepository on iot_sensors and
// iot_data.
type PostgresSensorsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresSensorsRepository(db *sql.DB, logger *zap.Logger) *PostgresSensorsRepository {
	return &PostgresSensorsRepository{db: db, logger: logger}
}

var _ SensorRepository = (*PostgresSensorsRepository)(nil)

const sensorColumns = `sensor_id, queue_id, priority, is_online, last_ping_at,
	firmware_version, ip_address, sim_card, created_at`

func scanSensor(row interface{ Scan(...any) error }) (*domain.Sensor, error) {
	var s domain.Sensor
	if err := row.Scan(
		&s.SensorID, &s.QueueID, &s.Priority, &s.IsOnline, &s.LastPingAt,
		&s.FirmwareVersion, &s.IPAddress, &s.SIMCard, &s.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresSensorsRepository) GetSensor(ctx context.Context, sensorID string) (*domain.Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM iot_sensors WHERE sensor_id = $1`
	s, err := scanSensor(r.db.QueryRowContext(ctx, query, sensorID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sensor %s: %w", sensorID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get sensor: %w", err)
	}
	return s, nil
}

// ListSensors returns all sensors, or only a queue's sensors when queueID
// is positive, ordered by queue then priority.
func (r *PostgresSensorsRepository) ListSensors(ctx context.Context, queueID int) ([]*domain.Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM iot_sensors`
	args := []any{}
	if queueID > 0 {
		query += ` WHERE queue_id = $1`
		args = append(args, queueID)
	}
	query += ` ORDER BY queue_id, priority`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	defer rows.Close()

	var sensors []*domain.Sensor
	for rows.Next() {
		s, err := scanSensor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}
		sensors = append(sensors, s)
	}
	return sensors, rows.Err()
}

// RegisterSensor inserts the sensor, returning the existing row untouched
// when the id is already registered (idempotent ESP32 provisioning).
func (r *PostgresSensorsRepository) RegisterSensor(ctx context.Context, sensor *domain.Sensor) (*domain.Sensor, error) {
	query := `
		INSERT INTO iot_sensors (sensor_id, queue_id, priority, is_online, firmware_version, ip_address, sim_card)
		VALUES ($1, $2, $3, false, $4, $5, $6)
		ON CONFLICT (sensor_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query,
		sensor.SensorID, sensor.QueueID, sensor.Priority,
		sensor.FirmwareVersion, sensor.IPAddress, sensor.SIMCard,
	); err != nil {
		return nil, fmt.Errorf("register sensor: %w", err)
	}
	return r.GetSensor(ctx, sensor.SensorID)
}

func (r *PostgresSensorsRepository) MarkOnline(ctx context.Context, sensorID string, at time.Time) error {
	query := `UPDATE iot_sensors SET is_online = true, last_ping_at = $2 WHERE sensor_id = $1`
	res, err := r.db.ExecContext(ctx, query, sensorID, at)
	if err != nil {
		return fmt.Errorf("mark sensor online: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sensor %s: %w", sensorID, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresSensorsRepository) GetPartnerSensor(ctx context.Context, queueID int, sensorID string) (*domain.Sensor, error) {
	query := `SELECT ` + sensorColumns + `
		FROM iot_sensors
		WHERE queue_id = $1 AND sensor_id <> $2
		LIMIT 1`
	s, err := scanSensor(r.db.QueryRowContext(ctx, query, queueID, sensorID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get partner sensor: %w", err)
	}
	return s, nil
}

func (r *PostgresSensorsRepository) AppendReading(ctx context.Context, reading *domain.SensorReading) error {
	query := `
		INSERT INTO iot_data (sensor_id, is_power_on, voltage, frequency, received_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query,
		reading.SensorID, reading.IsPowerOn, reading.Voltage, reading.Frequency, reading.ReceivedAt,
	); err != nil {
		return fmt.Errorf("append reading: %w", err)
	}
	return nil
}

func (r *PostgresSensorsRepository) RecentReadings(ctx context.Context, sensorID string, limit int) ([]*domain.SensorReading, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT id, sensor_id, is_power_on, voltage, frequency, received_at
		FROM iot_data
		WHERE sensor_id = $1
		ORDER BY received_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, sensorID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent readings: %w", err)
	}
	defer rows.Close()

	var readings []*domain.SensorReading
	for rows.Next() {
		var d domain.SensorReading
		if err := rows.Scan(&d.ID, &d.SensorID, &d.IsPowerOn, &d.Voltage, &d.Frequency, &d.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		readings = append(readings, &d)
	}
	return readings, rows.Err()
}

// LatestReading is the corroboration lookup: the newest sample within
// maxAge, nil when the partner has been silent for longer than that.
func (r *PostgresSensorsRepository) LatestReading(ctx context.Context, sensorID string, maxAge time.Duration) (*domain.SensorReading, error) {
	query := `
		SELECT id, sensor_id, is_power_on, voltage, frequency, received_at
		FROM iot_data
		WHERE sensor_id = $1 AND received_at > $2
		ORDER BY received_at DESC
		LIMIT 1`
	var d domain.SensorReading
	err := r.db.QueryRowContext(ctx, query, sensorID, time.Now().Add(-maxAge)).Scan(
		&d.ID, &d.SensorID, &d.IsPowerOn, &d.Voltage, &d.Frequency, &d.ReceivedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest reading: %w", err)
	}
	return &d, nil
}
