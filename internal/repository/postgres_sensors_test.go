package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

func setupSensorsMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresSensorsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresSensorsRepository(db, zap.NewNop())
}

func sensorRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"sensor_id", "queue_id", "priority", "is_online", "last_ping_at",
		"firmware_version", "ip_address", "sim_card", "created_at",
	})
}

func TestGetSensor_Success(t *testing.T) {
	db, mock, repo := setupSensorsMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM iot_sensors WHERE sensor_id = \$1`).
		WithArgs("ESP32_CH5_01").
		WillReturnRows(sensorRows().
			AddRow("ESP32_CH5_01", 5, 1, true, time.Now(), "1.2.0", "10.0.0.8", nil, time.Now()))

	s, err := repo.GetSensor(context.Background(), "ESP32_CH5_01")
	require.NoError(t, err)
	assert.Equal(t, 5, s.QueueID)
	assert.Equal(t, 1, s.Priority)
	require.NotNil(t, s.FirmwareVersion)
	assert.Equal(t, "1.2.0", *s.FirmwareVersion)
	assert.Nil(t, s.SIMCard)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSensor_NotFound(t *testing.T) {
	db, mock, repo := setupSensorsMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM iot_sensors WHERE sensor_id = \$1`).
		WithArgs("ESP32_UNKNOWN").
		WillReturnRows(sensorRows())

	_, err := repo.GetSensor(context.Background(), "ESP32_UNKNOWN")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterSensor_Idempotent(t *testing.T) {
	db, mock, repo := setupSensorsMock(t)
	defer db.Close()

	// Second registration of the same id: insert is a no-op, existing row
	// comes back.
	mock.ExpectExec(`INSERT INTO iot_sensors`).
		WithArgs("ESP32_CH5_02", 5, 2, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM iot_sensors WHERE sensor_id = \$1`).
		WithArgs("ESP32_CH5_02").
		WillReturnRows(sensorRows().
			AddRow("ESP32_CH5_02", 5, 2, false, nil, nil, nil, nil, time.Now()))

	s, err := repo.RegisterSensor(context.Background(), &domain.Sensor{
		SensorID: "ESP32_CH5_02", QueueID: 5, Priority: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "ESP32_CH5_02", s.SensorID)
	assert.False(t, s.IsOnline)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOnline_UnknownSensor(t *testing.T) {
	db, mock, repo := setupSensorsMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE iot_sensors SET is_online = true`).
		WithArgs("ESP32_UNKNOWN", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkOnline(context.Background(), "ESP32_UNKNOWN", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPartnerSensor_NoneConfigured(t *testing.T) {
	db, mock, repo := setupSensorsMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM iot_sensors`).
		WithArgs(7, "ESP32_CH7_01").
		WillReturnRows(sensorRows())

	partner, err := repo.GetPartnerSensor(context.Background(), 7, "ESP32_CH7_01")
	require.NoError(t, err)
	assert.Nil(t, partner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestReading_SilentPartner(t *testing.T) {
	db, mock, repo := setupSensorsMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM iot_data`).
		WithArgs("ESP32_CH5_02", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sensor_id", "is_power_on", "voltage", "frequency", "received_at"}))

	reading, err := repo.LatestReading(context.Background(), "ESP32_CH5_02", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, reading)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAndRecentReadings(t *testing.T) {
	db, mock, repo := setupSensorsMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`INSERT INTO iot_data`).
		WithArgs("ESP32_CH5_01", false, nil, nil, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.AppendReading(context.Background(), &domain.SensorReading{
		SensorID: "ESP32_CH5_01", IsPowerOn: false, ReceivedAt: at,
	}))

	mock.ExpectQuery(`SELECT (.+) FROM iot_data`).
		WithArgs("ESP32_CH5_01", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sensor_id", "is_power_on", "voltage", "frequency", "received_at"}).
			AddRow(1, "ESP32_CH5_01", false, nil, nil, at))

	readings, err := repo.RecentReadings(context.Background(), "ESP32_CH5_01", 0)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.False(t, readings[0].IsPowerOn)

	assert.NoError(t, mock.ExpectationsWereMet())
}
