package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "", cfg.MQTT.Broker)

	assert.Equal(t, float64(30), cfg.Notify.RateLimit)
	assert.Equal(t, 1000, cfg.Notify.BatchSize)
	assert.Equal(t, 3, cfg.Notify.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Notify.RetryDelay)
	assert.Equal(t, 300*time.Second, cfg.Notify.AttemptBudget)
	assert.Equal(t, 30, cfg.Notify.RetentionDays)
	assert.Equal(t, 120*time.Second, cfg.Notify.FingerprintBucket)

	assert.Equal(t, 60*time.Second, cfg.Consensus.FreshnessWindow)
	assert.Equal(t, 12, cfg.QueueCount)
	assert.Equal(t, "Europe/Kyiv", cfg.Timezone)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("TELEGRAM_RATE_LIMIT", "15")
	t.Setenv("SENSOR_FRESHNESS_WINDOW", "90")
	t.Setenv("QUEUE_COUNT", "6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, float64(15), cfg.Notify.RateLimit)
	assert.Equal(t, 90*time.Second, cfg.Consensus.FreshnessWindow)
	assert.Equal(t, 6, cfg.QueueCount)
}

func TestLoad_MalformedIntFallsBack(t *testing.T) {
	t.Setenv("NOTIFICATION_BATCH_SIZE", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Notify.BatchSize)
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "Europe/Kyiv"}
	loc := cfg.Location()
	require.NotNil(t, loc)

	cfg.Timezone = "Mars/Olympus"
	assert.Equal(t, time.UTC, cfg.Location())
}
