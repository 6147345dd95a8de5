package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig is the Postgres connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig is the Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig is the optional sensor MQTT ingest configuration. The
// consumer only starts when Broker is non-empty.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Config is the full service configuration, loaded from environment
// variables with development defaults.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	HTTP struct {
		Addr string
	}

	// Shared-secret auth for the two caller classes.
	IoTAPIKey     string
	AdminAPIToken string

	Telegram struct {
		BotToken string
		APIBase  string // overridable for tests
	}

	Notify struct {
		RateLimit         float64       // messages/second ceiling
		BatchSize         int
		MaxRetries        int
		RetryDelay        time.Duration
		AttemptBudget     time.Duration // wall clock per dispatch attempt
		RetentionDays     int
		FingerprintBucket time.Duration // coarse dedupe bucket
	}

	Consensus struct {
		FreshnessWindow time.Duration // max corroboration age
	}

	QueueCount int
	Timezone   string

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "svitlobot")
	cfg.Database.Password = getEnv("DB_PASSWORD", "svitlobot")
	cfg.Database.Database = getEnv("DB_NAME", "svitlobot")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "svitlobot-backend")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "svitlobot/sensors/+/data")
	cfg.MQTT.QoS = 1

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8000")

	cfg.IoTAPIKey = getEnv("IOT_API_KEY", "dev_iot_key_12345")
	cfg.AdminAPIToken = getEnv("ADMIN_API_TOKEN", "dev_admin_token_12345")

	cfg.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.Telegram.APIBase = getEnv("TELEGRAM_API_BASE", "https://api.telegram.org")

	cfg.Notify.RateLimit = float64(getEnvInt("TELEGRAM_RATE_LIMIT", 30))
	cfg.Notify.BatchSize = getEnvInt("NOTIFICATION_BATCH_SIZE", 1000)
	cfg.Notify.MaxRetries = getEnvInt("NOTIFICATION_RETRY_ATTEMPTS", 3)
	cfg.Notify.RetryDelay = time.Duration(getEnvInt("NOTIFICATION_RETRY_DELAY", 60)) * time.Second
	cfg.Notify.AttemptBudget = time.Duration(getEnvInt("NOTIFICATION_ATTEMPT_BUDGET", 300)) * time.Second
	cfg.Notify.RetentionDays = getEnvInt("NOTIFICATION_RETENTION_DAYS", 30)
	cfg.Notify.FingerprintBucket = time.Duration(getEnvInt("NOTIFICATION_FINGERPRINT_BUCKET", 120)) * time.Second

	cfg.Consensus.FreshnessWindow = time.Duration(getEnvInt("SENSOR_FRESHNESS_WINDOW", 60)) * time.Second

	cfg.QueueCount = getEnvInt("QUEUE_COUNT", 12)
	cfg.Timezone = getEnv("TIMEZONE", "Europe/Kyiv")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
