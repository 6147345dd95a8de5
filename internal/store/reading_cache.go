package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrMiss is returned when no cached reading exists for a sensor.
var ErrMiss = errors.New("cache miss")

// CachedReading is the one slot kept per sensor: its latest sample and
// when it arrived.
type CachedReading struct {
	SensorID   string    `json:"sensor_id"`
	IsPowerOn  bool      `json:"is_power_on"`
	ReceivedAt time.Time `json:"received_at"`
}

// ReadingCache holds the latest reading per sensor in Redis, one key per
// sensor with TTL equal to the corroboration freshness window. The quorum
// check reads the partner's slot from here instead of scanning iot_data;
// an expired key means "no fresh corroboration" by construction.
type ReadingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewReadingCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ReadingCache {
	return &ReadingCache{client: client, ttl: ttl, logger: logger}
}

func readingKey(sensorID string) string {
	return "svitlobot:sensor:" + sensorID + ":latest"
}

// Put overwrites the sensor's slot and restarts its TTL.
func (c *ReadingCache) Put(ctx context.Context, reading CachedReading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	if err := c.client.Set(ctx, readingKey(reading.SensorID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache reading: %w", err)
	}
	return nil
}

// Latest returns the sensor's cached reading, ErrMiss when the slot is
// empty or expired.
func (c *ReadingCache) Latest(ctx context.Context, sensorID string) (*CachedReading, error) {
	val, err := c.client.Get(ctx, readingKey(sensorID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("get cached reading: %w", err)
	}
	var reading CachedReading
	if err := json.Unmarshal([]byte(val), &reading); err != nil {
		return nil, fmt.Errorf("unmarshal cached reading: %w", err)
	}
	return &reading, nil
}
