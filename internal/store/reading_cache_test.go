package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *ReadingCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewReadingCache(client, ttl, zap.NewNop())
}

func TestReadingCache_PutAndLatest(t *testing.T) {
	_, cache := setupCache(t, time.Minute)
	ctx := context.Background()

	at := time.Now().Truncate(time.Second)
	require.NoError(t, cache.Put(ctx, CachedReading{
		SensorID: "ESP32_CH5_01", IsPowerOn: false, ReceivedAt: at,
	}))

	got, err := cache.Latest(ctx, "ESP32_CH5_01")
	require.NoError(t, err)
	assert.Equal(t, "ESP32_CH5_01", got.SensorID)
	assert.False(t, got.IsPowerOn)
	assert.True(t, got.ReceivedAt.Equal(at))
}

func TestReadingCache_Miss(t *testing.T) {
	_, cache := setupCache(t, time.Minute)

	_, err := cache.Latest(context.Background(), "ESP32_UNKNOWN")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestReadingCache_ExpiresAfterFreshnessWindow(t *testing.T) {
	mr, cache := setupCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, CachedReading{
		SensorID: "ESP32_CH5_02", IsPowerOn: true, ReceivedAt: time.Now(),
	}))

	mr.FastForward(61 * time.Second)

	_, err := cache.Latest(ctx, "ESP32_CH5_02")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestReadingCache_PutOverwrites(t *testing.T) {
	_, cache := setupCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, CachedReading{SensorID: "s1", IsPowerOn: true, ReceivedAt: time.Now()}))
	require.NoError(t, cache.Put(ctx, CachedReading{SensorID: "s1", IsPowerOn: false, ReceivedAt: time.Now()}))

	got, err := cache.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, got.IsPowerOn)
}
