// Package statecache keeps the last known device states and sensor reading
// in Redis so API and bot handlers can answer without touching hardware or
// racing the control loop.
package statecache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Is0cre/growtent/internal/models"
)

const (
	deviceStateKey = "growtent:device_states"
	readingKey     = "growtent:latest_reading"
	readingTTL     = 10 * time.Minute
)

// Cache wraps the Redis client.
type Cache struct {
	client *redis.Client
}

// New creates a cache against the given Redis address.
func New(addr string) *Cache {
	return &Cache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping verifies connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetDeviceState records one device's last known state.
func (c *Cache) SetDeviceState(ctx context.Context, device string, on bool) error {
	val := "0"
	if on {
		val = "1"
	}
	return c.client.HSet(ctx, deviceStateKey, device, val).Err()
}

// DeviceStates returns all cached device states.
func (c *Cache) DeviceStates(ctx context.Context) (map[string]bool, error) {
	raw, err := c.client.HGetAll(ctx, deviceStateKey).Result()
	if err != nil {
		return nil, err
	}
	states := make(map[string]bool, len(raw))
	for device, val := range raw {
		states[device] = val == "1"
	}
	return states, nil
}

// SetLatestReading caches the most recent sensor sample.
func (c *Cache) SetLatestReading(ctx context.Context, r *models.SensorReading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, readingKey, payload, readingTTL).Err()
}

// LatestReading returns the cached sample, or nil when none is cached.
func (c *Cache) LatestReading(ctx context.Context) (*models.SensorReading, error) {
	raw, err := c.client.Get(ctx, readingKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r models.SensorReading
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
