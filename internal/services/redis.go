package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DispatchUpdatesChannel is the pub/sub channel dispatch events go to.
const DispatchUpdatesChannel = "dispatch:updates"

const availabilityTTL = time.Hour

// InitRedis connects to Redis and verifies the connection.
func InitRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisPublisher publishes events as JSON on a pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher publishes on DispatchUpdatesChannel.
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client, channel: DispatchUpdatesChannel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, data).Err()
}

var _ AvailabilityCache = (*RedisAvailabilityCache)(nil)

// RedisAvailabilityCache stores driver availability flags with a TTL.
type RedisAvailabilityCache struct {
	client redis.UniversalClient
}

func NewRedisAvailabilityCache(client redis.UniversalClient) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{client: client}
}

func availabilityKey(driverID uint) string {
	return fmt.Sprintf("driver:availability:%d", driverID)
}

// SetDriverAvailability stores driver availability status
func (c *RedisAvailabilityCache) SetDriverAvailability(ctx context.Context, driverID uint, available bool) error {
	value := "false"
	if available {
		value = "true"
	}
	return c.client.Set(ctx, availabilityKey(driverID), value, availabilityTTL).Err()
}

// GetDriverAvailability retrieves driver availability status
func (c *RedisAvailabilityCache) GetDriverAvailability(ctx context.Context, driverID uint) (bool, bool, error) {
	return parseAvailability(c.client.Get(ctx, availabilityKey(driverID)).Result())
}

func parseAvailability(value string, err error) (available, ok bool, _ error) {
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return value == "true", true, nil
}
