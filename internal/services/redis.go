package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// InitRedis initializes the Redis client
func InitRedis(redisURL string) error {
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	// Only publish the client once the connection is proven; a dead client
	// left behind would defeat the nil-checks on the mirror paths.
	client := redis.NewClient(opt)
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	RedisClient = client
	return nil
}

// SetProviderAvailability mirrors a provider's availability flag. The
// database row stays authoritative; the mirror only feeds cheap presence
// lookups.
func SetProviderAvailability(ctx context.Context, providerID uint, isAvailable bool) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("provider:availability:%d", providerID)
	value := "true"
	if !isAvailable {
		value = "false"
	}
	return RedisClient.Set(ctx, key, value, time.Hour).Err()
}

// GetProviderAvailability retrieves the mirrored availability flag.
func GetProviderAvailability(ctx context.Context, providerID uint) (bool, error) {
	if RedisClient == nil {
		return false, redis.Nil
	}
	key := fmt.Sprintf("provider:availability:%d", providerID)
	result, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result == "true", nil
}

// SetProviderPosition mirrors a provider's last reported position.
func SetProviderPosition(ctx context.Context, providerID uint, lat, lng float64) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("provider:position:%d", providerID)
	value := fmt.Sprintf("%f,%f", lat, lng)
	return RedisClient.Set(ctx, key, value, time.Hour).Err()
}
