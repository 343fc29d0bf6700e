package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rma-advocacia/client-portal/internal/models"
)

const redisKeyPrefix = "portal:engagement:"

// RedisRepository stores each engagement as a JSON value with a TTL.
// Redis expires idle sessions itself, so ListIdle finds nothing.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisRepository connects to Redis and verifies the connection
func NewRedisRepository(ctx context.Context, cfg RedisConfig) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisRepositoryWithClient(client, cfg.TTL), nil
}

// NewRedisRepositoryWithClient wraps an existing client
func NewRedisRepositoryWithClient(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

// redisRecord carries the client id, which the engagement JSON omits
type redisRecord struct {
	ClientID   string             `json:"client_id"`
	Engagement *models.Engagement `json:"engagement"`
}

func redisKey(clientID string) string {
	return redisKeyPrefix + clientID
}

// Get retrieves the engagement for a client
func (r *RedisRepository) Get(ctx context.Context, clientID string) (*models.Engagement, error) {
	data, err := r.client.Get(ctx, redisKey(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get engagement: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal engagement: %w", err)
	}
	if rec.Engagement == nil {
		return nil, fmt.Errorf("corrupt engagement record for %s", models.MaskCode(clientID))
	}
	rec.Engagement.ClientID = clientID
	return rec.Engagement, nil
}

// Save writes the engagement and refreshes its TTL
func (r *RedisRepository) Save(ctx context.Context, e *models.Engagement) error {
	data, err := json.Marshal(redisRecord{ClientID: e.ClientID, Engagement: e})
	if err != nil {
		return fmt.Errorf("failed to marshal engagement: %w", err)
	}

	if err := r.client.Set(ctx, redisKey(e.ClientID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save engagement: %w", err)
	}
	return nil
}

// Delete removes a client's engagement
func (r *RedisRepository) Delete(ctx context.Context, clientID string) error {
	n, err := r.client.Del(ctx, redisKey(clientID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete engagement: %w", err)
	}
	if n == 0 {
		return ErrEngagementNotFound
	}
	return nil
}

// ListIdle returns nothing; keys expire on their own and the manager ends
// the feeds of an expired session on its next load
func (r *RedisRepository) ListIdle(ctx context.Context, before time.Time) ([]string, error) {
	return nil, nil
}

// Ping verifies Redis connectivity
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
