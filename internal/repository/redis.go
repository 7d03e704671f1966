// Package repository holds the admin session stores: Redis when configured,
// process memory otherwise, and a failover wrapper combining both.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pretgo/internal/config"
	"pretgo/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix   = "pretgo:session:"
	rateLimitKeyPrefix = "pretgo:ratelimit:"
)

var errNilClient = errors.New("redis client is nil")

type RedisSessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisClient builds a client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

// GetSession returns nil without error when the token is unknown or expired.
func (r *RedisSessionStore) GetSession(ctx context.Context, token string) (*models.AdminSession, error) {
	if r.client == nil {
		return nil, errNilClient
	}
	val, err := r.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var s models.AdminSession
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if s.Expired(r.now()) {
		return nil, nil
	}
	return &s, nil
}

// SaveSession stores the session until its ExpiresAt.
func (r *RedisSessionStore) SaveSession(ctx context.Context, s *models.AdminSession) error {
	if r.client == nil {
		return errNilClient
	}
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", s.Token)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+s.Token, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in redis: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) DeleteSession(ctx context.Context, token string) error {
	if r.client == nil {
		return errNilClient
	}
	if err := r.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// CheckRateLimit counts one attempt for key and reports whether it is still
// within limit for the current window.
func (r *RedisSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNilClient
	}
	k := rateLimitKeyPrefix + key
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return count <= int64(limit), nil
}

// Ping checks the connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
