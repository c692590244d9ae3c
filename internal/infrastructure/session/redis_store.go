package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/manorfm/connectM/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps transient auth sessions and flashes in Redis
type RedisStore struct {
	client      *redis.Client
	authPrefix  string
	flashPrefix string
	flashTTL    time.Duration
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redis.Client, flashTTL time.Duration) *RedisStore {
	return &RedisStore{
		client:      client,
		authPrefix:  "connect:auth:",
		flashPrefix: "connect:flash:",
		flashTTL:    flashTTL,
	}
}

func (r *RedisStore) PutAuthSession(ctx context.Context, key string, s *domain.TransientAuthSession) error {
	if key == "" {
		return fmt.Errorf("session: missing key")
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	return r.client.Set(ctx, r.authPrefix+key, data, ttl).Err()
}

func (r *RedisStore) TakeAuthSession(ctx context.Context, key string) (*domain.TransientAuthSession, error) {
	val, err := r.client.GetDel(ctx, r.authPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrAuthSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var s domain.TransientAuthSession
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}

	return &s, nil
}

func (r *RedisStore) PutFlash(ctx context.Context, sessionID string, f *domain.Flash) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("session: failed to marshal flash: %w", err)
	}

	return r.client.Set(ctx, r.flashPrefix+sessionID, data, r.flashTTL).Err()
}

func (r *RedisStore) TakeFlash(ctx context.Context, sessionID string) (*domain.Flash, error) {
	val, err := r.client.GetDel(ctx, r.flashPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var f domain.Flash
	if err := json.Unmarshal([]byte(val), &f); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal flash: %w", err)
	}

	return &f, nil
}

// Ping checks the Redis connection
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
