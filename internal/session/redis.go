package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists sessions in redis so they are shared across workers
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed session store
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (map[string]string, error) {
	val, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session load %s: %w", sessionID, err)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(val), &values); err != nil {
		return nil, fmt.Errorf("session decode %s: %w", sessionID, err)
	}
	return values, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("session encode %s: %w", sessionID, err)
	}
	return s.client.Set(ctx, sessionKey(sessionID), data, s.ttl).Err()
}
