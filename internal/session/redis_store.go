package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKV is the subset of *redis.Client the store needs.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore persists the credential in Redis. JWT credentials are stored
// with a TTL matching their expiry.
type RedisStore struct {
	client redisKV
	key    string
	now    func() time.Time
}

func NewRedisStore(client redisKV, prefix string) *RedisStore {
	key := StorageKey
	if prefix != "" {
		key = prefix + ":" + StorageKey
	}
	return &RedisStore{client: client, key: key, now: time.Now}
}

func (s *RedisStore) Load(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("load credential from redis: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Save(ctx context.Context, token string) error {
	var ttl time.Duration
	if exp, ok := TokenExpiry(token); ok {
		ttl = exp.Sub(s.now())
		if ttl <= 0 {
			return errors.New("credential already expired")
		}
	}
	if err := s.client.Set(ctx, s.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("save credential to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear credential in redis: %w", err)
	}
	return nil
}
