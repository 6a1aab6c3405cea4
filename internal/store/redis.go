package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sessions keeps connection → IMEI mappings in Redis so any gateway
// instance, or a restarted one, sees the same ownership.
type Sessions struct {
	rdb *redis.Client
	ttl time.Duration
}

type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL expires sessions whose connection was never finalized. Zero
	// keeps them until deleted.
	TTL time.Duration
}

// NewSessions connects and pings Redis.
func NewSessions(ctx context.Context, opts Options) (*Sessions, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Sessions{rdb: rdb, ttl: opts.TTL}, nil
}

func (s *Sessions) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return val, true, nil
}

func (s *Sessions) Set(ctx context.Context, key, imei string) error {
	if err := s.rdb.Set(ctx, key, imei, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (s *Sessions) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

func (s *Sessions) Close() error {
	return s.rdb.Close()
}
