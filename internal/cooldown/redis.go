package cooldown

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient builds a client from a redis:// URL. Redis connects lazily, so
// callers that need an early failure should Ping.
func NewClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis: url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// keyStore is the part of the redis client the limiter uses.
type keyStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis stores each cooldown as a key whose TTL is the remaining wait.
type Redis struct {
	client keyStore
	log    *slog.Logger
}

func NewRedis(client redis.UniversalClient, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, log: logger}
}

func (r *Redis) Acquire(ctx context.Context, command string, userID int64, period time.Duration) (time.Duration, error) {
	k := key(command, userID)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.client.SetNX(ctx, k, 1, period).Result()
		if err != nil {
			return 0, err
		}
		if ok {
			return 0, nil
		}
		ttl, err := r.client.PTTL(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		if ttl > 0 {
			return ttl, nil
		}
		if ttl == -1 {
			// A key without expiry would block forever.
			r.log.Warn("cooldown key without ttl", "key", k)
			if err := r.client.Del(ctx, k).Err(); err != nil {
				return 0, err
			}
		}
	}
	// The key kept expiring between SETNX and PTTL; one last try decides.
	ok, err := r.client.SetNX(ctx, k, 1, period).Result()
	if err != nil {
		return 0, err
	}
	if !ok {
		return period, nil
	}
	return 0, nil
}

func (r *Redis) Reset(ctx context.Context, command string, userID int64) error {
	return r.client.Del(ctx, key(command, userID)).Err()
}
