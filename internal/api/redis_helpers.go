package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// hit bumps the counter at key and keeps it alive for ttl, atomically.
func hit(ctx context.Context, counter redisRateCounter, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	if _, err := counter.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	}); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
