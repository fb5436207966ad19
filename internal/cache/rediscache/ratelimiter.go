package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter: счётчик попыток в фиксированном окне (INCR + EXPIRE).
// Используется для ограничения неверных вводов PIN.
type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Allow делает INCR по ключу и обновляет TTL окна.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// Peek читает текущее значение счётчика, не увеличивая его.
func (rl *RateLimiter) Peek(ctx context.Context, key string) (int64, error) {
	n, err := rl.c.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "redis ratelimit peek")
	}
	return n, nil
}

func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	if err := rl.c.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "redis ratelimit reset")
	}
	return nil
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
