package repo

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct{ C *redis.Client }

func NewRedis(addr string) *Redis {
	return &Redis{C: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Ping(ctx context.Context) error { return r.C.Ping(ctx).Err() }
func (r *Redis) Close() error                   { return r.C.Close() }

// FailureLimiter blocks a key once it has Max failures inside Window. The
// window starts at the first failure and is not extended by later ones.
type FailureLimiter struct {
	R      *Redis
	Max    int
	Window time.Duration
	Prefix string
}

func NewFailureLimiter(r *Redis, max int, window time.Duration) *FailureLimiter {
	return &FailureLimiter{R: r, Max: max, Window: window, Prefix: "syncora:fail:"}
}

func (l *FailureLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := l.R.C.Get(ctx, l.Prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= l.Max, nil
}

func (l *FailureLimiter) Fail(ctx context.Context, key string) error {
	k := l.Prefix + key
	n, err := l.R.C.Incr(ctx, k).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return l.R.C.Expire(ctx, k, l.Window).Err()
	}
	return nil
}

func (l *FailureLimiter) Reset(ctx context.Context, key string) error {
	return l.R.C.Del(ctx, l.Prefix+key).Err()
}
