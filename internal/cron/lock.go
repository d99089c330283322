package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 2 * time.Hour

// Lock guards one job across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Locker hands out the lock for a named job.
type Locker interface {
	For(job string) Lock
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLocker gives every job its own key, <prefix>:<job>.
type RedisLocker struct {
	client redisStore
	prefix string
	ttl    time.Duration
}

// NewRedisLocker builds per-job Redis locks. ttl bounds how long a crashed
// worker can hold a job.
func NewRedisLocker(client redisStore, prefix string, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for cron locks")
	}
	if prefix == "" {
		return nil, errors.New("cron lock prefix is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}, nil
}

// For returns the lock guarding job.
func (l *RedisLocker) For(job string) Lock {
	return &redisLock{client: l.client, key: l.prefix + ":" + job, ttl: l.ttl}
}

type redisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	token  string
}

func (l *redisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release deletes the key only while it still carries this holder's token;
// a lock that expired and was taken by another worker is left alone.
func (l *redisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	defer func() { l.token = "" }()

	holder, err := l.client.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s holder: %w", l.key, err)
	}
	if holder != l.token {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
