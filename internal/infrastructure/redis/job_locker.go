package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

// Config holds Redis connection and lock settings
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	LockTTL  time.Duration
}

// DefaultConfig returns a Config for a local Redis
func DefaultConfig() *Config {
	return &Config{
		Addr:     "localhost:6379",
		PoolSize: 100,
		LockTTL:  30 * time.Second,
	}
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg *Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// JobLocker serialises job mutations across API replicas with a Redis lock per job.
// The lock expires after ttl so a crashed holder cannot block a job forever.
type JobLocker struct {
	locker *redislock.Client
	ttl    time.Duration
}

// NewJobLocker creates a JobLocker on client
func NewJobLocker(client goredis.UniversalClient, ttl time.Duration) *JobLocker {
	if ttl <= 0 {
		ttl = DefaultConfig().LockTTL
	}
	return &JobLocker{locker: redislock.New(client), ttl: ttl}
}

// LockKey is the Redis key guarding jobID
func LockKey(jobID string) string {
	return "lock:job:" + jobID
}

// Acquire obtains the lock without waiting. A held lock fails with domain.ErrLockNotAcquired.
func (l *JobLocker) Acquire(ctx context.Context, jobID, holder string) (func(context.Context) error, error) {
	lock, err := l.locker.Obtain(ctx, LockKey(jobID), l.ttl, &redislock.Options{
		RetryStrategy: redislock.NoRetry(),
		Metadata:      holder,
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.ErrLockNotAcquired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain job lock: %w", err)
	}

	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		// an expired lock has nothing left to release
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}
