package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	appval "github.com/erp/valuation/internal/application/valuation"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultProductLockTTL   = 10 * time.Second
	defaultProductLockRetry = 25 * time.Millisecond
	productLockKeyPrefix    = "valuation:lock:"
)

// RedisProductLocker serializes units of work on a product across processes.
// Obtain retries until the caller's context expires; a lock that could not be
// obtained in time is reported as contention.
type RedisProductLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisProductLocker creates a locker on client. ttl bounds how long a
// crashed holder can block the product.
func NewRedisProductLocker(client redis.UniversalClient, ttl time.Duration) *RedisProductLocker {
	if ttl <= 0 {
		ttl = defaultProductLockTTL
	}
	return &RedisProductLocker{
		locker: redislock.New(client),
		ttl:    ttl,
		retry:  defaultProductLockRetry,
	}
}

// Acquire blocks until the product lock is held or ctx is done
func (l *RedisProductLocker) Acquire(ctx context.Context, ownerID, productID uuid.UUID) (func(context.Context) error, error) {
	lock, err := l.locker.Obtain(ctx, productLockKey(ownerID, productID), l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			return nil, valuation.NewContentionError(productID, "distributed_lock", err)
		}
		return nil, fmt.Errorf("failed to obtain product lock: %w", err)
	}

	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil {
			return fmt.Errorf("failed to release product lock: %w", err)
		}
		return nil
	}, nil
}

func productLockKey(ownerID, productID uuid.UUID) string {
	return productLockKeyPrefix + ownerID.String() + ":" + productID.String()
}

// Ensure RedisProductLocker implements DistributedLocker
var _ appval.DistributedLocker = (*RedisProductLocker)(nil)
