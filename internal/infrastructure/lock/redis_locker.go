package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/infrastructure/config"
	"github.com/erp/returns/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPrefix = "returns:lock:"
	DefaultTTL    = 30 * time.Second
)

// RedisTransitionLocker takes a short Redis lock per return so two instances do not
// run the same transition at once. A contended lock is reported as
// shared.ErrAlreadyProcessed. When Redis itself fails the transition proceeds
// unlocked and the conditional status write decides.
//
// A held lock is refreshed every ttl/2 until released, so a slow transition keeps
// it. If the holder dies or loses Redis the key expires at most ttl after the last
// successful refresh.
type RedisTransitionLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisTransitionLocker creates a locker on top of a go-redis client
func NewRedisTransitionLocker(client redislock.RedisClient, cfg config.LockConfig, log *zap.Logger) *RedisTransitionLocker {
	if log == nil {
		log = zap.NewNop()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTransitionLocker{
		client: redislock.New(client),
		prefix: prefix,
		ttl:    ttl,
		logger: log,
	}
}

// Key returns the Redis key guarding returnID
func (l *RedisTransitionLocker) Key(returnID uuid.UUID) string {
	return l.prefix + returnID.String()
}

// Acquire obtains the lock without retrying
func (l *RedisTransitionLocker) Acquire(ctx context.Context, returnID uuid.UUID) (func(), error) {
	return l.obtain(ctx, l.Key(returnID), l.ttl, zap.String("return_id", returnID.String()))
}

// TryLock obtains a named lock under the same prefix for ttl, e.g. for a periodic
// job that must run on one instance at a time
func (l *RedisTransitionLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	return l.obtain(ctx, l.prefix+name, ttl, zap.String("lock", name))
}

func (l *RedisTransitionLocker) obtain(ctx context.Context, key string, ttl time.Duration, subject zap.Field) (func(), error) {
	lk, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		logger.Enrich(ctx, l.logger).Info("lock is held by another request", subject)
		return nil, shared.ErrAlreadyProcessed
	}
	if err != nil {
		logger.Enrich(ctx, l.logger).Warn("could not reach redis for lock, proceeding unlocked",
			subject,
			zap.Error(err),
		)
		return func() {}, nil
	}

	stop := make(chan struct{})
	go l.keepAlive(ctx, lk, key, ttl, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			// the request context may already be cancelled here
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.logger.Warn("failed to release lock",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		})
	}, nil
}

// keepAlive extends lk to ttl every ttl/2 until stop is closed. It gives up once
// the key belongs to someone else.
func (l *RedisTransitionLocker) keepAlive(ctx context.Context, lk *redislock.Lock, key string, ttl time.Duration, stop <-chan struct{}) {
	ctx = context.WithoutCancel(ctx)
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		refreshCtx, cancel := context.WithTimeout(ctx, ttl/2)
		err := lk.Refresh(refreshCtx, ttl, nil)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, redislock.ErrNotObtained):
			l.logger.Warn("lock expired before release", zap.String("key", key))
			return
		default:
			l.logger.Warn("failed to refresh lock", zap.String("key", key), zap.Error(err))
		}
	}
}
