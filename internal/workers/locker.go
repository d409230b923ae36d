package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"

	"receipts-bot/internal/common/logger"
)

// Locker serialises work on a key across bot processes. Only deployments that
// fan one update stream out to several consumers need it; a long-polling bot is
// a single consumer because getUpdates rejects a second poller with 409 Conflict.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

// UserLockKey is the lock guarding one user's conversation.
func UserLockKey(userID int64) string {
	return fmt.Sprintf("lock:user:%d", userID)
}

// RedisLocker implements Locker with redsync mutexes.
type RedisLocker struct {
	rs         *redsync.Redsync
	expiry     time.Duration
	tries      int
	retryDelay time.Duration
}

func NewRedisLocker(rs *redsync.Redsync) *RedisLocker {
	// A conversation turn is a few API calls plus a file download.
	return &RedisLocker{rs: rs, expiry: 30 * time.Second, tries: 60, retryDelay: 250 * time.Millisecond}
}

// WithLock runs fn while holding key. The lock is released on every path.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(l.retryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	defer func() {
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			logger.Warn().Str("key", key).Bool("ok", ok).Err(err).Msg("failed to release lock")
		}
	}()
	return fn()
}
