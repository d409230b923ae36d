package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "receipts-bot/internal/common/errors"
	rplatform "receipts-bot/internal/platform/redis"
)

// RedisStore keeps sessions as JSON under session:<user id> with a sliding TTL.
type RedisStore struct {
	client *rplatform.Client
	ttl    time.Duration
}

func NewRedisStore(client *rplatform.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) key(userID int64) string { return fmt.Sprintf("session:%d", userID) }

func (r *RedisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	b, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSessionError, "read session").WithUserID(userID)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		// A corrupt record is treated like a lost session.
		return New(), nil
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, userID int64, s *Session) error {
	if s == nil || s.IsEmpty() {
		return r.Clear(ctx, userID)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(userID), b, r.ttl).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSessionError, "save session").WithUserID(userID)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSessionError, "clear session").WithUserID(userID)
	}
	return nil
}
