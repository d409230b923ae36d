package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"receipts-bot/internal/common/logger"
	"receipts-bot/internal/domain/branch"
	rplatform "receipts-bot/internal/platform/redis"
)

const activeBranchesKey = "branches:active"

// BranchCache keeps the active branch list in Redis for a short TTL.
// Redis failures fall through to the wrapped repository.
type BranchCache struct {
	next   branch.Repository
	client *rplatform.Client
	ttl    time.Duration
}

func NewBranchCache(next branch.Repository, client *rplatform.Client, ttl time.Duration) *BranchCache {
	return &BranchCache{next: next, client: client, ttl: ttl}
}

func (c *BranchCache) ListActive(ctx context.Context) ([]branch.Branch, error) {
	v, err := c.client.Get(ctx, activeBranchesKey).Bytes()
	if err == nil {
		var list []branch.Branch
		if err := json.Unmarshal(v, &list); err == nil {
			return list, nil
		}
		logger.Warn().Str("key", activeBranchesKey).Msg("corrupt branch cache entry")
	} else if !errors.Is(err, goredis.Nil) {
		logger.Warn().Err(err).Msg("branch cache read failed")
	}

	list, err := c.next.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(list); err == nil {
		if err := c.client.Set(ctx, activeBranchesKey, b, c.ttl).Err(); err != nil {
			logger.Warn().Err(err).Msg("branch cache write failed")
		}
	}
	return list, nil
}

// GetByID is not cached: the active flag must be current when a branch is chosen.
func (c *BranchCache) GetByID(ctx context.Context, id int64) (*branch.Branch, bool, error) {
	return c.next.GetByID(ctx, id)
}

// Invalidate drops the cached list.
func (c *BranchCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, activeBranchesKey).Err()
}
