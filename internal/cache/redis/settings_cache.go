package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"receipts-bot/internal/common/logger"
	"receipts-bot/internal/domain/settings"
	rplatform "receipts-bot/internal/platform/redis"
)

const settingsKey = "settings:bot"

// SettingsCache caches the settings record. A missing record is cached as JSON null.
type SettingsCache struct {
	next   settings.Repository
	client *rplatform.Client
	ttl    time.Duration
}

func NewSettingsCache(next settings.Repository, client *rplatform.Client, ttl time.Duration) *SettingsCache {
	return &SettingsCache{next: next, client: client, ttl: ttl}
}

func (c *SettingsCache) Get(ctx context.Context) (*settings.Settings, error) {
	v, err := c.client.Get(ctx, settingsKey).Bytes()
	if err == nil {
		var st *settings.Settings
		if err := json.Unmarshal(v, &st); err == nil {
			return st, nil
		}
		logger.Warn().Str("key", settingsKey).Msg("corrupt settings cache entry")
	} else if !errors.Is(err, goredis.Nil) {
		logger.Warn().Err(err).Msg("settings cache read failed")
	}

	st, err := c.next.Get(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(st); err == nil {
		if err := c.client.Set(ctx, settingsKey, b, c.ttl).Err(); err != nil {
			logger.Warn().Err(err).Msg("settings cache write failed")
		}
	}
	return st, nil
}
