package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBaseURL)
	assert.Equal(t, 30, cfg.Telegram.PollTimeout)
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 8, cfg.Workers.Count)
	assert.False(t, cfg.Workers.UserLock, "single poller needs no cross-process lock")
	assert.Equal(t, 15*time.Minute, cfg.S3.LinkTTL)
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_AdminIDs(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "10,20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsAdmin(10))
	assert.True(t, cfg.IsAdmin(20))
	assert.False(t, cfg.IsAdmin(30))
}

func TestLoad_InvalidSessionStore(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("SESSION_STORE", "disk")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_Origins(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.Origins)
}
