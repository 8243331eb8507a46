package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, 20, cfg.Feed.PageSize)
	require.Equal(t, 50, cfg.Feed.Bound)
	require.Equal(t, 10*time.Second, cfg.Feed.FetchTimeout())
	require.Equal(t, TransportNone, cfg.Push.Transport)
	require.True(t, cfg.System.Enabled)
	require.True(t, cfg.Forum.Enabled)
}

func TestLoadConfigMergesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
system:
  base_url: https://jobs.example.com
forum:
  base_url: https://forum.example.com
  enabled: false
feed:
  page_size: 10
push:
  transport: redis
  redis_addr: localhost:6379
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "https://jobs.example.com", cfg.System.BaseURL)
	require.True(t, cfg.System.Enabled)
	require.False(t, cfg.Forum.Enabled)
	require.Equal(t, 10, cfg.Feed.PageSize)
	require.Equal(t, 50, cfg.Feed.Bound)
	require.Equal(t, "notifications", cfg.Push.RedisChannel)
	require.Equal(t, []string{"notification"}, cfg.Push.Events)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("push:\n  transport: websocket\n"), 0o644))

	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "push.url")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*AppConfig) {}},
		{name: "zero page size", mutate: func(c *AppConfig) { c.Feed.PageSize = 0 }, wantErr: "page_size"},
		{name: "zero bound", mutate: func(c *AppConfig) { c.Feed.Bound = 0 }, wantErr: "bound"},
		{name: "zero timeout", mutate: func(c *AppConfig) { c.Feed.FetchTimeoutSec = 0 }, wantErr: "fetch_timeout_sec"},
		{name: "redis without addr", mutate: func(c *AppConfig) { c.Push.Transport = TransportRedis }, wantErr: "redis_addr"},
		{name: "unknown transport", mutate: func(c *AppConfig) { c.Push.Transport = "carrier-pigeon" }, wantErr: "unknown"},
		{
			name: "websocket with url",
			mutate: func(c *AppConfig) {
				c.Push.Transport = TransportWebSocket
				c.Push.URL = "wss://push.example.com"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultAppConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.System.BaseURL = "https://jobs.example.com"
	cfg.Push.Transport = TransportWebSocket
	cfg.Push.URL = "wss://push.example.com/ws"
	cfg.Feed.RefreshSchedule = "@every 5m"

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg.System, loaded.System)
	require.Equal(t, cfg.Push.URL, loaded.Push.URL)
	require.Equal(t, cfg.Push.Transport, loaded.Push.Transport)
	require.Equal(t, "@every 5m", loaded.Feed.RefreshSchedule)
}
