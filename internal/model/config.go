package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Push transport kinds accepted in PushConfig.Transport.
const (
	TransportWebSocket = "websocket"
	TransportRedis     = "redis"
	TransportNone      = "none"
)

// SourceConfig holds the connection settings for one backend domain.
type SourceConfig struct {
	// BaseURL is the root URL of the domain API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Enabled controls whether the source is fetched at all.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// FeedConfig controls pagination, the live bound and refresh cadence.
type FeedConfig struct {
	PageSize        int    `mapstructure:"page_size" yaml:"page_size"`
	Bound           int    `mapstructure:"bound" yaml:"bound"`
	FetchTimeoutSec int    `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
	RefreshSchedule string `mapstructure:"refresh_schedule" yaml:"refresh_schedule"`
}

// FetchTimeout returns the per-adapter fetch timeout.
func (c FeedConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// PushConfig selects and configures the push channel transport.
type PushConfig struct {
	Transport    string   `mapstructure:"transport" yaml:"transport"`
	URL          string   `mapstructure:"url" yaml:"url"`
	RedisAddr    string   `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisChannel string   `mapstructure:"redis_channel" yaml:"redis_channel"`
	Events       []string `mapstructure:"events" yaml:"events"`
}

// JournalConfig points at the sqlite mutation journal.
type JournalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File is the log destination; "-" logs to stderr in console format.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	System  SourceConfig  `mapstructure:"system" yaml:"system"`
	Forum   SourceConfig  `mapstructure:"forum" yaml:"forum"`
	Feed    FeedConfig    `mapstructure:"feed" yaml:"feed"`
	Push    PushConfig    `mapstructure:"push" yaml:"push"`
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ConfigDir returns ~/.config/notifeed, the home of every local file.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "notifeed")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/notifeed/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SourceConfig{Enabled: true},
		Forum:  SourceConfig{Enabled: true},
		Feed: FeedConfig{
			PageSize:        20,
			Bound:           50,
			FetchTimeoutSec: 10,
			RefreshSchedule: "@every 2m",
		},
		Push: PushConfig{
			Transport:    TransportNone,
			RedisChannel: "notifications",
			Events:       []string{"notification"},
		},
		Journal: JournalConfig{
			Path: filepath.Join(ConfigDir(), "journal.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(ConfigDir(), "notifeed.log"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("system.enabled", def.System.Enabled)
	v.SetDefault("forum.enabled", def.Forum.Enabled)
	v.SetDefault("feed.page_size", def.Feed.PageSize)
	v.SetDefault("feed.bound", def.Feed.Bound)
	v.SetDefault("feed.fetch_timeout_sec", def.Feed.FetchTimeoutSec)
	v.SetDefault("feed.refresh_schedule", def.Feed.RefreshSchedule)
	v.SetDefault("push.transport", def.Push.Transport)
	v.SetDefault("push.redis_channel", def.Push.RedisChannel)
	v.SetDefault("push.events", def.Push.Events)
	v.SetDefault("journal.path", def.Journal.Path)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks value ranges that viper cannot express.
func (c *AppConfig) Validate() error {
	if c.Feed.PageSize < 1 {
		return fmt.Errorf("feed.page_size must be positive, got %d", c.Feed.PageSize)
	}
	if c.Feed.Bound < 1 {
		return fmt.Errorf("feed.bound must be positive, got %d", c.Feed.Bound)
	}
	if c.Feed.FetchTimeoutSec < 1 {
		return fmt.Errorf(
			"feed.fetch_timeout_sec must be positive, got %d", c.Feed.FetchTimeoutSec,
		)
	}
	switch c.Push.Transport {
	case TransportNone, "":
	case TransportWebSocket:
		if c.Push.URL == "" {
			return fmt.Errorf("push.url is required for the websocket transport")
		}
	case TransportRedis:
		if c.Push.RedisAddr == "" {
			return fmt.Errorf("push.redis_addr is required for the redis transport")
		}
	default:
		return fmt.Errorf("unknown push.transport %q", c.Push.Transport)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("system", cfg.System)
	v.Set("forum", cfg.Forum)
	v.Set("feed", cfg.Feed)
	v.Set("push", cfg.Push)
	v.Set("journal", cfg.Journal)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
