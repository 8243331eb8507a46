package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nhle/notifeed/internal/credential"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/realtime"
	"github.com/nhle/notifeed/internal/source"
	"github.com/nhle/notifeed/internal/source/forum"
	"github.com/nhle/notifeed/internal/source/restclient"
	"github.com/nhle/notifeed/internal/source/system"
)

// BuildSources creates an adapter for every enabled source with a base
// URL. Tokens come from the environment or the system keyring.
func BuildSources(cfg *model.AppConfig, logger zerolog.Logger) ([]source.Source, error) {
	timeout := restclient.WithTimeout(cfg.Feed.FetchTimeout())

	var sources []source.Source

	if cfg.System.Enabled && cfg.System.BaseURL != "" {
		token, err := credential.Token(model.SourceSystem)
		if err != nil {
			return nil, fmt.Errorf("loading system token: %w", err)
		}
		client := system.NewClient(cfg.System.BaseURL, token, timeout)
		sources = append(sources, system.NewAdapter(client, logger))
	} else {
		logger.Info().Msg("system source disabled")
	}

	if cfg.Forum.Enabled && cfg.Forum.BaseURL != "" {
		token, err := credential.Token(model.SourceForum)
		if err != nil {
			return nil, fmt.Errorf("loading forum token: %w", err)
		}
		client := forum.NewClient(cfg.Forum.BaseURL, token, timeout)
		sources = append(sources, forum.NewAdapter(client, logger))
	} else {
		logger.Info().Msg("forum source disabled")
	}

	return sources, nil
}

// BuildChannel creates the configured push channel. It returns a nil
// channel for the "none" transport. The returned close function releases
// transport resources.
func BuildChannel(cfg model.PushConfig, logger zerolog.Logger) (realtime.Channel, func() error, error) {
	nop := func() error { return nil }

	switch cfg.Transport {
	case model.TransportWebSocket:
		// The push gateway authenticates the user with the system token.
		token, err := credential.Token(model.SourceSystem)
		if err != nil {
			return nil, nop, fmt.Errorf("loading push token: %w", err)
		}
		ch := realtime.NewWebSocketChannel(realtime.WebSocketOptions{
			URL:    cfg.URL,
			Token:  token,
			Logger: logger,
		})
		return ch, nop, nil

	case model.TransportRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return realtime.NewRedisChannel(client, cfg.RedisChannel, logger), client.Close, nil

	default:
		return nil, nop, nil
	}
}
