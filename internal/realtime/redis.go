package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisChannel receives push frames from a Redis pub/sub channel.
type RedisChannel struct {
	*Dispatcher

	client       *redis.Client
	channel      string
	defaultEvent string
	log          zerolog.Logger
}

// NewRedisChannel creates a channel subscribed to channel on client.
func NewRedisChannel(client *redis.Client, channel string, logger zerolog.Logger) *RedisChannel {
	return &RedisChannel{
		Dispatcher:   NewDispatcher(),
		client:       client,
		channel:      channel,
		defaultEvent: DefaultEvent,
		log:          logger.With().Str("component", "push.redis").Logger(),
	}
}

// Run subscribes and dispatches messages until ctx is done. go-redis
// reconnects the subscription on its own.
func (c *RedisChannel) Run(ctx context.Context) error {
	pubsub := c.client.Subscribe(ctx, c.channel)
	defer func() {
		_ = pubsub.Close()
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribing to %s: %w", c.channel, err)
	}
	c.log.Info().Str("channel", c.channel).Msg("push channel subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			data := []byte(msg.Payload)
			event := eventOf(data, c.defaultEvent)
			if c.Dispatch(event, data) == 0 {
				c.log.Debug().Str("event", event).Msg("no subscriber for push event")
			}
		}
	}
}
