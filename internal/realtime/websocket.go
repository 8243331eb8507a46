package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocketOptions configures a WebSocketChannel.
type WebSocketOptions struct {
	URL          string
	Token        string
	DefaultEvent string
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	Logger       zerolog.Logger
}

// WebSocketChannel reads push frames from a websocket and dispatches them
// by event name. It reconnects with capped exponential backoff.
type WebSocketChannel struct {
	*Dispatcher

	opts   WebSocketOptions
	dialer *websocket.Dialer
	log    zerolog.Logger
}

// NewWebSocketChannel creates a channel for opts.URL. Call Run to connect.
func NewWebSocketChannel(opts WebSocketOptions) *WebSocketChannel {
	if opts.DefaultEvent == "" {
		opts.DefaultEvent = DefaultEvent
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
	}
	return &WebSocketChannel{
		Dispatcher: NewDispatcher(),
		opts:       opts,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:        opts.Logger.With().Str("component", "push.websocket").Logger(),
	}
}

// Run connects and reads frames until ctx is done.
func (c *WebSocketChannel) Run(ctx context.Context) error {
	backoff := c.opts.MinBackoff
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = c.opts.MinBackoff
		}
		c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("push connection lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.opts.MaxBackoff)
	}
}

// session runs one connection. It reports whether the dial succeeded.
func (c *WebSocketChannel) session(ctx context.Context) (bool, error) {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dialing %s: %w", c.opts.URL, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	c.log.Info().Str("url", c.opts.URL).Msg("push channel connected")

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
	})
	defer stop()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, errors.New("server closed the connection")
			}
			return true, fmt.Errorf("reading frame: %w", err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		event := eventOf(data, c.opts.DefaultEvent)
		if c.Dispatch(event, data) == 0 {
			c.log.Debug().Str("event", event).Msg("no subscriber for push event")
		}
	}
}
