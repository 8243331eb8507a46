package setup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/notifeed/internal/model"
)

func TestValidateURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		check   func(string) error
		in      string
		wantErr bool
	}{
		{name: "optional empty", check: validateOptionalURL, in: ""},
		{name: "optional https", check: validateOptionalURL, in: "https://api.example.com"},
		{name: "optional no host", check: validateOptionalURL, in: "api.example.com", wantErr: true},
		{name: "optional ws scheme", check: validateOptionalURL, in: "ws://x.example.com", wantErr: true},
		{name: "websocket empty", check: validateWebSocketURL, in: "", wantErr: true},
		{name: "websocket wss", check: validateWebSocketURL, in: "wss://push.example.com/ws"},
		{name: "websocket http", check: validateWebSocketURL, in: "http://push.example.com", wantErr: true},
		{name: "required blank", check: validateRequired("Redis address"), in: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.check(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestApplyDisablesSourcesWithoutURL(t *testing.T) {
	t.Parallel()

	cfg := &model.AppConfig{Push: model.PushConfig{URL: "ws://old", RedisAddr: "old:6379"}}
	Values{
		SystemURL: " https://api.example.com ",
		Transport: model.TransportRedis,
		PushURL:   "ws://ignored",
		RedisAddr: "localhost:6379",
	}.Apply(cfg)

	require.True(t, cfg.System.Enabled)
	require.Equal(t, "https://api.example.com", cfg.System.BaseURL)
	require.False(t, cfg.Forum.Enabled)
	require.Equal(t, model.TransportRedis, cfg.Push.Transport)
	require.Empty(t, cfg.Push.URL)
	require.Equal(t, "localhost:6379", cfg.Push.RedisAddr)
}

func TestFromConfigDefaultsTransport(t *testing.T) {
	t.Parallel()

	v := FromConfig(&model.AppConfig{System: model.SourceConfig{BaseURL: "https://a"}})
	require.Equal(t, model.TransportNone, v.Transport)
	require.Equal(t, "https://a", v.SystemURL)
	require.Empty(t, v.SystemToken)
}
