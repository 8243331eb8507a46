// Package setup is the interactive first-run form behind `notifeed setup`.
package setup

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/notifeed/internal/credential"
	"github.com/nhle/notifeed/internal/model"
)

// Values are the fields the form binds to.
type Values struct {
	SystemURL   string
	SystemToken string
	ForumURL    string
	ForumToken  string
	Transport   string
	PushURL     string
	RedisAddr   string
}

// FromConfig seeds form values from an existing configuration. Tokens
// are never prefilled.
func FromConfig(cfg *model.AppConfig) Values {
	transport := cfg.Push.Transport
	if transport == "" {
		transport = model.TransportNone
	}
	return Values{
		SystemURL: cfg.System.BaseURL,
		ForumURL:  cfg.Forum.BaseURL,
		Transport: transport,
		PushURL:   cfg.Push.URL,
		RedisAddr: cfg.Push.RedisAddr,
	}
}

// Apply copies the form values into cfg. A source without a base URL is
// disabled.
func (v Values) Apply(cfg *model.AppConfig) {
	cfg.System.BaseURL = strings.TrimSpace(v.SystemURL)
	cfg.System.Enabled = cfg.System.BaseURL != ""
	cfg.Forum.BaseURL = strings.TrimSpace(v.ForumURL)
	cfg.Forum.Enabled = cfg.Forum.BaseURL != ""

	cfg.Push.Transport = v.Transport
	cfg.Push.URL = ""
	cfg.Push.RedisAddr = ""
	switch v.Transport {
	case model.TransportWebSocket:
		cfg.Push.URL = strings.TrimSpace(v.PushURL)
	case model.TransportRedis:
		cfg.Push.RedisAddr = strings.TrimSpace(v.RedisAddr)
	}
}

// NewForm builds the setup form bound to v.
func NewForm(v *Values) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("System API URL").
				Description("Base URL of the job/system notification API").
				Placeholder("https://api.example.com").
				Value(&v.SystemURL).
				Validate(validateOptionalURL),
			huh.NewInput().
				Title("System API token").
				Description("Leave empty to keep the stored token").
				EchoMode(huh.EchoModePassword).
				Value(&v.SystemToken),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Forum API URL").
				Description("Base URL of the forum notification API").
				Placeholder("https://forum.example.com").
				Value(&v.ForumURL).
				Validate(validateOptionalURL),
			huh.NewInput().
				Title("Forum API token").
				Description("Leave empty to keep the stored token").
				EchoMode(huh.EchoModePassword).
				Value(&v.ForumToken),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Push channel").
				Options(
					huh.NewOption("None - refresh on a schedule only", model.TransportNone),
					huh.NewOption("WebSocket", model.TransportWebSocket),
					huh.NewOption("Redis pub/sub", model.TransportRedis),
				).
				Value(&v.Transport),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("WebSocket URL").
				Placeholder("wss://push.example.com/ws").
				Value(&v.PushURL).
				Validate(validateWebSocketURL),
		).WithHideFunc(func() bool { return v.Transport != model.TransportWebSocket }),
		huh.NewGroup(
			huh.NewInput().
				Title("Redis address").
				Placeholder("localhost:6379").
				Value(&v.RedisAddr).
				Validate(validateRequired("Redis address")),
		).WithHideFunc(func() bool { return v.Transport != model.TransportRedis }),
	)
}

// Run shows the form, then saves the configuration to path and any new
// tokens to the keyring.
func Run(path string, cfg *model.AppConfig) error {
	v := FromConfig(cfg)
	if err := NewForm(&v).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return fmt.Errorf("running setup form: %w", err)
	}

	v.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		return err
	}

	tokens := map[model.Source]string{
		model.SourceSystem: v.SystemToken,
		model.SourceForum:  v.ForumToken,
	}
	for src, token := range tokens {
		if token == "" {
			continue
		}
		if err := credential.Set(credential.TokenKey(src), token); err != nil {
			return err
		}
	}
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return validateURL(s, "http", "https")
}

func validateWebSocketURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	return validateURL(s, "ws", "wss")
}

func validateURL(s string, schemes ...string) error {
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., %s://example.com)", schemes[0])
	}
	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("URL scheme must be one of %s", strings.Join(schemes, ", "))
}
