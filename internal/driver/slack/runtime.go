package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"otogi-helpnav/pkg/otogi"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

const defaultRuntimePublishDelay = 2 * time.Second

type runtimeConfig struct {
	AppToken       string `json:"app_token"`
	BotToken       string `json:"bot_token"`
	AckGrace       string `json:"ack_grace"`
	PublishTimeout string `json:"publish_timeout"`
	Debug          bool   `json:"debug"`
}

type parsedRuntimeConfig struct {
	appToken       string
	botToken       string
	ackGrace       time.Duration
	publishTimeout time.Duration
	debug          bool
}

// BuildRuntimeFromConfig builds one Slack Socket Mode runtime from config payload.
func BuildRuntimeFromConfig(
	name string,
	logger *slog.Logger,
	rawConfig []byte,
) (otogi.EventSource, otogi.Driver, otogi.SinkDispatcher, error) {
	cfg, err := parseRuntimeConfig(rawConfig)
	if err != nil {
		return otogi.EventSource{}, nil, nil, fmt.Errorf("parse slack runtime config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("driver", name, "platform", DriverPlatform)

	api := slack.New(
		cfg.botToken,
		slack.OptionAppLevelToken(cfg.appToken),
		slack.OptionDebug(cfg.debug),
	)
	conn := socketModeConnection{
		client: socketmode.New(api, socketmode.OptionDebug(cfg.debug)),
	}
	acks := NewAckRegistry(conn, cfg.ackGrace)

	reportAsync := func(ctx context.Context, err error) {
		logger.ErrorContext(ctx, "slack driver async error", "error", err)
	}
	driver, err := NewDriver(
		conn,
		acks,
		WithName(name),
		WithPublishTimeout(cfg.publishTimeout),
		WithLogger(logger),
		WithErrorHandler(reportAsync),
	)
	if err != nil {
		return otogi.EventSource{}, nil, nil, fmt.Errorf("new slack driver: %w", err)
	}

	sink, err := NewOutboundDispatcher(
		api,
		acks,
		WithOutboundTimeout(cfg.publishTimeout),
		WithOutboundLogger(logger),
		WithSinkRef(otogi.EventSink{
			Platform: DriverPlatform,
			ID:       name,
		}),
	)
	if err != nil {
		return otogi.EventSource{}, nil, nil, fmt.Errorf("new slack sink dispatcher: %w", err)
	}

	return otogi.EventSource{
		Platform: DriverPlatform,
		ID:       name,
	}, driver, sink, nil
}

func parseRuntimeConfig(raw []byte) (parsedRuntimeConfig, error) {
	if len(raw) == 0 {
		return parsedRuntimeConfig{}, fmt.Errorf("missing config")
	}

	var parsed runtimeConfig
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return parsedRuntimeConfig{}, fmt.Errorf("unmarshal: %w", err)
	}

	cfg := parsedRuntimeConfig{
		appToken:       strings.TrimSpace(parsed.AppToken),
		botToken:       strings.TrimSpace(parsed.BotToken),
		ackGrace:       defaultAckGrace,
		publishTimeout: defaultRuntimePublishDelay,
		debug:          parsed.Debug,
	}

	var err error
	if cfg.ackGrace, err = parsePositiveDuration("ack_grace", parsed.AckGrace, cfg.ackGrace); err != nil {
		return parsedRuntimeConfig{}, err
	}
	if cfg.publishTimeout, err = parsePositiveDuration("publish_timeout", parsed.PublishTimeout, cfg.publishTimeout); err != nil {
		return parsedRuntimeConfig{}, err
	}
	if cfg.ackGrace >= 3*time.Second {
		return parsedRuntimeConfig{}, fmt.Errorf("ack_grace must be < 3s")
	}

	if cfg.botToken == "" {
		return parsedRuntimeConfig{}, fmt.Errorf("bot_token is required")
	}
	if !strings.HasPrefix(cfg.appToken, "xapp-") {
		return parsedRuntimeConfig{}, fmt.Errorf("app_token must be an app-level token (xapp-)")
	}

	return cfg, nil
}

func parsePositiveDuration(key string, raw string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("parse %s: must be > 0", key)
	}

	return parsed, nil
}
