package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"otogi-helpnav/pkg/otogi"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

const defaultPublishTimeout = 2 * time.Second

type driverConfig struct {
	name           string
	publishTimeout time.Duration
	logger         *slog.Logger
	onAsyncError   func(context.Context, error)
	newID          func() string
	now            func() time.Time
}

// DriverOption mutates Slack driver configuration.
type DriverOption func(*driverConfig)

// WithName configures the driver identity exposed to the kernel.
func WithName(name string) DriverOption {
	return func(cfg *driverConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithPublishTimeout configures sink publish timeout per event.
func WithPublishTimeout(timeout time.Duration) DriverOption {
	return func(cfg *driverConfig) {
		if timeout > 0 {
			cfg.publishTimeout = timeout
		}
	}
}

// WithLogger configures connection lifecycle logging.
func WithLogger(logger *slog.Logger) DriverOption {
	return func(cfg *driverConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithErrorHandler configures the callback receiving per-envelope failures.
func WithErrorHandler(handler func(context.Context, error)) DriverOption {
	return func(cfg *driverConfig) {
		if handler != nil {
			cfg.onAsyncError = handler
		}
	}
}

func withIDGenerator(newID func() string) DriverOption {
	return func(cfg *driverConfig) {
		if newID != nil {
			cfg.newID = newID
		}
	}
}

// Driver adapts Slack Socket Mode envelopes into neutral otogi events.
type Driver struct {
	cfg  driverConfig
	conn SocketConnection
	acks *AckRegistry
}

// NewDriver creates a Slack driver. acks must be shared with the sink
// dispatcher serving the same workspace so interactions can be acknowledged.
func NewDriver(conn SocketConnection, acks *AckRegistry, options ...DriverOption) (*Driver, error) {
	if conn == nil {
		return nil, fmt.Errorf("new slack driver: nil connection")
	}
	if acks == nil {
		return nil, fmt.Errorf("new slack driver: nil ack registry")
	}

	cfg := driverConfig{
		name:           DriverType,
		publishTimeout: defaultPublishTimeout,
		logger:         slog.Default(),
		onAsyncError:   func(context.Context, error) {},
		newID:          uuid.NewString,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(&cfg)
	}

	return &Driver{
		cfg:  cfg,
		conn: conn,
		acks: acks,
	}, nil
}

// Name returns the stable driver identifier.
func (d *Driver) Name() string {
	return d.cfg.name
}

// Start runs the Socket Mode session and publishes neutral events until ctx ends.
func (d *Driver) Start(ctx context.Context, sink otogi.EventPublisher) error {
	if sink == nil {
		return fmt.Errorf("start slack driver: nil sink")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- d.conn.RunContext(runCtx)
	}()

	incoming := d.conn.Incoming()
	for {
		select {
		case <-ctx.Done():
			cancel()
			<-runErr
			d.acks.flush()
			return nil
		case err := <-runErr:
			d.acks.flush()
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("start slack driver: run socket mode: %w", err)
		case envelope, ok := <-incoming:
			if !ok {
				cancel()
				<-runErr
				d.acks.flush()
				return nil
			}
			d.handleEnvelope(runCtx, envelope, sink)
		}
	}
}

// handleEnvelope routes one Socket Mode envelope. One bad envelope is reported
// and skipped so the session keeps running.
func (d *Driver) handleEnvelope(ctx context.Context, envelope socketmode.Event, sink otogi.EventPublisher) {
	switch envelope.Type {
	case socketmode.EventTypeConnecting:
		d.cfg.logger.DebugContext(ctx, "slack socket mode connecting", "driver", d.cfg.name)
	case socketmode.EventTypeConnected:
		d.cfg.logger.InfoContext(ctx, "slack socket mode connected", "driver", d.cfg.name)
	case socketmode.EventTypeConnectionError:
		d.cfg.logger.WarnContext(ctx, "slack socket mode connection error, retrying", "driver", d.cfg.name)
	case socketmode.EventTypeSlashCommand:
		d.ackNow(envelope)
		command, ok := envelope.Data.(slack.SlashCommand)
		if !ok {
			d.cfg.onAsyncError(ctx, fmt.Errorf("handle slash command: unexpected payload %T", envelope.Data))
			return
		}
		event, err := decodeSlashCommand(command, d.cfg.newID(), d.cfg.now())
		if err != nil {
			d.cfg.onAsyncError(ctx, fmt.Errorf("handle slash command: %w", err))
			return
		}
		d.publish(ctx, event, sink)
	case socketmode.EventTypeInteractive:
		d.handleInteractive(ctx, envelope, sink)
	default:
		d.ackNow(envelope)
	}
}

func (d *Driver) handleInteractive(ctx context.Context, envelope socketmode.Event, sink otogi.EventPublisher) {
	callback, ok := envelope.Data.(slack.InteractionCallback)
	if !ok {
		d.ackNow(envelope)
		d.cfg.onAsyncError(ctx, fmt.Errorf("handle interactive: unexpected payload %T", envelope.Data))
		return
	}
	if callback.Type != slack.InteractionTypeBlockActions {
		d.ackNow(envelope)
		return
	}

	events, err := decodeBlockActions(callback, d.cfg.newID, d.cfg.now())
	if err != nil || len(events) == 0 || envelope.Request == nil {
		d.ackNow(envelope)
		if err != nil {
			d.cfg.onAsyncError(ctx, fmt.Errorf("handle interactive: %w", err))
			return
		}
	} else {
		ids := make([]string, 0, len(events))
		for _, event := range events {
			ids = append(ids, event.Interaction.ID)
		}
		d.acks.track(*envelope.Request, ids)
	}

	for _, event := range events {
		d.publish(ctx, event, sink)
	}
}

func (d *Driver) publish(ctx context.Context, event *otogi.Event, sink otogi.EventPublisher) {
	event.Source = otogi.EventSource{Platform: DriverPlatform, ID: d.cfg.name}
	event.Platform = DriverPlatform

	publishCtx, cancel := context.WithTimeout(ctx, d.cfg.publishTimeout)
	defer cancel()

	if err := sink.Publish(publishCtx, event); err != nil {
		d.cfg.onAsyncError(ctx, fmt.Errorf("publish %s %s: %w", event.Kind, event.ID, err))
	}
}

func (d *Driver) ackNow(envelope socketmode.Event) {
	if envelope.Request == nil {
		return
	}
	d.conn.Ack(*envelope.Request)
}

// Shutdown acks envelopes still waiting for a module.
func (d *Driver) Shutdown(_ context.Context) error {
	d.acks.flush()
	return nil
}
