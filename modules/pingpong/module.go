package pingpong

import (
	"context"
	"fmt"
	"time"

	"otogi-helpnav/pkg/otogi"
)

const (
	pingCommandName = "ping"
	pongText        = "pong!"
)

// Option mutates pingpong module configuration.
type Option func(*Module)

// WithClock replaces the time source used to measure reply latency.
func WithClock(now func() time.Time) Option {
	return func(module *Module) {
		if now != nil {
			module.now = now
		}
	}
}

// Module replies with "pong!" and the observed delivery latency when it
// receives a "/ping" command event.
type Module struct {
	dispatcher otogi.SinkDispatcher
	now        func() time.Time
}

// New creates a ping-pong module.
func New(options ...Option) *Module {
	module := &Module{now: time.Now}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "pingpong"
}

// Spec declares interest in received ping command events.
//
// The command carries no category and lands on the Uncategorized help page.
func (m *Module) Spec() otogi.ModuleSpec {
	return otogi.ModuleSpec{
		Handlers: []otogi.ModuleHandler{
			{
				Capability: otogi.Capability{
					Name:        "ping-command-handler",
					Description: "responds with pong! for /ping commands",
					Interest: otogi.InterestSet{
						Kinds:          []otogi.EventKind{otogi.EventKindCommandReceived},
						RequireCommand: true,
						CommandNames:   []string{pingCommandName},
						RequireMessage: true,
					},
					RequiredServices: []string{otogi.ServiceSinkDispatcher},
				},
				Subscription: otogi.NewDefaultSubscriptionSpec("pingpong-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []otogi.CommandSpec{
			{
				Prefix:      otogi.CommandPrefixOrdinary,
				Name:        pingCommandName,
				Description: "reply with pong!",
			},
		},
	}
}

// OnRegister resolves outbound dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime otogi.ModuleRuntime) error {
	dispatcher, err := otogi.ResolveAs[otogi.SinkDispatcher](
		runtime.Services(),
		otogi.ServiceSinkDispatcher,
	)
	if err != nil {
		return fmt.Errorf("pingpong resolve sink dispatcher: %w", err)
	}

	m.dispatcher = dispatcher

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleCommand(ctx context.Context, event *otogi.Event) error {
	if event == nil || event.Command == nil || event.Message == nil {
		return nil
	}
	if event.Kind != otogi.EventKindCommandReceived {
		return nil
	}
	if event.Command.Name != pingCommandName {
		return nil
	}

	target, err := otogi.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("pingpong derive outbound target: %w", err)
	}
	_, err = m.dispatcher.SendMessage(ctx, otogi.SendMessageRequest{
		Target: target,
		Text:   m.pongText(event.OccurredAt),
		Entities: []otogi.TextEntity{
			{Type: otogi.TextEntityTypeBold, Offset: 0, Length: len(pongText)},
		},
		ReplyToMessageID: event.Message.ID,
	})
	if err != nil {
		return fmt.Errorf("pingpong send pong message: %w", err)
	}

	return nil
}

// pongText appends the delay between the platform timestamp and now.
// Clock skew can make the delay negative, in which case it is left out.
func (m *Module) pongText(occurredAt time.Time) string {
	if occurredAt.IsZero() {
		return pongText
	}
	latency := m.now().Sub(occurredAt)
	if latency < 0 {
		return pongText
	}

	return fmt.Sprintf("%s (%s)", pongText, latency.Round(time.Millisecond))
}

var (
	_ otogi.Module          = (*Module)(nil)
	_ otogi.ModuleRegistrar = (*Module)(nil)
)
