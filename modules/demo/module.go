package demo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"otogi-helpnav/pkg/otogi"
)

const (
	echoCommandName     = "echo"
	banCommandName      = "ban"
	settingsCommandName = "settings"
	quoteCommandName    = "quote"
	debugCommandName    = "debug"

	categoryFun        = "Fun"
	categoryModeration = "Moderation"
	categoryConfig     = "Config"
)

// Option mutates demo module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
			module.loggerInjected = true
		}
	}
}

// WithAdminIDs lists actor IDs allowed to run moderation commands.
func WithAdminIDs(actorIDs ...string) Option {
	return func(module *Module) {
		module.adminIDs = append([]string(nil), actorIDs...)
	}
}

// Module showcases how command metadata shapes /help: categories, permission
// checks, subcommands, hidden commands and context-menu commands.
type Module struct {
	dispatcher     otogi.SinkDispatcher
	logger         *slog.Logger
	loggerInjected bool
	adminIDs       []string

	mu       sync.Mutex
	counters map[string]int
	banned   map[string][]string
	settings map[string]map[string]string
}

// New creates the demo module.
func New(options ...Option) *Module {
	module := &Module{
		logger:   slog.Default(),
		counters: make(map[string]int),
		banned:   make(map[string][]string),
		settings: make(map[string]map[string]string),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "demo"
}

// Spec declares module capabilities and command metadata in one place.
func (m *Module) Spec() otogi.ModuleSpec {
	return otogi.ModuleSpec{
		Handlers: []otogi.ModuleHandler{
			{
				Capability: otogi.Capability{
					Name:        "demo-commands",
					Description: "handles showcase commands",
					Interest: otogi.InterestSet{
						Kinds: []otogi.EventKind{
							otogi.EventKindCommandReceived,
							otogi.EventKindSystemCommandReceived,
						},
						CommandNames: []string{
							echoCommandName,
							banCommandName,
							settingsCommandName,
							quoteCommandName,
							debugCommandName,
						},
						RequireCommand: true,
						RequireMessage: true,
					},
					RequiredServices: []string{otogi.ServiceSinkDispatcher},
				},
				Subscription: defaultSubscription("demo-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: m.commands(),
	}
}

func (m *Module) commands() []otogi.CommandSpec {
	return []otogi.CommandSpec{
		{
			Prefix:      otogi.CommandPrefixOrdinary,
			Name:        echoCommandName,
			Description: "repeat the given text",
			Category:    categoryFun,
			Options: []otogi.CommandOptionSpec{
				{Name: "upper", Alias: "u", Description: "shout the text back"},
			},
		},
		{
			Prefix:      otogi.CommandPrefixOrdinary,
			Name:        quoteCommandName,
			Description: "quote the message you reply to",
			Category:    categoryFun,
			ContextMenu: otogi.ContextMenuMessage,
		},
		{
			Prefix:      otogi.CommandPrefixOrdinary,
			Name:        banCommandName,
			Description: "ban a user from this conversation",
			Category:    categoryModeration,
			Checks:      []otogi.CommandCheck{otogi.ActorIDCheck(m.adminIDs...)},
		},
		{
			Prefix:      otogi.CommandPrefixOrdinary,
			Name:        settingsCommandName,
			Description: "inspect or change conversation settings",
			Category:    categoryConfig,
			Subcommands: []otogi.CommandSpec{
				{
					Name:        "show",
					Description: "list current settings",
				},
				{
					Name:        "set",
					Description: "change one setting",
					Options: []otogi.CommandOptionSpec{
						{Name: "key", Alias: "k", HasValue: true, Required: true, Description: "setting name"},
					},
				},
				{
					Name:        "reset",
					Description: "drop every setting",
					Hidden:      true,
				},
			},
		},
		{
			Prefix:      otogi.CommandPrefixSystem,
			Name:        debugCommandName,
			Description: "print demo counters",
			Hidden:      true,
		},
	}
}

// OnRegister resolves module dependencies before runtime start.
func (m *Module) OnRegister(_ context.Context, runtime otogi.ModuleRuntime) error {
	dispatcher, err := otogi.ResolveAs[otogi.SinkDispatcher](runtime.Services(), otogi.ServiceSinkDispatcher)
	if err != nil {
		return fmt.Errorf("demo module resolve sink dispatcher: %w", err)
	}
	m.dispatcher = dispatcher

	if !m.loggerInjected {
		if logger, resolveErr := otogi.ResolveAs[*slog.Logger](runtime.Services(), otogi.ServiceLogger); resolveErr == nil {
			m.logger = logger
		}
	}

	return nil
}

// OnStart emits startup telemetry.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx, "demo module started", "module", m.Name(), "admins", len(m.adminIDs))

	return nil
}

// OnShutdown emits final counters.
func (m *Module) OnShutdown(ctx context.Context) error {
	m.logger.InfoContext(ctx, "demo module shutdown", "module", m.Name(), "stats", m.snapshotCounters())

	return nil
}

// handleCommand routes each command to a specialized handler.
func (m *Module) handleCommand(ctx context.Context, event *otogi.Event) error {
	if event == nil || event.Command == nil || event.Message == nil {
		return fmt.Errorf("demo module received event without command payload")
	}
	m.increment(event.Command.Name)

	var (
		reply string
		err   error
	)
	replyTo := event.Message.ID
	switch event.Command.Name {
	case echoCommandName:
		reply = m.echo(event.Command)
	case quoteCommandName:
		if event.Message.ReplyToID == "" {
			reply = "reply to a message to quote it"
			break
		}
		replyTo = event.Message.ReplyToID
		reply = fmt.Sprintf("quoted by %s", actorLabel(event.Actor))
	case banCommandName:
		reply = m.ban(ctx, event)
	case settingsCommandName:
		reply, err = m.handleSettings(event)
	case debugCommandName:
		reply = formatCounters(m.snapshotCounters())
	default:
		m.logger.DebugContext(ctx, "demo module ignored command", "command", event.Command.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("demo handle %s: %w", event.Command.Name, err)
	}

	return m.reply(ctx, event, reply, replyTo)
}

func (m *Module) echo(invocation *otogi.CommandInvocation) string {
	text := strings.TrimSpace(invocation.Value)
	if text == "" {
		return "nothing to echo"
	}
	if _, shout := invocation.Option("upper"); shout {
		text = strings.ToUpper(text)
	}

	return text
}

func (m *Module) ban(ctx context.Context, event *otogi.Event) string {
	user := strings.TrimSpace(event.Command.Value)
	if user == "" {
		return "usage: /ban <user>"
	}

	m.mu.Lock()
	m.banned[event.Conversation.ID] = append(m.banned[event.Conversation.ID], user)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "demo ban",
		"conversation", event.Conversation.ID,
		"actor", event.Actor.ID,
		"user", user,
	)

	return fmt.Sprintf("banned %s", user)
}

func (m *Module) handleSettings(event *otogi.Event) (string, error) {
	conversationID := event.Conversation.ID

	m.mu.Lock()
	defer m.mu.Unlock()

	switch event.Command.Subcommand {
	case "", "show":
		return formatSettings(m.settings[conversationID]), nil
	case "set":
		key, ok := event.Command.Option("key")
		if !ok || key.Value == "" {
			return "", fmt.Errorf("missing --key")
		}
		value := strings.TrimSpace(event.Command.Value)
		if m.settings[conversationID] == nil {
			m.settings[conversationID] = make(map[string]string)
		}
		m.settings[conversationID][key.Value] = value
		return fmt.Sprintf("%s = %s", key.Value, value), nil
	case "reset":
		delete(m.settings, conversationID)
		return "settings cleared", nil
	default:
		return "", fmt.Errorf("unknown subcommand %q", event.Command.Subcommand)
	}
}

func (m *Module) reply(ctx context.Context, event *otogi.Event, text string, replyTo string) error {
	target, err := otogi.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("demo derive outbound target: %w", err)
	}
	if _, err := m.dispatcher.SendMessage(ctx, otogi.SendMessageRequest{
		Target:           target,
		Text:             text,
		ReplyToMessageID: replyTo,
	}); err != nil {
		return fmt.Errorf("demo send %s reply: %w", event.Command.Name, err)
	}

	return nil
}

// increment updates command counters under lock for shutdown reporting.
func (m *Module) increment(command string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[command]++
}

func (m *Module) snapshotCounters() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[string]int, len(m.counters))
	for command, count := range m.counters {
		stats[command] = count
	}

	return stats
}

func formatCounters(stats map[string]int) string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names)+1)
	lines = append(lines, "demo counters:")
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %d", name, stats[name]))
	}

	return strings.Join(lines, "\n")
}

func formatSettings(values map[string]string) string {
	if len(values) == 0 {
		return "no settings"
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("%s = %s", key, values[key]))
	}

	return strings.Join(lines, "\n")
}

func actorLabel(actor otogi.Actor) string {
	switch {
	case actor.Username != "":
		return "@" + actor.Username
	case actor.DisplayName != "":
		return actor.DisplayName
	default:
		return actor.ID
	}
}

func defaultSubscription(name string) otogi.SubscriptionSpec {
	return otogi.SubscriptionSpec{
		Name:           name,
		Buffer:         128,
		Workers:        2,
		HandlerTimeout: 2 * time.Second,
		Backpressure:   otogi.BackpressureDropNewest,
	}
}

var (
	_ otogi.Module          = (*Module)(nil)
	_ otogi.ModuleRegistrar = (*Module)(nil)
)
