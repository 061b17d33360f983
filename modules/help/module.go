package help

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"otogi-helpnav/pkg/otogi"
)

const (
	helpCommandName = "help"
	helpCategory    = "Help"

	// sessionGrace leaves room for the final edit or delete after a session deadline.
	sessionGrace = 15 * time.Second
)

// Module serves /help: a paginated catalog of commands visible to the caller,
// or a detail view when a command name is given.
type Module struct {
	dispatcher     otogi.SinkDispatcher
	commandCatalog otogi.CommandCatalog
	pager          *Pager

	logger         *slog.Logger
	loggerInjected bool
	categoryNamer  func(string) string
	filter         CommandFilter
	sessionTimeout time.Duration
	sessionWorkers int
}

// New creates a help module.
func New(options ...Option) *Module {
	module := &Module{
		logger:         slog.Default(),
		sessionTimeout: DefaultSessionTimeout,
		sessionWorkers: DefaultSessionWorkers,
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "help"
}

// Spec declares interest in ordinary help command events.
func (m *Module) Spec() otogi.ModuleSpec {
	subscription := otogi.NewDefaultSubscriptionSpec("help-commands")
	subscription.Workers = m.sessionWorkers
	subscription.HandlerTimeout = m.sessionTimeout + sessionGrace

	return otogi.ModuleSpec{
		Handlers: []otogi.ModuleHandler{
			{
				Capability: otogi.Capability{
					Name:        "help-command-handler",
					Description: "renders paginated command help for /help",
					Interest: otogi.InterestSet{
						Kinds:          []otogi.EventKind{otogi.EventKindCommandReceived},
						RequireCommand: true,
						CommandNames:   []string{helpCommandName},
						RequireMessage: true,
					},
					RequiredServices: []string{
						otogi.ServiceSinkDispatcher,
						otogi.ServiceCommandCatalog,
						otogi.ServiceInteractionCollector,
					},
				},
				Subscription: subscription,
				Handler:      m.handleCommand,
			},
		},
		Commands: []otogi.CommandSpec{
			{
				Prefix:      otogi.CommandPrefixOrdinary,
				Name:        helpCommandName,
				Description: "show all available commands, or details for one",
				Category:    helpCategory,
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime otogi.ModuleRuntime) error {
	dispatcher, err := otogi.ResolveAs[otogi.SinkDispatcher](
		runtime.Services(),
		otogi.ServiceSinkDispatcher,
	)
	if err != nil {
		return fmt.Errorf("help resolve sink dispatcher: %w", err)
	}
	commandCatalog, err := otogi.ResolveAs[otogi.CommandCatalog](
		runtime.Services(),
		otogi.ServiceCommandCatalog,
	)
	if err != nil {
		return fmt.Errorf("help resolve command catalog: %w", err)
	}
	collector, err := otogi.ResolveAs[otogi.InteractionCollector](
		runtime.Services(),
		otogi.ServiceInteractionCollector,
	)
	if err != nil {
		return fmt.Errorf("help resolve interaction collector: %w", err)
	}
	if !m.loggerInjected {
		if logger, resolveErr := otogi.ResolveAs[*slog.Logger](runtime.Services(), otogi.ServiceLogger); resolveErr == nil {
			m.logger = logger
		}
	}

	m.dispatcher = dispatcher
	m.commandCatalog = commandCatalog
	m.pager = NewPager(dispatcher, collector, m.sessionTimeout, m.logger)

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
	if event.Command.Name != helpCommandName {
		return nil
	}
	if m.dispatcher == nil || m.pager == nil {
		return fmt.Errorf("help handle command: sink dispatcher not configured")
	}
	if m.commandCatalog == nil {
		return fmt.Errorf("help handle command: command catalog not configured")
	}

	commands, err := m.commandCatalog.ListCommands(ctx)
	if err != nil {
		return fmt.Errorf("help list commands: %w", err)
	}

	if query := strings.TrimSpace(event.Command.Value); query != "" {
		return m.replyDetail(ctx, event, commands, query)
	}

	pages, err := BuildCatalog(ctx, commands, event, m.catalogOptions())
	if err != nil {
		return fmt.Errorf("help build catalog: %w", err)
	}
	if _, err := m.pager.Run(ctx, pages, event); err != nil {
		return fmt.Errorf("help run session: %w", err)
	}

	return nil
}

// Pages builds the catalog for event without starting a session.
func (m *Module) Pages(ctx context.Context, commands []otogi.RegisteredCommand, event *otogi.Event) ([]Page, error) {
	return BuildCatalog(ctx, commands, event, m.catalogOptions())
}

func (m *Module) catalogOptions() CatalogOptions {
	return CatalogOptions{
		CategoryNamer: m.categoryNamer,
		Filter:        m.filter,
		Logger:        m.logger,
	}
}

func (m *Module) replyDetail(
	ctx context.Context,
	event *otogi.Event,
	commands []otogi.RegisteredCommand,
	query string,
) error {
	var view detailView
	if spec, found := findCommand(commands, query); found {
		view = renderDetail(spec)
	} else {
		view = renderNotFound(suggestCommands(query, commands))
	}

	target, err := otogi.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("help derive outbound target: %w", err)
	}
	_, err = m.dispatcher.SendMessage(ctx, otogi.SendMessageRequest{
		Target:           target,
		Text:             view.text,
		Entities:         view.entities,
		ReplyToMessageID: event.Message.ID,
	})
	if err != nil {
		return fmt.Errorf("help send detail message: %w", err)
	}

	return nil
}

var (
	_ otogi.Module          = (*Module)(nil)
	_ otogi.ModuleRegistrar = (*Module)(nil)
)
