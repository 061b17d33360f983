package kernel

import (
	"context"
	"fmt"
	"strings"

	"otogi-helpnav/pkg/otogi"
)

type commandRegistration struct {
	moduleName string
	spec       otogi.CommandSpec
}

// registerModuleCommands validates and registers module-owned command specs.
//
// Registration order is recorded so the command catalog can list commands in
// the order modules declared them.
func (k *Kernel) registerModuleCommands(
	_ context.Context,
	moduleName string,
	commands []otogi.CommandSpec,
) error {
	if len(commands) == 0 {
		return nil
	}

	normalized := make([]otogi.CommandSpec, 0, len(commands))
	seenInModule := make(map[string]struct{}, len(commands))
	for index, command := range commands {
		if err := command.Validate(); err != nil {
			return fmt.Errorf("register command[%d] for module %s: %w", index, moduleName, err)
		}

		command = cloneCommandSpec(command)
		key := commandRegistryKey(command.Prefix, command.Name)
		if _, exists := seenInModule[key]; exists {
			return fmt.Errorf(
				"register command %s for module %s: duplicate declaration",
				formatCommandKey(command.Prefix, command.Name),
				moduleName,
			)
		}
		seenInModule[key] = struct{}{}
		normalized = append(normalized, command)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, command := range normalized {
		key := commandRegistryKey(command.Prefix, command.Name)
		if existing, exists := k.commands[key]; exists {
			return fmt.Errorf(
				"register command %s for module %s: already registered by module %s",
				formatCommandKey(command.Prefix, command.Name),
				moduleName,
				existing.moduleName,
			)
		}
	}
	for _, command := range normalized {
		key := commandRegistryKey(command.Prefix, command.Name)
		k.commands[key] = commandRegistration{
			moduleName: moduleName,
			spec:       command,
		}
		k.commandOrder = append(k.commandOrder, key)
	}

	return nil
}

// unregisterModuleCommands removes every command owned by one module.
func (k *Kernel) unregisterModuleCommands(moduleName string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for key, registration := range k.commands {
		if registration.moduleName == moduleName {
			delete(k.commands, key)
			k.commandOrder = removeOrderedName(k.commandOrder, key)
		}
	}
}

// lookupCommand resolves one command spec by prefix + normalized name.
func (k *Kernel) lookupCommand(prefix otogi.CommandPrefix, name string) (otogi.CommandSpec, bool) {
	key := commandRegistryKey(prefix, name)

	k.mu.RLock()
	registration, exists := k.commands[key]
	k.mu.RUnlock()
	if !exists {
		return otogi.CommandSpec{}, false
	}

	return cloneCommandSpec(registration.spec), true
}

// newDriverEventSink creates the source-event sink wrapped with command derivation.
func (k *Kernel) newDriverEventSink() otogi.EventPublisher {
	return &commandDerivingSink{
		base:          k.bus,
		lookupCommand: k.lookupCommand,
		serviceLookup: k.services,
		reportAsync:   k.cfg.onAsyncError,
	}
}

// commandDerivingSink publishes source events and derives command events.
//
// A registered command is only derived when every check attached to its spec
// allows the invoking actor.
type commandDerivingSink struct {
	base          otogi.EventPublisher
	lookupCommand func(prefix otogi.CommandPrefix, name string) (otogi.CommandSpec, bool)
	serviceLookup otogi.ServiceRegistry
	reportAsync   func(context.Context, string, error)
}

// Publish forwards one source event and conditionally derives one command event.
func (s *commandDerivingSink) Publish(ctx context.Context, event *otogi.Event) error {
	if event == nil {
		return fmt.Errorf("publish command deriving sink: nil event")
	}
	if s.base == nil {
		return fmt.Errorf("publish command deriving sink: nil base sink")
	}

	if err := s.base.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish source event %s: %w", event.Kind, err)
	}

	if event.Kind != otogi.EventKindMessageCreated || event.Message == nil {
		return nil
	}
	candidate, matched, parseErr := otogi.ParseCommandCandidate(event.Message.Text)
	if !matched {
		return nil
	}

	spec, registered := s.lookupCommand(candidate.Prefix, candidate.Name)
	if !registered {
		return nil
	}
	if parseErr != nil {
		s.reply(ctx, event, formatCommandErrorReply(spec, parseErr))
		return nil
	}

	allowed, checkErr := otogi.EvaluateCommandChecks(ctx, spec.Checks, event)
	if checkErr != nil {
		s.reportAsyncError(ctx, "command check "+formatCommandKey(spec.Prefix, spec.Name), checkErr)
	}
	if !allowed {
		s.reply(ctx, event, fmt.Sprintf("you are not allowed to use %s", formatCommandKey(spec.Prefix, spec.Name)))
		return nil
	}

	invocation, bindErr := otogi.BindCommand(candidate, spec, event)
	if bindErr != nil {
		s.reply(ctx, event, formatCommandErrorReply(spec, bindErr))
		return nil
	}

	commandEvent := derivedCommandEvent(event, invocation)
	if err := s.base.Publish(ctx, commandEvent); err != nil {
		return fmt.Errorf("publish derived command %s: %w", invocation.Name, err)
	}

	return nil
}

// reply sends text as a reply to the source message through the sink dispatcher.
func (s *commandDerivingSink) reply(ctx context.Context, sourceEvent *otogi.Event, text string) {
	if s.serviceLookup == nil {
		s.reportAsyncError(ctx, "command reply resolve dispatcher", fmt.Errorf("service lookup unavailable"))
		return
	}

	dispatcher, err := otogi.ResolveAs[otogi.SinkDispatcher](s.serviceLookup, otogi.ServiceSinkDispatcher)
	if err != nil {
		s.reportAsyncError(ctx, "command reply resolve dispatcher", err)
		return
	}

	target, err := otogi.OutboundTargetFromEvent(sourceEvent)
	if err != nil {
		s.reportAsyncError(ctx, "command reply derive target", err)
		return
	}

	_, err = dispatcher.SendMessage(ctx, otogi.SendMessageRequest{
		Target:           target,
		Text:             text,
		ReplyToMessageID: sourceEvent.Message.ID,
	})
	if err != nil {
		s.reportAsyncError(ctx, "command reply send", err)
	}
}

func (s *commandDerivingSink) reportAsyncError(ctx context.Context, scope string, err error) {
	if s.reportAsync != nil {
		s.reportAsync(ctx, scope, err)
	}
}

func derivedCommandEvent(sourceEvent *otogi.Event, invocation otogi.CommandInvocation) *otogi.Event {
	kind := invocation.Prefix.EventKind()
	message := *sourceEvent.Message
	message.Entities = append([]otogi.TextEntity(nil), sourceEvent.Message.Entities...)

	return &otogi.Event{
		ID:           sourceEvent.ID + "#" + string(kind),
		Kind:         kind,
		OccurredAt:   sourceEvent.OccurredAt,
		Platform:     sourceEvent.Platform,
		Source:       sourceEvent.Source,
		Conversation: sourceEvent.Conversation,
		Actor:        sourceEvent.Actor,
		Message:      &message,
		Command:      cloneCommandInvocation(invocation),
		Metadata:     cloneStringMap(sourceEvent.Metadata),
	}
}

func formatCommandErrorReply(spec otogi.CommandSpec, parseErr error) string {
	return fmt.Sprintf("%s\nusage: %s", parseErr.Error(), commandUsage(spec))
}

func commandUsage(spec otogi.CommandSpec) string {
	parts := []string{formatCommandKey(spec.Prefix, spec.Name)}
	if len(spec.Subcommands) > 0 {
		names := make([]string, 0, len(spec.Subcommands))
		for _, sub := range spec.Subcommands {
			names = append(names, normalizeCommandName(sub.Name))
		}
		parts = append(parts, "["+strings.Join(names, "|")+"]")
	}
	for _, option := range spec.Options {
		descriptor := option.Usage()
		if alias := normalizeCommandName(option.Alias); alias != "" && normalizeCommandName(option.Name) != "" {
			descriptor += "|-" + alias
		}
		if option.HasValue {
			descriptor += " <value>"
		}
		if !option.Required {
			descriptor = "[" + descriptor + "]"
		}
		parts = append(parts, descriptor)
	}

	return strings.Join(parts, " ")
}

func commandRegistryKey(prefix otogi.CommandPrefix, name string) string {
	return fmt.Sprintf("%s:%s", prefix, normalizeCommandName(name))
}

func formatCommandKey(prefix otogi.CommandPrefix, name string) string {
	return fmt.Sprintf("%s%s", prefix, normalizeCommandName(name))
}

func normalizeCommandName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// cloneCommandSpec normalizes names and copies owned slices. Checks are shared
// because they are immutable predicates.
func cloneCommandSpec(spec otogi.CommandSpec) otogi.CommandSpec {
	cloned := spec
	cloned.Name = normalizeCommandName(spec.Name)
	if spec.Options != nil {
		cloned.Options = append([]otogi.CommandOptionSpec(nil), spec.Options...)
		for index := range cloned.Options {
			cloned.Options[index].Name = normalizeCommandName(cloned.Options[index].Name)
			cloned.Options[index].Alias = normalizeCommandName(cloned.Options[index].Alias)
		}
	}
	if spec.Checks != nil {
		cloned.Checks = append([]otogi.CommandCheck(nil), spec.Checks...)
	}
	if spec.Subcommands != nil {
		cloned.Subcommands = make([]otogi.CommandSpec, len(spec.Subcommands))
		for index, sub := range spec.Subcommands {
			cloned.Subcommands[index] = cloneCommandSpec(sub)
		}
	}

	return cloned
}

func cloneCommandInvocation(invocation otogi.CommandInvocation) *otogi.CommandInvocation {
	cloned := invocation
	if len(invocation.Options) > 0 {
		cloned.Options = append([]otogi.CommandOption(nil), invocation.Options...)
	}

	return &cloned
}

func cloneStringMap(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}

	cloned := make(map[string]string, len(metadata))
	for key, value := range metadata {
		cloned[key] = value
	}

	return cloned
}
