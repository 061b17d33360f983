package help

import (
	"context"
	"fmt"
	"sync"
	"time"

	"otogi-helpnav/pkg/otogi"
)

type captureDispatcher struct {
	mu        sync.Mutex
	messageID string
	sendErr   error
	editErr   error
	deleteErr error
	ackErr    error

	sends   []otogi.SendMessageRequest
	edits   []otogi.EditMessageRequest
	deletes []otogi.DeleteMessageRequest
	acks    []otogi.AcknowledgeInteractionRequest
}

func (d *captureDispatcher) SendMessage(
	_ context.Context,
	request otogi.SendMessageRequest,
) (*otogi.OutboundMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sends = append(d.sends, request)
	if d.sendErr != nil {
		return nil, d.sendErr
	}

	return &otogi.OutboundMessage{ID: d.messageID, Target: request.Target}, nil
}

func (d *captureDispatcher) EditMessage(_ context.Context, request otogi.EditMessageRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.edits = append(d.edits, request)
	return d.editErr
}

func (d *captureDispatcher) DeleteMessage(_ context.Context, request otogi.DeleteMessageRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.deletes = append(d.deletes, request)
	return d.deleteErr
}

func (d *captureDispatcher) AcknowledgeInteraction(
	_ context.Context,
	request otogi.AcknowledgeInteractionRequest,
) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.acks = append(d.acks, request)
	return d.ackErr
}

func (*captureDispatcher) ListSinks(context.Context) ([]otogi.EventSink, error) {
	return nil, nil
}

func (*captureDispatcher) ListSinksByPlatform(
	context.Context,
	otogi.Platform,
) ([]otogi.EventSink, error) {
	return nil, nil
}

type captureCommandCatalog struct {
	commands []otogi.RegisteredCommand
	err      error
}

func (c *captureCommandCatalog) ListCommands(context.Context) ([]otogi.RegisteredCommand, error) {
	if c.err != nil {
		return nil, c.err
	}

	return append([]otogi.RegisteredCommand(nil), c.commands...), nil
}

// scriptedStream replays queued results, then reports the tail error forever.
type scriptedStream struct {
	mu      sync.Mutex
	results []streamResult
	tail    error
	closes  int
}

type streamResult struct {
	event *otogi.Event
	err   error
}

func (s *scriptedStream) Next(ctx context.Context) (*otogi.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("next interaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closes > 0 {
		return nil, otogi.ErrInteractionClosed
	}
	if len(s.results) == 0 {
		return nil, s.tail
	}
	next := s.results[0]
	s.results = s.results[1:]

	return next.event, next.err
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closes++
	return nil
}

func (s *scriptedStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closes
}

type stubCollector struct {
	mu     sync.Mutex
	stream *scriptedStream
	err    error
	specs  []otogi.InteractionStreamSpec
}

func (c *stubCollector) Collect(_ context.Context, spec otogi.InteractionStreamSpec) (otogi.InteractionStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.specs = append(c.specs, spec)
	if c.err != nil {
		return nil, c.err
	}

	return c.stream, nil
}

type moduleRuntimeStub struct {
	registry otogi.ServiceRegistry
}

func (s moduleRuntimeStub) Services() otogi.ServiceRegistry {
	return s.registry
}

func (moduleRuntimeStub) Subscribe(
	context.Context,
	otogi.InterestSet,
	otogi.SubscriptionSpec,
	otogi.EventHandler,
) (otogi.Subscription, error) {
	return nil, nil
}

type serviceRegistryStub struct {
	values map[string]any
}

func (s serviceRegistryStub) Register(string, any) error {
	return nil
}

func (s serviceRegistryStub) Resolve(name string) (any, error) {
	value, ok := s.values[name]
	if !ok {
		return nil, otogi.ErrServiceNotFound
	}

	return value, nil
}

func newHelpEvent(value string) *otogi.Event {
	text := "/help"
	if value != "" {
		text += " " + value
	}

	return &otogi.Event{
		ID:         "event-1",
		Kind:       otogi.EventKindCommandReceived,
		OccurredAt: time.Unix(1, 0).UTC(),
		Source: otogi.EventSource{
			Platform: otogi.PlatformTelegram,
			ID:       "tg-main",
		},
		Conversation: otogi.Conversation{
			ID:   "42",
			Type: otogi.ConversationTypeGroup,
		},
		Actor: otogi.Actor{ID: "user-7"},
		Message: &otogi.Message{
			ID:   "msg-1",
			Text: text,
		},
		Command: &otogi.CommandInvocation{
			Prefix:          otogi.CommandPrefixOrdinary,
			Name:            helpCommandName,
			Value:           value,
			SourceEventID:   "source-event-1",
			SourceEventKind: otogi.EventKindMessageCreated,
			RawInput:        text,
		},
	}
}

func newInteractionEvent(id string, kind otogi.InteractionKind, customID string, values ...string) *otogi.Event {
	return &otogi.Event{
		ID:         "interaction-event-" + id,
		Kind:       otogi.EventKindInteractionReceived,
		OccurredAt: time.Unix(2, 0).UTC(),
		Source: otogi.EventSource{
			Platform: otogi.PlatformTelegram,
			ID:       "tg-main",
		},
		Conversation: otogi.Conversation{
			ID:   "42",
			Type: otogi.ConversationTypeGroup,
		},
		Actor: otogi.Actor{ID: "user-7"},
		Interaction: &otogi.Interaction{
			ID:        id,
			Kind:      kind,
			CustomID:  customID,
			Values:    values,
			MessageID: "sent-1",
		},
	}
}

func buttonPress(id string, customID string) streamResult {
	return streamResult{event: newInteractionEvent(id, otogi.InteractionKindButton, customID)}
}

func selectChoice(id string, values ...string) streamResult {
	return streamResult{event: newInteractionEvent(id, otogi.InteractionKindSelect, navigationSelectID, values...)}
}

func registered(moduleName string, spec otogi.CommandSpec) otogi.RegisteredCommand {
	if spec.Prefix == "" {
		spec.Prefix = otogi.CommandPrefixOrdinary
	}

	return otogi.RegisteredCommand{ModuleName: moduleName, Command: spec}
}
