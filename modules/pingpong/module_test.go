package pingpong

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"otogi-helpnav/pkg/otogi"
)

func TestModuleHandleCommand(t *testing.T) {
	occurredAt := time.Unix(1, 0).UTC()

	tests := []struct {
		name         string
		event        *otogi.Event
		now          time.Time
		sendErr      error
		wantErr      bool
		wantSentPong bool
		wantText     string
	}{
		{
			name:         "ordinary ping command triggers pong with latency",
			event:        newCommandEvent("/ping"),
			now:          occurredAt.Add(1250 * time.Millisecond),
			wantSentPong: true,
			wantText:     "pong! (1.25s)",
		},
		{
			name:         "ping command with mention triggers pong",
			event:        newCommandEvent("/ping@mybot"),
			now:          occurredAt.Add(40 * time.Millisecond),
			wantSentPong: true,
			wantText:     "pong! (40ms)",
		},
		{
			name:         "clock behind platform omits latency",
			event:        newCommandEvent("/ping"),
			now:          occurredAt.Add(-time.Second),
			wantSentPong: true,
			wantText:     "pong!",
		},
		{
			name:         "system ping command is ignored",
			event:        newCommandEvent("~ping"),
			wantSentPong: false,
		},
		{
			name:         "non-ping command is ignored",
			event:        newCommandEvent("/hello"),
			wantSentPong: false,
		},
		{
			name:         "missing command payload is ignored",
			event:        newMissingCommandPayloadEvent(),
			wantSentPong: false,
		},
		{
			name:         "ping send failure returns error",
			event:        newCommandEvent("/ping"),
			now:          occurredAt,
			sendErr:      errors.New("dispatcher failure"),
			wantErr:      true,
			wantSentPong: true,
			wantText:     "pong! (0s)",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			module := New(WithClock(func() time.Time { return testCase.now }))
			dispatcher := &captureDispatcher{
				messageID: "sent-1",
				sendErr:   testCase.sendErr,
			}
			module.dispatcher = dispatcher

			err := module.handleCommand(context.Background(), testCase.event)
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			requests := dispatcher.requests()
			sentPong := len(requests) > 0
			if sentPong != testCase.wantSentPong {
				t.Fatalf("sent pong = %v, want %v", sentPong, testCase.wantSentPong)
			}
			if !sentPong {
				return
			}

			request := requests[0]
			if request.Text != testCase.wantText {
				t.Fatalf("text = %q, want %q", request.Text, testCase.wantText)
			}
			if err := request.Validate(); err != nil {
				t.Fatalf("request invalid: %v", err)
			}
			if request.ReplyToMessageID != testCase.event.Message.ID {
				t.Fatalf("reply_to = %q, want %q", request.ReplyToMessageID, testCase.event.Message.ID)
			}
			if request.Target.Sink == nil || request.Target.Sink.ID != "tg-main" {
				t.Fatalf("target sink = %+v, want tg-main", request.Target.Sink)
			}
		})
	}
}

func TestModuleOnRegister(t *testing.T) {
	tests := []struct {
		name             string
		services         map[string]any
		wantErrSubstring string
	}{
		{
			name: "resolve dispatcher succeeds",
			services: map[string]any{
				otogi.ServiceSinkDispatcher: &captureDispatcher{},
			},
		},
		{
			name:             "missing dispatcher fails",
			services:         map[string]any{},
			wantErrSubstring: "pingpong resolve sink dispatcher",
		},
		{
			name: "wrong dispatcher type fails",
			services: map[string]any{
				otogi.ServiceSinkDispatcher: struct{}{},
			},
			wantErrSubstring: "type assertion failed",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			module := New()
			err := module.OnRegister(context.Background(), moduleRuntimeStub{
				registry: serviceRegistryStub{values: testCase.services},
			})
			if testCase.wantErrSubstring == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErrSubstring != "" {
				if err == nil || !strings.Contains(err.Error(), testCase.wantErrSubstring) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstring)
				}
			}
		})
	}
}

func TestModuleSpecIsUncategorized(t *testing.T) {
	t.Parallel()

	spec := New().Spec()
	if len(spec.Commands) != 1 {
		t.Fatalf("command count = %d, want 1", len(spec.Commands))
	}
	if spec.Commands[0].Category != "" {
		t.Fatalf("category = %q, want empty", spec.Commands[0].Category)
	}
	if err := spec.Commands[0].Validate(); err != nil {
		t.Fatalf("command spec invalid: %v", err)
	}
	if !spec.Handlers[0].Capability.Interest.RequireMessage {
		t.Fatal("expected RequireMessage to be true")
	}
}

func newCommandEvent(text string) *otogi.Event {
	candidate, matched, err := otogi.ParseCommandCandidate(text)
	if err != nil {
		panic(err)
	}
	if !matched {
		panic("newCommandEvent expects command text")
	}

	return &otogi.Event{
		ID:         "event-1",
		Kind:       candidate.Prefix.EventKind(),
		OccurredAt: time.Unix(1, 0).UTC(),
		Source: otogi.EventSource{
			Platform: otogi.PlatformTelegram,
			ID:       "tg-main",
		},
		Conversation: otogi.Conversation{
			ID:   "42",
			Type: otogi.ConversationTypePrivate,
		},
		Message: &otogi.Message{
			ID:   "msg-1",
			Text: text,
		},
		Command: &otogi.CommandInvocation{
			Prefix:          candidate.Prefix,
			Name:            candidate.Name,
			Mention:         candidate.Mention,
			Value:           strings.Join(candidate.Tokens, " "),
			SourceEventID:   "source-event-1",
			SourceEventKind: otogi.EventKindMessageCreated,
			RawInput:        text,
		},
	}
}

func newMissingCommandPayloadEvent() *otogi.Event {
	event := newCommandEvent("/ping")
	event.Command = nil

	return event
}

type captureDispatcher struct {
	mu        sync.Mutex
	messageID string
	sendErr   error
	sent      []otogi.SendMessageRequest
}

func (d *captureDispatcher) requests() []otogi.SendMessageRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]otogi.SendMessageRequest(nil), d.sent...)
}

func (d *captureDispatcher) SendMessage(
	_ context.Context,
	request otogi.SendMessageRequest,
) (*otogi.OutboundMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sent = append(d.sent, request)
	if d.sendErr != nil {
		return nil, d.sendErr
	}

	return &otogi.OutboundMessage{ID: d.messageID, Target: request.Target}, nil
}

func (*captureDispatcher) EditMessage(context.Context, otogi.EditMessageRequest) error {
	return nil
}

func (*captureDispatcher) DeleteMessage(context.Context, otogi.DeleteMessageRequest) error {
	return nil
}

func (*captureDispatcher) AcknowledgeInteraction(context.Context, otogi.AcknowledgeInteractionRequest) error {
	return nil
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
