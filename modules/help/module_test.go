package help

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"otogi-helpnav/pkg/otogi"
)

func TestModuleHandleCommand(t *testing.T) {
	commands := []otogi.RegisteredCommand{
		registered("help", otogi.CommandSpec{Name: "help", Description: "show help", Category: "Help"}),
		registered("pingpong", otogi.CommandSpec{Name: "ping", Description: "reply with pong!"}),
		registered("demo", otogi.CommandSpec{
			Name:        "echo",
			Description: "repeat text",
			Category:    "fun",
			Options:     []otogi.CommandOptionSpec{{Name: "upper", Description: "shout"}},
		}),
	}

	tests := []struct {
		name         string
		event        *otogi.Event
		catalogErr   error
		sendErr      error
		filter       CommandFilter
		wantErr      bool
		wantSends    int
		wantCollects int
		wantText     string
	}{
		{
			name:         "bare help starts session",
			event:        newHelpEvent(""),
			wantSends:    1,
			wantCollects: 1,
			wantText:     "Help (Page 1)\n\n/help - show help",
		},
		{
			name:      "command name renders detail",
			event:     newHelpEvent("echo"),
			wantSends: 1,
			wantText:  "Help for echo\nrepeat text\n\nParameters\n--upper - shout",
		},
		{
			name:      "unknown command suggests",
			event:     newHelpEvent("ecko"),
			wantSends: 1,
			wantText:  "Command not found!\nDid you mean: /echo?",
		},
		{
			name: "non-help command ignored",
			event: func() *otogi.Event {
				event := newHelpEvent("")
				event.Command.Name = "ping"
				return event
			}(),
		},
		{
			name: "missing command payload ignored",
			event: func() *otogi.Event {
				event := newHelpEvent("")
				event.Command = nil
				return event
			}(),
		},
		{
			name:       "catalog error returns error",
			event:      newHelpEvent(""),
			catalogErr: errors.New("catalog failure"),
			wantErr:    true,
		},
		{
			name:  "filter error sends nothing",
			event: newHelpEvent(""),
			filter: func(context.Context, *otogi.Event, otogi.RegisteredCommand) (bool, error) {
				return false, errors.New("filter failure")
			},
			wantErr: true,
		},
		{
			name:      "send error returns error",
			event:     newHelpEvent(""),
			sendErr:   errors.New("dispatcher failure"),
			wantErr:   true,
			wantSends: 1,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			options := []Option{
				WithCategoryLabels(map[string]string{"fun": "Fun"}),
				WithSessionTimeout(time.Second),
			}
			if testCase.filter != nil {
				options = append(options, WithCommandFilter(testCase.filter))
			}
			module := New(options...)
			dispatcher := &captureDispatcher{messageID: "sent-1", sendErr: testCase.sendErr}
			collector := &stubCollector{stream: &scriptedStream{tail: otogi.ErrInteractionTimeout}}
			registry := serviceRegistryStub{values: map[string]any{
				otogi.ServiceSinkDispatcher:       dispatcher,
				otogi.ServiceCommandCatalog:       &captureCommandCatalog{commands: commands, err: testCase.catalogErr},
				otogi.ServiceInteractionCollector: collector,
			}}
			if err := module.OnRegister(context.Background(), moduleRuntimeStub{registry: registry}); err != nil {
				t.Fatalf("OnRegister failed: %v", err)
			}

			err := module.handleCommand(context.Background(), testCase.event)
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(dispatcher.sends) != testCase.wantSends {
				t.Fatalf("sends = %d, want %d", len(dispatcher.sends), testCase.wantSends)
			}
			if len(collector.specs) != testCase.wantCollects {
				t.Fatalf("collects = %d, want %d", len(collector.specs), testCase.wantCollects)
			}
			if testCase.wantText == "" {
				return
			}

			sent := dispatcher.sends[0]
			if !strings.HasPrefix(sent.Text, testCase.wantText) {
				t.Fatalf("text = %q, want prefix %q", sent.Text, testCase.wantText)
			}
			if sent.ReplyToMessageID != "msg-1" {
				t.Fatalf("reply_to = %q, want msg-1", sent.ReplyToMessageID)
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
			name: "resolve dependencies succeeds",
			services: map[string]any{
				otogi.ServiceSinkDispatcher:       &captureDispatcher{},
				otogi.ServiceCommandCatalog:       &captureCommandCatalog{},
				otogi.ServiceInteractionCollector: &stubCollector{},
				otogi.ServiceLogger:               slog.Default(),
			},
		},
		{
			name: "missing sink dispatcher fails",
			services: map[string]any{
				otogi.ServiceCommandCatalog:       &captureCommandCatalog{},
				otogi.ServiceInteractionCollector: &stubCollector{},
			},
			wantErrSubstring: "help resolve sink dispatcher",
		},
		{
			name: "missing command catalog fails",
			services: map[string]any{
				otogi.ServiceSinkDispatcher:       &captureDispatcher{},
				otogi.ServiceInteractionCollector: &stubCollector{},
			},
			wantErrSubstring: "help resolve command catalog",
		},
		{
			name: "missing interaction collector fails",
			services: map[string]any{
				otogi.ServiceSinkDispatcher: &captureDispatcher{},
				otogi.ServiceCommandCatalog: &captureCommandCatalog{},
			},
			wantErrSubstring: "help resolve interaction collector",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			module := New()
			registry := serviceRegistryStub{values: testCase.services}
			err := module.OnRegister(context.Background(), moduleRuntimeStub{registry: registry})

			if testCase.wantErrSubstring == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErrSubstring != "" {
				if err == nil {
					t.Fatalf("expected error containing %q", testCase.wantErrSubstring)
				}
				if !strings.Contains(err.Error(), testCase.wantErrSubstring) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstring)
				}
			}
		})
	}
}

func TestModuleSpec(t *testing.T) {
	t.Parallel()

	module := New(WithSessionTimeout(time.Minute), WithSessionWorkers(3))
	spec := module.Spec()
	if len(spec.Handlers) != 1 {
		t.Fatalf("handler count = %d, want 1", len(spec.Handlers))
	}
	if len(spec.Commands) != 1 || spec.Commands[0].Category != helpCategory {
		t.Fatalf("commands = %+v, want one help command in %s", spec.Commands, helpCategory)
	}

	handler := spec.Handlers[0]
	interest := handler.Capability.Interest
	if !interest.RequireCommand || !interest.RequireMessage {
		t.Fatalf("interest = %+v, want command and message payloads", interest)
	}
	if len(interest.CommandNames) != 1 || interest.CommandNames[0] != helpCommandName {
		t.Fatalf("command names = %v, want [%s]", interest.CommandNames, helpCommandName)
	}
	if handler.Subscription.Workers != 3 {
		t.Fatalf("workers = %d, want 3", handler.Subscription.Workers)
	}
	if handler.Subscription.HandlerTimeout <= time.Minute {
		t.Fatalf("handler timeout = %s, want longer than session timeout", handler.Subscription.HandlerTimeout)
	}
}

func TestWithCategoryLabels(t *testing.T) {
	t.Parallel()

	labels := map[string]string{"mod": "Moderation"}
	module := New(WithCategoryLabels(labels))
	labels["mod"] = "changed"

	if got := module.categoryNamer("mod"); got != "Moderation" {
		t.Fatalf("label = %q, want Moderation", got)
	}
	if got := module.categoryNamer("Mod"); got != "Moderation" {
		t.Fatalf("label = %q, want case-insensitive match", got)
	}
	if got := module.categoryNamer("fun"); got != "fun" {
		t.Fatalf("label = %q, want raw category", got)
	}
}
