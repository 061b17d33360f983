package slack

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"otogi-helpnav/pkg/otogi"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

func TestDriverStartPublishesEnvelopes(t *testing.T) {
	t.Parallel()

	conn := newFakeConnection(8)
	conn.events <- socketmode.Event{Type: socketmode.EventTypeConnected}
	conn.events <- socketmode.Event{
		Type:    socketmode.EventTypeSlashCommand,
		Data:    slack.SlashCommand{Command: "/help", ChannelID: "C100", UserID: "U1"},
		Request: &socketmode.Request{EnvelopeID: "env-slash"},
	}
	conn.events <- socketmode.Event{
		Type: socketmode.EventTypeInteractive,
		Data: slack.InteractionCallback{
			Type:      slack.InteractionTypeBlockActions,
			User:      slack.User{ID: "U1"},
			Container: slack.Container{ChannelID: "C100", MessageTs: "1.1"},
			ActionCallback: slack.ActionCallbacks{BlockActions: []*slack.BlockAction{
				{ActionID: "hnav:1", Type: "button"},
			}},
		},
		Request: &socketmode.Request{EnvelopeID: "env-action"},
	}
	conn.events <- socketmode.Event{
		Type:    socketmode.EventTypeInteractive,
		Data:    slack.InteractionCallback{Type: slack.InteractionTypeViewSubmission},
		Request: &socketmode.Request{EnvelopeID: "env-view"},
	}
	conn.events <- socketmode.Event{
		Type:    socketmode.EventTypeSlashCommand,
		Data:    "garbage",
		Request: &socketmode.Request{EnvelopeID: "env-garbage"},
	}
	close(conn.events)

	var (
		mu       sync.Mutex
		asyncErr []error
	)
	acks := NewAckRegistry(conn, time.Hour)
	driver, err := NewDriver(
		conn,
		acks,
		WithName("slack-main"),
		withIDGenerator(sequentialIDs("id-1", "id-2", "id-3")),
		WithErrorHandler(func(_ context.Context, err error) {
			mu.Lock()
			defer mu.Unlock()
			asyncErr = append(asyncErr, err)
		}),
	)
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	publisher := &recordingPublisher{}
	if err := driver.Start(context.Background(), publisher); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if len(publisher.events) != 2 {
		t.Fatalf("published = %d, want 2", len(publisher.events))
	}
	if got := publisher.events[0]; got.Kind != otogi.EventKindMessageCreated || got.Message.Text != "/help" {
		t.Fatalf("first event = %s %+v", got.Kind, got.Message)
	}
	interaction := publisher.events[1]
	if interaction.Kind != otogi.EventKindInteractionReceived || interaction.Interaction.ID != "id-2" {
		t.Fatalf("second event = %s %+v", interaction.Kind, interaction.Interaction)
	}
	for _, event := range publisher.events {
		if event.Source.ID != "slack-main" || event.Source.Platform != otogi.PlatformSlack {
			t.Fatalf("event source = %+v", event.Source)
		}
	}

	want := map[string]bool{"env-slash": true, "env-view": true, "env-garbage": true, "env-action": true}
	acked := conn.envelopes()
	if len(acked) != len(want) {
		t.Fatalf("acked = %v, want every envelope exactly once", acked)
	}
	for _, envelopeID := range acked {
		if !want[envelopeID] {
			t.Fatalf("unexpected ack %s", envelopeID)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(asyncErr) != 1 {
		t.Fatalf("async errors = %v, want one for the garbage payload", asyncErr)
	}
}

func TestDriverStartStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	conn := newFakeConnection(0)
	driver, err := NewDriver(conn, NewAckRegistry(conn, time.Hour))
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- driver.Start(ctx, &recordingPublisher{})
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestDriverStartReturnsRunError(t *testing.T) {
	t.Parallel()

	conn := newFakeConnection(0)
	conn.runErr = errors.New("invalid_auth")
	driver, err := NewDriver(conn, NewAckRegistry(conn, time.Hour))
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	if err := driver.Start(context.Background(), &recordingPublisher{}); err == nil {
		t.Fatal("expected run error")
	}
}

func TestNewDriverValidation(t *testing.T) {
	t.Parallel()

	conn := newFakeConnection(0)
	if _, err := NewDriver(nil, NewAckRegistry(conn, time.Hour)); err == nil {
		t.Fatal("expected error for nil connection")
	}
	if _, err := NewDriver(conn, nil); err == nil {
		t.Fatal("expected error for nil ack registry")
	}
	driver, err := NewDriver(conn, NewAckRegistry(conn, time.Hour))
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}
	if driver.Name() != DriverType {
		t.Fatalf("name = %s, want %s", driver.Name(), DriverType)
	}
	if err := driver.Start(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil sink")
	}
}

type fakeConnection struct {
	events chan socketmode.Event
	runErr error

	mu    sync.Mutex
	acked []string
}

func newFakeConnection(buffer int) *fakeConnection {
	return &fakeConnection{events: make(chan socketmode.Event, buffer)}
}

func (c *fakeConnection) RunContext(ctx context.Context) error {
	if c.runErr != nil {
		return c.runErr
	}
	<-ctx.Done()

	return ctx.Err()
}

func (c *fakeConnection) Incoming() <-chan socketmode.Event {
	return c.events
}

func (c *fakeConnection) Ack(request socketmode.Request, _ ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, request.EnvelopeID)
}

func (c *fakeConnection) envelopes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.acked...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*otogi.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *otogi.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)

	return p.err
}
