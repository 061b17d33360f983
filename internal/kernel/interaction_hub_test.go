package kernel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"otogi-helpnav/pkg/otogi"
)

func TestInteractionHubDeliversOnlyMatchingInteractions(t *testing.T) {
	t.Parallel()

	hub := NewInteractionHub(4, nil)
	t.Cleanup(hub.Close)

	stream, err := hub.Collect(context.Background(), otogi.InteractionStreamSpec{
		Filter: otogi.InteractionFilter{
			ConversationID: "chat-1",
			MessageID:      "msg-1",
			ActorID:        "user-1",
		},
		Timeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	otherActor := newInteractionEvent("i1", "msg-1", "hnav:1")
	otherActor.Actor.ID = "user-2"
	otherMessage := newInteractionEvent("i2", "msg-2", "hnav:1")
	match := newInteractionEvent("i3", "msg-1", "hnav:cancel")
	for _, event := range []*otogi.Event{otherActor, otherMessage, match} {
		if err := hub.Deliver(context.Background(), event); err != nil {
			t.Fatalf("deliver %s failed: %v", event.ID, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := stream.Next(ctx)
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got.ID != "i3" {
		t.Fatalf("event id = %s, want i3", got.ID)
	}
}

func TestInteractionHubStreamTimesOut(t *testing.T) {
	t.Parallel()

	hub := NewInteractionHub(4, nil)
	t.Cleanup(hub.Close)

	started := time.Now()
	stream, err := hub.Collect(context.Background(), otogi.InteractionStreamSpec{Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	if _, err := stream.Next(context.Background()); !errors.Is(err, otogi.ErrInteractionTimeout) {
		t.Fatalf("next error = %v, want ErrInteractionTimeout", err)
	}
	if elapsed := time.Since(started); elapsed < 50*time.Millisecond {
		t.Fatalf("timed out after %s, want >= 50ms", elapsed)
	}
	if err := hub.Deliver(context.Background(), newInteractionEvent("late", "msg-1", "hnav:1")); err != nil {
		t.Fatalf("deliver after timeout failed: %v", err)
	}
	if _, err := stream.Next(context.Background()); !errors.Is(err, otogi.ErrInteractionTimeout) {
		t.Fatalf("next after late delivery error = %v, want ErrInteractionTimeout", err)
	}
}

func TestInteractionHubDeadlineNotExtendedByActivity(t *testing.T) {
	t.Parallel()

	hub := NewInteractionHub(4, nil)
	t.Cleanup(hub.Close)

	stream, err := hub.Collect(context.Background(), otogi.InteractionStreamSpec{Timeout: 150 * time.Millisecond})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	deadline := time.Now().Add(150 * time.Millisecond)
	for index := 0; ; index++ {
		_ = hub.Deliver(context.Background(), newInteractionEvent("tick", "msg-1", "hnav:1"))
		_, err := stream.Next(context.Background())
		if errors.Is(err, otogi.ErrInteractionTimeout) {
			break
		}
		if err != nil {
			t.Fatalf("next error = %v", err)
		}
		if index > 1000 {
			t.Fatal("stream never timed out")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if late := time.Since(deadline); late > 100*time.Millisecond {
		t.Fatalf("timeout fired %s after deadline", late)
	}
}

func TestInteractionHubCloseIsIdempotentAndUnregisters(t *testing.T) {
	t.Parallel()

	hub := NewInteractionHub(4, nil)
	t.Cleanup(hub.Close)

	stream, err := hub.Collect(context.Background(), otogi.InteractionStreamSpec{Timeout: time.Minute})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if hub.OpenStreams() != 1 {
		t.Fatalf("open streams = %d, want 1", hub.OpenStreams())
	}

	for range 2 {
		if err := stream.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	}
	if hub.OpenStreams() != 0 {
		t.Fatalf("open streams = %d, want 0", hub.OpenStreams())
	}
	if _, err := stream.Next(context.Background()); !errors.Is(err, otogi.ErrInteractionClosed) {
		t.Fatalf("next error = %v, want ErrInteractionClosed", err)
	}
}

func TestInteractionHubCloseWakesBlockedReaders(t *testing.T) {
	t.Parallel()

	hub := NewInteractionHub(4, nil)
	stream, err := hub.Collect(context.Background(), otogi.InteractionStreamSpec{Timeout: time.Minute})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	result := make(chan error, 1)
	go func() {
		_, err := stream.Next(context.Background())
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Close()

	select {
	case err := <-result:
		if !errors.Is(err, otogi.ErrInteractionClosed) {
			t.Fatalf("next error = %v, want ErrInteractionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked reader not released")
	}

	if _, err := hub.Collect(context.Background(), otogi.InteractionStreamSpec{Timeout: time.Minute}); !errors.Is(err, otogi.ErrInteractionClosed) {
		t.Fatalf("collect after close error = %v, want ErrInteractionClosed", err)
	}
}

func TestInteractionHubFullStreamDropsNewest(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var dropped []error
	hub := NewInteractionHub(1, func(_ context.Context, _ string, err error) {
		mu.Lock()
		dropped = append(dropped, err)
		mu.Unlock()
	})
	t.Cleanup(hub.Close)

	stream, err := hub.Collect(context.Background(), otogi.InteractionStreamSpec{Timeout: time.Minute})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	_ = hub.Deliver(context.Background(), newInteractionEvent("first", "msg-1", "hnav:1"))
	_ = hub.Deliver(context.Background(), newInteractionEvent("second", "msg-1", "hnav:2"))

	got, err := stream.Next(context.Background())
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got.ID != "first" {
		t.Fatalf("event id = %s, want first", got.ID)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 1 || !errors.Is(dropped[0], otogi.ErrEventDropped) {
		t.Fatalf("dropped = %v, want one ErrEventDropped", dropped)
	}
}

func TestInteractionHubNextHonorsContext(t *testing.T) {
	t.Parallel()

	hub := NewInteractionHub(1, nil)
	t.Cleanup(hub.Close)

	stream, err := hub.Collect(context.Background(), otogi.InteractionStreamSpec{Timeout: time.Minute})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := stream.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("next error = %v, want context.Canceled", err)
	}
}

func TestInteractionHubCollectRejectsZeroTimeout(t *testing.T) {
	t.Parallel()

	hub := NewInteractionHub(1, nil)
	t.Cleanup(hub.Close)

	if _, err := hub.Collect(context.Background(), otogi.InteractionStreamSpec{}); err == nil {
		t.Fatal("expected zero timeout to be rejected")
	}
}

func newInteractionEvent(id string, messageID string, customID string) *otogi.Event {
	event := newTestEvent(id, otogi.EventKindInteractionReceived)
	event.Actor = otogi.Actor{ID: "user-1"}
	event.Interaction.MessageID = messageID
	event.Interaction.CustomID = customID

	return event
}
