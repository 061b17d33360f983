package kernel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"otogi-helpnav/pkg/otogi"
)

// InteractionHub fans interaction events out to filtered collector streams.
//
// It implements otogi.InteractionCollector. Interactions that match no open
// stream are dropped.
type InteractionHub struct {
	mu            sync.Mutex
	nextID        int64
	closed        bool
	streams       map[int64]*interactionStream
	defaultBuffer int
	onAsyncError  func(context.Context, string, error)
}

// NewInteractionHub creates a hub whose streams queue up to defaultBuffer events.
func NewInteractionHub(defaultBuffer int, onAsyncError func(context.Context, string, error)) *InteractionHub {
	if defaultBuffer <= 0 {
		defaultBuffer = defaultInteractionBuffer
	}

	return &InteractionHub{
		streams:       make(map[int64]*interactionStream),
		defaultBuffer: defaultBuffer,
		onAsyncError:  onAsyncError,
	}
}

// Collect opens one stream. Its deadline starts now and is never extended.
func (h *InteractionHub) Collect(
	ctx context.Context,
	spec otogi.InteractionStreamSpec,
) (otogi.InteractionStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect interactions: %w", err)
	}
	if spec.Timeout <= 0 {
		return nil, fmt.Errorf("collect interactions: timeout must be > 0")
	}
	buffer := spec.Buffer
	if buffer <= 0 {
		buffer = h.defaultBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("collect interactions: %w", otogi.ErrInteractionClosed)
	}

	h.nextID++
	stream := &interactionStream{
		id:      h.nextID,
		hub:     h,
		filter:  spec.Filter,
		queue:   make(chan *otogi.Event, buffer),
		expired: make(chan struct{}),
		closed:  make(chan struct{}),
	}
	stream.timer = time.AfterFunc(spec.Timeout, stream.expire)
	h.streams[stream.id] = stream

	return stream, nil
}

// Deliver routes one interaction event to every open stream whose filter matches.
//
// It never blocks: a full stream drops the event and reports ErrEventDropped
// through the async error handler.
func (h *InteractionHub) Deliver(ctx context.Context, event *otogi.Event) error {
	if event == nil || event.Interaction == nil {
		return nil
	}

	h.mu.Lock()
	targets := make([]*interactionStream, 0, len(h.streams))
	for _, stream := range h.streams {
		if stream.filter.Matches(event) {
			targets = append(targets, stream)
		}
	}
	h.mu.Unlock()

	for _, stream := range targets {
		if !stream.offer(event) {
			h.reportAsyncError(ctx, fmt.Sprintf("interaction stream %d", stream.id),
				fmt.Errorf("deliver interaction %s: %w", event.Interaction.CustomID, otogi.ErrEventDropped))
		}
	}

	return nil
}

// OpenStreams reports how many streams are currently registered.
func (h *InteractionHub) OpenStreams() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.streams)
}

// Close closes every open stream and rejects new ones.
func (h *InteractionHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	streams := h.streams
	h.streams = make(map[int64]*interactionStream)
	h.mu.Unlock()

	for _, stream := range streams {
		stream.release()
	}
}

func (h *InteractionHub) remove(id int64) {
	h.mu.Lock()
	delete(h.streams, id)
	h.mu.Unlock()
}

func (h *InteractionHub) reportAsyncError(ctx context.Context, scope string, err error) {
	if h.onAsyncError != nil {
		h.onAsyncError(ctx, scope, err)
	}
}

// interactionStream is one filtered, deadline-bound queue owned by a single reader.
type interactionStream struct {
	id      int64
	hub     *InteractionHub
	filter  otogi.InteractionFilter
	queue   chan *otogi.Event
	timer   *time.Timer
	expired chan struct{}
	closed  chan struct{}

	expireOnce  sync.Once
	releaseOnce sync.Once
}

// Next returns the next queued interaction. Closure and expiry win over
// queued events so a finished stream never yields more work.
func (s *interactionStream) Next(ctx context.Context) (*otogi.Event, error) {
	if err := s.terminalErr(); err != nil {
		return nil, err
	}

	select {
	case event := <-s.queue:
		return event, nil
	case <-s.closed:
		return nil, otogi.ErrInteractionClosed
	case <-s.expired:
		return nil, otogi.ErrInteractionTimeout
	case <-ctx.Done():
		return nil, fmt.Errorf("next interaction: %w", ctx.Err())
	}
}

// Close releases the stream and unregisters it from the hub.
func (s *interactionStream) Close() error {
	s.release()
	s.hub.remove(s.id)

	return nil
}

func (s *interactionStream) terminalErr() error {
	select {
	case <-s.closed:
		return otogi.ErrInteractionClosed
	default:
	}
	select {
	case <-s.expired:
		return otogi.ErrInteractionTimeout
	default:
	}

	return nil
}

func (s *interactionStream) offer(event *otogi.Event) bool {
	if s.terminalErr() != nil {
		return true
	}
	select {
	case s.queue <- event:
		return true
	default:
		return false
	}
}

func (s *interactionStream) expire() {
	s.expireOnce.Do(func() {
		close(s.expired)
	})
}

func (s *interactionStream) release() {
	s.releaseOnce.Do(func() {
		s.timer.Stop()
		close(s.closed)
	})
}

var _ otogi.InteractionCollector = (*InteractionHub)(nil)
