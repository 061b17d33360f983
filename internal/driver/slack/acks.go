package slack

import (
	"sync"
	"time"

	"github.com/slack-go/slack/socketmode"
)

const defaultAckGrace = 2500 * time.Millisecond

// EnvelopeAcker is the subset of SocketConnection used to confirm envelopes.
type EnvelopeAcker interface {
	Ack(request socketmode.Request, payload ...any)
}

// pendingEnvelope is one interactive envelope waiting for its acknowledgment.
type pendingEnvelope struct {
	once           sync.Once
	request        socketmode.Request
	interactionIDs []string
	timer          *time.Timer
}

// AckRegistry holds interactive envelopes until a module acknowledges one of
// their interactions or the grace period elapses.
//
// Slack retries envelopes not acked within three seconds, so every tracked
// envelope is acked exactly once on whichever path comes first.
type AckRegistry struct {
	acker EnvelopeAcker
	grace time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEnvelope
}

// NewAckRegistry creates an envelope registry that auto-acks after grace.
func NewAckRegistry(acker EnvelopeAcker, grace time.Duration) *AckRegistry {
	if grace <= 0 {
		grace = defaultAckGrace
	}

	return &AckRegistry{
		acker:   acker,
		grace:   grace,
		pending: make(map[string]*pendingEnvelope),
	}
}

// track registers one envelope carrying interactionIDs and arms its auto-ack timer.
func (a *AckRegistry) track(request socketmode.Request, interactionIDs []string) {
	envelope := &pendingEnvelope{
		request:        request,
		interactionIDs: append([]string(nil), interactionIDs...),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range envelope.interactionIDs {
		a.pending[id] = envelope
	}
	envelope.timer = time.AfterFunc(a.grace, func() {
		a.release(envelope)
	})
}

// claim acks the envelope holding interactionID. It reports false when the
// envelope was already acked or never tracked.
func (a *AckRegistry) claim(interactionID string) bool {
	a.mu.Lock()
	envelope, exists := a.pending[interactionID]
	a.mu.Unlock()
	if !exists {
		return false
	}

	a.release(envelope)

	return true
}

// flush acks every pending envelope.
func (a *AckRegistry) flush() {
	a.mu.Lock()
	envelopes := make([]*pendingEnvelope, 0, len(a.pending))
	seen := make(map[*pendingEnvelope]struct{}, len(a.pending))
	for _, envelope := range a.pending {
		if _, done := seen[envelope]; done {
			continue
		}
		seen[envelope] = struct{}{}
		envelopes = append(envelopes, envelope)
	}
	a.mu.Unlock()

	for _, envelope := range envelopes {
		a.release(envelope)
	}
}

func (a *AckRegistry) pendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.pending)
}

func (a *AckRegistry) release(envelope *pendingEnvelope) {
	envelope.once.Do(func() {
		a.mu.Lock()
		for _, id := range envelope.interactionIDs {
			delete(a.pending, id)
		}
		timer := envelope.timer
		a.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		a.acker.Ack(envelope.request)
	})
}
