package help

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"otogi-helpnav/pkg/otogi"
)

// DefaultSessionTimeout bounds one navigation session measured from its first render.
const DefaultSessionTimeout = 120 * time.Second

var (
	// ErrEmptyCatalog reports a session started with no pages.
	ErrEmptyCatalog = errors.New("help: empty catalog")
	// ErrMalformedNavigation reports an interaction that does not decode into a navigation action.
	ErrMalformedNavigation = errors.New("help: malformed navigation")
	// ErrNavigationOutOfRange reports a navigation target outside the page list.
	ErrNavigationOutOfRange = errors.New("help: navigation target out of range")
)

// Outcome is the terminal state of one navigation session.
type Outcome string

const (
	// OutcomeCancelled means the user pressed Cancel and the message was deleted.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeTimedOut means the session deadline passed.
	OutcomeTimedOut Outcome = "timed_out"
	// OutcomeClosed means the interaction stream was closed externally.
	OutcomeClosed Outcome = "closed"
	// OutcomeFailed means the session stopped on an error.
	OutcomeFailed Outcome = "failed"
)

// Pager drives paginated help sessions over one dispatcher and interaction collector.
//
// A Pager is safe for concurrent use; every Run owns its own session state.
type Pager struct {
	dispatcher otogi.SinkDispatcher
	collector  otogi.InteractionCollector
	timeout    time.Duration
	logger     *slog.Logger
}

// NewPager creates a pager. A non-positive timeout uses DefaultSessionTimeout.
func NewPager(
	dispatcher otogi.SinkDispatcher,
	collector otogi.InteractionCollector,
	timeout time.Duration,
	logger *slog.Logger,
) *Pager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pager{
		dispatcher: dispatcher,
		collector:  collector,
		timeout:    timeout,
		logger:     logger,
	}
}

// session is the mutable state of one Run. Only the Run loop touches it.
type session struct {
	id           string
	pages        []Page
	index        int
	target       otogi.OutboundMessage
	pagesVisited int
}

// Run sends the first page as a reply to origin and serves navigation until
// the session terminates. Exactly one Outcome is returned per call.
func (p *Pager) Run(ctx context.Context, pages []Page, origin *otogi.Event) (outcome Outcome, err error) {
	state := &session{
		id:    uuid.NewString(),
		pages: pages,
	}
	defer func() {
		attrs := []any{
			"session_id", state.id,
			"outcome", string(outcome),
			"pages_visited", state.pagesVisited,
		}
		if state.pagesVisited > 0 {
			attrs = append(attrs, "final_page", state.index+1)
		}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		p.logger.InfoContext(ctx, "help session finished", attrs...)
	}()

	if len(pages) == 0 {
		return OutcomeFailed, ErrEmptyCatalog
	}
	if origin == nil {
		return OutcomeFailed, fmt.Errorf("help pager run: nil origin event")
	}

	target, err := otogi.OutboundTargetFromEvent(origin)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("help pager derive target: %w", err)
	}
	replyTo := ""
	if origin.Message != nil {
		replyTo = origin.Message.ID
	}

	first := renderPage(pages, 0)
	sent, err := p.dispatcher.SendMessage(ctx, otogi.SendMessageRequest{
		Target:           target,
		Text:             first.text,
		Entities:         first.entities,
		Components:       first.components,
		ReplyToMessageID: replyTo,
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("help pager send first page: %w", err)
	}
	if sent == nil || sent.ID == "" {
		return OutcomeFailed, fmt.Errorf("help pager send first page: dispatcher returned no message id")
	}
	state.target = *sent
	state.pagesVisited = 1

	stream, err := p.collector.Collect(ctx, otogi.InteractionStreamSpec{
		Filter: otogi.InteractionFilter{
			Source:         origin.Source,
			ConversationID: origin.Conversation.ID,
			MessageID:      sent.ID,
			ActorID:        origin.Actor.ID,
		},
		Timeout: p.timeout,
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("help pager open interaction stream: %w", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	for {
		event, nextErr := stream.Next(ctx)
		switch {
		case nextErr == nil:
		case errors.Is(nextErr, otogi.ErrInteractionTimeout):
			return OutcomeTimedOut, nil
		case errors.Is(nextErr, otogi.ErrInteractionClosed),
			errors.Is(nextErr, context.Canceled),
			errors.Is(nextErr, context.DeadlineExceeded):
			return OutcomeClosed, nil
		default:
			return OutcomeFailed, fmt.Errorf("help pager next interaction: %w", nextErr)
		}

		done, stepErr := p.step(ctx, state, event)
		if stepErr != nil {
			return OutcomeFailed, stepErr
		}
		if done {
			return OutcomeCancelled, nil
		}
	}
}

// step processes one interaction. It reports done when the session was cancelled.
func (p *Pager) step(ctx context.Context, state *session, event *otogi.Event) (bool, error) {
	if event == nil || event.Interaction == nil {
		return false, fmt.Errorf("help pager step: %w: event without interaction", ErrMalformedNavigation)
	}

	if err := p.dispatcher.AcknowledgeInteraction(ctx, otogi.AcknowledgeInteractionRequest{
		Target:        state.target.Target,
		InteractionID: event.Interaction.ID,
	}); err != nil {
		return false, fmt.Errorf("help pager acknowledge interaction: %w", err)
	}

	action, err := parseNavigation(event.Interaction)
	if err != nil {
		return false, fmt.Errorf("help pager step: %w", err)
	}

	if action.kind == navigationCancel {
		if err := p.dispatcher.DeleteMessage(ctx, otogi.DeleteMessageRequest{
			Target:    state.target.Target,
			MessageID: state.target.ID,
			Revoke:    true,
		}); err != nil {
			return false, fmt.Errorf("help pager delete message: %w", err)
		}
		return true, nil
	}

	if action.target < 0 || action.target >= len(state.pages) {
		return false, fmt.Errorf("%w: %d not in [0, %d)", ErrNavigationOutOfRange, action.target, len(state.pages))
	}

	rendered := renderPage(state.pages, action.target)
	if err := p.dispatcher.EditMessage(ctx, otogi.EditMessageRequest{
		Target:     state.target.Target,
		MessageID:  state.target.ID,
		Text:       rendered.text,
		Entities:   rendered.entities,
		Components: rendered.components,
	}); err != nil {
		return false, fmt.Errorf("help pager edit page %d: %w", action.target, err)
	}
	state.index = action.target
	state.pagesVisited++

	return false, nil
}
