package otogi

import (
	"context"
	"fmt"
	"time"
)

// ServiceInteractionCollector is the canonical service registry key for interaction streams.
const ServiceInteractionCollector = "otogi.interaction_collector"

// InteractionKind identifies which control produced an interaction.
type InteractionKind string

const (
	// InteractionKindButton is a button press.
	InteractionKindButton InteractionKind = "button"
	// InteractionKindSelect is a select menu choice.
	InteractionKindSelect InteractionKind = "select"
)

// Interaction is one user activation of a message control.
type Interaction struct {
	// ID is the platform handle used to acknowledge the interaction.
	ID string
	// Kind identifies the activated control type.
	Kind InteractionKind
	// CustomID is the identifier of the activated control.
	CustomID string
	// Values holds chosen option values for select interactions.
	Values []string
	// MessageID identifies the message carrying the control.
	MessageID string
}

// Validate checks interaction payload coherence.
func (i *Interaction) Validate() error {
	if i == nil {
		return fmt.Errorf("validate interaction: nil interaction")
	}
	if i.ID == "" {
		return fmt.Errorf("validate interaction: missing id")
	}
	if i.CustomID == "" {
		return fmt.Errorf("validate interaction: missing custom id")
	}
	if i.MessageID == "" {
		return fmt.Errorf("validate interaction: missing message id")
	}
	switch i.Kind {
	case InteractionKindButton, InteractionKindSelect:
	default:
		return fmt.Errorf("validate interaction: unsupported kind %q", i.Kind)
	}

	return nil
}

// InteractionFilter selects which interaction events one stream receives.
//
// Empty fields match anything.
type InteractionFilter struct {
	// Source restricts delivery to one driver instance.
	Source EventSource
	// ConversationID restricts delivery to one conversation.
	ConversationID string
	// MessageID restricts delivery to controls attached to one message.
	MessageID string
	// ActorID restricts delivery to one user.
	ActorID string
}

// Matches reports whether event is an interaction event accepted by the filter.
func (f InteractionFilter) Matches(event *Event) bool {
	if event == nil || event.Interaction == nil {
		return false
	}
	if f.Source.Platform != "" && f.Source.Platform != event.Source.Platform {
		return false
	}
	if f.Source.ID != "" && f.Source.ID != event.Source.ID {
		return false
	}
	if f.ConversationID != "" && f.ConversationID != event.Conversation.ID {
		return false
	}
	if f.MessageID != "" && f.MessageID != event.Interaction.MessageID {
		return false
	}
	if f.ActorID != "" && f.ActorID != event.Actor.ID {
		return false
	}

	return true
}

// InteractionStreamSpec configures one collector stream.
type InteractionStreamSpec struct {
	// Filter selects delivered interactions.
	Filter InteractionFilter
	// Timeout bounds the whole stream lifetime measured from Collect.
	Timeout time.Duration
	// Buffer bounds queued interactions. Zero uses the collector default.
	Buffer int
}

// InteractionCollector opens filtered, time-bounded interaction streams.
type InteractionCollector interface {
	// Collect opens a stream that starts receiving matching interactions immediately.
	Collect(ctx context.Context, spec InteractionStreamSpec) (InteractionStream, error)
}

// InteractionStream is a single-consumer, non-restartable sequence of interaction events.
type InteractionStream interface {
	// Next blocks for the next matching interaction event.
	//
	// It returns ErrInteractionTimeout once the stream deadline passes and
	// ErrInteractionClosed after Close or collector shutdown.
	Next(ctx context.Context) (*Event, error)
	// Close releases the stream. Repeated calls are no-ops.
	Close() error
}
