package otogi

import (
	"context"
	"fmt"
)

// ServiceSinkDispatcher is the canonical service registry key for outbound messaging.
const ServiceSinkDispatcher = "otogi.sink_dispatcher"

// ServiceEventSinkCatalog is the canonical service registry key for sink lookup.
const ServiceEventSinkCatalog = "otogi.event_sink_catalog"

// SinkDispatcher sends neutral outbound operations to one sink adapter.
//
// Implementations should enforce platform-specific constraints while preserving
// these protocol-level request semantics.
type SinkDispatcher interface {
	EventSinkCatalog
	// SendMessage publishes a new outbound message to a destination conversation.
	SendMessage(ctx context.Context, request SendMessageRequest) (*OutboundMessage, error)
	// EditMessage replaces text and controls of an existing outbound message by ID.
	EditMessage(ctx context.Context, request EditMessageRequest) error
	// DeleteMessage removes an existing outbound message by ID.
	DeleteMessage(ctx context.Context, request DeleteMessageRequest) error
	// AcknowledgeInteraction tells the platform an interaction was received.
	AcknowledgeInteraction(ctx context.Context, request AcknowledgeInteractionRequest) error
}

// EventSinkCatalog lists active sink identities for dynamic module selection.
type EventSinkCatalog interface {
	// ListSinks returns all active sink identities.
	ListSinks(ctx context.Context) ([]EventSink, error)
	// ListSinksByPlatform returns active sink identities for one platform.
	ListSinksByPlatform(ctx context.Context, platform Platform) ([]EventSink, error)
}

// OutboundTarget identifies where an outbound operation should be delivered.
type OutboundTarget struct {
	// Conversation identifies the destination conversation.
	Conversation Conversation
	// Sink optionally overrides runtime-configured sink routing for this operation.
	Sink *EventSink
}

// Validate checks target identity fields used for outbound routing.
func (t OutboundTarget) Validate() error {
	if t.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidOutboundRequest)
	}
	if t.Conversation.Type == "" {
		return fmt.Errorf("%w: missing conversation type", ErrInvalidOutboundRequest)
	}
	if t.Sink != nil {
		if t.Sink.Platform == "" && t.Sink.ID == "" {
			return fmt.Errorf("%w: missing sink identity", ErrInvalidOutboundRequest)
		}
	}

	return nil
}

// OutboundTargetFromEvent derives a destination target from an inbound event.
func OutboundTargetFromEvent(event *Event) (OutboundTarget, error) {
	if event == nil {
		return OutboundTarget{}, fmt.Errorf("%w: nil event", ErrInvalidOutboundRequest)
	}
	sourcePlatform := event.Source.Platform
	if sourcePlatform == "" {
		sourcePlatform = event.Platform
	}
	target := OutboundTarget{
		Conversation: event.Conversation,
	}
	if sourcePlatform != "" || event.Source.ID != "" {
		target.Sink = &EventSink{
			Platform: sourcePlatform,
			ID:       event.Source.ID,
		}
	}
	if err := target.Validate(); err != nil {
		return OutboundTarget{}, fmt.Errorf("derive target from event %s: %w", event.Kind, err)
	}

	return target, nil
}

// OutboundMessage identifies a message successfully emitted by the dispatcher.
type OutboundMessage struct {
	// ID is the destination-platform message identifier.
	ID string
	// Target is the destination where this message was delivered.
	Target OutboundTarget
}

// SendMessageRequest describes a new outbound text message.
type SendMessageRequest struct {
	// Target identifies where the message should be sent.
	Target OutboundTarget
	// Text is the message body.
	Text string
	// Entities decorates Text with semantic formatting ranges.
	Entities []TextEntity
	// Components attaches interactive control rows.
	Components []ComponentRow
	// ReplyToMessageID optionally links this message as a reply.
	ReplyToMessageID string
	// DisableLinkPreview disables link previews when supported by the platform.
	DisableLinkPreview bool
	// Silent suppresses destination-side notifications when supported.
	Silent bool
}

// Validate checks the request envelope before dispatch.
func (r SendMessageRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return fmt.Errorf("validate send message target: %w", err)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: missing message text", ErrInvalidOutboundRequest)
	}
	if err := ValidateTextEntities(r.Text, r.Entities); err != nil {
		return fmt.Errorf("%w: validate send message entities: %w", ErrInvalidOutboundRequest, err)
	}
	if err := ValidateComponentRows(r.Components); err != nil {
		return fmt.Errorf("%w: validate send message components: %w", ErrInvalidOutboundRequest, err)
	}

	return nil
}

// EditMessageRequest describes a text edit for an existing message.
type EditMessageRequest struct {
	// Target identifies where the message exists.
	Target OutboundTarget
	// MessageID identifies which message should be edited.
	MessageID string
	// Text is the replacement message body.
	Text string
	// Entities decorates Text with semantic formatting ranges.
	Entities []TextEntity
	// Components replaces the message control rows. Nil removes all controls.
	Components []ComponentRow
	// DisableLinkPreview disables link previews when supported by the platform.
	DisableLinkPreview bool
}

// Validate checks the request envelope before dispatch.
func (r EditMessageRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return fmt.Errorf("validate edit message target: %w", err)
	}
	if r.MessageID == "" {
		return fmt.Errorf("%w: missing message id", ErrInvalidOutboundRequest)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: missing message text", ErrInvalidOutboundRequest)
	}
	if err := ValidateTextEntities(r.Text, r.Entities); err != nil {
		return fmt.Errorf("%w: validate edit message entities: %w", ErrInvalidOutboundRequest, err)
	}
	if err := ValidateComponentRows(r.Components); err != nil {
		return fmt.Errorf("%w: validate edit message components: %w", ErrInvalidOutboundRequest, err)
	}

	return nil
}

// DeleteMessageRequest describes message deletion behavior.
type DeleteMessageRequest struct {
	// Target identifies where the message exists.
	Target OutboundTarget
	// MessageID identifies which message should be deleted.
	MessageID string
	// Revoke requests deletion for all participants when supported.
	Revoke bool
}

// Validate checks the request envelope before dispatch.
func (r DeleteMessageRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return fmt.Errorf("validate delete message target: %w", err)
	}
	if r.MessageID == "" {
		return fmt.Errorf("%w: missing message id", ErrInvalidOutboundRequest)
	}

	return nil
}

// AcknowledgeInteractionRequest confirms receipt of one interaction.
type AcknowledgeInteractionRequest struct {
	// Target identifies the conversation where the interaction happened.
	Target OutboundTarget
	// InteractionID is Interaction.ID of the acknowledged interaction.
	InteractionID string
	// Text is an optional short notice shown to the acting user when supported.
	Text string
}

// Validate checks the request envelope before dispatch.
func (r AcknowledgeInteractionRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return fmt.Errorf("validate acknowledge interaction target: %w", err)
	}
	if r.InteractionID == "" {
		return fmt.Errorf("%w: missing interaction id", ErrInvalidOutboundRequest)
	}

	return nil
}
