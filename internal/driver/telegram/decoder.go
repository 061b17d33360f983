package telegram

import (
	"context"
	"fmt"
	"time"

	"otogi-helpnav/pkg/otogi"
)

// Decoder converts Telegram update DTOs into neutral otogi events.
type Decoder interface {
	// Decode maps one adapter update into a validated neutral event envelope.
	Decode(ctx context.Context, update Update) (*otogi.Event, error)
}

// DefaultDecoder provides default Telegram-to-otogi mappings.
type DefaultDecoder struct{}

// NewDefaultDecoder creates a default decoder.
func NewDefaultDecoder() DefaultDecoder {
	return DefaultDecoder{}
}

// Decode converts a Telegram update into a neutral event.
func (d DefaultDecoder) Decode(_ context.Context, update Update) (*otogi.Event, error) {
	event := newBaseEvent(update)

	switch update.Type {
	case UpdateTypeMessage:
		event.Kind = otogi.EventKindMessageCreated
		message, err := decodeMessage(update.Message)
		if err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		event.Message = message
	case UpdateTypeCallback:
		event.Kind = otogi.EventKindInteractionReceived
		interaction, err := decodeCallback(update.Callback)
		if err != nil {
			return nil, fmt.Errorf("decode callback: %w", err)
		}
		event.Interaction = interaction
	default:
		return nil, fmt.Errorf("decode update %s: unsupported type", update.Type)
	}

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("decode update %s: %w", update.Type, err)
	}

	return event, nil
}

// newBaseEvent builds the shared envelope fields used by all update mappings.
func newBaseEvent(update Update) *otogi.Event {
	occurredAt := update.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return &otogi.Event{
		ID:         update.ID,
		OccurredAt: occurredAt,
		Platform:   otogi.PlatformTelegram,
		Conversation: otogi.Conversation{
			ID:    update.Chat.ID,
			Type:  update.Chat.Type,
			Title: update.Chat.Title,
		},
		Actor: otogi.Actor{
			ID:          update.Actor.ID,
			Username:    update.Actor.Username,
			DisplayName: update.Actor.DisplayName,
			IsBot:       update.Actor.IsBot,
		},
		Metadata: update.Metadata,
	}
}

func decodeMessage(payload *MessagePayload) (*otogi.Message, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing message payload")
	}

	return &otogi.Message{
		ID:        payload.ID,
		ThreadID:  payload.ThreadID,
		ReplyToID: payload.ReplyToID,
		Text:      payload.Text,
		Entities:  payload.Entities,
	}, nil
}

// decodeCallback splits callback data back into the control identifier and
// an optional select value.
func decodeCallback(payload *CallbackPayload) (*otogi.Interaction, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing callback payload")
	}

	customID, value, isSelect := decodeCallbackData(payload.Data)
	interaction := &otogi.Interaction{
		ID:        payload.QueryID,
		Kind:      otogi.InteractionKindButton,
		CustomID:  customID,
		MessageID: payload.MessageID,
	}
	if isSelect {
		interaction.Kind = otogi.InteractionKindSelect
		interaction.Values = []string{value}
	}

	return interaction, nil
}
