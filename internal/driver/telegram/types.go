package telegram

import (
	"time"

	"otogi-helpnav/pkg/otogi"
)

// UpdateType identifies the Telegram update semantic category.
type UpdateType string

const (
	// UpdateTypeMessage identifies new message updates.
	UpdateTypeMessage UpdateType = "message"
	// UpdateTypeCallback identifies inline keyboard callback queries.
	UpdateTypeCallback UpdateType = "callback"
)

// Update is the Telegram adapter's internal DTO before neutral decoding.
type Update struct {
	ID         string
	Type       UpdateType
	OccurredAt time.Time
	Chat       ChatRef
	Actor      ActorRef
	Message    *MessagePayload
	Callback   *CallbackPayload
	Metadata   map[string]string
}

// ChatRef identifies Telegram chat context.
type ChatRef struct {
	ID    string
	Title string
	Type  otogi.ConversationType
}

// ActorRef identifies Telegram actor context.
type ActorRef struct {
	ID          string
	Username    string
	DisplayName string
	IsBot       bool
}

// MessagePayload represents a Telegram message projection.
type MessagePayload struct {
	ID        string
	ThreadID  string
	ReplyToID string
	Text      string
	Entities  []otogi.TextEntity
}

// CallbackPayload represents one inline keyboard button press.
type CallbackPayload struct {
	// QueryID answers the callback through messages.setBotCallbackAnswer.
	QueryID string
	// MessageID identifies the message carrying the keyboard.
	MessageID string
	// Data is the raw callback data attached to the pressed button.
	Data []byte
}
