package slack

import (
	"context"

	"github.com/slack-go/slack/socketmode"
)

// SocketConnection is the Socket Mode transport consumed by Driver.
type SocketConnection interface {
	// RunContext keeps the websocket session alive until ctx ends.
	RunContext(ctx context.Context) error
	// Incoming streams envelopes received from Slack.
	Incoming() <-chan socketmode.Event
	// Ack confirms one envelope so Slack does not retry it.
	Ack(request socketmode.Request, payload ...any)
}

// socketModeConnection adapts *socketmode.Client to SocketConnection.
type socketModeConnection struct {
	client *socketmode.Client
}

func (c socketModeConnection) RunContext(ctx context.Context) error {
	return c.client.RunContext(ctx)
}

func (c socketModeConnection) Incoming() <-chan socketmode.Event {
	return c.client.Events
}

func (c socketModeConnection) Ack(request socketmode.Request, payload ...any) {
	c.client.Ack(request, payload...)
}
