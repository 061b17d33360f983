package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"otogi-helpnav/pkg/otogi"

	"github.com/slack-go/slack"
)

const defaultOutboundTimeout = 3 * time.Second

// OutboundOption mutates outbound dispatcher configuration.
type OutboundOption func(*outboundConfig)

// WithOutboundTimeout configures a timeout bound for each Web API call.
func WithOutboundTimeout(timeout time.Duration) OutboundOption {
	return func(cfg *outboundConfig) {
		if timeout > 0 {
			cfg.rpcTimeout = timeout
		}
	}
}

// WithOutboundLogger configures structured logging for outbound operations.
func WithOutboundLogger(logger *slog.Logger) OutboundOption {
	return func(cfg *outboundConfig) {
		cfg.logger = logger
	}
}

// WithSinkRef configures the sink identity returned by sink-list operations.
func WithSinkRef(ref otogi.EventSink) OutboundOption {
	return func(cfg *outboundConfig) {
		cfg.sink = ref
		if cfg.sink.Platform == "" {
			cfg.sink.Platform = DriverPlatform
		}
	}
}

type outboundConfig struct {
	rpcTimeout time.Duration
	logger     *slog.Logger
	sink       otogi.EventSink
}

// SinkDispatcher adapts neutral outbound operations to Slack Web API calls.
type SinkDispatcher struct {
	cfg  outboundConfig
	api  outboundRPC
	acks *AckRegistry
}

// NewOutboundDispatcher creates a Slack outbound dispatcher backed by api.
func NewOutboundDispatcher(
	api *slack.Client,
	acks *AckRegistry,
	options ...OutboundOption,
) (*SinkDispatcher, error) {
	if api == nil {
		return nil, fmt.Errorf("new slack outbound dispatcher: nil client")
	}

	return newOutboundDispatcherWithRPC(slackOutboundRPC{api: api}, acks, options...)
}

func newOutboundDispatcherWithRPC(
	rpc outboundRPC,
	acks *AckRegistry,
	options ...OutboundOption,
) (*SinkDispatcher, error) {
	if rpc == nil {
		return nil, fmt.Errorf("new slack outbound dispatcher: nil rpc adapter")
	}
	if acks == nil {
		return nil, fmt.Errorf("new slack outbound dispatcher: nil ack registry")
	}

	cfg := outboundConfig{
		rpcTimeout: defaultOutboundTimeout,
		sink: otogi.EventSink{
			Platform: DriverPlatform,
		},
	}
	for _, option := range options {
		option(&cfg)
	}

	return &SinkDispatcher{
		cfg:  cfg,
		api:  rpc,
		acks: acks,
	}, nil
}

// SendMessage posts a message, threading it under ReplyToMessageID when set.
func (d *SinkDispatcher) SendMessage(
	ctx context.Context,
	request otogi.SendMessageRequest,
) (*otogi.OutboundMessage, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("send message validate: %w", err)
	}
	if err := d.checkPlatform(request.Target); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	rendered, err := renderOutboundMessage(request.Text, request.Entities, request.Components)
	if err != nil {
		return nil, fmt.Errorf("send message render: %w", err)
	}

	rpcCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	timestamp, err := d.api.PostMessage(rpcCtx, request.Target.Conversation.ID, postParams{
		rendered:     rendered,
		threadTS:     request.ReplyToMessageID,
		noLinkUnfurl: request.DisableLinkPreview,
	})
	if err != nil {
		return nil, fmt.Errorf(
			"send message to %s: %w",
			request.Target.Conversation.ID,
			mapSlackOutboundError(otogi.OutboundOperationSendMessage, d.cfg.sink, err),
		)
	}

	d.logOutbound(
		ctx,
		otogi.OutboundOperationSendMessage,
		"conversation", request.Target.Conversation.ID,
		"message_id", timestamp,
		"thread_ts", request.ReplyToMessageID,
		"action_blocks", rendered.actionBlocks(),
	)

	return &otogi.OutboundMessage{
		ID:     timestamp,
		Target: request.Target,
	}, nil
}

// EditMessage replaces text and controls of a posted message via chat.update.
func (d *SinkDispatcher) EditMessage(ctx context.Context, request otogi.EditMessageRequest) error {
	if err := request.Validate(); err != nil {
		return fmt.Errorf("edit message validate: %w", err)
	}
	if err := d.checkPlatform(request.Target); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	rendered, err := renderOutboundMessage(request.Text, request.Entities, request.Components)
	if err != nil {
		return fmt.Errorf("edit message render: %w", err)
	}

	rpcCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	if err := d.api.UpdateMessage(rpcCtx, request.Target.Conversation.ID, request.MessageID, rendered); err != nil {
		return fmt.Errorf(
			"edit message %s: %w",
			request.MessageID,
			mapSlackOutboundError(otogi.OutboundOperationEditMessage, d.cfg.sink, err),
		)
	}

	d.logOutbound(
		ctx,
		otogi.OutboundOperationEditMessage,
		"conversation", request.Target.Conversation.ID,
		"message_id", request.MessageID,
		"action_blocks", rendered.actionBlocks(),
	)

	return nil
}

// DeleteMessage removes a posted message via chat.delete. Slack deletions are
// always visible to everyone, so Revoke is ignored.
func (d *SinkDispatcher) DeleteMessage(ctx context.Context, request otogi.DeleteMessageRequest) error {
	if err := request.Validate(); err != nil {
		return fmt.Errorf("delete message validate: %w", err)
	}
	if err := d.checkPlatform(request.Target); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	rpcCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	if err := d.api.DeleteMessage(rpcCtx, request.Target.Conversation.ID, request.MessageID); err != nil {
		return fmt.Errorf(
			"delete message %s: %w",
			request.MessageID,
			mapSlackOutboundError(otogi.OutboundOperationDeleteMessage, d.cfg.sink, err),
		)
	}

	d.logOutbound(
		ctx,
		otogi.OutboundOperationDeleteMessage,
		"conversation", request.Target.Conversation.ID,
		"message_id", request.MessageID,
	)

	return nil
}

// AcknowledgeInteraction acks the Socket Mode envelope that carried the
// interaction. Envelopes already acked by the grace timer are a no-op.
func (d *SinkDispatcher) AcknowledgeInteraction(
	ctx context.Context,
	request otogi.AcknowledgeInteractionRequest,
) error {
	if err := request.Validate(); err != nil {
		return fmt.Errorf("acknowledge interaction validate: %w", err)
	}
	if err := d.checkPlatform(request.Target); err != nil {
		return fmt.Errorf("acknowledge interaction: %w", err)
	}

	claimed := d.acks.claim(request.InteractionID)
	d.logOutbound(
		ctx,
		otogi.OutboundOperationAcknowledgeInteraction,
		"interaction_id", request.InteractionID,
		"claimed", claimed,
	)

	return nil
}

// ListSinks returns the configured Slack sink identity.
func (d *SinkDispatcher) ListSinks(ctx context.Context) ([]otogi.EventSink, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	return []otogi.EventSink{d.cfg.sink}, nil
}

// ListSinksByPlatform returns the configured sink when platform matches Slack.
func (d *SinkDispatcher) ListSinksByPlatform(
	ctx context.Context,
	platform otogi.Platform,
) ([]otogi.EventSink, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list sinks by platform: %w", err)
	}
	if platform != d.cfg.sink.Platform {
		return []otogi.EventSink{}, nil
	}

	return []otogi.EventSink{d.cfg.sink}, nil
}

func (d *SinkDispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.rpcTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, d.cfg.rpcTimeout)
}

func (d *SinkDispatcher) checkPlatform(target otogi.OutboundTarget) error {
	if target.Sink != nil && target.Sink.Platform != "" && target.Sink.Platform != DriverPlatform {
		return fmt.Errorf("%w: platform %s", otogi.ErrOutboundUnsupported, target.Sink.Platform)
	}

	return nil
}

func (d *SinkDispatcher) logOutbound(ctx context.Context, operation otogi.OutboundOperation, attrs ...any) {
	if d.cfg.logger == nil {
		return
	}

	values := make([]any, 0, 4+len(attrs))
	values = append(values, "operation", operation, "sink", d.cfg.sink.ID)
	values = append(values, attrs...)
	d.cfg.logger.DebugContext(ctx, "slack outbound operation", values...)
}

type postParams struct {
	rendered     renderedMessage
	threadTS     string
	noLinkUnfurl bool
}

type outboundRPC interface {
	PostMessage(ctx context.Context, channelID string, params postParams) (string, error)
	UpdateMessage(ctx context.Context, channelID string, timestamp string, rendered renderedMessage) error
	DeleteMessage(ctx context.Context, channelID string, timestamp string) error
}

type slackOutboundRPC struct {
	api *slack.Client
}

func (r slackOutboundRPC) PostMessage(ctx context.Context, channelID string, params postParams) (string, error) {
	options := messageOptions(params.rendered)
	if params.threadTS != "" {
		options = append(options, slack.MsgOptionTS(params.threadTS))
	}
	if params.noLinkUnfurl {
		options = append(options, slack.MsgOptionDisableLinkUnfurl())
	}

	_, timestamp, err := r.api.PostMessageContext(ctx, channelID, options...)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage: %w", err)
	}

	return timestamp, nil
}

func (r slackOutboundRPC) UpdateMessage(
	ctx context.Context,
	channelID string,
	timestamp string,
	rendered renderedMessage,
) error {
	options := messageOptions(rendered)
	if rendered.blocks == nil {
		// chat.update keeps previous blocks unless an explicit empty list is sent.
		options = append(options, slack.MsgOptionBlocks([]slack.Block{}...))
	}

	if _, _, _, err := r.api.UpdateMessageContext(ctx, channelID, timestamp, options...); err != nil {
		return fmt.Errorf("chat.update: %w", err)
	}

	return nil
}

func (r slackOutboundRPC) DeleteMessage(ctx context.Context, channelID string, timestamp string) error {
	if _, _, err := r.api.DeleteMessageContext(ctx, channelID, timestamp); err != nil {
		return fmt.Errorf("chat.delete: %w", err)
	}

	return nil
}

func messageOptions(rendered renderedMessage) []slack.MsgOption {
	options := []slack.MsgOption{slack.MsgOptionText(rendered.text, false)}
	if len(rendered.blocks) > 0 {
		options = append(options, slack.MsgOptionBlocks(rendered.blocks...))
	}

	return options
}
