package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"otogi-helpnav/pkg/otogi"

	"github.com/gotd/td/crypto"
	gotdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/unpack"
	"github.com/gotd/td/tg"
)

const defaultOutboundTimeout = 3 * time.Second

// OutboundOption mutates outbound dispatcher configuration.
type OutboundOption func(*outboundConfig)

// WithOutboundTimeout configures a timeout bound for each outbound RPC call.
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

// SinkDispatcher adapts neutral outbound operations to Telegram bot RPC calls.
type SinkDispatcher struct {
	cfg      outboundConfig
	peers    *PeerCache
	telegram outboundRPC
}

type outboundConfig struct {
	rpcTimeout time.Duration
	logger     *slog.Logger
	sink       otogi.EventSink
}

// NewOutboundDispatcher creates a Telegram outbound dispatcher using gotd client APIs.
func NewOutboundDispatcher(
	client *gotdtelegram.Client,
	peers *PeerCache,
	options ...OutboundOption,
) (*SinkDispatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("new telegram outbound dispatcher: nil client")
	}

	return newOutboundDispatcherWithRPC(newGotdOutboundRPC(client), peers, options...)
}

func newOutboundDispatcherWithRPC(
	rpc outboundRPC,
	peers *PeerCache,
	options ...OutboundOption,
) (*SinkDispatcher, error) {
	if rpc == nil {
		return nil, fmt.Errorf("new telegram outbound dispatcher: nil rpc adapter")
	}
	if peers == nil {
		return nil, fmt.Errorf("new telegram outbound dispatcher: nil peer cache")
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
		cfg:      cfg,
		peers:    peers,
		telegram: rpc,
	}, nil
}

// SendMessage publishes a text message with an optional inline keyboard.
func (d *SinkDispatcher) SendMessage(
	ctx context.Context,
	request otogi.SendMessageRequest,
) (*otogi.OutboundMessage, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("send message validate: %w", err)
	}

	peer, err := d.resolvePeer(request.Target)
	if err != nil {
		return nil, fmt.Errorf("send message resolve peer: %w", err)
	}
	rendered, err := renderOutboundText(request.Text, request.Entities, request.Components)
	if err != nil {
		return nil, fmt.Errorf("send message render: %w", err)
	}
	var replyTo int
	if request.ReplyToMessageID != "" {
		replyTo, err = parseMessageID(request.ReplyToMessageID)
		if err != nil {
			return nil, fmt.Errorf("send message parse reply id %s: %w", request.ReplyToMessageID, err)
		}
	}

	rpcCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	id, err := d.telegram.SendText(rpcCtx, peer, sendTextParams{
		rendered:  rendered,
		replyTo:   replyTo,
		noWebpage: request.DisableLinkPreview,
		silent:    request.Silent,
	})
	if err != nil {
		return nil, fmt.Errorf(
			"send message to %s: %w",
			request.Target.Conversation.ID,
			mapTelegramOutboundError(otogi.OutboundOperationSendMessage, d.cfg.sink, err),
		)
	}

	d.logOutbound(
		ctx,
		otogi.OutboundOperationSendMessage,
		"conversation", request.Target.Conversation.ID,
		"message_id", id,
		"reply_to_message_id", request.ReplyToMessageID,
		"keyboard_rows", rendered.keyboardRows(),
	)

	return &otogi.OutboundMessage{
		ID:     strconv.Itoa(id),
		Target: request.Target,
	}, nil
}

// EditMessage replaces text and inline keyboard of an existing Telegram message.
func (d *SinkDispatcher) EditMessage(ctx context.Context, request otogi.EditMessageRequest) error {
	if err := request.Validate(); err != nil {
		return fmt.Errorf("edit message validate: %w", err)
	}

	peer, err := d.resolvePeer(request.Target)
	if err != nil {
		return fmt.Errorf("edit message resolve peer: %w", err)
	}
	messageID, err := parseMessageID(request.MessageID)
	if err != nil {
		return fmt.Errorf("edit message parse id %s: %w", request.MessageID, err)
	}
	rendered, err := renderOutboundText(request.Text, request.Entities, request.Components)
	if err != nil {
		return fmt.Errorf("edit message render: %w", err)
	}

	rpcCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	err = d.telegram.EditText(rpcCtx, peer, messageID, rendered, request.DisableLinkPreview)
	if isUnchangedEdit(err) {
		d.logOutbound(
			ctx,
			otogi.OutboundOperationEditMessage,
			"conversation", request.Target.Conversation.ID,
			"message_id", request.MessageID,
			"unchanged", true,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf(
			"edit message %s: %w",
			request.MessageID,
			mapTelegramOutboundError(otogi.OutboundOperationEditMessage, d.cfg.sink, err),
		)
	}

	d.logOutbound(
		ctx,
		otogi.OutboundOperationEditMessage,
		"conversation", request.Target.Conversation.ID,
		"message_id", request.MessageID,
		"keyboard_rows", rendered.keyboardRows(),
	)

	return nil
}

// DeleteMessage removes an existing Telegram message.
func (d *SinkDispatcher) DeleteMessage(ctx context.Context, request otogi.DeleteMessageRequest) error {
	if err := request.Validate(); err != nil {
		return fmt.Errorf("delete message validate: %w", err)
	}

	peer, err := d.resolvePeer(request.Target)
	if err != nil {
		return fmt.Errorf("delete message resolve peer: %w", err)
	}
	messageID, err := parseMessageID(request.MessageID)
	if err != nil {
		return fmt.Errorf("delete message parse id %s: %w", request.MessageID, err)
	}

	rpcCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	if err := d.telegram.DeleteMessage(rpcCtx, peer, messageID, request.Revoke); err != nil {
		return fmt.Errorf(
			"delete message %s: %w",
			request.MessageID,
			mapTelegramOutboundError(otogi.OutboundOperationDeleteMessage, d.cfg.sink, err),
		)
	}

	d.logOutbound(
		ctx,
		otogi.OutboundOperationDeleteMessage,
		"conversation", request.Target.Conversation.ID,
		"message_id", request.MessageID,
		"revoke", request.Revoke,
	)

	return nil
}

// AcknowledgeInteraction answers one callback query so the client stops its
// loading indicator.
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
	queryID, err := strconv.ParseInt(strings.TrimSpace(request.InteractionID), 10, 64)
	if err != nil {
		return fmt.Errorf(
			"acknowledge interaction parse query id %s: %w: %w",
			request.InteractionID,
			otogi.ErrInvalidOutboundRequest,
			err,
		)
	}

	rpcCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	if err := d.telegram.AnswerCallback(rpcCtx, queryID, request.Text); err != nil {
		return fmt.Errorf(
			"acknowledge interaction %s: %w",
			request.InteractionID,
			mapTelegramOutboundError(otogi.OutboundOperationAcknowledgeInteraction, d.cfg.sink, err),
		)
	}

	return nil
}

// ListSinks returns the configured Telegram sink identity.
func (d *SinkDispatcher) ListSinks(ctx context.Context) ([]otogi.EventSink, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	return []otogi.EventSink{d.cfg.sink}, nil
}

// ListSinksByPlatform returns the configured sink when platform matches Telegram.
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

func (d *SinkDispatcher) resolvePeer(target otogi.OutboundTarget) (tg.InputPeerClass, error) {
	if err := d.checkPlatform(target); err != nil {
		return nil, err
	}

	peer, err := d.peers.Resolve(target.Conversation)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation %s: %w", target.Conversation.ID, err)
	}

	return peer, nil
}

func (d *SinkDispatcher) logOutbound(ctx context.Context, operation otogi.OutboundOperation, attrs ...any) {
	if d.cfg.logger == nil {
		return
	}

	values := make([]any, 0, 4+len(attrs))
	values = append(values, "operation", operation, "sink", d.cfg.sink.ID)
	values = append(values, attrs...)
	d.cfg.logger.DebugContext(ctx, "telegram outbound operation", values...)
}

func parseMessageID(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid message id: %w", otogi.ErrInvalidOutboundRequest, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: invalid message id", otogi.ErrInvalidOutboundRequest)
	}

	return value, nil
}

// renderedText is one outbound message body converted to Telegram wire form.
type renderedText struct {
	text     string
	entities []tg.MessageEntityClass
	markup   *tg.ReplyInlineMarkup
}

func (r renderedText) keyboardRows() int {
	if r.markup == nil {
		return 0
	}

	return len(r.markup.Rows)
}

func renderOutboundText(
	text string,
	entities []otogi.TextEntity,
	components []otogi.ComponentRow,
) (renderedText, error) {
	converted, err := mapOutboundTextEntities(text, entities)
	if err != nil {
		return renderedText{}, fmt.Errorf("map entities: %w", err)
	}
	markup, err := buildReplyMarkup(components)
	if err != nil {
		return renderedText{}, fmt.Errorf("build keyboard: %w", err)
	}

	return renderedText{text: text, entities: converted, markup: markup}, nil
}

func mapOutboundTextEntities(text string, entities []otogi.TextEntity) ([]tg.MessageEntityClass, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	utf16Offsets := buildUTF16Offsets(text)
	converted := make([]tg.MessageEntityClass, 0, len(entities))
	for index, entity := range entities {
		start := entity.Offset
		end := entity.Offset + entity.Length
		if start < 0 || end < start || end >= len(utf16Offsets) {
			return nil, fmt.Errorf(
				"%w: entity[%d] invalid range [%d,%d) for text runes %d",
				otogi.ErrInvalidOutboundRequest,
				index,
				start,
				end,
				len(utf16Offsets)-1,
			)
		}

		offset := utf16Offsets[start]
		length := utf16Offsets[end] - utf16Offsets[start]
		switch entity.Type {
		case otogi.TextEntityTypeBold:
			converted = append(converted, &tg.MessageEntityBold{Offset: offset, Length: length})
		case otogi.TextEntityTypeItalic:
			converted = append(converted, &tg.MessageEntityItalic{Offset: offset, Length: length})
		case otogi.TextEntityTypeCode:
			converted = append(converted, &tg.MessageEntityCode{Offset: offset, Length: length})
		case otogi.TextEntityTypePre:
			converted = append(converted, &tg.MessageEntityPre{
				Offset:   offset,
				Length:   length,
				Language: entity.Language,
			})
		case otogi.TextEntityTypeBotCommand:
			converted = append(converted, &tg.MessageEntityBotCommand{Offset: offset, Length: length})
		case otogi.TextEntityTypeTextURL:
			converted = append(converted, &tg.MessageEntityTextURL{
				Offset: offset,
				Length: length,
				URL:    entity.URL,
			})
		default:
			return nil, fmt.Errorf(
				"%w: entity[%d] unsupported type %q",
				otogi.ErrOutboundUnsupported,
				index,
				entity.Type,
			)
		}
	}

	return converted, nil
}

func buildUTF16Offsets(text string) []int {
	offsets := make([]int, 1, len(text)+1)
	current := 0
	for _, value := range text {
		current += utf16RuneLength(value)
		offsets = append(offsets, current)
	}

	return offsets
}

func utf16RuneLength(value rune) int {
	if value >= 0x10000 && value <= 0x10FFFF {
		return 2
	}

	return 1
}

type sendTextParams struct {
	rendered  renderedText
	replyTo   int
	noWebpage bool
	silent    bool
}

type outboundRPC interface {
	SendText(ctx context.Context, peer tg.InputPeerClass, params sendTextParams) (int, error)
	EditText(
		ctx context.Context,
		peer tg.InputPeerClass,
		messageID int,
		rendered renderedText,
		noWebpage bool,
	) error
	DeleteMessage(ctx context.Context, peer tg.InputPeerClass, messageID int, revoke bool) error
	AnswerCallback(ctx context.Context, queryID int64, text string) error
}

type gotdOutboundRPC struct {
	raw    *tg.Client
	rand   io.Reader
	sender *message.Sender
}

func newGotdOutboundRPC(client *gotdtelegram.Client) gotdOutboundRPC {
	raw := client.API()

	return gotdOutboundRPC{
		raw:    raw,
		rand:   crypto.DefaultRand(),
		sender: message.NewSender(raw),
	}
}

func (r gotdOutboundRPC) SendText(
	ctx context.Context,
	peer tg.InputPeerClass,
	params sendTextParams,
) (int, error) {
	request := &tg.MessagesSendMessageRequest{
		Peer:      peer,
		Message:   params.rendered.text,
		NoWebpage: params.noWebpage,
		Silent:    params.silent,
	}
	if len(params.rendered.entities) > 0 {
		request.SetEntities(params.rendered.entities)
	}
	if params.rendered.markup != nil {
		request.SetReplyMarkup(params.rendered.markup)
	}
	if params.replyTo > 0 {
		request.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: params.replyTo})
	}

	randomID, err := crypto.RandInt64(r.rand)
	if err != nil {
		return 0, fmt.Errorf("send text random id: %w", err)
	}
	request.RandomID = randomID

	updates, err := r.raw.MessagesSendMessage(ctx, request)
	if err != nil {
		return 0, fmt.Errorf("send text: %w", err)
	}

	messageID, err := unpack.MessageID(updates, nil)
	if err != nil {
		return 0, fmt.Errorf("extract sent message id: %w", err)
	}

	return messageID, nil
}

func (r gotdOutboundRPC) EditText(
	ctx context.Context,
	peer tg.InputPeerClass,
	messageID int,
	rendered renderedText,
	noWebpage bool,
) error {
	request := &tg.MessagesEditMessageRequest{
		Peer:      peer,
		ID:        messageID,
		NoWebpage: noWebpage,
	}
	request.SetMessage(rendered.text)
	if len(rendered.entities) > 0 {
		request.SetEntities(rendered.entities)
	}
	if rendered.markup != nil {
		request.SetReplyMarkup(rendered.markup)
	}

	if _, err := r.raw.MessagesEditMessage(ctx, request); err != nil {
		return fmt.Errorf("edit text: %w", err)
	}

	return nil
}

func (r gotdOutboundRPC) DeleteMessage(
	ctx context.Context,
	peer tg.InputPeerClass,
	messageID int,
	revoke bool,
) error {
	if revoke {
		if _, err := r.sender.To(peer).Revoke().Messages(ctx, messageID); err != nil {
			return fmt.Errorf("revoke delete message: %w", err)
		}

		return nil
	}

	if _, isChannel := peer.(*tg.InputPeerChannel); isChannel {
		return fmt.Errorf("%w: non-revoke channel delete", otogi.ErrOutboundUnsupported)
	}

	if _, err := r.sender.Delete().Messages(ctx, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	return nil
}

func (r gotdOutboundRPC) AnswerCallback(ctx context.Context, queryID int64, text string) error {
	request := &tg.MessagesSetBotCallbackAnswerRequest{
		QueryID: queryID,
	}
	if text != "" {
		request.SetMessage(text)
	}

	if _, err := r.raw.MessagesSetBotCallbackAnswer(ctx, request); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	return nil
}
