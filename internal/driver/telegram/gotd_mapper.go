package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"otogi-helpnav/pkg/otogi"

	"github.com/gotd/td/tg"
)

const (
	gotdUnknownConversationID = "unknown"
	gotdUnknownActorID        = "unknown"
)

// DefaultGotdUpdateMapper maps gotd bot updates into adapter DTO updates.
type DefaultGotdUpdateMapper struct {
	peerCache *PeerCache
}

// GotdUpdateMapperOption mutates DefaultGotdUpdateMapper behavior.
type GotdUpdateMapperOption func(*DefaultGotdUpdateMapper)

// WithPeerCache records entity-derived peer mappings for outbound dispatch.
func WithPeerCache(cache *PeerCache) GotdUpdateMapperOption {
	return func(mapper *DefaultGotdUpdateMapper) {
		if cache != nil {
			mapper.peerCache = cache
		}
	}
}

// NewDefaultGotdUpdateMapper creates the default gotd mapper.
func NewDefaultGotdUpdateMapper(options ...GotdUpdateMapperOption) DefaultGotdUpdateMapper {
	mapper := DefaultGotdUpdateMapper{}
	for _, option := range options {
		option(&mapper)
	}

	return mapper
}

// Map converts a gotd raw update value into an adapter update.
//
// Only new incoming messages and callback queries are accepted; every other
// update class is skipped.
func (m DefaultGotdUpdateMapper) Map(ctx context.Context, raw any) (Update, bool, error) {
	if err := ctx.Err(); err != nil {
		return Update{}, false, fmt.Errorf("map gotd update context: %w", err)
	}

	envelope, err := normalizeGotdRaw(raw)
	if err != nil {
		return Update{}, false, fmt.Errorf("map gotd raw update: %w", err)
	}
	if m.peerCache != nil {
		m.peerCache.RememberEnvelope(envelope)
	}

	switch update := envelope.update.(type) {
	case *tg.UpdateNewMessage:
		return m.mapNewMessage(update.Message, envelope)
	case *tg.UpdateNewChannelMessage:
		return m.mapNewMessage(update.Message, envelope)
	case *tg.UpdateBotCallbackQuery:
		return m.mapCallbackQuery(update, envelope)
	default:
		return Update{}, false, nil
	}
}

func normalizeGotdRaw(raw any) (gotdUpdateEnvelope, error) {
	switch typed := raw.(type) {
	case gotdUpdateEnvelope:
		return typed, nil
	case tg.UpdateClass:
		if typed == nil {
			return gotdUpdateEnvelope{}, fmt.Errorf("nil update class")
		}
		return newGotdEnvelope(typed, time.Now().UTC(), nil, nil), nil
	default:
		return gotdUpdateEnvelope{}, fmt.Errorf("unsupported raw type %T", raw)
	}
}

func (m DefaultGotdUpdateMapper) mapNewMessage(
	raw tg.MessageClass,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	message, ok := raw.(*tg.Message)
	if !ok || message == nil || message.Out {
		return Update{}, false, nil
	}

	chat := resolveChatFromPeer(message.PeerID, envelope)
	actor := resolveActorFromPeer(message.FromID, envelope)
	if actor.ID == gotdUnknownActorID {
		actor = resolveActorFromPeer(message.PeerID, envelope)
	}

	payload := &MessagePayload{
		ID:       strconv.Itoa(message.ID),
		Text:     message.Message,
		Entities: mapTextEntities(message.Message, message.Entities),
	}
	if replyTo, ok := message.GetReplyTo(); ok {
		if header, ok := replyTo.(*tg.MessageReplyHeader); ok {
			if replyToMessageID, ok := header.GetReplyToMsgID(); ok {
				payload.ReplyToID = strconv.Itoa(replyToMessageID)
			}
			if threadID, ok := header.GetReplyToTopID(); ok {
				payload.ThreadID = strconv.Itoa(threadID)
			}
		}
	}

	occurredAt := intToTimeUTC(message.Date)
	if occurredAt.IsZero() {
		occurredAt = envelope.occurredAt
	}
	m.rememberConversationPeer(chat, resolveInputPeerFromPeer(message.PeerID, envelope))

	return Update{
		ID:         composeUpdateID(UpdateTypeMessage, chat.ID, payload.ID),
		Type:       UpdateTypeMessage,
		OccurredAt: occurredAt,
		Chat:       chat,
		Actor:      actor,
		Message:    payload,
		Metadata:   newGotdMetadata(envelope),
	}, true, nil
}

func (m DefaultGotdUpdateMapper) mapCallbackQuery(
	update *tg.UpdateBotCallbackQuery,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	data, ok := update.GetData()
	if !ok || len(data) == 0 {
		// Game callbacks carry no data and are not produced by our keyboards.
		return Update{}, false, nil
	}

	chat := resolveChatFromPeer(update.Peer, envelope)
	if chat.ID == gotdUnknownConversationID {
		return Update{}, false, fmt.Errorf("map callback query %d: unresolved peer", update.QueryID)
	}
	queryID := strconv.FormatInt(update.QueryID, 10)
	m.rememberConversationPeer(chat, resolveInputPeerFromPeer(update.Peer, envelope))

	return Update{
		ID:         composeUpdateID(UpdateTypeCallback, chat.ID, queryID),
		Type:       UpdateTypeCallback,
		OccurredAt: envelope.occurredAt,
		Chat:       chat,
		Actor:      resolveActorByUserID(update.UserID, envelope),
		Callback: &CallbackPayload{
			QueryID:   queryID,
			MessageID: strconv.Itoa(update.MsgID),
			Data:      append([]byte(nil), data...),
		},
		Metadata: newGotdMetadata(envelope),
	}, true, nil
}

func (m DefaultGotdUpdateMapper) rememberConversationPeer(chat ChatRef, peer tg.InputPeerClass) {
	if m.peerCache != nil {
		m.peerCache.RememberConversation(chat, peer)
	}
}

type gotdUpdateEnvelope struct {
	update      tg.UpdateClass
	occurredAt  time.Time
	usersByID   map[int64]*tg.User
	chatsByID   map[int64]gotdChatInfo
	updateClass string
}

type gotdChatInfo struct {
	title     string
	kind      otogi.ConversationType
	inputPeer tg.InputPeerClass
}

func indexGotdUsers(users []tg.UserClass) map[int64]*tg.User {
	if len(users) == 0 {
		return nil
	}

	out := make(map[int64]*tg.User, len(users))
	for _, user := range users {
		if user == nil {
			continue
		}
		notEmpty, ok := user.AsNotEmpty()
		if !ok || notEmpty == nil {
			continue
		}
		out[notEmpty.ID] = notEmpty
	}

	return out
}

func indexGotdChats(chats []tg.ChatClass) map[int64]gotdChatInfo {
	if len(chats) == 0 {
		return nil
	}

	out := make(map[int64]gotdChatInfo, len(chats))
	for _, chat := range chats {
		if chat == nil {
			continue
		}

		switch typed := chat.(type) {
		case *tg.Chat:
			out[typed.ID] = gotdChatInfo{
				title:     typed.Title,
				kind:      otogi.ConversationTypeGroup,
				inputPeer: typed.AsInputPeer(),
			}
		case *tg.ChatForbidden:
			out[typed.ID] = gotdChatInfo{
				title: typed.Title,
				kind:  otogi.ConversationTypeGroup,
				inputPeer: &tg.InputPeerChat{
					ChatID: typed.ID,
				},
			}
		case *tg.Channel:
			kind := otogi.ConversationTypeChannel
			if typed.Megagroup {
				kind = otogi.ConversationTypeGroup
			}
			out[typed.ID] = gotdChatInfo{
				title:     typed.Title,
				kind:      kind,
				inputPeer: typed.AsInputPeer(),
			}
		case *tg.ChannelForbidden:
			kind := otogi.ConversationTypeChannel
			if typed.Megagroup {
				kind = otogi.ConversationTypeGroup
			}
			out[typed.ID] = gotdChatInfo{
				title: typed.Title,
				kind:  kind,
				inputPeer: &tg.InputPeerChannel{
					ChannelID:  typed.ID,
					AccessHash: typed.AccessHash,
				},
			}
		}
	}

	return out
}

func resolveChatFromPeer(peer tg.PeerClass, envelope gotdUpdateEnvelope) ChatRef {
	switch typed := peer.(type) {
	case *tg.PeerUser:
		actor := resolveActorByUserID(typed.UserID, envelope)
		return ChatRef{
			ID:    actor.ID,
			Type:  otogi.ConversationTypePrivate,
			Title: actor.DisplayName,
		}
	case *tg.PeerChat:
		return resolveChatByChatID(typed.ChatID, envelope)
	case *tg.PeerChannel:
		return resolveChatByChannelID(typed.ChannelID, envelope)
	default:
		return ChatRef{
			ID:   gotdUnknownConversationID,
			Type: otogi.ConversationTypePrivate,
		}
	}
}

func resolveChatByChatID(chatID int64, envelope gotdUpdateEnvelope) ChatRef {
	id := strconv.FormatInt(chatID, 10)
	info, ok := envelope.chatsByID[chatID]
	if !ok {
		return ChatRef{
			ID:   id,
			Type: otogi.ConversationTypeGroup,
		}
	}

	return ChatRef{
		ID:    id,
		Title: info.title,
		Type:  info.kind,
	}
}

func resolveChatByChannelID(channelID int64, envelope gotdUpdateEnvelope) ChatRef {
	id := strconv.FormatInt(channelID, 10)
	info, ok := envelope.chatsByID[channelID]
	if !ok {
		return ChatRef{
			ID:   id,
			Type: otogi.ConversationTypeChannel,
		}
	}

	return ChatRef{
		ID:    id,
		Title: info.title,
		Type:  info.kind,
	}
}

func resolveActorFromPeer(peer tg.PeerClass, envelope gotdUpdateEnvelope) ActorRef {
	switch typed := peer.(type) {
	case *tg.PeerUser:
		return resolveActorByUserID(typed.UserID, envelope)
	case *tg.PeerChat:
		return ActorRef{
			ID:          strconv.FormatInt(typed.ChatID, 10),
			DisplayName: lookupChatTitle(typed.ChatID, envelope),
			IsBot:       false,
		}
	case *tg.PeerChannel:
		return ActorRef{
			ID:          strconv.FormatInt(typed.ChannelID, 10),
			DisplayName: lookupChatTitle(typed.ChannelID, envelope),
			IsBot:       false,
		}
	default:
		return ActorRef{ID: gotdUnknownActorID}
	}
}

func resolveActorByUserID(userID int64, envelope gotdUpdateEnvelope) ActorRef {
	id := strconv.FormatInt(userID, 10)
	if userID == 0 {
		return ActorRef{ID: gotdUnknownActorID}
	}

	user, ok := envelope.usersByID[userID]
	if !ok || user == nil {
		return ActorRef{ID: id}
	}

	username, _ := user.GetUsername()
	firstName, _ := user.GetFirstName()
	lastName, _ := user.GetLastName()

	displayName := strings.TrimSpace(strings.TrimSpace(firstName + " " + lastName))
	if displayName == "" {
		displayName = username
	}
	if displayName == "" {
		displayName = id
	}

	return ActorRef{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		IsBot:       user.Bot,
	}
}

func resolveInputPeerFromPeer(peer tg.PeerClass, envelope gotdUpdateEnvelope) tg.InputPeerClass {
	switch typed := peer.(type) {
	case *tg.PeerUser:
		return resolveInputPeerByUserID(typed.UserID, envelope)
	case *tg.PeerChat:
		return resolveInputPeerByChatID(typed.ChatID)
	case *tg.PeerChannel:
		return resolveInputPeerByChannelID(typed.ChannelID, envelope)
	default:
		return nil
	}
}

func resolveInputPeerByUserID(userID int64, envelope gotdUpdateEnvelope) tg.InputPeerClass {
	if userID == 0 {
		return nil
	}

	user, ok := envelope.usersByID[userID]
	if !ok || user == nil {
		return nil
	}

	return user.AsInputPeer()
}

func resolveInputPeerByChatID(chatID int64) tg.InputPeerClass {
	if chatID == 0 {
		return nil
	}

	return &tg.InputPeerChat{ChatID: chatID}
}

func resolveInputPeerByChannelID(channelID int64, envelope gotdUpdateEnvelope) tg.InputPeerClass {
	if channelID == 0 {
		return nil
	}

	info, ok := envelope.chatsByID[channelID]
	if !ok || info.inputPeer == nil {
		return nil
	}

	return cloneInputPeer(info.inputPeer)
}

func lookupChatTitle(chatID int64, envelope gotdUpdateEnvelope) string {
	info, ok := envelope.chatsByID[chatID]
	if !ok {
		return ""
	}
	return info.title
}

// mapTextEntities converts Telegram UTF-16 entity ranges into code point
// ranges, keeping only the entity classes the neutral protocol models.
func mapTextEntities(text string, entities []tg.MessageEntityClass) []otogi.TextEntity {
	if len(entities) == 0 {
		return nil
	}

	runeIndexByUTF16 := buildRuneIndexByUTF16(text)
	out := make([]otogi.TextEntity, 0, len(entities))
	for _, entity := range entities {
		if entity == nil {
			continue
		}

		mapped := otogi.TextEntity{}
		switch typed := entity.(type) {
		case *tg.MessageEntityBold:
			mapped.Type = otogi.TextEntityTypeBold
		case *tg.MessageEntityItalic:
			mapped.Type = otogi.TextEntityTypeItalic
		case *tg.MessageEntityCode:
			mapped.Type = otogi.TextEntityTypeCode
		case *tg.MessageEntityPre:
			mapped.Type = otogi.TextEntityTypePre
			mapped.Language = typed.Language
		case *tg.MessageEntityBotCommand:
			mapped.Type = otogi.TextEntityTypeBotCommand
		case *tg.MessageEntityTextURL:
			mapped.Type = otogi.TextEntityTypeTextURL
			mapped.URL = typed.URL
		default:
			continue
		}

		start, end := entity.GetOffset(), entity.GetOffset()+entity.GetLength()
		if start < 0 || end > len(runeIndexByUTF16)-1 || end <= start {
			continue
		}
		mapped.Offset = runeIndexByUTF16[start]
		mapped.Length = runeIndexByUTF16[end] - mapped.Offset
		if mapped.Length <= 0 {
			continue
		}
		out = append(out, mapped)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// buildRuneIndexByUTF16 maps each UTF-16 offset to the rune index starting
// at or containing it.
func buildRuneIndexByUTF16(text string) []int {
	index := make([]int, 0, len(text)+1)
	runeIndex := 0
	for _, value := range text {
		for range utf16RuneLength(value) {
			index = append(index, runeIndex)
		}
		runeIndex++
	}

	return append(index, runeIndex)
}

func intToTimeUTC(value int) time.Time {
	if value <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(value), 0).UTC()
}

func composeUpdateID(updateType UpdateType, chatID string, parts ...string) string {
	values := []string{"tg", string(updateType)}
	if chatID != "" {
		values = append(values, chatID)
	}
	for _, part := range parts {
		if part != "" {
			values = append(values, part)
		}
	}

	return strings.Join(values, ":")
}

func newGotdMetadata(envelope gotdUpdateEnvelope) map[string]string {
	if envelope.updateClass == "" {
		return nil
	}
	return map[string]string{
		"gotd_update": envelope.updateClass,
	}
}
