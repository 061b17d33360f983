package telegram

import (
	"context"
	"testing"
	"time"

	"otogi-helpnav/pkg/otogi"

	"github.com/gotd/td/tg"
)

func TestDefaultGotdUpdateMapperMap(t *testing.T) {
	t.Parallel()

	occurredAt := time.Unix(1_700_000_000, 0).UTC()
	alice := newTGUser(42, "alice", "Alice", "User", false)

	callback := &tg.UpdateBotCallbackQuery{
		QueryID: 9001,
		UserID:  42,
		Peer:    &tg.PeerChat{ChatID: 100},
		MsgID:   555,
	}
	callback.SetData([]byte("hnav:selectmenu\x1f2"))

	reply := &tg.MessageReplyHeader{}
	reply.SetReplyToMsgID(700)

	incoming := &tg.Message{
		ID:      777,
		PeerID:  &tg.PeerChat{ChatID: 100},
		Date:    1_700_000_000,
		Message: "/help ping",
		FromID:  &tg.PeerUser{UserID: 42},
	}
	incoming.SetReplyTo(reply)
	incoming.SetEntities([]tg.MessageEntityClass{&tg.MessageEntityBotCommand{Offset: 0, Length: 5}})

	tests := []struct {
		name         string
		raw          any
		wantAccepted bool
		assert       func(t *testing.T, got Update)
	}{
		{
			name: "incoming message",
			raw: gotdUpdateEnvelope{
				update:      &tg.UpdateNewMessage{Message: incoming},
				occurredAt:  occurredAt,
				usersByID:   map[int64]*tg.User{42: alice},
				chatsByID:   map[int64]gotdChatInfo{100: {title: "group-chat", kind: otogi.ConversationTypeGroup}},
				updateClass: "updateNewMessage",
			},
			wantAccepted: true,
			assert: func(t *testing.T, got Update) {
				t.Helper()
				if got.Type != UpdateTypeMessage || got.Message == nil {
					t.Fatalf("update = %+v, want message update", got)
				}
				if got.Chat.ID != "100" || got.Chat.Title != "group-chat" || got.Chat.Type != otogi.ConversationTypeGroup {
					t.Fatalf("chat = %+v, want group-chat", got.Chat)
				}
				if got.Actor.ID != "42" || got.Actor.DisplayName != "Alice User" || got.Actor.Username != "alice" {
					t.Fatalf("actor = %+v, want alice", got.Actor)
				}
				if got.Message.ID != "777" || got.Message.Text != "/help ping" || got.Message.ReplyToID != "700" {
					t.Fatalf("message = %+v", got.Message)
				}
				if len(got.Message.Entities) != 1 || got.Message.Entities[0].Type != otogi.TextEntityTypeBotCommand {
					t.Fatalf("entities = %+v, want one bot_command", got.Message.Entities)
				}
				if got.ID != "tg:message:100:777" {
					t.Fatalf("id = %s, want tg:message:100:777", got.ID)
				}
				if got.Metadata["gotd_update"] != "updateNewMessage" {
					t.Fatalf("metadata = %v", got.Metadata)
				}
			},
		},
		{
			name: "channel message",
			raw: gotdUpdateEnvelope{
				update: &tg.UpdateNewChannelMessage{Message: &tg.Message{
					ID:      3,
					PeerID:  &tg.PeerChannel{ChannelID: 200},
					Message: "hi",
				}},
				occurredAt: occurredAt,
			},
			wantAccepted: true,
			assert: func(t *testing.T, got Update) {
				t.Helper()
				if got.Chat.Type != otogi.ConversationTypeChannel || got.Chat.ID != "200" {
					t.Fatalf("chat = %+v, want channel 200", got.Chat)
				}
				if !got.OccurredAt.Equal(occurredAt) {
					t.Fatalf("occurred at = %v, want envelope time", got.OccurredAt)
				}
			},
		},
		{
			name: "outgoing message skipped",
			raw: gotdUpdateEnvelope{
				update: &tg.UpdateNewMessage{Message: &tg.Message{ID: 4, Out: true, PeerID: &tg.PeerChat{ChatID: 1}}},
			},
		},
		{
			name: "service message skipped",
			raw: gotdUpdateEnvelope{
				update: &tg.UpdateNewMessage{Message: &tg.MessageService{ID: 5}},
			},
		},
		{
			name: "callback query",
			raw: gotdUpdateEnvelope{
				update:     callback,
				occurredAt: occurredAt,
				usersByID:  map[int64]*tg.User{42: alice},
			},
			wantAccepted: true,
			assert: func(t *testing.T, got Update) {
				t.Helper()
				if got.Type != UpdateTypeCallback || got.Callback == nil {
					t.Fatalf("update = %+v, want callback update", got)
				}
				if got.Callback.QueryID != "9001" || got.Callback.MessageID != "555" {
					t.Fatalf("callback = %+v", got.Callback)
				}
				if string(got.Callback.Data) != "hnav:selectmenu\x1f2" {
					t.Fatalf("data = %q", got.Callback.Data)
				}
				if got.Actor.ID != "42" || got.Chat.ID != "100" {
					t.Fatalf("actor/chat = %s/%s, want 42/100", got.Actor.ID, got.Chat.ID)
				}
			},
		},
		{
			name: "callback without data skipped",
			raw: gotdUpdateEnvelope{
				update: &tg.UpdateBotCallbackQuery{QueryID: 1, Peer: &tg.PeerChat{ChatID: 1}},
			},
		},
		{
			name: "unrelated update skipped",
			raw:  &tg.UpdateUserTyping{UserID: 42, Action: &tg.SendMessageTypingAction{}},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, accepted, err := NewDefaultGotdUpdateMapper().Map(context.Background(), testCase.raw)
			if err != nil {
				t.Fatalf("map failed: %v", err)
			}
			if accepted != testCase.wantAccepted {
				t.Fatalf("accepted = %v, want %v", accepted, testCase.wantAccepted)
			}
			if testCase.assert != nil {
				testCase.assert(t, got)
			}
		})
	}
}

func TestDefaultGotdUpdateMapperRejectsUnknownRaw(t *testing.T) {
	t.Parallel()

	if _, _, err := NewDefaultGotdUpdateMapper().Map(context.Background(), "nope"); err == nil {
		t.Fatal("expected unsupported raw type error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewDefaultGotdUpdateMapper().Map(ctx, gotdUpdateEnvelope{}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestDefaultGotdUpdateMapperRemembersPeers(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	mapper := NewDefaultGotdUpdateMapper(WithPeerCache(cache))

	channel := &tg.Channel{ID: 300, AccessHash: 3030, Title: "news"}
	_, accepted, err := mapper.Map(context.Background(), gotdUpdateEnvelope{
		update: &tg.UpdateNewChannelMessage{Message: &tg.Message{
			ID:      1,
			PeerID:  &tg.PeerChannel{ChannelID: 300},
			Message: "/help",
		}},
		chatsByID: indexGotdChats([]tg.ChatClass{channel}),
	})
	if err != nil || !accepted {
		t.Fatalf("map = accepted %v err %v", accepted, err)
	}

	peer, err := cache.Resolve(otogi.Conversation{ID: "300", Type: otogi.ConversationTypeChannel})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if typed, ok := peer.(*tg.InputPeerChannel); !ok || typed.AccessHash != 3030 {
		t.Fatalf("peer = %#v, want channel peer with access hash", peer)
	}
}

func TestMapTextEntities(t *testing.T) {
	t.Parallel()

	text := "héllo 😀 world"
	got := mapTextEntities(text, []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 9, Length: 5},
		&tg.MessageEntityTextURL{Offset: 0, Length: 5, URL: "https://example.com"},
		&tg.MessageEntityPre{Offset: 6, Length: 2, Language: "go"},
		&tg.MessageEntityHashtag{Offset: 0, Length: 2},
		&tg.MessageEntityItalic{Offset: 40, Length: 2},
	})

	want := []otogi.TextEntity{
		{Type: otogi.TextEntityTypeBold, Offset: 8, Length: 5},
		{Type: otogi.TextEntityTypeTextURL, Offset: 0, Length: 5, URL: "https://example.com"},
		{Type: otogi.TextEntityTypePre, Offset: 6, Length: 1, Language: "go"},
	}
	if len(got) != len(want) {
		t.Fatalf("entities = %+v, want %+v", got, want)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("entity[%d] = %+v, want %+v", index, got[index], want[index])
		}
	}
}

func newTGUser(id int64, username, firstName, lastName string, isBot bool) *tg.User {
	user := &tg.User{ID: id}
	user.Bot = isBot
	if username != "" {
		user.SetUsername(username)
	}
	if firstName != "" {
		user.SetFirstName(firstName)
	}
	if lastName != "" {
		user.SetLastName(lastName)
	}
	return user
}
