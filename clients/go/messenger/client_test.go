package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/enot3481-eng/messenger-app/clients/go/messenger/store"
	"github.com/enot3481-eng/messenger-app/internal/models"
)

func newTestClient(t *testing.T) (*Client, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("Open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	c := New(Options{
		ServerURL: "http://localhost:0",
		Profile:   models.Profile{ID: "me", DisplayName: "Me", Tag: "@me"},
		Store:     st,
		Logger:    zerolog.Nop(),
	})
	return c, st
}

func chatEnvelope(t *testing.T, from string, msg models.Message) []byte {
	t.Helper()
	content, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	raw, err := json.Marshal(models.Envelope{
		Type:       models.TypeChatMessage,
		SenderID:   from,
		ReceiverID: "me",
		Content:    content,
		Timestamp:  msg.Timestamp,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

func TestHandleFrameCreatesDirectChatOnFirstContact(t *testing.T) {
	c, st := newTestClient(t)
	ctx := context.Background()

	// No chatId: the receiver derives the chat from the sender pair.
	msg := models.Message{ID: "m1", SenderID: "peer", Content: "hi", Type: models.MessageText, Timestamp: 100}
	c.handleFrame(ctx, chatEnvelope(t, "peer", msg))

	chats, err := st.ListChats(ctx, "me")
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("got %d chats, want 1", len(chats))
	}
	msgs, err := st.ListMessages(ctx, chats[0].ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Fatalf("messages = %+v", msgs)
	}

	// A second message from the same peer lands in the same chat.
	msg2 := models.Message{ID: "m2", SenderID: "peer", Content: "again", Type: models.MessageText, Timestamp: 200}
	c.handleFrame(ctx, chatEnvelope(t, "peer", msg2))
	chats, _ = st.ListChats(ctx, "me")
	if len(chats) != 1 {
		t.Fatalf("second message created a new chat")
	}
}

func TestHandleFrameAdoptsSenderChatID(t *testing.T) {
	c, st := newTestClient(t)
	ctx := context.Background()

	msg := models.Message{ID: "m1", ChatID: "remote-chat", SenderID: "peer", Content: "hi", Timestamp: 100, Type: models.MessageText}
	c.handleFrame(ctx, chatEnvelope(t, "peer", msg))

	chat, ok, err := st.GetChat(ctx, "remote-chat")
	if err != nil || !ok {
		t.Fatalf("GetChat = %v, %v", ok, err)
	}
	if len(chat.ParticipantIDs) != 2 {
		t.Fatalf("participants = %v", chat.ParticipantIDs)
	}
	msgs, _ := st.ListMessages(ctx, "remote-chat")
	if len(msgs) != 1 {
		t.Fatalf("message not filed under the sender's chat id")
	}
}

func TestHandleFrameDuplicateDeliveryIsIdempotent(t *testing.T) {
	c, st := newTestClient(t)
	ctx := context.Background()

	msg := models.Message{ID: "m1", ChatID: "c1", SenderID: "peer", Content: "hi", Timestamp: 100, Type: models.MessageText}
	raw := chatEnvelope(t, "peer", msg)
	c.handleFrame(ctx, raw)
	c.handleFrame(ctx, raw)

	msgs, err := st.ListMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("duplicate delivery stored %d rows", len(msgs))
	}
}

func TestHandleFrameDispatchesAfterMerge(t *testing.T) {
	c, st := newTestClient(t)
	ctx := context.Background()

	var seenInHandler int
	c.OnMessage(func(m models.Message) {
		// The handler must already observe the merged message.
		msgs, err := st.ListMessages(ctx, m.ChatID)
		if err != nil {
			t.Errorf("ListMessages inside handler: %v", err)
			return
		}
		seenInHandler = len(msgs)
	})

	msg := models.Message{ID: "m1", ChatID: "c1", SenderID: "peer", Content: "hi", Timestamp: 100, Type: models.MessageText}
	c.handleFrame(ctx, chatEnvelope(t, "peer", msg))

	if seenInHandler != 1 {
		t.Fatalf("handler saw %d stored messages, want 1", seenInHandler)
	}
}

func TestHandleFrameErrorEnvelope(t *testing.T) {
	c, _ := newTestClient(t)

	var got string
	c.OnError(func(msg string) { got = msg })

	content, _ := json.Marshal(map[string]string{"error": "tag already in use"})
	raw, _ := json.Marshal(models.Envelope{
		Type:     models.TypeError,
		SenderID: "relay",
		Content:  content,
	})
	c.handleFrame(context.Background(), raw)

	if got != "tag already in use" {
		t.Fatalf("error handler got %q", got)
	}
}

func TestHandleFrameSearchResultsCachesProfiles(t *testing.T) {
	c, st := newTestClient(t)
	ctx := context.Background()

	content, _ := json.Marshal(map[string][]models.Profile{
		"users": {{ID: "u2", DisplayName: "Bob", Tag: "@bob"}},
	})
	raw, _ := json.Marshal(models.Envelope{
		Type:     models.TypeSearchResults,
		SenderID: "relay",
		Content:  content,
	})
	c.handleFrame(ctx, raw)

	p, ok, err := st.FindProfileByTag(ctx, "@bob")
	if err != nil || !ok {
		t.Fatalf("FindProfileByTag = %v, %v", ok, err)
	}
	if p.ID != "u2" {
		t.Fatalf("cached profile = %+v", p)
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	c, _ := newTestClient(t)
	msg := NewMessage("c1", "me", "hello", "")

	err := c.SendMessage(context.Background(), "peer", msg)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendMessage err = %v, want ErrNotConnected", err)
	}
}

func TestNewMessageDefaults(t *testing.T) {
	m := NewMessage("c1", "me", "hello", "")
	if m.ID == "" {
		t.Fatalf("no id minted")
	}
	if m.Type != models.MessageText {
		t.Fatalf("type = %q, want text default", m.Type)
	}
	if m.ChatID != "c1" || m.SenderID != "me" || m.Content != "hello" {
		t.Fatalf("fields = %+v", m)
	}
	if m.Timestamp == 0 {
		t.Fatalf("timestamp not stamped")
	}

	// Ids are time-ordered, so two messages minted in sequence sort.
	m2 := NewMessage("c1", "me", "next", "")
	if m2.ID < m.ID {
		t.Fatalf("later message id %s sorts before %s", m2.ID, m.ID)
	}
}
