// Package messenger is the Go client for the relay: one logical
// realtime stream with client-driven reconnection, plus reconciliation
// of received messages into the local store. The relay holds no state
// across a dropped connection, so presence and profile are re-announced
// on every successful connect.
package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/enot3481-eng/messenger-app/clients/go/messenger/store"
	"github.com/enot3481-eng/messenger-app/internal/models"
)

// ErrNotConnected is returned by send operations while the realtime
// stream is down.
var ErrNotConnected = errors.New("not connected")

// searchTimeout bounds how long Search waits for the relay's reply.
const searchTimeout = 10 * time.Second

// Options configures a Client.
type Options struct {
	// ServerURL is the relay base URL, e.g. "http://localhost:8080".
	ServerURL string
	// Profile is announced on every successful connect. Profile.ID is
	// the identity this client speaks for.
	Profile models.Profile
	// Store receives every incoming chat message. Optional; without it
	// the client only dispatches to handlers.
	Store  *store.Store
	Logger zerolog.Logger

	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
}

func (o *Options) defaults() {
	if o.ReconnectBaseDelay == 0 {
		o.ReconnectBaseDelay = 1 * time.Second
	}
	if o.ReconnectMaxDelay == 0 {
		o.ReconnectMaxDelay = 30 * time.Second
	}
	if o.MaxReconnectAttempts == 0 {
		o.MaxReconnectAttempts = 5
	}
}

// Client is a relay client over a single websocket stream.
type Client struct {
	opts  Options
	recon *reconnector

	mu               sync.Mutex
	conn             *websocket.Conn
	connected        bool
	intentionalClose bool
	cancelFn         context.CancelFunc

	handlersMu sync.RWMutex
	onMessage  []func(models.Message)
	onError    []func(string)

	searchMu      sync.Mutex
	pendingSearch chan []models.Profile
}

// New creates a client; Connect starts the stream.
func New(opts Options) *Client {
	opts.defaults()
	return &Client{
		opts: opts,
		recon: &reconnector{
			baseDelay:   opts.ReconnectBaseDelay,
			maxDelay:    opts.ReconnectMaxDelay,
			maxAttempts: opts.MaxReconnectAttempts,
		},
	}
}

// OnMessage registers a handler for incoming chat messages. Handlers
// run after the message has been merged into the store, so a
// listMessages call from inside one already sees it.
func (c *Client) OnMessage(h func(models.Message)) {
	c.handlersMu.Lock()
	c.onMessage = append(c.onMessage, h)
	c.handlersMu.Unlock()
}

// OnError registers a handler for relay error replies, such as a
// rejected tag.
func (c *Client) OnError(h func(string)) {
	c.handlersMu.Lock()
	c.onError = append(c.onError, h)
	c.handlersMu.Unlock()
}

// Connected reports whether the stream is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect dials the relay and announces presence and profile. Safe to
// call again after a disconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.intentionalClose = false
	c.mu.Unlock()

	wsURL := strings.Replace(c.opts.ServerURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/ws"

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.recon.markConnected()

	// The relay forgot us the moment the last connection dropped;
	// announce again before anything else.
	if err := c.announce(ctx); err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		c.mu.Lock()
		c.conn = nil
		c.connected = false
		c.mu.Unlock()
		return fmt.Errorf("announce presence: %w", err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancelFn = cancel
	c.mu.Unlock()

	go c.readLoop(connCtx)
	return nil
}

// Disconnect closes the stream without triggering reconnection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.intentionalClose = true
	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	return nil
}

func (c *Client) announce(ctx context.Context) error {
	profile := c.opts.Profile
	return c.send(ctx, &models.Envelope{
		Type:      models.TypePresenceAnnounce,
		SenderID:  profile.ID,
		UserInfo:  &profile,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewMessage builds a message ready for SendMessage. Ids are ULIDs,
// so a device's own messages sort by mint time.
func NewMessage(chatID, senderID, content, msgType string) models.Message {
	if msgType == "" {
		msgType = models.MessageText
	}
	return models.Message{
		ID:        ulid.Make().String(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}
}

// SendMessage wraps msg in a chat-message envelope addressed to
// receiverID and transmits it. The sender's own copy is written to the
// store first: if the recipient is offline the relay drops the
// envelope, and this local copy is the only durable record of it.
func (c *Client) SendMessage(ctx context.Context, receiverID string, msg models.Message) error {
	if c.opts.Store != nil {
		if err := c.opts.Store.PutMessage(ctx, msg); err != nil {
			return fmt.Errorf("store own copy: %w", err)
		}
	}

	content, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.send(ctx, &models.Envelope{
		Type:       models.TypeChatMessage,
		SenderID:   c.opts.Profile.ID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  msg.Timestamp,
	})
}

// Search asks the relay's directory for tags containing query and
// waits for the reply. One search is outstanding at a time.
func (c *Client) Search(ctx context.Context, query string) ([]models.Profile, error) {
	c.searchMu.Lock()
	defer c.searchMu.Unlock()

	ch := make(chan []models.Profile, 1)
	c.mu.Lock()
	c.pendingSearch = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.pendingSearch = nil
		c.mu.Unlock()
	}()

	err := c.send(ctx, &models.Envelope{
		Type:      models.TypeDirectorySearch,
		SenderID:  c.opts.Profile.ID,
		Query:     query,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	select {
	case profiles := <-ch:
		return profiles, nil
	case <-time.After(searchTimeout):
		return nil, errors.New("search timeout")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) send(ctx context.Context, env *models.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			intentional := c.intentionalClose
			c.conn = nil
			c.connected = false
			c.mu.Unlock()
			if intentional {
				return
			}

			c.opts.Logger.Warn().Err(err).Msg("realtime stream dropped")
			if c.opts.AutoReconnect && c.recon.shouldReconnect() {
				c.scheduleReconnect(ctx)
			}
			return
		}

		c.handleFrame(ctx, data)
	}
}

// handleFrame merges one server-delivered envelope into the local
// store and dispatches it. Mutations are visible to the next
// ListMessages call before any handler runs.
func (c *Client) handleFrame(ctx context.Context, data []byte) {
	env, err := models.ParseEnvelope(data)
	if err != nil {
		c.opts.Logger.Warn().Err(err).Msg("ignoring malformed frame")
		return
	}

	switch env.Type {
	case models.TypeChatMessage:
		var msg models.Message
		if err := json.Unmarshal(env.Content, &msg); err != nil {
			c.opts.Logger.Warn().Err(err).Msg("chat-message content undecodable")
			return
		}
		if err := c.reconcile(ctx, env.SenderID, msg); err != nil {
			c.opts.Logger.Error().Err(err).Str("message", msg.ID).Msg("reconcile failed")
			return
		}
		c.handlersMu.RLock()
		handlers := append([]func(models.Message){}, c.onMessage...)
		c.handlersMu.RUnlock()
		for _, h := range handlers {
			h(msg)
		}

	case models.TypeSearchResults:
		var payload struct {
			Users []models.Profile `json:"users"`
		}
		if err := json.Unmarshal(env.Content, &payload); err != nil {
			c.opts.Logger.Warn().Err(err).Msg("search-results undecodable")
			return
		}
		if c.opts.Store != nil {
			for _, p := range payload.Users {
				if err := c.opts.Store.UpsertProfile(ctx, p); err != nil {
					c.opts.Logger.Warn().Err(err).Str("tag", p.Tag).Msg("cache profile failed")
				}
			}
		}
		c.mu.Lock()
		ch := c.pendingSearch
		c.mu.Unlock()
		if ch != nil {
			select {
			case ch <- payload.Users:
			default:
			}
		}

	case models.TypeError:
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(env.Content, &payload)
		c.opts.Logger.Warn().Str("error", payload.Error).Msg("relay rejected request")
		c.handlersMu.RLock()
		handlers := append([]func(string){}, c.onError...)
		c.handlersMu.RUnlock()
		for _, h := range handlers {
			h(payload.Error)
		}

	default:
		c.opts.Logger.Debug().Str("type", env.Type).Msg("ignoring envelope kind")
	}
}

// reconcile writes an incoming message into the store, creating the
// direct chat on first contact.
func (c *Client) reconcile(ctx context.Context, senderID string, msg models.Message) error {
	if c.opts.Store == nil {
		return nil
	}

	if msg.ChatID == "" {
		chat, err := c.opts.Store.EnsureDirectChat(ctx, senderID, c.opts.Profile.ID)
		if err != nil {
			return err
		}
		msg.ChatID = chat.ID
	} else if _, ok, err := c.opts.Store.GetChat(ctx, msg.ChatID); err != nil {
		return err
	} else if !ok {
		if err := c.opts.Store.PutChat(ctx, models.Chat{
			ID:             msg.ChatID,
			ParticipantIDs: []string{senderID, c.opts.Profile.ID},
			CreatedAt:      time.Now().UnixMilli(),
			IsGroup:        false,
		}); err != nil {
			return err
		}
	}

	return c.opts.Store.PutMessage(ctx, msg)
}

func (c *Client) scheduleReconnect(ctx context.Context) {
	delay := c.recon.nextDelay()
	c.opts.Logger.Info().
		Int("attempt", c.recon.attempt).
		Dur("delay", delay).
		Msg("reconnecting")

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	if err := c.Connect(context.Background()); err != nil {
		if c.opts.AutoReconnect && c.recon.shouldReconnect() {
			c.scheduleReconnect(ctx)
		} else {
			c.opts.Logger.Error().Err(err).Msg("reconnect attempts exhausted")
		}
	}
}
