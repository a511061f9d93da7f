package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope kinds carried on the realtime channel.
const (
	TypePresenceAnnounce = "presence-announce"
	TypeChatMessage      = "chat-message"
	TypeDirectorySearch  = "directory-search"
	TypeSearchResults    = "search-results"
	TypeError            = "error"
)

// Envelope is a single routed unit on the relay's wire protocol.
// Payload shape is fixed per kind: presence-announce carries UserInfo,
// directory-search carries Query, chat-message carries Content and a
// ReceiverID. Content is kept raw so forwarding stays byte-for-byte.
type Envelope struct {
	Type       string          `json:"type"`
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId,omitempty"`
	UserInfo   *Profile        `json:"userInfo,omitempty"`
	Query      string          `json:"query,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	Timestamp  int64           `json:"timestamp"` // Unix ms
}

// ErrUnknownType is returned for envelope kinds the relay does not route.
var ErrUnknownType = errors.New("unknown envelope type")

// ParseEnvelope decodes and validates a wire frame.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Validate checks the per-kind required fields.
func (e *Envelope) Validate() error {
	if e.SenderID == "" {
		return errors.New("senderId is required")
	}
	switch e.Type {
	case TypePresenceAnnounce:
		if e.UserInfo == nil {
			return errors.New("presence-announce requires userInfo")
		}
		if e.UserInfo.ID == "" {
			return errors.New("userInfo.id is required")
		}
	case TypeDirectorySearch:
		if e.Query == "" {
			return errors.New("directory-search requires query")
		}
	case TypeChatMessage:
		if e.ReceiverID == "" {
			return errors.New("chat-message requires receiverId")
		}
	case TypeSearchResults, TypeError:
		// Server-originated kinds; a client echoing one back is still
		// well-formed, routing decides what to do with it.
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	return nil
}
