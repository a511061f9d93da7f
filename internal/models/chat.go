package models

// Chat is a conversation between two or more participants. The id is
// stable; for direct chats the participant pair is effectively a natural
// key and deduplication happens in the client store.
type Chat struct {
	ID             string   `json:"id"`
	ParticipantIDs []string `json:"participantIds"`
	LastMessage    *Message `json:"lastMessage,omitempty"`
	CreatedAt      int64    `json:"createdAt"` // Unix ms
	IsGroup        bool     `json:"isGroup"`
}
