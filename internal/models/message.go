package models

// Message content types.
const (
	MessageText  = "text"
	MessageAudio = "audio"
	MessageVideo = "video"
	MessageFile  = "file"
	MessageCall  = "call"
)

// Message is a single chat message. Created by the sending client and
// never mutated afterwards, except for the IsRead flag.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix ms
	IsRead    bool   `json:"isRead"`
}
