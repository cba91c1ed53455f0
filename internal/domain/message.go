package domain

import (
	"time"
)

// Sender identifies which side of the conversation authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a single entry in an experiment's conversation log.
// Messages are immutable once created and only ever appended.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Phase     Phase     `json:"phase,omitempty"`
}
