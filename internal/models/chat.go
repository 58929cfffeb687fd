package models

import (
	"time"

	"gorm.io/datatypes"
)

// Chat is a 1:1 conversation between two users, optionally linked to the
// delivery of a surplus record. The participant pair is stored normalized
// (lexicographically smaller id in ParticipantA) so that at most one chat
// exists per unordered pair.
type Chat struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	ParticipantA     string            `gorm:"size:64;uniqueIndex:idx_chat_pair;not null" json:"participant_a"`
	ParticipantB     string            `gorm:"size:64;uniqueIndex:idx_chat_pair;not null" json:"participant_b"`
	ParticipantTypes datatypes.JSONMap `gorm:"type:json" json:"participant_types"`
	ParticipantNames datatypes.JSONMap `gorm:"type:json" json:"participant_names"`

	DeliverySurplusID *uint `gorm:"index" json:"delivery_surplus_id,omitempty"`

	LastMessage   string    `gorm:"size:512" json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasParticipant reports whether the user belongs to this chat.
func (c Chat) HasParticipant(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OtherParticipant returns the counterpart of the given user in this chat.
func (c Chat) OtherParticipant(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// OrderPair normalizes an unordered participant pair into storage order.
func OrderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Message is a single chat payload. SenderType carries the normalized role
// of the sender at the time the message was written.
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChatID     uint      `gorm:"index;not null" json:"chat_id"`
	SenderID   string    `gorm:"size:64;index;not null" json:"sender_id"`
	SenderType string    `gorm:"size:16" json:"sender_type"`
	Text       string    `gorm:"type:text" json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
