package dto

import (
	"time"

	"github.com/foodloop/foodloop-api/internal/models"
)

// ChatOpenRequest asks for the 1:1 chat with another user, creating it if
// none exists. The link is only applied on creation; an existing chat's link
// is never overwritten.
type ChatOpenRequest struct {
	OtherUserID       string `json:"other_user_id" validate:"required,max=64"`
	DeliverySurplusID *uint  `json:"delivery_surplus_id" validate:"omitempty"`
}

// ChatSendRequest is the payload for posting a message into a chat.
type ChatSendRequest struct {
	Text string `json:"text" validate:"required,min=1,max=4000"`
}

// ChatHistoryQuery filters message history reads.
type ChatHistoryQuery struct {
	Before *time.Time `query:"before"`
	Limit  int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

// ChatResponse is the serialized representation of a chat.
type ChatResponse struct {
	ID                uint              `json:"id"`
	Participants      []string          `json:"participants"`
	ParticipantTypes  map[string]string `json:"participant_types"`
	ParticipantNames  map[string]string `json:"participant_names"`
	DeliverySurplusID *uint             `json:"delivery_surplus_id,omitempty"`
	LastMessage       string            `json:"last_message"`
	LastMessageAt     time.Time         `json:"last_message_at"`
	CreatedAt         time.Time         `json:"created_at"`
}

// MessageResponse is the serialized representation of a chat message.
type MessageResponse struct {
	ID         uint      `json:"id"`
	ChatID     uint      `json:"chat_id"`
	SenderID   string    `json:"sender_id"`
	SenderType string    `json:"sender_type"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewChatResponse converts a chat model into a DTO.
func NewChatResponse(chat models.Chat) ChatResponse {
	return ChatResponse{
		ID:                chat.ID,
		Participants:      []string{chat.ParticipantA, chat.ParticipantB},
		ParticipantTypes:  jsonMapToStrings(chat.ParticipantTypes),
		ParticipantNames:  jsonMapToStrings(chat.ParticipantNames),
		DeliverySurplusID: chat.DeliverySurplusID,
		LastMessage:       chat.LastMessage,
		LastMessageAt:     chat.LastMessageAt,
		CreatedAt:         chat.CreatedAt,
	}
}

// NewChatResponseSlice converts a slice of chats into DTOs.
func NewChatResponseSlice(chats []models.Chat) []ChatResponse {
	out := make([]ChatResponse, 0, len(chats))
	for _, chat := range chats {
		out = append(out, NewChatResponse(chat))
	}
	return out
}

// NewMessageResponse converts a message model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	return MessageResponse{
		ID:         message.ID,
		ChatID:     message.ChatID,
		SenderID:   message.SenderID,
		SenderType: message.SenderType,
		Text:       message.Text,
		CreatedAt:  message.CreatedAt,
	}
}

// NewMessageResponseSlice converts a slice of messages into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

func jsonMapToStrings(raw map[string]interface{}) map[string]string {
	if raw == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		if str, ok := value.(string); ok {
			out[key] = str
		}
	}
	return out
}
