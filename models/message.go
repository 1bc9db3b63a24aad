package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength is the longest message body the API accepts, in runes.
const MaxMessageLength = 4000

// Message is a single message in a conversation.
//
// Ids are assigned in insertion order, so ascending id is chronological
// order. Sender is filled by a JOIN when the API embeds it.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       int64      `json:"sender_id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `json:"deleted_at"`
	Sender         *User      `json:"sender,omitempty"`
}

// SendMessageRequest is the body of POST /conversations/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// Validate trims the content and enforces 1..MaxMessageLength runes.
func (r *SendMessageRequest) Validate() error {
	r.Content = strings.TrimSpace(r.Content)
	if r.Content == "" {
		return fmt.Errorf("message content is required")
	}
	if utf8.RuneCountInString(r.Content) > MaxMessageLength {
		return fmt.Errorf("message content must be at most %d characters", MaxMessageLength)
	}
	return nil
}

// MarkReadRequest is the body of POST /conversations/{id}/mark-read.
type MarkReadRequest struct {
	MessageID int64 `json:"message_id"`
}

// Validate requires a positive message id.
func (r *MarkReadRequest) Validate() error {
	if r.MessageID <= 0 {
		return fmt.Errorf("message_id must be a positive integer")
	}
	return nil
}
