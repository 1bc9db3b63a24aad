// Package chat holds the client-side domain types of the messaging core.
//
// These are what view-models work with. They are produced from the wire
// DTOs in package models by the client's mapping layer and never serialized
// back. Optional strings use "" for absent; optional ids use 0, since every
// real id is positive.
package chat

import "time"

// User is a display snapshot of an account.
type User struct {
	ID        int64
	Email     string
	Name      string
	Role      string
	AvatarURL string
}

// DisplayName returns the name, falling back to the email.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Role of a participant inside a conversation.
type Role string

const (
	RoleMember Role = "member"
	RoleOwner  Role = "owner"
)

// Participant is a user's membership in a conversation.
type Participant struct {
	ID                int64
	ConversationID    int64
	UserID            int64
	Role              Role
	LastReadMessageID int64
	JoinedAt          time.Time
	User              *User
}

// Message is one message of a thread. Ascending ID is chronological order.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Content        string
	CreatedAt      time.Time
	DeletedAt      *time.Time
	Sender         *User
}

// Conversation is a direct or group conversation.
type Conversation struct {
	ID            int64
	Title         string
	IsGroup       bool
	LastMessageID int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Participants  []Participant
	Messages      []Message
	LastMessage   *Message
}

// Participant returns the participant entry for userID, if any.
func (c Conversation) Participant(userID int64) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// ConversationWithUnread is a conversation list row.
type ConversationWithUnread struct {
	Conversation
	UnreadCount int
}

// Pagination mirrors the list envelope's pagination block.
type Pagination struct {
	Page    int
	PerPage int
	Total   int
	HasNext bool
	HasPrev bool
}

// Page is one page of a paginated list.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}
