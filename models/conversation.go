package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ParticipantRole is a participant's role inside one conversation.
type ParticipantRole string

const (
	ParticipantRoleMember ParticipantRole = "member"
	ParticipantRoleOwner  ParticipantRole = "owner"
)

// Conversation is a direct or group conversation.
//
// A direct conversation (IsGroup=false) always has exactly two participants.
// Title is nil when the creator did not provide one; clients derive a display
// title from the participants in that case.
type Conversation struct {
	ID            int64                     `json:"id"`
	Title         *string                   `json:"title"`
	IsGroup       bool                      `json:"is_group"`
	LastMessageID *int64                    `json:"last_message_id"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
	Participants  []ConversationParticipant `json:"participants,omitempty"`
	Messages      []Message                 `json:"messages,omitempty"`
	LastMessage   *Message                  `json:"last_message,omitempty"`
}

// ConversationParticipant links a user to a conversation and carries the
// user's read position. LastReadMessageID only ever moves forward.
type ConversationParticipant struct {
	ID                int64           `json:"id"`
	ConversationID    int64           `json:"conversation_id"`
	UserID            int64           `json:"user_id"`
	Role              ParticipantRole `json:"role"`
	LastReadMessageID *int64          `json:"last_read_message_id"`
	JoinedAt          time.Time       `json:"joined_at"`
	User              *User           `json:"user,omitempty"`
}

// ConversationWithUnread is a list row: the conversation plus the number of
// messages the requesting user has not read yet.
type ConversationWithUnread struct {
	Conversation
	UnreadCount int `json:"unread_count"`
}

// CreateConversationRequest is the body of POST /conversations.
//
// IsGroup is optional on the wire. When omitted the server derives it from
// the participant count, the same rule the client applies.
type CreateConversationRequest struct {
	ParticipantIDs []int64 `json:"participant_ids"`
	Title          *string `json:"title,omitempty"`
	IsGroup        *bool   `json:"is_group,omitempty"`
}

// MaxTitleLength is the longest accepted conversation title, in runes.
const MaxTitleLength = 120

// Validate normalizes the request in place:
//   - participant ids must be positive; duplicates are removed
//   - a blank title becomes nil
//   - a direct conversation must name exactly one other participant
func (r *CreateConversationRequest) Validate() error {
	if len(r.ParticipantIDs) == 0 {
		return fmt.Errorf("at least one participant is required")
	}

	seen := make(map[int64]bool, len(r.ParticipantIDs))
	ids := r.ParticipantIDs[:0]
	for _, id := range r.ParticipantIDs {
		if id <= 0 {
			return fmt.Errorf("participant ids must be positive integers")
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	r.ParticipantIDs = ids

	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			r.Title = nil
		} else if utf8.RuneCountInString(title) > MaxTitleLength {
			return fmt.Errorf("title must be at most %d characters", MaxTitleLength)
		} else {
			r.Title = &title
		}
	}

	if r.IsGroup != nil && !*r.IsGroup && len(r.ParticipantIDs) != 1 {
		return fmt.Errorf("a direct conversation needs exactly one other participant")
	}

	return nil
}

// Group reports whether the conversation should be created as a group.
// An explicit is_group wins; otherwise more than one participant means group.
func (r *CreateConversationRequest) Group() bool {
	if r.IsGroup != nil {
		return *r.IsGroup
	}
	return len(r.ParticipantIDs) > 1
}
