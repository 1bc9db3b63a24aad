package client

import (
	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/models"
)

// The functions below convert wire DTOs to domain types. Nullable strings
// become "" and nullable ids become 0.

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func mapUser(u models.User) chat.User {
	return chat.User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      deref(u.Name),
		Role:      string(u.Role),
		AvatarURL: deref(u.AvatarURL),
	}
}

func mapUserPtr(u *models.User) *chat.User {
	if u == nil {
		return nil
	}
	mapped := mapUser(*u)
	return &mapped
}

func mapMessage(m models.Message) chat.Message {
	return chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		DeletedAt:      m.DeletedAt,
		Sender:         mapUserPtr(m.Sender),
	}
}

func mapMessages(in []models.Message) []chat.Message {
	if in == nil {
		return nil
	}
	out := make([]chat.Message, len(in))
	for i, m := range in {
		out[i] = mapMessage(m)
	}
	return out
}

func mapParticipant(p models.ConversationParticipant) chat.Participant {
	return chat.Participant{
		ID:                p.ID,
		ConversationID:    p.ConversationID,
		UserID:            p.UserID,
		Role:              chat.Role(p.Role),
		LastReadMessageID: deref(p.LastReadMessageID),
		JoinedAt:          p.JoinedAt,
		User:              mapUserPtr(p.User),
	}
}

func mapConversation(c models.Conversation) chat.Conversation {
	out := chat.Conversation{
		ID:            c.ID,
		Title:         deref(c.Title),
		IsGroup:       c.IsGroup,
		LastMessageID: deref(c.LastMessageID),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		Messages:      mapMessages(c.Messages),
	}
	if c.Participants != nil {
		out.Participants = make([]chat.Participant, len(c.Participants))
		for i, p := range c.Participants {
			out.Participants[i] = mapParticipant(p)
		}
	}
	if c.LastMessage != nil {
		last := mapMessage(*c.LastMessage)
		out.LastMessage = &last
	}
	return out
}

func mapConversationWithUnread(c models.ConversationWithUnread) chat.ConversationWithUnread {
	return chat.ConversationWithUnread{
		Conversation: mapConversation(c.Conversation),
		UnreadCount:  c.UnreadCount,
	}
}

func mapPagination(p models.Pagination) chat.Pagination {
	return chat.Pagination{
		Page:    p.Page,
		PerPage: p.PerPage,
		Total:   p.Total,
		HasNext: p.HasNext,
		HasPrev: p.HasPrev,
	}
}

func mapPage[In, Out any](env models.ListResponse[In], fn func(In) Out) chat.Page[Out] {
	items := make([]Out, len(env.Data))
	for i, v := range env.Data {
		items[i] = fn(v)
	}
	return chat.Page[Out]{Items: items, Pagination: mapPagination(env.Pagination)}
}
