// Package inbox holds the view-models of the messaging feature: the
// conversation list, a conversation's detail and message thread, the
// composer, and the create-conversation form.
//
// A Session owns the query cache and the signed-in user. Every view-model
// is created from a Session and reads and writes that one cache, so a
// mutation in one view is seen by every other view on its next read.
// Views call Load to (re)fetch what is stale and View or Messages to read
// what is cached; nothing is pushed to them.
package inbox

import (
	"context"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/client"
	"github.com/hatchlab/hatchdesk/models"
)

// API is the part of *client.Client the view-models use.
type API interface {
	Me(ctx context.Context) (chat.User, error)
	Logout(ctx context.Context) error
	ListUsers(ctx context.Context, query string, page, perPage int) (chat.Page[chat.User], error)

	ListConversations(ctx context.Context, params models.ListParams) (chat.Page[chat.ConversationWithUnread], error)
	GetConversation(ctx context.Context, id int64) (chat.Conversation, error)
	CreateConversation(ctx context.Context, req models.CreateConversationRequest) (chat.Conversation, error)
	ListMessages(ctx context.Context, conversationID int64, page, perPage int) (chat.Page[chat.Message], error)
	SendMessage(ctx context.Context, conversationID int64, content string) (chat.Message, error)
	MarkRead(ctx context.Context, conversationID, messageID int64) error

	Subscribe(ctx context.Context, handle func(models.LiveEvent)) error
}

var _ API = (*client.Client)(nil)
