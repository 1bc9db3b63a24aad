package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/models"
)

// ListConversations fetches one page of the caller's conversations with
// unread counts. Zero-valued params get the API defaults.
func (c *Client) ListConversations(ctx context.Context, params models.ListParams) (chat.Page[chat.ConversationWithUnread], error) {
	env, err := getList[models.ConversationWithUnread](ctx, c, "/conversations", params.Normalize().Query())
	if err != nil {
		return chat.Page[chat.ConversationWithUnread]{}, err
	}
	return mapPage(env, mapConversationWithUnread), nil
}

// GetConversation fetches a conversation with its participants.
func (c *Client) GetConversation(ctx context.Context, id int64) (chat.Conversation, error) {
	conv, err := getItem[models.Conversation](ctx, c, conversationPath(id), nil)
	if err != nil {
		return chat.Conversation{}, err
	}
	return mapConversation(conv), nil
}

// CreateConversation creates a conversation and returns it as the server
// stored it.
func (c *Client) CreateConversation(ctx context.Context, req models.CreateConversationRequest) (chat.Conversation, error) {
	conv, err := postItem[models.Conversation](ctx, c, "/conversations", req)
	if err != nil {
		return chat.Conversation{}, err
	}
	return mapConversation(conv), nil
}

// ListMessages fetches one page of a conversation's messages. Page 1 holds
// the newest messages; higher pages go back in time.
func (c *Client) ListMessages(ctx context.Context, conversationID int64, page, perPage int) (chat.Page[chat.Message], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	env, err := getList[models.Message](ctx, c, conversationPath(conversationID)+"/messages", q)
	if err != nil {
		return chat.Page[chat.Message]{}, err
	}
	return mapPage(env, mapMessage), nil
}

// SendMessage posts a message and returns it with its server-assigned id.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, content string) (chat.Message, error) {
	msg, err := postItem[models.Message](ctx, c, conversationPath(conversationID)+"/messages",
		models.SendMessageRequest{Content: content})
	if err != nil {
		return chat.Message{}, err
	}
	return mapMessage(msg), nil
}

// MarkRead moves the caller's read position in a conversation up to
// messageID. The server ignores positions older than the current one.
func (c *Client) MarkRead(ctx context.Context, conversationID, messageID int64) error {
	return c.do(ctx, http.MethodPost, conversationPath(conversationID)+"/mark-read", nil,
		models.MarkReadRequest{MessageID: messageID}, nil)
}

func conversationPath(id int64) string {
	return fmt.Sprintf("/conversations/%d", id)
}
