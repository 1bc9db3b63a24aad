package inbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg/cache"
)

var (
	ErrEmptyMessage   = errors.New("inbox: message is empty")
	ErrMessageTooLong = errors.New("inbox: message is too long")
	ErrSendInProgress = errors.New("inbox: a send is already in progress")
)

// Composer holds the draft of a conversation's message box and sends it.
//
// The draft is only cleared once the server confirmed the message, so a
// failed send leaves it in place for a retry. There is no optimistic
// append: the thread shows the message after its refetch.
type Composer struct {
	api            API
	cache          *cache.QueryCache
	conversationID int64
	thread         *MessageThread

	mu      sync.Mutex
	draft   string
	sending bool
}

func newComposer(api API, qc *cache.QueryCache, conversationID int64, thread *MessageThread) *Composer {
	return &Composer{api: api, cache: qc, conversationID: conversationID, thread: thread}
}

// Draft returns the current text of the message box.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetDraft replaces the text of the message box.
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// Sending reports whether a send is in flight.
func (c *Composer) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Send posts the draft. On success it invalidates the conversation's
// messages, its detail and the conversation list, clears the draft unless
// it was edited meanwhile, and reloads the thread with a smooth scroll to
// the new message.
func (c *Composer) Send(ctx context.Context) (chat.Message, error) {
	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return chat.Message{}, ErrSendInProgress
	}
	draft := c.draft
	content := strings.TrimSpace(draft)
	switch {
	case content == "":
		c.mu.Unlock()
		return chat.Message{}, ErrEmptyMessage
	case utf8.RuneCountInString(content) > models.MaxMessageLength:
		c.mu.Unlock()
		return chat.Message{}, ErrMessageTooLong
	}
	c.sending = true
	c.mu.Unlock()

	msg, err := c.api.SendMessage(ctx, c.conversationID, content)

	c.mu.Lock()
	c.sending = false
	if err == nil && c.draft == draft {
		c.draft = ""
	}
	c.mu.Unlock()

	if err != nil {
		return chat.Message{}, err
	}

	c.cache.Invalidate(MessagesPrefix(c.conversationID))
	c.cache.Invalidate(DetailKey(c.conversationID))
	c.cache.Invalidate(ListPrefix())

	if c.thread != nil {
		c.thread.reloadAfterSend(ctx)
	}
	return msg, nil
}
