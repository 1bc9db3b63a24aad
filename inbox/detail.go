package inbox

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/pkg/cache"
)

// ParseConversationID parses a route parameter. Anything but a strictly
// positive integer yields 0, which disables the detail query.
func ParseConversationID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// DetailView is what the conversation header renders.
type DetailView struct {
	Conversation chat.Conversation
	Title        string
	Loaded       bool
	Err          error
}

// ConversationDetail is the query for one conversation with its
// participants. It is disabled for ids <= 0: it never sends a request and
// reads a slot nothing writes to.
type ConversationDetail struct {
	api   API
	cache *cache.QueryCache
	self  chat.User
	id    int64

	mu      sync.Mutex
	lastErr error
}

func newConversationDetail(api API, qc *cache.QueryCache, self chat.User, id int64) *ConversationDetail {
	return &ConversationDetail{api: api, cache: qc, self: self, id: id}
}

// ID returns the conversation id, 0 when disabled.
func (d *ConversationDetail) ID() int64 {
	if d.id <= 0 {
		return 0
	}
	return d.id
}

// Enabled reports whether the query may fetch.
func (d *ConversationDetail) Enabled() bool {
	return d.id > 0
}

// Load fetches the conversation unless it is cached and fresh. A
// disabled query returns the empty view without error.
func (d *ConversationDetail) Load(ctx context.Context) (DetailView, error) {
	if !d.Enabled() {
		return d.View(), nil
	}

	id := d.id
	_, err := cache.Fetch(ctx, d.cache, d.key(), queryOptions(DetailStaleTime),
		func(ctx context.Context) (chat.Conversation, error) {
			return d.api.GetConversation(ctx, id)
		})
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()

	return d.View(), err
}

// View returns the cached conversation without fetching.
func (d *ConversationDetail) View() DetailView {
	d.mu.Lock()
	view := DetailView{Err: d.lastErr}
	d.mu.Unlock()

	v, ok := d.cache.Peek(d.key())
	if !ok {
		return view
	}
	conv, ok := v.(chat.Conversation)
	if !ok {
		return view
	}

	view.Conversation = conv
	view.Title = DeriveTitle(conv, d.self.ID)
	view.Loaded = true
	return view
}

// Self returns the signed-in user's participant entry.
func (d *ConversationDetail) Self() (chat.Participant, bool) {
	view := d.View()
	if !view.Loaded {
		return chat.Participant{}, false
	}
	return view.Conversation.Participant(d.self.ID)
}

func (d *ConversationDetail) key() cache.Key {
	if !d.Enabled() {
		return disabledDetailKey
	}
	return DetailKey(d.id)
}
