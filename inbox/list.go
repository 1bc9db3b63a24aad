package inbox

import (
	"context"
	"sync"
	"time"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg/cache"
)

// ListRow is one derived conversation list row.
type ListRow struct {
	ID          int64
	Title       string
	IsGroup     bool
	UnreadCount int
	// Badge is the unread badge text, "" when there is nothing unread.
	Badge   string
	Avatars []chat.User
	// Preview is the last message's content, "" when there is none or it
	// was deleted.
	Preview   string
	UpdatedAt time.Time
}

// NewListRow derives a row from a list entry for the user selfID.
func NewListRow(conv chat.ConversationWithUnread, selfID int64) ListRow {
	row := ListRow{
		ID:          conv.ID,
		Title:       DeriveTitle(conv.Conversation, selfID),
		IsGroup:     conv.IsGroup,
		UnreadCount: conv.UnreadCount,
		Badge:       UnreadBadge(conv.UnreadCount),
		Avatars:     AvatarStack(conv.Conversation, selfID),
		UpdatedAt:   conv.UpdatedAt,
	}
	if last := conv.LastMessage; last != nil && last.DeletedAt == nil {
		row.Preview = last.Content
	}
	return row
}

// ListView is what the conversation list renders.
type ListView struct {
	Params     models.ListParams
	Rows       []ListRow
	Pagination chat.Pagination
	// Loaded is false until any page has been fetched.
	Loaded bool
	// Placeholder is set while Rows belong to a previously shown page
	// because the requested one has not arrived yet.
	Placeholder bool
	// Err is the last load failure of the requested page.
	Err error
}

// ConversationList is the paginated conversation list.
type ConversationList struct {
	api   API
	cache *cache.QueryCache
	self  chat.User

	mu     sync.Mutex
	params models.ListParams
	// shown is the last params whose page was loaded; its page stands in
	// while another one loads.
	shown    models.ListParams
	hasShown bool
	lastErr  error
}

func newConversationList(api API, qc *cache.QueryCache, self chat.User, params models.ListParams) *ConversationList {
	return &ConversationList{
		api:    api,
		cache:  qc,
		self:   self,
		params: params.Normalize(),
	}
}

// Params returns the requested list params.
func (l *ConversationList) Params() models.ListParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params
}

// SetParams switches to other params, e.g. ones restored from a URL. The
// next View shows the old page as a placeholder until Load completes.
func (l *ConversationList) SetParams(p models.ListParams) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.params = p.Normalize()
	l.lastErr = nil
}

// SetPage moves to another page, keeping the rest of the params.
func (l *ConversationList) SetPage(page int) {
	p := l.Params()
	p.Page = page
	l.SetParams(p)
}

// Load fetches the requested page unless it is cached and fresh.
func (l *ConversationList) Load(ctx context.Context) (ListView, error) {
	params := l.Params()

	_, err := cache.Fetch(ctx, l.cache, ListKey(params), queryOptions(ListStaleTime),
		func(ctx context.Context) (chat.Page[chat.ConversationWithUnread], error) {
			return l.api.ListConversations(ctx, params)
		})

	l.mu.Lock()
	if l.params == params {
		l.lastErr = err
	}
	l.mu.Unlock()
	if err == nil {
		l.markShown(params)
	}

	return l.View(), err
}

// View returns the rows to render right now without fetching.
func (l *ConversationList) View() ListView {
	l.mu.Lock()
	params, shown, hasShown, lastErr := l.params, l.shown, l.hasShown, l.lastErr
	l.mu.Unlock()

	view := ListView{Params: params, Err: lastErr}

	page, ok := l.peek(params)
	if !ok && hasShown {
		page, ok = l.peek(shown)
		view.Placeholder = ok
	}
	if !ok {
		return view
	}

	view.Loaded = true
	view.Pagination = page.Pagination
	view.Rows = make([]ListRow, len(page.Items))
	for i, conv := range page.Items {
		view.Rows[i] = NewListRow(conv, l.self.ID)
	}
	return view
}

// Row returns the cached row of a conversation on the requested page.
func (l *ConversationList) Row(conversationID int64) (ListRow, bool) {
	for _, row := range l.View().Rows {
		if row.ID == conversationID {
			return row, true
		}
	}
	return ListRow{}, false
}

func (l *ConversationList) markShown(p models.ListParams) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shown, l.hasShown = p, true
}

func (l *ConversationList) peek(p models.ListParams) (chat.Page[chat.ConversationWithUnread], bool) {
	v, ok := l.cache.Peek(ListKey(p))
	if !ok {
		return chat.Page[chat.ConversationWithUnread]{}, false
	}
	page, ok := v.(chat.Page[chat.ConversationWithUnread])
	return page, ok
}
