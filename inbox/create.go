package inbox

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg/cache"
)

// ErrNoParticipants blocks creating a conversation nobody was picked for.
var ErrNoParticipants = errors.New("inbox: pick at least one participant")

// NewConversationForm is the create-conversation dialog: a participant
// picker and an optional title.
//
// Whether the conversation is a group is never chosen by the user; it is a
// group exactly when more than one participant is picked.
type NewConversationForm struct {
	api      API
	cache    *cache.QueryCache
	self     chat.User
	navigate func(conversationID int64)

	mu         sync.Mutex
	selected   []int64
	title      string
	submitting bool
}

func newConversationForm(api API, qc *cache.QueryCache, self chat.User, navigate func(int64)) *NewConversationForm {
	return &NewConversationForm{api: api, cache: qc, self: self, navigate: navigate}
}

// Toggle adds userID to the selection, or removes it if already selected.
// The signed-in user is always a participant and cannot be picked.
func (f *NewConversationForm) Toggle(userID int64) {
	if userID <= 0 || userID == f.self.ID {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if i := slices.Index(f.selected, userID); i >= 0 {
		f.selected = slices.Delete(f.selected, i, i+1)
		return
	}
	f.selected = append(f.selected, userID)
}

// Selected returns the picked user ids in picking order.
func (f *NewConversationForm) Selected() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.selected)
}

// SetTitle sets the optional title. Blank means none.
func (f *NewConversationForm) SetTitle(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
}

// IsGroup reports whether the current selection makes a group.
func (f *NewConversationForm) IsGroup() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.selected) > 1
}

// CanSubmit reports whether Submit would send a request.
func (f *NewConversationForm) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.selected) > 0 && !f.submitting
}

// Request builds the create request for the current state.
func (f *NewConversationForm) Request() (models.CreateConversationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requestLocked()
}

// Submit creates the conversation. On success the conversation is written
// to the detail cache, every list page is invalidated, the form is reset
// and navigate is called with the new id.
func (f *NewConversationForm) Submit(ctx context.Context) (chat.Conversation, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return chat.Conversation{}, ErrSendInProgress
	}
	req, err := f.requestLocked()
	if err != nil {
		f.mu.Unlock()
		return chat.Conversation{}, err
	}
	f.submitting = true
	f.mu.Unlock()

	conv, err := f.api.CreateConversation(ctx, req)

	f.mu.Lock()
	f.submitting = false
	if err == nil {
		f.selected = nil
		f.title = ""
	}
	f.mu.Unlock()

	if err != nil {
		return chat.Conversation{}, err
	}

	f.cache.SetFor(DetailKey(conv.ID), conv, DetailStaleTime)
	f.cache.Invalidate(ListPrefix())
	if f.navigate != nil {
		f.navigate(conv.ID)
	}
	return conv, nil
}

// Candidates searches the user directory for people to add, leaving out
// the signed-in user. Results are cached per query and page.
func (f *NewConversationForm) Candidates(ctx context.Context, query string, page, perPage int) (chat.Page[chat.User], error) {
	query = strings.TrimSpace(query)
	p := models.ListParams{Page: page, PerPage: perPage}.Normalize()

	result, err := cache.Fetch(ctx, f.cache, UsersKey(query, p.Page, p.PerPage), queryOptions(UsersStaleTime),
		func(ctx context.Context) (chat.Page[chat.User], error) {
			return f.api.ListUsers(ctx, query, p.Page, p.PerPage)
		})
	if err != nil {
		return chat.Page[chat.User]{}, err
	}

	users := make([]chat.User, 0, len(result.Items))
	for _, u := range result.Items {
		if u.ID != f.self.ID {
			users = append(users, u)
		}
	}
	result.Items = users
	return result, nil
}

func (f *NewConversationForm) requestLocked() (models.CreateConversationRequest, error) {
	if len(f.selected) == 0 {
		return models.CreateConversationRequest{}, ErrNoParticipants
	}

	isGroup := len(f.selected) > 1
	req := models.CreateConversationRequest{
		ParticipantIDs: slices.Clone(f.selected),
		IsGroup:        &isGroup,
	}
	if title := strings.TrimSpace(f.title); title != "" {
		req.Title = &title
	}
	return req, nil
}
