package inbox

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/client"
	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeAPI is an in-memory messaging backend. Function fields, when set,
// replace the built-in behavior of the matching call.
type fakeAPI struct {
	mu sync.Mutex

	self   chat.User
	users  map[int64]chat.User
	convs  map[int64]*chat.Conversation
	msgs   map[int64][]chat.Message
	nextID int64

	// oldestFirst returns every message page in ascending id order instead
	// of the server's newest-first order.
	oldestFirst bool

	calls        map[string]int
	messagePages []int
	marked       []int64
	created      []models.CreateConversationRequest

	MeFunc           func(ctx context.Context) (chat.User, error)
	ListMessagesFunc func(ctx context.Context, conversationID int64, page, perPage int) (chat.Page[chat.Message], error)
	SendMessageFunc  func(ctx context.Context, conversationID int64, content string) (chat.Message, error)
	MarkReadFunc     func(ctx context.Context, conversationID, messageID int64) error
	GetFunc          func(ctx context.Context, id int64) (chat.Conversation, error)
	SubscribeFunc    func(ctx context.Context, handle func(models.LiveEvent)) error
}

func newFakeAPI() *fakeAPI {
	self := chat.User{ID: 1, Email: "ada@example.com", Name: "Ada", Role: "member"}
	return &fakeAPI{
		self:   self,
		users:  map[int64]chat.User{self.ID: self},
		convs:  make(map[int64]*chat.Conversation),
		msgs:   make(map[int64][]chat.Message),
		nextID: 1000,
		calls:  make(map[string]int),
	}
}

func (f *fakeAPI) addUser(u chat.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

// addConversation stores a conversation between self and others.
func (f *fakeAPI) addConversation(id int64, isGroup bool, others ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	conv := &chat.Conversation{ID: id, IsGroup: isGroup, CreatedAt: baseTime, UpdatedAt: baseTime}
	for i, uid := range append([]int64{f.self.ID}, others...) {
		u := f.users[uid]
		role := chat.RoleMember
		if i == 0 {
			role = chat.RoleOwner
		}
		conv.Participants = append(conv.Participants, chat.Participant{
			ID: id*100 + int64(i), ConversationID: id, UserID: uid, Role: role, JoinedAt: baseTime, User: &u,
		})
	}
	f.convs[id] = conv
}

// addMessages appends messages with the given ids, sent by senderID.
func (f *fakeAPI) addMessages(conversationID, senderID int64, ids ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range ids {
		f.appendLocked(chat.Message{
			ID:             id,
			ConversationID: conversationID,
			SenderID:       senderID,
			Content:        fmt.Sprintf("message %d", id),
			CreatedAt:      baseTime.Add(time.Duration(id) * time.Minute),
		})
	}
}

func (f *fakeAPI) appendLocked(m chat.Message) {
	f.msgs[m.ConversationID] = append(f.msgs[m.ConversationID], m)
	conv := f.convs[m.ConversationID]
	conv.LastMessageID = m.ID
	conv.UpdatedAt = m.CreatedAt
	last := m
	conv.LastMessage = &last
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeAPI) Me(ctx context.Context) (chat.User, error) {
	f.record("Me")
	if f.MeFunc != nil {
		return f.MeFunc(ctx)
	}
	return f.self, nil
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.record("Logout")
	return nil
}

func (f *fakeAPI) ListUsers(ctx context.Context, query string, page, perPage int) (chat.Page[chat.User], error) {
	f.record("ListUsers")
	f.mu.Lock()
	defer f.mu.Unlock()

	var users []chat.User
	for _, u := range f.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b chat.User) int { return cmp.Compare(a.ID, b.ID) })
	return paginate(users, page, perPage), nil
}

func (f *fakeAPI) ListConversations(ctx context.Context, params models.ListParams) (chat.Page[chat.ConversationWithUnread], error) {
	f.record("ListConversations")
	f.mu.Lock()
	defer f.mu.Unlock()

	var rows []chat.ConversationWithUnread
	for _, conv := range f.convs {
		unread := 0
		self, _ := conv.Participant(f.self.ID)
		for _, m := range f.msgs[conv.ID] {
			if m.ID > self.LastReadMessageID && m.SenderID != f.self.ID {
				unread++
			}
		}
		rows = append(rows, chat.ConversationWithUnread{Conversation: *conv, UnreadCount: unread})
	}
	slices.SortFunc(rows, func(a, b chat.ConversationWithUnread) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return paginate(rows, params.Page, params.PerPage), nil
}

func (f *fakeAPI) GetConversation(ctx context.Context, id int64) (chat.Conversation, error) {
	f.record("GetConversation")
	if f.GetFunc != nil {
		return f.GetFunc(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	conv, ok := f.convs[id]
	if !ok {
		return chat.Conversation{}, &client.APIError{Status: 404, Code: pkg.CodeNotFound, Message: "conversation not found"}
	}
	return *conv, nil
}

func (f *fakeAPI) CreateConversation(ctx context.Context, req models.CreateConversationRequest) (chat.Conversation, error) {
	f.record("CreateConversation")
	f.mu.Lock()
	f.created = append(f.created, req)
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	f.addConversation(id, req.Group(), req.ParticipantIDs...)

	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.convs[id], nil
}

func (f *fakeAPI) ListMessages(ctx context.Context, conversationID int64, page, perPage int) (chat.Page[chat.Message], error) {
	f.record("ListMessages")
	f.mu.Lock()
	f.messagePages = append(f.messagePages, page)
	f.mu.Unlock()

	if f.ListMessagesFunc != nil {
		return f.ListMessagesFunc(ctx, conversationID, page, perPage)
	}
	return f.messagePage(conversationID, page, perPage), nil
}

// messagePage serves newest-first pages like the real API.
func (f *fakeAPI) messagePage(conversationID int64, page, perPage int) chat.Page[chat.Message] {
	f.mu.Lock()
	defer f.mu.Unlock()

	desc := slices.Clone(f.msgs[conversationID])
	slices.SortFunc(desc, func(a, b chat.Message) int { return cmp.Compare(b.ID, a.ID) })
	p := paginate(desc, page, perPage)
	if f.oldestFirst {
		slices.Reverse(p.Items)
	}
	return p
}

func (f *fakeAPI) SendMessage(ctx context.Context, conversationID int64, content string) (chat.Message, error) {
	f.record("SendMessage")
	if f.SendMessageFunc != nil {
		return f.SendMessageFunc(ctx, conversationID, content)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var next int64 = 1
	for _, m := range f.msgs[conversationID] {
		next = max(next, m.ID+1)
	}
	m := chat.Message{ID: next, ConversationID: conversationID, SenderID: f.self.ID, Content: content, CreatedAt: baseTime.Add(time.Hour)}
	f.appendLocked(m)
	return m, nil
}

func (f *fakeAPI) MarkRead(ctx context.Context, conversationID, messageID int64) error {
	f.record("MarkRead")
	f.mu.Lock()
	f.marked = append(f.marked, messageID)
	f.mu.Unlock()

	if f.MarkReadFunc != nil {
		return f.MarkReadFunc(ctx, conversationID, messageID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	conv := f.convs[conversationID]
	for i := range conv.Participants {
		p := &conv.Participants[i]
		if p.UserID == f.self.ID && messageID > p.LastReadMessageID {
			p.LastReadMessageID = messageID
		}
	}
	return nil
}

func (f *fakeAPI) Subscribe(ctx context.Context, handle func(models.LiveEvent)) error {
	f.record("Subscribe")
	if f.SubscribeFunc != nil {
		return f.SubscribeFunc(ctx, handle)
	}
	<-ctx.Done()
	return ctx.Err()
}

func paginate[T any](items []T, page, perPage int) chat.Page[T] {
	p := models.ListParams{Page: page, PerPage: perPage}.Normalize()
	start := min(models.Offset(p.Page, p.PerPage), len(items))
	end := min(start+p.PerPage, len(items))

	meta := models.NewPagination(p.Page, p.PerPage, len(items))
	return chat.Page[T]{
		Items: slices.Clone(items[start:end]),
		Pagination: chat.Pagination{
			Page: meta.Page, PerPage: meta.PerPage, Total: meta.Total, HasNext: meta.HasNext, HasPrev: meta.HasPrev,
		},
	}
}

func openSession(t *testing.T, api *fakeAPI, perPage int) *Session {
	t.Helper()
	s, err := Open(context.Background(), api, Options{PerPage: perPage})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}
