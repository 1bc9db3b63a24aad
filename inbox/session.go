package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg/cache"
)

// Options configures a Session.
type Options struct {
	// PerPage is the message thread page size. Defaults to models.DefaultPerPage.
	PerPage int
	// ListParams are the initial conversation list params.
	ListParams models.ListParams
	// Cache tunes the query cache.
	Cache cache.Options
	// Logger receives live-update diagnostics. Nil disables them.
	Logger *log.Logger
}

// Session is one signed-in use of the messaging feature. It owns the query
// cache and knows who the user is; view-models are created from it.
type Session struct {
	api     API
	cache   *cache.QueryCache
	self    chat.User
	perPage int
	logger  *log.Logger
	list    *ConversationList
}

// Open resolves the signed-in user and loads the first conversation list
// page, both at once. The user is resolved once here and handed to every
// view-model made from the session.
func Open(ctx context.Context, api API, opts Options) (*Session, error) {
	if opts.PerPage <= 0 {
		opts.PerPage = models.DefaultPerPage
	}
	if opts.PerPage > models.MaxPerPage {
		opts.PerPage = models.MaxPerPage
	}

	qc := cache.New(opts.Cache)
	params := opts.ListParams.Normalize()

	var self chat.User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		self, err = cache.Fetch(gctx, qc, selfKey, queryOptions(UsersStaleTime), api.Me)
		if err != nil {
			return fmt.Errorf("resolve current user: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		_, err := cache.Fetch(gctx, qc, ListKey(params), queryOptions(ListStaleTime),
			func(ctx context.Context) (chat.Page[chat.ConversationWithUnread], error) {
				return api.ListConversations(ctx, params)
			})
		if err != nil {
			return fmt.Errorf("load conversations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		qc.Close()
		return nil, err
	}

	s := &Session{
		api:     api,
		cache:   qc,
		self:    self,
		perPage: opts.PerPage,
		logger:  opts.Logger,
	}
	s.list = newConversationList(api, qc, self, params)
	s.list.markShown(params)
	return s, nil
}

// Self returns the signed-in user.
func (s *Session) Self() chat.User {
	return s.self
}

// Cache returns the session's query cache.
func (s *Session) Cache() *cache.QueryCache {
	return s.cache
}

// List returns the conversation list.
func (s *Session) List() *ConversationList {
	return s.list
}

// Detail returns the detail query of a conversation. Ids <= 0 give a
// disabled query.
func (s *Session) Detail(conversationID int64) *ConversationDetail {
	return newConversationDetail(s.api, s.cache, s.self, conversationID)
}

// Thread returns the message thread of a conversation. onScroll may be nil.
func (s *Session) Thread(conversationID int64, onScroll func(ScrollIntent)) *MessageThread {
	return newMessageThread(s.api, s.cache, s.self, conversationID, s.perPage, onScroll)
}

// Composer returns the message box of a thread's conversation.
func (s *Session) Composer(thread *MessageThread) *Composer {
	return newComposer(s.api, s.cache, thread.ConversationID(), thread)
}

// NewConversationForm returns the create-conversation form. navigate is
// called with the id of a created conversation.
func (s *Session) NewConversationForm(navigate func(conversationID int64)) *NewConversationForm {
	return newConversationForm(s.api, s.cache, s.self, navigate)
}

// Logout ends the session on the server and drops every cached
// conversation and user. The cache is cleared even if the request fails.
func (s *Session) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.cache.Remove(conversationsKey)
	s.cache.Remove(usersKey)
	return err
}

// Close stops the cache's background cleanup.
func (s *Session) Close() {
	s.cache.Close()
}

// Watch applies live events to the cache until ctx ends or the connection
// drops. Events only invalidate; views pick the changes up on their next
// Load.
func (s *Session) Watch(ctx context.Context) error {
	return s.api.Subscribe(ctx, s.Apply)
}

// Apply invalidates what a live event changed. It touches the same keys the
// matching local mutation would.
func (s *Session) Apply(ev models.LiveEvent) {
	switch ev.Op {
	case models.EventMessageCreate:
		var data models.MessageCreateData
		if !s.decode(ev, &data) {
			return
		}
		s.cache.Invalidate(MessagesPrefix(data.ConversationID))
		s.cache.Invalidate(DetailKey(data.ConversationID))
		s.cache.Invalidate(ListPrefix())

	case models.EventConversationCreate:
		s.cache.Invalidate(ListPrefix())

	case models.EventReadUpdate:
		var data models.ReadUpdateData
		if !s.decode(ev, &data) {
			return
		}
		s.cache.Invalidate(DetailKey(data.ConversationID))
		if data.UserID == s.self.ID {
			s.cache.Invalidate(ListPrefix())
		}
	}
}

func (s *Session) decode(ev models.LiveEvent, v any) bool {
	if err := json.Unmarshal(ev.Data, v); err != nil {
		if s.logger != nil {
			s.logger.Printf("[inbox] dropping malformed %s event: %v", ev.Op, err)
		}
		return false
	}
	return true
}
