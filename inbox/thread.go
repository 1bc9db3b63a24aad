package inbox

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/pkg/cache"
)

// SendScrollDelay lets the layout settle before scrolling to a message the
// user just sent.
const SendScrollDelay = 100 * time.Millisecond

// ScrollIntent asks the view to bring the newest message into view.
type ScrollIntent struct {
	Smooth bool
	Delay  time.Duration
}

// threadPages is the cached value of a thread: the loaded pages in page
// order, page 1 (newest messages) first.
type threadPages struct {
	Pages []chat.Page[chat.Message]
}

// MessageThread is a conversation's message history, loaded newest page
// first and extended backwards with LoadOlder.
//
// Pages are fetched one at a time in increasing page order and the
// displayed list is rebuilt from all loaded pages by message id, so it is
// always oldest to newest no matter how the server orders a page.
type MessageThread struct {
	api            API
	cache          *cache.QueryCache
	self           chat.User
	conversationID int64
	perPage        int
	reads          *ReadTracker
	onScroll       func(ScrollIntent)

	// loads serializes page loads of this thread; waiting honors the
	// caller's context.
	loads *semaphore.Weighted
	older singleflight.Group

	mu              sync.Mutex
	lastErr         error
	markErr         error
	scrolledInitial bool
}

func newMessageThread(api API, qc *cache.QueryCache, self chat.User, conversationID int64, perPage int, onScroll func(ScrollIntent)) *MessageThread {
	t := &MessageThread{
		api:            api,
		cache:          qc,
		self:           self,
		conversationID: conversationID,
		perPage:        perPage,
		onScroll:       onScroll,
		loads:          semaphore.NewWeighted(1),
	}
	t.reads = NewReadTracker(t.markRead)
	return t
}

// ConversationID returns the id of the thread's conversation.
func (t *MessageThread) ConversationID() int64 {
	return t.conversationID
}

// Load fetches the newest page, or refetches every loaded page in order
// when the thread is stale. A fresh thread is returned from the cache.
// Load waits for a running LoadOlder; if ctx ends first it returns the
// messages loaded so far with ctx.Err().
func (t *MessageThread) Load(ctx context.Context) ([]chat.Message, error) {
	if err := t.loads.Acquire(ctx, 1); err != nil {
		return t.Messages(), err
	}
	err := t.loadLocked(ctx)
	t.loads.Release(1)

	return t.finish(ctx, err)
}

// LoadOlder appends the next older page. Concurrent calls share one
// request; it is a no-op when no older page exists.
func (t *MessageThread) LoadOlder(ctx context.Context) ([]chat.Message, error) {
	detached := context.WithoutCancel(ctx)
	ch := t.older.DoChan("older", func() (any, error) {
		if err := t.loads.Acquire(detached, 1); err != nil {
			return nil, err
		}
		defer t.loads.Release(1)
		return nil, t.loadOlderLocked(detached)
	})

	select {
	case <-ctx.Done():
		return t.Messages(), ctx.Err()
	case res := <-ch:
		return t.finish(ctx, res.Err)
	}
}

// Refresh marks the thread stale and reloads every loaded page.
func (t *MessageThread) Refresh(ctx context.Context) ([]chat.Message, error) {
	t.cache.Invalidate(t.key())
	return t.Load(ctx)
}

// Messages returns the loaded messages, oldest first, without fetching.
func (t *MessageThread) Messages() []chat.Message {
	tp, ok := t.pages()
	if !ok {
		return nil
	}
	return flatten(tp.Pages)
}

// HasOlder reports whether LoadOlder would fetch another page.
func (t *MessageThread) HasOlder() bool {
	tp, ok := t.pages()
	if !ok || len(tp.Pages) == 0 {
		return false
	}
	return tp.Pages[len(tp.Pages)-1].Pagination.HasNext
}

// PagesLoaded returns how many pages the thread holds.
func (t *MessageThread) PagesLoaded() int {
	tp, _ := t.pages()
	return len(tp.Pages)
}

// Err returns the last load failure, nil after a successful load.
func (t *MessageThread) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// MarkReadErr returns the last mark-read failure.
func (t *MessageThread) MarkReadErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.markErr
}

// ReadTracker exposes the thread's read tracker.
func (t *MessageThread) ReadTracker() *ReadTracker {
	return t.reads
}

// reloadAfterSend refetches the invalidated thread and asks for a smooth
// scroll to the new message.
func (t *MessageThread) reloadAfterSend(ctx context.Context) {
	if _, err := t.Load(ctx); err != nil {
		return
	}
	t.scroll(ScrollIntent{Smooth: true, Delay: SendScrollDelay})
}

func (t *MessageThread) loadLocked(ctx context.Context) error {
	n := max(t.PagesLoaded(), 1)

	_, err := cache.Fetch(ctx, t.cache, t.key(), queryOptions(ThreadStaleTime),
		func(ctx context.Context) (threadPages, error) {
			pages := make([]chat.Page[chat.Message], 0, n)
			for page := 1; page <= n; page++ {
				p, err := t.api.ListMessages(ctx, t.conversationID, page, t.perPage)
				if err != nil {
					return threadPages{}, err
				}
				pages = append(pages, p)
				if !p.Pagination.HasNext {
					break
				}
			}
			return threadPages{Pages: pages}, nil
		})
	return err
}

func (t *MessageThread) loadOlderLocked(ctx context.Context) error {
	if t.cache.IsStale(t.key()) {
		if err := t.loadLocked(ctx); err != nil {
			return err
		}
	}

	tp, ok := t.pages()
	if !ok || len(tp.Pages) == 0 || !tp.Pages[len(tp.Pages)-1].Pagination.HasNext {
		return nil
	}

	next := len(tp.Pages) + 1
	p, err := t.api.ListMessages(ctx, t.conversationID, next, t.perPage)
	if err != nil {
		return err
	}

	missing := false
	t.cache.Update(t.key(), func(old any, ok bool) any {
		cur, _ := old.(threadPages)
		if !ok {
			missing = true
			return cur
		}
		// Only the page right after the last loaded one may be appended.
		if len(cur.Pages) != next-1 {
			return cur
		}
		pages := make([]chat.Page[chat.Message], 0, next)
		pages = append(pages, cur.Pages...)
		return threadPages{Pages: append(pages, p)}
	})
	if missing {
		// Dropped while the page was in flight, e.g. by logout.
		t.cache.Invalidate(t.key())
	}
	return nil
}

// finish records the outcome of a load and runs what follows a successful
// one: the initial scroll and read tracking.
func (t *MessageThread) finish(ctx context.Context, err error) ([]chat.Message, error) {
	t.mu.Lock()
	t.lastErr = err
	first := err == nil && !t.scrolledInitial
	if first {
		t.scrolledInitial = true
	}
	t.mu.Unlock()

	msgs := t.Messages()
	if err != nil {
		return msgs, err
	}
	if first {
		t.scroll(ScrollIntent{})
	}
	if len(msgs) > 0 {
		t.seedFromDetail()
		t.reads.Observe(ctx, msgs[len(msgs)-1].ID)
	}
	return msgs, nil
}

// seedFromDetail feeds the read position the server reported for the
// signed-in user into the tracker, when the detail is cached.
func (t *MessageThread) seedFromDetail() {
	v, ok := t.cache.Peek(DetailKey(t.conversationID))
	if !ok {
		return
	}
	conv, ok := v.(chat.Conversation)
	if !ok {
		return
	}
	if p, ok := conv.Participant(t.self.ID); ok {
		t.reads.Seed(p.LastReadMessageID)
	}
}

// markRead is the tracker's mark function. A successful mark changes the
// unread count in the list and the read position in the detail.
func (t *MessageThread) markRead(ctx context.Context, messageID int64) error {
	err := t.api.MarkRead(ctx, t.conversationID, messageID)

	t.mu.Lock()
	t.markErr = err
	t.mu.Unlock()

	if err != nil {
		return err
	}
	t.cache.Invalidate(ListPrefix())
	t.cache.Invalidate(DetailKey(t.conversationID))
	return nil
}

func (t *MessageThread) scroll(intent ScrollIntent) {
	if t.onScroll != nil {
		t.onScroll(intent)
	}
}

func (t *MessageThread) key() cache.Key {
	return MessagesKey(t.conversationID, t.perPage)
}

func (t *MessageThread) pages() (threadPages, bool) {
	v, ok := t.cache.Peek(t.key())
	if !ok {
		return threadPages{}, false
	}
	tp, ok := v.(threadPages)
	return tp, ok
}

// flatten merges pages into one list ordered by ascending id. Messages that
// moved across a page boundary between fetches appear once.
func flatten(pages []chat.Page[chat.Message]) []chat.Message {
	n := 0
	for _, p := range pages {
		n += len(p.Items)
	}

	out := make([]chat.Message, 0, n)
	seen := make(map[int64]struct{}, n)
	for _, p := range pages {
		for _, m := range p.Items {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}

	slices.SortFunc(out, func(a, b chat.Message) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
