package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
)

const freshToken = "fresh"

func newTestClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func hasFreshSession(r *http.Request) bool {
	ck, err := r.Cookie(models.AccessCookie)
	return err == nil && ck.Value == freshToken
}

func unauthorized(w http.ResponseWriter) {
	pkg.ErrorWithMessage(w, http.StatusUnauthorized, pkg.CodeUnauthorized, "session expired")
}

// refreshOK issues a fresh access cookie, like the real refresh endpoint.
func refreshOK(calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.SetCookie(w, &http.Cookie{Name: models.AccessCookie, Value: freshToken, Path: "/"})
		pkg.NoContent(w)
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	c, err := New(Options{BaseURL: "http://example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/api/v1", c.BaseURL())

	c, err = New(Options{BaseURL: "http://example.com/api/v1"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/api/v1", c.BaseURL())
}

func TestConcurrentUnauthorizedRequestsShareOneRefresh(t *testing.T) {
	var refreshes, hits atomic.Int32
	var stale atomic.Int32
	bothStale := make(chan struct{})
	var closeOnce sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		// Give a late caller the chance to join the running refresh.
		time.Sleep(20 * time.Millisecond)
		refreshOK(&refreshes)(w, r)
	})
	mux.HandleFunc("GET /api/v1/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !hasFreshSession(r) {
			// Hold the first two requests until both have been rejected by
			// an expired session.
			if stale.Add(1) >= 2 {
				closeOnce.Do(func() { close(bothStale) })
			}
			<-bothStale
			unauthorized(w)
			return
		}
		pkg.JSON(w, http.StatusOK, models.Conversation{ID: 7, IsGroup: true})
	})

	c := newTestClient(t, mux, Options{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := c.GetConversation(context.Background(), 7)
			if err == nil && conv.ID != 7 {
				err = fmt.Errorf("unexpected conversation %d", conv.ID)
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), refreshes.Load(), "exactly one refresh for concurrent 401s")
	assert.Equal(t, int32(4), hits.Load(), "each request is sent once and retried once")
}

func TestRetriesAtMostOnce(t *testing.T) {
	var refreshes, hits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/refresh", refreshOK(&refreshes))
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		unauthorized(w)
	})

	c := newTestClient(t, mux, Options{})

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindAuth, Classify(err))
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestRefreshFailureExpiresSession(t *testing.T) {
	var hits atomic.Int32
	var expired []error
	var mu sync.Mutex

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, pkg.CodeUnauthorized, "refresh token expired")
	})
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		unauthorized(w)
	})

	c := newTestClient(t, mux, Options{
		OnSessionExpired: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			expired = append(expired, err)
		},
	})

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindAuth, Classify(err))
	assert.Equal(t, int32(1), hits.Load(), "no retry after a failed refresh")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, expired, 1)
	var apiErr *APIError
	require.ErrorAs(t, expired[0], &apiErr)
	assert.Equal(t, "refresh token expired", apiErr.Message)
}

func TestLoginFailureDoesNotRefresh(t *testing.T) {
	var refreshes atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/refresh", refreshOK(&refreshes))
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, pkg.CodeUnauthorized, "invalid email or password")
	})

	c := newTestClient(t, mux, Options{})

	_, err := c.Login(context.Background(), "ada@example.com", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, KindAuth, Classify(err))
	assert.Zero(t, refreshes.Load())
}

func TestCSRFHeaderOnMutatingRequestsOnly(t *testing.T) {
	var sendHeader, listHeader string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: models.AccessCookie, Value: freshToken, Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: models.CSRFCookie, Value: "csrf-123", Path: "/"})
		name := "Ada"
		pkg.JSON(w, http.StatusOK, models.User{ID: 1, Email: "ada@example.com", Name: &name, Role: models.UserRoleMember})
	})
	mux.HandleFunc("POST /api/v1/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		sendHeader = r.Header.Get(models.CSRFHeader)
		pkg.JSON(w, http.StatusCreated, models.Message{ID: 11, ConversationID: 3, SenderID: 1, Content: "hi"})
	})
	mux.HandleFunc("GET /api/v1/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		listHeader = r.Header.Get(models.CSRFHeader)
		pkg.List(w, []models.Message{}, models.NewPagination(1, 20, 0))
	})

	c := newTestClient(t, mux, Options{})

	user, err := c.Login(context.Background(), "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.DisplayName())

	msg, err := c.SendMessage(context.Background(), 3, "hi")
	require.NoError(t, err)
	assert.Equal(t, int64(11), msg.ID)
	assert.Equal(t, "csrf-123", sendHeader)

	_, err = c.ListMessages(context.Background(), 3, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, listHeader)
}

func TestErrorEnvelopeDecoding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "404" {
			pkg.ErrorWithMessage(w, http.StatusNotFound, pkg.CodeNotFound, "conversation not found")
			return
		}
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	c := newTestClient(t, mux, Options{})

	_, err := c.GetConversation(context.Background(), 404)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, pkg.CodeNotFound, apiErr.Code)
	assert.Equal(t, "conversation not found", apiErr.Message)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, KindDomain, Classify(err))
	assert.False(t, IsRetryable(err))

	_, err = c.GetConversation(context.Background(), 1)
	require.Error(t, err)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
	assert.Equal(t, KindUnknown, Classify(err))
	assert.True(t, IsRetryable(err))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindNone, Classify(nil))
	assert.Equal(t, KindCanceled, Classify(context.Canceled))
	assert.Equal(t, KindCanceled, Classify(fmt.Errorf("get: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindAuth, Classify(&APIError{Status: 401}))
	assert.Equal(t, KindDomain, Classify(&APIError{Status: 409, Code: pkg.CodeConflict}))
	assert.Equal(t, KindUnknown, Classify(&APIError{Status: 503, Code: pkg.CodeInternal}))
	assert.Equal(t, KindUnknown, Classify(&APIError{Status: 418}))
	assert.Equal(t, KindUnknown, Classify(errors.New("connection reset")))
	assert.Equal(t, "domain", KindDomain.String())
}

func TestListConversationsMapsNullableFields(t *testing.T) {
	var gotQuery string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [{
				"id": 5, "title": null, "is_group": false, "last_message_id": null,
				"created_at": "2026-01-01T10:00:00Z", "updated_at": "2026-01-01T11:00:00Z",
				"unread_count": 3,
				"participants": [
					{"id": 1, "conversation_id": 5, "user_id": 1, "role": "owner", "last_read_message_id": null,
					 "joined_at": "2026-01-01T10:00:00Z", "user": {"id": 1, "email": "ada@example.com", "name": null, "role": "member", "avatar_url": null}},
					{"id": 2, "conversation_id": 5, "user_id": 2, "role": "member", "last_read_message_id": 9,
					 "joined_at": "2026-01-01T10:00:00Z", "user": {"id": 2, "email": "bob@example.com", "name": "Bob", "role": "member", "avatar_url": "https://cdn.example.com/bob.png"}}
				]
			}],
			"pagination": {"page": 1, "per_page": 20, "total": 1, "has_next": false, "has_prev": false}
		}`))
	})

	c := newTestClient(t, mux, Options{})

	page, err := c.ListConversations(context.Background(), models.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, "order=desc&page=1&per_page=20&sort=updated_at", gotQuery)

	require.Len(t, page.Items, 1)
	conv := page.Items[0]
	assert.Equal(t, int64(5), conv.ID)
	assert.Empty(t, conv.Title)
	assert.Zero(t, conv.LastMessageID)
	assert.Equal(t, 3, conv.UnreadCount)
	assert.Equal(t, 1, page.Pagination.Total)

	require.Len(t, conv.Participants, 2)
	ada, bob := conv.Participants[0], conv.Participants[1]
	assert.Zero(t, ada.LastReadMessageID)
	assert.Equal(t, "ada@example.com", ada.User.DisplayName())
	assert.Empty(t, ada.User.AvatarURL)
	assert.Equal(t, int64(9), bob.LastReadMessageID)
	assert.Equal(t, "Bob", bob.User.DisplayName())
	assert.Equal(t, "https://cdn.example.com/bob.png", bob.User.AvatarURL)
}

func TestCallerCancellationStopsWaitingForRefresh(t *testing.T) {
	release := make(chan struct{})
	var refreshes atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		<-release
		refreshOK(&refreshes)(w, r)
	})
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if !hasFreshSession(r) {
			unauthorized(w)
			return
		}
		pkg.JSON(w, http.StatusOK, models.User{ID: 1, Email: "ada@example.com"})
	})

	c := newTestClient(t, mux, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Me(ctx)
	assert.Equal(t, KindCanceled, Classify(err))

	// The detached refresh still completes and later calls reuse it.
	close(release)
	require.Eventually(t, func() bool { return refreshes.Load() == 1 }, time.Second, 5*time.Millisecond)

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, int32(1), refreshes.Load())
}
