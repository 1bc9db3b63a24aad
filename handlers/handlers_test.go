package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
	"github.com/hatchlab/hatchdesk/pkg/ratelimit"
	"github.com/hatchlab/hatchdesk/services"
)

var alice = &models.User{ID: 1, Email: "alice@example.com", Role: models.UserRoleMember}

func withUser(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, u))
}

func newRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	return r
}

// serve routes the request through a mux so path values are populated.
func serve(pattern string, h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, r)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- stubs ---

type stubAuth struct {
	services.AuthService
	tokens     *services.AuthTokens
	err        error
	loggedOut  string
	refreshArg string
}

func (s *stubAuth) Register(context.Context, *models.RegisterRequest) (*services.AuthTokens, error) {
	return s.tokens, s.err
}

func (s *stubAuth) Login(context.Context, *models.LoginRequest) (*services.AuthTokens, error) {
	return s.tokens, s.err
}

func (s *stubAuth) Refresh(_ context.Context, token string) (*services.AuthTokens, error) {
	s.refreshArg = token
	return s.tokens, s.err
}

func (s *stubAuth) Logout(_ context.Context, token string) error {
	s.loggedOut = token
	return s.err
}

type stubConversations struct {
	services.ConversationService
	conv       *models.Conversation
	created    bool
	err        error
	listParams models.ListParams
}

func (s *stubConversations) Create(context.Context, int64, *models.CreateConversationRequest) (*models.Conversation, bool, error) {
	return s.conv, s.created, s.err
}

func (s *stubConversations) Get(context.Context, int64, int64) (*models.Conversation, error) {
	return s.conv, s.err
}

func (s *stubConversations) List(_ context.Context, _ int64, p models.ListParams) ([]models.ConversationWithUnread, models.Pagination, error) {
	s.listParams = p
	return nil, models.NewPagination(p.Page, p.PerPage, 0), s.err
}

type stubMessages struct {
	services.MessageService
	sent    int
	err     error
	page    int
	perPage int
}

func (s *stubMessages) List(_ context.Context, _, _ int64, page, perPage int) ([]models.Message, models.Pagination, error) {
	s.page, s.perPage = page, perPage
	return []models.Message{{ID: 9}}, models.NewPagination(page, perPage, 1), s.err
}

func (s *stubMessages) Send(_ context.Context, userID, convID int64, req *models.SendMessageRequest) (*models.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent++
	return &models.Message{ID: int64(s.sent), ConversationID: convID, SenderID: userID, Content: req.Content}, nil
}

type stubReads struct {
	services.ReadStateService
	err error
	req *models.MarkReadRequest
}

func (s *stubReads) MarkRead(_ context.Context, _, _ int64, req *models.MarkReadRequest) error {
	s.req = req
	return s.err
}

func testTokens() *services.AuthTokens {
	now := time.Now()
	return &services.AuthTokens{
		AccessToken:      "access",
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshToken:     "refresh",
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
		User:             *alice,
	}
}

// --- auth ---

func TestLoginSetsSessionCookies(t *testing.T) {
	h := NewAuthHandler(&stubAuth{tokens: testTokens()}, nil, CookieSettings{Secure: true})

	rec := serve("POST /api/v1/auth/login", h.Login,
		newRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"alice@example.com","password":"password1"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.ItemResponse[models.User]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, alice.ID, body.Data.ID)

	access := cookieByName(rec, models.AccessCookie)
	require.NotNil(t, access)
	assert.Equal(t, "access", access.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, "/", access.Path)

	refresh := cookieByName(rec, models.RefreshCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, refreshCookiePath, refresh.Path)
	assert.True(t, refresh.HttpOnly)

	csrf := cookieByName(rec, models.CSRFCookie)
	require.NotNil(t, csrf)
	assert.NotEmpty(t, csrf.Value)
	assert.False(t, csrf.HttpOnly)
}

func TestRegisterAnswersCreated(t *testing.T) {
	h := NewAuthHandler(&stubAuth{tokens: testTokens()}, nil, CookieSettings{})

	rec := serve("POST /auth/register", h.Register,
		newRequest(http.MethodPost, "/auth/register", `{"email":"alice@example.com","password":"password1"}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotNil(t, cookieByName(rec, models.AccessCookie))
}

func TestLoginMapsServiceErrors(t *testing.T) {
	h := NewAuthHandler(&stubAuth{err: fmt.Errorf("%w: invalid email or password", pkg.ErrUnauthorized)}, nil, CookieSettings{})

	rec := serve("POST /auth/login", h.Login,
		newRequest(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"nope"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, pkg.CodeUnauthorized, decodeError(t, rec).Code)
	assert.Nil(t, cookieByName(rec, models.AccessCookie))
}

func TestLoginIsRateLimitedPerAccount(t *testing.T) {
	limiter := ratelimit.NewLoginRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)
	h := NewAuthHandler(&stubAuth{err: pkg.ErrUnauthorized}, limiter, CookieSettings{})

	body := `{"email":"alice@example.com","password":"nope"}`
	first := serve("POST /auth/login", h.Login, newRequest(http.MethodPost, "/auth/login", body))
	assert.Equal(t, http.StatusUnauthorized, first.Code)

	second := serve("POST /auth/login", h.Login, newRequest(http.MethodPost, "/auth/login", body))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, pkg.CodeRateLimited, decodeError(t, second).Code)

	other := `{"email":"bob@example.com","password":"nope"}`
	third := serve("POST /auth/login", h.Login, newRequest(http.MethodPost, "/auth/login", other))
	assert.Equal(t, http.StatusUnauthorized, third.Code, "another account from the same IP is still allowed")
}

func TestRefreshWithoutCookieClearsSession(t *testing.T) {
	auth := &stubAuth{tokens: testTokens()}
	h := NewAuthHandler(auth, nil, CookieSettings{})

	rec := serve("POST /auth/refresh", h.Refresh, newRequest(http.MethodPost, "/auth/refresh", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cleared := cookieByName(rec, models.AccessCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Empty(t, auth.refreshArg)
}

func TestRefreshRotatesCookies(t *testing.T) {
	auth := &stubAuth{tokens: testTokens()}
	h := NewAuthHandler(auth, nil, CookieSettings{})

	r := newRequest(http.MethodPost, "/auth/refresh", "")
	r.AddCookie(&http.Cookie{Name: models.RefreshCookie, Value: "old-refresh"})

	rec := serve("POST /auth/refresh", h.Refresh, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "old-refresh", auth.refreshArg)
	require.NotNil(t, cookieByName(rec, models.RefreshCookie))
	assert.Equal(t, "refresh", cookieByName(rec, models.RefreshCookie).Value)
}

func TestLogoutEndsSessionAndClearsCookies(t *testing.T) {
	auth := &stubAuth{}
	h := NewAuthHandler(auth, nil, CookieSettings{})

	r := newRequest(http.MethodPost, "/auth/logout", "")
	r.AddCookie(&http.Cookie{Name: models.RefreshCookie, Value: "refresh"})

	rec := serve("POST /auth/logout", h.Logout, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "refresh", auth.loggedOut)
	require.NotNil(t, cookieByName(rec, models.CSRFCookie))
	assert.Equal(t, -1, cookieByName(rec, models.CSRFCookie).MaxAge)
}

// --- conversations ---

func TestCreateConversationStatusReflectsCreation(t *testing.T) {
	for _, tc := range []struct {
		name    string
		created bool
		want    int
	}{
		{"new conversation", true, http.StatusCreated},
		{"existing direct conversation", false, http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubConversations{conv: &models.Conversation{ID: 7}, created: tc.created}
			h := NewConversationHandler(svc)

			r := withUser(newRequest(http.MethodPost, "/conversations", `{"participant_ids":[2]}`), alice)
			rec := serve("POST /conversations", h.Create, r)
			assert.Equal(t, tc.want, rec.Code)

			var body models.ItemResponse[models.Conversation]
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, int64(7), body.Data.ID)
		})
	}
}

func TestCreateConversationRejectsMalformedBody(t *testing.T) {
	h := NewConversationHandler(&stubConversations{})

	r := withUser(newRequest(http.MethodPost, "/conversations", `{"participant_ids":`), alice)
	rec := serve("POST /conversations", h.Create, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, pkg.CodeBadRequest, decodeError(t, rec).Code)
}

func TestListConversationsParsesParams(t *testing.T) {
	svc := &stubConversations{}
	h := NewConversationHandler(svc)

	r := withUser(newRequest(http.MethodGet, "/conversations?page=2&per_page=5&sort=created_at&order=asc", ""), alice)
	rec := serve("GET /conversations", h.List, r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ListParams{Page: 2, PerPage: 5, Sort: models.SortCreatedAt, Order: models.OrderAsc}, svc.listParams)

	var body models.ListResponse[models.ConversationWithUnread]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.NotNil(t, body.Data)
	assert.Empty(t, body.Data)
	assert.Equal(t, 2, body.Pagination.Page)
}

func TestListConversationsRejectsUnknownSort(t *testing.T) {
	h := NewConversationHandler(&stubConversations{})

	r := withUser(newRequest(http.MethodGet, "/conversations?sort=title", ""), alice)
	rec := serve("GET /conversations", h.List, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversationHidesNonParticipants(t *testing.T) {
	h := NewConversationHandler(&stubConversations{err: fmt.Errorf("%w: conversation", pkg.ErrNotFound)})

	r := withUser(newRequest(http.MethodGet, "/conversations/3", ""), alice)
	rec := serve("GET /conversations/{id}", h.Get, r)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, pkg.CodeNotFound, decodeError(t, rec).Code)
}

func TestGetConversationRejectsBadID(t *testing.T) {
	h := NewConversationHandler(&stubConversations{})

	for _, id := range []string{"abc", "0", "-4"} {
		r := withUser(newRequest(http.MethodGet, "/conversations/"+id, ""), alice)
		rec := serve("GET /conversations/{id}", h.Get, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
}

func TestHandlersRequireUserInContext(t *testing.T) {
	h := NewConversationHandler(&stubConversations{})

	rec := serve("GET /conversations", h.List, newRequest(http.MethodGet, "/conversations", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- messages ---

func TestSendMessage(t *testing.T) {
	msgs := &stubMessages{}
	h := NewMessageHandler(msgs, nil)

	r := withUser(newRequest(http.MethodPost, "/conversations/4/messages", `{"content":"hi"}`), alice)
	rec := serve("POST /conversations/{id}/messages", h.Send, r)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body models.ItemResponse[models.Message]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(4), body.Data.ConversationID)
	assert.Equal(t, alice.ID, body.Data.SenderID)
	assert.Equal(t, "hi", body.Data.Content)
}

func TestSendMessageIsRateLimitedPerUser(t *testing.T) {
	limiter := ratelimit.NewMessageRateLimiter(0.5, 1)
	t.Cleanup(limiter.Stop)
	msgs := &stubMessages{}
	h := NewMessageHandler(msgs, limiter)

	send := func() *httptest.ResponseRecorder {
		r := withUser(newRequest(http.MethodPost, "/conversations/4/messages", `{"content":"hi"}`), alice)
		return serve("POST /conversations/{id}/messages", h.Send, r)
	}

	assert.Equal(t, http.StatusCreated, send().Code)
	limited := send()
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Equal(t, 1, msgs.sent)
}

func TestListMessagesPassesPaging(t *testing.T) {
	msgs := &stubMessages{}
	h := NewMessageHandler(msgs, nil)

	r := withUser(newRequest(http.MethodGet, "/conversations/4/messages?page=3&per_page=10", ""), alice)
	rec := serve("GET /conversations/{id}/messages", h.List, r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, msgs.page)
	assert.Equal(t, 10, msgs.perPage)

	bad := withUser(newRequest(http.MethodGet, "/conversations/4/messages?page=zero", ""), alice)
	assert.Equal(t, http.StatusBadRequest, serve("GET /conversations/{id}/messages", h.List, bad).Code)
}

func TestMarkRead(t *testing.T) {
	reads := &stubReads{}
	h := NewReadStateHandler(reads)

	r := withUser(newRequest(http.MethodPost, "/conversations/4/mark-read", `{"message_id":12}`), alice)
	rec := serve("POST /conversations/{id}/mark-read", h.MarkRead, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, reads.req)
	assert.Equal(t, int64(12), reads.req.MessageID)

	reads.err = fmt.Errorf("%w: message belongs to another conversation", pkg.ErrBadRequest)
	r = withUser(newRequest(http.MethodPost, "/conversations/4/mark-read", `{"message_id":12}`), alice)
	assert.Equal(t, http.StatusBadRequest, serve("POST /conversations/{id}/mark-read", h.MarkRead, r).Code)
}

// --- users and health ---

type stubUsers struct {
	services.UserService
	query string
}

func (s *stubUsers) List(_ context.Context, q string, page, perPage int) ([]models.User, models.Pagination, error) {
	s.query = q
	return []models.User{*alice}, models.NewPagination(page, perPage, 1), nil
}

func TestUsersMeAndList(t *testing.T) {
	users := &stubUsers{}
	h := NewUserHandler(users)

	rec := serve("GET /users/me", h.Me, withUser(newRequest(http.MethodGet, "/users/me", ""), alice))
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.ItemResponse[models.User]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, alice.Email, me.Data.Email)

	rec = serve("GET /users", h.List, withUser(newRequest(http.MethodGet, "/users?q=ali", ""), alice))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ali", users.query)
	var list models.ListResponse[models.User]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list.Data, 1)
	assert.Equal(t, 1, list.Pagination.Total)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	ok := NewHealthHandler(pingerFunc(func(context.Context) error { return nil }))
	assert.Equal(t, http.StatusOK, serve("GET /health", ok.Health, newRequest(http.MethodGet, "/health", "")).Code)

	down := NewHealthHandler(pingerFunc(func(context.Context) error { return fmt.Errorf("disk gone") }))
	assert.Equal(t, http.StatusServiceUnavailable, serve("GET /health", down.Health, newRequest(http.MethodGet, "/health", "")).Code)
}
