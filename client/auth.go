package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/models"
)

// Login starts a session. The session cookies land in the client's jar.
func (c *Client) Login(ctx context.Context, email, password string) (chat.User, error) {
	u, err := postItem[models.User](ctx, c, "/auth/login", models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return chat.User{}, err
	}
	c.resetRefreshState()
	return mapUser(u), nil
}

// Register creates an account and starts a session for it.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (chat.User, error) {
	u, err := postItem[models.User](ctx, c, "/auth/register", req)
	if err != nil {
		return chat.User{}, err
	}
	c.resetRefreshState()
	return mapUser(u), nil
}

// Logout ends the session server-side and clears the session cookies.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// Me returns the current user.
func (c *Client) Me(ctx context.Context) (chat.User, error) {
	u, err := getItem[models.User](ctx, c, "/users/me", nil)
	if err != nil {
		return chat.User{}, err
	}
	return mapUser(u), nil
}

// ListUsers searches the user directory, e.g. for the participant picker.
// An empty query lists everyone.
func (c *Client) ListUsers(ctx context.Context, query string, page, perPage int) (chat.Page[chat.User], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if query = strings.TrimSpace(query); query != "" {
		q.Set("q", query)
	}

	env, err := getList[models.User](ctx, c, "/users", q)
	if err != nil {
		return chat.Page[chat.User]{}, err
	}
	return mapPage(env, mapUser), nil
}

// resetRefreshState forgets a failed refresh after a fresh login so the
// next 401 refreshes again instead of replaying the old failure.
func (c *Client) resetRefreshState() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.lastRefreshErr = nil
}
