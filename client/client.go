// Package client is the HTTP client of the messaging API.
//
// The session lives in cookies: an HTTP-only access token, an HTTP-only
// refresh token, and a readable CSRF token that is echoed back in the
// X-CSRF-Token header on every mutating request.
//
// When a request comes back 401 the client refreshes the session once and
// retries the request once. Refreshes are deduplicated: however many requests
// fail at the same time, only one POST /auth/refresh is sent and every caller
// waits for it before retrying. A request that fails after a refresh already
// finished simply retries without refreshing again.
//
// Responses are decoded from the API's envelopes and mapped to the domain
// types of package chat.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hatchlab/hatchdesk/models"
)

// APIPrefix is the versioned path every endpoint lives under.
const APIPrefix = "/api/v1"

const (
	refreshPath    = "/auth/refresh"
	defaultTimeout = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	// BaseURL is the server origin, e.g. http://localhost:9090. APIPrefix is
	// appended unless the URL already ends with it.
	BaseURL string
	// HTTPClient is used for every request. A cookie jar is attached when it
	// has none. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// Logger receives refresh and live-connection diagnostics. Nil disables them.
	Logger *log.Logger
	// OnSessionExpired is called once per failed refresh, e.g. to route the
	// user to a login screen.
	OnSessionExpired func(err error)
}

// Client is safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	logger    *log.Logger
	onExpired func(error)

	refreshGroup singleflight.Group

	// generation counts finished refresh attempts; lastRefreshErr is the
	// outcome of the latest one.
	mu             sync.Mutex
	generation     uint64
	lastRefreshErr error
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("client: base URL is required")
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("client: base URL must be http or https, got %q", base.Scheme)
	}
	if !strings.HasSuffix(base.Path, APIPrefix) {
		base.Path += APIPrefix
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("client: failed to create cookie jar: %w", err)
		}
		withJar := *hc
		withJar.Jar = jar
		hc = &withJar
	}

	return &Client{
		base:      base,
		http:      hc,
		logger:    opts.Logger,
		onExpired: opts.OnSessionExpired,
	}, nil
}

// BaseURL returns the API root, including APIPrefix.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// ─── Request pipeline ───

// do sends one API call. in is JSON-encoded as the body when non-nil; the
// response body is decoded into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && refreshable(path) {
		drain(resp)

		if err := c.refresh(ctx, gen); err != nil {
			return err
		}
		if resp, err = c.send(ctx, method, path, query, body); err != nil {
			return err
		}
	}
	defer drain(resp)

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutating(method) {
		if token := c.csrfToken(); token != "" {
			req.Header.Set(models.CSRFHeader, token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// refresh makes sure one refresh has completed since the caller sent its
// request at generation sentGen, and returns that refresh's outcome.
//
// The refresh itself runs on a context detached from the caller, so a
// caller that gives up does not cancel the refresh the others wait on.
func (c *Client) refresh(ctx context.Context, sentGen uint64) error {
	if done, err := c.refreshedSince(sentGen); done {
		return err
	}

	detached := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		// The previous flight may have finished between the check above and
		// this flight starting.
		if done, err := c.refreshedSince(sentGen); done {
			return nil, err
		}

		err := c.postRefresh(detached)

		c.mu.Lock()
		c.generation++
		c.lastRefreshErr = err
		c.mu.Unlock()

		if err != nil {
			c.logf("[client] session refresh failed: %v", err)
			if c.onExpired != nil {
				c.onExpired(err)
			}
		} else {
			c.logf("[client] session refreshed")
		}
		return nil, err
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (c *Client) refreshedSince(gen uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return true, c.lastRefreshErr
	}
	return false, nil
}

func (c *Client) postRefresh(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, refreshPath, nil, nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) csrfToken() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == models.CSRFCookie {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// refreshable reports whether a 401 on path should trigger a refresh. A 401
// from the auth endpoints means bad credentials, not an expired session.
func refreshable(path string) bool {
	switch path {
	case refreshPath, "/auth/login", "/auth/register":
		return false
	}
	return true
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// drain consumes and closes the body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// ─── Envelope helpers ───

func getItem[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var env models.ItemResponse[T]
	err := c.do(ctx, http.MethodGet, path, query, nil, &env)
	return env.Data, err
}

func postItem[T any](ctx context.Context, c *Client, path string, in any) (T, error) {
	var env models.ItemResponse[T]
	err := c.do(ctx, http.MethodPost, path, nil, in, &env)
	return env.Data, err
}

func getList[T any](ctx context.Context, c *Client, path string, query url.Values) (models.ListResponse[T], error) {
	var env models.ListResponse[T]
	err := c.do(ctx, http.MethodGet, path, query, nil, &env)
	return env, err
}
