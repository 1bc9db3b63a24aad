// Package cache provides the client query cache and the server's Redis-backed
// list cache.
//
// QueryCache is a keyed, in-memory store for fetched API results.
//
// Keys are hierarchical string slices such as
//
//	{"conversations", "list", "1", "20", "updated_at", "desc"}
//	{"conversations", "messages", "42", "20"}
//
// so a mutation can invalidate a whole family of entries by prefix
// (for example every list page with {"conversations", "list"}).
//
// Each entry remembers when it was fetched. It is fresh for its stale time
// and is served without a request; once stale (or invalidated) the next
// Fetch goes to the network. Stale data stays readable through Peek so a
// view can keep showing it while the refetch runs.
//
// Concurrent Fetch calls for the same key share one request
// (golang.org/x/sync/singleflight). A fetch that was already running when
// its key got invalidated still stores its result, but the result stays
// stale so the next reader refetches.
//
// Entries nobody has touched for GCTime are dropped by a background
// goroutine; call Close to stop it.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key identifies a cache entry. Segment-wise prefixes select families.
type Key []string

// K builds a Key from arbitrary values using their default formatting.
func K(parts ...any) Key {
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = fmt.Sprint(p)
	}
	return k
}

// Append returns a new key with parts added to k.
func (k Key) Append(parts ...any) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, K(parts...)...)
}

// HasPrefix reports whether every segment of prefix matches k.
// An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	return strings.Join(k, "/")
}

// id is the map key. The unit separator cannot appear in formatted ids or
// enum values, so distinct keys never collide.
func (k Key) id() string {
	return strings.Join(k, "\x1f")
}

const (
	defaultGCTime          = 5 * time.Minute
	defaultCleanupInterval = time.Minute
)

// Options configures a QueryCache.
type Options struct {
	// StaleTime is how long a fetched value counts as fresh when the fetch
	// does not specify its own. Zero means values are stale immediately.
	StaleTime time.Duration
	// GCTime is how long an unused entry is kept. Defaults to 5 minutes.
	GCTime time.Duration
	// CleanupInterval is how often unused entries are swept. Defaults to 1 minute.
	CleanupInterval time.Duration
}

type entry struct {
	key         Key
	value       any
	updatedAt   time.Time
	staleTime   time.Duration
	invalidated bool
	lastUsed    time.Time
	seq         uint64
}

// flight tracks one running fetch so Invalidate can reach it.
type flight struct {
	key         Key
	seq         uint64
	invalidated bool
}

// QueryCache is safe for concurrent use.
type QueryCache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	inflight map[*flight]struct{}
	seq      uint64
	opts     Options
	group    singleflight.Group
	now      func() time.Time

	stopCleanup chan struct{}
	closeOnce   sync.Once
}

// New creates a cache and starts its cleanup goroutine.
func New(opts Options) *QueryCache {
	if opts.GCTime <= 0 {
		opts.GCTime = defaultGCTime
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}

	c := &QueryCache{
		entries:     make(map[string]*entry),
		inflight:    make(map[*flight]struct{}),
		opts:        opts,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(opts.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.evictUnused()
			case <-c.stopCleanup:
				return
			}
		}
	}()

	return c
}

// Peek returns the stored value for key, fresh or stale.
func (c *QueryCache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id()]
	if !ok {
		return nil, false
	}
	e.lastUsed = c.now()
	return e.value, true
}

// IsStale reports whether key needs a refetch. Missing keys are stale.
func (c *QueryCache) IsStale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id()]
	return !ok || c.staleLocked(e)
}

// UpdatedAt returns when key was last written.
func (c *QueryCache) UpdatedAt(key Key) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id()]
	if !ok {
		return time.Time{}, false
	}
	return e.updatedAt, true
}

// Set stores value as a fresh entry using the cache's default stale time.
// Fetches that started before this call will not overwrite it.
func (c *QueryCache) Set(key Key, value any) {
	c.SetFor(key, value, c.opts.StaleTime)
}

// SetFor is Set with its own stale time, for values written outside a
// fetch that should count as fresh as long as a fetched one would.
func (c *QueryCache) SetFor(key Key, value any, staleTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.storeLocked(key, value, staleTime, false, c.seq)
}

// Update replaces the value under key with fn(old). ok is false when the
// key has no entry. The read and write happen under one lock.
//
// An existing entry keeps its fetch time and invalidation mark, so patching
// data in never makes it look fresher than it is. A missing entry is stored
// fresh. Either way, fetches that started before the call will not
// overwrite the result.
func (c *QueryCache) Update(key Key, fn func(old any, ok bool) any) {
	c.UpdateFor(key, c.opts.StaleTime, fn)
}

// UpdateFor is Update where a missing entry is stored with staleTime.
func (c *QueryCache) UpdateFor(key Key, staleTime time.Duration, fn func(old any, ok bool) any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	e, ok := c.entries[key.id()]
	if !ok {
		c.storeLocked(key, fn(nil, false), staleTime, false, c.seq)
		return
	}
	e.value = fn(e.value, true)
	e.seq = c.seq
	e.lastUsed = c.now()
}

// Invalidate marks every entry under prefix stale, including results of
// fetches still running. It returns the number of stored entries touched.
func (c *QueryCache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.invalidated = true
			n++
		}
	}
	c.invalidateFlightsLocked(prefix)
	return n
}

// Remove deletes every entry under prefix. Running fetches under prefix
// will still store their result, as stale.
func (c *QueryCache) Remove(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, id)
			n++
		}
	}
	c.invalidateFlightsLocked(prefix)
	return n
}

// Clear empties the cache.
func (c *QueryCache) Clear() {
	c.Remove(nil)
}

// Keys lists the stored keys in no particular order.
func (c *QueryCache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]Key, 0, len(c.entries))
	for _, e := range c.entries {
		keys = append(keys, e.key)
	}
	return keys
}

// Len returns the number of stored entries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *QueryCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// ─── Fetch ───

// FetchOptions tunes a single Fetch call.
type FetchOptions struct {
	// StaleTime overrides the cache default for the stored result.
	StaleTime time.Duration
	// Force skips the freshness check.
	Force bool
	// Retry is how many extra attempts a failed fetch gets.
	Retry int
	// RetryDelay is the base delay between attempts; attempt n waits n*RetryDelay.
	RetryDelay time.Duration
	// ShouldRetry filters which errors are retried. Nil retries nothing.
	ShouldRetry func(error) bool
}

// Fetch returns the fresh value under key, or runs fn and stores its result.
//
// Callers fetching the same key at the same time share one fn call. The
// shared call runs detached from any single caller's context so that one
// caller giving up does not fail the others; a caller whose own context
// ends gets ctx.Err() while the fetch completes and fills the cache.
//
// Errors are returned without touching the stored value, so the previous
// data stays available through Peek.
func Fetch[T any](ctx context.Context, c *QueryCache, key Key, opts FetchOptions, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if !opts.Force {
		if v, ok := c.fresh(key); ok {
			if t, ok := v.(T); ok {
				return t, nil
			}
		}
	}

	staleTime := opts.StaleTime
	if staleTime == 0 {
		staleTime = c.opts.StaleTime
	}

	id := key.id()
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (any, error) {
		f := c.beginFlight(key)
		v, err := runWithRetry(detached, opts, fn)
		c.endFlight(f, v, err, staleTime)
		return v, err
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		t, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("cache: key %s holds %T, want %T", key, res.Val, zero)
		}
		return t, nil
	}
}

func runWithRetry[T any](ctx context.Context, opts FetchOptions, fn func(context.Context) (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for attempt := 0; ; attempt++ {
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= opts.Retry || opts.ShouldRetry == nil || !opts.ShouldRetry(err) {
			return v, err
		}

		delay := time.Duration(attempt+1) * opts.RetryDelay
		select {
		case <-ctx.Done():
			return v, err
		case <-time.After(delay):
		}
	}
}

func (c *QueryCache) fresh(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id()]
	if !ok || c.staleLocked(e) {
		return nil, false
	}
	e.lastUsed = c.now()
	return e.value, true
}

func (c *QueryCache) beginFlight(key Key) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	f := &flight{key: key, seq: c.seq}
	c.inflight[f] = struct{}{}
	return f
}

func (c *QueryCache) endFlight(f *flight, value any, err error, staleTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inflight, f)
	if err != nil {
		return
	}

	// A newer write already landed; this result is older than what we hold.
	if e, ok := c.entries[f.key.id()]; ok && e.seq > f.seq {
		return
	}
	c.storeLocked(f.key, value, staleTime, f.invalidated, f.seq)
}

// invalidateFlightsLocked marks running fetches under prefix and forgets
// them in the singleflight group, so a Fetch issued after the invalidation
// starts a new request instead of joining the outdated one.
func (c *QueryCache) invalidateFlightsLocked(prefix Key) {
	for f := range c.inflight {
		if f.key.HasPrefix(prefix) {
			f.invalidated = true
			c.group.Forget(f.key.id())
		}
	}
}

func (c *QueryCache) storeLocked(key Key, value any, staleTime time.Duration, invalidated bool, seq uint64) {
	now := c.now()
	c.entries[key.id()] = &entry{
		key:         append(Key(nil), key...),
		value:       value,
		updatedAt:   now,
		staleTime:   staleTime,
		invalidated: invalidated,
		lastUsed:    now,
		seq:         seq,
	}
}

func (c *QueryCache) staleLocked(e *entry) bool {
	return e.invalidated || c.now().Sub(e.updatedAt) >= e.staleTime
}

// evictUnused drops entries nobody has read or written for GCTime.
func (c *QueryCache) evictUnused() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, e := range c.entries {
		if now.Sub(e.lastUsed) > c.opts.GCTime {
			delete(c.entries, id)
		}
	}
}
