// Package ratelimit holds the in-memory limiters of the API server: a
// per-account and per-IP login limiter against password guessing and a per-user message
// send limiter against spam.
//
// Both are process-local. The server runs as a single instance, and the
// package imports nothing from the rest of the module so that handlers and
// middleware can both use it.
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// bucket counts attempts inside a fixed window that starts at the first
// attempt.
type bucket struct {
	count       int
	windowStart time.Time
}

// ipAttemptFactor scales the per-account limit into the cap for all
// accounts tried from one IP.
const ipAttemptFactor = 4

// LoginRateLimiter limits login attempts per account and per IP. An
// account (IP plus normalized email) gets maxAttempts per window; one IP
// gets ipAttemptFactor times that across every email it tries.
//
//	limiter := NewLoginRateLimiter(5, 15*time.Minute)
//	if ok, wait := limiter.Attempt(ip, email); !ok { return 429 }
//	// after a successful login:
//	limiter.Reset(ip, email)
type LoginRateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	maxAttempts int
	window      time.Duration
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewLoginRateLimiter creates a limiter and starts its cleanup goroutine.
// Call Stop when the limiter is no longer needed.
func NewLoginRateLimiter(maxAttempts int, window time.Duration) *LoginRateLimiter {
	rl := &LoginRateLimiter{
		buckets:     make(map[string]*bucket),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

func accountKey(ip, email string) string {
	return "acct:" + ip + "|" + strings.ToLower(strings.TrimSpace(email))
}

func ipKey(ip string) string {
	return "ip:" + ip
}

// Attempt records a login attempt for email from ip. When either the
// account or the IP is over its limit, ok is false and retryAfter is the
// number of seconds until the longer of the two windows ends. Failed and
// successful attempts both count until Reset.
func (rl *LoginRateLimiter) Attempt(ip, email string) (ok bool, retryAfter int) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	acct := rl.hitLocked(accountKey(ip, email), now)
	perIP := rl.hitLocked(ipKey(ip), now)

	acctOK := acct.count <= rl.maxAttempts
	ipOK := perIP.count <= rl.maxAttempts*ipAttemptFactor
	if acctOK && ipOK {
		return true, 0
	}

	if !acctOK {
		retryAfter = max(retryAfter, rl.remainingSeconds(acct, now))
	}
	if !ipOK {
		retryAfter = max(retryAfter, rl.remainingSeconds(perIP, now))
	}
	return false, retryAfter
}

// hitLocked counts one attempt against key, starting a new window when the
// old one has ended.
func (rl *LoginRateLimiter) hitLocked(key string, now time.Time) *bucket {
	b, exists := rl.buckets[key]
	if !exists || now.Sub(b.windowStart) > rl.window {
		b = &bucket{windowStart: now}
		rl.buckets[key] = b
	}
	b.count++
	return b
}

// remainingSeconds rounds the time left in b's window up to whole seconds.
func (rl *LoginRateLimiter) remainingSeconds(b *bucket, now time.Time) int {
	remaining := rl.window - now.Sub(b.windowStart)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// Reset forgets the attempts against one account, e.g. after a successful
// login. The IP's total is kept so that one good password does not reopen
// guessing against other accounts.
func (rl *LoginRateLimiter) Reset(ip, email string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, accountKey(ip, email))
}

// Stop ends the cleanup goroutine.
func (rl *LoginRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *LoginRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *LoginRateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if now.Sub(b.windowStart) > rl.window {
			delete(rl.buckets, key)
		}
	}
}

// ExtractIP returns the client IP of r: the first X-Forwarded-For entry,
// then X-Real-IP, then the host part of RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FormatRetryMessage renders a wait time for an error message,
// e.g. 120 → "2 minute(s)", 45 → "45 second(s)".
func FormatRetryMessage(seconds int) string {
	if seconds >= 60 {
		return fmt.Sprintf("%d minute(s)", seconds/60)
	}
	return fmt.Sprintf("%d second(s)", seconds)
}
