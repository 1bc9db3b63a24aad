package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// messageIdleTTL is how long an unused per-user limiter is kept.
const messageIdleTTL = 10 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MessageRateLimiter is a per-user token bucket for sending messages:
// perSecond tokens are added every second up to burst.
//
//	limiter := NewMessageRateLimiter(1, 5)
//	if ok, wait := limiter.Allow(userID); !ok { return 429 with wait }
type MessageRateLimiter struct {
	mu          sync.Mutex
	users       map[int64]*userLimiter
	limit       rate.Limit
	burst       int
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewMessageRateLimiter creates a limiter and starts its cleanup goroutine.
func NewMessageRateLimiter(perSecond float64, burst int) *MessageRateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &MessageRateLimiter{
		users:       make(map[int64]*userLimiter),
		limit:       rate.Limit(perSecond),
		burst:       burst,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow takes a token for userID. When none is available it returns false
// and the time until the next token.
func (rl *MessageRateLimiter) Allow(userID int64) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.users[userID]
	if !ok {
		u = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.users[userID] = u
	}
	u.lastSeen = now

	r := u.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// RetryAfterSeconds rounds a wait up to whole seconds for Retry-After.
func RetryAfterSeconds(wait time.Duration) int {
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait.Seconds()))
}

// Stop ends the cleanup goroutine.
func (rl *MessageRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *MessageRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
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

func (rl *MessageRateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for id, u := range rl.users {
		if now.Sub(u.lastSeen) > messageIdleTTL {
			delete(rl.users, id)
		}
	}
}
