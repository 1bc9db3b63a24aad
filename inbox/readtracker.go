package inbox

import (
	"context"
	"sync"
)

// ReadTracker decides when to mark a conversation read.
//
// Observe is called with the id of the newest displayed message every time
// the thread changes. The mark function runs once per new newest id: never
// twice for the same id and never for an id at or below one already marked
// or seeded. A failed mark is not retried for the same id; the next newer
// message marks again and covers it.
type ReadTracker struct {
	mark func(ctx context.Context, messageID int64) error

	mu   sync.Mutex
	last int64
}

// NewReadTracker returns a tracker calling mark.
func NewReadTracker(mark func(ctx context.Context, messageID int64) error) *ReadTracker {
	return &ReadTracker{mark: mark}
}

// Seed records a read position the server already has, such as the
// participant's last read message id. It never moves the position back.
func (t *ReadTracker) Seed(messageID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if messageID > t.last {
		t.last = messageID
	}
}

// LastMarked returns the highest id marked or seeded so far.
func (t *ReadTracker) LastMarked() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Observe marks newestID read if it is newer than everything marked so far.
// fired reports whether mark was called.
func (t *ReadTracker) Observe(ctx context.Context, newestID int64) (fired bool, err error) {
	t.mu.Lock()
	if newestID <= t.last {
		t.mu.Unlock()
		return false, nil
	}
	// Claimed before the call so concurrent observers of the same id do not
	// both fire.
	t.last = newestID
	t.mu.Unlock()

	return true, t.mark(ctx, newestID)
}
