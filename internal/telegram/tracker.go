package telegram

import (
	"context"
	"sync"
	"time"
)

// tracker keeps one in-flight request per chat. Starting a request cancels
// the one before it.
type tracker struct {
	mu       sync.Mutex
	inflight map[int64]request
	next     uint64
}

type request struct {
	token  uint64
	cancel context.CancelFunc
}

func newTracker() *tracker {
	return &tracker{inflight: make(map[int64]request)}
}

// begin registers a new request for chatID and returns its context and
// token. done must be called when the request finishes.
func (t *tracker) begin(chatID int64, timeout time.Duration) (context.Context, uint64, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	t.mu.Lock()
	if prev, ok := t.inflight[chatID]; ok {
		prev.cancel()
	}
	t.next++
	token := t.next
	t.inflight[chatID] = request{token: token, cancel: cancel}
	t.mu.Unlock()

	done := func() {
		cancel()
		t.mu.Lock()
		if cur, ok := t.inflight[chatID]; ok && cur.token == token {
			delete(t.inflight, chatID)
		}
		t.mu.Unlock()
	}
	return ctx, token, done
}

// current reports whether token is still the latest request for chatID.
func (t *tracker) current(chatID int64, token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.inflight[chatID]
	return ok && cur.token == token
}
