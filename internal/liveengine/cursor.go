package liveengine

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CursorVisibilityTimeout is how long a cursor stays visible after its
// last update; after that Visible omits it, though the cache keeps the
// entry until it is removed or evicted.
const CursorVisibilityTimeout = 10 * time.Second

// CursorCacheCap bounds the number of distinct remote cursors a
// session tracks at once; the least-recently-updated cursor is evicted
// first when the cap is exceeded.
const CursorCacheCap = 32

// CursorState is the last known position of one remote cursor.
type CursorState struct {
	X, Y     int32
	Z        uint16
	UpdateAt time.Time
}

// CursorTracker is the server's remote-cursor cache: an LRU of at most
// CursorCacheCap entries, keyed by client id, with entries older than
// CursorVisibilityTimeout left out of Visible.
type CursorTracker struct {
	mu    sync.Mutex
	cache *lru.Cache[uint32, CursorState]
}

// NewCursorTracker builds a tracker at CursorCacheCap.
func NewCursorTracker() *CursorTracker {
	c, err := lru.New[uint32, CursorState](CursorCacheCap)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// CursorCacheCap never is.
		panic(err)
	}
	return &CursorTracker{cache: c}
}

// Update records a cursor position for clientID at now.
func (t *CursorTracker) Update(clientID uint32, x, y int32, z uint16, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.Add(clientID, CursorState{X: x, Y: y, Z: z, UpdateAt: now})
}

// Remove drops clientID's cursor, e.g. on disconnect.
func (t *CursorTracker) Remove(clientID uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.Remove(clientID)
}

// Visible returns every tracked cursor whose last update is within
// CursorVisibilityTimeout of now.
func (t *CursorTracker) Visible(now time.Time) map[uint32]CursorState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[uint32]CursorState)
	for _, id := range t.cache.Keys() {
		state, ok := t.cache.Peek(id)
		if !ok {
			continue
		}
		if now.Sub(state.UpdateAt) <= CursorVisibilityTimeout {
			out[id] = state
		}
	}
	return out
}

// DefaultCursorThrottleInterval is the client-side minimum gap between
// two outbound CURSOR_UPDATE sends.
const DefaultCursorThrottleInterval = 50 * time.Millisecond

// CursorThrottler coalesces rapid local cursor movement into at most
// one outbound send per interval, always carrying the latest position
// forward rather than queueing every intermediate one.
type CursorThrottler struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	pending  *CursorState
}

// NewCursorThrottler builds a throttler at interval; a non-positive
// interval falls back to DefaultCursorThrottleInterval.
func NewCursorThrottler(interval time.Duration) *CursorThrottler {
	if interval <= 0 {
		interval = DefaultCursorThrottleInterval
	}
	return &CursorThrottler{interval: interval}
}

// Update records a new local cursor position at now and reports the
// state to send immediately, if the interval has elapsed since the
// last send; otherwise it is buffered as pending and Update returns
// ok=false.
func (c *CursorThrottler) Update(x, y int32, z uint16, now time.Time) (state CursorState, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state = CursorState{X: x, Y: y, Z: z, UpdateAt: now}
	if c.last.IsZero() || now.Sub(c.last) >= c.interval {
		c.last = now
		c.pending = nil
		return state, true
	}
	c.pending = &state
	return state, false
}

// Flush forces exactly one pending send, if Update buffered one since
// the last flush or interval-crossing send; it is a no-op otherwise.
func (c *CursorThrottler) Flush(now time.Time) (state CursorState, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return CursorState{}, false
	}
	state = *c.pending
	c.pending = nil
	c.last = now
	return state, true
}
