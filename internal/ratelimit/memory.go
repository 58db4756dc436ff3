package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Expired windows are dropped when there are more counters than this
const memoryPurgeThreshold = 10_000

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter keeps counters in process memory
// Counters are not shared between app instances
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (c *MemoryCounter) Hit(_ context.Context, key string, d time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.windows) > memoryPurgeThreshold {
		c.purge(now)
	}

	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(d)}
		c.windows[key] = w
	}
	w.count++

	return w.count, nil
}

func (c *MemoryCounter) Undo(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[key]
	if ok && c.now().Before(w.resetAt) && w.count > 0 {
		w.count--
	}
	return nil
}

func (c *MemoryCounter) purge(now time.Time) {
	for key, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, key)
		}
	}
}
