// ABOUTME: Thread-safe TTL cache of recently seen message ids.
// ABOUTME: Terminates at-least-once redelivery before it reaches a room's message log.

package dedupe

import (
	"sync"
	"time"
)

// Cache remembers message ids for a bounded window so that transports with
// at-least-once delivery never produce duplicate entries downstream. Entries
// expire after the TTL; when the cache is full the oldest id is evicted.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	order   []string // ids in insertion order, oldest first
	ttl     time.Duration
	maxSize int
}

// New creates a dedupe cache with the given TTL and maximum size.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Seen reports whether the id was marked within the TTL window.
func (c *Cache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.seen[id]
	return ok && time.Since(at) < c.ttl
}

// SeenOrMark atomically checks the id and marks it if new. It returns true
// when the id was already seen (a duplicate), false when it is new and now
// marked. The single critical section avoids a check-then-mark race between
// concurrent redeliveries of the same id.
func (c *Cache) SeenOrMark(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if at, ok := c.seen[id]; ok && time.Since(at) < c.ttl {
		return true
	}
	c.mark(id)
	return false
}

// Mark records an id without checking it first.
func (c *Cache) Mark(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mark(id)
}

// mark must be called with mu held.
func (c *Cache) mark(id string) {
	now := time.Now()

	if _, exists := c.seen[id]; exists {
		c.seen[id] = now
		return
	}

	for len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	c.seen[id] = now
	c.order = append(c.order, id)
}

// evictOldest drops entries from the front of the insertion order until it
// removes one that is still live in the map. Must be called with mu held.
func (c *Cache) evictOldest() {
	for len(c.order) > 0 {
		id := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.seen[id]; ok {
			delete(c.seen, id)
			return
		}
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
