// ABOUTME: Thread-safe TTL cache for suppressing webhook redeliveries.
// ABOUTME: WhatsApp redelivers events on slow acks; seen message IDs are dropped.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores the timestamp and list element for a cached message ID.
type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache tracks recently seen webhook message IDs so redelivered events are
// processed once. It is TTL-based and size-limited; a doubly-linked list
// maintains insertion order for O(1) eviction.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // message IDs in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache with the given TTL and maximum size.
// A background goroutine periodically removes expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// CheckAndMark atomically checks whether a message ID has been seen and marks
// it if not. Returns true if the ID was already seen (redelivery), false if
// it is new and now marked.
func (c *Cache) CheckAndMark(messageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[messageID]; ok && time.Since(e.seenAt) < c.ttl {
		return true
	}

	c.markLocked(messageID)
	return false
}

// Len returns the number of tracked message IDs, expired entries included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// markLocked records a message ID. Must be called with mu held.
func (c *Cache) markLocked(messageID string) {
	now := time.Now()

	if e, exists := c.seen[messageID]; exists {
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldestLocked()
	}

	elem := c.order.PushBack(messageID)
	c.seen[messageID] = &entry{seenAt: now, element: elem}
}

// evictOldestLocked removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, id)
}

// cleanupLoop periodically removes expired entries until Close is called.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

// removeExpired drops all entries older than the TTL.
func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, e := range c.seen {
		if now.Sub(e.seenAt) > c.ttl {
			c.order.Remove(e.element)
			delete(c.seen, id)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
