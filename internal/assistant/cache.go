package assistant

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"devlog/internal/domain"
)

type resultCache[T any] struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	ttl        time.Duration
}

type resultCacheEntry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// newResultCache returns nil when caching is disabled; a nil cache is usable
// and never hits.
func newResultCache[T any](maxEntries int, ttl time.Duration) *resultCache[T] {
	if maxEntries <= 0 || ttl <= 0 {
		return nil
	}

	return &resultCache[T]{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func (c *resultCache[T]) get(key string, now time.Time) (T, bool) {
	var zero T
	if c == nil || key == "" {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	entry, ok := elem.Value.(*resultCacheEntry[T])
	if !ok {
		return zero, false
	}

	if now.After(entry.expiresAt) {
		c.removeElement(elem)

		return zero, false
	}

	c.order.MoveToFront(elem)

	return entry.value, true
}

// contains reports a fresh entry for key without touching recency.
func (c *resultCache[T]) contains(key string, now time.Time) bool {
	if c == nil || key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}

	entry, ok := elem.Value.(*resultCacheEntry[T])

	return ok && !now.After(entry.expiresAt)
}

func (c *resultCache[T]) set(key string, value T, now time.Time) {
	if c == nil || key == "" {
		return
	}

	expiresAt := now.Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry, castOk := elem.Value.(*resultCacheEntry[T])
		if !castOk {
			return
		}

		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	elem := c.order.PushFront(&resultCacheEntry[T]{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	})
	c.entries[key] = elem

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

func (c *resultCache[T]) size() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *resultCache[T]) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		entry, ok := elem.Value.(*resultCacheEntry[T])
		if ok && now.After(entry.expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

func (c *resultCache[T]) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *resultCache[T]) removeElement(elem *list.Element) {
	entry, ok := elem.Value.(*resultCacheEntry[T])
	if !ok {
		return
	}

	delete(c.entries, entry.key)
	c.order.Remove(elem)
}

func contentHash(markdown string) string {
	hash := sha256.Sum256([]byte(markdown))

	return hex.EncodeToString(hash[:])
}

// cacheKey scopes a content hash to the task and the model that produced it.
func cacheKey(task domain.Task, model string, hash string) string {
	if hash == "" {
		return ""
	}

	return string(task) + "|" + model + "|" + hash
}
