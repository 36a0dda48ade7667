package cache

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/freewebtopdf/uerename/internal/domain"
)

// node represents a node in the doubly-linked list
type node struct {
	key      string
	value    *domain.ProjectMetadata
	storedAt time.Time
	prev     *node
	next     *node
}

// LRUCache implements domain.MetadataCache using LRU eviction, keyed by project root
type LRUCache struct {
	maxSize int
	size    int
	ttl     time.Duration

	// Doubly-linked list for LRU ordering
	head *node
	tail *node

	// HashMap for O(1) lookups
	cache map[string]*node

	mutex sync.RWMutex

	hits   int64
	misses int64

	now func() time.Time
}

// NewLRUCache creates a cache holding at most maxSize projects. Entries older
// than ttl are treated as misses; ttl <= 0 disables expiry.
func NewLRUCache(maxSize int, ttl time.Duration) *LRUCache {
	if maxSize <= 0 {
		maxSize = 256
	}

	// Create dummy head and tail nodes for easier list manipulation
	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head

	return &LRUCache{
		maxSize: maxSize,
		ttl:     ttl,
		head:    head,
		tail:    tail,
		cache:   make(map[string]*node),
		now:     time.Now,
	}
}

func cacheKey(root string) string {
	return filepath.Clean(root)
}

// Get returns a copy of the cached metadata for root
func (c *LRUCache) Get(root string) (*domain.ProjectMetadata, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := cacheKey(root)
	found, exists := c.cache[key]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(found.storedAt) > c.ttl {
		c.removeNode(found)
		delete(c.cache, key)
		c.size--
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	c.moveToFront(found)
	atomic.AddInt64(&c.hits, 1)

	// Callers may not mutate the cached value
	return found.value.Clone(), true
}

// Set adds or updates the metadata for root
func (c *LRUCache) Set(root string, meta *domain.ProjectMetadata) {
	if meta == nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := cacheKey(root)
	if existing, exists := c.cache[key]; exists {
		existing.value = meta.Clone()
		existing.storedAt = c.now()
		c.moveToFront(existing)
		return
	}

	newNode := &node{
		key:      key,
		value:    meta.Clone(),
		storedAt: c.now(),
	}
	c.addToFront(newNode)
	c.cache[key] = newNode
	c.size++

	if c.size > c.maxSize {
		c.evictLRU()
	}
}

// Invalidate removes a specific root from the cache
func (c *LRUCache) Invalidate(root string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := cacheKey(root)
	if n, exists := c.cache[key]; exists {
		c.removeNode(n)
		delete(c.cache, key)
		c.size--
	}
}

// Clear removes all entries from the cache
func (c *LRUCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.head.next = c.tail
	c.tail.prev = c.head
	c.cache = make(map[string]*node)
	c.size = 0

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats returns current cache statistics
func (c *LRUCache) Stats() domain.CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses

	var hitRatio float64
	if total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return domain.CacheStats{
		Hits:     hits,
		Misses:   misses,
		Size:     c.size,
		MaxSize:  c.maxSize,
		HitRatio: hitRatio,
	}
}

// HealthCheck performs a health check on the cache
func (c *LRUCache) HealthCheck(ctx context.Context) domain.HealthStatus {
	stats := c.Stats()

	status := domain.HealthStatusHealthy
	message := "Cache is operating normally"
	details := map[string]any{
		"size":      stats.Size,
		"max_size":  stats.MaxSize,
		"hit_ratio": stats.HitRatio,
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"ttl":       c.ttl.String(),
	}

	if stats.Size >= int(float64(stats.MaxSize)*0.9) {
		status = domain.HealthStatusDegraded
		message = "Cache is near capacity"
		details["warning"] = "Cache utilization above 90%"
	}

	return domain.HealthStatus{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// moveToFront moves a node to the front of the list (most recently used)
func (c *LRUCache) moveToFront(n *node) {
	c.removeNode(n)
	c.addToFront(n)
}

// addToFront adds a node to the front of the list
func (c *LRUCache) addToFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

// removeNode removes a node from the list
func (c *LRUCache) removeNode(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

// evictLRU removes the least recently used item from the cache
func (c *LRUCache) evictLRU() {
	if c.tail.prev == c.head {
		return
	}

	lru := c.tail.prev
	c.removeNode(lru)
	delete(c.cache, lru.key)
	c.size--
}
