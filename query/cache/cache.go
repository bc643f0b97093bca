// Package cache provides an LRU statement-result cache for read queries.
// Keys are scoped by table so a write can invalidate everything the table
// contributed, including relation fetches that targeted it. The executor
// only consults the cache when it was configured with one.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Stats reports cache effectiveness.
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
}

// HitRate returns the hit percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Cache is an LRU cache with per-entry TTL.
type Cache struct {
	mu         sync.Mutex
	data       map[string]*node
	maxSize    int
	defaultTTL time.Duration
	head       *node
	tail       *node
	hits       int64
	misses     int64
	evictions  int64
}

// node is a member of the doubly-linked recency list.
type node struct {
	key       string
	value     any
	expiresAt time.Time
	prev      *node
	next      *node
}

// New creates a cache holding at most maxSize entries. A zero defaultTTL
// means entries only leave by eviction or invalidation.
func New(maxSize int, defaultTTL time.Duration) *Cache {
	return &Cache{
		data:       make(map[string]*node),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
	}
}

// Key builds the cache key for one statement: the table name plus a digest
// of the statement text and its arguments.
func Key(table, sql string, args []any) string {
	h := sha256.New()
	h.Write([]byte(sql))
	for _, a := range args {
		fmt.Fprintf(h, "|%v", a)
	}
	return table + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Get retrieves a value. Expired entries are removed on access.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.data[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if !n.expiresAt.IsZero() && time.Now().After(n.expiresAt) {
		c.remove(n)
		c.misses++
		return nil, false
	}
	c.moveToFront(n)
	c.hits++
	return n.value, true
}

// Set stores a value. A zero ttl falls back to the cache default.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if n, ok := c.data[key]; ok {
		n.value = value
		n.expiresAt = expiresAt
		c.moveToFront(n)
		return
	}

	if len(c.data) >= c.maxSize {
		if c.tail != nil {
			c.remove(c.tail)
			c.evictions++
		}
	}

	n := &node{key: key, value: value, expiresAt: expiresAt}
	c.addToFront(n)
	c.data[key] = n
}

// InvalidateTable removes every entry the table contributed.
func (c *Cache) InvalidateTable(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := table + ":"
	var doomed []*node
	for key, n := range c.data {
		if strings.HasPrefix(key, prefix) {
			doomed = append(doomed, n)
		}
	}
	for _, n := range doomed {
		c.remove(n)
	}
}

// Clear drops all entries and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*node)
	c.head = nil
	c.tail = nil
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Size:      len(c.data),
		MaxSize:   c.maxSize,
		Evictions: c.evictions,
	}
}

func (c *Cache) addToFront(n *node) {
	if c.head == nil {
		c.head = n
		c.tail = n
		return
	}
	n.next = c.head
	c.head.prev = n
	c.head = n
}

func (c *Cache) moveToFront(n *node) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.addToFront(n)
}

func (c *Cache) remove(n *node) {
	c.unlink(n)
	delete(c.data, n.key)
}

func (c *Cache) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}
