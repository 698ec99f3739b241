package oracle

import (
	"container/list"
	"sync"
)

// DefaultCacheSize bounds a Cache created with a non-positive size.
const DefaultCacheSize = 4096

// Cache memoizes oracle answers for identical string pairs. It is owned by
// the caller (one per run or per consumer), bounded in size, and evicts the
// oldest entry first. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[Key]*list.Element
	hits    int
	misses  int
}

// Key identifies a cached answer. Parts are kept separate so no choice of
// label or description text can collide with another pair.
type Key struct {
	Op string
	A  string
	B  string
}

type cacheEntry struct {
	key   Key
	value any
}

// NewCache creates a cache holding at most size entries.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		max:     size,
		order:   list.New(),
		entries: make(map[Key]*list.Element),
	}
}

func (c *Cache) Get(key Key) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return el.Value.(*cacheEntry).value, true
}

func (c *Cache) Put(key Key, value any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		return
	}
	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, value: value})
	for c.order.Len() > c.max {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached pairs.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int) {
	if c == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// symmetricKey orders a and b so (a, b) and (b, a) share an entry.
func symmetricKey(op, a, b string) Key {
	if b < a {
		a, b = b, a
	}
	return Key{Op: op, A: a, B: b}
}

func orderedKey(op, a, b string) Key {
	return Key{Op: op, A: a, B: b}
}
