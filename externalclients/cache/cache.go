// Package cache is the bounded, per-key-deduplicated cache every external
// client uses, per spec.md §9: "Ad-hoc in-memory caches that leak (no
// eviction) → bounded LRU caches per client (default 10 000 entries), with
// per-key in-flight deduplication." The eviction list is a small stdlib
// container/list ring (no LRU library appears in the retrieval pack); the
// in-flight dedup is golang.org/x/sync/singleflight, already present as an
// indirect teacher dependency and promoted to direct use here.
package cache

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"
)

const DefaultCapacity = 10_000

type entry struct {
	key   string
	value interface{}
}

// LRU is a fixed-capacity, least-recently-used cache safe for concurrent use,
// with a singleflight group so concurrent lookups of the same key only ever
// trigger one underlying fetch.
type LRU struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List

	group singleflight.Group
}

func New(capacity int) *LRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRU{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached value for key, if present, touching its recency.
func (c *LRU) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

// Set inserts or updates key, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *LRU) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{key: key, value: value})
	c.items[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}
}

// GetOrLoad returns the cached value for key, or calls load exactly once
// across all concurrent callers sharing that key (singleflight), caching
// and returning its result.
func (c *LRU) GetOrLoad(key string, load func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	return v, err
}

// Len returns the number of entries currently cached.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
