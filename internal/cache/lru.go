// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package cache provides the bounded in-process caches used by Tilegate.
package cache

import "sync"

// lruEntry is a node in the doubly-linked access-order list.
type lruEntry[V any] struct {
	key   string
	value V
	prev  *lruEntry[V]
	next  *lruEntry[V]
}

// LRU implements a thread-safe Least Recently Used cache with O(1) Get, Add,
// Remove and eviction. Entries never expire; the only bound is capacity, and
// eviction is strictly access-order. This matches the provider-cache
// requirement of capacity-bounded outer buckets with no TTL semantics.
//
// The structure is a doubly-linked list for ordering plus a hashmap for
// lookups; head.next is the most recently used entry, tail.prev the least.
type LRU[V any] struct {
	mu sync.Mutex

	capacity int
	items    map[string]*lruEntry[V]
	head     *lruEntry[V]
	tail     *lruEntry[V]

	hits      int64
	misses    int64
	evictions int64

	// onEvict, if set, is invoked (outside any caller-visible ordering
	// guarantee but under the cache lock) when an entry is evicted by
	// capacity pressure. Not called on explicit Remove or Purge.
	onEvict func(key string, value V)
}

// NewLRU creates an LRU cache holding at most capacity entries.
func NewLRU[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		capacity = 2000
	}
	c := &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*lruEntry[V], capacity),
		head:     &lruEntry[V]{},
		tail:     &lruEntry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// OnEvict registers a callback invoked when capacity pressure evicts an entry.
func (c *LRU[V]) OnEvict(fn func(key string, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		c.moveToFront(entry)
		c.hits++
		return entry.value, true
	}
	c.misses++
	var zero V
	return zero, false
}

// Add stores a value, replacing any existing entry for key. If the cache is
// at capacity the least recently used entry is evicted.
func (c *LRU[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		entry.value = value
		c.moveToFront(entry)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	entry := &lruEntry[V]{key: key, value: value}
	c.items[key] = entry
	c.pushFront(entry)
}

// GetOrAdd returns the existing value for key, or stores and returns the
// value produced by create. The create function runs under the cache lock,
// so it must be cheap (provider construction is deliberately lazy for this
// reason: the constructor only captures parameters).
func (c *LRU[V]) GetOrAdd(key string, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		c.moveToFront(entry)
		c.hits++
		return entry.value
	}
	c.misses++

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}
	entry := &lruEntry[V]{key: key, value: create()}
	c.items[key] = entry
	c.pushFront(entry)
	return entry.value
}

// Remove deletes an entry. Returns true if the key was present.
func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		c.removeEntry(entry)
		return true
	}
	return false
}

// Len returns the number of entries currently cached.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Purge removes all entries.
func (c *LRU[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*lruEntry[V], c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Stats reports hit/miss/eviction counters since creation.
func (c *LRU[V]) Stats() (hits, misses, evictions int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.evictions
}

// moveToFront moves an existing entry to the front (must hold mu).
func (c *LRU[V]) moveToFront(entry *lruEntry[V]) {
	c.unlink(entry)
	c.pushFront(entry)
}

// pushFront inserts an entry right after head (must hold mu).
func (c *LRU[V]) pushFront(entry *lruEntry[V]) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

// unlink detaches an entry from the list (must hold mu).
func (c *LRU[V]) unlink(entry *lruEntry[V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	entry.prev = nil
	entry.next = nil
}

// removeEntry unlinks and deletes an entry (must hold mu).
func (c *LRU[V]) removeEntry(entry *lruEntry[V]) {
	c.unlink(entry)
	delete(c.items, entry.key)
}

// evictOldest removes the least recently used entry (must hold mu).
func (c *LRU[V]) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(oldest.key, oldest.value)
	}
}
