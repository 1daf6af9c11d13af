// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package provider

import (
	"sync"

	"github.com/tomtom215/tilegate/internal/cache"
	"github.com/tomtom215/tilegate/internal/logging"
	"github.com/tomtom215/tilegate/internal/metrics"
	"github.com/tomtom215/tilegate/internal/template"
)

// DefaultBucketCapacity bounds the number of outer owner+template buckets.
const DefaultBucketCapacity = 2000

// bucket holds every live parameterization of one named map.
type bucket struct {
	mu        sync.Mutex
	providers map[string]*MapConfigProvider
}

func newBucket() *bucket {
	return &bucket{providers: make(map[string]*MapConfigProvider)}
}

// Cache is the in-process map-config provider cache. The outer level is an
// LRU over owner+template buckets; inside a retained bucket every distinct
// parameterization keeps its own provider, and inner growth is unbounded (a
// known tradeoff, the bucket count is what the LRU bounds).
//
// Invalidation is wholesale: a template mutation drops the entire outer
// bucket, all parameterizations included. That is deliberately coarser than
// key-level invalidation; narrowing it risks serving stale parameterized
// instances.
type Cache struct {
	store   *template.Store
	buckets *cache.LRU[*bucket]
}

// NewCache creates a provider cache over the given template store.
// capacity <= 0 selects DefaultBucketCapacity.
func NewCache(store *template.Store, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultBucketCapacity
	}
	return &Cache{
		store:   store,
		buckets: cache.NewLRU[*bucket](capacity),
	}
}

// BindStore subscribes the cache to the store's update and delete events so
// that mutated templates are invalidated synchronously, before the mutation
// call returns to its caller.
func (c *Cache) BindStore() {
	invalidate := func(owner, name string, _ *template.Template) {
		c.Invalidate(owner, name)
	}
	c.store.Subscribe(template.EventUpdate, invalidate)
	c.store.Subscribe(template.EventDelete, invalidate)
}

// Get returns the provider for the exact parameterization, constructing and
// caching one if absent. The call itself never fails: key derivation errors
// fall back to an uncached provider, and resolution errors surface later
// from the provider's own MapConfig call.
//
// Two concurrent calls for a key not yet cached may briefly construct two
// equivalent providers; the bucket map then keeps one of them. Providers are
// pure functions of their key, so this race is benign and cheaper than
// serializing construction.
func (c *Cache) Get(owner, templateID string, req Request) *MapConfigProvider {
	key, err := innerKey(req)
	if err != nil {
		// Params that cannot be serialized cannot be cache keys. Hand out an
		// uncached provider and let resolution report the real problem.
		logging.Warn().
			Str("owner", owner).
			Str("template", templateID).
			Err(err).
			Msg("provider cache key derivation failed")
		return NewMapConfigProvider(c.store, owner, templateID, req)
	}

	b := c.buckets.GetOrAdd(outerKey(owner, templateID), newBucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.providers[key]; ok {
		metrics.ProviderCacheHits.Inc()
		return p
	}
	metrics.ProviderCacheMisses.Inc()

	p := NewMapConfigProvider(c.store, owner, templateID, req)
	b.providers[key] = p
	return p
}

// Invalidate drops the entire outer bucket for (owner, templateID).
func (c *Cache) Invalidate(owner, templateID string) {
	if c.buckets.Remove(outerKey(owner, templateID)) {
		metrics.ProviderCacheInvalidations.Inc()
		logging.Debug().
			Str("owner", owner).
			Str("template", templateID).
			Msg("provider cache bucket invalidated")
	}
}

// Len returns the number of live outer buckets.
func (c *Cache) Len() int {
	return c.buckets.Len()
}
