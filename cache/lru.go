package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a bounded cache for values that are cheap to rebuild, such as scan
// plans for ad-hoc result shapes.
type LRU[K comparable, V any] struct {
	cache *lru.Cache[K, V]
}

// NewLRU creates a bounded cache. onEvict may be nil.
func NewLRU[K comparable, V any](size int, onEvict func(K, V)) (*LRU[K, V], error) {
	if size <= 0 {
		size = 256
	}

	var (
		c   *lru.Cache[K, V]
		err error
	)
	if onEvict != nil {
		c, err = lru.NewWithEvict(size, onEvict)
	} else {
		c, err = lru.New[K, V](size)
	}
	if err != nil {
		return nil, err
	}

	return &LRU[K, V]{cache: c}, nil
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	return c.cache.Get(key)
}

// GetOrAdd returns the cached value or builds and stores a new one.
// Concurrent misses may build twice; the last writer wins.
func (c *LRU[K, V]) GetOrAdd(key K, build func() V) V {
	if v, ok := c.cache.Get(key); ok {
		return v
	}
	v := build()
	c.cache.Add(key, v)
	return v
}

func (c *LRU[K, V]) Len() int {
	return c.cache.Len()
}

// Purge removes every entry, triggering the eviction callback for each.
func (c *LRU[K, V]) Purge() {
	c.cache.Purge()
}
