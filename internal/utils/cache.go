package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheItem[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a bounded LRU whose entries also expire after a fixed TTL.
type TTLCache[V any] struct {
	lruCache *lru.Cache[string, cacheItem[V]]
	ttl      time.Duration
}

func NewTTLCache[V any](size int, ttl time.Duration) *TTLCache[V] {
	if size <= 0 {
		size = 500
	}
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &TTLCache[V]{lruCache: l, ttl: ttl}
}

func (c *TTLCache[V]) Set(key string, value V) {
	c.lruCache.Add(key, cacheItem[V]{value: value, expiresAt: time.Now().Add(c.ttl)})
}

// Get returns the cached value, or false if it is missing or expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	item, ok := c.lruCache.Get(key)
	if !ok {
		return zero, false
	}
	if time.Now().After(item.expiresAt) {
		c.lruCache.Remove(key)
		return zero, false
	}
	return item.value, true
}

func (c *TTLCache[V]) Delete(key string) {
	c.lruCache.Remove(key)
}

func (c *TTLCache[V]) Purge() {
	c.lruCache.Purge()
}
