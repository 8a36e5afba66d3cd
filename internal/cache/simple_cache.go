package cache

import (
	"sync"
	"time"
)

// entry stores a cached value, its absolute expiration and its tags.
type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiration
	tags      []string
}

func (e entry[V]) expired(at time.Time) bool {
	return !e.expiresAt.IsZero() && at.After(e.expiresAt)
}

// SimpleCache is a map-backed cache with optional concurrency safety.
// Expired entries are dropped lazily or via PurgeExpired. A reverse index
// from tag to keys makes Invalidate proportional to the affected entries.
type SimpleCache[K comparable, V any] struct {
	// nil mu means the cache is not goroutine-safe.
	mu *sync.RWMutex

	items  map[K]entry[V]
	byTag  map[string]map[K]struct{}
	onDrop func(key K)
}

// Options controls construction of a SimpleCache.
type Options struct {
	// ConcurrencySafe controls whether operations are guarded by a RWMutex.
	ConcurrencySafe bool
}

// NewSimpleCache constructs a new SimpleCache with the given options.
func NewSimpleCache[K comparable, V any](opts Options) *SimpleCache[K, V] {
	var mu *sync.RWMutex
	if opts.ConcurrencySafe {
		mu = &sync.RWMutex{}
	}
	return &SimpleCache[K, V]{
		mu:    mu,
		items: make(map[K]entry[V]),
		byTag: make(map[string]map[K]struct{}),
	}
}

// OnDrop registers fn to be called with every key removed by Invalidate.
// It must be set before the cache is shared.
func (c *SimpleCache[K, V]) OnDrop(fn func(key K)) {
	c.onDrop = fn
}

func (c *SimpleCache[K, V]) lockR() func() {
	if c.mu == nil {
		return func() {}
	}
	c.mu.RLock()
	return c.mu.RUnlock
}

func (c *SimpleCache[K, V]) lockW() func() {
	if c.mu == nil {
		return func() {}
	}
	c.mu.Lock()
	return c.mu.Unlock
}

// now is a small indirection to allow test stubbing.
var now = time.Now

// Get implements Cache.Get.
func (c *SimpleCache[K, V]) Get(key K) (V, bool) {
	unlock := c.lockR()
	defer unlock()

	var zero V
	e, ok := c.items[key]
	if !ok || e.expired(now()) {
		return zero, false
	}
	return e.value, true
}

// Set implements Cache.Set.
func (c *SimpleCache[K, V]) Set(key K, value V, ttl time.Duration, tags ...string) {
	unlock := c.lockW()
	defer unlock()

	var exp time.Time
	if ttl > 0 {
		exp = now().Add(ttl)
	}
	if old, ok := c.items[key]; ok {
		c.untag(key, old.tags)
	}
	c.items[key] = entry[V]{
		value:     value,
		expiresAt: exp,
		tags:      append([]string(nil), tags...),
	}
	for _, tag := range tags {
		keys, ok := c.byTag[tag]
		if !ok {
			keys = make(map[K]struct{})
			c.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// Delete implements Cache.Delete.
func (c *SimpleCache[K, V]) Delete(key K) {
	unlock := c.lockW()
	defer unlock()
	c.remove(key)
}

// Has implements Cache.Has.
func (c *SimpleCache[K, V]) Has(key K) bool {
	unlock := c.lockR()
	defer unlock()
	e, ok := c.items[key]
	return ok && !e.expired(now())
}

// Len implements Cache.Len. It counts only non-expired entries.
func (c *SimpleCache[K, V]) Len() int {
	unlock := c.lockR()
	defer unlock()
	at := now()
	count := 0
	for _, e := range c.items {
		if !e.expired(at) {
			count++
		}
	}
	return count
}

// Clear implements Cache.Clear.
func (c *SimpleCache[K, V]) Clear() {
	unlock := c.lockW()
	defer unlock()
	c.items = make(map[K]entry[V])
	c.byTag = make(map[string]map[K]struct{})
}

// PurgeExpired implements Cache.PurgeExpired.
func (c *SimpleCache[K, V]) PurgeExpired() {
	unlock := c.lockW()
	defer unlock()
	if len(c.items) == 0 {
		return
	}
	at := now()
	for k, e := range c.items {
		if e.expired(at) {
			c.remove(k)
		}
	}
}

// Invalidate implements Cache.Invalidate.
func (c *SimpleCache[K, V]) Invalidate(tags ...string) int {
	unlock := c.lockW()
	dropped := make([]K, 0)
	for _, tag := range tags {
		for k := range c.byTag[tag] {
			dropped = append(dropped, k)
			c.remove(k)
		}
	}
	unlock()

	if c.onDrop != nil {
		for _, k := range dropped {
			c.onDrop(k)
		}
	}
	return len(dropped)
}

// remove deletes key and its tag index entries. Caller holds the write lock.
func (c *SimpleCache[K, V]) remove(key K) {
	e, ok := c.items[key]
	if !ok {
		return
	}
	c.untag(key, e.tags)
	delete(c.items, key)
}

func (c *SimpleCache[K, V]) untag(key K, tags []string) {
	for _, tag := range tags {
		keys := c.byTag[tag]
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byTag, tag)
		}
	}
}

// Ensure SimpleCache implements Cache at compile time.
var _ Cache[any, any] = (*SimpleCache[any, any])(nil)
