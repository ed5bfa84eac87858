package cache

import (
	"sort"
	"sync"
	"time"
)

// Item represents a cached item with expiration
type Item struct {
	Value      any
	Created    time.Time
	Expiration int64
}

// Expired checks if the cache item has expired
func (item Item) Expired(now time.Time) bool {
	if item.Expiration == 0 {
		return false
	}
	return now.UnixNano() > item.Expiration
}

// Options configures a Cache.
type Options struct {
	// DefaultExpiration applies to Set; zero means items never expire.
	DefaultExpiration time.Duration
	// CleanupInterval is how often expired items are evicted; zero disables the janitor.
	CleanupInterval time.Duration
	// MaxItems bounds the cache; the oldest item is evicted first. Zero means unbounded.
	MaxItems int
	// OnEvicted is called outside the lock for every removed item.
	OnEvicted func(key string, value any)
}

// Cache is a thread-safe in-memory cache with expiration
type Cache struct {
	items     map[string]Item
	mu        sync.RWMutex
	opts      Options
	now       func() time.Time
	stop      chan struct{}
	closeOnce sync.Once
}

type eviction struct {
	key   string
	value any
}

// NewCache creates a cache and starts its janitor when a cleanup interval is set
func NewCache(opts Options) *Cache {
	c := &Cache{
		items: make(map[string]Item),
		opts:  opts,
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		go c.startCleanupTimer()
	}

	return c
}

// Set adds an item to the cache with the default expiration
func (c *Cache) Set(key string, value any) {
	c.SetWithExpiration(key, value, c.opts.DefaultExpiration)
}

// SetWithExpiration adds an item to the cache with a specific expiration time
func (c *Cache) SetWithExpiration(key string, value any, d time.Duration) {
	now := c.now()
	var exp int64
	if d > 0 {
		exp = now.Add(d).UnixNano()
	}

	var evicted []eviction
	c.mu.Lock()
	if _, exists := c.items[key]; !exists && c.opts.MaxItems > 0 && len(c.items) >= c.opts.MaxItems {
		if ev, ok := c.evictOldest(); ok {
			evicted = append(evicted, ev)
		}
	}
	c.items[key] = Item{Value: value, Created: now, Expiration: exp}
	c.mu.Unlock()

	c.notify(evicted)
}

// Get retrieves an unexpired item from the cache
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found || item.Expired(c.now()) {
		return nil, false
	}
	return item.Value, true
}

// Values returns unexpired values ordered by insertion time.
func (c *Cache) Values() []any {
	c.mu.RLock()
	now := c.now()
	live := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		if !item.Expired(now) {
			live = append(live, item)
		}
	}
	c.mu.RUnlock()

	sort.SliceStable(live, func(i, j int) bool { return live[i].Created.Before(live[j].Created) })
	values := make([]any, len(live))
	for i, item := range live {
		values[i] = item.Value
	}
	return values
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	item, found := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()

	if found {
		c.notify([]eviction{{key: key, value: item.Value}})
	}
}

// Flush removes all items from the cache
func (c *Cache) Flush() {
	c.mu.Lock()
	evicted := make([]eviction, 0, len(c.items))
	for k, v := range c.items {
		evicted = append(evicted, eviction{key: k, value: v.Value})
	}
	c.items = make(map[string]Item)
	c.mu.Unlock()

	c.notify(evicted)
}

// Count returns the number of items in the cache (including expired items)
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

// DeleteExpired evicts every expired item now.
func (c *Cache) DeleteExpired() {
	now := c.now().UnixNano()

	var evicted []eviction
	c.mu.Lock()
	for k, v := range c.items {
		if v.Expiration > 0 && now > v.Expiration {
			evicted = append(evicted, eviction{key: k, value: v.Value})
			delete(c.items, k)
		}
	}
	c.mu.Unlock()

	c.notify(evicted)
}

func (c *Cache) startCleanupTimer() {
	ticker := time.NewTicker(c.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stop:
			return
		}
	}
}

// evictOldest removes the item created first. Caller holds the lock.
func (c *Cache) evictOldest() (eviction, bool) {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, v := range c.items {
		if first || v.Created.Before(oldest) {
			oldestKey, oldest, first = k, v.Created, false
		}
	}
	if first {
		return eviction{}, false
	}
	ev := eviction{key: oldestKey, value: c.items[oldestKey].Value}
	delete(c.items, oldestKey)
	return ev, true
}

func (c *Cache) notify(evicted []eviction) {
	if c.opts.OnEvicted == nil {
		return
	}
	for _, ev := range evicted {
		c.opts.OnEvicted(ev.key, ev.value)
	}
}
