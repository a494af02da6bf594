package googlemaps

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
	"github.com/couchcryptid/crisis-safety-service/internal/observability"
)

// CachedProvider wraps a MapProvider with an in-memory LRU cache for
// nearby-place lookups. Route computations are never cached because
// durations depend on live traffic.
type CachedProvider struct {
	inner   domain.MapProvider
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a map provider.
func NewCachedProvider(inner domain.MapProvider, maxEntries int, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedProvider) FindNearby(ctx context.Context, origin domain.Coordinate, category string, radiusKM float64, limit int) ([]domain.Place, error) {
	// Round the origin to ~100 m so nearby queries share entries.
	key := fmt.Sprintf("%s|%.3f,%.3f|%.1f|%d", category, origin.Lat, origin.Lon, radiusKM, limit)
	if places, ok := c.cache.get(key); ok {
		c.metrics.PlacesCache.WithLabelValues("hit").Inc()
		return places, nil
	}
	c.metrics.PlacesCache.WithLabelValues("miss").Inc()

	places, err := c.inner.FindNearby(ctx, origin, category, radiusKM, limit)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient empty responses can be retried.
	if len(places) > 0 {
		c.cache.put(key, places)
	}
	return places, nil
}

func (c *CachedProvider) ComputeRoutes(ctx context.Context, origin, destination domain.Coordinate, mode string, alternatives bool) ([]domain.Route, error) {
	return c.inner.ComputeRoutes(ctx, origin, destination, mode, alternatives)
}

// lruCache is a simple thread-safe LRU cache for place lists.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.Place
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.Place, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
