// Package tiles resolves, caches and fetches rendered NDVI map tiles.
package tiles

import (
	"sync"
	"time"

	"github.com/woozymasta/ndvimap/internal/metrics"
)

// DefaultURLTTL is how long a resolved tile base URL stays usable.
const DefaultURLTTL = 5 * time.Minute

// Entry is a resolved tile base URL for one field.
type Entry struct {
	FieldID   string
	URL       string
	FetchedAt time.Time
}

// URLCache maps field IDs to tile base URLs for a short TTL. Entries are only
// ever overwritten, never invalidated early.
type URLCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
}

// Option configures a URLCache.
type Option func(*URLCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *URLCache) {
		c.now = now
	}
}

// WithTTL overrides DefaultURLTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *URLCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewURLCache creates an empty cache.
func NewURLCache(options ...Option) *URLCache {
	c := &URLCache{
		ttl:     DefaultURLTTL,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Get returns the cached URL while it is younger than the TTL.
func (c *URLCache) Get(fieldID string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[fieldID]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.FetchedAt) >= c.ttl {
		metrics.CacheMisses.WithLabelValues("tile_url").Inc()
		return "", false
	}

	metrics.CacheHits.WithLabelValues("tile_url").Inc()
	return e.URL, true
}

// Set stores url for fieldID stamped with the current time.
func (c *URLCache) Set(fieldID, url string) {
	e := Entry{FieldID: fieldID, URL: url, FetchedAt: c.now()}

	c.mu.Lock()
	c.entries[fieldID] = e
	c.mu.Unlock()
}
