package cache

import (
	"sync"
	"time"

	"github.com/rmax-ai/bookgraph/pkg/recommend"
)

// DefaultMaxSize is the default capacity of a RecommendationCache.
const DefaultMaxSize = 20

// Entry is one cached recommendation batch.
type Entry struct {
	Recommendations []recommend.Recommendation
	Timestamp       time.Time
	GraphHash       string
}

// RecommendationCache is a size-bounded in-memory cache. Inserting a new key
// at capacity evicts the entry with the oldest timestamp. It never sweeps
// expired entries; callers check IsExpired before trusting a hit.
type RecommendationCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]Entry
	now     func() time.Time
}

// NewRecommendationCache creates a cache holding at most maxSize entries.
// maxSize <= 0 means DefaultMaxSize.
func NewRecommendationCache(maxSize int) *RecommendationCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &RecommendationCache{
		maxSize: maxSize,
		entries: make(map[string]Entry, maxSize),
		now:     time.Now,
	}
}

// WithClock replaces the time source. It is meant for tests.
func (c *RecommendationCache) WithClock(now func() time.Time) *RecommendationCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Get returns the entry stored under key, expired or not.
func (c *RecommendationCache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	e.Recommendations = append([]recommend.Recommendation(nil), e.Recommendations...)
	return e, true
}

// Set stores a batch under key with the current time.
func (c *RecommendationCache) Set(key string, recs []recommend.Recommendation, graphHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = Entry{
		Recommendations: append([]recommend.Recommendation(nil), recs...),
		Timestamp:       c.now(),
		GraphHash:       graphHash,
	}
}

func (c *RecommendationCache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.Timestamp.Before(oldest) {
			oldestKey, oldest, found = k, e.Timestamp, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		Evictions.Inc()
	}
}

// Delete removes key.
func (c *RecommendationCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *RecommendationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry, c.maxSize)
}

// Len returns the number of entries.
func (c *RecommendationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// IsExpired reports whether now - entry.Timestamp > ttl. An entry exactly
// ttl old is not expired.
func (c *RecommendationCache) IsExpired(entry Entry, ttl time.Duration) bool {
	c.mu.Lock()
	now := c.now()
	c.mu.Unlock()
	return now.Sub(entry.Timestamp) > ttl
}
