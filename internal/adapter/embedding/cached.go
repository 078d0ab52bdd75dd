package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"resumerag/internal/port"
)

var _ port.Embedder = (*CachedEmbedder)(nil)

// CachedEmbedder memoizes vectors per input text in front of another
// embedder. Entries expire after ttl and the least recently used entry is
// evicted once maxSize is reached.
type CachedEmbedder struct {
	inner port.Embedder

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	gen     uint64
	now     func() time.Time

	hits, misses uint64
}

type cacheEntry struct {
	vector    []float32
	timestamp time.Time
	gen       uint64
}

func NewCachedEmbedder(inner port.Embedder, maxSize int, ttl time.Duration) *CachedEmbedder {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedEmbedder{
		inner:   inner,
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(model, text string) string {
	hash := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(hash[:16])
}

// Embed serves cached vectors and forwards only the misses, in one call.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingAt []int

	model := c.inner.ModelName()
	c.mu.Lock()
	for i, text := range texts {
		if v, ok := c.get(cacheKey(model, text)); ok {
			out[i] = v
			c.hits++
			continue
		}
		c.misses++
		missing = append(missing, text)
		missingAt = append(missingAt, i)
	}
	gen := c.gen
	c.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missing))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for j, v := range vecs {
		out[missingAt[j]] = v
		if gen == c.gen {
			c.put(cacheKey(model, missing[j]), v)
		}
	}
	return out, nil
}

func (c *CachedEmbedder) get(key string) ([]float32, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.timestamp) > c.ttl || entry.gen != c.gen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}
	c.moveToEnd(key)
	return entry.vector, true
}

func (c *CachedEmbedder) put(key string, v []float32) {
	if _, exists := c.entries[key]; exists {
		c.moveToEnd(key)
	} else {
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{vector: v, timestamp: c.now(), gen: c.gen}
}

// Invalidate drops every entry. Results of Embed calls already in flight
// are not cached.
func (c *CachedEmbedder) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.gen++
}

func (c *CachedEmbedder) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Counters returns cache hits and misses since construction.
func (c *CachedEmbedder) Counters() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

func (c *CachedEmbedder) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *CachedEmbedder) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *CachedEmbedder) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
