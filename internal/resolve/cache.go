package resolve

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/marketdesk/marketdesk/internal/model"
)

// cacheKey fingerprints the resolvable content of an item. Items that
// differ only in ID or publish time share a verdict.
func cacheKey(item model.NewsItem) string {
	sum := sha256.Sum256([]byte(item.Title + "\n" + item.Summary + "\n" + item.URL))
	return hex.EncodeToString(sum[:])
}

// CacheStats is a point-in-time snapshot of verdict cache counters.
type CacheStats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Flushes   uint64
}

// cacheEntry is one cached verdict with its insertion time.
type cacheEntry struct {
	key      string
	verdict  model.Verdict
	storedAt time.Time
}

// verdictCache is a bounded LRU of verdicts keyed by content
// fingerprint. Entries expire after the TTL and the whole cache is
// flushed when the symbol directory swaps, since every verdict is a
// function of the snapshot it was computed against.
type verdictCache struct {
	ttl time.Duration
	max int
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]*list.Element
	order     *list.List // Front is most recently used
	hits      uint64
	misses    uint64
	evictions uint64
	flushes   uint64
}

func newVerdictCache(ttl time.Duration, max int) *verdictCache {
	return &verdictCache{
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		entries: make(map[string]*list.Element, max),
		order:   list.New(),
	}
}

// get returns the cached verdict for key if present and unexpired.
func (c *verdictCache) get(key string) (model.Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return model.Verdict{}, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.misses++
		return model.Verdict{}, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return entry.verdict, true
}

// put stores a verdict, evicting the least recently used entry when
// the cache is full.
func (c *verdictCache) put(key string, v model.Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.verdict = v
		entry.storedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, verdict: v, storedAt: c.now()})
	for len(c.entries) > c.max {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
		c.evictions++
	}
}

// flush drops every entry.
func (c *verdictCache) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element, c.max)
	c.order.Init()
	c.flushes++
}

// stats returns a snapshot of the cache counters.
func (c *verdictCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Flushes:   c.flushes,
	}
}
