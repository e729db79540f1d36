package transcript

import "sync"

type cacheEntry struct {
	raw        string
	target     int
	compressed string
}

// Cache memoizes Compress per lesson for the lifetime of the process. An
// entry is reused only when the raw transcript and target match.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Compress returns the compressed form of raw, computing it at most once
// per lesson while raw stays the same.
func (c *Cache) Compress(lessonID, raw string, target int) string {
	if c == nil || lessonID == "" {
		return Compress(raw, target)
	}

	c.mu.RLock()
	entry, ok := c.entries[lessonID]
	c.mu.RUnlock()
	if ok && entry.target == target && entry.raw == raw {
		return entry.compressed
	}

	compressed := Compress(raw, target)

	c.mu.Lock()
	c.entries[lessonID] = cacheEntry{raw: raw, target: target, compressed: compressed}
	c.mu.Unlock()

	return compressed
}

// Len returns the number of cached lessons.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
