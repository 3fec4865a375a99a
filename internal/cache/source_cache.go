package cache

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Loader produces a fresh value for a path together with the raw content it
// was built from.
type Loader[T any] func(path string) (T, []byte, error)

type sourceEntry[T any] struct {
	value    T
	hash     uint64
	modified bool
}

// SourceFileCache holds parsed files keyed by absolute path. A write marks an
// entry modified; the next Get reloads it, and keeps the previous value when
// the reloaded content hashes identically.
type SourceFileCache[T any] struct {
	mu      sync.Mutex
	entries map[string]*sourceEntry[T]
}

// NewSourceFileCache creates an empty cache.
func NewSourceFileCache[T any]() *SourceFileCache[T] {
	return &SourceFileCache[T]{entries: make(map[string]*sourceEntry[T])}
}

// Get returns the cached value, loading it when absent or modified.
func (c *SourceFileCache[T]) Get(path string, load Loader[T]) (T, error) {
	key := key(path)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !e.modified {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	value, content, err := load(key)
	if err != nil {
		var zero T
		return zero, err
	}
	hash := xxhash.Sum64(content)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ok && e.hash == hash {
		e.modified = false
		return e.value, nil
	}
	c.entries[key] = &sourceEntry[T]{value: value, hash: hash}
	return value, nil
}

// Peek returns the cached value without loading.
func (c *SourceFileCache[T]) Peek(path string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key(path)]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Put stores an in-memory value built from content.
func (c *SourceFileCache[T]) Put(path string, value T, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(path)] = &sourceEntry[T]{value: value, hash: xxhash.Sum64(content)}
}

// MarkModified forces the next Get for path to reload.
func (c *SourceFileCache[T]) MarkModified(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key(path)]; ok {
		e.modified = true
	}
}

// Modified reports whether path is marked modified.
func (c *SourceFileCache[T]) Modified(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key(path)]
	return ok && e.modified
}

// Invalidate drops the entry for path.
func (c *SourceFileCache[T]) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(path))
}

// Keys returns the cached paths in sorted order.
func (c *SourceFileCache[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (c *SourceFileCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
