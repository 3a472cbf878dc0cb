package utils

import (
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a concurrency-safe map used to memoize resolved values
type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// NewCache creates an empty cache
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{items: make(map[K]V)}
}

// Get returns the value stored under key
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

// Set stores value under key, replacing any previous value
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

// Delete removes key
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes every entry
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
}

// Len returns the number of entries
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns the keys in no particular order
func (c *Cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]K, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	return keys
}

type fileEntry[V any] struct {
	value   V
	modTime time.Time
	size    int64
}

// FileCache memoizes values derived from files. An entry is dropped as soon
// as the file's modification time or size changes. Concurrent loads of the
// same path share one call.
type FileCache[V any] struct {
	entries *Cache[string, fileEntry[V]]
	loads   singleflight.Group
}

// NewFileCache creates an empty file cache
func NewFileCache[V any]() *FileCache[V] {
	return &FileCache[V]{entries: NewCache[string, fileEntry[V]]()}
}

// Load returns the cached value for path, calling load when there is none or
// the file changed since it was cached. Errors are not cached.
func (c *FileCache[V]) Load(path string, load func(path string) (V, error)) (V, error) {
	stat, err := os.Stat(path)
	if err != nil {
		c.entries.Delete(path)
		var zero V
		return zero, err
	}
	if e, ok := c.entries.Get(path); ok && e.modTime.Equal(stat.ModTime()) && e.size == stat.Size() {
		return e.value, nil
	}

	v, err, _ := c.loads.Do(path, func() (any, error) {
		value, err := load(path)
		if err != nil {
			return value, err
		}
		c.entries.Set(path, fileEntry[V]{value: value, modTime: stat.ModTime(), size: stat.Size()})
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Invalidate drops the entry for path
func (c *FileCache[V]) Invalidate(path string) {
	c.entries.Delete(path)
}

// Clear drops every entry
func (c *FileCache[V]) Clear() {
	c.entries.Clear()
}

// Len returns the number of cached files
func (c *FileCache[V]) Len() int {
	return c.entries.Len()
}
