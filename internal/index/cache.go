package index

import (
	"sync"

	"briefsmith/internal/logging"
)

// Cache holds the process-wide loaded index handle so queries within one
// process do not re-read the artifacts from disk. The handle itself is
// immutable; the cache only swaps which generation is current. Rebuilds of
// the on-disk artifacts must be externally serialized; readers keep the
// previous generation until Invalidate is called.
type Cache struct {
	mu     sync.Mutex
	handle *Handle
	loader func() (*Handle, error)
}

// NewCache creates a cache around a loader. The loader is injectable so
// tests can substitute a fake index.
func NewCache(loader func() (*Handle, error)) *Cache {
	return &Cache{loader: loader}
}

// GetOrLoad returns the cached handle, loading it on first use.
func (c *Cache) GetOrLoad() (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil {
		return c.handle, nil
	}

	h, err := c.loader()
	if err != nil {
		return nil, err
	}
	c.handle = h
	logging.IndexDebug("Index handle cached (%d entries)", h.Len())
	return h, nil
}

// Invalidate drops the cached handle so the next GetOrLoad reloads from
// disk. Called after a rebuild or when the corpus watcher sees a change.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.handle = nil
	c.mu.Unlock()
	logging.IndexDebug("Index handle invalidated")
}

// Replace installs a freshly built handle, e.g. right after Ensure.
func (c *Cache) Replace(h *Handle) {
	c.mu.Lock()
	c.handle = h
	c.mu.Unlock()
}
