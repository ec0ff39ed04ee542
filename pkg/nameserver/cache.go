package nameserver

import (
	"sync"

	"github.com/dnfs-project/dnfs/pkg/containers/lru"
)

// ResolutionCache wraps the fixed-capacity LRU container with the mutex
// the name server guards it with (spec.md §4.2: "a small LRU cache of
// file->SS lookups", capacity 128, strict MRU on Get).
type ResolutionCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewResolutionCache constructs a cache of the given capacity.
func NewResolutionCache(capacity int) *ResolutionCache {
	return &ResolutionCache{cache: lru.New(capacity)}
}

func resolutionKey(owner, filename string) string { return owner + ":" + filename }

// Get returns the cached FileRecord for owner:filename, promoting it to
// most-recently-used.
func (c *ResolutionCache) Get(owner, filename string) (FileRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache.Get(resolutionKey(owner, filename))
	if !ok {
		return FileRecord{}, false
	}
	return v.(FileRecord), true
}

// Put inserts or refreshes a cached resolution.
func (c *ResolutionCache) Put(rec FileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Put(resolutionKey(rec.Owner, rec.Filename), rec)
}

// Invalidate drops a cached resolution, e.g. when recovery changes a
// file's backup id.
func (c *ResolutionCache) Invalidate(owner, filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(resolutionKey(owner, filename))
}
