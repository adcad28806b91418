package memory

import (
	"context"
	"sync"
	"time"

	"inkwell/contexts/reading/catalog-access-service/ports"
)

type cacheEntry struct {
	view      ports.NovelView
	meta      ports.CacheMetadata
	expiresAt time.Time
}

// ViewCache is the in-process novel view cache. Visit counters increment on
// every Touch; the visited timestamp is rewritten at most once per
// visitWriteInterval to bound metadata write amplification.
type ViewCache struct {
	mu                 sync.RWMutex
	entries            map[string]*cacheEntry
	visitWriteInterval time.Duration
}

func NewViewCache(visitWriteInterval time.Duration) *ViewCache {
	if visitWriteInterval <= 0 {
		visitWriteInterval = time.Minute
	}
	return &ViewCache{
		entries:            make(map[string]*cacheEntry),
		visitWriteInterval: visitWriteInterval,
	}
}

func (c *ViewCache) Get(_ context.Context, novelID string, now time.Time) (ports.NovelView, ports.CacheMetadata, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[novelID]
	if !ok {
		return ports.NovelView{}, ports.CacheMetadata{}, false, nil
	}
	if !entry.expiresAt.After(now) {
		return ports.NovelView{}, ports.CacheMetadata{}, false, nil
	}
	return entry.view, entry.meta, true, nil
}

func (c *ViewCache) Set(_ context.Context, novelID string, view ports.NovelView, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[novelID]
	if !ok {
		entry = &cacheEntry{}
		c.entries[novelID] = entry
	}
	entry.view = view
	entry.expiresAt = expiresAt.UTC()
	return nil
}

func (c *ViewCache) SetMetadata(_ context.Context, novelID string, meta ports.CacheMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[novelID]
	if !ok {
		return nil
	}
	entry.meta = meta
	return nil
}

func (c *ViewCache) Touch(_ context.Context, novelID string, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[novelID]
	if !ok {
		return nil
	}
	entry.meta.VisitCount++
	if now.Sub(entry.meta.LastVisitedAt) >= c.visitWriteInterval {
		entry.meta.LastVisitedAt = now.UTC()
	}
	return nil
}

// Invalidate drops the entry so the next read re-fetches. Last writer wins;
// no coordination with concurrent readers is needed.
func (c *ViewCache) Invalidate(_ context.Context, novelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, novelID)
	return nil
}

func (c *ViewCache) EvictExpired(_ context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for novelID, entry := range c.entries {
		if !entry.expiresAt.After(now) {
			delete(c.entries, novelID)
			evicted++
		}
	}
	return evicted, nil
}
