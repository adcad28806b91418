package memory

import (
	"context"
	"testing"
	"time"

	"inkwell/contexts/reading/catalog-access-service/domain/entities"
	"inkwell/contexts/reading/catalog-access-service/ports"
)

func seedCacheEntry(t *testing.T, cache *ViewCache, novelID string, now time.Time) {
	t.Helper()
	ctx := context.Background()
	view := ports.NovelView{Novel: entities.Novel{NovelID: novelID}}
	if err := cache.Set(ctx, novelID, view, now.Add(time.Hour)); err != nil {
		t.Fatalf("set cache entry: %v", err)
	}
	if err := cache.SetMetadata(ctx, novelID, ports.CacheMetadata{LastFetchedAt: now, LastVisitedAt: now}); err != nil {
		t.Fatalf("set cache metadata: %v", err)
	}
}

func TestViewCacheTouchThrottlesVisitedTimestamp(t *testing.T) {
	cache := NewViewCache(time.Minute)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedCacheEntry(t, cache, "novel-1", start)

	// Three visits inside the write interval: the counter moves every time,
	// the visited timestamp does not.
	for i := 1; i <= 3; i++ {
		if err := cache.Touch(ctx, "novel-1", start.Add(time.Duration(i)*10*time.Second)); err != nil {
			t.Fatalf("touch %d: %v", i, err)
		}
	}
	_, meta, hit, err := cache.Get(ctx, "novel-1", start.Add(30*time.Second))
	if err != nil || !hit {
		t.Fatalf("expected cache hit, got hit=%v err=%v", hit, err)
	}
	if meta.VisitCount != 3 {
		t.Fatalf("expected visit count 3, got %d", meta.VisitCount)
	}
	if !meta.LastVisitedAt.Equal(start) {
		t.Fatalf("visited timestamp rewritten inside interval: %s", meta.LastVisitedAt)
	}

	// Crossing the interval boundary rewrites the timestamp once.
	later := start.Add(time.Minute)
	if err := cache.Touch(ctx, "novel-1", later); err != nil {
		t.Fatalf("touch past interval: %v", err)
	}
	_, meta, _, err = cache.Get(ctx, "novel-1", later)
	if err != nil {
		t.Fatalf("get after touch: %v", err)
	}
	if meta.VisitCount != 4 {
		t.Fatalf("expected visit count 4, got %d", meta.VisitCount)
	}
	if !meta.LastVisitedAt.Equal(later) {
		t.Fatalf("visited timestamp not rewritten at interval: %s", meta.LastVisitedAt)
	}

	// The rewrite resets the throttle window.
	if err := cache.Touch(ctx, "novel-1", later.Add(10*time.Second)); err != nil {
		t.Fatalf("touch after rewrite: %v", err)
	}
	_, meta, _, err = cache.Get(ctx, "novel-1", later.Add(10*time.Second))
	if err != nil {
		t.Fatalf("get after throttled touch: %v", err)
	}
	if meta.VisitCount != 5 || !meta.LastVisitedAt.Equal(later) {
		t.Fatalf("throttle window did not reset: count=%d visited=%s", meta.VisitCount, meta.LastVisitedAt)
	}
}

func TestViewCacheTouchMissingEntryIsNoop(t *testing.T) {
	cache := NewViewCache(time.Minute)
	if err := cache.Touch(context.Background(), "novel-ghost", time.Now()); err != nil {
		t.Fatalf("touch on missing entry: %v", err)
	}
}
