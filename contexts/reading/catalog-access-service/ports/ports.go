package ports

import (
	"context"
	"time"

	"inkwell/contexts/reading/catalog-access-service/domain/entities"
)

// RatingSummary is the aggregate read off rating rows for one novel.
type RatingSummary struct {
	Sum   int64
	Count int
}

// NovelRepository is the source-of-truth read surface the aggregate loader
// assembles views from. Every call is a blocking store round-trip.
type NovelRepository interface {
	GetNovel(ctx context.Context, novelID string) (entities.Novel, error)
	ListVolumes(ctx context.Context, novelID string) ([]entities.Volume, error)
	ListChapters(ctx context.Context, novelID string) ([]entities.Chapter, error)
	ListGrants(ctx context.Context, novelID string, userID string) ([]entities.UnlockGrant, error)
	GetRatingSummary(ctx context.Context, novelID string) (RatingSummary, error)
	GetUserRating(ctx context.Context, novelID string, userID string) (int, bool, error)
	CountBookmarks(ctx context.Context, novelID string) (int, error)
	ListCategories(ctx context.Context, novelID string) ([]string, error)
	ListTags(ctx context.Context, novelID string) ([]string, error)
}

// ChapterView is one chapter inside an assembled novel view, with the
// viewer-derived unlock flag resolved at fetch time.
type ChapterView struct {
	Chapter    entities.Chapter
	IsUnlocked bool
}

// NovelView is the denormalized aggregate the loader publishes through the
// cache. ViewerID records which viewer the overlay fields (IsUnlocked,
// UserRating, HasTranslatorAccess) were assembled for.
type NovelView struct {
	Novel               entities.Novel
	Volumes             []entities.Volume
	Chapters            []ChapterView
	Categories          []string
	Tags                []string
	Rating              float64
	RatingCount         int
	UserRating          int
	BookmarkCount       int
	HasTranslatorAccess bool
	ViewerID            string
	FetchedAt           time.Time
}

// Grants returns the unlock refs baked into the view, for classifier input.
func (v NovelView) Grants() map[entities.ChapterRef]struct{} {
	unlocked := make(map[entities.ChapterRef]struct{})
	for _, chapter := range v.Chapters {
		if chapter.IsUnlocked {
			unlocked[chapter.Chapter.Ref()] = struct{}{}
		}
	}
	return unlocked
}

// CacheMetadata is the side record kept next to each cache entry.
type CacheMetadata struct {
	LastFetchedAt time.Time
	LastVisitedAt time.Time
	VisitCount    int64
}

// ViewCache stores assembled novel views with TTL plus a metadata record.
// Touch increments the visit counter on every call; the adapter rewrites the
// visited timestamp at most once per its configured interval to bound write
// amplification.
type ViewCache interface {
	Get(ctx context.Context, novelID string, now time.Time) (NovelView, CacheMetadata, bool, error)
	Set(ctx context.Context, novelID string, view NovelView, expiresAt time.Time) error
	SetMetadata(ctx context.Context, novelID string, meta CacheMetadata) error
	Touch(ctx context.Context, novelID string, now time.Time) error
	Invalidate(ctx context.Context, novelID string) error
}

// ViewCacheSweeper is the janitor-side eviction surface.
type ViewCacheSweeper interface {
	EvictExpired(ctx context.Context, now time.Time) (int, error)
}

// Clock supplies the trusted server instant for publish/countdown decisions.
type Clock interface {
	Now() time.Time
}
