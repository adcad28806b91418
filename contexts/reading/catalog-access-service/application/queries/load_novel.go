package queries

import (
	"context"
	"log/slog"
	"sync"
	"time"

	application "inkwell/contexts/reading/catalog-access-service/application"
	"inkwell/contexts/reading/catalog-access-service/domain/entities"
	"inkwell/contexts/reading/catalog-access-service/ports"
)

type LoadNovelQuery struct {
	NovelID  string
	ViewerID string
}

type LoadNovelResult struct {
	View     ports.NovelView
	CacheHit bool
}

// LoadNovelUseCase is the aggregate loader: read-through cache with
// stale-while-revalidate semantics over the source-of-truth repository.
// Use by pointer; it tracks in-flight background refreshes.
type LoadNovelUseCase struct {
	Novels          ports.NovelRepository
	Cache           ports.ViewCache
	Clock           ports.Clock
	CacheTTL        time.Duration
	FreshnessWindow time.Duration
	RefreshTimeout  time.Duration
	Logger          *slog.Logger

	mu         sync.Mutex
	refreshing map[string]struct{}
}

// Execute resolves a novel view for a viewer.
// Cache bypass conditions, in order: the viewer owns the novel (owners must
// always see true draft state), the cached status is draft, or the cached
// overlay was assembled for a different viewer. A fresh entry is served as-is;
// a stale-but-unexpired entry is served while a background refresh runs.
func (u *LoadNovelUseCase) Execute(ctx context.Context, query LoadNovelQuery) (LoadNovelResult, error) {
	logger := application.ResolveLogger(u.Logger)
	now := u.now()

	view, meta, hit, err := u.Cache.Get(ctx, query.NovelID, now)
	if err != nil {
		return LoadNovelResult{}, err
	}
	if hit && !u.bypassCache(view, query.ViewerID) {
		u.recordVisit(ctx, query.NovelID, now, logger)
		if now.Sub(meta.LastFetchedAt) > u.freshnessWindow() {
			u.revalidate(query, logger)
		}
		return LoadNovelResult{View: view, CacheHit: true}, nil
	}

	fresh, err := u.fetch(ctx, query.NovelID, query.ViewerID, now)
	if err != nil {
		logger.Error("novel aggregate fetch failed",
			"event", "load_novel_fetch_failed",
			"module", "reading/catalog-access-service",
			"layer", "application",
			"novel_id", query.NovelID,
			"error", err.Error(),
		)
		return LoadNovelResult{}, err
	}

	u.publish(ctx, query.NovelID, fresh, ports.CacheMetadata{
		LastFetchedAt: now,
		LastVisitedAt: now,
		VisitCount:    meta.VisitCount + 1,
	}, now, logger)
	return LoadNovelResult{View: fresh}, nil
}

func (u *LoadNovelUseCase) bypassCache(view ports.NovelView, viewerID string) bool {
	if view.Novel.IsOwnedBy(viewerID) {
		return true
	}
	if view.Novel.IsDraft() {
		return true
	}
	return view.ViewerID != viewerID
}

// fetch assembles the denormalized view from the source of truth. Any failure
// propagates; an empty view is never served silently.
func (u *LoadNovelUseCase) fetch(ctx context.Context, novelID, viewerID string, now time.Time) (ports.NovelView, error) {
	novel, err := u.Novels.GetNovel(ctx, novelID)
	if err != nil {
		return ports.NovelView{}, err
	}
	volumes, err := u.Novels.ListVolumes(ctx, novelID)
	if err != nil {
		return ports.NovelView{}, err
	}
	chapters, err := u.Novels.ListChapters(ctx, novelID)
	if err != nil {
		return ports.NovelView{}, err
	}

	var grants []entities.UnlockGrant
	userRating := 0
	if viewerID != "" {
		grants, err = u.Novels.ListGrants(ctx, novelID, viewerID)
		if err != nil {
			return ports.NovelView{}, err
		}
		rating, found, err := u.Novels.GetUserRating(ctx, novelID, viewerID)
		if err != nil {
			return ports.NovelView{}, err
		}
		if found {
			userRating = rating
		}
	}

	summary, err := u.Novels.GetRatingSummary(ctx, novelID)
	if err != nil {
		return ports.NovelView{}, err
	}
	bookmarks, err := u.Novels.CountBookmarks(ctx, novelID)
	if err != nil {
		return ports.NovelView{}, err
	}
	categories, err := u.Novels.ListCategories(ctx, novelID)
	if err != nil {
		return ports.NovelView{}, err
	}
	tags, err := u.Novels.ListTags(ctx, novelID)
	if err != nil {
		return ports.NovelView{}, err
	}

	unlocked := make(map[entities.ChapterRef]struct{}, len(grants))
	for _, grant := range grants {
		unlocked[entities.ChapterRef{Number: grant.ChapterNumber, Part: grant.ChapterPart}] = struct{}{}
	}

	views := make([]ports.ChapterView, 0, len(chapters))
	for _, chapter := range chapters {
		_, hasGrant := unlocked[chapter.Ref()]
		views = append(views, ports.ChapterView{
			Chapter:    chapter,
			IsUnlocked: hasGrant,
		})
	}

	rating := 0.0
	if summary.Count > 0 {
		rating = float64(summary.Sum) / float64(summary.Count)
	}

	return ports.NovelView{
		Novel:               novel,
		Volumes:             volumes,
		Chapters:            views,
		Categories:          categories,
		Tags:                tags,
		Rating:              rating,
		RatingCount:         summary.Count,
		UserRating:          userRating,
		BookmarkCount:       bookmarks,
		HasTranslatorAccess: novel.IsOwnedBy(viewerID),
		ViewerID:            viewerID,
		FetchedAt:           now,
	}, nil
}

// publish writes the view and its metadata back. The caller decides the visit
// bookkeeping: a foreground miss counts the read, a background refresh carries
// the prior counters unchanged. Cache write-back failures are logged and
// swallowed; the caller still gets the fresh view.
func (u *LoadNovelUseCase) publish(ctx context.Context, novelID string, view ports.NovelView, meta ports.CacheMetadata, now time.Time, logger *slog.Logger) {
	if err := u.Cache.Set(ctx, novelID, view, now.Add(u.cacheTTL())); err != nil {
		logger.Warn("view cache write failed",
			"event", "load_novel_cache_write_failed",
			"module", "reading/catalog-access-service",
			"layer", "application",
			"novel_id", novelID,
			"error", err.Error(),
		)
		return
	}
	if err := u.Cache.SetMetadata(ctx, novelID, meta); err != nil {
		logger.Warn("view cache metadata write failed",
			"event", "load_novel_metadata_write_failed",
			"module", "reading/catalog-access-service",
			"layer", "application",
			"novel_id", novelID,
			"error", err.Error(),
		)
	}
}

func (u *LoadNovelUseCase) recordVisit(ctx context.Context, novelID string, now time.Time, logger *slog.Logger) {
	if err := u.Cache.Touch(ctx, novelID, now); err != nil {
		logger.Warn("view cache touch failed",
			"event", "load_novel_touch_failed",
			"module", "reading/catalog-access-service",
			"layer", "application",
			"novel_id", novelID,
			"error", err.Error(),
		)
	}
}

// revalidate refreshes a stale entry in the background. At most one refresh
// per novel runs at a time; the caller already holds a servable view.
func (u *LoadNovelUseCase) revalidate(query LoadNovelQuery, logger *slog.Logger) {
	u.mu.Lock()
	if u.refreshing == nil {
		u.refreshing = make(map[string]struct{})
	}
	if _, busy := u.refreshing[query.NovelID]; busy {
		u.mu.Unlock()
		return
	}
	u.refreshing[query.NovelID] = struct{}{}
	u.mu.Unlock()

	go func() {
		defer func() {
			u.mu.Lock()
			delete(u.refreshing, query.NovelID)
			u.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), u.refreshTimeout())
		defer cancel()

		now := u.now()
		fresh, err := u.fetch(ctx, query.NovelID, query.ViewerID, now)
		if err != nil {
			logger.Warn("background revalidation failed",
				"event", "load_novel_revalidate_failed",
				"module", "reading/catalog-access-service",
				"layer", "application",
				"novel_id", query.NovelID,
				"error", err.Error(),
			)
			return
		}
		// The serving read already touched the visit counters; a refresh
		// only renews the view and the fetch time.
		_, prior, _, _ := u.Cache.Get(ctx, query.NovelID, now)
		u.publish(ctx, query.NovelID, fresh, ports.CacheMetadata{
			LastFetchedAt: now,
			LastVisitedAt: prior.LastVisitedAt,
			VisitCount:    prior.VisitCount,
		}, now, logger)
	}()
}

func (u *LoadNovelUseCase) cacheTTL() time.Duration {
	if u.CacheTTL <= 0 {
		return 10 * time.Minute
	}
	return u.CacheTTL
}

func (u *LoadNovelUseCase) freshnessWindow() time.Duration {
	if u.FreshnessWindow <= 0 {
		return time.Minute
	}
	return u.FreshnessWindow
}

func (u *LoadNovelUseCase) refreshTimeout() time.Duration {
	if u.RefreshTimeout <= 0 {
		return 10 * time.Second
	}
	return u.RefreshTimeout
}

func (u *LoadNovelUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
