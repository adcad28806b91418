package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"inkwell/contexts/reading/catalog-access-service/domain/entities"
	domainerrors "inkwell/contexts/reading/catalog-access-service/domain/errors"
	"inkwell/contexts/reading/catalog-access-service/ports"
)

// Store is an in-memory adapter implementing the catalog repository port for
// local runtime and tests. It is not intended as production persistence.
type Store struct {
	mu         sync.RWMutex
	novels     map[string]entities.Novel
	volumes    map[string][]entities.Volume
	chapters   map[string][]entities.Chapter
	grants     map[string][]entities.UnlockGrant
	ratings    map[string]map[string]int
	bookmarks  map[string]map[string]struct{}
	categories map[string][]string
	tags       map[string][]string

	fetches atomic.Int64
}

func NewStore() *Store {
	return &Store{
		novels:     make(map[string]entities.Novel),
		volumes:    make(map[string][]entities.Volume),
		chapters:   make(map[string][]entities.Chapter),
		grants:     make(map[string][]entities.UnlockGrant),
		ratings:    make(map[string]map[string]int),
		bookmarks:  make(map[string]map[string]struct{}),
		categories: make(map[string][]string),
		tags:       make(map[string][]string),
	}
}

func (s *Store) GetNovel(_ context.Context, novelID string) (entities.Novel, error) {
	s.fetches.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()

	novel, ok := s.novels[novelID]
	if !ok {
		return entities.Novel{}, domainerrors.ErrNovelNotFound
	}
	return novel, nil
}

func (s *Store) ListVolumes(_ context.Context, novelID string) ([]entities.Volume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := append([]entities.Volume(nil), s.volumes[novelID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })
	return items, nil
}

func (s *Store) ListChapters(_ context.Context, novelID string) ([]entities.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := append([]entities.Chapter(nil), s.chapters[novelID]...)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Number == items[j].Number {
			return items[i].Part < items[j].Part
		}
		return items[i].Number < items[j].Number
	})
	return items, nil
}

func (s *Store) ListGrants(_ context.Context, novelID string, userID string) ([]entities.UnlockGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []entities.UnlockGrant
	for _, grant := range s.grants[novelID] {
		if grant.UserID == userID {
			items = append(items, grant)
		}
	}
	return items, nil
}

func (s *Store) GetRatingSummary(_ context.Context, novelID string) (ports.RatingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := ports.RatingSummary{}
	for _, score := range s.ratings[novelID] {
		summary.Sum += int64(score)
		summary.Count++
	}
	return summary, nil
}

func (s *Store) GetUserRating(_ context.Context, novelID string, userID string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.ratings[novelID][userID]
	return score, ok, nil
}

func (s *Store) CountBookmarks(_ context.Context, novelID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookmarks[novelID]), nil
}

func (s *Store) ListCategories(_ context.Context, novelID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.categories[novelID]...), nil
}

func (s *Store) ListTags(_ context.Context, novelID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.tags[novelID]...), nil
}

// FetchCount reports how many aggregate fetches hit the store; tests use it
// to assert the cache fast path.
func (s *Store) FetchCount() int64 {
	return s.fetches.Load()
}

// SeedNovel installs or replaces a novel record.
func (s *Store) SeedNovel(novel entities.Novel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.novels[novel.NovelID] = novel
}

func (s *Store) SeedVolume(volume entities.Volume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes[volume.NovelID] = append(s.volumes[volume.NovelID], volume)
}

func (s *Store) SeedChapter(chapter entities.Chapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters[chapter.NovelID] = append(s.chapters[chapter.NovelID], chapter)
}

// PutGrant records an unlock grant, mirroring what settlement writes.
func (s *Store) PutGrant(grant entities.UnlockGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grant.NovelID] = append(s.grants[grant.NovelID], grant)
}

func (s *Store) PutRating(novelID, userID string, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ratings[novelID] == nil {
		s.ratings[novelID] = make(map[string]int)
	}
	s.ratings[novelID][userID] = score
}

func (s *Store) PutBookmark(novelID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bookmarks[novelID] == nil {
		s.bookmarks[novelID] = make(map[string]struct{})
	}
	s.bookmarks[novelID][userID] = struct{}{}
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}
