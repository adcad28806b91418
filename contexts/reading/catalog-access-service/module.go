package catalogaccessservice

import (
	"log/slog"
	"time"

	httpadapter "inkwell/contexts/reading/catalog-access-service/adapters/http"
	"inkwell/contexts/reading/catalog-access-service/adapters/memory"
	"inkwell/contexts/reading/catalog-access-service/application/queries"
	"inkwell/contexts/reading/catalog-access-service/application/workers"
	"inkwell/contexts/reading/catalog-access-service/ports"
)

// Module is the composition surface for chapter access within Inkwell.
// Runtime wiring should consume Handler; Cache is exposed so settlement can
// invalidate views after a purchase, Store for tests/inspection.
type Module struct {
	Handler httpadapter.Handler
	Loader  *queries.LoadNovelUseCase
	Janitor workers.CacheJanitor
	Cache   ports.ViewCache
	Store   *memory.Store
}

type Dependencies struct {
	Novels          ports.NovelRepository
	Cache           ports.ViewCache
	Sweeper         ports.ViewCacheSweeper
	Clock           ports.Clock
	CacheTTL        time.Duration
	FreshnessWindow time.Duration
	RefreshTimeout  time.Duration
	Logger          *slog.Logger
}

// NewModule wires the catalog use-cases against explicit ports.
func NewModule(deps Dependencies) Module {
	loadNovel := &queries.LoadNovelUseCase{
		Novels:          deps.Novels,
		Cache:           deps.Cache,
		Clock:           deps.Clock,
		CacheTTL:        deps.CacheTTL,
		FreshnessWindow: deps.FreshnessWindow,
		RefreshTimeout:  deps.RefreshTimeout,
		Logger:          deps.Logger,
	}
	listChapters := queries.ListChaptersUseCase{
		Loader: loadNovel,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}
	janitor := workers.CacheJanitor{
		Cache:  deps.Sweeper,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}

	handler := httpadapter.Handler{
		LoadNovel:    loadNovel,
		ListChapters: listChapters,
		Logger:       deps.Logger,
	}

	return Module{
		Handler: handler,
		Loader:  loadNovel,
		Janitor: janitor,
		Cache:   deps.Cache,
	}
}

// NewInMemoryModule wires the catalog against in-memory adapters. This is the
// developer/test bootstrap path; production wiring substitutes the Postgres
// repository in bootstrap.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	cache := memory.NewViewCache(time.Minute)
	module := NewModule(Dependencies{
		Novels:          store,
		Cache:           cache,
		Sweeper:         cache,
		Clock:           store,
		CacheTTL:        10 * time.Minute,
		FreshnessWindow: time.Minute,
		RefreshTimeout:  10 * time.Second,
		Logger:          logger,
	})
	module.Store = store
	return module
}
