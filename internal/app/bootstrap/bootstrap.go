package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	catalogaccessservice "inkwell/contexts/reading/catalog-access-service"
	catalogmemory "inkwell/contexts/reading/catalog-access-service/adapters/memory"
	catalogpostgres "inkwell/contexts/reading/catalog-access-service/adapters/postgres"
	catalogworkers "inkwell/contexts/reading/catalog-access-service/application/workers"
	catalogports "inkwell/contexts/reading/catalog-access-service/ports"
	settlementservice "inkwell/contexts/reading/settlement-service"
	settlementpostgres "inkwell/contexts/reading/settlement-service/adapters/postgres"
	"inkwell/internal/platform/config"
	"inkwell/internal/platform/db"
	"inkwell/internal/platform/httpserver"
	"inkwell/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so context code stays framework-agnostic.

type APIApp struct {
	server        *httpserver.Server
	postgres      *db.Postgres
	janitor       catalogworkers.CacheJanitor
	janitorEvery  time.Duration
	runJanitor    bool
	logger        *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	settlement   settlementservice.Module
	runRelay     bool
	pollInterval time.Duration
	logger       *slog.Logger
}

// viewCacheInvalidator lets settlement drop catalog views after a purchase
// without importing the catalog context directly.
type viewCacheInvalidator struct {
	cache catalogports.ViewCache
}

func (v viewCacheInvalidator) InvalidateNovel(ctx context.Context, novelID string) error {
	return v.cache.Invalidate(ctx, novelID)
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	viewCache := catalogmemory.NewViewCache(cfg.VisitWriteInterval)
	catalogRepo := catalogpostgres.NewRepository(pg.DB, logger)
	catalogModule := catalogaccessservice.NewModule(catalogaccessservice.Dependencies{
		Novels:          catalogRepo,
		Cache:           viewCache,
		Sweeper:         viewCache,
		Clock:           catalogpostgres.SystemClock{},
		CacheTTL:        cfg.ViewCacheTTL,
		FreshnessWindow: cfg.FreshnessWindow,
		RefreshTimeout:  10 * time.Second,
		Logger:          logger,
	})

	settlementRepo := settlementpostgres.NewRepository(pg.DB, logger)
	settlementModule := settlementservice.NewModule(settlementservice.Dependencies{
		Accounts:          settlementRepo,
		Ledger:            settlementRepo,
		Directory:         settlementRepo,
		Idempotency:       settlementRepo,
		Outbox:            settlementRepo,
		Cache:             viewCacheInvalidator{cache: viewCache},
		Clock:             settlementpostgres.SystemClock{},
		IDGenerator:       settlementpostgres.UUIDGenerator{},
		OwnerSharePercent: cfg.OwnerSharePercent,
		IdempotencyTTL:    cfg.IdempotencyTTL,
		Logger:            logger,
	})

	server := httpserver.New(catalogModule, settlementModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:       server,
		postgres:     pg,
		janitor:      catalogModule.Janitor,
		janitorEvery: time.Minute,
		runJanitor:   cfg.EnableCacheJanitor,
		logger:       logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	repo := settlementpostgres.NewRepository(pg.DB, logger)
	module := settlementservice.NewModule(settlementservice.Dependencies{
		Accounts:          repo,
		Ledger:            repo,
		Directory:         repo,
		Idempotency:       repo,
		Outbox:            repo,
		Publisher:         kafka,
		Clock:             settlementpostgres.SystemClock{},
		IDGenerator:       settlementpostgres.UUIDGenerator{},
		OwnerSharePercent: cfg.OwnerSharePercent,
		IdempotencyTTL:    cfg.IdempotencyTTL,
		OutboxTopic:       "reading.chapter_unlocked",
		OutboxBatchSize:   100,
		Logger:            logger,
	})

	return &WorkerApp{
		postgres:     pg,
		settlement:   module,
		runRelay:     cfg.EnableOutboxRelay,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}

	// The view cache lives in this process, so its janitor does too.
	if a.runJanitor {
		go func() {
			ticker := time.NewTicker(a.janitorEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					_ = a.janitor.RunOnce(ctx)
				}
			}
		}()
	}

	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if w.runRelay {
			if err := w.settlement.Relay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
