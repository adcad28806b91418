package workers

import (
	"context"
	"log/slog"
	"time"

	application "inkwell/contexts/reading/catalog-access-service/application"
	"inkwell/contexts/reading/catalog-access-service/ports"
)

// CacheJanitor sweeps view-cache entries that crossed their TTL.
type CacheJanitor struct {
	Cache  ports.ViewCacheSweeper
	Clock  ports.Clock
	Logger *slog.Logger
}

func (j CacheJanitor) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}

	evicted, err := j.Cache.EvictExpired(ctx, now)
	if err != nil {
		logger.Error("view cache sweep failed",
			"event", "catalog_cache_sweep_failed",
			"module", "reading/catalog-access-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if evicted > 0 {
		logger.Info("view cache sweep completed",
			"event", "catalog_cache_sweep_completed",
			"module", "reading/catalog-access-service",
			"layer", "worker",
			"evicted_count", evicted,
		)
	}
	return nil
}
