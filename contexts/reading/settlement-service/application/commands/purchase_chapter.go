package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "inkwell/contexts/reading/settlement-service/application"
	"inkwell/contexts/reading/settlement-service/domain/entities"
	domainerrors "inkwell/contexts/reading/settlement-service/domain/errors"
	"inkwell/contexts/reading/settlement-service/domain/services"
	"inkwell/contexts/reading/settlement-service/ports"
)

const unlockedEventType = "reading.chapter_unlocked"

type PurchaseChapterCommand struct {
	NovelID        string
	BuyerID        string
	ChapterNumber  int
	ChapterPart    int
	IdempotencyKey string
}

func (c PurchaseChapterCommand) ref() entities.ChapterRef {
	return entities.ChapterRef{Number: c.ChapterNumber, Part: c.ChapterPart}
}

type PurchaseChapterResult struct {
	Receipt entities.UnlockReceipt
}

// PurchaseChapterUseCase is the settlement coordinator. Execute runs the
// unlock workflow in this order:
// 1) idempotency lookup/replay
// 2) existing grant short-circuit
// 3) catalog resolution and purchasability validation
// 4) price split and atomic settlement (grant + balances + ledger + outbox)
// 5) catalog cache invalidation
// 6) idempotency record write.
type PurchaseChapterUseCase struct {
	Accounts          ports.AccountRepository
	Ledger            ports.GrantLedger
	Directory         ports.NovelDirectory
	Idempotency       ports.IdempotencyStore
	Cache             ports.CacheInvalidator
	Clock             ports.Clock
	IDGenerator       ports.IDGenerator
	OwnerSharePercent int
	IdempotencyTTL    time.Duration
	Logger            *slog.Logger
}

func (u PurchaseChapterUseCase) Execute(ctx context.Context, cmd PurchaseChapterCommand) (PurchaseChapterResult, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.NovelID) == "" ||
		strings.TrimSpace(cmd.BuyerID) == "" ||
		cmd.ChapterNumber <= 0 || cmd.ChapterPart < 0 {
		return PurchaseChapterResult{}, domainerrors.ErrInvalidPurchase
	}

	now := u.now()
	idempotencyKey := resolveIdempotencyKey(cmd)
	requestHash := hashRequest(cmd)

	logger.Info("chapter purchase started",
		"event", "purchase_chapter_started",
		"module", "reading/settlement-service",
		"layer", "application",
		"novel_id", cmd.NovelID,
		"buyer_id", cmd.BuyerID,
		"chapter", fmt.Sprintf("%d.%d", cmd.ChapterNumber, cmd.ChapterPart),
		"idempotency_key", idempotencyKey,
	)

	record, found, err := u.Idempotency.Get(ctx, idempotencyKey, now)
	if err != nil {
		logger.Error("idempotency get failed",
			"event", "purchase_chapter_idempotency_get_failed",
			"module", "reading/settlement-service",
			"layer", "application",
			"novel_id", cmd.NovelID,
			"buyer_id", cmd.BuyerID,
			"error", err.Error(),
		)
		return PurchaseChapterResult{}, err
	}
	if found {
		// A reused idempotency key must map to an identical request payload.
		if record.RequestHash != requestHash {
			logger.Warn("idempotency key conflict",
				"event", "purchase_chapter_idempotency_conflict",
				"module", "reading/settlement-service",
				"layer", "application",
				"novel_id", cmd.NovelID,
				"buyer_id", cmd.BuyerID,
			)
			return PurchaseChapterResult{}, domainerrors.ErrIdempotencyKeyConflict
		}
		grant, err := u.Ledger.GetGrantByID(ctx, record.GrantID)
		if err != nil {
			return PurchaseChapterResult{}, err
		}
		return PurchaseChapterResult{Receipt: entities.UnlockReceipt{
			GrantID:    grant.GrantID,
			NovelID:    grant.NovelID,
			BuyerID:    grant.UserID,
			Chapter:    grant.Ref(),
			PricePaid:  grant.PricePaid,
			Replayed:   true,
			UnlockedAt: grant.UnlockedAt,
		}}, nil
	}

	// A grant written by an earlier request (or a concurrent one that won the
	// race) makes this purchase a no-op success, never a double charge.
	if existing, owned, err := u.Ledger.GetGrant(ctx, cmd.NovelID, cmd.BuyerID, cmd.ref()); err != nil {
		return PurchaseChapterResult{}, err
	} else if owned {
		if err := u.rememberGrant(ctx, idempotencyKey, requestHash, existing.GrantID, now); err != nil {
			return PurchaseChapterResult{}, err
		}
		return PurchaseChapterResult{Receipt: entities.UnlockReceipt{
			GrantID:      existing.GrantID,
			NovelID:      existing.NovelID,
			BuyerID:      existing.UserID,
			Chapter:      existing.Ref(),
			PricePaid:    existing.PricePaid,
			AlreadyOwned: true,
			UnlockedAt:   existing.UnlockedAt,
		}}, nil
	}

	novel, err := u.Directory.GetNovel(ctx, cmd.NovelID)
	if err != nil {
		return PurchaseChapterResult{}, err
	}
	if novel.OwnerID == cmd.BuyerID {
		return PurchaseChapterResult{}, domainerrors.ErrSelfPurchase
	}
	chapter, err := u.Directory.GetChapter(ctx, cmd.NovelID, cmd.ref())
	if err != nil {
		return PurchaseChapterResult{}, err
	}
	if err := services.ValidatePurchasable(chapter.CoinPrice, chapter.PublishAt, now); err != nil {
		logger.Warn("chapter purchase rejected",
			"event", "purchase_chapter_rejected",
			"module", "reading/settlement-service",
			"layer", "application",
			"novel_id", cmd.NovelID,
			"buyer_id", cmd.BuyerID,
			"chapter", fmt.Sprintf("%d.%d", cmd.ChapterNumber, cmd.ChapterPart),
			"error", err.Error(),
		)
		return PurchaseChapterResult{}, err
	}

	ownerShare, platformCut := services.SplitPrice(chapter.CoinPrice, u.OwnerSharePercent)

	grantID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return PurchaseChapterResult{}, err
	}
	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return PurchaseChapterResult{}, err
	}

	// Settlement write boundary: grant, both balance moves, ledger entry and
	// the reading.chapter_unlocked outbox message commit together.
	outcome, err := u.Ledger.SettleUnlock(ctx, ports.SettlementInput{
		GrantID:       grantID,
		NovelID:       cmd.NovelID,
		BuyerID:       cmd.BuyerID,
		OwnerID:       novel.OwnerID,
		ChapterNumber: cmd.ChapterNumber,
		ChapterPart:   cmd.ChapterPart,
		Price:         chapter.CoinPrice,
		OwnerShare:    ownerShare,
		PlatformCut:   platformCut,
		Event: ports.UnlockedEvent{
			EventID:       eventID,
			EventType:     unlockedEventType,
			GrantID:       grantID,
			NovelID:       cmd.NovelID,
			BuyerID:       cmd.BuyerID,
			OwnerID:       novel.OwnerID,
			ChapterNumber: cmd.ChapterNumber,
			ChapterPart:   cmd.ChapterPart,
			PricePaid:     chapter.CoinPrice,
			PartitionKey:  cmd.NovelID,
			OccurredAt:    now,
		},
		OccurredAt: now,
	})
	if err != nil {
		logger.Error("chapter settlement failed",
			"event", "purchase_chapter_settlement_failed",
			"module", "reading/settlement-service",
			"layer", "application",
			"novel_id", cmd.NovelID,
			"buyer_id", cmd.BuyerID,
			"chapter", fmt.Sprintf("%d.%d", cmd.ChapterNumber, cmd.ChapterPart),
			"error", err.Error(),
		)
		return PurchaseChapterResult{}, err
	}
	if outcome.AlreadyOwned {
		grant, owned, err := u.Ledger.GetGrant(ctx, cmd.NovelID, cmd.BuyerID, cmd.ref())
		if err != nil || !owned {
			return PurchaseChapterResult{}, domainerrors.ErrRepositoryInvariantBroke
		}
		if err := u.rememberGrant(ctx, idempotencyKey, requestHash, grant.GrantID, now); err != nil {
			return PurchaseChapterResult{}, err
		}
		return PurchaseChapterResult{Receipt: entities.UnlockReceipt{
			GrantID:      grant.GrantID,
			NovelID:      grant.NovelID,
			BuyerID:      grant.UserID,
			Chapter:      grant.Ref(),
			PricePaid:    grant.PricePaid,
			AlreadyOwned: true,
			UnlockedAt:   grant.UnlockedAt,
		}}, nil
	}

	u.invalidateView(ctx, cmd.NovelID, logger)

	if err := u.rememberGrant(ctx, idempotencyKey, requestHash, grantID, now); err != nil {
		return PurchaseChapterResult{}, err
	}

	logger.Info("chapter unlocked",
		"event", "chapter_unlock_settled",
		"module", "reading/settlement-service",
		"layer", "application",
		"grant_id", grantID,
		"novel_id", cmd.NovelID,
		"buyer_id", cmd.BuyerID,
		"chapter", fmt.Sprintf("%d.%d", cmd.ChapterNumber, cmd.ChapterPart),
		"price", chapter.CoinPrice,
		"owner_share", ownerShare,
		"platform_cut", platformCut,
	)

	return PurchaseChapterResult{Receipt: entities.UnlockReceipt{
		GrantID:      grantID,
		NovelID:      cmd.NovelID,
		BuyerID:      cmd.BuyerID,
		Chapter:      cmd.ref(),
		PricePaid:    chapter.CoinPrice,
		OwnerShare:   ownerShare,
		PlatformCut:  platformCut,
		BuyerBalance: outcome.BuyerBalance,
		UnlockedAt:   now,
	}}, nil
}

func (u PurchaseChapterUseCase) rememberGrant(ctx context.Context, key, requestHash, grantID string, now time.Time) error {
	return u.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		GrantID:     grantID,
		ExpiresAt:   now.Add(u.idempotencyTTL()),
	})
}

// invalidateView is best-effort: the grant is durable either way and the
// cached view expires on its own TTL.
func (u PurchaseChapterUseCase) invalidateView(ctx context.Context, novelID string, logger *slog.Logger) {
	if u.Cache == nil {
		return
	}
	if err := u.Cache.InvalidateNovel(ctx, novelID); err != nil {
		logger.Warn("view cache invalidation failed",
			"event", "purchase_chapter_cache_invalidate_failed",
			"module", "reading/settlement-service",
			"layer", "application",
			"novel_id", novelID,
			"error", err.Error(),
		)
	}
}

func (u PurchaseChapterUseCase) idempotencyTTL() time.Duration {
	if u.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return u.IdempotencyTTL
}

func (u PurchaseChapterUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}

func resolveIdempotencyKey(cmd PurchaseChapterCommand) string {
	if strings.TrimSpace(cmd.IdempotencyKey) != "" {
		return cmd.IdempotencyKey
	}
	// Canonical fallback pattern for unlock operations.
	return fmt.Sprintf("settle:%s:%s:%d.%d", cmd.BuyerID, cmd.NovelID, cmd.ChapterNumber, cmd.ChapterPart)
}

func hashRequest(cmd PurchaseChapterCommand) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", cmd.BuyerID, cmd.NovelID, cmd.ChapterNumber, cmd.ChapterPart)))
	return hex.EncodeToString(sum[:])
}
