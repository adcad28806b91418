package commands

import (
	"context"
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

type PurchaseBatchCommand struct {
	NovelID        string
	BuyerID        string
	Chapters       []entities.ChapterRef
	IdempotencyKey string
}

type PurchaseBatchResult struct {
	Receipt entities.BulkReceipt
}

// PurchaseBatchUseCase orchestrates bulk unlocks. The full price of all still
// locked chapters is checked against the buyer's balance up front; if it does
// not cover the total the whole batch is rejected before any settlement. Once
// past that gate, chapters settle one by one and an individual failure never
// aborts the rest.
type PurchaseBatchUseCase struct {
	Accounts  ports.AccountRepository
	Ledger    ports.GrantLedger
	Directory ports.NovelDirectory
	Purchase  PurchaseChapterUseCase
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (u PurchaseBatchUseCase) Execute(ctx context.Context, cmd PurchaseBatchCommand) (PurchaseBatchResult, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.NovelID) == "" ||
		strings.TrimSpace(cmd.BuyerID) == "" ||
		len(cmd.Chapters) == 0 {
		return PurchaseBatchResult{}, domainerrors.ErrInvalidPurchase
	}

	refs := dedupeRefs(cmd.Chapters)
	now := u.now()

	total, err := u.outstandingTotal(ctx, cmd.NovelID, cmd.BuyerID, refs, now)
	if err != nil {
		return PurchaseBatchResult{}, err
	}
	if total > 0 {
		account, err := u.Accounts.GetAccount(ctx, cmd.BuyerID)
		if err != nil {
			return PurchaseBatchResult{}, err
		}
		if !account.CanAfford(total) {
			logger.Warn("bulk purchase rejected on funds",
				"event", "purchase_batch_insufficient_funds",
				"module", "reading/settlement-service",
				"layer", "application",
				"novel_id", cmd.NovelID,
				"buyer_id", cmd.BuyerID,
				"total", total,
				"balance", account.Balance,
			)
			return PurchaseBatchResult{}, domainerrors.ErrInsufficientFunds
		}
	}

	receipt := entities.BulkReceipt{
		NovelID: cmd.NovelID,
		BuyerID: cmd.BuyerID,
	}
	for _, ref := range refs {
		result, err := u.Purchase.Execute(ctx, PurchaseChapterCommand{
			NovelID:        cmd.NovelID,
			BuyerID:        cmd.BuyerID,
			ChapterNumber:  ref.Number,
			ChapterPart:    ref.Part,
			IdempotencyKey: batchChapterKey(cmd, ref),
		})
		if err != nil {
			receipt.Failed = append(receipt.Failed, entities.FailedUnlock{
				Chapter: ref,
				Reason:  err.Error(),
			})
			continue
		}
		receipt.Receipts = append(receipt.Receipts, result.Receipt)
		if !result.Receipt.AlreadyOwned && !result.Receipt.Replayed {
			receipt.TotalSpent += result.Receipt.PricePaid
		}
	}

	logger.Info("bulk purchase completed",
		"event", "purchase_batch_completed",
		"module", "reading/settlement-service",
		"layer", "application",
		"novel_id", cmd.NovelID,
		"buyer_id", cmd.BuyerID,
		"succeeded_count", len(receipt.Receipts),
		"failed_count", len(receipt.Failed),
		"total_spent", receipt.TotalSpent,
	)

	return PurchaseBatchResult{Receipt: receipt}, nil
}

// outstandingTotal sums prices of requested chapters the buyer does not own
// yet. Chapters that would fail per-chapter validation are excluded; they
// surface in the per-chapter failure list instead of blocking the gate.
func (u PurchaseBatchUseCase) outstandingTotal(
	ctx context.Context,
	novelID string,
	buyerID string,
	refs []entities.ChapterRef,
	now time.Time,
) (int64, error) {
	var total int64
	for _, ref := range refs {
		if _, owned, err := u.Ledger.GetGrant(ctx, novelID, buyerID, ref); err != nil {
			return 0, err
		} else if owned {
			continue
		}
		chapter, err := u.Directory.GetChapter(ctx, novelID, ref)
		if err != nil {
			continue
		}
		if services.ValidatePurchasable(chapter.CoinPrice, chapter.PublishAt, now) != nil {
			continue
		}
		total += chapter.CoinPrice
	}
	return total, nil
}

func (u PurchaseBatchUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}

func dedupeRefs(refs []entities.ChapterRef) []entities.ChapterRef {
	seen := make(map[entities.ChapterRef]struct{}, len(refs))
	out := make([]entities.ChapterRef, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

func batchChapterKey(cmd PurchaseBatchCommand, ref entities.ChapterRef) string {
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d.%d", cmd.IdempotencyKey, ref.Number, ref.Part)
}
