package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"inkwell/contexts/reading/settlement-service/application/commands"
	"inkwell/contexts/reading/settlement-service/application/queries"
	"inkwell/contexts/reading/settlement-service/domain/entities"
	httptransport "inkwell/contexts/reading/settlement-service/transport/http"
)

type Handler struct {
	PurchaseChapter commands.PurchaseChapterUseCase
	PurchaseBatch   commands.PurchaseBatchUseCase
	GetWallet       queries.GetWalletUseCase
	ListUnlocks     queries.ListUnlocksUseCase
	Logger          *slog.Logger
}

// UnlockChapterHandler godoc
// @Summary Unlock a chapter
// @Description Settles a single chapter purchase: debits the buyer, credits the owner share, and grants access. Safe to retry.
// @Tags settlement-service
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Request-Id header string true "Request correlation id"
// @Param Idempotency-Key header string false "Idempotency key"
// @Param novel_id path string true "Novel id"
// @Param chapter_no path int true "Chapter number"
// @Param request body httptransport.UnlockChapterRequest false "Unlock payload"
// @Success 200 {object} httptransport.UnlockChapterResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 402 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /novels/{novel_id}/chapters/{chapter_no}/unlock [post]
func (h Handler) UnlockChapterHandler(
	ctx context.Context,
	buyerID string,
	novelID string,
	chapterNumber int,
	req httptransport.UnlockChapterRequest,
	idempotencyKey string,
) (httptransport.UnlockChapterResponse, error) {
	result, err := h.PurchaseChapter.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:        novelID,
		BuyerID:        buyerID,
		ChapterNumber:  chapterNumber,
		ChapterPart:    req.Part,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.UnlockChapterResponse{}, err
	}
	return httptransport.UnlockChapterResponse{
		Receipt: mapReceipt(result.Receipt),
	}, nil
}

// UnlockBatchHandler godoc
// @Summary Unlock multiple chapters
// @Description Settles a bulk purchase. The buyer must afford the full outstanding total up front; after that gate each chapter settles independently.
// @Tags settlement-service
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Request-Id header string true "Request correlation id"
// @Param Idempotency-Key header string false "Idempotency key"
// @Param novel_id path string true "Novel id"
// @Param request body httptransport.UnlockBatchRequest true "Batch payload"
// @Success 200 {object} httptransport.UnlockBatchResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 402 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /novels/{novel_id}/unlock-batch [post]
func (h Handler) UnlockBatchHandler(
	ctx context.Context,
	buyerID string,
	novelID string,
	req httptransport.UnlockBatchRequest,
	idempotencyKey string,
) (httptransport.UnlockBatchResponse, error) {
	refs := make([]entities.ChapterRef, 0, len(req.Chapters))
	for _, chapter := range req.Chapters {
		refs = append(refs, entities.ChapterRef{Number: chapter.Number, Part: chapter.Part})
	}

	result, err := h.PurchaseBatch.Execute(ctx, commands.PurchaseBatchCommand{
		NovelID:        novelID,
		BuyerID:        buyerID,
		Chapters:       refs,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.UnlockBatchResponse{}, err
	}

	receipts := make([]httptransport.UnlockReceiptDTO, 0, len(result.Receipt.Receipts))
	for _, receipt := range result.Receipt.Receipts {
		receipts = append(receipts, mapReceipt(receipt))
	}
	failed := make([]httptransport.FailedUnlockDTO, 0, len(result.Receipt.Failed))
	for _, failure := range result.Receipt.Failed {
		failed = append(failed, httptransport.FailedUnlockDTO{
			Chapter: httptransport.ChapterRefDTO{Number: failure.Chapter.Number, Part: failure.Chapter.Part},
			Reason:  failure.Reason,
		})
	}

	return httptransport.UnlockBatchResponse{
		NovelID:    result.Receipt.NovelID,
		Receipts:   receipts,
		Failed:     failed,
		TotalSpent: result.Receipt.TotalSpent,
	}, nil
}

// GetWalletHandler godoc
// @Summary Get coin wallet
// @Description Returns the authenticated user's coin balance.
// @Tags settlement-service
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Request-Id header string true "Request correlation id"
// @Success 200 {object} httptransport.WalletResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /wallet [get]
func (h Handler) GetWalletHandler(ctx context.Context, userID string) (httptransport.WalletResponse, error) {
	result, err := h.GetWallet.Execute(ctx, queries.GetWalletQuery{UserID: userID})
	if err != nil {
		return httptransport.WalletResponse{}, err
	}
	return httptransport.WalletResponse{
		UserID:  result.Account.UserID,
		Balance: result.Account.Balance,
	}, nil
}

// ListUnlocksHandler godoc
// @Summary List chapter unlocks
// @Description Returns the authenticated user's unlock grants for a novel.
// @Tags settlement-service
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Request-Id header string true "Request correlation id"
// @Param novel_id path string true "Novel id"
// @Success 200 {object} httptransport.ListUnlocksResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /novels/{novel_id}/unlocks [get]
func (h Handler) ListUnlocksHandler(ctx context.Context, userID string, novelID string) (httptransport.ListUnlocksResponse, error) {
	result, err := h.ListUnlocks.Execute(ctx, queries.ListUnlocksQuery{
		NovelID: novelID,
		UserID:  userID,
	})
	if err != nil {
		return httptransport.ListUnlocksResponse{}, err
	}

	items := make([]httptransport.UnlockDTO, 0, len(result.Items))
	for _, grant := range result.Items {
		items = append(items, httptransport.UnlockDTO{
			GrantID:    grant.GrantID,
			Chapter:    httptransport.ChapterRefDTO{Number: grant.ChapterNumber, Part: grant.ChapterPart},
			PricePaid:  grant.PricePaid,
			UnlockedAt: grant.UnlockedAt.UTC().Format(time.RFC3339),
		})
	}
	return httptransport.ListUnlocksResponse{
		NovelID: novelID,
		Items:   items,
	}, nil
}

func mapReceipt(receipt entities.UnlockReceipt) httptransport.UnlockReceiptDTO {
	return httptransport.UnlockReceiptDTO{
		GrantID:      receipt.GrantID,
		NovelID:      receipt.NovelID,
		Chapter:      httptransport.ChapterRefDTO{Number: receipt.Chapter.Number, Part: receipt.Chapter.Part},
		PricePaid:    receipt.PricePaid,
		OwnerShare:   receipt.OwnerShare,
		PlatformCut:  receipt.PlatformCut,
		BuyerBalance: receipt.BuyerBalance,
		AlreadyOwned: receipt.AlreadyOwned,
		Replayed:     receipt.Replayed,
		UnlockedAt:   receipt.UnlockedAt.UTC().Format(time.RFC3339),
	}
}
