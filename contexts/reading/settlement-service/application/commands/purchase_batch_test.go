package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"inkwell/contexts/reading/settlement-service/adapters/memory"
	"inkwell/contexts/reading/settlement-service/application/commands"
	"inkwell/contexts/reading/settlement-service/domain/entities"
	domainerrors "inkwell/contexts/reading/settlement-service/domain/errors"
	"inkwell/contexts/reading/settlement-service/ports"
)

func newBatchFixture(t *testing.T, readerBalance int64) (*memory.Store, commands.PurchaseBatchUseCase) {
	t.Helper()
	store := memory.NewStore()
	scheduled := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store.SeedNovel(ports.NovelInfo{NovelID: "novel-1", OwnerID: "owner-1"})
	store.SeedChapter("novel-1", ports.ChapterInfo{Number: 1, CoinPrice: 10, PublishAt: &scheduled})
	store.SeedChapter("novel-1", ports.ChapterInfo{Number: 2, CoinPrice: 20, PublishAt: &scheduled})
	store.SeedChapter("novel-1", ports.ChapterInfo{Number: 3, CoinPrice: 5, PublishAt: &scheduled})
	store.SeedAccount("reader-1", readerBalance)
	store.SeedAccount("owner-1", 0)

	clock := fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	purchase := commands.PurchaseChapterUseCase{
		Accounts:          store,
		Ledger:            store,
		Directory:         store,
		Idempotency:       store,
		Cache:             store,
		Clock:             clock,
		IDGenerator:       store,
		OwnerSharePercent: 90,
	}
	batch := commands.PurchaseBatchUseCase{
		Accounts:  store,
		Ledger:    store,
		Directory: store,
		Purchase:  purchase,
		Clock:     clock,
	}
	return store, batch
}

func refs(numbers ...int) []entities.ChapterRef {
	out := make([]entities.ChapterRef, 0, len(numbers))
	for _, number := range numbers {
		out = append(out, entities.ChapterRef{Number: number})
	}
	return out
}

func TestPurchaseBatchSettlesAll(t *testing.T) {
	store, batch := newBatchFixture(t, 100)
	ctx := context.Background()

	result, err := batch.Execute(ctx, commands.PurchaseBatchCommand{
		NovelID:  "novel-1",
		BuyerID:  "reader-1",
		Chapters: refs(1, 2, 3),
	})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	receipt := result.Receipt
	if len(receipt.Receipts) != 3 || len(receipt.Failed) != 0 {
		t.Fatalf("expected 3 settled and 0 failed, got %d/%d", len(receipt.Receipts), len(receipt.Failed))
	}
	if receipt.TotalSpent != 35 {
		t.Fatalf("expected total spent 35, got %d", receipt.TotalSpent)
	}
	if got := balance(t, store, "reader-1"); got != 65 {
		t.Fatalf("buyer balance = %d, want 65", got)
	}
}

func TestPurchaseBatchFailsFastOnTotal(t *testing.T) {
	store, batch := newBatchFixture(t, 15)
	ctx := context.Background()

	_, err := batch.Execute(ctx, commands.PurchaseBatchCommand{
		NovelID:  "novel-1",
		BuyerID:  "reader-1",
		Chapters: refs(1, 2, 3),
	})
	if !errors.Is(err, domainerrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds for total, got %v", err)
	}
	// Affording chapter 1 alone is not enough: nothing may settle.
	if got := balance(t, store, "reader-1"); got != 15 {
		t.Fatalf("rejected batch must not move coins: balance %d, want 15", got)
	}
	if len(store.LedgerEntries()) != 0 {
		t.Fatal("rejected batch must not append ledger entries")
	}
}

func TestPurchaseBatchExcludesOwnedChaptersFromTotal(t *testing.T) {
	store, batch := newBatchFixture(t, 100)
	ctx := context.Background()

	if _, err := batch.Execute(ctx, commands.PurchaseBatchCommand{
		NovelID:  "novel-1",
		BuyerID:  "reader-1",
		Chapters: refs(2),
	}); err != nil {
		t.Fatalf("setup purchase failed: %v", err)
	}

	// Balance 80 now; only chapters 1 and 3 (15 coins) are outstanding, so the
	// batch clears the gate even though the full list prices at 35.
	store.SeedAccount("reader-1", 15)
	result, err := batch.Execute(ctx, commands.PurchaseBatchCommand{
		NovelID:  "novel-1",
		BuyerID:  "reader-1",
		Chapters: refs(1, 2, 3),
	})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if result.Receipt.TotalSpent != 15 {
		t.Fatalf("expected total spent 15, got %d", result.Receipt.TotalSpent)
	}
	unchargedRepeats := 0
	for _, receipt := range result.Receipt.Receipts {
		if receipt.AlreadyOwned || receipt.Replayed {
			unchargedRepeats++
		}
	}
	if unchargedRepeats != 1 {
		t.Fatalf("expected 1 uncharged repeat receipt, got %d", unchargedRepeats)
	}
}

func TestPurchaseBatchContinuesPastTransientFailure(t *testing.T) {
	store, batch := newBatchFixture(t, 100)
	store.FailNextSettle(entities.ChapterRef{Number: 2}, errors.New("connection reset"))
	ctx := context.Background()

	result, err := batch.Execute(ctx, commands.PurchaseBatchCommand{
		NovelID:  "novel-1",
		BuyerID:  "reader-1",
		Chapters: refs(1, 2, 3),
	})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	receipt := result.Receipt
	succeeded := receipt.SucceededRefs()
	if len(succeeded) != 2 || succeeded[0].Number != 1 || succeeded[1].Number != 3 {
		t.Fatalf("expected chapters 1 and 3 settled, got %v", succeeded)
	}
	if len(receipt.Failed) != 1 || receipt.Failed[0].Chapter.Number != 2 {
		t.Fatalf("expected chapter 2 in the failure list, got %v", receipt.Failed)
	}
	if receipt.TotalSpent != 15 {
		t.Fatalf("expected total spent 15, got %d", receipt.TotalSpent)
	}
	if got := balance(t, store, "reader-1"); got != 85 {
		t.Fatalf("buyer balance = %d, want 85", got)
	}
}

func TestPurchaseBatchDeduplicatesRefs(t *testing.T) {
	store, batch := newBatchFixture(t, 100)
	ctx := context.Background()

	result, err := batch.Execute(ctx, commands.PurchaseBatchCommand{
		NovelID:  "novel-1",
		BuyerID:  "reader-1",
		Chapters: refs(1, 1, 1),
	})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(result.Receipt.Receipts) != 1 {
		t.Fatalf("expected 1 receipt for duplicated refs, got %d", len(result.Receipt.Receipts))
	}
	if got := balance(t, store, "reader-1"); got != 90 {
		t.Fatalf("buyer balance = %d, want 90", got)
	}
}
