package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"inkwell/contexts/reading/settlement-service/adapters/memory"
	"inkwell/contexts/reading/settlement-service/application/commands"
	domainerrors "inkwell/contexts/reading/settlement-service/domain/errors"
	"inkwell/contexts/reading/settlement-service/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newPurchaseFixture(t *testing.T) (*memory.Store, commands.PurchaseChapterUseCase) {
	t.Helper()
	store := memory.NewStore()
	scheduled := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store.SeedNovel(ports.NovelInfo{NovelID: "novel-1", OwnerID: "owner-1"})
	store.SeedChapter("novel-1", ports.ChapterInfo{Number: 1, CoinPrice: 30, PublishAt: &scheduled})
	store.SeedChapter("novel-1", ports.ChapterInfo{Number: 2, CoinPrice: 20, PublishAt: &scheduled})
	store.SeedChapter("novel-1", ports.ChapterInfo{Number: 3, CoinPrice: 0})
	store.SeedAccount("reader-1", 100)
	store.SeedAccount("owner-1", 0)

	useCase := commands.PurchaseChapterUseCase{
		Accounts:          store,
		Ledger:            store,
		Directory:         store,
		Idempotency:       store,
		Cache:             store,
		Clock:             fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		IDGenerator:       store,
		OwnerSharePercent: 90,
	}
	return store, useCase
}

func balance(t *testing.T, store *memory.Store, userID string) int64 {
	t.Helper()
	account, err := store.GetAccount(context.Background(), userID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAccountNotFound) {
			return 0
		}
		t.Fatalf("get account %s: %v", userID, err)
	}
	return account.Balance
}

func TestPurchaseChapterSettles(t *testing.T) {
	store, useCase := newPurchaseFixture(t)
	ctx := context.Background()

	result, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:       "novel-1",
		BuyerID:       "reader-1",
		ChapterNumber: 1,
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	receipt := result.Receipt
	if receipt.PricePaid != 30 || receipt.OwnerShare != 27 || receipt.PlatformCut != 3 {
		t.Fatalf("unexpected split: price=%d owner=%d platform=%d",
			receipt.PricePaid, receipt.OwnerShare, receipt.PlatformCut)
	}
	if receipt.BuyerBalance != 70 {
		t.Fatalf("expected buyer balance 70, got %d", receipt.BuyerBalance)
	}
	if got := balance(t, store, "reader-1"); got != 70 {
		t.Fatalf("buyer balance = %d, want 70", got)
	}
	if got := balance(t, store, "owner-1"); got != 27 {
		t.Fatalf("owner balance = %d, want 27", got)
	}

	entries := store.LedgerEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	if entries[0].OwnerShare+entries[0].PlatformCut != entries[0].Price {
		t.Fatal("ledger entry does not conserve the price")
	}
	if invalidated := store.InvalidatedNovels(); len(invalidated) != 1 || invalidated[0] != "novel-1" {
		t.Fatalf("expected one cache invalidation for novel-1, got %v", invalidated)
	}
	if store.PendingOutboxCount() != 1 {
		t.Fatal("expected one pending outbox message")
	}
}

func TestPurchaseChapterIdempotentReplay(t *testing.T) {
	store, useCase := newPurchaseFixture(t)
	ctx := context.Background()
	cmd := commands.PurchaseChapterCommand{
		NovelID:        "novel-1",
		BuyerID:        "reader-1",
		ChapterNumber:  1,
		IdempotencyKey: "idem-1",
	}

	first, err := useCase.Execute(ctx, cmd)
	if err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}
	second, err := useCase.Execute(ctx, cmd)
	if err != nil {
		t.Fatalf("replayed purchase failed: %v", err)
	}
	if !second.Receipt.Replayed {
		t.Fatal("expected replayed receipt")
	}
	if second.Receipt.GrantID != first.Receipt.GrantID {
		t.Fatalf("replay returned a different grant: %s vs %s", second.Receipt.GrantID, first.Receipt.GrantID)
	}
	if got := balance(t, store, "reader-1"); got != 70 {
		t.Fatalf("replay must not charge twice: balance %d, want 70", got)
	}
	if len(store.LedgerEntries()) != 1 {
		t.Fatal("replay must not append a second ledger entry")
	}
}

func TestPurchaseChapterIdempotencyKeyConflict(t *testing.T) {
	_, useCase := newPurchaseFixture(t)
	ctx := context.Background()

	if _, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:        "novel-1",
		BuyerID:        "reader-1",
		ChapterNumber:  1,
		IdempotencyKey: "idem-1",
	}); err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}

	_, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:        "novel-1",
		BuyerID:        "reader-1",
		ChapterNumber:  2,
		IdempotencyKey: "idem-1",
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestPurchaseChapterAlreadyOwnedShortCircuits(t *testing.T) {
	store, useCase := newPurchaseFixture(t)
	ctx := context.Background()

	if _, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:       "novel-1",
		BuyerID:       "reader-1",
		ChapterNumber: 1,
	}); err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}

	// No idempotency key this time: the grant check alone must stop a recharge.
	result, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:        "novel-1",
		BuyerID:        "reader-1",
		ChapterNumber:  1,
		IdempotencyKey: "fresh-key",
	})
	if err != nil {
		t.Fatalf("repeat purchase failed: %v", err)
	}
	if !result.Receipt.AlreadyOwned {
		t.Fatal("expected already-owned receipt")
	}
	if got := balance(t, store, "reader-1"); got != 70 {
		t.Fatalf("already-owned purchase must not charge: balance %d, want 70", got)
	}
}

func TestPurchaseChapterInsufficientFunds(t *testing.T) {
	store, useCase := newPurchaseFixture(t)
	store.SeedAccount("reader-poor", 10)
	ctx := context.Background()

	_, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:       "novel-1",
		BuyerID:       "reader-poor",
		ChapterNumber: 1,
	})
	if !errors.Is(err, domainerrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := balance(t, store, "reader-poor"); got != 10 {
		t.Fatalf("failed purchase must not move coins: balance %d, want 10", got)
	}
	if got := balance(t, store, "owner-1"); got != 0 {
		t.Fatalf("failed purchase must not credit the owner: balance %d", got)
	}
	if len(store.LedgerEntries()) != 0 {
		t.Fatal("failed purchase must not append a ledger entry")
	}
}

func TestPurchaseChapterRejectsFreeAndLockedChapters(t *testing.T) {
	store, useCase := newPurchaseFixture(t)
	parked := time.Date(2090, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SeedChapter("novel-1", ports.ChapterInfo{Number: 9, CoinPrice: 30, PublishAt: &parked})
	ctx := context.Background()

	if _, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:       "novel-1",
		BuyerID:       "reader-1",
		ChapterNumber: 3,
	}); !errors.Is(err, domainerrors.ErrChapterNotPurchasable) {
		t.Fatalf("free chapter: expected not purchasable, got %v", err)
	}

	if _, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:       "novel-1",
		BuyerID:       "reader-1",
		ChapterNumber: 9,
	}); !errors.Is(err, domainerrors.ErrChapterNotPurchasable) {
		t.Fatalf("parked chapter: expected not purchasable, got %v", err)
	}
}

func TestPurchaseChapterRejectsPublishedChapter(t *testing.T) {
	store, useCase := newPurchaseFixture(t)
	released := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SeedChapter("novel-1", ports.ChapterInfo{Number: 4, CoinPrice: 30, PublishAt: &released})
	ctx := context.Background()

	// Chapter 4 went live in January; charging for public content is a bug.
	_, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:       "novel-1",
		BuyerID:       "reader-1",
		ChapterNumber: 4,
	})
	if !errors.Is(err, domainerrors.ErrChapterNotPurchasable) {
		t.Fatalf("published chapter: expected not purchasable, got %v", err)
	}
	if got := balance(t, store, "reader-1"); got != 100 {
		t.Fatalf("rejected purchase must not move coins: balance %d, want 100", got)
	}
}

func TestPurchaseChapterOwnerAccountMissing(t *testing.T) {
	store, useCase := newPurchaseFixture(t)
	scheduled := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store.SeedNovel(ports.NovelInfo{NovelID: "novel-2", OwnerID: "owner-unregistered"})
	store.SeedChapter("novel-2", ports.ChapterInfo{Number: 1, CoinPrice: 10, PublishAt: &scheduled})
	ctx := context.Background()

	_, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:       "novel-2",
		BuyerID:       "reader-1",
		ChapterNumber: 1,
	})
	if !errors.Is(err, domainerrors.ErrOwnerNotFound) {
		t.Fatalf("expected owner not found, got %v", err)
	}
	if got := balance(t, store, "reader-1"); got != 100 {
		t.Fatalf("aborted settlement must not move coins: balance %d, want 100", got)
	}

	// With the owner unregistered the settlement fails on the owner account
	// even when the buyer could not afford the chapter anyway.
	store.SeedAccount("reader-broke", 1)
	_, err = useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:       "novel-2",
		BuyerID:       "reader-broke",
		ChapterNumber: 1,
	})
	if !errors.Is(err, domainerrors.ErrOwnerNotFound) {
		t.Fatalf("expected owner not found to win over insufficient funds, got %v", err)
	}
}

func TestPurchaseChapterRejectsSelfPurchase(t *testing.T) {
	store, useCase := newPurchaseFixture(t)
	store.SeedAccount("owner-1", 500)
	ctx := context.Background()

	_, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
		NovelID:       "novel-1",
		BuyerID:       "owner-1",
		ChapterNumber: 1,
	})
	if !errors.Is(err, domainerrors.ErrSelfPurchase) {
		t.Fatalf("expected self purchase rejection, got %v", err)
	}
}

func TestPurchaseChapterConservation(t *testing.T) {
	store, useCase := newPurchaseFixture(t)
	ctx := context.Background()

	before := balance(t, store, "reader-1") + balance(t, store, "owner-1")
	for _, number := range []int{1, 2} {
		if _, err := useCase.Execute(ctx, commands.PurchaseChapterCommand{
			NovelID:       "novel-1",
			BuyerID:       "reader-1",
			ChapterNumber: number,
		}); err != nil {
			t.Fatalf("purchase of chapter %d failed: %v", number, err)
		}
	}

	var platformTotal int64
	for _, entry := range store.LedgerEntries() {
		platformTotal += entry.PlatformCut
	}
	after := balance(t, store, "reader-1") + balance(t, store, "owner-1")
	if after+platformTotal != before {
		t.Fatalf("coins not conserved: before=%d after=%d platform=%d", before, after, platformTotal)
	}
}
