package services

import (
	"testing"
	"time"

	"inkwell/contexts/reading/catalog-access-service/domain/entities"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func chapterAt(price int64, publishAt *time.Time) entities.Chapter {
	return entities.Chapter{
		NovelID:   "novel-1",
		Number:    1,
		Part:      0,
		Title:     "Chapter 1",
		CoinPrice: price,
		PublishAt: publishAt,
	}
}

func past() *time.Time {
	t := testNow.Add(-24 * time.Hour)
	return &t
}

func nearFuture() *time.Time {
	t := testNow.Add(72 * time.Hour)
	return &t
}

func farFuture() *time.Time {
	t := testNow.AddDate(60, 0, 0)
	return &t
}

func TestClassifyZeroPriceIsFree(t *testing.T) {
	state := Classify(chapterAt(0, past()), ViewerContext{}, testNow)
	if state != StateFree {
		t.Fatalf("expected free, got %s", state)
	}
}

func TestClassifyPublishedPaidChapterIsPublic(t *testing.T) {
	state := Classify(chapterAt(30, past()), ViewerContext{UserID: "user-1"}, testNow)
	if state != StatePublic {
		t.Fatalf("expected public, got %s", state)
	}
}

func TestClassifyScheduledPaidChapterIsPurchasable(t *testing.T) {
	state := Classify(chapterAt(30, nearFuture()), ViewerContext{UserID: "user-1"}, testNow)
	if state != StatePurchasable {
		t.Fatalf("expected purchasable, got %s", state)
	}
}

func TestClassifyNilPublishAtIsPublic(t *testing.T) {
	state := Classify(chapterAt(30, nil), ViewerContext{UserID: "user-1"}, testNow)
	if state != StatePublic {
		t.Fatalf("expected public for unscheduled chapter, got %s", state)
	}
}

func TestClassifyIndefiniteLockBeatsEverything(t *testing.T) {
	chapter := chapterAt(0, farFuture())
	viewer := NewViewerContext("owner-1", true, []entities.UnlockGrant{{
		NovelID: "novel-1", UserID: "owner-1", ChapterNumber: 1, ChapterPart: 0,
	}})
	state := Classify(chapter, viewer, testNow)
	if state != StateIndefinitelyLocked {
		t.Fatalf("expected indefinitely_locked even for owner with grant on free chapter, got %s", state)
	}
}

func TestClassifyOwnerSeesTranslatorAccess(t *testing.T) {
	state := Classify(chapterAt(30, nearFuture()), ViewerContext{UserID: "owner-1", OwnerAccess: true}, testNow)
	if state != StateTranslatorAccess {
		t.Fatalf("expected translator_access, got %s", state)
	}
}

func TestClassifyGrantHolderSeesUnlocked(t *testing.T) {
	viewer := NewViewerContext("user-1", false, []entities.UnlockGrant{{
		NovelID: "novel-1", UserID: "user-1", ChapterNumber: 1, ChapterPart: 0,
	}})
	state := Classify(chapterAt(30, nearFuture()), viewer, testNow)
	if state != StateUnlocked {
		t.Fatalf("expected unlocked, got %s", state)
	}
}

func TestClassifyGrantForDifferentPartDoesNotApply(t *testing.T) {
	viewer := NewViewerContext("user-1", false, []entities.UnlockGrant{{
		NovelID: "novel-1", UserID: "user-1", ChapterNumber: 1, ChapterPart: 2,
	}})
	state := Classify(chapterAt(30, nearFuture()), viewer, testNow)
	if state != StatePurchasable {
		t.Fatalf("expected purchasable, got %s", state)
	}
}

func TestClassifyYieldsExactlyOneState(t *testing.T) {
	publishTimes := []*time.Time{nil, past(), nearFuture(), farFuture()}
	prices := []int64{0, 30}
	viewers := []ViewerContext{
		{},
		{UserID: "user-1"},
		{UserID: "owner-1", OwnerAccess: true},
		NewViewerContext("user-1", false, []entities.UnlockGrant{{
			NovelID: "novel-1", UserID: "user-1", ChapterNumber: 1, ChapterPart: 0,
		}}),
	}
	known := map[VisibilityState]bool{
		StatePublic:             true,
		StateFree:               true,
		StateTranslatorAccess:   true,
		StateUnlocked:           true,
		StateIndefinitelyLocked: true,
		StatePurchasable:        true,
	}

	for _, publishAt := range publishTimes {
		for _, price := range prices {
			for _, viewer := range viewers {
				state := Classify(chapterAt(price, publishAt), viewer, testNow)
				if !known[state] {
					t.Fatalf("classifier produced unknown state %q", state)
				}
			}
		}
	}
}

func TestClassifyHorizonBoundary(t *testing.T) {
	inside := testNow.AddDate(50, 0, 0).Add(-time.Hour)
	beyond := testNow.AddDate(50, 0, 0).Add(time.Hour)

	if got := Classify(chapterAt(30, &inside), ViewerContext{}, testNow); got != StatePurchasable {
		t.Fatalf("expected purchasable just inside horizon, got %s", got)
	}
	if got := Classify(chapterAt(30, &beyond), ViewerContext{}, testNow); got != StateIndefinitelyLocked {
		t.Fatalf("expected indefinitely_locked just beyond horizon, got %s", got)
	}
}

func TestPartitionBuckets(t *testing.T) {
	chapters := []entities.Chapter{
		{NovelID: "novel-1", Number: 1, CoinPrice: 0, PublishAt: past()},
		{NovelID: "novel-1", Number: 2, CoinPrice: 30, PublishAt: past()},
		{NovelID: "novel-1", Number: 3, CoinPrice: 30, PublishAt: nearFuture()},
		{NovelID: "novel-1", Number: 4, CoinPrice: 30, PublishAt: farFuture()},
	}

	regular, advanced := Partition(chapters, ViewerContext{UserID: "user-1"}, testNow)
	if len(regular) != 2 {
		t.Fatalf("expected 2 regular chapters, got %d", len(regular))
	}
	if len(advanced) != 2 {
		t.Fatalf("expected 2 advanced chapters, got %d", len(advanced))
	}
	if advanced[0].State != StatePurchasable || advanced[1].State != StateIndefinitelyLocked {
		t.Fatalf("unexpected advanced states: %s, %s", advanced[0].State, advanced[1].State)
	}
}
