package services

import (
	"errors"
	"testing"
	"time"

	domainerrors "inkwell/contexts/reading/settlement-service/domain/errors"
)

func TestSplitPriceFloorsOwnerShare(t *testing.T) {
	cases := []struct {
		price       int64
		percent     int
		ownerShare  int64
		platformCut int64
	}{
		{price: 100, percent: 90, ownerShare: 90, platformCut: 10},
		{price: 33, percent: 90, ownerShare: 29, platformCut: 4},
		{price: 1, percent: 90, ownerShare: 0, platformCut: 1},
		{price: 7, percent: 50, ownerShare: 3, platformCut: 4},
		{price: 10, percent: 100, ownerShare: 10, platformCut: 0},
	}

	for _, tc := range cases {
		ownerShare, platformCut := SplitPrice(tc.price, tc.percent)
		if ownerShare != tc.ownerShare || platformCut != tc.platformCut {
			t.Fatalf("SplitPrice(%d, %d) = (%d, %d), want (%d, %d)",
				tc.price, tc.percent, ownerShare, platformCut, tc.ownerShare, tc.platformCut)
		}
		if ownerShare+platformCut != tc.price {
			t.Fatalf("split of %d does not conserve: %d + %d", tc.price, ownerShare, platformCut)
		}
	}
}

func TestSplitPriceDefaultsOnBadPercent(t *testing.T) {
	ownerShare, platformCut := SplitPrice(100, 0)
	if ownerShare != 90 || platformCut != 10 {
		t.Fatalf("expected default split 90/10, got %d/%d", ownerShare, platformCut)
	}
	ownerShare, platformCut = SplitPrice(100, 150)
	if ownerShare != 90 || platformCut != 10 {
		t.Fatalf("expected default split 90/10, got %d/%d", ownerShare, platformCut)
	}
}

func TestValidatePurchasable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(48 * time.Hour)
	released := now.Add(-48 * time.Hour)
	parked := now.AddDate(60, 0, 0)

	if err := ValidatePurchasable(30, &soon, now); err != nil {
		t.Fatalf("scheduled paid chapter should be purchasable: %v", err)
	}
	if err := ValidatePurchasable(30, nil, now); !errors.Is(err, domainerrors.ErrChapterNotPurchasable) {
		t.Fatalf("unscheduled chapter is already public and must not settle, got %v", err)
	}
	if err := ValidatePurchasable(30, &released, now); !errors.Is(err, domainerrors.ErrChapterNotPurchasable) {
		t.Fatalf("published chapter is already public and must not settle, got %v", err)
	}
	if err := ValidatePurchasable(30, &now, now); !errors.Is(err, domainerrors.ErrChapterNotPurchasable) {
		t.Fatalf("chapter publishing this instant is public and must not settle, got %v", err)
	}
	if err := ValidatePurchasable(0, &soon, now); !errors.Is(err, domainerrors.ErrChapterNotPurchasable) {
		t.Fatalf("free chapter must not be purchasable, got %v", err)
	}
	if err := ValidatePurchasable(30, &parked, now); !errors.Is(err, domainerrors.ErrChapterNotPurchasable) {
		t.Fatalf("indefinitely locked chapter must not be purchasable, got %v", err)
	}
}
