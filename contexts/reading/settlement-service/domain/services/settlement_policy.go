package services

import (
	"time"

	domainerrors "inkwell/contexts/reading/settlement-service/domain/errors"
)

// Chapters scheduled beyond this horizon are permanently withheld content and
// must never settle, whatever their listed price.
const indefiniteLockHorizonYears = 50

// DefaultOwnerSharePercent is the owner's cut of every settled price when no
// explicit split is configured.
const DefaultOwnerSharePercent = 90

// SplitPrice divides a price between the novel owner and the platform.
// The owner share is floored; the remainder is the platform cut, so the two
// always sum to the price exactly.
func SplitPrice(price int64, ownerSharePercent int) (ownerShare, platformCut int64) {
	if ownerSharePercent <= 0 || ownerSharePercent > 100 {
		ownerSharePercent = DefaultOwnerSharePercent
	}
	ownerShare = price * int64(ownerSharePercent) / 100
	platformCut = price - ownerShare
	return ownerShare, platformCut
}

// ValidatePurchasable decides whether a chapter may settle right now.
// Free chapters have nothing to settle, published chapters are already
// readable without payment, and chapters parked beyond the indefinite lock
// horizon are not for sale. Only a paid chapter scheduled inside the horizon
// settles.
func ValidatePurchasable(coinPrice int64, publishAt *time.Time, now time.Time) error {
	if coinPrice <= 0 {
		return domainerrors.ErrChapterNotPurchasable
	}
	if publishAt == nil || !publishAt.After(now) {
		return domainerrors.ErrChapterNotPurchasable
	}
	if publishAt.After(now.AddDate(indefiniteLockHorizonYears, 0, 0)) {
		return domainerrors.ErrChapterNotPurchasable
	}
	return nil
}
