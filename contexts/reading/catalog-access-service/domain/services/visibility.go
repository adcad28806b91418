package services

import (
	"time"

	"inkwell/contexts/reading/catalog-access-service/domain/entities"
)

// VisibilityState is the single access state of a chapter for one viewer.
type VisibilityState string

const (
	StatePublic             VisibilityState = "public"
	StateFree               VisibilityState = "free"
	StateTranslatorAccess   VisibilityState = "translator_access"
	StateUnlocked           VisibilityState = "unlocked"
	StateIndefinitelyLocked VisibilityState = "indefinitely_locked"
	StatePurchasable        VisibilityState = "purchasable"
)

// Chapters scheduled beyond this horizon are a content-scheduling device for
// unreleased material and must never appear purchasable or readable.
const indefiniteLockHorizonYears = 50

// ViewerContext carries everything the classifier may consult about a viewer.
// Unlocked holds the viewer's grant set for the novel being classified.
type ViewerContext struct {
	UserID      string
	OwnerAccess bool
	Unlocked    map[entities.ChapterRef]struct{}
}

func (v ViewerContext) hasGrant(ref entities.ChapterRef) bool {
	_, ok := v.Unlocked[ref]
	return ok
}

// NewViewerContext builds a ViewerContext from a viewer's grants.
func NewViewerContext(userID string, ownerAccess bool, grants []entities.UnlockGrant) ViewerContext {
	unlocked := make(map[entities.ChapterRef]struct{}, len(grants))
	for _, grant := range grants {
		unlocked[entities.ChapterRef{Number: grant.ChapterNumber, Part: grant.ChapterPart}] = struct{}{}
	}
	return ViewerContext{
		UserID:      userID,
		OwnerAccess: ownerAccess,
		Unlocked:    unlocked,
	}
}

// Classify yields exactly one visibility state. First match wins; the order
// matters because several predicates can hold at once. `now` must be a
// trusted server instant, never a client clock.
func Classify(chapter entities.Chapter, viewer ViewerContext, now time.Time) VisibilityState {
	if IsIndefinitelyLocked(chapter, now) {
		return StateIndefinitelyLocked
	}
	if chapter.IsFree() {
		return StateFree
	}
	if viewer.OwnerAccess {
		return StateTranslatorAccess
	}
	if viewer.hasGrant(chapter.Ref()) {
		return StateUnlocked
	}
	if chapter.IsPublished(now) {
		return StatePublic
	}
	return StatePurchasable
}

// IsIndefinitelyLocked reports whether the publish timestamp sits beyond the
// indefinite-lock horizon. Checked before price so a zero-price chapter can
// never leak by coincidence.
func IsIndefinitelyLocked(chapter entities.Chapter, now time.Time) bool {
	if chapter.PublishAt == nil {
		return false
	}
	return chapter.PublishAt.After(now.AddDate(indefiniteLockHorizonYears, 0, 0))
}

// IsAdvance reports whether the state belongs to the "advanced" bucket of the
// chapter-list partition; everything else is "regular".
func IsAdvance(state VisibilityState) bool {
	return state == StatePurchasable || state == StateIndefinitelyLocked
}

// ClassifiedChapter pairs a chapter with its resolved state for list views.
type ClassifiedChapter struct {
	Chapter entities.Chapter
	State   VisibilityState
}

// Partition splits chapters into regular and advanced buckets. This is a
// derived view over Classify, not a new state.
func Partition(chapters []entities.Chapter, viewer ViewerContext, now time.Time) (regular, advanced []ClassifiedChapter) {
	for _, chapter := range chapters {
		classified := ClassifiedChapter{
			Chapter: chapter,
			State:   Classify(chapter, viewer, now),
		}
		if IsAdvance(classified.State) {
			advanced = append(advanced, classified)
		} else {
			regular = append(regular, classified)
		}
	}
	return regular, advanced
}
