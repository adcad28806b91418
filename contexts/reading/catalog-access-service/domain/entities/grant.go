package entities

import (
	"strings"
	"time"

	domainerrors "inkwell/contexts/reading/catalog-access-service/domain/errors"
)

// UnlockGrant is the immutable proof of access for one
// (user, novel, chapter, part) tuple. Grants are never deleted or mutated;
// existence alone is definitive.
type UnlockGrant struct {
	GrantID       string
	NovelID       string
	UserID        string
	ChapterNumber int
	ChapterPart   int
	PricePaid     int64
	UnlockedAt    time.Time
}

func NewUnlockGrant(
	grantID string,
	novelID string,
	userID string,
	chapterNumber int,
	chapterPart int,
	pricePaid int64,
	unlockedAt time.Time,
) (UnlockGrant, error) {
	if strings.TrimSpace(grantID) == "" ||
		strings.TrimSpace(novelID) == "" ||
		strings.TrimSpace(userID) == "" {
		return UnlockGrant{}, domainerrors.ErrInvalidGrant
	}
	if chapterNumber <= 0 || chapterPart < 0 || pricePaid < 0 {
		return UnlockGrant{}, domainerrors.ErrInvalidGrant
	}

	return UnlockGrant{
		GrantID:       grantID,
		NovelID:       novelID,
		UserID:        userID,
		ChapterNumber: chapterNumber,
		ChapterPart:   chapterPart,
		PricePaid:     pricePaid,
		UnlockedAt:    unlockedAt.UTC(),
	}, nil
}

// Covers reports whether the grant unlocks the given chapter.
func (g UnlockGrant) Covers(ref ChapterRef) bool {
	return g.ChapterNumber == ref.Number && g.ChapterPart == ref.Part
}
