package entities

import "time"

// ChapterRef identifies a chapter inside a novel. Part 0 is a whole chapter;
// split releases carry part numbers starting at 1.
type ChapterRef struct {
	Number int
	Part   int
}

// UnlockGrant is the durable proof that a user paid for a chapter.
type UnlockGrant struct {
	GrantID       string
	NovelID       string
	UserID        string
	ChapterNumber int
	ChapterPart   int
	PricePaid     int64
	UnlockedAt    time.Time
}

func (g UnlockGrant) Ref() ChapterRef {
	return ChapterRef{Number: g.ChapterNumber, Part: g.ChapterPart}
}
