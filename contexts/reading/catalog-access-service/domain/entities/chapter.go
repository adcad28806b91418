package entities

import "time"

// ChapterRef identifies a chapter within one novel. Part is 0 for chapters
// without sub-parts.
type ChapterRef struct {
	Number int
	Part   int
}

// Chapter belongs to exactly one novel. A nil PublishAt means the chapter is
// already public; CoinPrice 0 means the chapter is always free regardless of
// its publish timestamp.
type Chapter struct {
	NovelID   string
	VolumeID  string
	Number    int
	Part      int
	Title     string
	CoinPrice int64
	PublishAt *time.Time
	AgeRating string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Chapter) Ref() ChapterRef {
	return ChapterRef{Number: c.Number, Part: c.Part}
}

func (c Chapter) IsFree() bool {
	return c.CoinPrice == 0
}

// IsPublished reports whether the chapter is publicly readable at the given
// instant. The instant must come from a trusted server clock.
func (c Chapter) IsPublished(now time.Time) bool {
	return c.PublishAt == nil || !c.PublishAt.After(now)
}
