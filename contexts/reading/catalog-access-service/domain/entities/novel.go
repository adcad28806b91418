package entities

import "time"

type NovelStatus string

const (
	NovelStatusOngoing   NovelStatus = "ongoing"
	NovelStatusCompleted NovelStatus = "completed"
	NovelStatusHiatus    NovelStatus = "hiatus"
	NovelStatusDraft     NovelStatus = "draft"
)

// Novel is the aggregate root for a serialized work. OwnerID is the account
// that receives settlement proceeds for advance chapters.
type Novel struct {
	NovelID       string
	Slug          string
	Title         string
	OwnerID       string
	Status        NovelStatus
	Synopsis      string
	BookmarkCount int
	RatingSum     int64
	RatingCount   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (n Novel) IsDraft() bool {
	return n.Status == NovelStatusDraft
}

// IsOwnedBy reports whether the viewer has owner/translator access.
func (n Novel) IsOwnedBy(userID string) bool {
	return userID != "" && n.OwnerID == userID
}

// Volume groups chapters for display ordering.
type Volume struct {
	VolumeID string
	NovelID  string
	Number   int
	Title    string
}
