package entities

import "time"

// UnlockReceipt is the outcome of one settled (or replayed) chapter purchase.
// AlreadyOwned receipts carry no monetary movement.
type UnlockReceipt struct {
	GrantID       string
	NovelID       string
	BuyerID       string
	Chapter       ChapterRef
	PricePaid     int64
	OwnerShare    int64
	PlatformCut   int64
	BuyerBalance  int64
	AlreadyOwned  bool
	Replayed      bool
	UnlockedAt    time.Time
}

// FailedUnlock records a chapter that could not be settled during a bulk
// purchase, with the reason surfaced to the caller.
type FailedUnlock struct {
	Chapter ChapterRef
	Reason  string
}

// BulkReceipt summarizes a bulk purchase: which chapters settled, which
// failed, and the total actually spent.
type BulkReceipt struct {
	NovelID    string
	BuyerID    string
	Receipts   []UnlockReceipt
	Failed     []FailedUnlock
	TotalSpent int64
}

func (r BulkReceipt) SucceededRefs() []ChapterRef {
	refs := make([]ChapterRef, 0, len(r.Receipts))
	for _, receipt := range r.Receipts {
		refs = append(refs, receipt.Chapter)
	}
	return refs
}
