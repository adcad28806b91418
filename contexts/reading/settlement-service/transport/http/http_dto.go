package httptransport

type ChapterRefDTO struct {
	Number int `json:"number"`
	Part   int `json:"part,omitempty"`
}

type UnlockChapterRequest struct {
	Part int `json:"part,omitempty"`
}

type UnlockReceiptDTO struct {
	GrantID      string        `json:"grant_id"`
	NovelID      string        `json:"novel_id"`
	Chapter      ChapterRefDTO `json:"chapter"`
	PricePaid    int64         `json:"price_paid"`
	OwnerShare   int64         `json:"owner_share,omitempty"`
	PlatformCut  int64         `json:"platform_cut,omitempty"`
	BuyerBalance int64         `json:"buyer_balance"`
	AlreadyOwned bool          `json:"already_owned,omitempty"`
	Replayed     bool          `json:"replayed,omitempty"`
	UnlockedAt   string        `json:"unlocked_at"`
}

type UnlockChapterResponse struct {
	Receipt UnlockReceiptDTO `json:"receipt"`
}

type UnlockBatchRequest struct {
	Chapters []ChapterRefDTO `json:"chapters"`
}

type FailedUnlockDTO struct {
	Chapter ChapterRefDTO `json:"chapter"`
	Reason  string        `json:"reason"`
}

type UnlockBatchResponse struct {
	NovelID    string             `json:"novel_id"`
	Receipts   []UnlockReceiptDTO `json:"receipts"`
	Failed     []FailedUnlockDTO  `json:"failed"`
	TotalSpent int64              `json:"total_spent"`
}

type WalletResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

type UnlockDTO struct {
	GrantID    string        `json:"grant_id"`
	Chapter    ChapterRefDTO `json:"chapter"`
	PricePaid  int64         `json:"price_paid"`
	UnlockedAt string        `json:"unlocked_at"`
}

type ListUnlocksResponse struct {
	NovelID string      `json:"novel_id"`
	Items   []UnlockDTO `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
