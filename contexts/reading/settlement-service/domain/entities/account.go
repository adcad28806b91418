package entities

import "time"

// CoinAccount is a user's coin balance. Balances are whole coins and must
// never go negative; every mutation happens inside the settlement transaction.
type CoinAccount struct {
	UserID    string
	Balance   int64
	UpdatedAt time.Time
}

func (a CoinAccount) CanAfford(amount int64) bool {
	return a.Balance >= amount
}

// LedgerEntry is the append-only record of one settled unlock. Price always
// equals OwnerShare plus PlatformCut.
type LedgerEntry struct {
	EntryID       string
	GrantID       string
	NovelID       string
	BuyerID       string
	OwnerID       string
	ChapterNumber int
	ChapterPart   int
	Price         int64
	OwnerShare    int64
	PlatformCut   int64
	CreatedAt     time.Time
}
