package ports

import (
	"context"
	"time"

	"inkwell/contexts/reading/settlement-service/domain/entities"
	contractsv1 "inkwell/contracts/gen/events/v1"
)

// NovelInfo is the slice of catalog data settlement needs about a novel.
type NovelInfo struct {
	NovelID string
	OwnerID string
}

// ChapterInfo is the slice of catalog data settlement needs about a chapter.
type ChapterInfo struct {
	Number    int
	Part      int
	CoinPrice int64
	PublishAt *time.Time
}

// NovelDirectory resolves catalog facts settlement depends on: who owns a
// novel and what a chapter costs.
type NovelDirectory interface {
	GetNovel(ctx context.Context, novelID string) (NovelInfo, error)
	GetChapter(ctx context.Context, novelID string, ref entities.ChapterRef) (ChapterInfo, error)
}

// AccountRepository is the read-side view of coin balances. All balance
// mutations happen inside GrantLedger.SettleUnlock.
type AccountRepository interface {
	GetAccount(ctx context.Context, userID string) (entities.CoinAccount, error)
}

// UnlockedEvent is the outbound integration payload persisted to outbox.
type UnlockedEvent struct {
	EventID       string
	EventType     string
	GrantID       string
	NovelID       string
	BuyerID       string
	OwnerID       string
	ChapterNumber int
	ChapterPart   int
	PricePaid     int64
	PartitionKey  string
	OccurredAt    time.Time
}

// SettlementInput carries everything SettleUnlock writes in one transaction.
type SettlementInput struct {
	GrantID       string
	NovelID       string
	BuyerID       string
	OwnerID       string
	ChapterNumber int
	ChapterPart   int
	Price         int64
	OwnerShare    int64
	PlatformCut   int64
	Event         UnlockedEvent
	OccurredAt    time.Time
}

// SettlementOutcome reports what SettleUnlock actually did.
type SettlementOutcome struct {
	AlreadyOwned bool
	BuyerBalance int64
}

// GrantLedger owns grant persistence and the settlement write boundary.
type GrantLedger interface {
	GetGrant(ctx context.Context, novelID string, userID string, ref entities.ChapterRef) (entities.UnlockGrant, bool, error)
	GetGrantByID(ctx context.Context, grantID string) (entities.UnlockGrant, error)
	ListGrants(ctx context.Context, novelID string, userID string) ([]entities.UnlockGrant, error)
	// SettleUnlock must atomically verify funds, create the grant, move coins
	// from buyer to owner, append the ledger entry, and persist the outbox
	// event. A concurrent duplicate grant surfaces as AlreadyOwned with no
	// monetary movement.
	SettleUnlock(ctx context.Context, input SettlementInput) (SettlementOutcome, error)
}

// IdempotencyRecord captures dedupe metadata for settlement requests.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	GrantID     string
	ExpiresAt   time.Time
}

// IdempotencyStore abstracts idempotency persistence with TTL handling.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

// CacheInvalidator drops the catalog's cached view after a settled unlock so
// the next read reflects the new grant.
type CacheInvalidator interface {
	InvalidateNovel(ctx context.Context, novelID string) error
}

// Clock allows deterministic testing of settlement timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts grant/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// OutboxMessage is a row ready to relay from the settlement outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
