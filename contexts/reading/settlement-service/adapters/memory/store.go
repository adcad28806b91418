package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"inkwell/contexts/reading/settlement-service/domain/entities"
	domainerrors "inkwell/contexts/reading/settlement-service/domain/errors"
	"inkwell/contexts/reading/settlement-service/ports"
)

// Store is an in-memory adapter implementing every settlement port for local
// runtime and tests. It mirrors the transactional guarantees of the Postgres
// adapter under a single mutex.
type Store struct {
	mu          sync.Mutex
	novels      map[string]ports.NovelInfo
	chapters    map[string]map[entities.ChapterRef]ports.ChapterInfo
	accounts    map[string]entities.CoinAccount
	grants      map[string]entities.UnlockGrant
	grantsByRef map[grantKey]string
	ledger      []entities.LedgerEntry
	idempotency map[string]ports.IdempotencyRecord
	outbox      []outboxRow
	settleErrs  map[entities.ChapterRef]error

	invalidated []string
}

type grantKey struct {
	novelID string
	userID  string
	ref     entities.ChapterRef
}

type outboxRow struct {
	message ports.OutboxMessage
	sent    bool
}

func NewStore() *Store {
	return &Store{
		novels:      make(map[string]ports.NovelInfo),
		chapters:    make(map[string]map[entities.ChapterRef]ports.ChapterInfo),
		accounts:    make(map[string]entities.CoinAccount),
		grants:      make(map[string]entities.UnlockGrant),
		grantsByRef: make(map[grantKey]string),
		idempotency: make(map[string]ports.IdempotencyRecord),
		settleErrs:  make(map[entities.ChapterRef]error),
	}
}

func (s *Store) GetNovel(_ context.Context, novelID string) (ports.NovelInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	novel, ok := s.novels[novelID]
	if !ok {
		return ports.NovelInfo{}, domainerrors.ErrNovelNotFound
	}
	return novel, nil
}

func (s *Store) GetChapter(_ context.Context, novelID string, ref entities.ChapterRef) (ports.ChapterInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chapter, ok := s.chapters[novelID][ref]
	if !ok {
		return ports.ChapterInfo{}, domainerrors.ErrChapterNotFound
	}
	return chapter, nil
}

func (s *Store) GetAccount(_ context.Context, userID string) (entities.CoinAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[userID]
	if !ok {
		return entities.CoinAccount{}, domainerrors.ErrAccountNotFound
	}
	return account, nil
}

func (s *Store) GetGrant(_ context.Context, novelID string, userID string, ref entities.ChapterRef) (entities.UnlockGrant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grantID, ok := s.grantsByRef[grantKey{novelID: novelID, userID: userID, ref: ref}]
	if !ok {
		return entities.UnlockGrant{}, false, nil
	}
	return s.grants[grantID], true, nil
}

func (s *Store) GetGrantByID(_ context.Context, grantID string) (entities.UnlockGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[grantID]
	if !ok {
		return entities.UnlockGrant{}, domainerrors.ErrRepositoryInvariantBroke
	}
	return grant, nil
}

func (s *Store) ListGrants(_ context.Context, novelID string, userID string) ([]entities.UnlockGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []entities.UnlockGrant
	for _, grant := range s.grants {
		if grant.NovelID == novelID && grant.UserID == userID {
			items = append(items, grant)
		}
	}
	return items, nil
}

func (s *Store) SettleUnlock(_ context.Context, input ports.SettlementInput) (ports.SettlementOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := entities.ChapterRef{Number: input.ChapterNumber, Part: input.ChapterPart}
	if err, ok := s.settleErrs[ref]; ok {
		delete(s.settleErrs, ref)
		return ports.SettlementOutcome{}, err
	}

	if _, owned := s.grantsByRef[grantKey{novelID: input.NovelID, userID: input.BuyerID, ref: ref}]; owned {
		return ports.SettlementOutcome{AlreadyOwned: true}, nil
	}

	buyer, ok := s.accounts[input.BuyerID]
	if !ok {
		return ports.SettlementOutcome{}, domainerrors.ErrAccountNotFound
	}
	owner, ok := s.accounts[input.OwnerID]
	if !ok {
		return ports.SettlementOutcome{}, domainerrors.ErrOwnerNotFound
	}
	if !buyer.CanAfford(input.Price) {
		return ports.SettlementOutcome{}, domainerrors.ErrInsufficientFunds
	}

	buyer.Balance -= input.Price
	buyer.UpdatedAt = input.OccurredAt
	s.accounts[input.BuyerID] = buyer

	owner.Balance += input.OwnerShare
	owner.UpdatedAt = input.OccurredAt
	s.accounts[input.OwnerID] = owner

	grant := entities.UnlockGrant{
		GrantID:       input.GrantID,
		NovelID:       input.NovelID,
		UserID:        input.BuyerID,
		ChapterNumber: input.ChapterNumber,
		ChapterPart:   input.ChapterPart,
		PricePaid:     input.Price,
		UnlockedAt:    input.OccurredAt,
	}
	s.grants[grant.GrantID] = grant
	s.grantsByRef[grantKey{novelID: input.NovelID, userID: input.BuyerID, ref: ref}] = grant.GrantID

	s.ledger = append(s.ledger, entities.LedgerEntry{
		EntryID:       input.Event.EventID,
		GrantID:       input.GrantID,
		NovelID:       input.NovelID,
		BuyerID:       input.BuyerID,
		OwnerID:       input.OwnerID,
		ChapterNumber: input.ChapterNumber,
		ChapterPart:   input.ChapterPart,
		Price:         input.Price,
		OwnerShare:    input.OwnerShare,
		PlatformCut:   input.PlatformCut,
		CreatedAt:     input.OccurredAt,
	})

	payload, err := json.Marshal(buildUnlockedEnvelope(input.Event))
	if err != nil {
		return ports.SettlementOutcome{}, err
	}
	s.outbox = append(s.outbox, outboxRow{message: ports.OutboxMessage{
		OutboxID:     input.Event.EventID,
		EventType:    input.Event.EventType,
		PartitionKey: input.Event.PartitionKey,
		Payload:      payload,
		CreatedAt:    input.OccurredAt,
	}})

	return ports.SettlementOutcome{BuyerBalance: buyer.Balance}, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.IsZero() && now.After(record.ExpiresAt) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.idempotency[record.Key]
	if ok && existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	if !ok {
		s.idempotency[record.Key] = record
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	var items []ports.OutboxMessage
	for _, row := range s.outbox {
		if row.sent {
			continue
		}
		items = append(items, row.message)
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].message.OutboxID == outboxID {
			s.outbox[i].sent = true
			return nil
		}
	}
	return domainerrors.ErrRepositoryInvariantBroke
}

func (s *Store) InvalidateNovel(_ context.Context, novelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, novelID)
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// SeedNovel installs catalog facts about a novel.
func (s *Store) SeedNovel(info ports.NovelInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.novels[info.NovelID] = info
}

func (s *Store) SeedChapter(novelID string, info ports.ChapterInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chapters[novelID] == nil {
		s.chapters[novelID] = make(map[entities.ChapterRef]ports.ChapterInfo)
	}
	s.chapters[novelID][entities.ChapterRef{Number: info.Number, Part: info.Part}] = info
}

func (s *Store) SeedAccount(userID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[userID] = entities.CoinAccount{UserID: userID, Balance: balance}
}

// FailNextSettle makes the next settlement attempt for ref fail with err.
// Tests use it to simulate transient write failures mid-batch.
func (s *Store) FailNextSettle(ref entities.ChapterRef, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleErrs[ref] = err
}

// LedgerEntries returns a copy of the append-only settlement ledger.
func (s *Store) LedgerEntries() []entities.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.LedgerEntry(nil), s.ledger...)
}

// InvalidatedNovels reports every cache invalidation issued so far.
func (s *Store) InvalidatedNovels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.invalidated...)
}

// PendingOutboxCount reports unsent outbox rows.
func (s *Store) PendingOutboxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, row := range s.outbox {
		if !row.sent {
			count++
		}
	}
	return count
}

func buildUnlockedEnvelope(event ports.UnlockedEvent) ports.EventEnvelope {
	data, _ := json.Marshal(map[string]any{
		"grant_id":       event.GrantID,
		"novel_id":       event.NovelID,
		"buyer_id":       event.BuyerID,
		"owner_id":       event.OwnerID,
		"chapter_number": event.ChapterNumber,
		"chapter_part":   event.ChapterPart,
		"price_paid":     event.PricePaid,
	})
	return ports.EventEnvelope{
		EventID:          event.EventID,
		EventType:        event.EventType,
		OccurredAt:       event.OccurredAt.UTC(),
		SourceService:    "settlement-service",
		SchemaVersion:    1,
		PartitionKeyPath: "novel_id",
		PartitionKey:     event.PartitionKey,
		Data:             data,
	}
}
