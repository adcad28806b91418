package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inkwell/contexts/reading/settlement-service/domain/entities"
	domainerrors "inkwell/contexts/reading/settlement-service/domain/errors"
	"inkwell/contexts/reading/settlement-service/ports"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
)

var errAlreadyOwned = errors.New("grant already exists")

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
	tracer trace.Tracer
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("inkwell/reading/settlement"),
	}
}

func (r *Repository) GetNovel(ctx context.Context, novelID string) (ports.NovelInfo, error) {
	var row novelModel
	err := r.db.WithContext(ctx).
		Where("novel_id = ?", novelID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.NovelInfo{}, domainerrors.ErrNovelNotFound
		}
		return ports.NovelInfo{}, err
	}
	return ports.NovelInfo{NovelID: row.NovelID, OwnerID: row.OwnerID}, nil
}

func (r *Repository) GetChapter(ctx context.Context, novelID string, ref entities.ChapterRef) (ports.ChapterInfo, error) {
	var row chapterModel
	err := r.db.WithContext(ctx).
		Where("novel_id = ? AND number = ? AND part = ?", novelID, ref.Number, ref.Part).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ChapterInfo{}, domainerrors.ErrChapterNotFound
		}
		return ports.ChapterInfo{}, err
	}
	return ports.ChapterInfo{
		Number:    row.Number,
		Part:      row.Part,
		CoinPrice: row.CoinPrice,
		PublishAt: row.PublishAt,
	}, nil
}

func (r *Repository) GetAccount(ctx context.Context, userID string) (entities.CoinAccount, error) {
	var row accountModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.CoinAccount{}, domainerrors.ErrAccountNotFound
		}
		return entities.CoinAccount{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetGrant(ctx context.Context, novelID string, userID string, ref entities.ChapterRef) (entities.UnlockGrant, bool, error) {
	var row grantModel
	err := r.db.WithContext(ctx).
		Where("novel_id = ? AND user_id = ? AND chapter_number = ? AND chapter_part = ?",
			novelID, userID, ref.Number, ref.Part).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.UnlockGrant{}, false, nil
		}
		return entities.UnlockGrant{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetGrantByID(ctx context.Context, grantID string) (entities.UnlockGrant, error) {
	var row grantModel
	err := r.db.WithContext(ctx).
		Where("grant_id = ?", grantID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.UnlockGrant{}, domainerrors.ErrRepositoryInvariantBroke
		}
		return entities.UnlockGrant{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListGrants(ctx context.Context, novelID string, userID string) ([]entities.UnlockGrant, error) {
	var rows []grantModel
	if err := r.db.WithContext(ctx).
		Where("novel_id = ? AND user_id = ?", novelID, userID).
		Order("unlocked_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.UnlockGrant, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// SettleUnlock commits the grant, both balance moves, the ledger entry and
// the outbox message in one transaction. Account rows are locked in a stable
// order so two settlements touching the same pair cannot deadlock.
func (r *Repository) SettleUnlock(ctx context.Context, input ports.SettlementInput) (ports.SettlementOutcome, error) {
	ctx, span := r.tracer.Start(ctx, "settlement.settle_unlock",
		trace.WithAttributes(
			attribute.String("novel.id", input.NovelID),
			attribute.String("buyer.id", input.BuyerID),
			attribute.Int("chapter.number", input.ChapterNumber),
			attribute.Int("chapter.part", input.ChapterPart),
			attribute.Int64("price", input.Price),
		),
	)
	defer span.End()

	envelope := buildUnlockedEnvelope(input.Event)
	payload, err := json.Marshal(envelope)
	if err != nil {
		return ports.SettlementOutcome{}, err
	}

	var buyerBalance int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		buyer, owner, err := lockAccountPair(tx, input.BuyerID, input.OwnerID)
		if err != nil {
			return err
		}
		if buyer.Balance < input.Price {
			return domainerrors.ErrInsufficientFunds
		}

		// Grant insert goes first: the unique (novel, user, chapter) index
		// turns a concurrent duplicate into a clean already-owned outcome
		// before any coin moves.
		grantRow := grantModel{
			GrantID:       input.GrantID,
			NovelID:       input.NovelID,
			UserID:        input.BuyerID,
			ChapterNumber: input.ChapterNumber,
			ChapterPart:   input.ChapterPart,
			PricePaid:     input.Price,
			UnlockedAt:    input.OccurredAt.UTC(),
		}
		if err := tx.Create(&grantRow).Error; err != nil {
			if isUniqueViolation(err) {
				return errAlreadyOwned
			}
			return err
		}

		if err := tx.Model(&accountModel{}).
			Where("user_id = ?", input.OwnerID).
			Updates(map[string]any{
				"balance":    owner.Balance + input.OwnerShare,
				"updated_at": input.OccurredAt.UTC(),
			}).Error; err != nil {
			return err
		}

		buyerBalance = buyer.Balance - input.Price
		if err := tx.Model(&accountModel{}).
			Where("user_id = ?", input.BuyerID).
			Updates(map[string]any{
				"balance":    buyerBalance,
				"updated_at": input.OccurredAt.UTC(),
			}).Error; err != nil {
			return err
		}

		ledgerRow := ledgerModel{
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
			CreatedAt:     input.OccurredAt.UTC(),
		}
		if err := tx.Create(&ledgerRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}

		outboxRow := outboxModel{
			OutboxID:     input.Event.EventID,
			EventType:    input.Event.EventType,
			PartitionKey: input.Event.PartitionKey,
			Payload:      payload,
			Status:       outboxStatusPending,
			CreatedAt:    input.OccurredAt.UTC(),
		}
		if err := tx.Create(&outboxRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}
		return nil
	})
	if errors.Is(err, errAlreadyOwned) {
		span.SetAttributes(attribute.Bool("already_owned", true))
		return ports.SettlementOutcome{AlreadyOwned: true}, nil
	}
	if err != nil {
		span.RecordError(err)
		return ports.SettlementOutcome{}, err
	}

	span.SetAttributes(attribute.Bool("settled", true))
	return ports.SettlementOutcome{BuyerBalance: buyerBalance}, nil
}

func lockAccount(tx *gorm.DB, userID string, dest *accountModel) error {
	return tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(dest).
		Error
}

// lockAccountPair locks the buyer and owner rows sorted by user id, so two
// settlements touching the same pair in reversed roles take the locks in the
// same order and cannot deadlock. A missing buyer row fails the settlement
// with an account error; a missing owner row means the proceeds would have
// nowhere to land, and is reported before any funds check.
func lockAccountPair(tx *gorm.DB, buyerID, ownerID string) (buyer, owner accountModel, err error) {
	ids := []string{buyerID, ownerID}
	if ids[1] < ids[0] {
		ids[0], ids[1] = ids[1], ids[0]
	}

	locked := make(map[string]accountModel, 2)
	for _, id := range ids {
		var row accountModel
		lockErr := lockAccount(tx, id, &row)
		if errors.Is(lockErr, gorm.ErrRecordNotFound) {
			continue
		}
		if lockErr != nil {
			return accountModel{}, accountModel{}, lockErr
		}
		locked[id] = row
	}

	var ok bool
	if buyer, ok = locked[buyerID]; !ok {
		return accountModel{}, accountModel{}, domainerrors.ErrAccountNotFound
	}
	if owner, ok = locked[ownerID]; !ok {
		return accountModel{}, accountModel{}, domainerrors.ErrOwnerNotFound
	}
	return buyer, owner, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", key).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}

	return row.toPort(), true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		GrantID:     record.GrantID,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", record.Key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

type novelModel struct {
	NovelID string `gorm:"column:novel_id;primaryKey"`
	OwnerID string `gorm:"column:owner_id"`
}

func (novelModel) TableName() string { return "novels" }

type chapterModel struct {
	NovelID   string     `gorm:"column:novel_id;primaryKey"`
	Number    int        `gorm:"column:number;primaryKey"`
	Part      int        `gorm:"column:part;primaryKey"`
	CoinPrice int64      `gorm:"column:coin_price"`
	PublishAt *time.Time `gorm:"column:publish_at"`
}

func (chapterModel) TableName() string { return "chapters" }

type accountModel struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	Balance   int64     `gorm:"column:balance"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (accountModel) TableName() string { return "coin_accounts" }

func (m accountModel) toEntity() entities.CoinAccount {
	return entities.CoinAccount{
		UserID:    m.UserID,
		Balance:   m.Balance,
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type grantModel struct {
	GrantID       string    `gorm:"column:grant_id;primaryKey"`
	NovelID       string    `gorm:"column:novel_id"`
	UserID        string    `gorm:"column:user_id"`
	ChapterNumber int       `gorm:"column:chapter_number"`
	ChapterPart   int       `gorm:"column:chapter_part"`
	PricePaid     int64     `gorm:"column:price_paid"`
	UnlockedAt    time.Time `gorm:"column:unlocked_at"`
}

func (grantModel) TableName() string { return "chapter_unlocks" }

func (m grantModel) toEntity() entities.UnlockGrant {
	return entities.UnlockGrant{
		GrantID:       m.GrantID,
		NovelID:       m.NovelID,
		UserID:        m.UserID,
		ChapterNumber: m.ChapterNumber,
		ChapterPart:   m.ChapterPart,
		PricePaid:     m.PricePaid,
		UnlockedAt:    m.UnlockedAt.UTC(),
	}
}

type ledgerModel struct {
	EntryID       string    `gorm:"column:entry_id;primaryKey"`
	GrantID       string    `gorm:"column:grant_id"`
	NovelID       string    `gorm:"column:novel_id"`
	BuyerID       string    `gorm:"column:buyer_id"`
	OwnerID       string    `gorm:"column:owner_id"`
	ChapterNumber int       `gorm:"column:chapter_number"`
	ChapterPart   int       `gorm:"column:chapter_part"`
	Price         int64     `gorm:"column:price"`
	OwnerShare    int64     `gorm:"column:owner_share"`
	PlatformCut   int64     `gorm:"column:platform_cut"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (ledgerModel) TableName() string { return "settlement_ledger" }

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	GrantID     string    `gorm:"column:grant_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string { return "settlement_idempotency" }

func (m idempotencyModel) toPort() ports.IdempotencyRecord {
	return ports.IdempotencyRecord{
		Key:         m.Key,
		RequestHash: m.RequestHash,
		GrantID:     m.GrantID,
		ExpiresAt:   m.ExpiresAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string { return "settlement_outbox" }

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
