package settlementservice

import (
	"log/slog"
	"time"

	httpadapter "inkwell/contexts/reading/settlement-service/adapters/http"
	"inkwell/contexts/reading/settlement-service/adapters/memory"
	"inkwell/contexts/reading/settlement-service/application/commands"
	"inkwell/contexts/reading/settlement-service/application/queries"
	"inkwell/contexts/reading/settlement-service/application/workers"
	"inkwell/contexts/reading/settlement-service/ports"
)

// Module is the composition surface for chapter settlement within Inkwell.
// Runtime wiring should consume Handler and Relay; Store is exposed for
// tests/inspection.
type Module struct {
	Handler httpadapter.Handler
	Relay   workers.OutboxRelay
	Store   *memory.Store
}

type Dependencies struct {
	Accounts          ports.AccountRepository
	Ledger            ports.GrantLedger
	Directory         ports.NovelDirectory
	Idempotency       ports.IdempotencyStore
	Outbox            ports.OutboxRepository
	Publisher         ports.EventPublisher
	Cache             ports.CacheInvalidator
	Clock             ports.Clock
	IDGenerator       ports.IDGenerator
	OwnerSharePercent int
	IdempotencyTTL    time.Duration
	OutboxTopic       string
	OutboxBatchSize   int
	Logger            *slog.Logger
}

// NewModule wires the settlement use-cases against explicit ports.
func NewModule(deps Dependencies) Module {
	purchaseChapter := commands.PurchaseChapterUseCase{
		Accounts:          deps.Accounts,
		Ledger:            deps.Ledger,
		Directory:         deps.Directory,
		Idempotency:       deps.Idempotency,
		Cache:             deps.Cache,
		Clock:             deps.Clock,
		IDGenerator:       deps.IDGenerator,
		OwnerSharePercent: deps.OwnerSharePercent,
		IdempotencyTTL:    deps.IdempotencyTTL,
		Logger:            deps.Logger,
	}
	purchaseBatch := commands.PurchaseBatchUseCase{
		Accounts:  deps.Accounts,
		Ledger:    deps.Ledger,
		Directory: deps.Directory,
		Purchase:  purchaseChapter,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	getWallet := queries.GetWalletUseCase{
		Accounts: deps.Accounts,
		Logger:   deps.Logger,
	}
	listUnlocks := queries.ListUnlocksUseCase{
		Ledger: deps.Ledger,
		Logger: deps.Logger,
	}
	relay := workers.OutboxRelay{
		Outbox:    deps.Outbox,
		Publisher: deps.Publisher,
		Clock:     deps.Clock,
		Topic:     deps.OutboxTopic,
		BatchSize: deps.OutboxBatchSize,
		Logger:    deps.Logger,
	}

	handler := httpadapter.Handler{
		PurchaseChapter: purchaseChapter,
		PurchaseBatch:   purchaseBatch,
		GetWallet:       getWallet,
		ListUnlocks:     listUnlocks,
		Logger:          deps.Logger,
	}

	return Module{
		Handler: handler,
		Relay:   relay,
	}
}

// NewInMemoryModule wires settlement against the in-memory store. This is the
// developer/test bootstrap path; production wiring substitutes the Postgres
// repository in bootstrap.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Accounts:       store,
		Ledger:         store,
		Directory:      store,
		Idempotency:    store,
		Outbox:         store,
		Cache:          store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
