// Package app wires repositories, services and the event bus for the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"factoryledger/internal/config"
	"factoryledger/internal/core/notify"
	"factoryledger/internal/domain/auth"
	"factoryledger/internal/domain/bridge"
	"factoryledger/internal/domain/costing"
	"factoryledger/internal/domain/events"
	"factoryledger/internal/domain/finance"
	"factoryledger/internal/domain/ledger"
	"factoryledger/internal/domain/movement"
	"factoryledger/internal/domain/posting"
	"factoryledger/internal/domain/restore"
	"factoryledger/internal/domain/status"
	v1 "factoryledger/internal/infrastructure/http/v1"
	"factoryledger/internal/infrastructure/storage/postgres"
	"factoryledger/internal/infrastructure/storage/postgres/catalog_repo"
	"factoryledger/internal/infrastructure/storage/postgres/document_repo"
	"factoryledger/internal/infrastructure/storage/postgres/finance_repo"
	"factoryledger/internal/infrastructure/storage/postgres/ledger_repo"
	"factoryledger/internal/infrastructure/storage/postgres/register_repo"
	"factoryledger/internal/infrastructure/storage/postgres/restore_repo"
	"factoryledger/pkg/logger"
)

// App holds everything a binary may need.
type App struct {
	Config    *config.Config
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Bus       *events.Bus

	Movements  *movement.Service
	Costs      *costing.Service
	Finance    *finance.Service
	Ledger     *ledger.Service
	Bridge     *bridge.Service
	Translator *posting.Translator
	Status     *status.Service
	Restore    *restore.Service
	Relay      *postgres.OutboxRelay
}

// New connects to the database, applies the schema and builds all services.
// Translator and bridge are subscribed to the bus before New returns.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(
		cfg.Postgres.URL, int32(cfg.Postgres.MaxConns), int32(cfg.Postgres.MinConns)))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := postgres.ApplySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	txManager := postgres.NewTxManager(pool)
	notifier := notify.ContextNotifier{}
	bus := events.NewBus()

	items := catalog_repo.NewItemRepo(txManager)
	movementRepo := register_repo.NewMovementRepo(txManager)
	documents := document_repo.NewDocumentRepo(txManager)
	financeRepo := finance_repo.NewFinanceRepo(txManager)
	ledgerRepo := ledger_repo.NewLedgerRepo(txManager)

	a := &App{Config: cfg, Pool: pool, TxManager: txManager, Bus: bus}

	a.Movements = movement.NewService(movementRepo, items, notifier)
	a.Costs = costing.NewService(items, txManager)
	a.Finance = finance.NewService(financeRepo, txManager, events.FinancialPublisher{Bus: bus}, notifier)
	a.Ledger = ledger.NewService(ledgerRepo, txManager)
	a.Bridge = bridge.NewService(txManager, financeRepo, documents, a.Finance, a.Ledger)
	a.Translator = posting.NewTranslator(txManager, documents, items, a.Movements, movementRepo, notifier)
	a.Status = status.NewService(documents, postgres.NewOutbox(txManager), bus, txManager, notifier)
	a.Restore = restore.NewService(restore_repo.NewRestoreRepo(txManager), a.Ledger, restore.Options{
		BatchSize:      cfg.Restore.BatchSize,
		ErrorTolerance: cfg.Restore.ErrorTolerance,
	})
	a.Relay = postgres.NewOutboxRelay(txManager, cfg.Outbox.BatchSize, postgres.BusHandler{Bus: bus})

	a.Translator.Register(bus)
	a.Bridge.Register(bus, documents)

	logger.Info(ctx, "application wired",
		"invoice_handlers", bus.Handlers(events.InvoiceStatusChange),
		"return_handlers", bus.Handlers(events.ReturnStatusChange),
	)
	return a, nil
}

// Router builds the HTTP API over the app's services.
func (a *App) Router(log *logger.Logger) *gin.Engine {
	rc := v1.RouterConfig{
		Pool:         a.Pool,
		Logger:       log,
		AuthRequired: a.Config.Auth.Required,
		Movements:    a.Movements,
		Adjuster:     a.Translator,
		Costs:        a.Costs,
		Statuses:     a.Status,
		Balances:     a.Finance,
		Bridge:       a.Bridge,
		Ledger:       a.Ledger,
		Restorer:     a.Restore,
	}
	if a.Config.Auth.JWTSecret != "" {
		rc.JWTValidator = auth.NewJWTService(auth.DefaultJWTConfig(a.Config.Auth.JWTSecret))
	}
	return v1.NewRouter(rc)
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}
