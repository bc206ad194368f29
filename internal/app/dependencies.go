package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/checkout/internal/health"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
	"github.com/vladislavdragonenkov/checkout/internal/storage/postgres"
)

// storage объединяет unit-of-work с репозиториями вне транзакционного
// набора: обе реализации хранилища предоставляют одинаковую поверхность.
type storage interface {
	domain.UnitOfWork
	Idempotency() domain.IdempotencyRepository
}

// runtimeDependencies — хранилище и сопутствующие ручки, выбранные по конфигурации.
type runtimeDependencies struct {
	store          storage
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies инициализирует хранилище по cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		if cfg.SeedDemoData {
			seedDemoData(store)
			logger.Info("memory-хранилище наполнено демо-данными")
		}
		return &runtimeDependencies{
			store: store,
			storageChecker: healthcheck.NewCheckFunc("storage", func() error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres storage driver requires CHECKOUT_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("ensure postgres schema: %w", err)
			}
			logger.Info("схема postgres актуальна")
		}
		return &runtimeDependencies{
			store: store,
			storageChecker: healthcheck.NewCheckFunc("storage", func() error {
				pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return store.Ping(pingCtx)
			}),
			closeFn: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// seedDemoData кладёт в memory-хранилище небольшой каталог и промокод,
// чтобы сервис был пригоден к ручной проверке сразу после запуска.
func seedDemoData(store *memory.Store) {
	store.SeedProducts([]domain.Product{
		{ID: "demo-keyboard", Title: "Клавиатура", SKU: "KB-001", PriceMinor: 450000, Stock: 25, Available: true, Visible: true, Active: true},
		{ID: "demo-mouse", Title: "Мышь", SKU: "MS-001", PriceMinor: 190000, Stock: 40, Available: true, Visible: true, Active: true},
		{ID: "demo-monitor", Title: "Монитор", SKU: "MN-001", PriceMinor: 2390000, Stock: 10, Available: true, Visible: true, Active: true},
	})
	store.SeedPromotions([]domain.PromotionCode{
		{Code: "WELCOME10", Kind: domain.DiscountPercentage, Percent: 10, MaxDiscountMinor: 300000, Active: true},
	})
}
