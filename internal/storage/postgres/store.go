package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	// serializableRetries — сколько раз повторить Within при serialization
	// failure: конкурентные checkout по одному товару неизбежно конфликтуют.
	serializableRetries = 3
)

// querier объединяет *sql.DB и *sql.Tx: репозитории работают одинаково
// автономно и внутри транзакции UnitOfWork.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store оборачивает SQL-подключение к PostgreSQL и реализует domain.UnitOfWork.
type Store struct {
	db *sql.DB
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Carts возвращает автономный репозиторий корзин.
func (s *Store) Carts() domain.CartRepository { return &cartRepository{q: s.db} }

// Orders возвращает автономный репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository { return &orderRepository{q: s.db} }

// Payments возвращает автономный репозиторий платежей.
func (s *Store) Payments() domain.PaymentRepository { return &paymentRepository{q: s.db} }

// Promotions возвращает автономный репозиторий промокодов.
func (s *Store) Promotions() domain.PromotionRepository { return &promotionRepository{q: s.db} }

// Invoices возвращает автономный репозиторий счетов.
func (s *Store) Invoices() domain.InvoiceRepository { return &invoiceRepository{q: s.db} }

// Stock возвращает автономный доступ к стоку каталога.
func (s *Store) Stock() domain.StockRepository { return &stockRepository{q: s.db} }

// Outbox возвращает автономный репозиторий transactional outbox.
func (s *Store) Outbox() domain.OutboxRepository { return &outboxRepository{q: s.db} }

// Idempotency возвращает репозиторий ключей идемпотентности.
func (s *Store) Idempotency() domain.IdempotencyRepository {
	return &idempotencyRepository{q: s.db}
}

// Catalog возвращает read-only представление каталога.
func (s *Store) Catalog() domain.CatalogView { return &catalogView{q: s.db} }

// Within выполняет fn в одной SERIALIZABLE-транзакции и повторяет её при
// serialization failure. Сетевые вызовы внутрь fn не допускаются.
func (s *Store) Within(ctx context.Context, fn func(domain.RepoSet) error) error {
	var lastErr error
	for attempt := 0; attempt <= serializableRetries; attempt++ {
		lastErr = s.withinOnce(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !isSerializationFailure(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("serializable tx retries exhausted: %w", lastErr)
}

func (s *Store) withinOnce(ctx context.Context, fn func(domain.RepoSet) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin serializable tx: %w", err)
	}

	if err := fn(txRepoSet{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

// txRepoSet отдаёт репозитории, привязанные к открытой транзакции.
type txRepoSet struct {
	q querier
}

func (t txRepoSet) Carts() domain.CartRepository           { return &cartRepository{q: t.q} }
func (t txRepoSet) Orders() domain.OrderRepository         { return &orderRepository{q: t.q} }
func (t txRepoSet) Payments() domain.PaymentRepository     { return &paymentRepository{q: t.q} }
func (t txRepoSet) Promotions() domain.PromotionRepository { return &promotionRepository{q: t.q} }
func (t txRepoSet) Invoices() domain.InvoiceRepository     { return &invoiceRepository{q: t.q} }
func (t txRepoSet) Stock() domain.StockRepository          { return &stockRepository{q: t.q} }
func (t txRepoSet) Outbox() domain.OutboxRepository        { return &outboxRepository{q: t.q} }
func (t txRepoSet) Catalog() domain.CatalogView            { return &catalogView{q: t.q} }

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var (
	_ domain.UnitOfWork = (*Store)(nil)
	_ domain.RepoSet    = txRepoSet{}
	_ querier           = (*sql.DB)(nil)
	_ querier           = (*sql.Tx)(nil)
)
