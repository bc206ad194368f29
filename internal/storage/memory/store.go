package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Store — in-memory реализация domain.UnitOfWork для локальной разработки
// и тестов. Всё состояние живёт за одним мьютексом; Within снимает снапшот
// состояния и откатывает его при ошибке, поэтому атомарность checkout и
// переходов статуса сохраняется и без Postgres.
type Store struct {
	mu sync.Mutex
	st *state
}

// state — все таблицы магазина одним значением, чтобы снапшот был дешёвым.
type state struct {
	carts       map[string]domain.Cart
	orders      map[string]domain.Order
	history     map[string][]domain.StatusChange
	payments    map[string]domain.Payment
	promotions  map[string]domain.PromotionCode
	invoices    map[string]domain.Invoice
	invoiceSeq  int64
	products    map[string]domain.Product
	outbox      map[string]outboxRecord
	idempotency map[string]domain.IdempotencyRecord
}

// NewStore создаёт пустой in-memory store.
func NewStore() *Store {
	return &Store{st: newState()}
}

func newState() *state {
	return &state{
		carts:       make(map[string]domain.Cart),
		orders:      make(map[string]domain.Order),
		history:     make(map[string][]domain.StatusChange),
		payments:    make(map[string]domain.Payment),
		promotions:  make(map[string]domain.PromotionCode),
		invoices:    make(map[string]domain.Invoice),
		products:    make(map[string]domain.Product),
		outbox:      make(map[string]outboxRecord),
		idempotency: make(map[string]domain.IdempotencyRecord),
	}
}

// SeedProducts загружает товары каталога (локальная разработка, тесты).
func (s *Store) SeedProducts(products []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.st.products[p.ID] = p
	}
}

// SeedPromotions загружает промокоды.
func (s *Store) SeedPromotions(promos []domain.PromotionCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range promos {
		s.st.promotions[p.Code] = p
	}
}

// Catalog возвращает read-only представление каталога поверх того же состояния.
func (s *Store) Catalog() domain.CatalogView {
	return &catalogViewInMemory{store: s}
}

// Carts возвращает автономный репозиторий корзин.
func (s *Store) Carts() domain.CartRepository { return &cartRepositoryInMemory{store: s} }

// Orders возвращает автономный репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository { return &orderRepositoryInMemory{store: s} }

// Payments возвращает автономный репозиторий платежей.
func (s *Store) Payments() domain.PaymentRepository { return &paymentRepositoryInMemory{store: s} }

// Promotions возвращает автономный репозиторий промокодов.
func (s *Store) Promotions() domain.PromotionRepository {
	return &promotionRepositoryInMemory{store: s}
}

// Invoices возвращает автономный репозиторий счетов.
func (s *Store) Invoices() domain.InvoiceRepository { return &invoiceRepositoryInMemory{store: s} }

// Stock возвращает автономный доступ к стоку каталога.
func (s *Store) Stock() domain.StockRepository { return &stockRepositoryInMemory{store: s} }

// Outbox возвращает автономный репозиторий transactional outbox.
func (s *Store) Outbox() domain.OutboxRepository { return &outboxRepositoryInMemory{store: s} }

// Idempotency возвращает репозиторий ключей идемпотентности.
func (s *Store) Idempotency() domain.IdempotencyRepository {
	return &idempotencyRepositoryInMemory{store: s}
}

// Within выполняет fn над одним согласованным состоянием. Мьютекс держится
// на всё время fn, поэтому конкурентные единицы работы строго сериализуются;
// ошибка fn откатывает состояние к снапшоту.
func (s *Store) Within(ctx context.Context, fn func(domain.RepoSet) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(txRepoSet{store: s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// txRepoSet отдаёт репозитории, работающие без захвата мьютекса:
// он уже удерживается Within.
type txRepoSet struct {
	store *Store
}

func (t txRepoSet) Carts() domain.CartRepository       { return &cartRepositoryInMemory{store: t.store, inTx: true} }
func (t txRepoSet) Orders() domain.OrderRepository     { return &orderRepositoryInMemory{store: t.store, inTx: true} }
func (t txRepoSet) Payments() domain.PaymentRepository { return &paymentRepositoryInMemory{store: t.store, inTx: true} }
func (t txRepoSet) Promotions() domain.PromotionRepository {
	return &promotionRepositoryInMemory{store: t.store, inTx: true}
}
func (t txRepoSet) Invoices() domain.InvoiceRepository {
	return &invoiceRepositoryInMemory{store: t.store, inTx: true}
}
func (t txRepoSet) Stock() domain.StockRepository   { return &stockRepositoryInMemory{store: t.store, inTx: true} }
func (t txRepoSet) Outbox() domain.OutboxRepository { return &outboxRepositoryInMemory{store: t.store, inTx: true} }
func (t txRepoSet) Catalog() domain.CatalogView     { return &catalogViewInMemory{store: t.store, inTx: true} }

// acquire захватывает мьютекс store, если репозиторий используется вне
// транзакции. Возвращённая функция снимает блокировку.
func (s *Store) acquire(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func ownerKey(owner domain.Identity) string {
	return fmt.Sprintf("%s:%s", owner.Kind(), owner.Value())
}

func (st *state) clone() *state {
	dst := &state{
		carts:       make(map[string]domain.Cart, len(st.carts)),
		orders:      make(map[string]domain.Order, len(st.orders)),
		history:     make(map[string][]domain.StatusChange, len(st.history)),
		payments:    make(map[string]domain.Payment, len(st.payments)),
		promotions:  make(map[string]domain.PromotionCode, len(st.promotions)),
		invoices:    make(map[string]domain.Invoice, len(st.invoices)),
		invoiceSeq:  st.invoiceSeq,
		products:    make(map[string]domain.Product, len(st.products)),
		outbox:      make(map[string]outboxRecord, len(st.outbox)),
		idempotency: make(map[string]domain.IdempotencyRecord, len(st.idempotency)),
	}
	for k, v := range st.carts {
		dst.carts[k] = cloneCart(v)
	}
	for k, v := range st.orders {
		dst.orders[k] = cloneOrder(v)
	}
	for k, v := range st.history {
		dst.history[k] = append([]domain.StatusChange(nil), v...)
	}
	for k, v := range st.payments {
		dst.payments[k] = v
	}
	for k, v := range st.promotions {
		dst.promotions[k] = v
	}
	for k, v := range st.invoices {
		dst.invoices[k] = cloneInvoice(v)
	}
	for k, v := range st.products {
		dst.products[k] = v
	}
	for k, v := range st.outbox {
		dst.outbox[k] = cloneOutboxRecord(v)
	}
	for k, v := range st.idempotency {
		dst.idempotency[k] = cloneIdempotencyRecord(v)
	}
	return dst
}

func cloneCart(src domain.Cart) domain.Cart {
	dst := src
	dst.Lines = append([]domain.CartLine(nil), src.Lines...)
	if src.Promotion != nil {
		promo := *src.Promotion
		dst.Promotion = &promo
	}
	return dst
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Lines = append([]domain.OrderLine(nil), src.Lines...)
	return dst
}

func cloneInvoice(src domain.Invoice) domain.Invoice {
	dst := src
	dst.Lines = append([]domain.InvoiceLine(nil), src.Lines...)
	return dst
}

func cloneIdempotencyRecord(src domain.IdempotencyRecord) domain.IdempotencyRecord {
	dst := src
	dst.ResponseBody = append([]byte(nil), src.ResponseBody...)
	return dst
}

// catalogViewInMemory — read-only представление каталога поверх состояния store.
type catalogViewInMemory struct {
	store *Store
	inTx  bool
}

// Product возвращает товар каталога или ErrProductNotFound.
func (v *catalogViewInMemory) Product(_ context.Context, productID string) (domain.Product, error) {
	defer v.store.acquire(v.inTx)()

	product, ok := v.store.st.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// nowUTC выделен, чтобы все репозитории метили записи одинаково.
func nowUTC() time.Time { return time.Now().UTC() }

var (
	_ domain.UnitOfWork  = (*Store)(nil)
	_ domain.RepoSet     = txRepoSet{}
	_ domain.CatalogView = (*catalogViewInMemory)(nil)
)
