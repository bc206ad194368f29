package domain

import (
	"context"
	"time"
)

// CartRepository хранит активные корзины (одна на identity).
type CartRepository interface {
	// FindByOwner возвращает активную корзину identity или ErrCartNotFound.
	FindByOwner(ctx context.Context, owner Identity) (Cart, error)
	// Create сохраняет новую корзину.
	Create(ctx context.Context, cart Cart) error
	// Save применяет обновления с учётом optimistic locking.
	Save(ctx context.Context, cart Cart) error
	// Delete удаляет корзину (единственный штатный случай — checkout и merge).
	Delete(ctx context.Context, cartID string) error
}

// OrderRepository хранит заказы и их append-only историю статусов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с замороженными позициями.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByOwner возвращает заказы identity с опциональным лимитом.
	ListByOwner(ctx context.Context, owner Identity, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	// Позиции не перезаписываются: они неизменяемы после Create.
	Save(ctx context.Context, order Order) error
	// AppendStatusChange дописывает запись истории; история никогда не мутирует.
	AppendStatusChange(ctx context.Context, change StatusChange) error
	// StatusHistory возвращает историю статусов в хронологическом порядке.
	StatusHistory(ctx context.Context, orderID string) ([]StatusChange, error)
}

// PaymentRepository хранит платёжные попытки.
type PaymentRepository interface {
	Create(ctx context.Context, payment Payment) error
	// Get возвращает платёж по идентификатору или ErrPaymentNotFound.
	Get(ctx context.Context, id string) (Payment, error)
	// FindByAuthority ищет платёж по паре (шлюз, authority) — ключ callback.
	FindByAuthority(ctx context.Context, gateway GatewayKind, authority string) (Payment, error)
	// ListByOrder возвращает все попытки по заказу, старые первыми.
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
	// Save применяет обновления с учётом optimistic locking.
	Save(ctx context.Context, payment Payment) error
}

// PromotionRepository хранит промокоды.
type PromotionRepository interface {
	// GetByCode возвращает промокод или ErrPromotionInvalid, если код неизвестен.
	GetByCode(ctx context.Context, code string) (PromotionCode, error)
	Create(ctx context.Context, promo PromotionCode) error
	// IncrementUsage атомарно увеличивает счётчик использований.
	// Возвращает ErrPromotionInvalid, если лимит уже исчерпан: два
	// конкурентных checkout не могут оба пройти через последний слот.
	IncrementUsage(ctx context.Context, code string) error
}

// InvoiceRepository хранит счета.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice Invoice) error
	// GetByOrder возвращает счёт заказа или ErrInvoiceNotFound.
	GetByOrder(ctx context.Context, orderID string) (Invoice, error)
	// ExistsForOrder — guard против двойного выпуска, читается в той же
	// транзакции, что и переход статуса.
	ExistsForOrder(ctx context.Context, orderID string) (bool, error)
	// NextNumber выдаёт следующий последовательный номер счёта.
	NextNumber(ctx context.Context) (string, error)
}

// StockRepository — запись в сток каталога. Выделен из CatalogView:
// чтение цен свободное, а резервирование обязано происходить внутри
// той же атомарной единицы, что и создание заказа.
type StockRepository interface {
	// Reserve списывает qty со стока; ErrProductUnavailable, если не хватает.
	Reserve(ctx context.Context, productID string, qty int32) error
	// Release возвращает qty на сток (отмена/reject ручной проверки).
	Release(ctx context.Context, productID string, qty int32) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// RepoSet — набор репозиториев, видящих одно согласованное состояние.
// Внутри UnitOfWork.Within все репозитории набора работают в одной транзакции.
type RepoSet interface {
	Carts() CartRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Promotions() PromotionRepository
	Invoices() InvoiceRepository
	Stock() StockRepository
	Outbox() OutboxRepository
	// Catalog читает каталог в том же согласованном состоянии, что и
	// остальные репозитории набора: внутри Within чтение цен и стока
	// не должно ходить мимо открытой транзакции.
	Catalog() CatalogView
}

// UnitOfWork — атомарная единица бизнес-операций: checkout, переход статуса,
// инкремент промокода, guard счёта. Вне Within каждый вызов репозитория
// автономен; внутри Within всё либо фиксируется целиком, либо откатывается.
// Сетевые вызовы (gateway verify) внутрь Within не допускаются — блокировки
// строк не должны переживать внешний round-trip.
type UnitOfWork interface {
	RepoSet
	Within(ctx context.Context, fn func(RepoSet) error) error
}
