package domain

import (
	"context"
	"time"
)

// Product — проекция товара из Catalog Stock View, достаточная для корзины
// и checkout. Каталог — внешний коллаборатор, здесь только его граница.
type Product struct {
	ID         string
	Title      string
	SKU        string
	PriceMinor int64
	Stock      int32
	Available  bool
	Visible    bool
	Active     bool
}

// Purchasable сообщает, что товар можно положить в корзину и купить.
func (p Product) Purchasable() bool {
	return p.Available && p.Visible && p.Active && p.Stock > 0
}

// CatalogView — read-only доступ к наличию и живым ценам каталога.
type CatalogView interface {
	// Product возвращает товар или ErrProductNotFound.
	Product(ctx context.Context, productID string) (Product, error)
}

// ShippingQuoter считает стоимость доставки для адреса.
type ShippingQuoter interface {
	Quote(ctx context.Context, shippingAddress string) (int64, error)
}

// GatewayRequestResult — результат создания платёжной сессии у шлюза.
type GatewayRequestResult struct {
	// RedirectURL — адрес, на который отправляется плательщик.
	RedirectURL string
	// Authority — opaque-токен шлюза, по нему позже придёт callback.
	Authority string
}

// GatewayVerifyResult — результат проверки платежа у шлюза.
type GatewayVerifyResult struct {
	Confirmed          bool
	SettledAmountMinor int64
	ReferenceID        string
}

// PaymentGateway — capability-интерфейс платёжной интеграции.
// Реализации: автоматический redirect-шлюз и ручной поток с чеком.
// Оба метода делают сетевой I/O и обязаны уважать ctx-таймауты: зависший
// шлюз превращается в GatewayError, а не в вечное ожидание координатора.
type PaymentGateway interface {
	Kind() GatewayKind
	Request(ctx context.Context, order Order) (GatewayRequestResult, error)
	Verify(ctx context.Context, payment Payment, authority string) (GatewayVerifyResult, error)
}

// OutboxMessage хранит событие для последующей публикации наружу.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxPublisher публикует события из transactional outbox; должен быть идемпотентным.
type OutboxPublisher interface {
	Publish(event OutboxMessage) error
}
