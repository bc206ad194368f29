package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// StatusCart — псевдо-состояние: строки заказа ещё нет, её моделирует корзина.
	StatusCart OrderStatus = "CART"
	// StatusPending — заказ создан, оплата ещё не инициирована или не завершена.
	StatusPending OrderStatus = "PENDING"
	// StatusAwaitingVerification — загружен чек, платёж ждёт ручной проверки.
	StatusAwaitingVerification OrderStatus = "AWAITING_VERIFICATION"
	// StatusProcessing — платёж в обработке у шлюза.
	StatusProcessing OrderStatus = "PROCESSING"
	// StatusConfirmed — оплата подтверждена, заказ принят к исполнению.
	StatusConfirmed OrderStatus = "CONFIRMED"
	// StatusShipped — заказ передан в доставку.
	StatusShipped OrderStatus = "SHIPPED"
	// StatusDelivered — заказ доставлен покупателю.
	StatusDelivered OrderStatus = "DELIVERED"
	// StatusCancelled — заказ отменён до завершения цикла.
	StatusCancelled OrderStatus = "CANCELLED"
	// StatusRefunded — средства возвращены покупателю.
	StatusRefunded OrderStatus = "REFUNDED"
	// StatusReturned — доставленный заказ возвращён.
	StatusReturned OrderStatus = "RETURNED"
)

// allowedTransitions — единственный источник истины для переходов статуса.
// Правило «SHIPPED и позже нельзя отменить напрямую» обеспечивается самой
// таблицей: у SHIPPED и DELIVERED нет ребра в CANCELLED.
// RETURNED → REFUNDED закрывает возвратный путь после доставки.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	StatusCart:                 {StatusPending},
	StatusPending:              {StatusProcessing, StatusAwaitingVerification, StatusCancelled},
	StatusAwaitingVerification: {StatusConfirmed, StatusCancelled},
	StatusProcessing:           {StatusConfirmed, StatusCancelled},
	StatusConfirmed:            {StatusShipped, StatusCancelled},
	StatusShipped:              {StatusDelivered},
	StatusDelivered:            {StatusReturned},
	StatusReturned:             {StatusRefunded},
}

// AllowedTransitions возвращает разрешённые целевые статусы для текущего.
func AllowedTransitions(from OrderStatus) []OrderStatus {
	return allowedTransitions[from]
}

// CanTransition проверяет, разрешён ли переход таблицей.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal сообщает, что из статуса нет исходящих переходов, закрывающих заказ.
// DELIVERED формально терминален для отмены, но допускает возврат.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// Valid проверяет, что статус относится к известным значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusCart, StatusPending, StatusAwaitingVerification, StatusProcessing,
		StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled,
		StatusRefunded, StatusReturned:
		return true
	default:
		return false
	}
}

// OrderLine — замороженный снимок позиции корзины на момент checkout.
// Цена и количество после создания не пересчитываются.
type OrderLine struct {
	ID         string
	ProductID  string
	Title      string
	SKU        string
	Qty        int32
	PriceMinor int64
	CreatedAt  time.Time
}

// StatusChange — одна запись append-only истории статусов заказа.
type StatusChange struct {
	OrderID  string
	From     OrderStatus
	To       OrderStatus
	Actor    string
	Note     string
	Occurred time.Time
}

// Order — неизменяемая после создания запись покупки. Мутирует только
// status (плюс tracking code при отгрузке); суммы и позиции заморожены.
type Order struct {
	ID              string
	Owner           Identity
	Status          OrderStatus
	Currency        string
	SubtotalMinor   int64
	DiscountMinor   int64
	ShippingMinor   int64
	TotalMinor      int64
	PromotionCode   string
	ShippingAddress string
	PhoneNumber     string
	TrackingCode    string
	Lines           []OrderLine
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TransitionTo валидирует переход по таблице и применяет его, возвращая
// запись для истории. При запрете состояние заказа не меняется.
func (o *Order) TransitionTo(to OrderStatus, actor, note string) (StatusChange, error) {
	if !CanTransition(o.Status, to) {
		return StatusChange{}, &InvalidTransitionError{From: o.Status, To: to}
	}
	change := StatusChange{
		OrderID:  o.ID,
		From:     o.Status,
		To:       to,
		Actor:    actor,
		Note:     note,
		Occurred: time.Now().UTC(),
	}
	o.Status = to
	o.UpdatedAt = change.Occurred
	return change, nil
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
// Ключевой инвариант: subtotal − discount + shipping == total, где subtotal
// равен сумме qty × price по замороженным позициям.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.Owner.IsZero() {
		errs = append(errs, ErrIdentityRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrValidation)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrCheckoutValidation)
	}
	if o.DiscountMinor < 0 || o.ShippingMinor < 0 || o.TotalMinor < 0 {
		errs = append(errs, ErrValidation)
	}

	var calc int64
	for _, line := range o.Lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if line.PriceMinor < 0 {
			errs = append(errs, ErrValidation)
		}
		calc += int64(line.Qty) * line.PriceMinor
	}
	if calc != o.SubtotalMinor {
		errs = append(errs, ErrValidation)
	}
	if o.SubtotalMinor-o.DiscountMinor+o.ShippingMinor != o.TotalMinor {
		errs = append(errs, ErrValidation)
	}

	return errs
}
