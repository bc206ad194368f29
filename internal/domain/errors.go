package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIdentityRequired — не передан ни ID покупателя, ни анонимный токен.
	ErrIdentityRequired = errors.New("identity: authenticated id or anonymous token is required")
	// ErrCartNotFound возвращается, если активная корзина не найдена.
	ErrCartNotFound = errors.New("cart not found")
	// ErrProductNotFound — товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductUnavailable — товар нельзя купить: скрыт, неактивен или нет стока.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrInvalidQuantity — некорректное количество (отрицательное либо нулевое при добавлении).
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrPromotionInvalid — промокод неизвестен, выключен, вне окна действия или исчерпан.
	ErrPromotionInvalid = errors.New("promotion invalid")
	// ErrPromotionBelowMinimum — сумма корзины ниже порога промокода.
	ErrPromotionBelowMinimum = errors.New("promotion below minimum purchase")
	// ErrCheckoutValidation — checkout отклонён целиком, ничего не создано.
	ErrCheckoutValidation = errors.New("checkout validation failed")
	// ErrInvalidTransition — переход статуса заказа не разрешён таблицей переходов.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrGatewayRequestFailed — шлюз не смог создать платёжную сессию.
	ErrGatewayRequestFailed = errors.New("gateway request failed")
	// ErrGatewayVerifyFailed — шлюз не смог подтвердить платёж (сетевая/протокольная ошибка).
	ErrGatewayVerifyFailed = errors.New("gateway verify failed")
	// ErrAmountMismatch — шлюз подтвердил платёж, но сумма не совпала с заказом.
	// Отдельная ошибка: такие случаи уходят в fraud-review, а не в обычный decline.
	ErrAmountMismatch = errors.New("settled amount does not match order total")
	// ErrInvoiceNotFound возвращается, если счёт для заказа ещё не выпущен.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrInvoiceAlreadyExists защищает от повторного выпуска счёта на один заказ.
	ErrInvoiceAlreadyExists = errors.New("invoice already exists for order")
	// ErrVersionConflict сигнализирует о конфликте optimistic locking при сохранении.
	ErrVersionConflict = errors.New("version conflict")
	// ErrNotOwner — объект принадлежит другому покупателю.
	ErrNotOwner = errors.New("object is owned by another party")
	// ErrValidation — некорректная форма входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrOutboxPublish — ошибка публикации/учёта сообщения transactional outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой ключ идемпотентности.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой hash тела запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован (повторная отправка).
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyKeyNotFound — запись по ключу не найдена.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyHashMismatch — тот же ключ, но другое тело запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency request hash mismatch")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// InvalidTransitionError несёт пару (from, to) для недопустимого перехода.
// errors.Is(err, ErrInvalidTransition) остаётся рабочим через метод Is.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition: %s -> %s", e.From, e.To)
}

// Is связывает типизированную ошибку с sentinel ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// LineFailure описывает одну позицию корзины, не прошедшую re-валидацию на checkout.
type LineFailure struct {
	ProductID string
	Reason    error
}

// CheckoutValidationError агрегирует все отказы checkout: позиция за позицией,
// чтобы клиент видел полную картину, а не первую попавшуюся ошибку.
type CheckoutValidationError struct {
	Failures []LineFailure
}

func (e *CheckoutValidationError) Error() string {
	if len(e.Failures) == 0 {
		return "checkout validation failed: cart is empty"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.ProductID, f.Reason))
	}
	return "checkout validation failed: " + strings.Join(parts, "; ")
}

// Is связывает типизированную ошибку с sentinel ErrCheckoutValidation.
func (e *CheckoutValidationError) Is(target error) bool {
	return target == ErrCheckoutValidation
}

// GatewayError оборачивает отказ внешнего платёжного шлюза с машинной причиной.
type GatewayError struct {
	Gateway GatewayKind
	Op      string // "request" | "verify"
	Reason  string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s %s failed: %s: %v", e.Gateway, e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("gateway %s %s failed: %s", e.Gateway, e.Op, e.Reason)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is сопоставляет ошибку с ErrGatewayRequestFailed либо ErrGatewayVerifyFailed
// в зависимости от операции.
func (e *GatewayError) Is(target error) bool {
	switch e.Op {
	case "request":
		return target == ErrGatewayRequestFailed
	case "verify":
		return target == ErrGatewayVerifyFailed
	default:
		return false
	}
}
