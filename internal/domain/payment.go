package domain

import "time"

// PaymentStatus описывает состояние одной платёжной попытки.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж создан, подтверждение ещё не получено.
	PaymentStatusPending PaymentStatus = "PENDING"
	// PaymentStatusCompleted — шлюз подтвердил списание полной суммы.
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	// PaymentStatusFailed — отказ шлюза, несовпадение суммы или reject на ручной проверке.
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// Terminal сообщает, что платёж больше не изменится. Именно это свойство
// делает обработку callback идемпотентной: повторный callback по
// терминальному платежу возвращает сохранённый результат без re-verify.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// GatewayKind идентифицирует интеграцию платёжного шлюза.
type GatewayKind string

const (
	// GatewayFastPay — автоматический redirect-шлюз.
	GatewayFastPay GatewayKind = "fastpay"
	// GatewayManual — ручной поток: чек загружает покупатель, решение принимает оператор.
	GatewayManual GatewayKind = "manual"
)

// Valid проверяет, что вид шлюза известен системе.
func (g GatewayKind) Valid() bool {
	return g == GatewayFastPay || g == GatewayManual
}

// Машинные коды причин отказа платежа для FailureCode.
const (
	PaymentFailureDeclined       = "DECLINED"
	PaymentFailureAmountMismatch = "AMOUNT_MISMATCH"
	PaymentFailureRejected       = "REJECTED"
	PaymentFailureGatewayError   = "GATEWAY_ERROR"
)

// Payment — одна платёжная попытка по заказу. Заказ может накопить
// несколько попыток; записи никогда не удаляются, мутирует их только
// координатор платежей.
type Payment struct {
	ID          string
	OrderID     string
	Gateway     GatewayKind
	Status      PaymentStatus
	AmountMinor int64
	Currency    string
	// Authority — opaque-токен шлюза, идентифицирующий попытку (внешний authority).
	Authority string
	// ReferenceID — итоговый референс успешной транзакции от шлюза.
	ReferenceID string
	// ReceiptPath — загруженный артефакт чека для ручной проверки.
	ReceiptPath string
	// FailureCode — машинная причина отказа (Payment-Failure* константы).
	FailureCode string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет корректность полей платёжной попытки.
func (p *Payment) Validate() []error {
	var errs []error
	if p.OrderID == "" {
		errs = append(errs, ErrOrderNotFound)
	}
	if !p.Gateway.Valid() {
		errs = append(errs, ErrValidation)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrValidation)
	}
	return errs
}
