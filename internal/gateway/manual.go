package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// ManualGateway — «шлюз» офлайн-оплаты: покупатель переводит деньги сам и
// прикладывает чек, подтверждает платёж администратор. Сетевых вызовов нет.
type ManualGateway struct{}

// NewManualGateway создаёт шлюз ручной оплаты.
func NewManualGateway() *ManualGateway { return &ManualGateway{} }

// Kind возвращает вид шлюза.
func (g *ManualGateway) Kind() domain.GatewayKind { return domain.GatewayManual }

// Request выдаёт локальный authority без redirect: платёжной сессии у
// внешнего провайдера не существует.
func (g *ManualGateway) Request(_ context.Context, _ domain.Order) (domain.GatewayRequestResult, error) {
	return domain.GatewayRequestResult{
		Authority: "manual-" + uuid.NewString(),
	}, nil
}

// Verify недоступен: исход ручного платежа решает администратор, а не шлюз.
func (g *ManualGateway) Verify(_ context.Context, payment domain.Payment, _ string) (domain.GatewayVerifyResult, error) {
	return domain.GatewayVerifyResult{}, &domain.GatewayError{
		Gateway: g.Kind(),
		Op:      "verify",
		Reason:  fmt.Sprintf("payment %s requires admin review", payment.ID),
	}
}

var _ domain.PaymentGateway = (*ManualGateway)(nil)
