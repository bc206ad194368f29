package gateway

import (
	"context"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов.
type MockGateway struct {
	GatewayKind domain.GatewayKind

	RequestResult domain.GatewayRequestResult
	RequestErr    error
	VerifyResult  domain.GatewayVerifyResult
	VerifyErr     error

	RequestCalls int
	VerifyCalls  int
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway(kind domain.GatewayKind) *MockGateway {
	return &MockGateway{
		GatewayKind: kind,
		RequestResult: domain.GatewayRequestResult{
			RedirectURL: "https://pay.example/redirect",
			Authority:   "auth-mock",
		},
		VerifyResult: domain.GatewayVerifyResult{
			Confirmed:   true,
			ReferenceID: "ref-mock",
		},
	}
}

// Kind возвращает настроенный вид шлюза.
func (m *MockGateway) Kind() domain.GatewayKind { return m.GatewayKind }

// Request возвращает заранее настроенный результат и считает вызовы.
func (m *MockGateway) Request(_ context.Context, _ domain.Order) (domain.GatewayRequestResult, error) {
	m.RequestCalls++
	return m.RequestResult, m.RequestErr
}

// Verify возвращает настроенный результат и считает вызовы.
func (m *MockGateway) Verify(_ context.Context, _ domain.Payment, _ string) (domain.GatewayVerifyResult, error) {
	m.VerifyCalls++
	return m.VerifyResult, m.VerifyErr
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
