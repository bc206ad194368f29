package gateway

import (
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Registry хранит сконфигурированные платёжные шлюзы по их виду.
type Registry struct {
	gateways map[domain.GatewayKind]domain.PaymentGateway
}

// NewRegistry собирает реестр из переданных шлюзов.
func NewRegistry(gateways ...domain.PaymentGateway) *Registry {
	registry := &Registry{gateways: make(map[domain.GatewayKind]domain.PaymentGateway, len(gateways))}
	for _, gw := range gateways {
		registry.gateways[gw.Kind()] = gw
	}
	return registry
}

// ByKind возвращает шлюз по виду либо ошибку для неизвестного вида.
func (r *Registry) ByKind(kind domain.GatewayKind) (domain.PaymentGateway, error) {
	gw, ok := r.gateways[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown gateway %q", domain.ErrValidation, kind)
	}
	return gw, nil
}

// Kinds перечисляет зарегистрированные виды шлюзов.
func (r *Registry) Kinds() []domain.GatewayKind {
	kinds := make([]domain.GatewayKind, 0, len(r.gateways))
	for kind := range r.gateways {
		kinds = append(kinds, kind)
	}
	return kinds
}
