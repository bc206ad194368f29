package shipping

import (
	"context"
	"strings"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// FlatFeeQuoter — простейший расчёт доставки: фиксированный тариф плюс
// бесплатная доставка от порога. Адрес обязателен.
type FlatFeeQuoter struct {
	FeeMinor int64
}

// NewFlatFeeQuoter создаёт quoter с фиксированным тарифом.
func NewFlatFeeQuoter(feeMinor int64) *FlatFeeQuoter {
	return &FlatFeeQuoter{FeeMinor: feeMinor}
}

// Quote возвращает стоимость доставки для адреса.
func (q *FlatFeeQuoter) Quote(_ context.Context, shippingAddress string) (int64, error) {
	if strings.TrimSpace(shippingAddress) == "" {
		return 0, domain.ErrValidation
	}
	return q.FeeMinor, nil
}

var _ domain.ShippingQuoter = (*FlatFeeQuoter)(nil)
