package domain

import "time"

// DiscountKind различает фиксированную скидку и процентную с потолком.
type DiscountKind string

const (
	// DiscountFixed — фиксированная сумма (не больше subtotal).
	DiscountFixed DiscountKind = "fixed"
	// DiscountPercentage — процент от subtotal, опционально с потолком.
	DiscountPercentage DiscountKind = "percentage"
)

// PromotionCode — промокод. Мутирует только счётчик использований,
// инкремент обязан быть атомарным (см. PromotionRepository.IncrementUsage).
type PromotionCode struct {
	Code             string
	Kind             DiscountKind
	ValueMinor       int64
	Percent          int32
	MaxDiscountMinor int64 // 0 — без потолка
	MinPurchaseMinor int64
	ValidFrom        time.Time
	ValidTo          time.Time
	Active           bool
	MaxUses          int32 // 0 — без лимита
	UsedCount        int32
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UsableAt проверяет активность, окно действия и лимит использований.
// Нулевая граница окна означает отсутствие ограничения с этой стороны.
func (p *PromotionCode) UsableAt(now time.Time) bool {
	if !p.Active {
		return false
	}
	if !p.ValidFrom.IsZero() && now.Before(p.ValidFrom) {
		return false
	}
	if !p.ValidTo.IsZero() && now.After(p.ValidTo) {
		return false
	}
	if p.MaxUses > 0 && p.UsedCount >= p.MaxUses {
		return false
	}
	return true
}

// Snapshot фиксирует условия промокода на корзине в момент применения.
func (p *PromotionCode) Snapshot(now time.Time) *AppliedPromotion {
	return &AppliedPromotion{
		Code:             p.Code,
		Kind:             p.Kind,
		ValueMinor:       p.ValueMinor,
		Percent:          p.Percent,
		MaxDiscountMinor: p.MaxDiscountMinor,
		MinPurchaseMinor: p.MinPurchaseMinor,
		AppliedAt:        now,
	}
}
