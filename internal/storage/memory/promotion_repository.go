package memory

import (
	"context"
	"strings"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// promotionRepositoryInMemory — простая in-memory реализация PromotionRepository.
type promotionRepositoryInMemory struct {
	store *Store
	inTx  bool
}

// GetByCode возвращает промокод или ErrPromotionInvalid, если код неизвестен.
func (r *promotionRepositoryInMemory) GetByCode(_ context.Context, code string) (domain.PromotionCode, error) {
	defer r.store.acquire(r.inTx)()

	promo, ok := r.store.st.promotions[strings.TrimSpace(code)]
	if !ok {
		return domain.PromotionCode{}, domain.ErrPromotionInvalid
	}
	return promo, nil
}

// Create сохраняет новый промокод.
func (r *promotionRepositoryInMemory) Create(_ context.Context, promo domain.PromotionCode) error {
	defer r.store.acquire(r.inTx)()

	if _, exists := r.store.st.promotions[promo.Code]; exists {
		return domain.ErrVersionConflict
	}
	r.store.st.promotions[promo.Code] = promo
	return nil
}

// IncrementUsage атомарно увеличивает счётчик использований. Если лимит
// уже исчерпан, возвращает ErrPromotionInvalid: два конкурентных checkout
// не могут оба пройти через последний слот.
func (r *promotionRepositoryInMemory) IncrementUsage(_ context.Context, code string) error {
	defer r.store.acquire(r.inTx)()

	promo, ok := r.store.st.promotions[strings.TrimSpace(code)]
	if !ok {
		return domain.ErrPromotionInvalid
	}
	if promo.MaxUses > 0 && promo.UsedCount >= promo.MaxUses {
		return domain.ErrPromotionInvalid
	}
	promo.UsedCount++
	promo.Version++
	r.store.st.promotions[promo.Code] = promo
	return nil
}

var _ domain.PromotionRepository = (*promotionRepositoryInMemory)(nil)
