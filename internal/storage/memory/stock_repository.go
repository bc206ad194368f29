package memory

import (
	"context"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// stockRepositoryInMemory — запись в сток каталога поверх состояния store.
type stockRepositoryInMemory struct {
	store *Store
	inTx  bool
}

// Reserve списывает qty со стока; ErrProductUnavailable, если не хватает.
func (r *stockRepositoryInMemory) Reserve(_ context.Context, productID string, qty int32) error {
	defer r.store.acquire(r.inTx)()

	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	product, ok := r.store.st.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.Stock < qty {
		return domain.ErrProductUnavailable
	}
	product.Stock -= qty
	r.store.st.products[productID] = product
	return nil
}

// Release возвращает qty на сток (отмена заказа, reject ручной проверки).
func (r *stockRepositoryInMemory) Release(_ context.Context, productID string, qty int32) error {
	defer r.store.acquire(r.inTx)()

	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	product, ok := r.store.st.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.Stock += qty
	r.store.st.products[productID] = product
	return nil
}

var _ domain.StockRepository = (*stockRepositoryInMemory)(nil)
