package memory

import (
	"context"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// cartRepositoryInMemory — простая in-memory реализация CartRepository.
type cartRepositoryInMemory struct {
	store *Store
	inTx  bool
}

// FindByOwner возвращает активную корзину identity или ErrCartNotFound.
func (r *cartRepositoryInMemory) FindByOwner(_ context.Context, owner domain.Identity) (domain.Cart, error) {
	defer r.store.acquire(r.inTx)()

	for _, cart := range r.store.st.carts {
		if cart.Owner.Equal(owner) {
			return cloneCart(cart), nil
		}
	}
	return domain.Cart{}, domain.ErrCartNotFound
}

// Create сохраняет новую корзину, если ID ещё не занят.
func (r *cartRepositoryInMemory) Create(_ context.Context, cart domain.Cart) error {
	defer r.store.acquire(r.inTx)()

	if _, exists := r.store.st.carts[cart.ID]; exists {
		return domain.ErrVersionConflict
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.store.st.carts[cart.ID] = cloneCart(cart)
	return nil
}

// Save перезаписывает корзину, проверяя версию (optimistic locking).
func (r *cartRepositoryInMemory) Save(_ context.Context, cart domain.Cart) error {
	defer r.store.acquire(r.inTx)()

	current, ok := r.store.st.carts[cart.ID]
	if !ok {
		return domain.ErrCartNotFound
	}
	if current.Version != cart.Version {
		return domain.ErrVersionConflict
	}
	cart.Version++
	r.store.st.carts[cart.ID] = cloneCart(cart)
	return nil
}

// Delete удаляет корзину (после checkout либо merge).
func (r *cartRepositoryInMemory) Delete(_ context.Context, cartID string) error {
	defer r.store.acquire(r.inTx)()

	if _, ok := r.store.st.carts[cartID]; !ok {
		return domain.ErrCartNotFound
	}
	delete(r.store.st.carts, cartID)
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
