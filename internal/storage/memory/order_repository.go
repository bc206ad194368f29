package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	store *Store
	inTx  bool
}

// Create сохраняет новый заказ вместе с позициями, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	defer r.store.acquire(r.inTx)()

	if _, exists := r.store.st.orders[order.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.store.st.orders[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	defer r.store.acquire(r.inTx)()

	order, ok := r.store.st.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByOwner возвращает заказы identity, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByOwner(_ context.Context, owner domain.Identity, limit int) ([]domain.Order, error) {
	defer r.store.acquire(r.inTx)()

	result := make([]domain.Order, 0, len(r.store.st.orders))
	for _, order := range r.store.st.orders {
		if !order.Owner.Equal(owner) {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
// Позиции неизменяемы после Create и остаются как были сохранены.
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order) error {
	defer r.store.acquire(r.inTx)()

	current, ok := r.store.st.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrVersionConflict
	}
	order.Version++
	order.Lines = current.Lines
	r.store.st.orders[order.ID] = cloneOrder(order)
	return nil
}

// AppendStatusChange дописывает запись в append-only историю статусов.
func (r *orderRepositoryInMemory) AppendStatusChange(_ context.Context, change domain.StatusChange) error {
	defer r.store.acquire(r.inTx)()

	if _, ok := r.store.st.orders[change.OrderID]; !ok {
		return domain.ErrOrderNotFound
	}
	r.store.st.history[change.OrderID] = append(r.store.st.history[change.OrderID], change)
	return nil
}

// StatusHistory возвращает историю статусов в хронологическом порядке.
func (r *orderRepositoryInMemory) StatusHistory(_ context.Context, orderID string) ([]domain.StatusChange, error) {
	defer r.store.acquire(r.inTx)()

	history := r.store.st.history[orderID]
	result := append([]domain.StatusChange(nil), history...)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Occurred.Before(result[j].Occurred)
	})
	return result, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
