package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// paymentRepositoryInMemory — простая in-memory реализация PaymentRepository.
type paymentRepositoryInMemory struct {
	store *Store
	inTx  bool
}

// Create сохраняет новую платёжную попытку.
func (r *paymentRepositoryInMemory) Create(_ context.Context, payment domain.Payment) error {
	defer r.store.acquire(r.inTx)()

	if _, exists := r.store.st.payments[payment.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.store.st.payments[payment.ID] = payment
	return nil
}

// Get возвращает платёж или ErrPaymentNotFound, если его нет.
func (r *paymentRepositoryInMemory) Get(_ context.Context, id string) (domain.Payment, error) {
	defer r.store.acquire(r.inTx)()

	payment, ok := r.store.st.payments[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// FindByAuthority ищет платёж по паре (шлюз, authority) — ключ callback.
func (r *paymentRepositoryInMemory) FindByAuthority(_ context.Context, gateway domain.GatewayKind, authority string) (domain.Payment, error) {
	defer r.store.acquire(r.inTx)()

	if authority == "" {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	for _, payment := range r.store.st.payments {
		if payment.Gateway == gateway && payment.Authority == authority {
			return payment, nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

// ListByOrder возвращает все попытки по заказу, старые первыми.
func (r *paymentRepositoryInMemory) ListByOrder(_ context.Context, orderID string) ([]domain.Payment, error) {
	defer r.store.acquire(r.inTx)()

	result := make([]domain.Payment, 0, 2)
	for _, payment := range r.store.st.payments {
		if payment.OrderID == orderID {
			result = append(result, payment)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Save перезаписывает платёж, проверяя версию (optimistic locking).
func (r *paymentRepositoryInMemory) Save(_ context.Context, payment domain.Payment) error {
	defer r.store.acquire(r.inTx)()

	current, ok := r.store.st.payments[payment.ID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if current.Version != payment.Version {
		return domain.ErrVersionConflict
	}
	payment.Version++
	r.store.st.payments[payment.ID] = payment
	return nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
