package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// invoiceRepositoryInMemory — простая in-memory реализация InvoiceRepository.
type invoiceRepositoryInMemory struct {
	store *Store
	inTx  bool
}

// Create сохраняет счёт; повторный счёт на тот же заказ — ErrInvoiceAlreadyExists.
func (r *invoiceRepositoryInMemory) Create(_ context.Context, invoice domain.Invoice) error {
	defer r.store.acquire(r.inTx)()

	for _, existing := range r.store.st.invoices {
		if existing.OrderID == invoice.OrderID {
			return domain.ErrInvoiceAlreadyExists
		}
	}
	r.store.st.invoices[invoice.ID] = cloneInvoice(invoice)
	return nil
}

// GetByOrder возвращает счёт заказа или ErrInvoiceNotFound.
func (r *invoiceRepositoryInMemory) GetByOrder(_ context.Context, orderID string) (domain.Invoice, error) {
	defer r.store.acquire(r.inTx)()

	for _, invoice := range r.store.st.invoices {
		if invoice.OrderID == orderID {
			return cloneInvoice(invoice), nil
		}
	}
	return domain.Invoice{}, domain.ErrInvoiceNotFound
}

// ExistsForOrder — guard против двойного выпуска счёта.
func (r *invoiceRepositoryInMemory) ExistsForOrder(_ context.Context, orderID string) (bool, error) {
	defer r.store.acquire(r.inTx)()

	for _, invoice := range r.store.st.invoices {
		if invoice.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

// NextNumber выдаёт следующий последовательный номер счёта.
func (r *invoiceRepositoryInMemory) NextNumber(_ context.Context) (string, error) {
	defer r.store.acquire(r.inTx)()

	r.store.st.invoiceSeq++
	return fmt.Sprintf("INV%06d", r.store.st.invoiceSeq), nil
}

var _ domain.InvoiceRepository = (*invoiceRepositoryInMemory)(nil)
