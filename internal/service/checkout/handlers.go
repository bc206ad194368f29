package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
)

// DefaultHandlers возвращает штатную цепочку обработчиков перехода:
// история, возврат стока при отмене, выпуск счёта, событие в outbox.
// Порядок важен: история пишется первой, событие уходит последним.
func DefaultHandlers() []domain.StatusChangeHandler {
	return []domain.StatusChangeHandler{
		NewHistoryHandler(),
		NewStockReleaseHandler(),
		NewInvoiceHandler(),
		NewOutboxHandler(),
	}
}

// NewHistoryHandler дописывает переход в append-only историю заказа.
func NewHistoryHandler() domain.StatusChangeHandler {
	return domain.StatusChangeHandlerFunc{
		HandlerName: "history",
		Fn: func(ctx context.Context, repos domain.RepoSet, event domain.StatusChangedEvent) error {
			return repos.Orders().AppendStatusChange(ctx, event.Change)
		},
	}
}

// NewStockReleaseHandler возвращает зарезервированный сток при отмене заказа.
// Возврат и отмена происходят в одной транзакции: сток не может потеряться
// между ними.
func NewStockReleaseHandler() domain.StatusChangeHandler {
	return domain.StatusChangeHandlerFunc{
		HandlerName: "stock-release",
		Fn: func(ctx context.Context, repos domain.RepoSet, event domain.StatusChangedEvent) error {
			if event.Change.To != domain.StatusCancelled {
				return nil
			}
			for _, line := range event.Order.Lines {
				if err := repos.Stock().Release(ctx, line.ProductID, line.Qty); err != nil {
					return fmt.Errorf("release stock for %s: %w", line.ProductID, err)
				}
			}
			return nil
		},
	}
}

// NewInvoiceHandler выпускает счёт при первом переходе заказа в CONFIRMED.
// Guard на существование читается в той же транзакции, что и переход,
// поэтому повторное подтверждение не породит второй счёт.
func NewInvoiceHandler() domain.StatusChangeHandler {
	m := metrics.NewCheckoutMetrics()
	return domain.StatusChangeHandlerFunc{
		HandlerName: "invoice",
		Fn: func(ctx context.Context, repos domain.RepoSet, event domain.StatusChangedEvent) error {
			if event.Change.To != domain.StatusConfirmed {
				return nil
			}

			exists, err := repos.Invoices().ExistsForOrder(ctx, event.Order.ID)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}

			number, err := repos.Invoices().NextNumber(ctx)
			if err != nil {
				return fmt.Errorf("next invoice number: %w", err)
			}

			lines := make([]domain.InvoiceLine, 0, len(event.Order.Lines))
			for _, line := range event.Order.Lines {
				lines = append(lines, domain.InvoiceLine{
					ProductTitle: line.Title,
					ProductSKU:   line.SKU,
					Qty:          line.Qty,
					PriceMinor:   line.PriceMinor,
				})
			}

			invoice := domain.Invoice{
				ID:              uuid.NewString(),
				OrderID:         event.Order.ID,
				Number:          number,
				TotalMinor:      event.Order.TotalMinor,
				Currency:        event.Order.Currency,
				ShippingAddress: event.Order.ShippingAddress,
				Lines:           lines,
				CreatedAt:       time.Now().UTC(),
			}
			if err := repos.Invoices().Create(ctx, invoice); err != nil {
				return err
			}
			m.RecordInvoiceIssued()
			return nil
		},
	}
}

// orderStatusPayload — JSON-тело события о переходе статуса.
type orderStatusPayload struct {
	OrderID    string `json:"order_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Actor      string `json:"actor"`
	Note       string `json:"note,omitempty"`
	TotalMinor int64  `json:"total_minor"`
	Currency   string `json:"currency"`
	OccurredAt string `json:"occurred_at"`
}

// NewOutboxHandler сохраняет событие о переходе в transactional outbox.
// Запись уходит в ту же транзакцию, что и переход: событие существует
// тогда и только тогда, когда переход зафиксирован.
func NewOutboxHandler() domain.StatusChangeHandler {
	return domain.StatusChangeHandlerFunc{
		HandlerName: "outbox",
		Fn: func(ctx context.Context, repos domain.RepoSet, event domain.StatusChangedEvent) error {
			payload, err := json.Marshal(orderStatusPayload{
				OrderID:    event.Order.ID,
				From:       string(event.Change.From),
				To:         string(event.Change.To),
				Actor:      event.Change.Actor,
				Note:       event.Change.Note,
				TotalMinor: event.Order.TotalMinor,
				Currency:   event.Order.Currency,
				OccurredAt: event.Change.Occurred.Format(time.RFC3339Nano),
			})
			if err != nil {
				return fmt.Errorf("marshal status event: %w", err)
			}

			_, err = repos.Outbox().Enqueue(ctx, domain.OutboxMessage{
				AggregateType: "order",
				AggregateID:   event.Order.ID,
				EventType:     "order.status_changed",
				Payload:       payload,
			})
			return err
		},
	}
}
