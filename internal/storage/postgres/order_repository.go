package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// orderRepository — PostgreSQL-реализация OrderRepository.
type orderRepository struct {
	q querier
}

const orderColumns = `
	id, owner_kind, owner_value, status, currency,
	subtotal_minor, discount_minor, shipping_minor, total_minor,
	promotion_code, shipping_address, phone_number, tracking_code,
	version, created_at, updated_at
`

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		order.ID, string(order.Owner.Kind()), order.Owner.Value(), string(order.Status), order.Currency,
		order.SubtotalMinor, order.DiscountMinor, order.ShippingMinor, order.TotalMinor,
		order.PromotionCode, order.ShippingAddress, order.PhoneNumber, order.TrackingCode,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_id, product_id, title, sku, qty, price_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			line.ID, order.ID, line.ProductID, line.Title, line.SKU, line.Qty, line.PriceMinor, line.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) ListByOwner(ctx context.Context, owner domain.Identity, limit int) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE owner_kind = $1 AND owner_value = $2
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.q.QueryContext(ctx, query+" LIMIT $3", string(owner.Kind()), owner.Value(), limit)
	} else {
		rows, err = r.q.QueryContext(ctx, query, string(owner.Kind()), owner.Value())
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		lines, err := r.loadLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}

	return orders, nil
}

// Save обновляет заказ с optimistic locking; позиции неизменяемы после Create.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    shipping_address = $2,
		    phone_number = $3,
		    tracking_code = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $6
		  AND version = $7
	`,
		string(order.Status), order.ShippingAddress, order.PhoneNumber, order.TrackingCode,
		order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *orderRepository) AppendStatusChange(ctx context.Context, change domain.StatusChange) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO status_changes (order_id, from_status, to_status, actor, note, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		change.OrderID, string(change.From), string(change.To), change.Actor, change.Note, change.Occurred,
	)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	return nil
}

func (r *orderRepository) StatusHistory(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT order_id, from_status, to_status, actor, note, occurred_at
		FROM status_changes
		WHERE order_id = $1
		ORDER BY occurred_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load status history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.StatusChange, 0)
	for rows.Next() {
		var (
			change domain.StatusChange
			from   string
			to     string
		)
		if err := rows.Scan(&change.OrderID, &from, &to, &change.Actor, &change.Note, &change.Occurred); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		change.From = domain.OrderStatus(from)
		change.To = domain.OrderStatus(to)
		history = append(history, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}

	return history, nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, product_id, title, sku, qty, price_minor, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.ProductID, &line.Title, &line.SKU, &line.Qty, &line.PriceMinor, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

// rowScanner покрывает *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order domain.Order
		kind  string
		value string
		state string
	)
	if err := row.Scan(
		&order.ID, &kind, &value, &state, &order.Currency,
		&order.SubtotalMinor, &order.DiscountMinor, &order.ShippingMinor, &order.TotalMinor,
		&order.PromotionCode, &order.ShippingAddress, &order.PhoneNumber, &order.TrackingCode,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Owner = domain.RestoreIdentity(domain.IdentityKind(kind), value)
	order.Status = domain.OrderStatus(state)
	return order, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
