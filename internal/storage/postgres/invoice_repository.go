package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// invoiceRepository — PostgreSQL-реализация InvoiceRepository.
type invoiceRepository struct {
	q querier
}

func (r *invoiceRepository) Create(ctx context.Context, invoice domain.Invoice) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO invoices (id, order_id, number, total_minor, currency, shipping_address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		invoice.ID, invoice.OrderID, invoice.Number, invoice.TotalMinor,
		invoice.Currency, invoice.ShippingAddress, invoice.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvoiceAlreadyExists
		}
		return fmt.Errorf("insert invoice: %w", err)
	}

	for _, line := range invoice.Lines {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO invoice_lines (invoice_id, product_title, product_sku, qty, price_minor)
			VALUES ($1,$2,$3,$4,$5)
		`,
			invoice.ID, line.ProductTitle, line.ProductSKU, line.Qty, line.PriceMinor,
		); err != nil {
			return fmt.Errorf("insert invoice line: %w", err)
		}
	}

	return nil
}

func (r *invoiceRepository) GetByOrder(ctx context.Context, orderID string) (domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.q.QueryRowContext(ctx, `
		SELECT id, order_id, number, total_minor, currency, shipping_address, created_at
		FROM invoices
		WHERE order_id = $1
	`, orderID).Scan(
		&invoice.ID, &invoice.OrderID, &invoice.Number, &invoice.TotalMinor,
		&invoice.Currency, &invoice.ShippingAddress, &invoice.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Invoice{}, domain.ErrInvoiceNotFound
		}
		return domain.Invoice{}, fmt.Errorf("select invoice: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT product_title, product_sku, qty, price_minor
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY id ASC
	`, invoice.ID)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("load invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.InvoiceLine
		if err := rows.Scan(&line.ProductTitle, &line.ProductSKU, &line.Qty, &line.PriceMinor); err != nil {
			return domain.Invoice{}, fmt.Errorf("scan invoice line: %w", err)
		}
		invoice.Lines = append(invoice.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Invoice{}, fmt.Errorf("iterate invoice lines: %w", err)
	}

	return invoice, nil
}

func (r *invoiceRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM invoices WHERE order_id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check invoice exists: %w", err)
}

// NextNumber берёт следующее значение последовательности; нумерация
// монотонна даже при откате транзакции, пропуски допустимы.
func (r *invoiceRepository) NextNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := r.q.QueryRowContext(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return fmt.Sprintf("INV%06d", seq), nil
}

var _ domain.InvoiceRepository = (*invoiceRepository)(nil)
