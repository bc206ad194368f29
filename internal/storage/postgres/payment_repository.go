package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// paymentRepository — PostgreSQL-реализация PaymentRepository.
type paymentRepository struct {
	q querier
}

const paymentColumns = `
	id, order_id, gateway, status, amount_minor, currency,
	authority, reference_id, receipt_path, failure_code,
	version, created_at, updated_at
`

func (r *paymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		payment.ID, payment.OrderID, string(payment.Gateway), string(payment.Status),
		payment.AmountMinor, payment.Currency,
		payment.Authority, payment.ReferenceID, payment.ReceiptPath, payment.FailureCode,
		payment.Version, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (domain.Payment, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1
	`, id)
	return scanPayment(row)
}

func (r *paymentRepository) FindByAuthority(ctx context.Context, gateway domain.GatewayKind, authority string) (domain.Payment, error) {
	if authority == "" {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	row := r.q.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE gateway = $1 AND authority = $2
	`, string(gateway), authority)
	return scanPayment(row)
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		var (
			payment domain.Payment
			gateway string
			status  string
		)
		if err := rows.Scan(
			&payment.ID, &payment.OrderID, &gateway, &status,
			&payment.AmountMinor, &payment.Currency,
			&payment.Authority, &payment.ReferenceID, &payment.ReceiptPath, &payment.FailureCode,
			&payment.Version, &payment.CreatedAt, &payment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payment.Gateway = domain.GatewayKind(gateway)
		payment.Status = domain.PaymentStatus(status)
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) Save(ctx context.Context, payment domain.Payment) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE payments
		SET status = $1,
		    authority = $2,
		    reference_id = $3,
		    receipt_path = $4,
		    failure_code = $5,
		    version = version + 1,
		    updated_at = $6
		WHERE id = $7
		  AND version = $8
	`,
		string(payment.Status), payment.Authority, payment.ReferenceID,
		payment.ReceiptPath, payment.FailureCode,
		payment.UpdatedAt, payment.ID, payment.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var id string
		err := r.q.QueryRowContext(ctx, `SELECT id FROM payments WHERE id = $1`, payment.ID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPaymentNotFound
		}
		if err != nil {
			return fmt.Errorf("check payment exists: %w", err)
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func scanPayment(row *sql.Row) (domain.Payment, error) {
	var (
		payment domain.Payment
		gateway string
		status  string
	)
	err := row.Scan(
		&payment.ID, &payment.OrderID, &gateway, &status,
		&payment.AmountMinor, &payment.Currency,
		&payment.Authority, &payment.ReferenceID, &payment.ReceiptPath, &payment.FailureCode,
		&payment.Version, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}
	payment.Gateway = domain.GatewayKind(gateway)
	payment.Status = domain.PaymentStatus(status)
	return payment, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
