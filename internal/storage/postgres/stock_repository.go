package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// stockRepository — запись в сток каталога. Списание выражено условным
// UPDATE: два конкурентных checkout не могут оба забрать последнюю единицу.
type stockRepository struct {
	q querier
}

func (r *stockRepository) Reserve(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1
		  AND stock >= $2
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.productExists(ctx, productID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrProductNotFound
		}
		return domain.ErrProductUnavailable
	}
	return nil
}

func (r *stockRepository) Release(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *stockRepository) productExists(ctx context.Context, productID string) (bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, productID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check product exists: %w", err)
}

var _ domain.StockRepository = (*stockRepository)(nil)
