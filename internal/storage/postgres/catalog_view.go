package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// catalogView — read-only проекция таблицы products для корзины и checkout.
type catalogView struct {
	q querier
}

func (v *catalogView) Product(ctx context.Context, productID string) (domain.Product, error) {
	var product domain.Product
	err := v.q.QueryRowContext(ctx, `
		SELECT id, title, sku, price_minor, stock, available, visible, active
		FROM products
		WHERE id = $1
	`, productID).Scan(
		&product.ID, &product.Title, &product.SKU, &product.PriceMinor,
		&product.Stock, &product.Available, &product.Visible, &product.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

var _ domain.CatalogView = (*catalogView)(nil)
