package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// cartRepository — PostgreSQL-реализация CartRepository. Мутации из
// нескольких statement'ов вызываются сервисами через UnitOfWork.Within,
// поэтому сам репозиторий транзакций не открывает.
type cartRepository struct {
	q querier
}

func (r *cartRepository) FindByOwner(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	var (
		cart      domain.Cart
		kind      string
		value     string
		promoCode sql.NullString
		promoKind sql.NullString
		promoVal  sql.NullInt64
		promoPct  sql.NullInt32
		promoMax  sql.NullInt64
		promoMin  sql.NullInt64
		promoAt   sql.NullTime
	)

	err := r.q.QueryRowContext(ctx, `
		SELECT id, owner_kind, owner_value,
		       promo_code, promo_kind, promo_value_minor, promo_percent,
		       promo_max_discount_minor, promo_min_purchase_minor, promo_applied_at,
		       version, created_at, updated_at
		FROM carts
		WHERE owner_kind = $1 AND owner_value = $2
	`, string(owner.Kind()), owner.Value()).Scan(
		&cart.ID, &kind, &value,
		&promoCode, &promoKind, &promoVal, &promoPct, &promoMax, &promoMin, &promoAt,
		&cart.Version, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}
	cart.Owner = domain.RestoreIdentity(domain.IdentityKind(kind), value)

	if promoCode.Valid {
		cart.Promotion = &domain.AppliedPromotion{
			Code:             promoCode.String,
			Kind:             domain.DiscountKind(promoKind.String),
			ValueMinor:       promoVal.Int64,
			Percent:          promoPct.Int32,
			MaxDiscountMinor: promoMax.Int64,
			MinPurchaseMinor: promoMin.Int64,
			AppliedAt:        promoAt.Time,
		}
	}

	lines, err := r.loadLines(ctx, cart.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Lines = lines

	return cart, nil
}

func (r *cartRepository) Create(ctx context.Context, cart domain.Cart) error {
	promoCode, promoKind, promoVal, promoPct, promoMax, promoMin, promoAt := promoColumns(cart)
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO carts (
			id, owner_kind, owner_value,
			promo_code, promo_kind, promo_value_minor, promo_percent,
			promo_max_discount_minor, promo_min_purchase_minor, promo_applied_at,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		cart.ID, string(cart.Owner.Kind()), cart.Owner.Value(),
		promoCode, promoKind, promoVal, promoPct, promoMax, promoMin, promoAt,
		cart.Version, cart.CreatedAt, cart.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert cart: %w", err)
	}

	return r.saveLines(ctx, cart)
}

func (r *cartRepository) Save(ctx context.Context, cart domain.Cart) error {
	promoCode, promoKind, promoVal, promoPct, promoMax, promoMin, promoAt := promoColumns(cart)
	res, err := r.q.ExecContext(ctx, `
		UPDATE carts
		SET promo_code = $1,
		    promo_kind = $2,
		    promo_value_minor = $3,
		    promo_percent = $4,
		    promo_max_discount_minor = $5,
		    promo_min_purchase_minor = $6,
		    promo_applied_at = $7,
		    version = version + 1,
		    updated_at = $8
		WHERE id = $9
		  AND version = $10
	`,
		promoCode, promoKind, promoVal, promoPct, promoMax, promoMin, promoAt,
		cart.UpdatedAt, cart.ID, cart.Version,
	)
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.cartExists(ctx, cart.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrCartNotFound
		}
		return domain.ErrVersionConflict
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cart.ID); err != nil {
		return fmt.Errorf("delete cart lines: %w", err)
	}
	return r.saveLines(ctx, cart)
}

func (r *cartRepository) Delete(ctx context.Context, cartID string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func (r *cartRepository) loadLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT product_id, qty
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY product_id ASC
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Qty); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}

	return lines, nil
}

func (r *cartRepository) saveLines(ctx context.Context, cart domain.Cart) error {
	for _, line := range cart.Lines {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO cart_lines (cart_id, product_id, qty) VALUES ($1,$2,$3)
		`, cart.ID, line.ProductID, line.Qty); err != nil {
			return fmt.Errorf("insert cart line: %w", err)
		}
	}
	return nil
}

func (r *cartRepository) cartExists(ctx context.Context, cartID string) (bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM carts WHERE id = $1`, cartID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check cart exists: %w", err)
}

// promoColumns раскладывает снимок промокода на nullable-колонки;
// отсутствие снимка кодируется NULL в promo_code.
func promoColumns(cart domain.Cart) (sql.NullString, sql.NullString, sql.NullInt64, sql.NullInt32, sql.NullInt64, sql.NullInt64, sql.NullTime) {
	var (
		promoCode sql.NullString
		promoKind sql.NullString
		promoVal  sql.NullInt64
		promoPct  sql.NullInt32
		promoMax  sql.NullInt64
		promoMin  sql.NullInt64
		promoAt   sql.NullTime
	)
	if p := cart.Promotion; p != nil {
		promoCode = sql.NullString{String: p.Code, Valid: true}
		promoKind = sql.NullString{String: string(p.Kind), Valid: true}
		promoVal = sql.NullInt64{Int64: p.ValueMinor, Valid: true}
		promoPct = sql.NullInt32{Int32: p.Percent, Valid: true}
		promoMax = sql.NullInt64{Int64: p.MaxDiscountMinor, Valid: true}
		promoMin = sql.NullInt64{Int64: p.MinPurchaseMinor, Valid: true}
		promoAt = sql.NullTime{Time: p.AppliedAt, Valid: true}
	}
	return promoCode, promoKind, promoVal, promoPct, promoMax, promoMin, promoAt
}

var _ domain.CartRepository = (*cartRepository)(nil)
