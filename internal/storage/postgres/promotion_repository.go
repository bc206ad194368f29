package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// promotionRepository — PostgreSQL-реализация PromotionRepository.
type promotionRepository struct {
	q querier
}

func (r *promotionRepository) GetByCode(ctx context.Context, code string) (domain.PromotionCode, error) {
	var (
		promo     domain.PromotionCode
		kind      string
		validFrom sql.NullTime
		validTo   sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT code, kind, value_minor, percent, max_discount_minor, min_purchase_minor,
		       valid_from, valid_to, active, max_uses, used_count, version, created_at, updated_at
		FROM promotion_codes
		WHERE code = $1
	`, strings.TrimSpace(code)).Scan(
		&promo.Code, &kind, &promo.ValueMinor, &promo.Percent, &promo.MaxDiscountMinor, &promo.MinPurchaseMinor,
		&validFrom, &validTo, &promo.Active, &promo.MaxUses, &promo.UsedCount,
		&promo.Version, &promo.CreatedAt, &promo.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PromotionCode{}, domain.ErrPromotionInvalid
		}
		return domain.PromotionCode{}, fmt.Errorf("select promotion: %w", err)
	}
	promo.Kind = domain.DiscountKind(kind)
	promo.ValidFrom = validFrom.Time
	promo.ValidTo = validTo.Time
	return promo, nil
}

func (r *promotionRepository) Create(ctx context.Context, promo domain.PromotionCode) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO promotion_codes (
			code, kind, value_minor, percent, max_discount_minor, min_purchase_minor,
			valid_from, valid_to, active, max_uses, used_count, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		promo.Code, string(promo.Kind), promo.ValueMinor, promo.Percent,
		promo.MaxDiscountMinor, promo.MinPurchaseMinor,
		nullableTime(promo.ValidFrom), nullableTime(promo.ValidTo),
		promo.Active, promo.MaxUses, promo.UsedCount, promo.Version,
		promo.CreatedAt, promo.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

// IncrementUsage — атомарный условный UPDATE: последний слот промокода
// достаётся ровно одному checkout.
func (r *promotionRepository) IncrementUsage(ctx context.Context, code string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE promotion_codes
		SET used_count = used_count + 1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE code = $1
		  AND (max_uses = 0 OR used_count < max_uses)
	`, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("increment promotion usage: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrPromotionInvalid
	}
	return nil
}

// nullableTime кодирует нулевое время как NULL: окно действия промокода
// может быть открыто с любой стороны.
func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

var _ domain.PromotionRepository = (*promotionRepository)(nil)
