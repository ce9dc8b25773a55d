package db

import (
	"context"
	"database/sql"

	"github.com/M0nstr1k/ds/internal/models"
)

const promoColumns = `code, percent, usage_limit, used_count, expires_at`

func scanPromo(row interface{ Scan(...any) error }) (models.PromoCode, error) {
	var p models.PromoCode
	err := row.Scan(&p.Code, &p.Percent, &p.UsageLimit, &p.UsedCount, &p.ExpiresAt)
	return p, err
}

func (s *Store) GetPromo(ctx context.Context, code string) (models.PromoCode, error) {
	return scanPromo(s.db.QueryRowContext(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code))
}

// SavePromo заменяет промокод целиком, счетчик использований обнуляется.
func (s *Store) SavePromo(ctx context.Context, p models.PromoCode) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO promo_codes (code, percent, usage_limit, used_count, expires_at)
        VALUES ($1, $2, $3, 0, $4)
        ON CONFLICT (code) DO UPDATE SET
            percent = EXCLUDED.percent,
            usage_limit = EXCLUDED.usage_limit,
            used_count = 0,
            expires_at = EXCLUDED.expires_at`,
		p.Code, p.Percent, p.UsageLimit, p.ExpiresAt)
	return err
}

func (s *Store) DeletePromo(ctx context.Context, code string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM promo_codes WHERE code = $1`, code)
	return affected(res, err)
}

func (s *Store) ListPromos(ctx context.Context) ([]models.PromoCode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+promoColumns+` FROM promo_codes ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// IncrementPromoUse увеличивает счетчик, не выходя за лимит.
func (s *Store) IncrementPromoUse(ctx context.Context, code string) error {
	ok, err := affected(s.db.ExecContext(ctx, `
        UPDATE promo_codes SET used_count = used_count + 1
        WHERE code = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`, code))
	if err != nil {
		return err
	}
	if !ok {
		return sql.ErrNoRows
	}
	return nil
}
