package db

import (
	"context"

	"github.com/M0nstr1k/ds/internal/models"
)

func (s *Store) CountReferrals(ctx context.Context, referrerID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE referrer_id = $1`, referrerID).Scan(&n)
	return n, err
}

// ListReferrers - пригласившие с количеством рефералов, больше приглашенных - выше.
func (s *Store) ListReferrers(ctx context.Context) ([]models.ReferralSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT u.telegram_id, u.username, u.first_name, u.last_name, u.banned, u.referral_code, u.referrer_id, u.created_at,
               COUNT(r.telegram_id) AS invited
        FROM users u
        JOIN users r ON r.referrer_id = u.telegram_id
        GROUP BY u.telegram_id
        ORDER BY invited DESC, u.telegram_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ReferralSummary
	for rows.Next() {
		var rs models.ReferralSummary
		u := &rs.User
		if err := rows.Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.Banned, &u.ReferralCode, &u.ReferrerID, &u.CreatedAt, &rs.Count); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}
