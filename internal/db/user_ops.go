package db

import (
	"context"
	"database/sql"
	"log"

	"github.com/M0nstr1k/ds/internal/models"
)

const userColumns = `telegram_id, username, first_name, last_name, banned, referral_code, referrer_id, created_at`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.Banned, &u.ReferralCode, &u.ReferrerID, &u.CreatedAt)
	return u, err
}

// UpsertUser создает пользователя или обновляет имя. xmax = 0 означает, что строка вставлена.
func (s *Store) UpsertUser(ctx context.Context, p models.Profile, referralCode string) (bool, error) {
	var created bool
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO users (telegram_id, username, first_name, last_name, referral_code, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        ON CONFLICT (telegram_id) DO UPDATE SET
            username = EXCLUDED.username,
            first_name = EXCLUDED.first_name,
            last_name = EXCLUDED.last_name,
            referral_code = COALESCE(users.referral_code, EXCLUDED.referral_code)
        RETURNING (xmax = 0)`,
		p.TelegramID, nullString(p.Username), p.FirstName, nullString(p.LastName), nullString(referralCode)).Scan(&created)
	if err != nil {
		log.Printf("UpsertUser: ошибка сохранения пользователя %d: %v", p.TelegramID, err)
		return false, err
	}
	return created, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, id))
}

func (s *Store) FindUserByReferralCode(ctx context.Context, code string) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
}

func (s *Store) SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET referrer_id = $2 WHERE telegram_id = $1 AND referrer_id IS NULL`, userID, referrerID)
	return affected(res, err)
}

func (s *Store) SetBanned(ctx context.Context, id int64, banned bool) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET banned = $2 WHERE telegram_id = $1`, id, banned)
	return affected(res, err)
}

func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT telegram_id FROM users ORDER BY telegram_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// affected переводит результат UPDATE/DELETE в "затронута ли строка".
func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
