package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/M0nstr1k/ds/internal/models"
)

func (s *Store) GetCartQuantity(ctx context.Context, userID, productID int64, size string) (int, error) {
	var qty int
	err := s.db.QueryRowContext(ctx,
		`SELECT quantity FROM carts WHERE user_id = $1 AND product_id = $2 AND size = $3`,
		userID, productID, size).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

func (s *Store) SetCartQuantity(ctx context.Context, userID, productID int64, size string, qty int) error {
	if qty <= 0 {
		return s.DeleteCartItem(ctx, userID, productID, size)
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO carts (user_id, product_id, size, quantity) VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id, product_id, size) DO UPDATE SET quantity = EXCLUDED.quantity`,
		userID, productID, size, qty)
	return err
}

func (s *Store) DeleteCartItem(ctx context.Context, userID, productID int64, size string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM carts WHERE user_id = $1 AND product_id = $2 AND size = $3`, userID, productID, size)
	return err
}

// ListCartLines читает строки корзины, затем текущие данные товаров одним запросом.
func (s *Store) ListCartLines(ctx context.Context, userID int64) ([]models.CartLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, size, quantity FROM carts WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	var (
		lines []models.CartLine
		ids   []int64
	)
	for rows.Next() {
		var l models.CartLine
		if err := rows.Scan(&l.ProductID, &l.Size, &l.Quantity); err != nil {
			rows.Close()
			return nil, err
		}
		lines = append(lines, l)
		ids = append(ids, l.ProductID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	products, err := s.productsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := lines[:0]
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		l.Name, l.Price = p.Name, p.Price
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) productsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]models.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *Store) ClearCart(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	return err
}
