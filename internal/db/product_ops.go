package db

import (
	"context"

	"github.com/M0nstr1k/ds/internal/models"
)

const productColumns = `id, name, description, price, photo, stock, sizes`

func scanProduct(row interface{ Scan(...any) error }) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Photo, &p.Stock, &p.Sizes)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (s *Store) CreateProduct(ctx context.Context, p models.Product) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO products (name, description, price, photo, stock, sizes)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.Name, p.Description, p.Price, p.Photo, p.Stock, p.Sizes).Scan(&id)
	return id, err
}

// DeleteProduct удаляет товар; строки корзин удаляются каскадом, позиции заказов остаются.
func (s *Store) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	return affected(res, err)
}

func (s *Store) UpdateProductName(ctx context.Context, id int64, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET name = $2 WHERE id = $1`, id, name)
	return affected(res, err)
}

func (s *Store) UpdateProductDescription(ctx context.Context, id int64, description string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET description = $2 WHERE id = $1`, id, description)
	return affected(res, err)
}

func (s *Store) UpdateProductPrice(ctx context.Context, id int64, price int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET price = $2 WHERE id = $1`, id, price)
	return affected(res, err)
}
