package db

import (
	"context"

	"github.com/lib/pq"

	"github.com/M0nstr1k/ds/internal/models"
)

const orderColumns = `id, user_id, total, status, promo_code, created_at, card, admin_id,
        shipping_service, tracking_number, full_name, phone, address`

// revenueStatuses - заказы, которые входят в выручку.
var revenueStatuses = []string{
	string(models.StatusWaiting),
	string(models.StatusPaid),
	string(models.StatusCreated),
	string(models.StatusShipped),
	string(models.StatusReceived),
}

func scanOrder(row interface{ Scan(...any) error }) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.PromoCode, &o.CreatedAt, &o.Card, &o.AdminID,
		&o.ShippingService, &o.TrackingNumber, &o.FullName, &o.Phone, &o.Address)
	return o, err
}

func (s *Store) CreateOrder(ctx context.Context, o models.Order) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO orders (user_id, total, status, promo_code, card, admin_id, shipping_service, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id`,
		o.UserID, o.Total, o.Status, o.PromoCode, o.Card, o.AdminID, o.ShippingService).Scan(&id)
	return id, err
}

func (s *Store) AddOrderItem(ctx context.Context, item models.OrderItem) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO order_items (order_id, product_id, name, size, quantity, price)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		item.OrderID, item.ProductID, item.Name, item.Size, item.Quantity, item.Price)
	return err
}

func (s *Store) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	return scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (s *Store) ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, order_id, product_id, name, size, quantity, price
        FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Size, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateOrderStatus - смена статуса с проверкой текущего в одном UPDATE.
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	return affected(res, err)
}

func (s *Store) UpdateOrderTracking(ctx context.Context, id int64, tracking string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE orders SET tracking_number = $2 WHERE id = $1`, id, tracking)
	return err
}

func (s *Store) UpdateOrderRecipient(ctx context.Context, id int64, fullName, phone, address string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET full_name = $2, phone = $3, address = $4 WHERE id = $1`, id, fullName, phone, address)
	return err
}

func (s *Store) ListUserOrders(ctx context.Context, userID int64, limit int) ([]models.Order, error) {
	return s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY id DESC LIMIT $2`,
		userID, limitOrAll(limit))
}

func (s *Store) ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	return s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id DESC LIMIT $1`, limitOrAll(limit))
}

// Stats - пользователи, заказы, выручка по неотмененным заказам и последние неотмененные заказы.
func (s *Store) Stats(ctx context.Context, lastOrders int) (models.Stats, error) {
	var st models.Stats
	err := s.db.QueryRowContext(ctx, `
        SELECT (SELECT COUNT(*) FROM users),
               (SELECT COUNT(*) FROM orders),
               (SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = ANY($1))`,
		pq.Array(revenueStatuses)).Scan(&st.UsersCount, &st.OrdersCount, &st.Revenue)
	if err != nil {
		return st, err
	}
	st.LastOrders, err = s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = ANY($1) ORDER BY id DESC LIMIT $2`,
		pq.Array(revenueStatuses), limitOrAll(lastOrders))
	return st, err
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// limitOrAll: LIMIT NULL в PostgreSQL означает "без ограничения".
func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
