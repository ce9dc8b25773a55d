// Package memstore - хранилище в памяти процесса с тем же поведением, что и Postgres:
// отсутствующая запись возвращается как sql.ErrNoRows.
package memstore

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/M0nstr1k/ds/internal/cart"
	"github.com/M0nstr1k/ds/internal/catalog"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/orders"
	"github.com/M0nstr1k/ds/internal/promo"
	"github.com/M0nstr1k/ds/internal/tickets"
	"github.com/M0nstr1k/ds/internal/users"
)

type cartKey struct {
	userID    int64
	productID int64
	size      string
}

type cartRow struct {
	qty int
	seq uint64
}

// Store хранит все сущности магазина под одной блокировкой.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users    map[int64]models.User
	products map[int64]models.Product
	carts    map[cartKey]cartRow
	promos   map[string]models.PromoCode
	orders   map[int64]models.Order
	items    map[int64][]models.OrderItem
	tickets  map[int64]models.SupportTicket
	messages map[int64][]models.TicketMessage

	productSeq int64
	orderSeq   int64
	itemSeq    int64
	ticketSeq  int64
	messageSeq int64
	cartSeq    uint64
}

func New() *Store {
	return &Store{
		now:      time.Now,
		users:    make(map[int64]models.User),
		products: make(map[int64]models.Product),
		carts:    make(map[cartKey]cartRow),
		promos:   make(map[string]models.PromoCode),
		orders:   make(map[int64]models.Order),
		items:    make(map[int64][]models.OrderItem),
		tickets:  make(map[int64]models.SupportTicket),
		messages: make(map[int64][]models.TicketMessage),
	}
}

// SetClock подменяет время создания записей.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// --- Пользователи ---

func (s *Store) UpsertUser(_ context.Context, p models.Profile, referralCode string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[p.TelegramID]
	if !ok {
		u = models.User{TelegramID: p.TelegramID, CreatedAt: s.now()}
	}
	u.Username = nullString(p.Username)
	u.FirstName = p.FirstName
	u.LastName = nullString(p.LastName)
	if !u.ReferralCode.Valid && referralCode != "" {
		u.ReferralCode = sql.NullString{String: referralCode, Valid: true}
	}
	s.users[p.TelegramID] = u
	return !ok, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *Store) FindUserByReferralCode(_ context.Context, code string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ReferralCode.Valid && u.ReferralCode.String == code {
			return u, nil
		}
	}
	return models.User{}, sql.ErrNoRows
}

func (s *Store) SetReferrer(_ context.Context, userID, referrerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.ReferrerID.Valid {
		return false, nil
	}
	u.ReferrerID = sql.NullInt64{Int64: referrerID, Valid: true}
	s.users[userID] = u
	return true, nil
}

func (s *Store) SetBanned(_ context.Context, id int64, banned bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	u.Banned = banned
	s.users[id] = u
	return true, nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *Store) CountReferrals(_ context.Context, referrerID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.ReferrerID.Valid && u.ReferrerID.Int64 == referrerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListReferrers(_ context.Context) ([]models.ReferralSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[int64]int)
	for _, u := range s.users {
		if u.ReferrerID.Valid {
			counts[u.ReferrerID.Int64]++
		}
	}
	out := make([]models.ReferralSummary, 0, len(counts))
	for id, n := range counts {
		u, ok := s.users[id]
		if !ok {
			continue
		}
		out = append(out, models.ReferralSummary{User: u, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].User.TelegramID < out[j].User.TelegramID
	})
	return out, nil
}

// --- Товары ---

func (s *Store) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return models.Product{}, sql.ErrNoRows
	}
	return p, nil
}

func (s *Store) CreateProduct(_ context.Context, p models.Product) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productSeq++
	p.ID = s.productSeq
	s.products[p.ID] = p
	return p.ID, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return false, nil
	}
	delete(s.products, id)
	for k := range s.carts {
		if k.productID == id {
			delete(s.carts, k)
		}
	}
	return true, nil
}

func (s *Store) UpdateProductName(_ context.Context, id int64, name string) (bool, error) {
	return s.updateProduct(id, func(p *models.Product) { p.Name = name })
}

func (s *Store) UpdateProductDescription(_ context.Context, id int64, description string) (bool, error) {
	return s.updateProduct(id, func(p *models.Product) { p.Description = description })
}

func (s *Store) UpdateProductPrice(_ context.Context, id int64, price int64) (bool, error) {
	return s.updateProduct(id, func(p *models.Product) { p.Price = price })
}

func (s *Store) updateProduct(id int64, fn func(*models.Product)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return false, nil
	}
	fn(&p)
	s.products[id] = p
	return true, nil
}

// --- Корзины ---

func (s *Store) GetCartQuantity(_ context.Context, userID, productID int64, size string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carts[cartKey{userID, productID, size}].qty, nil
}

func (s *Store) SetCartQuantity(_ context.Context, userID, productID int64, size string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := cartKey{userID, productID, size}
	if qty <= 0 {
		delete(s.carts, k)
		return nil
	}
	row, ok := s.carts[k]
	if !ok {
		s.cartSeq++
		row.seq = s.cartSeq
	}
	row.qty = qty
	s.carts[k] = row
	return nil
}

func (s *Store) DeleteCartItem(_ context.Context, userID, productID int64, size string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, cartKey{userID, productID, size})
	return nil
}

func (s *Store) ListCartLines(_ context.Context, userID int64) ([]models.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type seqLine struct {
		seq  uint64
		line models.CartLine
	}
	var rows []seqLine
	for k, row := range s.carts {
		if k.userID != userID {
			continue
		}
		p, ok := s.products[k.productID]
		if !ok {
			continue
		}
		rows = append(rows, seqLine{seq: row.seq, line: models.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Size:      k.size,
			Quantity:  row.qty,
			Price:     p.Price,
		}})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	lines := make([]models.CartLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, r.line)
	}
	return lines, nil
}

func (s *Store) ClearCart(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.carts {
		if k.userID == userID {
			delete(s.carts, k)
		}
	}
	return nil
}

// --- Промокоды ---

func (s *Store) GetPromo(_ context.Context, code string) (models.PromoCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.promos[code]
	if !ok {
		return models.PromoCode{}, sql.ErrNoRows
	}
	return p, nil
}

func (s *Store) SavePromo(_ context.Context, p models.PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UsedCount = 0
	s.promos[p.Code] = p
	return nil
}

func (s *Store) DeletePromo(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.promos[code]; !ok {
		return false, nil
	}
	delete(s.promos, code)
	return true, nil
}

func (s *Store) ListPromos(_ context.Context) ([]models.PromoCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PromoCode, 0, len(s.promos))
	for _, p := range s.promos {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) IncrementPromoUse(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.promos[code]
	if !ok || p.Exhausted() {
		return sql.ErrNoRows
	}
	p.UsedCount++
	s.promos[code] = p
	return nil
}

// --- Заказы ---

func (s *Store) CreateOrder(_ context.Context, o models.Order) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderSeq++
	o.ID = s.orderSeq
	o.CreatedAt = s.now()
	s.orders[o.ID] = o
	return o.ID, nil
}

func (s *Store) AddOrderItem(_ context.Context, item models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[item.OrderID]; !ok {
		return sql.ErrNoRows
	}
	s.itemSeq++
	item.ID = s.itemSeq
	s.items[item.OrderID] = append(s.items[item.OrderID], item)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, sql.ErrNoRows
	}
	return o, nil
}

func (s *Store) ListOrderItems(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.OrderItem(nil), s.items[orderID]...), nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id int64, from, to models.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	s.orders[id] = o
	return true, nil
}

func (s *Store) UpdateOrderTracking(_ context.Context, id int64, tracking string) error {
	return s.updateOrder(id, func(o *models.Order) {
		o.TrackingNumber = sql.NullString{String: tracking, Valid: true}
	})
}

func (s *Store) UpdateOrderRecipient(_ context.Context, id int64, fullName, phone, address string) error {
	return s.updateOrder(id, func(o *models.Order) {
		o.FullName = sql.NullString{String: fullName, Valid: true}
		o.Phone = sql.NullString{String: phone, Valid: true}
		o.Address = sql.NullString{String: address, Valid: true}
	})
}

func (s *Store) updateOrder(id int64, fn func(*models.Order)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return sql.ErrNoRows
	}
	fn(&o)
	s.orders[id] = o
	return nil
}

func (s *Store) ListUserOrders(_ context.Context, userID int64, limit int) ([]models.Order, error) {
	return s.listOrders(limit, func(o models.Order) bool { return o.UserID == userID }), nil
}

func (s *Store) ListRecentOrders(_ context.Context, limit int) ([]models.Order, error) {
	return s.listOrders(limit, func(models.Order) bool { return true }), nil
}

func (s *Store) Stats(_ context.Context, lastOrders int) (models.Stats, error) {
	st := models.Stats{
		LastOrders: s.listOrders(lastOrders, func(o models.Order) bool { return o.Status != models.StatusCanceled }),
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st.UsersCount = len(s.users)
	st.OrdersCount = len(s.orders)
	for _, o := range s.orders {
		if o.Status != models.StatusCanceled {
			st.Revenue += o.Total
		}
	}
	return st, nil
}

// listOrders - новые первыми.
func (s *Store) listOrders(limit int, keep func(models.Order) bool) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Order
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// --- Тикеты ---

func (s *Store) CreateTicket(_ context.Context, userID int64, message string) (models.SupportTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticketSeq++
	t := models.SupportTicket{
		ID:        s.ticketSeq,
		UserID:    userID,
		Message:   message,
		Status:    models.TicketOpen,
		CreatedAt: s.now(),
	}
	s.tickets[t.ID] = t
	return t, nil
}

func (s *Store) AddTicketMessage(_ context.Context, ticketID, senderID int64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticketID]; !ok {
		return sql.ErrNoRows
	}
	s.messageSeq++
	s.messages[ticketID] = append(s.messages[ticketID], models.TicketMessage{
		ID:        s.messageSeq,
		TicketID:  ticketID,
		SenderID:  senderID,
		Message:   message,
		CreatedAt: s.now(),
	})
	return nil
}

func (s *Store) GetTicket(_ context.Context, id int64) (models.SupportTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return models.SupportTicket{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) ListOpenTickets(_ context.Context) ([]models.SupportTicket, error) {
	return s.listTickets(0, func(t models.SupportTicket) bool { return t.Status == models.TicketOpen }, false), nil
}

func (s *Store) ListUserTickets(_ context.Context, userID int64, limit int) ([]models.SupportTicket, error) {
	return s.listTickets(limit, func(t models.SupportTicket) bool { return t.UserID == userID }, true), nil
}

func (s *Store) listTickets(limit int, keep func(models.SupportTicket) bool, newestFirst bool) []models.SupportTicket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SupportTicket
	for _, t := range s.tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) CloseTicket(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	if t.Status == models.TicketClosed {
		return false, nil
	}
	t.Status = models.TicketClosed
	s.tickets[id] = t
	return true, nil
}

func (s *Store) ListTicketMessages(_ context.Context, ticketID int64) ([]models.TicketMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.TicketMessage(nil), s.messages[ticketID]...), nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

var (
	_ catalog.Repository = (*Store)(nil)
	_ cart.Repository    = (*Store)(nil)
	_ promo.Repository   = (*Store)(nil)
	_ orders.Repository  = (*Store)(nil)
	_ tickets.Repository = (*Store)(nil)
	_ users.Repository   = (*Store)(nil)
)
