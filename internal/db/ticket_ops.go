package db

import (
	"context"

	"github.com/M0nstr1k/ds/internal/models"
)

const ticketColumns = `id, user_id, message, status, created_at`

func scanTicket(row interface{ Scan(...any) error }) (models.SupportTicket, error) {
	var t models.SupportTicket
	err := row.Scan(&t.ID, &t.UserID, &t.Message, &t.Status, &t.CreatedAt)
	return t, err
}

func (s *Store) CreateTicket(ctx context.Context, userID int64, message string) (models.SupportTicket, error) {
	return scanTicket(s.db.QueryRowContext(ctx, `
        INSERT INTO support_tickets (user_id, message, status, created_at)
        VALUES ($1, $2, $3, NOW()) RETURNING `+ticketColumns,
		userID, message, models.TicketOpen))
}

func (s *Store) AddTicketMessage(ctx context.Context, ticketID, senderID int64, message string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO ticket_messages (ticket_id, sender_id, message, created_at)
        VALUES ($1, $2, $3, NOW())`, ticketID, senderID, message)
	return err
}

func (s *Store) GetTicket(ctx context.Context, id int64) (models.SupportTicket, error) {
	return scanTicket(s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM support_tickets WHERE id = $1`, id))
}

func (s *Store) ListOpenTickets(ctx context.Context) ([]models.SupportTicket, error) {
	return s.queryTickets(ctx, `SELECT `+ticketColumns+` FROM support_tickets WHERE status = $1 ORDER BY id`, models.TicketOpen)
}

func (s *Store) ListUserTickets(ctx context.Context, userID int64, limit int) ([]models.SupportTicket, error) {
	return s.queryTickets(ctx,
		`SELECT `+ticketColumns+` FROM support_tickets WHERE user_id = $1 ORDER BY id DESC LIMIT $2`,
		userID, limitOrAll(limit))
}

// CloseTicket возвращает false, если тикет уже закрыт. Отсутствующий тикет - sql.ErrNoRows.
func (s *Store) CloseTicket(ctx context.Context, id int64) (bool, error) {
	ok, err := affected(s.db.ExecContext(ctx,
		`UPDATE support_tickets SET status = $2 WHERE id = $1 AND status <> $2`, id, models.TicketClosed))
	if err != nil || ok {
		return ok, err
	}
	if _, err := s.GetTicket(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) ListTicketMessages(ctx context.Context, ticketID int64) ([]models.TicketMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, ticket_id, sender_id, message, created_at
        FROM ticket_messages WHERE ticket_id = $1 ORDER BY id`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.TicketMessage
	for rows.Next() {
		var m models.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.SenderID, &m.Message, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) queryTickets(ctx context.Context, query string, args ...any) ([]models.SupportTicket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.SupportTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
