package models

import "time"

// TicketStatus - статус обращения в поддержку.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// SupportTicket - обращение пользователя в поддержку.
type SupportTicket struct {
	ID        int64
	UserID    int64
	Message   string // Первое сообщение пользователя
	Status    TicketStatus
	CreatedAt time.Time
}

// TicketMessage - запись в истории переписки по тикету.
type TicketMessage struct {
	ID        int64
	TicketID  int64
	SenderID  int64
	Message   string
	CreatedAt time.Time
}
