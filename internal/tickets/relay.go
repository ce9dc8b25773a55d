package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/session"
)

var (
	ErrNotFound  = errors.New("тикет не найден")
	ErrClosed    = errors.New("тикет закрыт")
	ErrNotInChat = errors.New("чат не находится в переписке по тикету")
	ErrEmptyText = errors.New("пустое сообщение")
)

// Repository - хранилище тикетов. Отсутствие тикета - sql.ErrNoRows.
type Repository interface {
	CreateTicket(ctx context.Context, userID int64, message string) (models.SupportTicket, error)
	AddTicketMessage(ctx context.Context, ticketID, senderID int64, message string) error
	GetTicket(ctx context.Context, id int64) (models.SupportTicket, error)
	ListOpenTickets(ctx context.Context) ([]models.SupportTicket, error)
	ListUserTickets(ctx context.Context, userID int64, limit int) ([]models.SupportTicket, error)
	// CloseTicket возвращает false, если тикет уже был закрыт.
	CloseTicket(ctx context.Context, id int64) (bool, error)
	ListTicketMessages(ctx context.Context, ticketID int64) ([]models.TicketMessage, error)
}

// Delivery - куда переслать сообщение из переписки.
type Delivery struct {
	TicketID  int64
	From      session.Role
	PartnerID int64 // 0 - собеседника нет, сообщение только записано в историю
}

// Relay связывает пользователя и администратора в живую переписку по тикету.
// Состояние пар хранится в сессиях обоих чатов.
type Relay struct {
	repo     Repository
	sessions *session.SessionManager
	admins   []int64
}

func NewRelay(repo Repository, sessions *session.SessionManager, admins []int64) *Relay {
	return &Relay{repo: repo, sessions: sessions, admins: admins}
}

// Open создает тикет с первым сообщением. Уведомление админов - на стороне вызывающего.
func (r *Relay) Open(ctx context.Context, userID int64, text string) (models.SupportTicket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.SupportTicket{}, ErrEmptyText
	}
	t, err := r.repo.CreateTicket(ctx, userID, text)
	if err != nil {
		return models.SupportTicket{}, fmt.Errorf("создание тикета: %w", err)
	}
	if err := r.repo.AddTicketMessage(ctx, t.ID, userID, text); err != nil {
		log.Printf("Relay.Open: ошибка записи первого сообщения тикета #%d: %v", t.ID, err)
	}
	log.Printf("Relay.Open: тикет #%d от пользователя %d", t.ID, userID)
	return t, nil
}

// Claim подключает админа к тикету. Повторный захват другим админом вытесняет прежнего.
// userJoined == false - пользователь занят другим шагом и подключится сам через Reopen.
func (r *Relay) Claim(ctx context.Context, adminID, ticketID int64) (t models.SupportTicket, userJoined bool, err error) {
	t, err = r.openTicket(ctx, ticketID)
	if err != nil {
		return models.SupportTicket{}, false, err
	}
	return t, r.sessions.Pair(adminID, t.UserID, t.ID), nil
}

// Reopen возвращает пользователя в переписку по своему открытому тикету.
// Возвращает chatID админа, если пара восстановлена, иначе 0.
func (r *Relay) Reopen(ctx context.Context, userID, ticketID int64) (models.SupportTicket, int64, error) {
	t, err := r.openTicket(ctx, ticketID)
	if err != nil {
		return models.SupportTicket{}, 0, err
	}
	if t.UserID != userID {
		return models.SupportTicket{}, 0, ErrNotFound
	}
	return t, r.sessions.Rejoin(userID, t.ID), nil
}

// Forward записывает сообщение в историю и возвращает адресата пересылки.
func (r *Relay) Forward(ctx context.Context, chatID int64, text string) (Delivery, error) {
	step, ok := r.sessions.Step(chatID).(session.TicketChat)
	if !ok {
		return Delivery{}, ErrNotInChat
	}
	t, err := r.repo.GetTicket(ctx, step.TicketID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Delivery{}, fmt.Errorf("получение тикета #%d: %w", step.TicketID, err)
	}
	if err != nil || t.Status == models.TicketClosed {
		// Тикет закрыли, пока чат был в переписке.
		r.sessions.EvictTicket(step.TicketID, chatID)
		return Delivery{TicketID: step.TicketID}, ErrClosed
	}
	if err := r.repo.AddTicketMessage(ctx, step.TicketID, chatID, text); err != nil {
		return Delivery{}, fmt.Errorf("запись сообщения тикета #%d: %w", step.TicketID, err)
	}

	d := Delivery{TicketID: step.TicketID, From: step.Role}
	// Сообщение уходит только собеседнику, который все еще на этом тикете.
	if partner, ok := r.sessions.Step(step.PartnerID).(session.TicketChat); ok && step.PartnerID != 0 && partner.TicketID == step.TicketID && partner.PartnerID == chatID {
		d.PartnerID = step.PartnerID
	}
	return d, nil
}

// Leave завершает переписку для чата (кнопка "Назад").
func (r *Relay) Leave(chatID int64) (ticketID, partnerID int64, partnerLeft bool) {
	return r.sessions.Unpair(chatID)
}

// Close закрывает тикет и выводит из переписки владельца и всех админов.
// Возвращает выведенные чаты.
func (r *Relay) Close(ctx context.Context, ticketID int64) (models.SupportTicket, []int64, error) {
	t, err := r.get(ctx, ticketID)
	if err != nil {
		return models.SupportTicket{}, nil, err
	}
	ok, err := r.repo.CloseTicket(ctx, ticketID)
	if err != nil {
		return models.SupportTicket{}, nil, fmt.Errorf("закрытие тикета #%d: %w", ticketID, err)
	}
	evicted := r.sessions.EvictTicket(ticketID, append([]int64{t.UserID}, r.admins...)...)
	if !ok {
		return t, evicted, ErrClosed
	}
	t.Status = models.TicketClosed
	log.Printf("Relay.Close: тикет #%d закрыт", ticketID)
	return t, evicted, nil
}

// Reply - разовый ответ админа командой. Ответ записывается, тикет закрывается.
func (r *Relay) Reply(ctx context.Context, adminID, ticketID int64, text string) (models.SupportTicket, []int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.SupportTicket{}, nil, ErrEmptyText
	}
	if _, err := r.openTicket(ctx, ticketID); err != nil {
		return models.SupportTicket{}, nil, err
	}
	if err := r.repo.AddTicketMessage(ctx, ticketID, adminID, text); err != nil {
		return models.SupportTicket{}, nil, fmt.Errorf("запись ответа по тикету #%d: %w", ticketID, err)
	}
	return r.Close(ctx, ticketID)
}

func (r *Relay) OpenTickets(ctx context.Context) ([]models.SupportTicket, error) {
	return r.repo.ListOpenTickets(ctx)
}

func (r *Relay) UserTickets(ctx context.Context, userID int64, limit int) ([]models.SupportTicket, error) {
	return r.repo.ListUserTickets(ctx, userID, limit)
}

func (r *Relay) Messages(ctx context.Context, ticketID int64) ([]models.TicketMessage, error) {
	if _, err := r.get(ctx, ticketID); err != nil {
		return nil, err
	}
	return r.repo.ListTicketMessages(ctx, ticketID)
}

func (r *Relay) get(ctx context.Context, ticketID int64) (models.SupportTicket, error) {
	t, err := r.repo.GetTicket(ctx, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SupportTicket{}, ErrNotFound
	}
	if err != nil {
		return models.SupportTicket{}, fmt.Errorf("получение тикета #%d: %w", ticketID, err)
	}
	return t, nil
}

func (r *Relay) openTicket(ctx context.Context, ticketID int64) (models.SupportTicket, error) {
	t, err := r.get(ctx, ticketID)
	if err != nil {
		return models.SupportTicket{}, err
	}
	if t.Status != models.TicketOpen {
		return t, ErrClosed
	}
	return t, nil
}
