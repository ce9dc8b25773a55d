package session

import (
	"log"
	"sync"
)

// Session - контекст одного чата.
// Session is the per-chat context: the active step plus cart context shared across steps.
type Session struct {
	Step          Step   // nil - шага нет, чат в главном меню
	Promo         string // промокод, примененный к корзине
	CartMessageID int    // последнее отрисованное сообщение корзины
}

func (s *Session) empty() bool {
	return s.Step == nil && s.Promo == "" && s.CartMessageID == 0
}

// SessionManager хранит сессии всех чатов в памяти процесса.
// Запись в сессию чужого чата допускается только через методы парной переписки.
// SessionManager keeps all chat sessions in process memory.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session // Ключ: chatID
	seq      uint64
}

// NewSessionManager создает и возвращает новый экземпляр SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[int64]*Session),
	}
}

// Get возвращает копию сессии чата. Для чата без сессии возвращается пустая сессия.
func (sm *SessionManager) Get(chatID int64) Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if s, ok := sm.sessions[chatID]; ok {
		return *s
	}
	return Session{}
}

// Step возвращает текущий шаг чата или nil.
func (sm *SessionManager) Step(chatID int64) Step {
	return sm.Get(chatID).Step
}

// Expect возвращает текущий шаг, если он имеет состояние state.
func (sm *SessionManager) Expect(chatID int64, state string) (Step, bool) {
	step := sm.Step(chatID)
	if step == nil || step.State() != state {
		return nil, false
	}
	return step, true
}

// entry возвращает запись чата, создавая ее при необходимости. Вызывать под sm.mu.
func (sm *SessionManager) entry(chatID int64) *Session {
	s, ok := sm.sessions[chatID]
	if !ok {
		s = &Session{}
		sm.sessions[chatID] = s
	}
	return s
}

// leave сбрасывает шаг и удаляет пустую запись. Вызывать под sm.mu.
func (sm *SessionManager) leave(chatID int64) {
	s, ok := sm.sessions[chatID]
	if !ok {
		return
	}
	s.Step = nil
	if s.empty() {
		delete(sm.sessions, chatID)
	}
}

// Enter переводит чат в новый шаг. Данные предыдущего шага отбрасываются.
func (sm *SessionManager) Enter(chatID int64, step Step) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if tc, ok := step.(TicketChat); ok {
		sm.seq++
		tc.seq = sm.seq
		step = tc
	}
	sm.entry(chatID).Step = step
	log.Printf("SessionManager.Enter: chatID %d -> %s", chatID, StateOf(step))
}

// EnterIf переводит чат в шаг только если текущий шаг допускает это (allow).
// Проверка и запись выполняются под одной блокировкой.
func (sm *SessionManager) EnterIf(chatID int64, step Step, allow func(current Step) bool) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	var current Step
	if s, ok := sm.sessions[chatID]; ok {
		current = s.Step
	}
	if !allow(current) {
		log.Printf("SessionManager.EnterIf: chatID %d остается в %s", chatID, StateOf(current))
		return false
	}
	sm.entry(chatID).Step = step
	log.Printf("SessionManager.EnterIf: chatID %d -> %s", chatID, StateOf(step))
	return true
}

// LeaveIf возвращает чат в главное меню, если текущий шаг подходит под match.
func (sm *SessionManager) LeaveIf(chatID int64, match func(current Step) bool) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.sessions[chatID]
	if !ok || s.Step == nil || !match(s.Step) {
		return false
	}
	sm.leave(chatID)
	return true
}

// Leave возвращает чат в главное меню, сохраняя контекст корзины.
func (sm *SessionManager) Leave(chatID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.leave(chatID)
}

// Drop полностью удаляет сессию чата.
func (sm *SessionManager) Drop(chatID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, chatID)
}

// SetPromo запоминает (или сбрасывает пустой строкой) промокод корзины.
func (sm *SessionManager) SetPromo(chatID int64, code string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s := sm.entry(chatID)
	s.Promo = code
	if s.empty() {
		delete(sm.sessions, chatID)
	}
}

// SetCartMessage запоминает ID последнего сообщения корзины (0 - сообщения нет).
func (sm *SessionManager) SetCartMessage(chatID int64, messageID int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s := sm.entry(chatID)
	s.CartMessageID = messageID
	if s.empty() {
		delete(sm.sessions, chatID)
	}
}

// --- Парная переписка по тикету ---
// Обе записи меняются под одной блокировкой.

// Pair связывает админа и пользователя по тикету.
// Прежний админ этого тикета не уведомляется и просто перестает получать сообщения пользователя.
// Пользователь, занятый оформлением заказа или вводом данных, в переписку не переводится:
// админ ждет на тикете, а пользователь подключается сам через Rejoin. Возвращает false в этом случае.
func (sm *SessionManager) Pair(adminChatID, userChatID, ticketID int64) (userJoined bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.seq++
	sm.entry(adminChatID).Step = TicketChat{Role: RoleAdmin, TicketID: ticketID, PartnerID: userChatID, seq: sm.seq}
	var current Step
	if s, ok := sm.sessions[userChatID]; ok {
		current = s.Step
	}
	if !Interruptible(current) {
		log.Printf("SessionManager.Pair: тикет #%d, админ %d ждет, пользователь %d занят (%s)", ticketID, adminChatID, userChatID, StateOf(current))
		return false
	}
	sm.entry(userChatID).Step = TicketChat{Role: RoleUser, TicketID: ticketID, PartnerID: adminChatID, seq: sm.seq}
	log.Printf("SessionManager.Pair: тикет #%d, админ %d <-> пользователь %d", ticketID, adminChatID, userChatID)
	return true
}

// Interruptible сообщает, можно ли перевести чат в другой шаг по действию другого чата.
// Прерываются только меню, просмотр каталога и переписка по тикету.
func Interruptible(current Step) bool {
	switch current.(type) {
	case nil, CatalogBrowse, SupportMenu, TicketChat:
		return true
	}
	return false
}

// Rejoin возвращает пользователя в переписку по тикету. Если на тикете все еще
// находится админ (последний подключившийся), пара восстанавливается.
// Возвращает chatID админа или 0.
func (sm *SessionManager) Rejoin(userChatID, ticketID int64) int64 {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var partner int64
	var best uint64
	for chatID, s := range sm.sessions {
		tc, ok := s.Step.(TicketChat)
		if !ok || tc.Role != RoleAdmin || tc.TicketID != ticketID || chatID == userChatID {
			continue
		}
		if partner == 0 || tc.seq > best {
			partner, best = chatID, tc.seq
		}
	}

	sm.seq++
	sm.entry(userChatID).Step = TicketChat{Role: RoleUser, TicketID: ticketID, PartnerID: partner, seq: sm.seq}
	if partner != 0 {
		admin := sm.sessions[partner].Step.(TicketChat)
		admin.PartnerID = userChatID
		sm.sessions[partner].Step = admin
	}
	return partner
}

// Unpair выводит чат из переписки. Собеседник тоже выводится, если он все еще на том же тикете
// и связан именно с этим чатом: вытесненный админ не разрывает чужую пару.
// Возвращает тикет, собеседника и признак того, что собеседник был выведен.
func (sm *SessionManager) Unpair(chatID int64) (ticketID, partnerID int64, partnerLeft bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[chatID]
	if !ok {
		return 0, 0, false
	}
	tc, ok := s.Step.(TicketChat)
	if !ok {
		return 0, 0, false
	}
	sm.leave(chatID)

	if p, ok := sm.sessions[tc.PartnerID]; ok && tc.PartnerID != 0 {
		if ptc, ok := p.Step.(TicketChat); ok && ptc.TicketID == tc.TicketID && ptc.PartnerID == chatID {
			sm.leave(tc.PartnerID)
			partnerLeft = true
		}
	}
	return tc.TicketID, tc.PartnerID, partnerLeft
}

// EvictTicket выводит из переписки по тикету все переданные чаты, которые на нем находятся.
// Возвращает выведенные чаты.
func (sm *SessionManager) EvictTicket(ticketID int64, chatIDs ...int64) []int64 {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var evicted []int64
	for _, chatID := range chatIDs {
		s, ok := sm.sessions[chatID]
		if !ok {
			continue
		}
		if tc, ok := s.Step.(TicketChat); ok && tc.TicketID == ticketID {
			sm.leave(chatID)
			evicted = append(evicted, chatID)
		}
	}
	return evicted
}

// Len - количество активных сессий.
func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
