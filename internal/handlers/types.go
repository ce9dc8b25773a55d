package handlers

import (
	"context"
	"log"

	"github.com/M0nstr1k/ds/internal/cart"
	"github.com/M0nstr1k/ds/internal/catalog"
	"github.com/M0nstr1k/ds/internal/config"
	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/orders"
	"github.com/M0nstr1k/ds/internal/promo"
	"github.com/M0nstr1k/ds/internal/session"
	"github.com/M0nstr1k/ds/internal/telegram_api"
	"github.com/M0nstr1k/ds/internal/tickets"
	"github.com/M0nstr1k/ds/internal/users"
)

// HandlerDependencies содержит все зависимости, необходимые для обработчиков.
// HandlerDependencies contains all dependencies required for handlers.
type HandlerDependencies struct {
	Config         *config.Config
	Sender         telegram_api.Sender
	SessionManager *session.SessionManager

	Catalog *catalog.Catalog
	Cart    *cart.Ledger
	Promos  *promo.Engine
	Orders  *orders.Lifecycle
	Tickets *tickets.Relay
	Users   *users.Registry
}

// BotHandler инкапсулирует логику обработки сообщений и коллбэков.
// BotHandler encapsulates the logic for handling messages and callbacks.
type BotHandler struct {
	Deps HandlerDependencies
}

// NewBotHandler создает новый экземпляр BotHandler.
func NewBotHandler(deps HandlerDependencies) *BotHandler {
	if deps.Config == nil || deps.Sender == nil || deps.SessionManager == nil ||
		deps.Catalog == nil || deps.Cart == nil || deps.Promos == nil ||
		deps.Orders == nil || deps.Tickets == nil || deps.Users == nil {
		panic("Не все зависимости для BotHandler были предоставлены.")
	}
	return &BotHandler{Deps: deps}
}

// eventContext - контекст обработки одного входящего события.
type eventContext struct {
	ctx     context.Context
	chatID  int64
	userID  int64
	isAdmin bool
}

func (bh *BotHandler) newEvent(chatID, userID int64) (eventContext, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.HandlerTimeout)
	return eventContext{
		ctx:     ctx,
		chatID:  chatID,
		userID:  userID,
		isAdmin: bh.Deps.Config.IsAdmin(userID),
	}, cancel
}

// logErr - общий формат для ошибок, которые пользователь видит как короткое сообщение.
func logErr(fn string, ev eventContext, err error) {
	log.Printf("%s: chatID %d: %v", fn, ev.chatID, err)
}
