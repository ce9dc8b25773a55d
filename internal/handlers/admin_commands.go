package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/M0nstr1k/ds/internal/catalog"
	"github.com/M0nstr1k/ds/internal/tickets"
	"github.com/M0nstr1k/ds/internal/users"
	"github.com/M0nstr1k/ds/internal/utils"
)

// handleAdminCommand - текстовые команды администратора.
func (bh *BotHandler) handleAdminCommand(ev eventContext, cmd, args string) {
	log.Printf("handleAdminCommand: админ %d, команда /%s %s", ev.userID, cmd, args)
	switch cmd {
	case "tickets":
		bh.SendOpenTickets(ev)
	case "stats":
		bh.SendStatistics(ev)
	case "reply":
		bh.commandReply(ev, args)
	case "confirm", "cancel":
		bh.commandOrder(ev, cmd, args)
	case "delete":
		bh.commandDeleteProduct(ev, args)
	case "ban", "unban":
		bh.commandBan(ev, cmd, args)
	case "edit":
		bh.commandEdit(ev, args)
	default:
		bh.sendMessage(ev.chatID, "Неизвестная команда", nil)
	}
}

// singleID разбирает аргумент команды вида "/cmd id".
func (bh *BotHandler) singleID(ev eventContext, cmd, args, usage string) (int64, bool) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		bh.sendMessage(ev.chatID, fmt.Sprintf("Использование: /%s %s", cmd, usage), nil)
		return 0, false
	}
	id, err := utils.ParseID(fields[0])
	if err != nil {
		bh.sendMessage(ev.chatID, "Неверный id", nil)
		return 0, false
	}
	return id, true
}

func (bh *BotHandler) commandReply(ev eventContext, args string) {
	idPart, text, _ := strings.Cut(args, " ")
	text = strings.TrimSpace(text)
	if idPart == "" || text == "" {
		bh.sendMessage(ev.chatID, "Использование: /reply ticket_id текст", nil)
		return
	}
	ticketID, err := utils.ParseID(idPart)
	if err != nil {
		bh.sendMessage(ev.chatID, "Неверный id", nil)
		return
	}
	t, evicted, err := bh.Deps.Tickets.Reply(ev.ctx, ev.userID, ticketID, text)
	bh.notifyEvicted(evicted)
	switch {
	case errors.Is(err, tickets.ErrNotFound), errors.Is(err, tickets.ErrClosed):
		bh.sendMessage(ev.chatID, "Тикет не найден", nil)
		return
	case err != nil:
		logErr("commandReply", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось отправить ответ", nil)
		return
	}
	bh.sendMessage(t.UserID, "Ответ администрации: "+utils.EscapeHTML(text), nil)
	bh.sendMessage(ev.chatID, "Ответ отправлен", nil)
}

func (bh *BotHandler) commandOrder(ev eventContext, cmd, args string) {
	orderID, ok := bh.singleID(ev, cmd, args, "order_id")
	if !ok {
		return
	}
	var err error
	if cmd == "confirm" {
		_, err = bh.confirmOrder(ev, orderID)
	} else {
		_, err = bh.cancelOrder(ev, orderID)
	}
	if err != nil {
		answer := orderActionAnswer(err)
		switch answer {
		case "Заказ не найден":
			answer = "Заказ не найден или не ваш"
		case "❌ Ошибка":
			logErr("commandOrder", ev, err)
		}
		bh.sendMessage(ev.chatID, answer, nil)
		return
	}
	if cmd == "confirm" {
		bh.sendMessage(ev.chatID, "Заказ подтвержден", nil)
	} else {
		bh.sendMessage(ev.chatID, "Заказ отменен", nil)
	}
}

func (bh *BotHandler) commandDeleteProduct(ev eventContext, args string) {
	productID, ok := bh.singleID(ev, "delete", args, "product_id")
	if !ok {
		return
	}
	err := bh.Deps.Catalog.Delete(ev.ctx, productID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		bh.sendMessage(ev.chatID, "Товар не найден", nil)
	case err != nil:
		logErr("commandDeleteProduct", ev, err)
		bh.sendMessage(ev.chatID, "❌ Ошибка удаления", nil)
	default:
		log.Printf("commandDeleteProduct: админ %d удалил товар #%d", ev.userID, productID)
		bh.sendMessage(ev.chatID, "Товар удален", nil)
	}
}

func (bh *BotHandler) commandBan(ev eventContext, cmd, args string) {
	userID, ok := bh.singleID(ev, cmd, args, "user_id")
	if !ok {
		return
	}
	var err error
	if cmd == "ban" {
		err = bh.Deps.Users.Ban(ev.ctx, userID)
	} else {
		err = bh.Deps.Users.Unban(ev.ctx, userID)
	}
	switch {
	case errors.Is(err, users.ErrNotFound):
		bh.sendMessage(ev.chatID, "Пользователь не найден", nil)
		return
	case err != nil:
		logErr("commandBan", ev, err)
		bh.sendMessage(ev.chatID, "❌ Ошибка", nil)
		return
	}
	if cmd == "ban" {
		bh.Deps.SessionManager.Drop(userID)
		bh.sendMessage(ev.chatID, "Пользователь забанен", nil)
		bh.sendMessage(userID, "Вы заблокированы администратором", removeKeyboard())
		return
	}
	bh.sendMessage(ev.chatID, "Пользователь разбанен", nil)
	bh.sendMessage(userID, "Вы снова можете пользоваться ботом", mainMenuKeyboard(bh.Deps.Config.IsAdmin(userID)))
}

func (bh *BotHandler) commandEdit(ev eventContext, args string) {
	fields := strings.SplitN(args, " ", 3)
	if len(fields) < 3 || strings.TrimSpace(fields[2]) == "" {
		bh.sendMessage(ev.chatID, "Использование: /edit id поле значение", nil)
		return
	}
	productID, err := utils.ParseID(fields[0])
	if err != nil {
		bh.sendMessage(ev.chatID, "Неверный id", nil)
		return
	}
	err = bh.Deps.Catalog.Edit(ev.ctx, productID, strings.TrimSpace(fields[1]), strings.TrimSpace(fields[2]))
	switch {
	case errors.Is(err, catalog.ErrUnknownField):
		bh.sendMessage(ev.chatID, "Поле должно быть name, description или price", nil)
	case errors.Is(err, catalog.ErrBadPrice):
		bh.sendMessage(ev.chatID, "Цена должна быть числом", nil)
	case errors.Is(err, catalog.ErrNotFound):
		bh.sendMessage(ev.chatID, "Товар не найден", nil)
	case err != nil:
		logErr("commandEdit", ev, err)
		bh.sendMessage(ev.chatID, "❌ Ошибка", nil)
	default:
		log.Printf("commandEdit: админ %d изменил товар #%d", ev.userID, productID)
		bh.sendMessage(ev.chatID, "Товар обновлен", nil)
	}
}
