package handlers

import (
	"errors"
	"fmt"
	"log"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/formatters"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/session"
	"github.com/M0nstr1k/ds/internal/tickets"
	"github.com/M0nstr1k/ds/internal/utils"
)

func supportKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_NEW_TICKET), tgbotapi.NewKeyboardButton(constants.BTN_MY_TICKETS)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_BACK)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func ticketAdminButtons(ticketID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Ответить", fmt.Sprintf("%s%d", constants.CALLBACK_PREFIX_TICKET_CLAIM, ticketID)),
		tgbotapi.NewInlineKeyboardButtonData("Закрыть", fmt.Sprintf("%s%d", constants.CALLBACK_PREFIX_TICKET_CLOSE, ticketID)),
	))
}

func ticketStatusDisplay(status models.TicketStatus) string {
	if status == models.TicketOpen {
		return "открыт"
	}
	return "закрыт"
}

func (bh *BotHandler) SendSupportMenu(ev eventContext) {
	bh.Deps.SessionManager.Enter(ev.chatID, session.SupportMenu{})
	bh.sendMessage(ev.chatID, "Выберите действие", supportKeyboard())
}

// handleSupportMenuInput - кнопки меню поддержки. Остальной текст уходит в общий роутинг.
func (bh *BotHandler) handleSupportMenuInput(ev eventContext, text string) bool {
	switch text {
	case constants.BTN_NEW_TICKET:
		bh.Deps.SessionManager.Enter(ev.chatID, session.SupportCompose{})
		bh.sendMessage(ev.chatID, "Опишите вашу проблему", backKeyboard())
	case constants.BTN_MY_TICKETS:
		bh.sendUserTickets(ev)
	default:
		return false
	}
	return true
}

func (bh *BotHandler) sendUserTickets(ev eventContext) {
	list, err := bh.Deps.Tickets.UserTickets(ev.ctx, ev.userID, constants.UserTicketsLimit)
	if err != nil {
		logErr("sendUserTickets", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить тикеты.", nil)
		return
	}
	if len(list) == 0 {
		bh.sendMessage(ev.chatID, "У вас нет тикетов", nil)
		return
	}
	for _, t := range list {
		text := fmt.Sprintf("#%d | %s | %s", t.ID, ticketStatusDisplay(t.Status), t.CreatedAt.Format(constants.DateTimeLayout))
		var markup any
		if t.Status == models.TicketOpen {
			markup = ticketOpenButton(t.ID)
		}
		bh.sendMessage(ev.chatID, text, markup)
	}
}

func (bh *BotHandler) handleSupportCompose(ev eventContext, text string) {
	t, err := bh.Deps.Tickets.Open(ev.ctx, ev.userID, text)
	if errors.Is(err, tickets.ErrEmptyText) {
		bh.sendMessage(ev.chatID, prompts[constants.STATE_SUPPORT_COMPOSE], nil)
		return
	}
	if err != nil {
		logErr("handleSupportCompose", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось создать тикет. Попробуйте позже.", nil)
		return
	}
	bh.Deps.SessionManager.Leave(ev.chatID)

	notice := fmt.Sprintf("Новый тикет #%d от %s (%d):\n%s", t.ID, bh.userTag(ev.ctx, ev.userID), ev.userID, utils.EscapeHTML(t.Message))
	for _, adminID := range bh.Deps.Config.AdminIDs {
		bh.sendMessage(adminID, notice, ticketAdminButtons(t.ID))
	}
	bh.sendMessage(ev.chatID, fmt.Sprintf("Тикет #%d создан. Ожидайте ответа администратора", t.ID), mainMenuKeyboard(ev.isAdmin))
}

// handleTicketChatText пересылает сообщение собеседнику по тикету.
func (bh *BotHandler) handleTicketChatText(ev eventContext, text string) {
	d, err := bh.Deps.Tickets.Forward(ev.ctx, ev.chatID, text)
	switch {
	case errors.Is(err, tickets.ErrClosed):
		bh.sendMessage(ev.chatID, "Диалог завершен", mainMenuKeyboard(ev.isAdmin))
		return
	case errors.Is(err, tickets.ErrNotInChat):
		bh.SendMainMenu(ev.chatID, ev.isAdmin)
		return
	case err != nil:
		logErr("handleTicketChatText", ev, err)
		bh.sendMessage(ev.chatID, "❌ Сообщение не доставлено. Попробуйте еще раз.", nil)
		return
	}
	if d.PartnerID == 0 {
		if d.From == session.RoleUser {
			bh.sendMessage(ev.chatID, "Сообщение сохранено. Администратор увидит его после подключения.", nil)
		} else {
			log.Printf("handleTicketChatText: пользователь тикета #%d не в переписке, сообщение админа %d только записано", d.TicketID, ev.chatID)
			bh.sendMessage(ev.chatID, "Пользователь сейчас не в диалоге. Сообщение сохранено в истории тикета.", nil)
		}
		return
	}
	bh.sendMessage(d.PartnerID, utils.EscapeHTML(text), nil)
}

// leaveTicketChat завершает переписку для чата и, если он еще на тикете, для собеседника.
func (bh *BotHandler) leaveTicketChat(ev eventContext) {
	ticketID, partnerID, partnerLeft := bh.Deps.Tickets.Leave(ev.chatID)
	log.Printf("leaveTicketChat: chatID %d покинул тикет #%d", ev.chatID, ticketID)
	bh.sendMessage(ev.chatID, "Диалог завершен", removeKeyboard())
	if partnerLeft {
		bh.sendMessage(partnerID, "Диалог завершен", mainMenuKeyboard(bh.Deps.Config.IsAdmin(partnerID)))
	}
}

func (bh *BotHandler) handleTicketReopen(ev eventContext, query *tgbotapi.CallbackQuery) {
	ticketID, ok := parseIDData(query.Data, constants.CALLBACK_PREFIX_TICKET_USER_OPEN)
	if !ok {
		bh.answer(query, "Тикет не найден")
		return
	}
	if _, inChat := bh.Deps.SessionManager.Step(ev.chatID).(session.TicketChat); inChat {
		bh.leaveTicketChat(ev)
	}
	t, adminChat, err := bh.Deps.Tickets.Reopen(ev.ctx, ev.userID, ticketID)
	switch {
	case errors.Is(err, tickets.ErrNotFound):
		bh.answer(query, "Тикет не найден")
		return
	case errors.Is(err, tickets.ErrClosed):
		bh.answer(query, "Тикет закрыт")
		return
	case err != nil:
		logErr("handleTicketReopen", ev, err)
		bh.answer(query, "❌ Ошибка")
		return
	}
	bh.answer(query, "")
	bh.sendMessage(ev.chatID, fmt.Sprintf("Тикет #%d открыт", t.ID), backKeyboard())
	if adminChat != 0 {
		bh.sendMessage(adminChat, "Пользователь возобновил диалог", backKeyboard())
	}
}

// --- Админская часть поддержки ---

func (bh *BotHandler) SendOpenTickets(ev eventContext) {
	bh.leaveStep(ev)
	list, err := bh.Deps.Tickets.OpenTickets(ev.ctx)
	if err != nil {
		logErr("SendOpenTickets", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить тикеты.", nil)
		return
	}
	if len(list) == 0 {
		bh.sendMessage(ev.chatID, "Открытых тикетов нет", nil)
		return
	}
	for _, t := range list {
		text := fmt.Sprintf("#%d от %s (%s)\n%s", t.ID, bh.userTag(ev.ctx, t.UserID), t.CreatedAt.Format(constants.DateTimeLayout), utils.EscapeHTML(t.Message))
		bh.sendMessage(ev.chatID, text, ticketAdminButtons(t.ID))
	}
}

func (bh *BotHandler) handleTicketClaim(ev eventContext, query *tgbotapi.CallbackQuery) {
	ticketID, ok := parseIDData(query.Data, constants.CALLBACK_PREFIX_TICKET_CLAIM)
	if !ok {
		bh.answer(query, "Тикет не найден")
		return
	}
	if current, inChat := bh.Deps.SessionManager.Step(ev.chatID).(session.TicketChat); inChat && current.TicketID != ticketID {
		bh.leaveTicketChat(ev)
	}
	t, joined, err := bh.Deps.Tickets.Claim(ev.ctx, ev.userID, ticketID)
	if errors.Is(err, tickets.ErrNotFound) || errors.Is(err, tickets.ErrClosed) {
		bh.answer(query, "Тикет не найден")
		return
	}
	if err != nil {
		logErr("handleTicketClaim", ev, err)
		bh.answer(query, "❌ Ошибка")
		return
	}
	bh.answer(query, "")
	if msgs, err := bh.Deps.Tickets.Messages(ev.ctx, t.ID); err != nil {
		logErr("handleTicketClaim", ev, err)
	} else if len(msgs) > 0 {
		bh.sendMessage(ev.chatID, formatters.FormatTicketHistory(t, msgs), nil)
	}
	bh.sendMessage(ev.chatID, fmt.Sprintf("Ответ на тикет #%d. Напишите сообщение", t.ID), backKeyboard())
	if !joined {
		log.Printf("handleTicketClaim: пользователь %d занят, тикет #%d ждет его подключения", t.UserID, t.ID)
		bh.sendMessage(ev.chatID, "Пользователь сейчас занят. Сообщения сохранятся в истории, пока он не откроет диалог.", nil)
		bh.sendMessage(t.UserID, fmt.Sprintf("Администратор подключился к вашему тикету #%d. Завершите текущее действие и откройте диалог.", t.ID), ticketOpenButton(t.ID))
		return
	}
	bh.sendMessage(t.UserID, fmt.Sprintf("Администратор подключился к вашему тикету #%d.", t.ID), backKeyboard())
}

func ticketOpenButton(ticketID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Открыть диалог", fmt.Sprintf("%s%d", constants.CALLBACK_PREFIX_TICKET_USER_OPEN, ticketID)),
	))
}

func (bh *BotHandler) handleTicketClose(ev eventContext, query *tgbotapi.CallbackQuery, messageID int) {
	ticketID, ok := parseIDData(query.Data, constants.CALLBACK_PREFIX_TICKET_CLOSE)
	if !ok {
		bh.answer(query, "Тикет не найден")
		return
	}
	t, evicted, err := bh.Deps.Tickets.Close(ev.ctx, ticketID)
	bh.notifyEvicted(evicted)
	switch {
	case errors.Is(err, tickets.ErrNotFound):
		bh.answer(query, "Тикет не найден")
		return
	case errors.Is(err, tickets.ErrClosed):
		bh.answer(query, "Уже закрыт")
		return
	case err != nil:
		logErr("handleTicketClose", ev, err)
		bh.answer(query, "❌ Ошибка")
		return
	}
	bh.removeButtons(ev.chatID, messageID)
	bh.answer(query, "Тикет закрыт")
	bh.sendMessage(t.UserID, fmt.Sprintf("Ваш тикет #%d закрыт администратором", t.ID), nil)
}

func (bh *BotHandler) notifyEvicted(chatIDs []int64) {
	for _, chatID := range chatIDs {
		bh.sendMessage(chatID, "Диалог завершен", mainMenuKeyboard(bh.Deps.Config.IsAdmin(chatID)))
	}
}
