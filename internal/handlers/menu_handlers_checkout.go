package handlers

import (
	"errors"
	"fmt"
	"log"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/formatters"
	"github.com/M0nstr1k/ds/internal/orders"
	"github.com/M0nstr1k/ds/internal/promo"
	"github.com/M0nstr1k/ds/internal/session"
	"github.com/M0nstr1k/ds/internal/utils"
)

// --- Промокод ---

func (bh *BotHandler) handlePromoButton(ev eventContext, query *tgbotapi.CallbackQuery) {
	bh.answer(query, "")
	bh.Deps.SessionManager.Enter(ev.chatID, session.PromoEntry{})
	bh.sendMessage(ev.chatID, "Введите промокод", backKeyboard())
}

func (bh *BotHandler) handlePromoEntry(ev eventContext, text string) {
	code, err := bh.Deps.Promos.Check(ev.ctx, text)
	switch {
	case errors.Is(err, promo.ErrNotFound), errors.Is(err, promo.ErrBadCode):
		bh.sendMessage(ev.chatID, "Неверный промокод", nil)
		return
	case errors.Is(err, promo.ErrExhausted):
		bh.sendMessage(ev.chatID, "Промокод больше недоступен", nil)
		return
	case errors.Is(err, promo.ErrExpired):
		bh.sendMessage(ev.chatID, "Срок действия промокода истек", nil)
		return
	case err != nil:
		logErr("handlePromoEntry", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось проверить промокод. Попробуйте позже.", nil)
		return
	}
	bh.Deps.SessionManager.SetPromo(ev.chatID, code.Code)
	bh.Deps.SessionManager.Leave(ev.chatID)
	bh.sendMessage(ev.chatID, fmt.Sprintf("Промокод применен, скидка %d%%", code.Percent), mainMenuKeyboard(ev.isAdmin))
	bh.ShowCart(ev)
}

// --- Оформление ---

func (bh *BotHandler) handlePay(ev eventContext, query *tgbotapi.CallbackQuery) {
	sess := bh.Deps.SessionManager.Get(ev.chatID)
	quote, err := bh.Deps.Orders.Quote(ev.ctx, ev.userID, sess.Promo)
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		bh.answer(query, "Корзина пуста")
		return
	case errors.Is(err, orders.ErrPromoInvalid):
		bh.answer(query, "Промокод недействителен")
		bh.ShowCart(ev)
		return
	case err != nil:
		logErr("handlePay", ev, err)
		bh.answer(query, "❌ Ошибка оформления заказа")
		return
	}
	bh.answer(query, "")
	bh.Deps.SessionManager.Enter(ev.chatID, session.ChooseShipping{Total: quote.Discounted, Promo: quote.Promo})
	bh.sendMessage(ev.chatID, "Выберите службу доставки", shippingKeyboard())
}

func shippingKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, key := range constants.ShippingOrder {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(constants.ShippingServices[key], key),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// handleShippingChoice оформляет заказ по выбранной службе доставки.
// Если сумма корзины изменилась с момента показа, покупатель выбирает доставку заново по новой сумме.
func (bh *BotHandler) handleShippingChoice(ev eventContext, s session.ChooseShipping, query *tgbotapi.CallbackQuery) {
	// Ошибки пересчета повторит Checkout.
	if quote, err := bh.Deps.Orders.Quote(ev.ctx, ev.userID, s.Promo); err == nil && quote.Discounted != s.Total {
		log.Printf("handleShippingChoice: сумма корзины chatID %d изменилась с %d до %d", ev.chatID, s.Total, quote.Discounted)
		bh.answer(query, "")
		if query.Message != nil {
			bh.removeButtons(ev.chatID, query.Message.MessageID)
		}
		bh.Deps.SessionManager.Enter(ev.chatID, session.ChooseShipping{Total: quote.Discounted, Promo: quote.Promo})
		bh.sendMessage(ev.chatID, fmt.Sprintf("Сумма заказа изменилась: %s\nВыберите службу доставки", utils.FormatMoney(quote.Discounted)), shippingKeyboard())
		return
	}
	order, err := bh.Deps.Orders.Checkout(ev.ctx, ev.userID, query.Data, s.Promo)
	switch {
	case errors.Is(err, orders.ErrUnknownCarrier):
		bh.answer(query, "Неизвестная служба доставки")
		return
	case errors.Is(err, orders.ErrEmptyCart):
		bh.Deps.SessionManager.Leave(ev.chatID)
		bh.answer(query, "Корзина пуста")
		return
	case errors.Is(err, orders.ErrPromoInvalid):
		bh.Deps.SessionManager.Leave(ev.chatID)
		bh.answer(query, "Промокод недействителен")
		bh.ShowCart(ev)
		return
	case errors.Is(err, orders.ErrNoPaymentCards):
		bh.Deps.SessionManager.Leave(ev.chatID)
		bh.answer(query, "")
		bh.sendMessage(ev.chatID, "Оплата временно недоступна. Попробуйте позже.", nil)
		return
	case err != nil:
		logErr("handleShippingChoice", ev, err)
		bh.answer(query, "❌ Ошибка оформления заказа")
		return
	}
	card, err := bh.Deps.Orders.CardNumber(order)
	if err != nil {
		logErr("handleShippingChoice", ev, err)
		bh.answer(query, "❌ Ошибка оформления заказа")
		return
	}

	bh.answer(query, "")
	if query.Message != nil {
		bh.removeButtons(ev.chatID, query.Message.MessageID)
	}
	bh.Deps.SessionManager.Enter(ev.chatID, session.AwaitProof{OrderID: order.ID})
	bh.sendMessage(ev.chatID, fmt.Sprintf("Заказ #%d, доставка: %s\nОплатите %s на карту <code>%s</code> и отправьте чек",
		order.ID, order.ShippingService, utils.FormatMoney(order.Total), utils.EscapeHTML(card)), backKeyboard())
}

// handlePaymentProof пересылает фото чека ответственному админу.
func (bh *BotHandler) handlePaymentProof(ev eventContext, s session.AwaitProof, message *tgbotapi.Message) {
	if len(message.Photo) == 0 {
		bh.sendMessage(ev.chatID, prompts[constants.STATE_AWAIT_PROOF], nil)
		return
	}
	order, err := bh.Deps.Orders.SubmitProof(ev.ctx, ev.userID, s.OrderID)
	if errors.Is(err, orders.ErrNotFound) || errors.Is(err, orders.ErrBadTransition) {
		bh.Deps.SessionManager.Leave(ev.chatID)
		bh.sendMessage(ev.chatID, "Заказ уже обработан", mainMenuKeyboard(ev.isAdmin))
		return
	}
	if err != nil {
		logErr("handlePaymentProof", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось принять чек. Попробуйте еще раз.", nil)
		return
	}

	items, err := bh.Deps.Orders.Items(ev.ctx, order.ID)
	if err != nil {
		log.Printf("handlePaymentProof: ошибка получения позиций заказа #%d: %v", order.ID, err)
	}
	caption := formatters.FormatProofCaption(order, bh.userTag(ev.ctx, ev.userID), items)

	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить", fmt.Sprintf("%s%d", constants.CALLBACK_PREFIX_CONFIRM_ORDER, order.ID)),
		tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", fmt.Sprintf("%s%d", constants.CALLBACK_PREFIX_CANCEL_ORDER, order.ID)),
	))
	photo := message.Photo[len(message.Photo)-1]
	bh.sendPhoto(order.AdminID, tgbotapi.FileID(photo.FileID), caption, markup)

	bh.Deps.SessionManager.SetPromo(ev.chatID, "")
	bh.Deps.SessionManager.Leave(ev.chatID)
	bh.sendMessage(ev.chatID, "Чек отправлен, ожидайте подтверждения", mainMenuKeyboard(ev.isAdmin))
}

// handleAddressInput сохраняет ФИО, телефон и адрес после подтверждения оплаты.
// handleAddressButton возвращает покупателя к вводу данных доставки подтвержденного заказа.
func (bh *BotHandler) handleAddressButton(ev eventContext, query *tgbotapi.CallbackQuery) {
	orderID, ok := parseIDData(query.Data, constants.CALLBACK_PREFIX_ADDRESS)
	if !ok {
		bh.answer(query, "Заказ не найден")
		return
	}
	order, err := bh.Deps.Orders.Get(ev.ctx, orderID)
	if err != nil && !errors.Is(err, orders.ErrNotFound) {
		logErr("handleAddressButton", ev, err)
		bh.answer(query, "❌ Ошибка")
		return
	}
	if err != nil || order.UserID != ev.userID {
		bh.answer(query, "Заказ не найден")
		return
	}
	if !orders.NeedsRecipient(order) {
		bh.answer(query, "Данные по этому заказу уже не нужны")
		return
	}
	bh.answer(query, "")
	bh.leaveStep(ev)
	bh.Deps.SessionManager.Enter(ev.chatID, session.AwaitAddress{OrderID: order.ID})
	bh.sendMessage(ev.chatID, fmt.Sprintf("Заказ #%d. %s", order.ID, prompts[constants.STATE_AWAIT_ADDRESS]), removeKeyboard())
}

func (bh *BotHandler) handleAddressInput(ev eventContext, s session.AwaitAddress, text string) {
	order, err := bh.Deps.Orders.SetRecipient(ev.ctx, ev.userID, s.OrderID, text)
	if errors.Is(err, orders.ErrAddressFormat) {
		bh.sendMessage(ev.chatID, prompts[constants.STATE_AWAIT_ADDRESS], nil)
		return
	}
	bh.Deps.SessionManager.Leave(ev.chatID)
	if errors.Is(err, orders.ErrNotFound) || errors.Is(err, orders.ErrBadTransition) {
		bh.sendMessage(ev.chatID, "Заказ не найден или отменен", mainMenuKeyboard(ev.isAdmin))
		return
	}
	if err != nil {
		logErr("handleAddressInput", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось сохранить данные. Попробуйте позже.", mainMenuKeyboard(ev.isAdmin))
		return
	}
	bh.sendMessage(ev.chatID, "Данные сохранены. Ожидайте отправки заказа", mainMenuKeyboard(ev.isAdmin))

	bh.sendMessage(order.AdminID, formatters.FormatRecipientForAdmin(order, bh.userTag(ev.ctx, ev.userID)), nil)
}
