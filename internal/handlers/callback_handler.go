package handlers

import (
	"log"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/session"
)

// HandleCallback обрабатывает входящие callback query от Telegram.
func (bh *BotHandler) HandleCallback(update tgbotapi.Update) {
	query := update.CallbackQuery
	if query == nil || query.From == nil {
		log.Println("[CALLBACK_HANDLER] Получен пустой CallbackQuery.")
		return
	}
	chatID := query.From.ID
	messageID := 0
	if query.Message != nil {
		chatID = query.Message.Chat.ID
		messageID = query.Message.MessageID
	}
	ev, cancel := bh.newEvent(chatID, query.From.ID)
	defer cancel()
	data := query.Data

	log.Printf("[CALLBACK_HANDLER] START: ChatID=%d, User=%s, OriginalMsgID=%d, Data='%s'",
		chatID, query.From.UserName, messageID, data)

	user, err := bh.Deps.Users.Register(ev.ctx, profileOf(query.From), "")
	if err != nil {
		// Без записи пользователя бан не проверить, поэтому запрос отклоняется.
		logErr("HandleCallback", ev, err)
		bh.answer(query, serviceUnavailableText)
		return
	}
	if user.Banned {
		bh.answer(query, "Доступ запрещен")
		return
	}

	step := bh.Deps.SessionManager.Step(chatID)
	switch session.Route(step, session.EventButton, data) {
	case session.Reprompt:
		log.Printf("HandleCallback: chatID %d в шаге %s, кнопка '%s' отклонена", chatID, step.State(), data)
		bh.answer(query, "")
		bh.sendMessage(chatID, prompts[step.State()], nil)
		return
	case session.Handle, session.HandleOrGlobal:
		if bh.handleStepButton(ev, step, query) {
			return
		}
	}
	bh.dispatchCallback(ev, query, messageID)
}

// handleStepButton - кнопки, которые принадлежат шагу (выбор доставки, смена статуса).
func (bh *BotHandler) handleStepButton(ev eventContext, step session.Step, query *tgbotapi.CallbackQuery) bool {
	data := query.Data
	switch s := step.(type) {
	case session.ChooseShipping:
		if strings.HasPrefix(data, constants.CALLBACK_PREFIX_SHIP) {
			bh.handleShippingChoice(ev, s, query)
			return true
		}
	case session.OrderStatusEdit:
		if !ev.isAdmin {
			return false
		}
		if strings.HasPrefix(data, constants.CALLBACK_PREFIX_SET_STATUS) {
			bh.handleSetStatus(ev, s, query)
			return true
		}
		if data == constants.CALLBACK_ENTER_TRACK {
			bh.handleEnterTrack(ev, s, query)
			return true
		}
	}
	return false
}

func (bh *BotHandler) dispatchCallback(ev eventContext, query *tgbotapi.CallbackQuery, messageID int) {
	data := query.Data
	switch {
	case data == constants.CALLBACK_NOOP:
		bh.answer(query, "")

	// Каталог и корзина
	case data == constants.CALLBACK_CATALOG_NEXT, data == constants.CALLBACK_CATALOG_PREV:
		bh.handleCatalogNav(ev, query, messageID)
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_ADD_SIZE):
		bh.handleAddSize(ev, query, messageID)
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_ADD):
		bh.handleAddToCart(ev, query, messageID)
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_INC),
		strings.HasPrefix(data, constants.CALLBACK_PREFIX_DEC),
		strings.HasPrefix(data, constants.CALLBACK_PREFIX_DEL):
		bh.handleCartQuantity(ev, query, messageID)
	case data == constants.CALLBACK_PROMO:
		bh.handlePromoButton(ev, query)
	case data == constants.CALLBACK_PAY:
		bh.handlePay(ev, query)

	// Заказы
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_ADDRESS):
		bh.handleAddressButton(ev, query)

	// Рефералы
	case data == constants.CALLBACK_GET_DISCOUNT:
		bh.handleGetDiscount(ev, query)
	case data == constants.CALLBACK_REFERRAL_QR:
		bh.handleReferralQR(ev, query)

	// Поддержка
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_TICKET_USER_OPEN):
		bh.handleTicketReopen(ev, query)

	// Шаговые кнопки вне своего шага устарели
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_SHIP),
		strings.HasPrefix(data, constants.CALLBACK_PREFIX_SET_STATUS),
		data == constants.CALLBACK_ENTER_TRACK:
		bh.answer(query, "")

	default:
		if ev.isAdmin && bh.dispatchAdminCallback(ev, query, messageID) {
			return
		}
		log.Printf("[CALLBACK_HANDLER] Неизвестный или недоступный коллбэк '%s' от %d", data, ev.userID)
		bh.answer(query, "")
	}
}

// dispatchAdminCallback - кнопки админа. false - коллбэк не админский.
func (bh *BotHandler) dispatchAdminCallback(ev eventContext, query *tgbotapi.CallbackQuery, messageID int) bool {
	data := query.Data
	switch {
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_CONFIRM_ORDER):
		bh.handleConfirmCallback(ev, query, messageID)
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_CANCEL_ORDER):
		bh.handleCancelCallback(ev, query, messageID)
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_PRODUCT_DEL):
		bh.handleProductDelete(ev, query, messageID)
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_ORDER_STATUS):
		bh.handleOrderStatusMenu(ev, query)
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_TICKET_CLAIM):
		bh.handleTicketClaim(ev, query)
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_TICKET_CLOSE):
		bh.handleTicketClose(ev, query, messageID)
	case data == constants.CALLBACK_EXPORT_ORDERS:
		bh.answer(query, "")
		bh.SendOrdersExcel(ev)
	case data == constants.CALLBACK_EXPORT_PROMOS:
		bh.answer(query, "")
		bh.SendPromosExcel(ev)
	case data == constants.CALLBACK_EXPORT_REFERRALS:
		bh.answer(query, "")
		bh.SendReferralsExcel(ev)
	default:
		return false
	}
	return true
}
