package handlers

import (
	"log"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/session"
)

// prompts - подсказки шагов, которые повторяются при неподходящем вводе.
var prompts = map[string]string{
	constants.STATE_SUPPORT_COMPOSE: "Опишите вашу проблему текстом",
	constants.STATE_TICKET_CHAT:     "В переписке поддерживаются только текстовые сообщения",
	constants.STATE_PROMO_ENTRY:     "Введите промокод",
	constants.STATE_AWAIT_PROOF:     "Отправьте фото чека об оплате",
	constants.STATE_AWAIT_ADDRESS:   "Отправьте данные в формате:\nФИО\nТелефон\nАдрес",

	constants.STATE_PROMO_DELETE:  "Введите код промокода для удаления",
	constants.STATE_PROMO_CODE:    "Введите код промокода",
	constants.STATE_PROMO_PERCENT: "Процент скидки (от 0 до 100)",
	constants.STATE_PROMO_LIMIT:   "Количество активаций (0 - бесконечно)",
	constants.STATE_PROMO_EXPIRY:  "Срок действия (дней, 0 - без срока)",

	constants.STATE_PRODUCT_PHOTO: "Отправьте фото товара",
	constants.STATE_PRODUCT_NAME:  "✏️ Название товара",
	constants.STATE_PRODUCT_DESC:  "📋 Описание товара",
	constants.STATE_PRODUCT_PRICE: "💸 Цена товара",
	constants.STATE_PRODUCT_STOCK: "Наличие (количество)",
	constants.STATE_PRODUCT_SIZES: "Доступные размеры через запятую (\"-\" - без размера)",

	constants.STATE_TRACK_INPUT: "Введите трек-номер",
	constants.STATE_BROADCAST:   "Введите текст рассылки",
}

// serviceUnavailableText - ответ, когда пользователя не удалось проверить.
const serviceUnavailableText = "Сервис временно недоступен, попробуйте позже"

// HandleMessage обрабатывает входящие сообщения от Telegram.
// Порядок: бан -> /start -> активный шаг -> команды админа -> кнопки меню.
func (bh *BotHandler) HandleMessage(update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil {
		return
	}
	ev, cancel := bh.newEvent(message.Chat.ID, message.From.ID)
	defer cancel()

	text := strings.TrimSpace(message.Text)
	kind := session.EventText
	if len(message.Photo) > 0 {
		kind = session.EventPhoto
	}
	log.Printf("HandleMessage: ChatID=%d, UserID=%d, Text='%s', Photo: %v", ev.chatID, ev.userID, text, kind == session.EventPhoto)

	cmd, args, isCommand := parseCommand(text)
	startArg := ""
	if isCommand && cmd == "start" {
		startArg = args
	}
	user, err := bh.Deps.Users.Register(ev.ctx, profileOf(message.From), startArg)
	if err != nil {
		// Без записи пользователя бан не проверить, поэтому сообщение отклоняется.
		logErr("HandleMessage", ev, err)
		bh.sendMessage(ev.chatID, serviceUnavailableText, nil)
		return
	}
	if user.Banned {
		log.Printf("HandleMessage: пользователь %d заблокирован, сообщение проигнорировано", ev.userID)
		bh.sendMessage(ev.chatID, "Вы заблокированы", removeKeyboard())
		return
	}

	if isCommand && cmd == "start" {
		bh.handleStart(ev)
		return
	}

	step := bh.Deps.SessionManager.Step(ev.chatID)
	switch session.Route(step, kind, text) {
	case session.Back:
		bh.handleBack(ev, step, text)
		return
	case session.Reprompt:
		bh.sendMessage(ev.chatID, prompts[step.State()], nil)
		return
	case session.Handle:
		bh.handleStep(ev, step, message, text)
		return
	case session.HandleOrGlobal:
		if bh.handleStep(ev, step, message, text) {
			return
		}
	}

	if isCommand && ev.isAdmin {
		bh.handleAdminCommand(ev, cmd, args)
		return
	}
	if bh.handleMenuButton(ev, text) {
		return
	}
	log.Printf("HandleMessage: необработанное сообщение от chatID %d: '%s'", ev.chatID, text)
	bh.sendMessage(ev.chatID, "Не понимаю команду. Воспользуйтесь меню 👇", mainMenuKeyboard(ev.isAdmin))
}

func profileOf(u *tgbotapi.User) models.Profile {
	return models.Profile{
		TelegramID: u.ID,
		Username:   u.UserName,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}
}

// handleStart возвращает чат в главное меню. Регистрация уже выполнена.
func (bh *BotHandler) handleStart(ev eventContext) {
	bh.leaveStep(ev)
	bh.SendMainMenu(ev.chatID, ev.isAdmin)
}

// leaveStep выводит чат из текущего шага. Переписка по тикету завершается для обеих сторон.
func (bh *BotHandler) leaveStep(ev eventContext) {
	if _, ok := bh.Deps.SessionManager.Step(ev.chatID).(session.TicketChat); ok {
		bh.leaveTicketChat(ev)
		return
	}
	bh.Deps.SessionManager.Leave(ev.chatID)
}

// SendMainMenu отправляет главное меню.
func (bh *BotHandler) SendMainMenu(chatID int64, isAdmin bool) {
	bh.sendMessage(chatID, "Добро пожаловать в магазин одежды Friendly Wears!", mainMenuKeyboard(isAdmin))
}

// handleBack обрабатывает зарезервированную кнопку "назад" в шагах, которые ее поддерживают.
func (bh *BotHandler) handleBack(ev eventContext, step session.Step, text string) {
	log.Printf("handleBack: chatID %d выходит из шага %s", ev.chatID, session.StateOf(step))
	switch step.(type) {
	case session.TicketChat:
		bh.leaveTicketChat(ev)
		bh.SendMainMenu(ev.chatID, ev.isAdmin)
	case session.AwaitProof:
		bh.Deps.SessionManager.Leave(ev.chatID)
		bh.sendMessage(ev.chatID, "Оплата прервана. Корзина сохранена, оформите заказ заново, когда будете готовы.", mainMenuKeyboard(ev.isAdmin))
	case session.SupportMenu, session.SupportCompose, session.PromoEntry:
		bh.Deps.SessionManager.Leave(ev.chatID)
		bh.SendMainMenu(ev.chatID, ev.isAdmin)
	default:
		bh.Deps.SessionManager.Leave(ev.chatID)
		if text == constants.BTN_ADMIN_BACK || !ev.isAdmin {
			bh.SendMainMenu(ev.chatID, ev.isAdmin)
			return
		}
		bh.SendAdminPanel(ev.chatID)
	}
}

// handleStep передает событие активному шагу. false - шаг событие не принял.
// Шаги, недоступные не-админу, сбрасываются.
func (bh *BotHandler) handleStep(ev eventContext, step session.Step, message *tgbotapi.Message, text string) bool {
	switch s := step.(type) {
	case session.SupportMenu:
		return bh.handleSupportMenuInput(ev, text)
	case session.SupportCompose:
		bh.handleSupportCompose(ev, text)
	case session.TicketChat:
		bh.handleTicketChatText(ev, text)
	case session.PromoEntry:
		bh.handlePromoEntry(ev, text)
	case session.AwaitProof:
		bh.handlePaymentProof(ev, s, message)
	case session.AwaitAddress:
		bh.handleAddressInput(ev, s, text)
	default:
		if !ev.isAdmin {
			log.Printf("handleStep: шаг %s недоступен пользователю %d, сброс", step.State(), ev.userID)
			bh.Deps.SessionManager.Leave(ev.chatID)
			return false
		}
		return bh.handleAdminStep(ev, step, message, text)
	}
	return true
}

// handleMenuButton обрабатывает кнопки главного меню и админ-панели.
func (bh *BotHandler) handleMenuButton(ev eventContext, text string) bool {
	switch text {
	case constants.BTN_CATALOG:
		bh.SendProduct(ev, 0)
	case constants.BTN_CART:
		bh.ShowCart(ev)
	case constants.BTN_ORDERS:
		bh.SendOrderHistory(ev)
	case constants.BTN_SUPPORT:
		bh.SendSupportMenu(ev)
	case constants.BTN_REFERRALS:
		bh.SendReferralInfo(ev)
	default:
		if ev.isAdmin {
			return bh.handleAdminButton(ev, text)
		}
		return false
	}
	return true
}
