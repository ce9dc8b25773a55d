package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/M0nstr1k/ds/internal/catalog"
	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/formatters"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/orders"
	"github.com/M0nstr1k/ds/internal/promo"
	"github.com/M0nstr1k/ds/internal/session"
	"github.com/M0nstr1k/ds/internal/utils"
)

// SendAdminPanel отправляет меню администратора.
func (bh *BotHandler) SendAdminPanel(chatID int64) {
	bh.sendMessage(chatID, "Меню администратора", adminKeyboard())
}

func promoMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_PROMO_NEW), tgbotapi.NewKeyboardButton(constants.BTN_PROMO_LIST)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_PROMO_DELETE)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_BACK)),
	)
	kb.ResizeKeyboard = true
	return kb
}

// handleAdminButton обрабатывает кнопки админ-панели. false - текст не является кнопкой.
func (bh *BotHandler) handleAdminButton(ev eventContext, text string) bool {
	switch text {
	case constants.BTN_ADMIN_PANEL:
		log.Printf("handleAdminButton: админ %d открыл админ-панель", ev.userID)
		bh.leaveStep(ev)
		bh.SendAdminPanel(ev.chatID)
	case constants.BTN_ADMIN_BACK:
		bh.leaveStep(ev)
		bh.SendMainMenu(ev.chatID, ev.isAdmin)
	case constants.BTN_ADMIN_ADD_PRODUCT:
		bh.Deps.SessionManager.Enter(ev.chatID, session.ProductPhotoInput{})
		bh.sendMessage(ev.chatID, prompts[constants.STATE_PRODUCT_PHOTO], nil)
	case constants.BTN_ADMIN_PROMOS:
		bh.SendPromoMenu(ev)
	case constants.BTN_ADMIN_PRODUCTS:
		bh.SendProductList(ev)
	case constants.BTN_ADMIN_ORDERS:
		bh.SendRecentOrders(ev)
	case constants.BTN_ADMIN_STATS:
		bh.SendStatistics(ev)
	case constants.BTN_ADMIN_BROADCAST:
		bh.Deps.SessionManager.Enter(ev.chatID, session.BroadcastCompose{})
		bh.sendMessage(ev.chatID, prompts[constants.STATE_BROADCAST], nil)
	case constants.BTN_ADMIN_TICKETS:
		bh.SendOpenTickets(ev)
	case constants.BTN_ADMIN_REFERRALS:
		bh.SendReferralStats(ev)
	case constants.BTN_ADMIN_STATUSES:
		bh.SendOrderStatuses(ev)
	case constants.BTN_ADMIN_EXPORT:
		bh.SendExportMenu(ev)
	default:
		return false
	}
	return true
}

// handleAdminStep - текстовые и фото-шаги админа.
func (bh *BotHandler) handleAdminStep(ev eventContext, step session.Step, message *tgbotapi.Message, text string) bool {
	sm := bh.Deps.SessionManager
	switch s := step.(type) {
	case session.PromoMenu:
		return bh.handlePromoMenuInput(ev, text)
	case session.PromoDelete:
		err := bh.Deps.Promos.Delete(ev.ctx, text)
		switch {
		case errors.Is(err, promo.ErrNotFound):
			bh.sendMessage(ev.chatID, "Код не найден", nil)
		case err != nil:
			logErr("handleAdminStep", ev, err)
			bh.sendMessage(ev.chatID, "❌ Ошибка удаления промокода", nil)
		default:
			bh.sendMessage(ev.chatID, "Промокод удален", nil)
		}
		bh.SendPromoMenu(ev)

	// Мастер промокода
	case session.PromoCodeInput:
		if strings.ContainsAny(text, " \n") || text == "" {
			bh.sendMessage(ev.chatID, "Код не должен содержать пробелов", nil)
			return true
		}
		sm.Enter(ev.chatID, session.PromoPercentInput{Code: text})
		bh.sendMessage(ev.chatID, prompts[constants.STATE_PROMO_PERCENT], nil)
	case session.PromoPercentInput:
		n, err := utils.ParseNonNegative(text)
		if err != nil || n > 100 {
			bh.sendMessage(ev.chatID, "Введите число от 0 до 100", nil)
			return true
		}
		sm.Enter(ev.chatID, session.PromoLimitInput{Code: s.Code, Percent: int(n)})
		bh.sendMessage(ev.chatID, prompts[constants.STATE_PROMO_LIMIT], nil)
	case session.PromoLimitInput:
		n, err := utils.ParseNonNegative(text)
		if err != nil {
			bh.sendMessage(ev.chatID, "Введите число", nil)
			return true
		}
		next := session.PromoExpiryInput{Code: s.Code, Percent: s.Percent}
		if n > 0 {
			next.Limit = sql.NullInt64{Int64: n, Valid: true}
		}
		sm.Enter(ev.chatID, next)
		bh.sendMessage(ev.chatID, prompts[constants.STATE_PROMO_EXPIRY], nil)
	case session.PromoExpiryInput:
		days, err := utils.ParseNonNegative(text)
		if err != nil {
			bh.sendMessage(ev.chatID, "Введите число", nil)
			return true
		}
		sm.Leave(ev.chatID)
		p, err := bh.Deps.Promos.Save(ev.ctx, s.Code, s.Percent, int(s.Limit.Int64), int(days))
		if err != nil {
			logErr("handleAdminStep", ev, err)
			bh.sendMessage(ev.chatID, "❌ Не удалось сохранить промокод", nil)
		} else {
			log.Printf("handleAdminStep: админ %d сохранил промокод %s (%d%%)", ev.userID, p.Code, p.Percent)
			bh.sendMessage(ev.chatID, "Промокод добавлен", nil)
		}
		bh.SendAdminPanel(ev.chatID)

	// Мастер товара
	case session.ProductPhotoInput:
		if len(message.Photo) == 0 {
			bh.sendMessage(ev.chatID, prompts[constants.STATE_PRODUCT_PHOTO], nil)
			return true
		}
		sm.Enter(ev.chatID, session.ProductNameInput{Photo: message.Photo[len(message.Photo)-1].FileID})
		bh.sendMessage(ev.chatID, prompts[constants.STATE_PRODUCT_NAME], nil)
	case session.ProductNameInput:
		if text == "" {
			bh.sendMessage(ev.chatID, prompts[constants.STATE_PRODUCT_NAME], nil)
			return true
		}
		sm.Enter(ev.chatID, session.ProductDescInput{Photo: s.Photo, Name: text})
		bh.sendMessage(ev.chatID, prompts[constants.STATE_PRODUCT_DESC], nil)
	case session.ProductDescInput:
		sm.Enter(ev.chatID, session.ProductPriceInput{Photo: s.Photo, Name: s.Name, Desc: text})
		bh.sendMessage(ev.chatID, prompts[constants.STATE_PRODUCT_PRICE], nil)
	case session.ProductPriceInput:
		price, err := utils.ParseNonNegative(text)
		if err != nil {
			bh.sendMessage(ev.chatID, "Введите число", nil)
			return true
		}
		sm.Enter(ev.chatID, session.ProductStockInput{Photo: s.Photo, Name: s.Name, Desc: s.Desc, Price: price})
		bh.sendMessage(ev.chatID, prompts[constants.STATE_PRODUCT_STOCK], nil)
	case session.ProductStockInput:
		stock, err := utils.ParseNonNegative(text)
		if err != nil {
			bh.sendMessage(ev.chatID, "Введите число", nil)
			return true
		}
		sm.Enter(ev.chatID, session.ProductSizesInput{Photo: s.Photo, Name: s.Name, Desc: s.Desc, Price: s.Price, Stock: stock})
		bh.sendMessage(ev.chatID, prompts[constants.STATE_PRODUCT_SIZES], nil)
	case session.ProductSizesInput:
		sizes := text
		if sizes == "-" {
			sizes = ""
		}
		sm.Leave(ev.chatID)
		id, err := bh.Deps.Catalog.Create(ev.ctx, models.Product{
			Name:        s.Name,
			Description: s.Desc,
			Price:       s.Price,
			Photo:       s.Photo,
			Stock:       sql.NullInt64{Int64: s.Stock, Valid: true},
			Sizes:       sizes,
		})
		if err != nil {
			logErr("handleAdminStep", ev, err)
			bh.sendMessage(ev.chatID, "❌ Не удалось добавить товар", nil)
		} else {
			log.Printf("handleAdminStep: админ %d добавил товар #%d", ev.userID, id)
			bh.sendMessage(ev.chatID, "Товар добавлен", nil)
		}
		bh.SendAdminPanel(ev.chatID)

	case session.TrackInput:
		bh.saveTracking(ev, s.OrderID, text)
	case session.BroadcastCompose:
		sm.Leave(ev.chatID)
		bh.broadcast(ev, text)
	default:
		return false
	}
	return true
}

// --- Промокоды ---

func (bh *BotHandler) SendPromoMenu(ev eventContext) {
	bh.Deps.SessionManager.Enter(ev.chatID, session.PromoMenu{})
	bh.sendMessage(ev.chatID, "Промокоды", promoMenuKeyboard())
}

func (bh *BotHandler) handlePromoMenuInput(ev eventContext, text string) bool {
	switch text {
	case constants.BTN_PROMO_NEW:
		bh.Deps.SessionManager.Enter(ev.chatID, session.PromoCodeInput{})
		bh.sendMessage(ev.chatID, prompts[constants.STATE_PROMO_CODE], nil)
	case constants.BTN_PROMO_LIST:
		bh.sendPromoList(ev)
	case constants.BTN_PROMO_DELETE:
		bh.Deps.SessionManager.Enter(ev.chatID, session.PromoDelete{})
		bh.sendMessage(ev.chatID, prompts[constants.STATE_PROMO_DELETE], nil)
	default:
		return false
	}
	return true
}

func (bh *BotHandler) sendPromoList(ev eventContext) {
	list, err := bh.Deps.Promos.List(ev.ctx)
	if err != nil {
		logErr("sendPromoList", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить промокоды", nil)
		return
	}
	if len(list) == 0 {
		bh.sendMessage(ev.chatID, "Промокодов нет", nil)
		return
	}
	lines := make([]string, 0, len(list))
	for _, p := range list {
		limit := "∞"
		if p.UsageLimit.Valid {
			limit = strconv.FormatInt(p.UsageLimit.Int64, 10)
		}
		expires := "∞"
		if p.ExpiresAt.Valid {
			expires = p.ExpiresAt.Time.Format("2006-01-02")
		}
		lines = append(lines, fmt.Sprintf("%s - %d%% (%d/%s) до %s", utils.EscapeHTML(p.Code), p.Percent, p.UsedCount, limit, expires))
	}
	bh.sendMessage(ev.chatID, strings.Join(lines, "\n"), nil)
}

// --- Товары ---

func (bh *BotHandler) SendProductList(ev eventContext) {
	bh.leaveStep(ev)
	products, err := bh.Deps.Catalog.List(ev.ctx)
	if err != nil {
		logErr("SendProductList", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить товары", nil)
		return
	}
	if len(products) == 0 {
		bh.sendMessage(ev.chatID, "Товаров нет", nil)
		return
	}
	for _, p := range products {
		stock := "-"
		if p.Stock.Valid {
			stock = strconv.FormatInt(p.Stock.Int64, 10)
		}
		text := fmt.Sprintf("#%d %s - %s | %s шт. | %s", p.ID, utils.EscapeHTML(p.Name), utils.FormatMoney(p.Price), stock, utils.EscapeHTML(p.Sizes))
		markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Удалить", fmt.Sprintf("%s%d", constants.CALLBACK_PREFIX_PRODUCT_DEL, p.ID)),
		))
		bh.sendMessage(ev.chatID, text, markup)
	}
}

func (bh *BotHandler) handleProductDelete(ev eventContext, query *tgbotapi.CallbackQuery, messageID int) {
	productID, ok := parseIDData(query.Data, constants.CALLBACK_PREFIX_PRODUCT_DEL)
	if !ok {
		bh.answer(query, "Товар не найден")
		return
	}
	err := bh.Deps.Catalog.Delete(ev.ctx, productID)
	if errors.Is(err, catalog.ErrNotFound) {
		bh.answer(query, "Товар не найден")
		return
	}
	if err != nil {
		logErr("handleProductDelete", ev, err)
		bh.answer(query, "❌ Ошибка удаления")
		return
	}
	log.Printf("handleProductDelete: админ %d удалил товар #%d", ev.userID, productID)
	if messageID != 0 {
		if _, err := bh.Deps.Sender.Request(tgbotapi.NewEditMessageText(ev.chatID, messageID, "Товар удален")); err != nil {
			log.Printf("handleProductDelete: ошибка изменения сообщения %d: %v", messageID, err)
		}
	}
	bh.answer(query, "Удалено")
}

// --- Заказы ---

func (bh *BotHandler) SendRecentOrders(ev eventContext) {
	bh.leaveStep(ev)
	list, err := bh.Deps.Orders.Recent(ev.ctx, constants.AdminOrdersLimit)
	if err != nil {
		logErr("SendRecentOrders", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить заказы", nil)
		return
	}
	if len(list) == 0 {
		bh.sendMessage(ev.chatID, "Заказов пока нет", nil)
		return
	}
	lines := make([]string, 0, len(list))
	for _, o := range list {
		lines = append(lines, formatters.FormatOrderForAdmin(o, bh.userTag(ev.ctx, o.UserID)))
	}
	bh.sendMessage(ev.chatID, strings.Join(lines, "\n"), nil)
}

// SendOrderStatuses - последние заказы с кнопкой смены статуса.
func (bh *BotHandler) SendOrderStatuses(ev eventContext) {
	bh.leaveStep(ev)
	list, err := bh.Deps.Orders.Recent(ev.ctx, constants.AdminStatusesLimit)
	if err != nil {
		logErr("SendOrderStatuses", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить заказы", nil)
		return
	}
	if len(list) == 0 {
		bh.sendMessage(ev.chatID, "Заказов нет", nil)
		return
	}
	for _, o := range list {
		text := formatters.FormatOrderStatusLine(o, bh.userTag(ev.ctx, o.UserID))
		var markup any
		if o.AdminID == ev.userID {
			markup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Изменить", fmt.Sprintf("%s%d", constants.CALLBACK_PREFIX_ORDER_STATUS, o.ID)),
			))
		}
		bh.sendMessage(ev.chatID, text, markup)
	}
}

func (bh *BotHandler) handleOrderStatusMenu(ev eventContext, query *tgbotapi.CallbackQuery) {
	orderID, ok := parseIDData(query.Data, constants.CALLBACK_PREFIX_ORDER_STATUS)
	if !ok {
		bh.answer(query, "Заказ не найден")
		return
	}
	order, err := bh.Deps.Orders.Get(ev.ctx, orderID)
	if err != nil || order.AdminID != ev.userID {
		if err != nil && !errors.Is(err, orders.ErrNotFound) {
			logErr("handleOrderStatusMenu", ev, err)
		}
		bh.answer(query, "Заказ не найден или не ваш")
		return
	}
	labels := map[string]string{"shipped": "Отправлен", "received": "Получен"}
	var row []tgbotapi.InlineKeyboardButton
	for _, st := range constants.EditableStatuses {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(labels[st], constants.CALLBACK_PREFIX_SET_STATUS+st))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(row,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Трек-номер", constants.CALLBACK_ENTER_TRACK)),
	)
	bh.Deps.SessionManager.Enter(ev.chatID, session.OrderStatusEdit{OrderID: orderID})
	bh.answer(query, "")
	bh.sendMessage(ev.chatID, fmt.Sprintf("Заказ #%d: %s\nВыберите новый статус или введите трек", order.ID, utils.StatusDisplay(order.Status)), markup)
}

func (bh *BotHandler) handleSetStatus(ev eventContext, s session.OrderStatusEdit, query *tgbotapi.CallbackQuery) {
	to := models.OrderStatus(strings.TrimPrefix(query.Data, constants.CALLBACK_PREFIX_SET_STATUS))
	before, err := bh.Deps.Orders.Get(ev.ctx, s.OrderID)
	if errors.Is(err, orders.ErrNotFound) {
		bh.Deps.SessionManager.Leave(ev.chatID)
		bh.answer(query, "Заказ не найден или не ваш")
		return
	}
	if err != nil {
		logErr("handleSetStatus", ev, err)
		bh.answer(query, "❌ Ошибка")
		return
	}
	order, err := bh.Deps.Orders.SetStatus(ev.ctx, ev.userID, s.OrderID, to)
	switch {
	case errors.Is(err, orders.ErrBadTransition):
		bh.answer(query, "Недопустимая смена статуса")
		return
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrNotOwner):
		bh.Deps.SessionManager.Leave(ev.chatID)
		bh.answer(query, "Заказ не найден или не ваш")
		return
	case err != nil:
		logErr("handleSetStatus", ev, err)
		bh.answer(query, "❌ Ошибка")
		return
	}
	bh.Deps.SessionManager.Leave(ev.chatID)
	bh.answer(query, "")
	if query.Message != nil {
		bh.removeButtons(ev.chatID, query.Message.MessageID)
	}
	bh.sendMessage(ev.chatID, "Статус обновлен", nil)
	if before.Status != order.Status {
		bh.sendMessage(order.UserID, fmt.Sprintf("Статус вашего заказа #%d: %s", order.ID, utils.StatusDisplay(order.Status)), nil)
	}
}

func (bh *BotHandler) handleEnterTrack(ev eventContext, s session.OrderStatusEdit, query *tgbotapi.CallbackQuery) {
	bh.answer(query, "")
	bh.Deps.SessionManager.Enter(ev.chatID, session.TrackInput{OrderID: s.OrderID})
	bh.sendMessage(ev.chatID, prompts[constants.STATE_TRACK_INPUT], nil)
}

func (bh *BotHandler) saveTracking(ev eventContext, orderID int64, text string) {
	order, err := bh.Deps.Orders.SetTracking(ev.ctx, ev.userID, orderID, text)
	if errors.Is(err, orders.ErrEmptyTracking) {
		bh.sendMessage(ev.chatID, prompts[constants.STATE_TRACK_INPUT], nil)
		return
	}
	bh.Deps.SessionManager.Leave(ev.chatID)
	switch {
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrNotOwner):
		bh.sendMessage(ev.chatID, "Заказ не найден или не ваш", nil)
		return
	case err != nil:
		logErr("saveTracking", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось сохранить трек-номер", nil)
		return
	}
	bh.sendMessage(ev.chatID, "Трек-номер сохранен", nil)
	bh.sendMessage(order.UserID, fmt.Sprintf("Трек-номер вашего заказа #%d: <code>%s</code>", order.ID, utils.EscapeHTML(order.TrackingNumber.String)), nil)
}

// confirmOrder переводит заказ в created и просит у покупателя данные доставки.
// Покупатель, занятый другим шагом (переписка, оформление), остается в нем
// и вводит данные позже по кнопке.
func (bh *BotHandler) confirmOrder(ev eventContext, orderID int64) (models.Order, error) {
	order, err := bh.Deps.Orders.Confirm(ev.ctx, ev.userID, orderID)
	if err != nil {
		return order, err
	}
	log.Printf("confirmOrder: админ %d подтвердил заказ #%d", ev.userID, orderID)
	markup := addressButton(order.ID)
	if bh.Deps.SessionManager.EnterIf(order.UserID, session.AwaitAddress{OrderID: order.ID}, addressStepAllowed) {
		bh.sendMessage(order.UserID, fmt.Sprintf("Ваш заказ #%d подтвержден. Отправьте ФИО, телефон и адрес пункта выдачи каждое с новой строки", order.ID), markup)
		return order, nil
	}
	log.Printf("confirmOrder: покупатель %d занят, ввод данных заказа #%d отложен", order.UserID, order.ID)
	bh.sendMessage(order.UserID, fmt.Sprintf("Ваш заказ #%d подтвержден. Когда будете готовы, нажмите кнопку и отправьте ФИО, телефон и адрес пункта выдачи", order.ID), markup)
	return order, nil
}

// addressStepAllowed - шаги покупателя, которые можно прервать запросом адреса.
func addressStepAllowed(current session.Step) bool {
	switch current.(type) {
	case nil, session.CatalogBrowse:
		return true
	}
	return false
}

func addressButton(orderID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📮 Указать данные доставки", fmt.Sprintf("%s%d", constants.CALLBACK_PREFIX_ADDRESS, orderID)),
	))
}

func (bh *BotHandler) cancelOrder(ev eventContext, orderID int64) (models.Order, error) {
	order, err := bh.Deps.Orders.Cancel(ev.ctx, ev.userID, orderID)
	if err != nil {
		return order, err
	}
	log.Printf("cancelOrder: админ %d отменил заказ #%d", ev.userID, orderID)
	bh.Deps.SessionManager.LeaveIf(order.UserID, func(current session.Step) bool {
		s, ok := current.(session.AwaitProof)
		return ok && s.OrderID == order.ID
	})
	bh.sendMessage(order.UserID, fmt.Sprintf("Ваш заказ #%d отменен администратором", order.ID), nil)
	return order, nil
}

func orderActionAnswer(err error) string {
	switch {
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrNotOwner):
		return "Заказ не найден"
	case errors.Is(err, orders.ErrBadTransition):
		return "Заказ уже обработан"
	}
	return "❌ Ошибка"
}

func (bh *BotHandler) handleConfirmCallback(ev eventContext, query *tgbotapi.CallbackQuery, messageID int) {
	orderID, ok := parseIDData(query.Data, constants.CALLBACK_PREFIX_CONFIRM_ORDER)
	if !ok {
		bh.answer(query, "Заказ не найден")
		return
	}
	if _, err := bh.confirmOrder(ev, orderID); err != nil {
		if answer := orderActionAnswer(err); answer == "❌ Ошибка" {
			logErr("handleConfirmCallback", ev, err)
		}
		bh.answer(query, orderActionAnswer(err))
		return
	}
	bh.removeButtons(ev.chatID, messageID)
	bh.answer(query, "Подтверждено")
}

func (bh *BotHandler) handleCancelCallback(ev eventContext, query *tgbotapi.CallbackQuery, messageID int) {
	orderID, ok := parseIDData(query.Data, constants.CALLBACK_PREFIX_CANCEL_ORDER)
	if !ok {
		bh.answer(query, "Заказ не найден")
		return
	}
	if _, err := bh.cancelOrder(ev, orderID); err != nil {
		if answer := orderActionAnswer(err); answer == "❌ Ошибка" {
			logErr("handleCancelCallback", ev, err)
		}
		bh.answer(query, orderActionAnswer(err))
		return
	}
	bh.removeButtons(ev.chatID, messageID)
	bh.answer(query, "Отменено")
}

// --- Статистика, рефералы, рассылка ---

func (bh *BotHandler) SendStatistics(ev eventContext) {
	st, err := bh.Deps.Orders.Stats(ev.ctx)
	if err != nil {
		logErr("SendStatistics", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось получить статистику", nil)
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Пользователей: %d\nЗаказов: %d\nВыручка: %s", st.UsersCount, st.OrdersCount, utils.FormatMoney(st.Revenue)))
	if len(st.LastOrders) > 0 {
		sb.WriteString("\n\nПоследние завершенные заказы:")
		for _, o := range st.LastOrders {
			sb.WriteString(fmt.Sprintf("\n#%d | %s | %s | %s", o.ID, bh.userTag(ev.ctx, o.UserID), utils.FormatMoney(o.Total), o.CreatedAt.Format(constants.DateTimeLayout)))
		}
	}
	bh.sendMessage(ev.chatID, sb.String(), nil)
}

func (bh *BotHandler) SendReferralStats(ev eventContext) {
	rows, err := bh.Deps.Users.Referrals(ev.ctx)
	if err != nil {
		logErr("SendReferralStats", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить рефералов", nil)
		return
	}
	if len(rows) == 0 {
		bh.sendMessage(ev.chatID, "Рефералов пока нет", nil)
		return
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		link := r.Link
		if link == "" {
			link = r.Code
		}
		lines = append(lines, fmt.Sprintf("%s | %s | %d реф. | скидка %d%%", utils.EscapeHTML(utils.UserTag(r.User)), link, r.Count, r.Percent))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📥 Выгрузить в Excel", constants.CALLBACK_EXPORT_REFERRALS),
	))
	bh.sendMessage(ev.chatID, strings.Join(lines, "\n"), markup)
}

// broadcast рассылает текст всем пользователям. Недоставленные сообщения не считаются.
func (bh *BotHandler) broadcast(ev eventContext, text string) {
	ids, err := bh.Deps.Users.All(ev.ctx)
	if err != nil {
		logErr("broadcast", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось получить список пользователей", nil)
		return
	}
	sent := 0
	for _, id := range ids {
		if bh.Deps.Users.IsBanned(ev.ctx, id) {
			continue
		}
		if bh.trySend(id, utils.EscapeHTML(text), nil) {
			sent++
		}
	}
	log.Printf("broadcast: админ %d, доставлено %d из %d", ev.userID, sent, len(ids))
	bh.sendMessage(ev.chatID, fmt.Sprintf("Рассылка отправлена %d пользователям", sent), nil)
}
