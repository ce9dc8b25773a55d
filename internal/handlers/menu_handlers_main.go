package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/M0nstr1k/ds/internal/cart"
	"github.com/M0nstr1k/ds/internal/catalog"
	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/formatters"
	"github.com/M0nstr1k/ds/internal/orders"
	"github.com/M0nstr1k/ds/internal/session"
	"github.com/M0nstr1k/ds/internal/users"
	"github.com/M0nstr1k/ds/internal/utils"
)

// --- Каталог ---

// SendProduct показывает товар по индексу с переходом по кругу.
func (bh *BotHandler) SendProduct(ev eventContext, index int) {
	product, index, err := bh.Deps.Catalog.At(ev.ctx, index)
	if errors.Is(err, catalog.ErrEmpty) {
		bh.Deps.SessionManager.Leave(ev.chatID)
		bh.sendMessage(ev.chatID, "Каталог пуст", nil)
		return
	}
	if err != nil {
		logErr("SendProduct", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить каталог.", nil)
		return
	}
	bh.Deps.SessionManager.Enter(ev.chatID, session.CatalogBrowse{Index: index})

	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️", constants.CALLBACK_CATALOG_PREV),
		tgbotapi.NewInlineKeyboardButtonData("Добавить в корзину", fmt.Sprintf("%s%d", constants.CALLBACK_PREFIX_ADD, product.ID)),
		tgbotapi.NewInlineKeyboardButtonData("▶️", constants.CALLBACK_CATALOG_NEXT),
	))
	if product.Photo == "" {
		bh.sendMessage(ev.chatID, formatters.FormatProductCaption(product), markup)
		return
	}
	bh.sendPhoto(ev.chatID, tgbotapi.FileID(product.Photo), formatters.FormatProductCaption(product), markup)
}

func (bh *BotHandler) handleCatalogNav(ev eventContext, query *tgbotapi.CallbackQuery, messageID int) {
	bh.answer(query, "")
	index := 0
	if s, ok := bh.Deps.SessionManager.Step(ev.chatID).(session.CatalogBrowse); ok {
		index = s.Index
	}
	if query.Data == constants.CALLBACK_CATALOG_NEXT {
		index++
	} else {
		index--
	}
	bh.deleteMessageHelper(ev.chatID, messageID)
	bh.SendProduct(ev, index)
}

func (bh *BotHandler) handleAddToCart(ev eventContext, query *tgbotapi.CallbackQuery, messageID int) {
	productID, ok := parseIDData(query.Data, constants.CALLBACK_PREFIX_ADD)
	if !ok {
		bh.answer(query, "❌ Некорректный запрос.")
		return
	}
	product, err := bh.Deps.Catalog.Get(ev.ctx, productID)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			logErr("handleAddToCart", ev, err)
		}
		bh.answer(query, "Товар не найден")
		return
	}
	sizes := product.SizeList()
	if len(sizes) == 0 {
		bh.addToCart(ev, query, messageID, productID, "")
		return
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, sz := range sizes {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(sz, fmt.Sprintf("%s%d_%s", constants.CALLBACK_PREFIX_ADD_SIZE, productID, sz)),
		))
	}
	bh.answer(query, "")
	bh.removeButtons(ev.chatID, messageID)
	bh.sendMessage(ev.chatID, "Выберите размер", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (bh *BotHandler) handleAddSize(ev eventContext, query *tgbotapi.CallbackQuery, messageID int) {
	productID, size, ok := parseItemData(query.Data, constants.CALLBACK_PREFIX_ADD_SIZE)
	if !ok {
		bh.answer(query, "❌ Некорректный запрос.")
		return
	}
	bh.addToCart(ev, query, messageID, productID, size)
}

func (bh *BotHandler) addToCart(ev eventContext, query *tgbotapi.CallbackQuery, messageID int, productID int64, size string) {
	qty, err := bh.Deps.Cart.AddOrIncrement(ev.ctx, ev.userID, productID, size)
	if errors.Is(err, cart.ErrProductNotFound) {
		bh.answer(query, "Товар не найден")
		return
	}
	if err != nil {
		logErr("addToCart", ev, err)
		bh.answer(query, "❌ Ошибка добавления в корзину")
		return
	}
	log.Printf("addToCart: пользователь %d, товар %d (%s) x%d", ev.userID, productID, size, qty)
	bh.answer(query, "Добавлено в корзину")
	bh.deleteMessageHelper(ev.chatID, messageID)
}

// --- Корзина ---

// ShowCart перерисовывает корзину, удаляя предыдущее сообщение корзины.
func (bh *BotHandler) ShowCart(ev eventContext) {
	sess := bh.Deps.SessionManager.Get(ev.chatID)
	if sess.CartMessageID != 0 {
		bh.deleteMessageHelper(ev.chatID, sess.CartMessageID)
	}

	quote, err := bh.Deps.Orders.Quote(ev.ctx, ev.userID, sess.Promo)
	var expired string
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		bh.Deps.SessionManager.SetCartMessage(ev.chatID, 0)
		bh.sendMessage(ev.chatID, "Корзина пуста", nil)
		return
	case errors.Is(err, orders.ErrPromoInvalid):
		expired = sess.Promo
		bh.Deps.SessionManager.SetPromo(ev.chatID, "")
	case err != nil:
		logErr("ShowCart", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить корзину.", nil)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, line := range quote.Lines {
		label := line.Name
		if line.Size != "" {
			label += " (" + line.Size + ")"
		}
		key := fmt.Sprintf("%d_%s", line.ProductID, line.Size)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %d шт - %s", label, line.Quantity, utils.FormatMoney(line.Sum())), constants.CALLBACK_NOOP),
			tgbotapi.NewInlineKeyboardButtonData("Добавить шт", constants.CALLBACK_PREFIX_INC+key),
			tgbotapi.NewInlineKeyboardButtonData("Удалить шт", constants.CALLBACK_PREFIX_DEC+key),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Применить промокод", constants.CALLBACK_PROMO)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💳 Оплатить", constants.CALLBACK_PAY)),
	)

	var sb strings.Builder
	sb.WriteString("Корзина:\n")
	switch {
	case quote.Promo != "":
		sb.WriteString("\n🎉 Промокод активирован!: " + utils.EscapeHTML(quote.Promo))
	case expired != "":
		sb.WriteString("\n⚠️ Промокод " + utils.EscapeHTML(expired) + " больше недействителен")
	default:
		sb.WriteString("\n❌ Промокод: не применен")
	}
	if quote.Discount > 0 {
		sb.WriteString("\n% Скидки: -" + utils.FormatMoney(quote.Discount))
	}
	sb.WriteString("\n📋 Итого: " + utils.FormatMoney(quote.Discounted))

	sent := bh.sendMessage(ev.chatID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
	bh.Deps.SessionManager.SetCartMessage(ev.chatID, sent.MessageID)
}

func (bh *BotHandler) handleCartQuantity(ev eventContext, query *tgbotapi.CallbackQuery, messageID int) {
	data := query.Data
	var (
		prefix string
		answer string
	)
	switch {
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_INC):
		prefix, answer = constants.CALLBACK_PREFIX_INC, "Количество увеличено"
	case strings.HasPrefix(data, constants.CALLBACK_PREFIX_DEC):
		prefix, answer = constants.CALLBACK_PREFIX_DEC, "Количество уменьшено"
	default:
		prefix, answer = constants.CALLBACK_PREFIX_DEL, "Товар удален"
	}
	productID, size, ok := parseItemData(data, prefix)
	if !ok {
		bh.answer(query, "❌ Некорректный запрос.")
		return
	}

	var err error
	switch prefix {
	case constants.CALLBACK_PREFIX_INC:
		_, err = bh.Deps.Cart.AddOrIncrement(ev.ctx, ev.userID, productID, size)
	case constants.CALLBACK_PREFIX_DEC:
		_, err = bh.Deps.Cart.Decrement(ev.ctx, ev.userID, productID, size)
	default:
		err = bh.Deps.Cart.SetQuantity(ev.ctx, ev.userID, productID, size, 0)
	}
	if errors.Is(err, cart.ErrProductNotFound) {
		answer = "Товар не найден"
	} else if err != nil {
		logErr("handleCartQuantity", ev, err)
		answer = "❌ Ошибка изменения корзины"
	}
	bh.answer(query, answer)
	if messageID != 0 && messageID != bh.Deps.SessionManager.Get(ev.chatID).CartMessageID {
		bh.deleteMessageHelper(ev.chatID, messageID)
	}
	bh.ShowCart(ev)
}

// --- Заказы пользователя ---

func (bh *BotHandler) SendOrderHistory(ev eventContext) {
	bh.leaveStep(ev)
	history, err := bh.Deps.Orders.History(ev.ctx, ev.userID, constants.OrderHistoryLimit)
	if err != nil {
		logErr("SendOrderHistory", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить заказы.", nil)
		return
	}
	if len(history) == 0 {
		bh.sendMessage(ev.chatID, "У вас нет заказов", nil)
		return
	}
	lines := make([]string, 0, len(history))
	for _, o := range history {
		lines = append(lines, formatters.FormatOrderForUser(o))
	}
	bh.sendMessage(ev.chatID, strings.Join(lines, "\n"), nil)
	for _, o := range history {
		if orders.NeedsRecipient(o) {
			bh.sendMessage(ev.chatID, fmt.Sprintf("Заказ #%d ждет данных доставки", o.ID), addressButton(o.ID))
		}
	}
}

// --- Рефералы ---

func (bh *BotHandler) SendReferralInfo(ev eventContext) {
	info, err := bh.Deps.Users.ReferralInfo(ev.ctx, ev.userID)
	if errors.Is(err, users.ErrNotFound) {
		bh.sendMessage(ev.chatID, "Пожалуйста, начните с команды /start", nil)
		return
	}
	if err != nil {
		logErr("SendReferralInfo", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить реферальные данные.", nil)
		return
	}
	link := info.Link
	if link == "" {
		link = "недоступна, код: " + info.Code
	}
	text := fmt.Sprintf("Ваша реферальная ссылка:\n%s\nПриглашено: %d\nВаша скидка: %d%%", link, info.Count, info.Percent)
	row := []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("Получить скидку", constants.CALLBACK_GET_DISCOUNT)}
	if info.Link != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("📷 QR-код", constants.CALLBACK_REFERRAL_QR))
	}
	bh.sendMessage(ev.chatID, text, tgbotapi.NewInlineKeyboardMarkup(row))
}

func (bh *BotHandler) handleGetDiscount(ev eventContext, query *tgbotapi.CallbackQuery) {
	code, err := bh.Deps.Users.ClaimDiscount(ev.ctx, ev.userID)
	switch {
	case errors.Is(err, users.ErrNoReferrals):
		bh.answer(query, "У вас нет рефералов")
		return
	case errors.Is(err, users.ErrNotFound):
		bh.answer(query, "Пожалуйста, начните с команды /start")
		return
	case err != nil:
		logErr("handleGetDiscount", ev, err)
		bh.answer(query, "❌ Не удалось выпустить промокод")
		return
	}
	bh.answer(query, "")
	bh.sendMessage(ev.chatID, fmt.Sprintf("Ваш промокод: <code>%s</code>\nСкидка %d%%\nДействует %d дней, 1 использование",
		code.Code, code.Percent, bh.Deps.Config.ReferralPromoDays), nil)
}

func (bh *BotHandler) handleReferralQR(ev eventContext, query *tgbotapi.CallbackQuery) {
	png, err := bh.Deps.Users.QR(ev.ctx, ev.userID)
	if err != nil {
		logErr("handleReferralQR", ev, err)
		bh.answer(query, "❌ Не удалось создать QR-код")
		return
	}
	bh.answer(query, "")
	bh.sendPhoto(ev.chatID, tgbotapi.FileBytes{Name: "referral.png", Bytes: png}, "Ваша реферальная ссылка в QR-коде", nil)
}
