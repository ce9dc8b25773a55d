package handlers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M0nstr1k/ds/internal/cart"
	"github.com/M0nstr1k/ds/internal/catalog"
	"github.com/M0nstr1k/ds/internal/config"
	"github.com/M0nstr1k/ds/internal/memstore"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/orders"
	"github.com/M0nstr1k/ds/internal/promo"
	"github.com/M0nstr1k/ds/internal/session"
	"github.com/M0nstr1k/ds/internal/tickets"
	"github.com/M0nstr1k/ds/internal/users"
)

const (
	adminID = int64(1)
	buyerID = int64(100)
)

type outgoing struct {
	chatID int64
	text   string
	photo  bool
	markup any
}

// recorder - Sender, который запоминает все исходящие сообщения и ответы на коллбэки.
type recorder struct {
	mu      sync.Mutex
	out     []outgoing
	answers []string
	nextID  int
}

func (r *recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		r.out = append(r.out, outgoing{chatID: m.ChatID, text: m.Text, markup: m.ReplyMarkup})
	case tgbotapi.PhotoConfig:
		r.out = append(r.out, outgoing{chatID: m.ChatID, text: m.Caption, photo: true})
	case tgbotapi.DocumentConfig:
		r.out = append(r.out, outgoing{chatID: m.ChatID, text: m.Caption})
	}
	r.nextID++
	return tgbotapi.Message{MessageID: r.nextID}, nil
}

func (r *recorder) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		r.mu.Lock()
		r.answers = append(r.answers, cb.Text)
		r.mu.Unlock()
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (r *recorder) lastAnswer(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.answers, "нет ответов на коллбэки")
	return r.answers[len(r.answers)-1]
}

// lastButtons - callback_data инлайн-кнопок последнего сообщения в чат.
func (r *recorder) lastButtons(t *testing.T, chatID int64) []string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.out) - 1; i >= 0; i-- {
		if r.out[i].chatID != chatID {
			continue
		}
		markup, ok := r.out[i].markup.(tgbotapi.InlineKeyboardMarkup)
		require.True(t, ok, "последнее сообщение для %d без инлайн-кнопок", chatID)
		var data []string
		for _, row := range markup.InlineKeyboard {
			for _, b := range row {
				if b.CallbackData != nil {
					data = append(data, *b.CallbackData)
				}
			}
		}
		return data
	}
	require.Fail(t, "нет сообщений", "chatID %d", chatID)
	return nil
}

func (r *recorder) to(chatID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var texts []string
	for _, o := range r.out {
		if o.chatID == chatID {
			texts = append(texts, o.text)
		}
	}
	return texts
}

func (r *recorder) last(t *testing.T, chatID int64) string {
	t.Helper()
	texts := r.to(chatID)
	require.NotEmpty(t, texts, "нет сообщений для %d", chatID)
	return texts[len(texts)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = nil
	r.answers = nil
}

type harness struct {
	bh    *BotHandler
	store *memstore.Store
	rec   *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()
	sessions := session.NewSessionManager()
	cfg := &config.Config{
		BotUsername:       "shop_bot",
		AdminIDs:          []int64{adminID},
		ReferralPercent:   5,
		ReferralPromoDays: 30,
		Cards:             []models.PaymentCard{{Card: "2200 0000 0000 0001", AdminID: adminID}},
	}
	ledger := cart.NewLedger(store)
	promos := promo.NewEngine(store)
	rec := &recorder{}
	bh := NewBotHandler(HandlerDependencies{
		Config:         cfg,
		Sender:         rec,
		SessionManager: sessions,
		Catalog:        catalog.New(store),
		Cart:           ledger,
		Promos:         promos,
		Orders:         orders.NewLifecycle(store, ledger, promos, cfg.Cards),
		Tickets:        tickets.NewRelay(store, sessions, cfg.AdminIDs),
		Users:          users.NewRegistry(store, promos, cfg.BotUsername, cfg.ReferralPercent, cfg.ReferralPromoDays),
	})
	return &harness{bh: bh, store: store, rec: rec}
}

func (h *harness) text(from int64, text string) {
	h.bh.HandleMessage(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, FirstName: "U", UserName: fmt.Sprintf("u%d", from)},
		Chat:      tgbotapi.Chat{ID: from},
		Text:      text,
	}})
}

func (h *harness) photo(from int64, fileID string) {
	h.bh.HandleMessage(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, FirstName: "U", UserName: fmt.Sprintf("u%d", from)},
		Chat:      tgbotapi.Chat{ID: from},
		Photo:     []tgbotapi.PhotoSize{{FileID: fileID + "_small"}, {FileID: fileID}},
	}})
}

func (h *harness) press(from int64, data string) {
	h.bh.HandleCallback(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from, FirstName: "U", UserName: fmt.Sprintf("u%d", from)},
		Message: &tgbotapi.Message{MessageID: 7, Chat: tgbotapi.Chat{ID: from}},
		Data:    data,
	}})
}

func (h *harness) product(t *testing.T, p models.Product) int64 {
	t.Helper()
	id, err := h.store.CreateProduct(context.Background(), p)
	require.NoError(t, err)
	return id
}

func (h *harness) latestOrder(t *testing.T) models.Order {
	t.Helper()
	list, err := h.store.ListRecentOrders(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0]
}

func TestCheckoutFlow(t *testing.T) {
	h := newHarness(t)
	pid := h.product(t, models.Product{Name: "Худи", Price: 500})

	h.text(buyerID, "/start")
	assert.Contains(t, h.rec.last(t, buyerID), "Friendly Wears")

	h.press(buyerID, fmt.Sprintf("add_%d", pid))
	h.press(buyerID, fmt.Sprintf("inc_%d_", pid))
	assert.Contains(t, h.rec.last(t, buyerID), "Итого: 1000 руб.")

	h.press(buyerID, "pay")
	assert.Equal(t, "Выберите службу доставки", h.rec.last(t, buyerID))

	h.press(buyerID, "svc_sdek")
	assert.Contains(t, h.rec.last(t, buyerID), "Оплатите 1000 руб. на карту <code>2200 0000 0000 0001</code>")
	order := h.latestOrder(t)
	assert.Equal(t, models.StatusWaiting, order.Status)
	assert.Equal(t, "СДЭК", order.ShippingService)

	// Текст вместо фото чека - повтор подсказки
	h.text(buyerID, "оплатил")
	assert.Equal(t, prompts["checkout:await-payment-proof"], h.rec.last(t, buyerID))

	h.photo(buyerID, "receipt")
	assert.Equal(t, "Чек отправлен, ожидайте подтверждения", h.rec.last(t, buyerID))
	assert.Contains(t, h.rec.last(t, adminID), fmt.Sprintf("Чек по заказу #%d", order.ID))
	assert.Equal(t, models.StatusPaid, h.latestOrder(t).Status)

	lines, err := h.store.ListCartLines(context.Background(), buyerID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	h.press(adminID, fmt.Sprintf("confirm_%d", order.ID))
	assert.Contains(t, h.rec.last(t, buyerID), "подтвержден")
	assert.Equal(t, models.StatusCreated, h.latestOrder(t).Status)

	h.text(buyerID, "Иван Иванов\n89991234567")
	assert.Contains(t, h.rec.last(t, buyerID), "ФИО")

	h.text(buyerID, "Иван Иванов\n89991234567\nМосква, ул. Ленина 1")
	assert.Equal(t, "Данные сохранены. Ожидайте отправки заказа", h.rec.last(t, buyerID))
	assert.Contains(t, h.rec.last(t, adminID), "указал данные по заказу")

	saved := h.latestOrder(t)
	assert.Equal(t, "+79991234567", saved.Phone.String)
	assert.Equal(t, "Москва, ул. Ленина 1", saved.Address.String)
}

func TestConfirmByOtherAdminRejected(t *testing.T) {
	h := newHarness(t)
	h.bh.Deps.Config.AdminIDs = append(h.bh.Deps.Config.AdminIDs, 2)
	pid := h.product(t, models.Product{Name: "Кепка", Price: 200})

	h.press(buyerID, fmt.Sprintf("add_%d", pid))
	h.press(buyerID, "pay")
	h.press(buyerID, "svc_post")
	h.photo(buyerID, "receipt")
	order := h.latestOrder(t)

	h.press(2, fmt.Sprintf("confirm_%d", order.ID))
	assert.Equal(t, models.StatusPaid, h.latestOrder(t).Status)

	h.press(adminID, fmt.Sprintf("cancel_%d", order.ID))
	assert.Equal(t, models.StatusCanceled, h.latestOrder(t).Status)
	assert.Contains(t, h.rec.last(t, buyerID), "отменен администратором")
}

func TestSizedProductAsksForSize(t *testing.T) {
	h := newHarness(t)
	pid := h.product(t, models.Product{Name: "Футболка", Price: 300, Sizes: "S, M"})

	h.press(buyerID, fmt.Sprintf("add_%d", pid))
	assert.Equal(t, "Выберите размер", h.rec.last(t, buyerID))

	h.press(buyerID, fmt.Sprintf("addsz_%d_M", pid))
	lines, err := h.store.ListCartLines(context.Background(), buyerID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "M", lines[0].Size)
}

func TestPromoEntry(t *testing.T) {
	h := newHarness(t)
	pid := h.product(t, models.Product{Name: "Худи", Price: 1000})
	_, err := h.bh.Deps.Promos.Save(context.Background(), "SALE10", 10, 0, 0)
	require.NoError(t, err)

	h.press(buyerID, fmt.Sprintf("add_%d", pid))
	h.press(buyerID, "promo")
	h.text(buyerID, "NOPE")
	assert.Equal(t, "Неверный промокод", h.rec.last(t, buyerID))

	h.text(buyerID, "SALE10")
	cartText := h.rec.last(t, buyerID)
	assert.Contains(t, cartText, "Промокод активирован!: SALE10")
	assert.Contains(t, cartText, "Итого: 900 руб.")
	assert.Equal(t, "SALE10", h.bh.Deps.SessionManager.Get(buyerID).Promo)
}

func TestBannedUserIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.text(buyerID, "/start")
	h.text(adminID, fmt.Sprintf("/ban %d", buyerID))
	assert.Equal(t, "Пользователь забанен", h.rec.last(t, adminID))

	h.rec.reset()
	h.text(buyerID, "🛍 Каталог")
	assert.Equal(t, []string{"Вы заблокированы"}, h.rec.to(buyerID))

	h.text(adminID, fmt.Sprintf("/unban %d", buyerID))
	assert.Equal(t, "Пользователь разбанен", h.rec.last(t, adminID))
	h.text(adminID, "/ban 999")
	assert.Equal(t, "Пользователь не найден", h.rec.last(t, adminID))
}

func TestAdminCommandsNeedAdmin(t *testing.T) {
	h := newHarness(t)
	h.text(buyerID, "/stats")
	assert.Contains(t, h.rec.last(t, buyerID), "Не понимаю команду")

	h.text(adminID, "/stats")
	assert.Contains(t, h.rec.last(t, adminID), "Пользователей:")

	h.text(adminID, "/confirm")
	assert.Equal(t, "Использование: /confirm order_id", h.rec.last(t, adminID))
	h.text(adminID, "/confirm abc")
	assert.Equal(t, "Неверный id", h.rec.last(t, adminID))
}

func TestEditCommand(t *testing.T) {
	h := newHarness(t)
	pid := h.product(t, models.Product{Name: "Худи", Price: 1000})

	h.text(adminID, fmt.Sprintf("/edit %d price дорого", pid))
	assert.Equal(t, "Цена должна быть числом", h.rec.last(t, adminID))
	h.text(adminID, fmt.Sprintf("/edit %d color red", pid))
	assert.Equal(t, "Поле должно быть name, description или price", h.rec.last(t, adminID))
	h.text(adminID, fmt.Sprintf("/edit %d name Новое худи", pid))
	assert.Equal(t, "Товар обновлен", h.rec.last(t, adminID))

	p, err := h.store.GetProduct(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, "Новое худи", p.Name)
}

func TestSupportRelay(t *testing.T) {
	h := newHarness(t)
	h.text(buyerID, "💬 Поддержка")
	h.text(buyerID, "📝 Написать тикет")
	h.text(buyerID, "Где мой заказ?")
	assert.Contains(t, h.rec.last(t, buyerID), "создан")
	assert.Contains(t, h.rec.last(t, adminID), "Где мой заказ?")

	open, err := h.store.ListOpenTickets(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	ticketID := open[0].ID

	h.press(adminID, fmt.Sprintf("topen_%d", ticketID))
	assert.Contains(t, h.rec.last(t, buyerID), "Администратор подключился")
	adminTexts := h.rec.to(adminID)
	require.GreaterOrEqual(t, len(adminTexts), 2)
	assert.Contains(t, adminTexts[len(adminTexts)-2], "👤 Пользователь: Где мой заказ?")

	h.text(adminID, "Уже в пути")
	assert.Equal(t, "Уже в пути", h.rec.last(t, buyerID))
	h.text(buyerID, "Спасибо <3")
	assert.Equal(t, "Спасибо &lt;3", h.rec.last(t, adminID))

	h.press(adminID, fmt.Sprintf("tclose_%d", ticketID))
	userTexts := h.rec.to(buyerID)
	assert.Contains(t, userTexts, "Диалог завершен")
	assert.Contains(t, h.rec.last(t, buyerID), "закрыт администратором")
	assert.Nil(t, h.bh.Deps.SessionManager.Step(buyerID))
	assert.Nil(t, h.bh.Deps.SessionManager.Step(adminID))

	msgs, err := h.bh.Deps.Tickets.Messages(context.Background(), ticketID)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestTicketBackEndsDialogForBoth(t *testing.T) {
	h := newHarness(t)
	ticket, err := h.bh.Deps.Tickets.Open(context.Background(), buyerID, "help")
	require.NoError(t, err)
	h.press(adminID, fmt.Sprintf("topen_%d", ticket.ID))

	h.text(buyerID, "🔙 Назад")
	assert.Nil(t, h.bh.Deps.SessionManager.Step(buyerID))
	assert.Nil(t, h.bh.Deps.SessionManager.Step(adminID))
	assert.Contains(t, h.rec.to(adminID), "Диалог завершен")
}

func TestProductWizard(t *testing.T) {
	h := newHarness(t)
	h.text(adminID, "➕ Добавить товар")
	h.text(adminID, "не фото")
	assert.Equal(t, "Отправьте фото товара", h.rec.last(t, adminID))

	h.photo(adminID, "photo-id")
	h.text(adminID, "Куртка")
	h.text(adminID, "Теплая")
	h.text(adminID, "дорого")
	assert.Equal(t, "Введите число", h.rec.last(t, adminID))
	h.text(adminID, "4500")
	h.text(adminID, "3")
	h.text(adminID, "-")
	assert.Contains(t, h.rec.to(adminID), "Товар добавлен")

	list, err := h.store.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Куртка", list[0].Name)
	assert.Equal(t, "photo-id", list[0].Photo)
	assert.Equal(t, int64(4500), list[0].Price)
	assert.Equal(t, int64(3), list[0].Stock.Int64)
	assert.Empty(t, list[0].Sizes)
}

func TestPromoWizard(t *testing.T) {
	h := newHarness(t)
	h.text(adminID, "🎟 Промокоды")
	h.text(adminID, "➕ Новый промокод")
	h.text(adminID, "WINTER")
	h.text(adminID, "150")
	assert.Equal(t, "Введите число от 0 до 100", h.rec.last(t, adminID))
	h.text(adminID, "15")
	h.text(adminID, "0")
	h.text(adminID, "7")
	assert.Contains(t, h.rec.to(adminID), "Промокод добавлен")

	p, err := h.bh.Deps.Promos.Check(context.Background(), "WINTER")
	require.NoError(t, err)
	assert.Equal(t, 15, p.Percent)
	assert.False(t, p.UsageLimit.Valid)
	assert.True(t, p.ExpiresAt.Valid)
}

func TestBroadcastSkipsBanned(t *testing.T) {
	h := newHarness(t)
	h.text(buyerID, "/start")
	h.text(200, "/start")
	h.text(adminID, fmt.Sprintf("/ban %d", 200))

	h.text(adminID, "📢 Рассылка")
	h.text(adminID, "Скидки!")
	assert.Equal(t, "Рассылка отправлена 2 пользователям", h.rec.last(t, adminID))
	assert.Equal(t, "Скидки!", h.rec.last(t, buyerID))
}

func TestParseCommand(t *testing.T) {
	cmd, args, ok := parseCommand("/Reply@shop_bot 5 привет всем")
	require.True(t, ok)
	assert.Equal(t, "reply", cmd)
	assert.Equal(t, "5 привет всем", args)

	_, _, ok = parseCommand("привет")
	assert.False(t, ok)
	_, _, ok = parseCommand("/")
	assert.False(t, ok)
}

func TestParseItemData(t *testing.T) {
	id, size, ok := parseItemData("inc_12_XL", "inc_")
	require.True(t, ok)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, "XL", size)

	id, size, ok = parseItemData("dec_3_", "dec_")
	require.True(t, ok)
	assert.Equal(t, int64(3), id)
	assert.Empty(t, size)

	_, _, ok = parseItemData("inc_x_M", "inc_")
	assert.False(t, ok)
}
