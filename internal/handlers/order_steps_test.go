package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/memstore"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/session"
	"github.com/M0nstr1k/ds/internal/users"
)

const recipient = "Иван Иванов\n89991234567\nМосква, ул. Ленина 1"

// paidOrder проводит покупателя до отправленного чека.
func (h *harness) paidOrder(t *testing.T) models.Order {
	t.Helper()
	pid := h.product(t, models.Product{Name: "Худи", Price: 500})
	h.press(buyerID, fmt.Sprintf("add_%d", pid))
	h.press(buyerID, "pay")
	h.press(buyerID, "svc_sdek")
	h.photo(buyerID, "receipt")
	order := h.latestOrder(t)
	require.Equal(t, models.StatusPaid, order.Status)
	return order
}

func TestAddressStepSurvivesStaleButtons(t *testing.T) {
	h := newHarness(t)
	order := h.paidOrder(t)
	sessions := h.bh.Deps.SessionManager

	h.press(adminID, fmt.Sprintf("confirm_%d", order.ID))
	require.Equal(t, session.AwaitAddress{OrderID: order.ID}, sessions.Step(buyerID))

	for _, data := range []string{"next", "pay", "promo"} {
		h.rec.reset()
		h.press(buyerID, data)
		assert.Equal(t, session.AwaitAddress{OrderID: order.ID}, sessions.Step(buyerID), data)
		assert.Equal(t, []string{prompts[constants.STATE_AWAIT_ADDRESS]}, h.rec.to(buyerID), data)
	}

	h.text(buyerID, recipient)
	assert.Equal(t, "Данные сохранены. Ожидайте отправки заказа", h.rec.last(t, buyerID))
	assert.True(t, h.latestOrder(t).Address.Valid)
	assert.Nil(t, sessions.Step(buyerID))
}

func TestAddressButtonReturnsToAddressStep(t *testing.T) {
	h := newHarness(t)
	order := h.paidOrder(t)
	sessions := h.bh.Deps.SessionManager
	addr := fmt.Sprintf("addr_%d", order.ID)

	h.press(adminID, fmt.Sprintf("confirm_%d", order.ID))
	assert.Equal(t, []string{addr}, h.rec.lastButtons(t, buyerID))

	h.text(buyerID, "/start")
	require.Nil(t, sessions.Step(buyerID))

	h.text(buyerID, constants.BTN_ORDERS)
	assert.Equal(t, fmt.Sprintf("Заказ #%d ждет данных доставки", order.ID), h.rec.last(t, buyerID))
	assert.Equal(t, []string{addr}, h.rec.lastButtons(t, buyerID))

	h.press(200, addr)
	assert.Equal(t, "Заказ не найден", h.rec.lastAnswer(t))
	assert.Nil(t, sessions.Step(200))

	h.press(buyerID, addr)
	require.Equal(t, session.AwaitAddress{OrderID: order.ID}, sessions.Step(buyerID))
	h.text(buyerID, recipient)
	assert.True(t, h.latestOrder(t).Address.Valid)

	h.press(buyerID, addr)
	assert.Equal(t, "Данные по этому заказу уже не нужны", h.rec.lastAnswer(t))
	assert.Nil(t, sessions.Step(buyerID))
}

func TestConfirmLeavesBuyerInTicketChat(t *testing.T) {
	h := newHarness(t)
	order := h.paidOrder(t)
	sessions := h.bh.Deps.SessionManager

	ticket, err := h.bh.Deps.Tickets.Open(context.Background(), buyerID, "где заказ?")
	require.NoError(t, err)
	h.press(adminID, fmt.Sprintf("topen_%d", ticket.ID))
	require.IsType(t, session.TicketChat{}, sessions.Step(buyerID))

	h.press(adminID, fmt.Sprintf("confirm_%d", order.ID))
	assert.Equal(t, models.StatusCreated, h.latestOrder(t).Status)
	assert.IsType(t, session.TicketChat{}, sessions.Step(buyerID))
	assert.Contains(t, h.rec.last(t, buyerID), "Когда будете готовы")

	h.text(adminID, "Заказ подтвердил")
	assert.Equal(t, "Заказ подтвердил", h.rec.last(t, buyerID))

	// Кнопка завершает переписку и открывает ввод данных
	h.press(buyerID, fmt.Sprintf("addr_%d", order.ID))
	assert.Equal(t, session.AwaitAddress{OrderID: order.ID}, sessions.Step(buyerID))
	assert.Nil(t, sessions.Step(adminID))
	assert.Contains(t, h.rec.to(adminID), "Диалог завершен")
}

func TestClaimDoesNotInterruptCheckout(t *testing.T) {
	h := newHarness(t)
	sessions := h.bh.Deps.SessionManager
	pid := h.product(t, models.Product{Name: "Кепка", Price: 200})
	h.press(buyerID, fmt.Sprintf("add_%d", pid))
	h.press(buyerID, "pay")
	require.IsType(t, session.ChooseShipping{}, sessions.Step(buyerID))

	ticket, err := h.bh.Deps.Tickets.Open(context.Background(), buyerID, "вопрос")
	require.NoError(t, err)
	h.press(adminID, fmt.Sprintf("topen_%d", ticket.ID))
	assert.IsType(t, session.ChooseShipping{}, sessions.Step(buyerID))
	assert.Contains(t, h.rec.last(t, buyerID), "Завершите текущее действие")
	uopen := fmt.Sprintf("uopen_%d", ticket.ID)
	assert.Equal(t, []string{uopen}, h.rec.lastButtons(t, buyerID))

	h.text(adminID, "Здравствуйте")
	assert.Contains(t, h.rec.last(t, adminID), "не в диалоге")

	h.press(buyerID, "svc_post")
	require.IsType(t, session.AwaitProof{}, sessions.Step(buyerID))

	h.press(buyerID, uopen)
	assert.Equal(t, "Пользователь возобновил диалог", h.rec.last(t, adminID))
	h.text(adminID, "Слушаю")
	assert.Equal(t, "Слушаю", h.rec.last(t, buyerID))
}

func TestSetStatusOnMissingOrder(t *testing.T) {
	h := newHarness(t)
	sessions := h.bh.Deps.SessionManager
	sessions.Enter(adminID, session.OrderStatusEdit{OrderID: 999})

	h.press(adminID, "status_shipped")
	assert.Equal(t, "Заказ не найден или не ваш", h.rec.lastAnswer(t))
	assert.Nil(t, sessions.Step(adminID))
	assert.Empty(t, h.rec.to(adminID))
}

func TestStatusKeyboardOffersForwardStatuses(t *testing.T) {
	h := newHarness(t)
	order := h.paidOrder(t)
	h.press(adminID, fmt.Sprintf("confirm_%d", order.ID))

	h.press(adminID, fmt.Sprintf("ostatus_%d", order.ID))
	assert.Equal(t, []string{"status_shipped", "status_received", "enter_track"}, h.rec.lastButtons(t, adminID))

	h.press(adminID, "status_shipped")
	assert.Equal(t, models.StatusShipped, h.latestOrder(t).Status)
	assert.Contains(t, h.rec.last(t, buyerID), fmt.Sprintf("Статус вашего заказа #%d", order.ID))
}

func TestShippingChoiceRequotesChangedCart(t *testing.T) {
	h := newHarness(t)
	sessions := h.bh.Deps.SessionManager
	pid := h.product(t, models.Product{Name: "Худи", Price: 500})
	h.press(buyerID, fmt.Sprintf("add_%d", pid))
	h.press(buyerID, "pay")
	require.Equal(t, session.ChooseShipping{Total: 500}, sessions.Step(buyerID))

	_, err := h.store.UpdateProductPrice(context.Background(), pid, 700)
	require.NoError(t, err)

	h.press(buyerID, "svc_sdek")
	assert.Equal(t, "Сумма заказа изменилась: 700 руб.\nВыберите службу доставки", h.rec.last(t, buyerID))
	assert.Equal(t, session.ChooseShipping{Total: 700}, sessions.Step(buyerID))
	list, err := h.store.ListRecentOrders(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	h.press(buyerID, "svc_sdek")
	assert.Contains(t, h.rec.last(t, buyerID), "Оплатите 700 руб.")
	assert.Equal(t, int64(700), h.latestOrder(t).Total)
}

func TestBackFromProofKeepsCart(t *testing.T) {
	h := newHarness(t)
	pid := h.product(t, models.Product{Name: "Худи", Price: 500})
	h.press(buyerID, fmt.Sprintf("add_%d", pid))
	h.press(buyerID, "pay")
	h.press(buyerID, "svc_sdek")

	h.text(buyerID, constants.BTN_BACK)
	assert.Equal(t, "Оплата прервана. Корзина сохранена, оформите заказ заново, когда будете готовы.", h.rec.last(t, buyerID))
	assert.Nil(t, h.bh.Deps.SessionManager.Step(buyerID))

	lines, err := h.store.ListCartLines(context.Background(), buyerID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

// failingUsers - хранилище пользователей, которое не может записать пользователя.
type failingUsers struct{ *memstore.Store }

func (failingUsers) UpsertUser(context.Context, models.Profile, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRegistryFailureDeniesAccess(t *testing.T) {
	h := newHarness(t)
	cfg := h.bh.Deps.Config
	h.bh.Deps.Users = users.NewRegistry(failingUsers{h.store}, h.bh.Deps.Promos, cfg.BotUsername, cfg.ReferralPercent, cfg.ReferralPromoDays)

	h.text(buyerID, constants.BTN_CATALOG)
	assert.Equal(t, []string{serviceUnavailableText}, h.rec.to(buyerID))
	assert.Nil(t, h.bh.Deps.SessionManager.Step(buyerID))

	h.press(buyerID, "next")
	assert.Equal(t, serviceUnavailableText, h.rec.lastAnswer(t))
	assert.Len(t, h.rec.to(buyerID), 1)
}
