package formatters

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/M0nstr1k/ds/internal/models"
)

func valid(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

func TestFormatProductCaption(t *testing.T) {
	caption := FormatProductCaption(models.Product{
		Name: "Худи <oversize>", Description: "Хлопок", Price: 3500,
		Stock: sql.NullInt64{Int64: 4, Valid: true}, Sizes: "S, M",
	})
	assert.Contains(t, caption, "<b>Худи &lt;oversize&gt;</b>")
	assert.Contains(t, caption, "💸 Цена: 3500 руб.")
	assert.Contains(t, caption, "📋 В наличии: 4 шт.")
	assert.Contains(t, caption, "📏 Размеры: S, M")

	plain := FormatProductCaption(models.Product{Name: "Кепка", Price: 700})
	assert.NotContains(t, plain, "В наличии")
	assert.NotContains(t, plain, "Размеры")
}

func TestOrderLines(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	o := models.Order{ID: 7, UserID: 42, Total: 1800, Status: models.StatusShipped, CreatedAt: created, ShippingService: "СДЭК"}

	assert.Equal(t, "#7 | 🚚 Отправлен | 1800 руб. | 2024-05-01 12:30", FormatOrderForUser(o))
	assert.Equal(t, "#7 | @buyer | 🚚 Отправлен | СДЭК | - | - | - | -", FormatOrderStatusLine(o, "@buyer"))

	o.TrackingNumber = valid("TRACK1")
	o.FullName = valid("Иванов Иван")
	assert.Contains(t, FormatOrderForUser(o), " | трек: TRACK1")
	assert.Equal(t, "#7 | @buyer | 🚚 Отправлен | 1800 руб. | 2024-05-01 12:30 | Иванов Иван | СДЭК | TRACK1", FormatOrderForAdmin(o, "@buyer"))
}

func TestFormatProofCaption(t *testing.T) {
	o := models.Order{ID: 3, UserID: 42, Total: 900, ShippingService: "Почта РФ", PromoCode: valid("SALE10")}
	caption := FormatProofCaption(o, "@buyer", []models.OrderItem{
		{Name: "Худи", Size: "L", Quantity: 2},
		{Name: "Кепка", Quantity: 1},
	})
	assert.Equal(t, "Чек по заказу #3\nПользователь: @buyer (42)\nСумма: 900 руб.\nДоставка: Почта РФ\nПромокод: SALE10\n• Худи (L) x2\n• Кепка x1", caption)
}

func TestFormatRecipientForAdmin(t *testing.T) {
	o := models.Order{ID: 3, UserID: 42, FullName: valid("Иванов Иван"), Phone: valid("89991234567"), Address: valid("Москва")}
	text := FormatRecipientForAdmin(o, "@buyer")
	assert.Contains(t, text, "Пользователь @buyer (42) указал данные по заказу #3:")
	assert.Contains(t, text, "Телефон: +7 (999) 123-45-67")
	assert.Contains(t, text, "Адрес: Москва")
}

func TestFormatTicketHistory(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	text := FormatTicketHistory(models.SupportTicket{ID: 5, UserID: 42}, []models.TicketMessage{
		{SenderID: 42, Message: "Где заказ?", CreatedAt: at},
		{SenderID: 900, Message: "В пути", CreatedAt: at},
	})
	assert.Equal(t, "История тикета #5:\n[2024-05-01 09:00] 👤 Пользователь: Где заказ?\n[2024-05-01 09:00] 🛠 Админ: В пути", text)
}
