// Package formatters собирает тексты сообщений о товарах и заказах (ParseMode HTML).
package formatters

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/utils"
)

const fieldSeparator = " | "

// FormatProductCaption - карточка товара в каталоге.
func FormatProductCaption(p models.Product) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n%s\n💸 Цена: %s", utils.EscapeHTML(p.Name), utils.EscapeHTML(p.Description), utils.FormatMoney(p.Price)))
	if p.Stock.Valid {
		sb.WriteString(fmt.Sprintf("\n📋 В наличии: %d шт.", p.Stock.Int64))
	}
	if p.Sizes != "" {
		sb.WriteString("\n📏 Размеры: " + utils.EscapeHTML(strings.Join(p.SizeList(), ", ")))
	}
	return sb.String()
}

// FormatOrderForUser - строка истории заказов пользователя.
func FormatOrderForUser(o models.Order) string {
	line := fmt.Sprintf("#%d | %s | %s | %s", o.ID, utils.StatusDisplay(o.Status), utils.FormatMoney(o.Total), o.CreatedAt.Format(constants.DateTimeLayout))
	if o.TrackingNumber.Valid && o.TrackingNumber.String != "" {
		line += " | трек: " + utils.EscapeHTML(o.TrackingNumber.String)
	}
	return line
}

// FormatOrderForAdmin - строка списка последних заказов. Пустые поля пропускаются.
func FormatOrderForAdmin(o models.Order, userTag string) string {
	parts := []string{
		fmt.Sprintf("#%d", o.ID),
		userTag,
		utils.StatusDisplay(o.Status),
		utils.FormatMoney(o.Total),
		o.CreatedAt.Format(constants.DateTimeLayout),
	}
	for _, extra := range []sql.NullString{o.FullName, o.Phone, o.Address} {
		if extra.Valid && extra.String != "" {
			parts = append(parts, utils.EscapeHTML(extra.String))
		}
	}
	if o.ShippingService != "" {
		parts = append(parts, o.ShippingService)
	}
	if o.TrackingNumber.Valid && o.TrackingNumber.String != "" {
		parts = append(parts, utils.EscapeHTML(o.TrackingNumber.String))
	}
	return strings.Join(parts, fieldSeparator)
}

// FormatOrderStatusLine - строка списка статусов, пустые поля заменяются прочерком.
func FormatOrderStatusLine(o models.Order, userTag string) string {
	return strings.Join([]string{
		fmt.Sprintf("#%d", o.ID),
		userTag,
		utils.StatusDisplay(o.Status),
		o.ShippingService,
		dashIfEmpty(o.TrackingNumber),
		dashIfEmpty(o.FullName),
		dashIfEmpty(o.Phone),
		dashIfEmpty(o.Address),
	}, fieldSeparator)
}

func dashIfEmpty(s sql.NullString) string {
	if !s.Valid || s.String == "" {
		return "-"
	}
	return utils.EscapeHTML(s.String)
}

// FormatProofCaption - подпись к чеку, который уходит ответственному админу.
func FormatProofCaption(o models.Order, userTag string, items []models.OrderItem) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Чек по заказу #%d\nПользователь: %s (%d)\nСумма: %s\nДоставка: %s",
		o.ID, userTag, o.UserID, utils.FormatMoney(o.Total), o.ShippingService))
	if o.PromoCode.Valid {
		sb.WriteString("\nПромокод: " + utils.EscapeHTML(o.PromoCode.String))
	}
	for _, it := range items {
		line := "\n• " + utils.EscapeHTML(it.Name)
		if it.Size != "" {
			line += " (" + utils.EscapeHTML(it.Size) + ")"
		}
		sb.WriteString(fmt.Sprintf("%s x%d", line, it.Quantity))
	}
	return sb.String()
}

// FormatRecipientForAdmin - данные получателя, введенные после подтверждения оплаты.
func FormatRecipientForAdmin(o models.Order, userTag string) string {
	return fmt.Sprintf("Пользователь %s (%d) указал данные по заказу #%d:\nФИО: %s\nТелефон: %s\nАдрес: %s",
		userTag, o.UserID, o.ID,
		utils.EscapeHTML(o.FullName.String),
		utils.EscapeHTML(utils.FormatPhoneNumber(o.Phone.String)),
		utils.EscapeHTML(o.Address.String))
}

// FormatTicketHistory - переписка по тикету для подключившегося админа.
func FormatTicketHistory(t models.SupportTicket, msgs []models.TicketMessage) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("История тикета #%d:", t.ID))
	for _, m := range msgs {
		who := "🛠 Админ"
		if m.SenderID == t.UserID {
			who = "👤 Пользователь"
		}
		sb.WriteString(fmt.Sprintf("\n[%s] %s: %s", m.CreatedAt.Format(constants.DateTimeLayout), who, utils.EscapeHTML(m.Message)))
	}
	return sb.String()
}
