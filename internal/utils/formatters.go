package utils

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/models"
)

// FormatMoney - "1170 руб.".
func FormatMoney(amount int64) string {
	return strconv.FormatInt(amount, 10) + " " + constants.CurrencySuffix
}

// FormatPhoneNumber форматирует номер телефона для отображения.
func FormatPhoneNumber(phone string) string {
	normalized, ok := NormalizePhoneNumber(phone)
	if !ok {
		return phone
	}
	return fmt.Sprintf("+7 (%s) %s-%s-%s", normalized[2:5], normalized[5:8], normalized[8:10], normalized[10:12])
}

// EscapeHTML экранирует пользовательский текст для ParseMode HTML.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}

// MaskCard оставляет видимыми последние 4 цифры карты.
func MaskCard(card string) string {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

// StatusDisplay возвращает подпись статуса заказа.
func StatusDisplay(status models.OrderStatus) string {
	if s, ok := constants.StatusDisplayMap[string(status)]; ok {
		return s
	}
	return string(status)
}

// UserTag - @username или числовой id.
func UserTag(user models.User) string {
	return user.Tag(strconv.FormatInt(user.TelegramID, 10))
}

// GetUserDisplayName формирует отображаемое имя пользователя.
func GetUserDisplayName(user models.User) string {
	nameParts := []string{}
	if user.FirstName != "" {
		nameParts = append(nameParts, user.FirstName)
	}
	if user.LastName.Valid && user.LastName.String != "" {
		nameParts = append(nameParts, user.LastName.String)
	}
	name := strings.TrimSpace(strings.Join(nameParts, " "))

	switch {
	case name == "" && user.Username.Valid && user.Username.String != "":
		return "@" + user.Username.String
	case name == "":
		return fmt.Sprintf("User %d", user.TelegramID)
	case user.Username.Valid && user.Username.String != "":
		return fmt.Sprintf("%s (@%s)", name, user.Username.String)
	}
	return name
}
