package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var localPhoneRegex = regexp.MustCompile(`^\+7\d{10}$`)

// NormalizePhoneNumber приводит российский номер к виду +7XXXXXXXXXX.
// Номер в другом формате возвращается без изменений вместе с false.
func NormalizePhoneNumber(phone string) (string, bool) {
	phone = strings.TrimSpace(phone)
	digitsOnly := regexp.MustCompile(`[^\d]`).ReplaceAllString(phone, "")

	var normalized string
	switch {
	case strings.HasPrefix(phone, "+7") && len(digitsOnly) == 11:
		normalized = "+" + digitsOnly
	case len(digitsOnly) == 11 && (digitsOnly[0] == '8' || digitsOnly[0] == '7'):
		normalized = "+7" + digitsOnly[1:]
	case len(digitsOnly) == 10:
		normalized = "+7" + digitsOnly
	default:
		return phone, false
	}
	if !localPhoneRegex.MatchString(normalized) {
		return phone, false
	}
	return normalized, true
}

// ParseID разбирает положительный числовой идентификатор.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("неверный id %q", s)
	}
	return id, nil
}

// ParseNonNegative разбирает целое число >= 0.
func ParseNonNegative(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("ожидалось неотрицательное число, получено %q", s)
	}
	return n, nil
}

// ValidateCardNumber проверяет базовый формат номера карты (16-19 цифр).
func ValidateCardNumber(cardNumber string) error {
	cardNumber = strings.ReplaceAll(cardNumber, " ", "")
	if len(cardNumber) < 16 || len(cardNumber) > 19 {
		return fmt.Errorf("номер карты должен содержать от 16 до 19 цифр")
	}
	if !regexp.MustCompile(`^[0-9]+$`).MatchString(cardNumber) {
		return fmt.Errorf("номер карты должен содержать только цифры")
	}
	return nil
}
