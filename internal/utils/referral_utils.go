package utils

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

// ReferralCodePrefix - префикс реферального кода пользователя (ref<telegram id>).
const ReferralCodePrefix = "ref"

// ReferralCode возвращает реферальный код пользователя.
func ReferralCode(userID int64) string {
	return ReferralCodePrefix + strconv.FormatInt(userID, 10)
}

// GenerateReferralLink собирает ссылку вида https://t.me/<bot>?start=<code>.
func GenerateReferralLink(botUsername, code string) (string, error) {
	botUsername = strings.TrimPrefix(botUsername, "@")
	if botUsername == "" {
		log.Println("GenerateReferralLink: botUsername не предоставлен.")
		return "", fmt.Errorf("имя пользователя бота не настроено")
	}
	if code == "" {
		return "", fmt.Errorf("пустой реферальный код")
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, code), nil
}

// GenerateQRCode возвращает PNG с QR-кодом ссылки.
func GenerateQRCode(link string) ([]byte, error) {
	// qrcode.Medium - уровень коррекции ошибок, 256 - размер в пикселях.
	qrBytes, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		log.Printf("GenerateQRCode: ошибка кодирования QR-кода для ссылки '%s': %v", link, err)
		return nil, err
	}
	return qrBytes, nil
}
