package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"sync"
)

// encryptionKey - ключ AES-256 для номеров карт в заказах.
// Пустой ключ означает, что номера хранятся открытым текстом.
var (
	keyMu         sync.RWMutex
	encryptionKey []byte
)

// InitEncryptionKey устанавливает ключ шифрования из HEX-строки (64 символа).
// Пустая строка отключает шифрование.
func InitEncryptionKey(keyHex string) error {
	if keyHex == "" {
		log.Println("InitEncryptionKey: CARD_ENCRYPTION_KEY_HEX не задан, номера карт хранятся без шифрования")
		setKey(nil)
		return nil
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return fmt.Errorf("некорректный формат ключа шифрования (не HEX): %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("некорректная длина ключа шифрования, требуется 32 байта, получено %d", len(key))
	}
	setKey(key)
	log.Println("InitEncryptionKey: ключ шифрования инициализирован")
	return nil
}

func setKey(key []byte) {
	keyMu.Lock()
	defer keyMu.Unlock()
	encryptionKey = key
}

func currentKey() []byte {
	keyMu.RLock()
	defer keyMu.RUnlock()
	return encryptionKey
}

// EncryptionEnabled сообщает, задан ли ключ.
func EncryptionEnabled() bool {
	return len(currentKey()) != 0
}

// SealCard шифрует номер карты, если ключ задан, иначе возвращает его как есть.
func SealCard(card string) (string, error) {
	if !EncryptionEnabled() {
		return card, nil
	}
	return EncryptCardNumber(card)
}

// OpenCard - обратная к SealCard операция.
func OpenCard(stored string) (string, error) {
	if !EncryptionEnabled() {
		return stored, nil
	}
	return DecryptCardNumber(stored)
}

// EncryptCardNumber шифрует номер карты AES-256-GCM. Результат - hex(nonce || ciphertext).
func EncryptCardNumber(plainTextCardNumber string) (string, error) {
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	cipherText := gcm.Seal(nonce, nonce, []byte(plainTextCardNumber), nil)
	return hex.EncodeToString(cipherText), nil
}

// DecryptCardNumber расшифровывает результат EncryptCardNumber.
func DecryptCardNumber(cipherTextCardNumberHex string) (string, error) {
	cipherText, err := hex.DecodeString(cipherTextCardNumberHex)
	if err != nil {
		return "", fmt.Errorf("не удалось декодировать зашифрованный номер карты из hex: %w", err)
	}

	gcm, err := newGCM()
	if err != nil {
		return "", err
	}
	if len(cipherText) < gcm.NonceSize() {
		return "", fmt.Errorf("размер зашифрованного текста меньше размера nonce")
	}

	nonce, actualCipherText := cipherText[:gcm.NonceSize()], cipherText[gcm.NonceSize():]
	plainText, err := gcm.Open(nil, nonce, actualCipherText, nil)
	if err != nil {
		log.Printf("DecryptCardNumber: ошибка дешифрования (неверный ключ или поврежденные данные): %v", err)
		return "", fmt.Errorf("ошибка дешифрования номера карты: %w", err)
	}
	return string(plainText), nil
}

func newGCM() (cipher.AEAD, error) {
	key := currentKey()
	if len(key) == 0 {
		return nil, fmt.Errorf("ключ шифрования не инициализирован")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания шифра: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}
	return gcm, nil
}
