package config

import (
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"

	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/utils"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	TelegramToken string  `env:"TELEGRAM_APITOKEN"`
	BotUsername   string  `env:"BOT_USERNAME"`
	AppEnv        string  `env:"ENV" envDefault:"prod"`
	DatabaseURL   string  `env:"DATABASE_URL"`
	StorageDriver string  `env:"STORAGE_DRIVER" envDefault:"postgres"`
	AdminIDs      []int64 `env:"ADMIN_IDS" envSeparator:","`
	PaymentCards  string  `env:"PAYMENT_CARDS"`

	ReferralPercent   int `env:"REFERRAL_PERCENT" envDefault:"5"`
	ReferralPromoDays int `env:"REFERRAL_PROMO_DAYS" envDefault:"30"`

	CardEncryptionKeyHex string `env:"CARD_ENCRYPTION_KEY_HEX"`

	Port        string `env:"PORT" envDefault:"8080"`
	HTTPEnabled bool   `env:"HTTP_ENABLED" envDefault:"true"`
	Workers     int    `env:"WORKERS" envDefault:"8"`

	// Cards - разобранный PAYMENT_CARDS.
	Cards []models.PaymentCard
}

// LoadConfig загружает .env (если есть) и переменные окружения.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("LoadConfig: файл .env не загружен: %v", err)
	}
	return Parse(env.Options{})
}

// Parse разбирает окружение. opts.Environment позволяет подставить переменные в тестах.
func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("разбор переменных окружения: %w", err)
	}

	var err error
	cfg.Cards, err = ParsePaymentCards(cfg.PaymentCards)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.warn()
	log.Println("Конфигурация загружена.")
	return cfg, nil
}

// ParsePaymentCards разбирает "card:adminID,card:adminID".
func ParsePaymentCards(raw string) ([]models.PaymentCard, error) {
	var cards []models.PaymentCard
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.LastIndex(pair, ":")
		if idx <= 0 || idx == len(pair)-1 {
			return nil, fmt.Errorf("PAYMENT_CARDS: ожидалось card:adminID, получено %q", pair)
		}
		adminID, err := strconv.ParseInt(strings.TrimSpace(pair[idx+1:]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("PAYMENT_CARDS: некорректный id админа в %q: %w", pair, err)
		}
		card := strings.TrimSpace(pair[:idx])
		if err := utils.ValidateCardNumber(card); err != nil {
			return nil, fmt.Errorf("PAYMENT_CARDS: %s: %w", utils.MaskCard(card), err)
		}
		cards = append(cards, models.PaymentCard{Card: card, AdminID: adminID})
	}
	return cards, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL не установлен")
		}
		if _, err := url.Parse(c.DatabaseURL); err != nil {
			return fmt.Errorf("ошибка парсинга DATABASE_URL: %w", err)
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER должен быть postgres или memory, получено %q", c.StorageDriver)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS должен быть больше нуля")
	}
	if c.ReferralPercent < 0 || c.ReferralPromoDays < 0 {
		return fmt.Errorf("REFERRAL_PERCENT и REFERRAL_PROMO_DAYS не могут быть отрицательными")
	}
	for _, card := range c.Cards {
		if !c.IsAdmin(card.AdminID) {
			return fmt.Errorf("PAYMENT_CARDS: админ %d не входит в ADMIN_IDS", card.AdminID)
		}
	}
	return nil
}

func (c *Config) warn() {
	if c.TelegramToken == "" {
		log.Println("Критическая ошибка: TELEGRAM_APITOKEN не установлен.")
	}
	if c.BotUsername == "" {
		log.Println("Предупреждение: BOT_USERNAME не установлен, реферальные ссылки недоступны.")
	}
	if len(c.AdminIDs) == 0 {
		log.Println("Предупреждение: ADMIN_IDS пуст, админ-панель недоступна.")
	}
	if len(c.Cards) == 0 {
		log.Println("Предупреждение: PAYMENT_CARDS пуст, оформление заказов недоступно.")
	}
	for _, card := range c.Cards {
		log.Printf("Карта для оплаты %s закреплена за админом %d", utils.MaskCard(card.Card), card.AdminID)
	}
}

// IsAdmin проверяет id по списку ADMIN_IDS.
func (c *Config) IsAdmin(id int64) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

// IsDev - режим разработки с отладочным логированием.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}
