package telegram_api

import (
	"fmt"
	"log"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// Sender - исходящая часть транспорта. Обработчики зависят только от нее.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// BotClient - обертка над Telegram Bot API.
type BotClient struct {
	api   *tgbotapi.BotAPI
	Debug bool
}

// Client - глобальный экземпляр, заполняется InitBot.
var Client *BotClient

// InitBot авторизует бота и отключает вебхук, чтобы работал getUpdates.
func InitBot(token string, debug bool) (*BotClient, error) {
	if token == "" {
		return nil, fmt.Errorf("токен Telegram API не предоставлен")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Telegram Bot API: %w", err)
	}
	api.Debug = debug
	log.Printf("Авторизован как аккаунт %s", api.Self.UserName)

	deleteWebhookConfig := tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: true,
	}
	if _, err = api.Request(deleteWebhookConfig); err != nil {
		// Ошибка ожидаема, если вебхука и не было.
		log.Printf("InitBot: предупреждение при отключении вебхука: %v", err)
	} else {
		log.Println("Вебхук успешно отключен (или не был установлен).")
	}

	Client = &BotClient{api: api, Debug: debug}
	return Client, nil
}

// Username - имя бота без @.
func (bc *BotClient) Username() string {
	if bc == nil || bc.api == nil {
		return ""
	}
	return bc.api.Self.UserName
}

// GetUpdatesChan возвращает канал обновлений (long polling).
func (bc *BotClient) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	if bc.Debug {
		log.Printf("Запрос канала обновлений с конфигурацией: %+v", config)
	}
	return bc.api.GetUpdatesChan(config)
}

// StopReceivingUpdates останавливает long polling и закрывает канал обновлений.
func (bc *BotClient) StopReceivingUpdates() {
	bc.api.StopReceivingUpdates()
}

func (bc *BotClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if bc == nil || bc.api == nil {
		return tgbotapi.Message{}, fmt.Errorf("BotClient или его API не инициализирован")
	}
	if bc.Debug {
		switch msg := c.(type) {
		case tgbotapi.MessageConfig:
			log.Printf("Отправка сообщения: ChatID=%d, Text='%.50s...'", msg.ChatID, msg.Text)
		case tgbotapi.PhotoConfig:
			log.Printf("Отправка фото: ChatID=%d, Caption='%.50s...'", msg.ChatID, msg.Caption)
		case tgbotapi.DocumentConfig:
			log.Printf("Отправка документа: ChatID=%d", msg.ChatID)
		default:
			log.Printf("Отправка типа %T", c)
		}
	}
	return bc.api.Send(c)
}

func (bc *BotClient) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if bc == nil || bc.api == nil {
		return nil, fmt.Errorf("BotClient или его API не инициализирован")
	}
	if bc.Debug {
		switch req := c.(type) {
		case tgbotapi.DeleteMessageConfig:
			log.Printf("Запрос на удаление: ChatID=%d, MessageID=%d", req.ChatID, req.MessageID)
		case tgbotapi.CallbackConfig:
			log.Printf("Ответ на коллбэк: CallbackQueryID=%s, Text='%.50s...'", req.CallbackQueryID, req.Text)
		default:
			log.Printf("Выполнение запроса типа %T", c)
		}
	}
	return bc.api.Request(c)
}
