package telegram_api

import (
	"log"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// SendText отправляет текст. markup - любая клавиатура tgbotapi или nil.
func SendText(s Sender, chatID int64, text string, markup any) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	sent, err := s.Send(msg)
	if err != nil {
		log.Printf("SendText: ошибка отправки сообщения chatID %d: %v", chatID, err)
	}
	return sent, err
}

// SendPhoto отправляет фото с подписью.
func SendPhoto(s Sender, chatID int64, file tgbotapi.RequestFileData, caption string, markup any) (tgbotapi.Message, error) {
	photo := tgbotapi.NewPhoto(chatID, file)
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		photo.ReplyMarkup = markup
	}
	sent, err := s.Send(photo)
	if err != nil {
		log.Printf("SendPhoto: ошибка отправки фото chatID %d: %v", chatID, err)
	}
	return sent, err
}

// SendDocument отправляет файл с диска.
func SendDocument(s Sender, chatID int64, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := s.Send(doc); err != nil {
		log.Printf("SendDocument: ошибка отправки файла %s chatID %d: %v", path, chatID, err)
		return err
	}
	return nil
}

// EditButtons заменяет инлайн-кнопки сообщения. nil убирает кнопки.
func EditButtons(s Sender, chatID int64, messageID int, markup *tgbotapi.InlineKeyboardMarkup) error {
	if markup == nil {
		markup = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, *markup)
	if _, err := s.Request(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		log.Printf("EditButtons: ошибка изменения кнопок chatID=%d, MessageID=%d: %v", chatID, messageID, err)
		return err
	}
	return nil
}

// AnswerCallback снимает "часики" с кнопки, опционально показывая текст.
func AnswerCallback(s Sender, callbackID, text string) {
	if callbackID == "" {
		return
	}
	if _, err := s.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Printf("AnswerCallback: ошибка ответа на коллбэк %s: %v", callbackID, err)
	}
}

// DeleteMessage удаляет сообщение. Уже удаленное сообщение не считается ошибкой.
func DeleteMessage(s Sender, chatID int64, messageID int) bool {
	if messageID == 0 {
		return false
	}
	response, err := s.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	if err != nil {
		if !strings.Contains(err.Error(), "message to delete not found") {
			log.Printf("DeleteMessage: ChatID=%d, MessageID=%d, Error: %v", chatID, messageID, err)
		}
		return false
	}
	if response != nil && !response.Ok {
		if response.Description != "Bad Request: message to delete not found" &&
			response.Description != "Bad Request: message can't be deleted" {
			log.Printf("DeleteMessage: Telegram API не смог удалить сообщение %d для chatID %d: %s", messageID, chatID, response.Description)
		}
		return false
	}
	return true
}
