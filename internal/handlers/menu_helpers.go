package handlers

import (
	"context"
	"log"
	"os"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/telegram_api"
	"github.com/M0nstr1k/ds/internal/utils"
)

// --- Вспомогательные функции для отправки сообщений ---
// --- Helper functions for sending messages ---

// sendMessage отправляет текст. Ошибка доставки только логируется.
func (bh *BotHandler) sendMessage(chatID int64, text string, markup any) tgbotapi.Message {
	sent, _ := telegram_api.SendText(bh.Deps.Sender, chatID, text, markup)
	return sent
}

// trySend отправляет текст и сообщает, удалось ли доставить (для рассылок).
func (bh *BotHandler) trySend(chatID int64, text string, markup any) bool {
	_, err := telegram_api.SendText(bh.Deps.Sender, chatID, text, markup)
	return err == nil
}

func (bh *BotHandler) sendPhoto(chatID int64, file tgbotapi.RequestFileData, caption string, markup any) tgbotapi.Message {
	sent, _ := telegram_api.SendPhoto(bh.Deps.Sender, chatID, file, caption, markup)
	return sent
}

func (bh *BotHandler) deleteMessageHelper(chatID int64, messageID int) bool {
	return telegram_api.DeleteMessage(bh.Deps.Sender, chatID, messageID)
}

func (bh *BotHandler) removeButtons(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	telegram_api.EditButtons(bh.Deps.Sender, chatID, messageID, nil)
}

func (bh *BotHandler) answer(query *tgbotapi.CallbackQuery, text string) {
	telegram_api.AnswerCallback(bh.Deps.Sender, query.ID, text)
}

// sendExcelFile отправляет xlsx и удаляет временный файл.
func (bh *BotHandler) sendExcelFile(chatID int64, filePath, caption string) {
	defer func() {
		if err := os.Remove(filePath); err != nil {
			log.Printf("sendExcelFile: ошибка удаления временного файла %s: %v", filePath, err)
		}
	}()
	if err := telegram_api.SendDocument(bh.Deps.Sender, chatID, filePath, caption); err != nil {
		bh.sendMessage(chatID, "❌ Не удалось отправить файл.", nil)
	}
}

// --- Клавиатуры ---

func mainMenuKeyboard(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_CATALOG), tgbotapi.NewKeyboardButton(constants.BTN_CART)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_ORDERS), tgbotapi.NewKeyboardButton(constants.BTN_SUPPORT)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_REFERRALS)),
	}
	if isAdmin {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_PANEL)))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func adminKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_ADD_PRODUCT), tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_PROMOS)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_PRODUCTS), tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_ORDERS)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_STATS), tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_BROADCAST)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_TICKETS), tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_REFERRALS)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_STATUSES), tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_EXPORT)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_ADMIN_BACK)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func backKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(constants.BTN_BACK)))
	kb.ResizeKeyboard = true
	return kb
}

func removeKeyboard() tgbotapi.ReplyKeyboardRemove {
	return tgbotapi.NewRemoveKeyboard(true)
}

// --- Разбор входящих данных ---

// parseCommand разбирает "/cmd@bot args". Для обычного текста ok == false.
func parseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	cmd = strings.TrimPrefix(head, "/")
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd == "" {
		return "", "", false
	}
	return strings.ToLower(cmd), strings.TrimSpace(rest), true
}

// parseItemData разбирает "<prefix><productID>_<size>". Размер может быть пустым и содержать "_".
func parseItemData(data, prefix string) (productID int64, size string, ok bool) {
	rest := strings.TrimPrefix(data, prefix)
	idPart, size, _ := strings.Cut(rest, "_")
	id, err := utils.ParseID(idPart)
	if err != nil {
		return 0, "", false
	}
	return id, size, true
}

// parseIDData разбирает "<prefix><id>".
func parseIDData(data, prefix string) (int64, bool) {
	id, err := utils.ParseID(strings.TrimPrefix(data, prefix))
	return id, err == nil
}

// userTag - @username или id пользователя для админских списков.
func (bh *BotHandler) userTag(ctx context.Context, userID int64) string {
	u, err := bh.Deps.Users.Get(ctx, userID)
	if err != nil {
		return utils.UserTag(models.User{TelegramID: userID})
	}
	return utils.EscapeHTML(utils.UserTag(u))
}
