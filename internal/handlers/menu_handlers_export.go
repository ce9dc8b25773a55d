package handlers

import (
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/xuri/excelize/v2"

	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/reports"
)

func (bh *BotHandler) SendExportMenu(ev eventContext) {
	bh.leaveStep(ev)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📦 Заказы", constants.CALLBACK_EXPORT_ORDERS)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎟 Промокоды", constants.CALLBACK_EXPORT_PROMOS)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👥 Рефералы", constants.CALLBACK_EXPORT_REFERRALS)),
	)
	bh.sendMessage(ev.chatID, "Что выгрузить в Excel?", markup)
}

// sendReport сохраняет книгу во временный файл и отправляет ее админу.
func (bh *BotHandler) sendReport(ev eventContext, fn string, f *excelize.File, err error, prefix, caption string) {
	if err != nil {
		logErr(fn, ev, err)
		bh.sendMessage(ev.chatID, "❌ Ошибка при создании Excel файла.", nil)
		return
	}
	path, err := reports.SaveTemp(f, prefix)
	if err != nil {
		logErr(fn, ev, err)
		bh.sendMessage(ev.chatID, "❌ Ошибка при сохранении Excel файла.", nil)
		return
	}
	bh.sendExcelFile(ev.chatID, path, caption)
}

func (bh *BotHandler) SendOrdersExcel(ev eventContext) {
	list, err := bh.Deps.Orders.Recent(ev.ctx, 0)
	if err != nil {
		logErr("SendOrdersExcel", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить заказы", nil)
		return
	}
	if len(list) == 0 {
		bh.sendMessage(ev.chatID, "Заказов пока нет", nil)
		return
	}
	f, err := reports.OrdersFile(list)
	bh.sendReport(ev, "SendOrdersExcel", f, err, "orders", "📦 Выгрузка заказов")
}

func (bh *BotHandler) SendPromosExcel(ev eventContext) {
	list, err := bh.Deps.Promos.List(ev.ctx)
	if err != nil {
		logErr("SendPromosExcel", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить промокоды", nil)
		return
	}
	if len(list) == 0 {
		bh.sendMessage(ev.chatID, "Промокодов нет", nil)
		return
	}
	f, err := reports.PromosFile(list, time.Now())
	bh.sendReport(ev, "SendPromosExcel", f, err, "promos", "🎟 Выгрузка промокодов")
}

func (bh *BotHandler) SendReferralsExcel(ev eventContext) {
	rows, err := bh.Deps.Users.Referrals(ev.ctx)
	if err != nil {
		logErr("SendReferralsExcel", ev, err)
		bh.sendMessage(ev.chatID, "❌ Не удалось загрузить рефералов", nil)
		return
	}
	if len(rows) == 0 {
		bh.sendMessage(ev.chatID, "Рефералов пока нет", nil)
		return
	}
	f, err := reports.ReferralsFile(rows)
	bh.sendReport(ev, "SendReferralsExcel", f, err, "referrals", "👥 Выгрузка рефералов")
}
