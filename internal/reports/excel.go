// Package reports строит xlsx-выгрузки для админов.
package reports

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/utils"
)

const (
	OrdersSheet    = "Заказы"
	PromosSheet    = "Промокоды"
	ReferralsSheet = "Рефералы"
)

// newSheet создает книгу с единственным листом и строкой заголовков.
func newSheet(sheetName string, headers []string) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("создание листа %s: %w", sheetName, err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}
	return f, nil
}

func setRow(f *excelize.File, sheetName string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheetName, cell, v)
	}
}

// OrdersFile - выгрузка заказов.
func OrdersFile(orders []models.Order) (*excelize.File, error) {
	headers := []string{"ID Заказа", "Пользователь", "Сумма", "Статус", "Промокод", "Доставка", "Трек-номер", "ФИО", "Телефон", "Адрес", "Админ", "Дата"}
	f, err := newSheet(OrdersSheet, headers)
	if err != nil {
		return nil, err
	}
	for i, o := range orders {
		setRow(f, OrdersSheet, i+2,
			o.ID,
			o.UserID,
			o.Total,
			utils.StatusDisplay(o.Status),
			o.PromoCode.String,
			o.ShippingService,
			o.TrackingNumber.String,
			o.FullName.String,
			o.Phone.String,
			o.Address.String,
			o.AdminID,
			o.CreatedAt.Format(constants.DateTimeLayout),
		)
	}
	return f, nil
}

// PromosFile - выгрузка промокодов с признаком активности на момент now.
func PromosFile(promos []models.PromoCode, now time.Time) (*excelize.File, error) {
	headers := []string{"Код", "Скидка, %", "Использовано", "Лимит", "Действует до", "Активен"}
	f, err := newSheet(PromosSheet, headers)
	if err != nil {
		return nil, err
	}
	for i, p := range promos {
		limit := "∞"
		if p.UsageLimit.Valid {
			limit = fmt.Sprint(p.UsageLimit.Int64)
		}
		expires := "∞"
		if p.ExpiresAt.Valid {
			expires = p.ExpiresAt.Time.Format(constants.DateTimeLayout)
		}
		active := "Да"
		if p.Exhausted() || p.Expired(now) {
			active = "Нет"
		}
		setRow(f, PromosSheet, i+2, p.Code, p.Percent, p.UsedCount, limit, expires, active)
	}
	return f, nil
}

// ReferralsFile - сводка по пригласившим.
func ReferralsFile(rows []models.ReferralSummary) (*excelize.File, error) {
	headers := []string{"ID", "Пользователь", "Код", "Приглашено", "Скидка, %"}
	f, err := newSheet(ReferralsSheet, headers)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		setRow(f, ReferralsSheet, i+2, r.User.TelegramID, utils.GetUserDisplayName(r.User), r.Code, r.Count, r.Percent)
	}
	return f, nil
}

// SaveTemp сохраняет книгу во временный файл с уникальным именем. Удаление - на вызывающем.
func SaveTemp(f *excelize.File, prefix string) (string, error) {
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("SaveTemp: ошибка закрытия книги: %v", err)
		}
	}()
	filePath := filepath.Join(os.TempDir(), fmt.Sprintf("%s_%s_%s.xlsx", prefix, time.Now().Format("20060102_150405"), uuid.NewString()))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("сохранение Excel файла: %w", err)
	}
	return filePath, nil
}
