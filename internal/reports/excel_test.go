package reports

import (
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/M0nstr1k/ds/internal/models"
)

func TestOrdersFile(t *testing.T) {
	created := time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)
	f, err := OrdersFile([]models.Order{{
		ID:              7,
		UserID:          100,
		Total:           1170,
		Status:          models.StatusPaid,
		PromoCode:       sql.NullString{String: "SALE10", Valid: true},
		ShippingService: "СДЭК",
		AdminID:         1,
		CreatedAt:       created,
	}})
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{OrdersSheet}, f.GetSheetList())
	rows, err := f.GetRows(OrdersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID Заказа", rows[0][0])
	assert.Equal(t, "7", rows[1][0])
	assert.Equal(t, "1170", rows[1][2])
	assert.Equal(t, "SALE10", rows[1][4])
	assert.Equal(t, "СДЭК", rows[1][5])
	assert.Equal(t, "2025-05-01 10:30", rows[1][11])
}

func TestPromosFileMarksInactive(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	f, err := PromosFile([]models.PromoCode{
		{Code: "LIVE", Percent: 10},
		{Code: "USED", Percent: 5, UsageLimit: sql.NullInt64{Int64: 1, Valid: true}, UsedCount: 1},
		{Code: "OLD", Percent: 5, ExpiresAt: sql.NullTime{Time: now.Add(-time.Hour), Valid: true}},
	}, now)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(PromosSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"LIVE", "10", "0", "∞", "∞", "Да"}, rows[1])
	assert.Equal(t, "Нет", rows[2][5])
	assert.Equal(t, "Нет", rows[3][5])
}

func TestSaveTemp(t *testing.T) {
	f, err := ReferralsFile([]models.ReferralSummary{{User: models.User{TelegramID: 1, FirstName: "Аня"}, Code: "ref1", Count: 3, Percent: 15}})
	require.NoError(t, err)

	path, err := SaveTemp(f, "referrals")
	require.NoError(t, err)
	defer os.Remove(path)
	assert.True(t, strings.HasSuffix(path, ".xlsx"))

	opened, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer opened.Close()
	rows, err := opened.GetRows(ReferralsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Аня", rows[1][1])
	assert.Equal(t, "15", rows[1][4])
}
