package models

import (
	"database/sql"
	"time"
)

// User представляет собеседника бота.
// Пользователь создается при первом контакте и обновляется при каждом /start.
type User struct {
	TelegramID   int64
	Username     sql.NullString
	FirstName    string
	LastName     sql.NullString
	Banned       bool
	ReferralCode sql.NullString
	ReferrerID   sql.NullInt64 // Устанавливается один раз и больше не перезаписывается
	CreatedAt    time.Time
}

// Profile - данные пользователя, приходящие вместе с сообщением.
type Profile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// Tag возвращает @username, если он есть, иначе fallback.
func (u User) Tag(fallback string) string {
	if u.Username.Valid && u.Username.String != "" {
		return "@" + u.Username.String
	}
	return fallback
}

// Stats - сводка для админской статистики.
type Stats struct {
	UsersCount  int
	OrdersCount int
	Revenue     int64
	LastOrders  []Order
}
