package models

import (
	"database/sql"
	"time"
)

// PromoCode - процентная скидка с лимитом использований и сроком действия.
type PromoCode struct {
	Code       string
	Percent    int
	UsageLimit sql.NullInt64 // NULL - без ограничений
	UsedCount  int
	ExpiresAt  sql.NullTime // NULL - бессрочный
}

// Exhausted сообщает, что лимит использований исчерпан.
func (p PromoCode) Exhausted() bool {
	return p.UsageLimit.Valid && int64(p.UsedCount) >= p.UsageLimit.Int64
}

// Expired сообщает, что срок действия истек к моменту now.
func (p PromoCode) Expired(now time.Time) bool {
	return p.ExpiresAt.Valid && p.ExpiresAt.Time.Before(now)
}
