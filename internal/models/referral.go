package models

// ReferralSummary - сводка по реферальной программе одного пользователя.
type ReferralSummary struct {
	User    User
	Code    string
	Link    string
	Count   int
	Percent int
}
