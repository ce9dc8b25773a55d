package models

import (
	"database/sql"
	"time"
)

// OrderStatus - статус заказа.
type OrderStatus string

const (
	StatusWaiting  OrderStatus = "waiting"
	StatusPaid     OrderStatus = "paid"
	StatusCreated  OrderStatus = "created"
	StatusShipped  OrderStatus = "shipped"
	StatusReceived OrderStatus = "received"
	StatusCanceled OrderStatus = "canceled"
)

// Order - заказ пользователя. Сумма хранится уже со скидкой.
type Order struct {
	ID              int64
	UserID          int64
	Total           int64
	Status          OrderStatus
	PromoCode       sql.NullString
	CreatedAt       time.Time
	Card            string // Зашифрованный номер карты для оплаты
	AdminID         int64  // Единственный админ, который может подтвердить/отменить/редактировать заказ
	ShippingService string
	TrackingNumber  sql.NullString
	FullName        sql.NullString
	Phone           sql.NullString
	Address         sql.NullString
}

// OrderItem - снимок позиции корзины на момент оформления.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Name      string
	Size      string
	Quantity  int
	Price     int64
}

// PaymentCard - пара "карта для перевода - ответственный админ".
type PaymentCard struct {
	Card    string
	AdminID int64
}
