package models

import (
	"database/sql"
	"strings"
)

// Product - товар каталога. Цена в рублях (целое число).
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       int64
	Photo       string // file_id фотографии в Telegram
	Stock       sql.NullInt64
	Sizes       string // Размеры через запятую, пустая строка - товар без размера
}

// SizeList возвращает непустые размеры товара.
func (p Product) SizeList() []string {
	var sizes []string
	for _, s := range strings.Split(p.Sizes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sizes = append(sizes, s)
		}
	}
	return sizes
}

// CartLine - строка корзины вместе с текущими данными товара.
type CartLine struct {
	ProductID int64
	Name      string
	Size      string
	Quantity  int
	Price     int64
}

// Sum - стоимость строки по текущей цене.
func (l CartLine) Sum() int64 {
	return int64(l.Quantity) * l.Price
}
