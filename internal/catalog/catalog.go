package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/M0nstr1k/ds/internal/models"
)

var (
	ErrNotFound     = errors.New("товар не найден")
	ErrEmpty        = errors.New("каталог пуст")
	ErrUnknownField = errors.New("поле должно быть name, description или price")
	ErrBadPrice     = errors.New("цена должна быть числом")
)

// Repository - хранилище товаров. Отсутствие товара - sql.ErrNoRows.
type Repository interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) (int64, error)
	DeleteProduct(ctx context.Context, id int64) (bool, error)
	UpdateProductName(ctx context.Context, id int64, name string) (bool, error)
	UpdateProductDescription(ctx context.Context, id int64, description string) (bool, error)
	UpdateProductPrice(ctx context.Context, id int64, price int64) (bool, error)
}

// Catalog - витрина товаров и их редактирование администратором.
type Catalog struct {
	repo Repository
}

func New(repo Repository) *Catalog {
	return &Catalog{repo: repo}
}

func (c *Catalog) List(ctx context.Context) ([]models.Product, error) {
	return c.repo.ListProducts(ctx)
}

func (c *Catalog) Get(ctx context.Context, id int64) (models.Product, error) {
	p, err := c.repo.GetProduct(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("получение товара %d: %w", id, err)
	}
	return p, nil
}

// At возвращает товар по позиции в каталоге с переходом по кругу
// и нормализованный индекс.
func (c *Catalog) At(ctx context.Context, index int) (models.Product, int, error) {
	products, err := c.repo.ListProducts(ctx)
	if err != nil {
		return models.Product{}, 0, fmt.Errorf("список товаров: %w", err)
	}
	if len(products) == 0 {
		return models.Product{}, 0, ErrEmpty
	}
	if index < 0 {
		index = len(products) - 1
	}
	if index >= len(products) {
		index = 0
	}
	return products[index], index, nil
}

func (c *Catalog) Create(ctx context.Context, p models.Product) (int64, error) {
	id, err := c.repo.CreateProduct(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("создание товара: %w", err)
	}
	return id, nil
}

func (c *Catalog) Delete(ctx context.Context, id int64) error {
	ok, err := c.repo.DeleteProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("удаление товара %d: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Edit меняет одно поле товара. Разрешены только name, description и price.
func (c *Catalog) Edit(ctx context.Context, id int64, field, value string) error {
	var (
		ok  bool
		err error
	)
	switch field {
	case "name":
		ok, err = c.repo.UpdateProductName(ctx, id, value)
	case "description":
		ok, err = c.repo.UpdateProductDescription(ctx, id, value)
	case "price":
		price, perr := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if perr != nil || price < 0 {
			return ErrBadPrice
		}
		ok, err = c.repo.UpdateProductPrice(ctx, id, price)
	default:
		return ErrUnknownField
	}
	if err != nil {
		return fmt.Errorf("изменение товара %d (%s): %w", id, field, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
