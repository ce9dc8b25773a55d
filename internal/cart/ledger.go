package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/M0nstr1k/ds/internal/models"
)

var ErrProductNotFound = errors.New("товар не найден")

// Repository - строки корзин. Строка с количеством 0 не хранится.
type Repository interface {
	GetCartQuantity(ctx context.Context, userID, productID int64, size string) (int, error)
	SetCartQuantity(ctx context.Context, userID, productID int64, size string, qty int) error
	DeleteCartItem(ctx context.Context, userID, productID int64, size string) error
	// ListCartLines возвращает строки в порядке добавления вместе с текущими ценами товаров.
	ListCartLines(ctx context.Context, userID int64) ([]models.CartLine, error)
	ClearCart(ctx context.Context, userID int64) error
	GetProduct(ctx context.Context, id int64) (models.Product, error)
}

// Ledger - общая для всех чатов книга корзин.
// Изменения корзины одного пользователя выполняются последовательно.
type Ledger struct {
	repo Repository

	mu    sync.Mutex
	locks map[int64]*sync.Mutex // Ключ: userID
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, locks: make(map[int64]*sync.Mutex)}
}

func (l *Ledger) lock(userID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// AddOrIncrement добавляет товар в корзину или увеличивает количество на 1.
func (l *Ledger) AddOrIncrement(ctx context.Context, userID, productID int64, size string) (int, error) {
	if _, err := l.repo.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("проверка товара %d: %w", productID, err)
	}

	defer l.lock(userID)()
	qty, err := l.repo.GetCartQuantity(ctx, userID, productID, size)
	if err != nil {
		return 0, fmt.Errorf("количество в корзине: %w", err)
	}
	qty++
	if err := l.repo.SetCartQuantity(ctx, userID, productID, size, qty); err != nil {
		return 0, fmt.Errorf("обновление корзины: %w", err)
	}
	return qty, nil
}

// Decrement уменьшает количество на 1; строка с количеством 1 удаляется.
// Отсутствующая строка - не ошибка.
func (l *Ledger) Decrement(ctx context.Context, userID, productID int64, size string) (int, error) {
	defer l.lock(userID)()
	qty, err := l.repo.GetCartQuantity(ctx, userID, productID, size)
	if err != nil {
		return 0, fmt.Errorf("количество в корзине: %w", err)
	}
	if qty == 0 {
		return 0, nil
	}
	if qty <= 1 {
		if err := l.repo.DeleteCartItem(ctx, userID, productID, size); err != nil {
			return 0, fmt.Errorf("удаление из корзины: %w", err)
		}
		return 0, nil
	}
	if err := l.repo.SetCartQuantity(ctx, userID, productID, size, qty-1); err != nil {
		return 0, fmt.Errorf("обновление корзины: %w", err)
	}
	return qty - 1, nil
}

// SetQuantity задает количество; qty <= 0 удаляет строку.
func (l *Ledger) SetQuantity(ctx context.Context, userID, productID int64, size string, qty int) error {
	defer l.lock(userID)()
	if qty <= 0 {
		if err := l.repo.DeleteCartItem(ctx, userID, productID, size); err != nil {
			return fmt.Errorf("удаление из корзины: %w", err)
		}
		return nil
	}
	if err := l.repo.SetCartQuantity(ctx, userID, productID, size, qty); err != nil {
		return fmt.Errorf("обновление корзины: %w", err)
	}
	return nil
}

// Items возвращает строки корзины по текущим ценам.
func (l *Ledger) Items(ctx context.Context, userID int64) ([]models.CartLine, error) {
	lines, err := l.repo.ListCartLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("строки корзины: %w", err)
	}
	return lines, nil
}

// Total всегда пересчитывается из текущих строк и цен.
func (l *Ledger) Total(ctx context.Context, userID int64) (int64, error) {
	lines, err := l.Items(ctx, userID)
	if err != nil {
		return 0, err
	}
	return Sum(lines), nil
}

func (l *Ledger) Clear(ctx context.Context, userID int64) error {
	defer l.lock(userID)()
	if err := l.repo.ClearCart(ctx, userID); err != nil {
		return fmt.Errorf("очистка корзины: %w", err)
	}
	return nil
}

// Sum - сумма строк по цене и количеству.
func Sum(lines []models.CartLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.Sum()
	}
	return total
}
