package promo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/M0nstr1k/ds/internal/models"
)

var (
	ErrNotFound   = errors.New("промокод не найден")
	ErrExhausted  = errors.New("промокод больше не доступен")
	ErrExpired    = errors.New("срок действия промокода истек")
	ErrBadPercent = errors.New("процент скидки должен быть от 0 до 100")
	ErrBadCode    = errors.New("пустой код промокода")
)

// Repository - хранилище промокодов. Отсутствие кода - sql.ErrNoRows.
type Repository interface {
	GetPromo(ctx context.Context, code string) (models.PromoCode, error)
	// SavePromo вставляет или полностью заменяет промокод (счетчик использований сбрасывается).
	SavePromo(ctx context.Context, p models.PromoCode) error
	DeletePromo(ctx context.Context, code string) (bool, error)
	ListPromos(ctx context.Context) ([]models.PromoCode, error)
	IncrementPromoUse(ctx context.Context, code string) error
}

// Engine применяет процентные скидки и выпускает реферальные промокоды.
type Engine struct {
	repo Repository
	now  func() time.Time

	randMu sync.Mutex
	rnd    *rand.Rand
}

// Option настраивает Engine.
type Option func(*Engine)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand подменяет генератор случайных кодов.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rnd = r }
}

func NewEngine(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo: repo,
		now:  time.Now,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check возвращает промокод, если он сейчас действует, или причину, по которой он не действует.
func (e *Engine) Check(ctx context.Context, code string) (models.PromoCode, error) {
	p, err := e.repo.GetPromo(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PromoCode{}, ErrNotFound
	}
	if err != nil {
		return models.PromoCode{}, fmt.Errorf("получение промокода %q: %w", code, err)
	}
	if p.Exhausted() {
		return p, ErrExhausted
	}
	if p.Expired(e.now()) {
		return p, ErrExpired
	}
	return p, nil
}

// Apply возвращает сумму со скидкой и размер скидки.
// Без кода, с неизвестным, исчерпанным или просроченным кодом скидка равна 0.
func (e *Engine) Apply(ctx context.Context, total int64, code string) (int64, int64, error) {
	if code == "" {
		return total, 0, nil
	}
	p, err := e.Check(ctx, code)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExhausted), errors.Is(err, ErrExpired):
		return total, 0, nil
	case err != nil:
		return total, 0, err
	}
	discount := total * int64(p.Percent) / 100
	return total - discount, discount, nil
}

// Increment засчитывает одно использование промокода.
func (e *Engine) Increment(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}
	if err := e.repo.IncrementPromoUse(ctx, code); err != nil {
		return fmt.Errorf("учет использования промокода %q: %w", code, err)
	}
	return nil
}

// Save создает или заменяет промокод. limit == 0 - без ограничений, days == 0 - бессрочный.
func (e *Engine) Save(ctx context.Context, code string, percent, limit, days int) (models.PromoCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.PromoCode{}, ErrBadCode
	}
	if percent < 0 || percent > 100 {
		return models.PromoCode{}, ErrBadPercent
	}
	p := models.PromoCode{Code: code, Percent: percent}
	if limit > 0 {
		p.UsageLimit = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	if days > 0 {
		p.ExpiresAt = sql.NullTime{Time: e.now().AddDate(0, 0, days), Valid: true}
	}
	if err := e.repo.SavePromo(ctx, p); err != nil {
		return models.PromoCode{}, fmt.Errorf("сохранение промокода %q: %w", code, err)
	}
	return p, nil
}

func (e *Engine) Delete(ctx context.Context, code string) error {
	ok, err := e.repo.DeletePromo(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("удаление промокода %q: %w", code, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (e *Engine) List(ctx context.Context) ([]models.PromoCode, error) {
	return e.repo.ListPromos(ctx)
}

// MintReferral выпускает одноразовый промокод REFxxxxxx на percent процентов сроком на days дней.
func (e *Engine) MintReferral(ctx context.Context, percent, days int) (models.PromoCode, error) {
	if percent > 100 {
		percent = 100
	}
	var code string
	for {
		code = fmt.Sprintf("REF%06d", e.randomSuffix())
		_, err := e.repo.GetPromo(ctx, code)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return models.PromoCode{}, fmt.Errorf("проверка кода %s: %w", code, err)
		}
	}
	return e.Save(ctx, code, percent, 1, days)
}

func (e *Engine) randomSuffix() int {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return 100000 + e.rnd.Intn(900000)
}
