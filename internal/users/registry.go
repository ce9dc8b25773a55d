package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/utils"
)

var (
	ErrNotFound     = errors.New("пользователь не найден")
	ErrSelfReferral = errors.New("нельзя пригласить самого себя")
	ErrNoReferrals  = errors.New("у пользователя нет рефералов")
)

// Repository - хранилище пользователей. Отсутствие пользователя - sql.ErrNoRows.
type Repository interface {
	// UpsertUser создает пользователя или обновляет имя. Реферальный код ставится, только если его еще нет.
	UpsertUser(ctx context.Context, p models.Profile, referralCode string) (created bool, err error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	FindUserByReferralCode(ctx context.Context, code string) (models.User, error)
	// SetReferrer ставит пригласившего, только если он еще не задан.
	SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error)
	SetBanned(ctx context.Context, id int64, banned bool) (bool, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	CountUsers(ctx context.Context) (int, error)
	CountReferrals(ctx context.Context, referrerID int64) (int, error)
	// ListReferrers - пользователи, у которых есть хотя бы один реферал, с количеством.
	ListReferrers(ctx context.Context) ([]models.ReferralSummary, error)
}

// Minter выпускает реферальные промокоды.
type Minter interface {
	MintReferral(ctx context.Context, percent, days int) (models.PromoCode, error)
}

// Registry - пользователи, блокировки и реферальная программа.
type Registry struct {
	repo        Repository
	promos      Minter
	botUsername string
	percentPer  int
	promoDays   int
}

func NewRegistry(repo Repository, promos Minter, botUsername string, percentPerReferral, promoDays int) *Registry {
	return &Registry{
		repo:        repo,
		promos:      promos,
		botUsername: botUsername,
		percentPer:  percentPerReferral,
		promoDays:   promoDays,
	}
}

// Register вызывается на каждом /start. Пригласивший запоминается только при первом контакте.
func (r *Registry) Register(ctx context.Context, p models.Profile, startArg string) (models.User, error) {
	created, err := r.repo.UpsertUser(ctx, p, utils.ReferralCode(p.TelegramID))
	if err != nil {
		return models.User{}, fmt.Errorf("регистрация пользователя %d: %w", p.TelegramID, err)
	}
	if created {
		log.Printf("Register: новый пользователь %d", p.TelegramID)
		if code := strings.TrimSpace(startArg); code != "" {
			if err := r.LinkReferrer(ctx, p.TelegramID, code); err != nil {
				log.Printf("Register: реферальный код %q пользователя %d не принят: %v", code, p.TelegramID, err)
			}
		}
	}
	return r.Get(ctx, p.TelegramID)
}

// LinkReferrer связывает пользователя с владельцем кода.
func (r *Registry) LinkReferrer(ctx context.Context, userID int64, code string) error {
	referrer, err := r.repo.FindUserByReferralCode(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("поиск реферального кода: %w", err)
	}
	if referrer.TelegramID == userID {
		return ErrSelfReferral
	}
	ok, err := r.repo.SetReferrer(ctx, userID, referrer.TelegramID)
	if err != nil {
		return fmt.Errorf("сохранение пригласившего: %w", err)
	}
	if ok {
		log.Printf("LinkReferrer: пользователь %d приглашен %d", userID, referrer.TelegramID)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, id int64) (models.User, error) {
	u, err := r.repo.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("получение пользователя %d: %w", id, err)
	}
	return u, nil
}

// IsBanned - неизвестный пользователь не забанен.
func (r *Registry) IsBanned(ctx context.Context, id int64) bool {
	u, err := r.repo.GetUser(ctx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("IsBanned: ошибка получения пользователя %d: %v", id, err)
		}
		return false
	}
	return u.Banned
}

func (r *Registry) Ban(ctx context.Context, id int64) error {
	return r.setBanned(ctx, id, true)
}

func (r *Registry) Unban(ctx context.Context, id int64) error {
	return r.setBanned(ctx, id, false)
}

func (r *Registry) setBanned(ctx context.Context, id int64, banned bool) error {
	ok, err := r.repo.SetBanned(ctx, id, banned)
	if err != nil {
		return fmt.Errorf("блокировка пользователя %d: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	log.Printf("setBanned: пользователь %d banned=%t", id, banned)
	return nil
}

// All - id всех пользователей (для рассылки).
func (r *Registry) All(ctx context.Context) ([]int64, error) {
	return r.repo.ListUserIDs(ctx)
}

func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.repo.CountUsers(ctx)
}

// ReferralInfo - ссылка, число приглашенных и заработанный процент.
func (r *Registry) ReferralInfo(ctx context.Context, userID int64) (models.ReferralSummary, error) {
	u, err := r.Get(ctx, userID)
	if err != nil {
		return models.ReferralSummary{}, err
	}
	count, err := r.repo.CountReferrals(ctx, userID)
	if err != nil {
		return models.ReferralSummary{}, fmt.Errorf("подсчет рефералов %d: %w", userID, err)
	}
	return r.summary(u, count), nil
}

// ClaimDiscount выпускает одноразовый промокод на заработанную скидку.
func (r *Registry) ClaimDiscount(ctx context.Context, userID int64) (models.PromoCode, error) {
	info, err := r.ReferralInfo(ctx, userID)
	if err != nil {
		return models.PromoCode{}, err
	}
	if info.Count == 0 {
		return models.PromoCode{}, ErrNoReferrals
	}
	code, err := r.promos.MintReferral(ctx, info.Percent, r.promoDays)
	if err != nil {
		return models.PromoCode{}, fmt.Errorf("выпуск реферального промокода: %w", err)
	}
	log.Printf("ClaimDiscount: пользователь %d получил промокод %s на %d%%", userID, code.Code, code.Percent)
	return code, nil
}

// Referrals - сводка по всем пригласившим для админа.
func (r *Registry) Referrals(ctx context.Context) ([]models.ReferralSummary, error) {
	rows, err := r.repo.ListReferrers(ctx)
	if err != nil {
		return nil, fmt.Errorf("список пригласивших: %w", err)
	}
	out := make([]models.ReferralSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.summary(row.User, row.Count))
	}
	return out, nil
}

// QR - PNG с реферальной ссылкой пользователя.
func (r *Registry) QR(ctx context.Context, userID int64) ([]byte, error) {
	info, err := r.ReferralInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	if info.Link == "" {
		return nil, fmt.Errorf("имя пользователя бота не настроено")
	}
	return utils.GenerateQRCode(info.Link)
}

func (r *Registry) summary(u models.User, count int) models.ReferralSummary {
	code := utils.ReferralCode(u.TelegramID)
	if u.ReferralCode.Valid && u.ReferralCode.String != "" {
		code = u.ReferralCode.String
	}
	link, err := utils.GenerateReferralLink(r.botUsername, code)
	if err != nil {
		link = ""
	}
	return models.ReferralSummary{
		User:    u,
		Code:    code,
		Link:    link,
		Count:   count,
		Percent: count * r.percentPer,
	}
}
