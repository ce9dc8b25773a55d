package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/M0nstr1k/ds/internal/constants"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/promo"
	"github.com/M0nstr1k/ds/internal/utils"
)

var (
	ErrNotFound       = errors.New("заказ не найден")
	ErrNotOwner       = errors.New("заказ закреплен за другим администратором")
	ErrBadTransition  = errors.New("недопустимая смена статуса заказа")
	ErrEmptyCart      = errors.New("корзина пуста")
	ErrAddressFormat  = errors.New("нужно минимум три строки: ФИО, телефон, адрес")
	ErrPromoInvalid   = errors.New("промокод недействителен")
	ErrUnknownCarrier = errors.New("неизвестная служба доставки")
	ErrNoPaymentCards = errors.New("не настроены карты для оплаты")
	ErrEmptyTracking  = errors.New("пустой трек-номер")
)

// Repository - хранилище заказов. Отсутствие заказа - sql.ErrNoRows.
type Repository interface {
	CreateOrder(ctx context.Context, o models.Order) (int64, error)
	AddOrderItem(ctx context.Context, item models.OrderItem) error
	GetOrder(ctx context.Context, id int64) (models.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	// UpdateOrderStatus меняет статус, только если текущий равен from. false - статус уже другой.
	UpdateOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus) (bool, error)
	UpdateOrderTracking(ctx context.Context, id int64, tracking string) error
	UpdateOrderRecipient(ctx context.Context, id int64, fullName, phone, address string) error
	ListUserOrders(ctx context.Context, userID int64, limit int) ([]models.Order, error)
	// ListRecentOrders - последние заказы, новые первыми. limit <= 0 - все.
	ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error)
	Stats(ctx context.Context, lastOrders int) (models.Stats, error)
}

// Cart - то, что жизненному циклу нужно от корзины.
type Cart interface {
	Items(ctx context.Context, userID int64) ([]models.CartLine, error)
	Clear(ctx context.Context, userID int64) error
}

// Promos - то, что жизненному циклу нужно от промокодов.
type Promos interface {
	Check(ctx context.Context, code string) (models.PromoCode, error)
	Apply(ctx context.Context, total int64, code string) (int64, int64, error)
	Increment(ctx context.Context, code string) error
}

// transitions - единственный источник правды о допустимых переходах.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusWaiting: {models.StatusPaid, models.StatusCanceled},
	models.StatusPaid:    {models.StatusCreated, models.StatusCanceled},
	models.StatusCreated: {models.StatusShipped},
	models.StatusShipped: {models.StatusReceived},
}

// CanTransition сообщает, разрешен ли переход from -> to.
func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Quote - расчет корзины перед оплатой.
type Quote struct {
	Lines      []models.CartLine
	Total      int64
	Discounted int64
	Discount   int64
	Promo      string // Пусто, если промокод не применен
}

// Lifecycle ведет заказ от оформления до получения.
type Lifecycle struct {
	repo   Repository
	cart   Cart
	promos Promos
	cards  []models.PaymentCard

	randMu sync.Mutex
	rnd    *rand.Rand
}

// Option настраивает Lifecycle.
type Option func(*Lifecycle)

// WithRand подменяет генератор для выбора карты.
func WithRand(r *rand.Rand) Option {
	return func(l *Lifecycle) { l.rnd = r }
}

func NewLifecycle(repo Repository, cart Cart, promos Promos, cards []models.PaymentCard, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		repo:   repo,
		cart:   cart,
		promos: promos,
		cards:  cards,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Quote считает корзину по текущим ценам. Недействующий промокод отбрасывается:
// расчет возвращается без скидки вместе с ErrPromoInvalid.
func (l *Lifecycle) Quote(ctx context.Context, userID int64, promoCode string) (Quote, error) {
	lines, err := l.cart.Items(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	if len(lines) == 0 {
		return Quote{}, ErrEmptyCart
	}
	q := Quote{Lines: lines}
	for _, line := range lines {
		q.Total += line.Sum()
	}
	q.Discounted = q.Total

	if promoCode == "" {
		return q, nil
	}
	if _, err := l.promos.Check(ctx, promoCode); err != nil {
		if errors.Is(err, promo.ErrNotFound) || errors.Is(err, promo.ErrExhausted) || errors.Is(err, promo.ErrExpired) {
			return q, ErrPromoInvalid
		}
		return Quote{}, err
	}
	q.Discounted, q.Discount, err = l.promos.Apply(ctx, q.Total, promoCode)
	if err != nil {
		return Quote{}, err
	}
	q.Promo = promoCode
	return q, nil
}

// Checkout создает заказ в статусе waiting: снимок корзины, карта для оплаты и служба доставки.
// Корзина не очищается до получения чека.
func (l *Lifecycle) Checkout(ctx context.Context, userID int64, carrier, promoCode string) (models.Order, error) {
	carrierName, ok := constants.ShippingServices[carrier]
	if !ok {
		return models.Order{}, ErrUnknownCarrier
	}
	if len(l.cards) == 0 {
		return models.Order{}, ErrNoPaymentCards
	}

	q, err := l.Quote(ctx, userID, promoCode)
	if err != nil {
		return models.Order{}, err
	}

	pc := l.pickCard()
	sealed, err := utils.SealCard(pc.Card)
	if err != nil {
		return models.Order{}, fmt.Errorf("шифрование карты: %w", err)
	}

	order := models.Order{
		UserID:          userID,
		Total:           q.Discounted,
		Status:          models.StatusWaiting,
		Card:            sealed,
		AdminID:         pc.AdminID,
		ShippingService: carrierName,
	}
	if q.Promo != "" {
		order.PromoCode = sql.NullString{String: q.Promo, Valid: true}
	}

	order.ID, err = l.repo.CreateOrder(ctx, order)
	if err != nil {
		return models.Order{}, fmt.Errorf("создание заказа: %w", err)
	}
	for _, line := range q.Lines {
		item := models.OrderItem{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Size:      line.Size,
			Quantity:  line.Quantity,
			Price:     line.Price,
		}
		if err := l.repo.AddOrderItem(ctx, item); err != nil {
			return models.Order{}, fmt.Errorf("позиция заказа #%d: %w", order.ID, err)
		}
	}
	log.Printf("Checkout: заказ #%d пользователя %d на %d %s, админ %d", order.ID, userID, order.Total, constants.CurrencySuffix, order.AdminID)
	return l.repo.GetOrder(ctx, order.ID)
}

func (l *Lifecycle) pickCard() models.PaymentCard {
	l.randMu.Lock()
	defer l.randMu.Unlock()
	return l.cards[l.rnd.Intn(len(l.cards))]
}

// CardNumber возвращает номер карты заказа в открытом виде.
func (l *Lifecycle) CardNumber(o models.Order) (string, error) {
	return utils.OpenCard(o.Card)
}

// SubmitProof фиксирует получение чека: waiting -> paid, затем очистка корзины
// и учет использования промокода.
func (l *Lifecycle) SubmitProof(ctx context.Context, userID, orderID int64) (models.Order, error) {
	order, err := l.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.UserID != userID {
		return models.Order{}, ErrNotFound
	}
	if err := l.move(ctx, order, models.StatusPaid); err != nil {
		return models.Order{}, err
	}
	order.Status = models.StatusPaid

	if err := l.cart.Clear(ctx, userID); err != nil {
		log.Printf("SubmitProof: ошибка очистки корзины пользователя %d: %v", userID, err)
	}
	if order.PromoCode.Valid {
		if err := l.promos.Increment(ctx, order.PromoCode.String); err != nil {
			log.Printf("SubmitProof: ошибка учета промокода %s по заказу #%d: %v", order.PromoCode.String, orderID, err)
		}
	}
	return order, nil
}

// Confirm - paid -> created, только назначенным админом.
func (l *Lifecycle) Confirm(ctx context.Context, adminID, orderID int64) (models.Order, error) {
	order, err := l.owned(ctx, adminID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if err := l.move(ctx, order, models.StatusCreated); err != nil {
		return models.Order{}, err
	}
	order.Status = models.StatusCreated
	return order, nil
}

// Cancel отменяет заказ в статусе waiting или paid.
func (l *Lifecycle) Cancel(ctx context.Context, adminID, orderID int64) (models.Order, error) {
	order, err := l.owned(ctx, adminID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if err := l.move(ctx, order, models.StatusCanceled); err != nil {
		return models.Order{}, err
	}
	order.Status = models.StatusCanceled
	return order, nil
}

// SetStatus продвигает заказ по цепочке created -> shipped -> received.
// Повторная установка текущего статуса ничего не меняет.
func (l *Lifecycle) SetStatus(ctx context.Context, adminID, orderID int64, to models.OrderStatus) (models.Order, error) {
	order, err := l.owned(ctx, adminID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.Status == to {
		return order, nil
	}
	if to != models.StatusShipped && to != models.StatusReceived {
		return models.Order{}, ErrBadTransition
	}
	if err := l.move(ctx, order, to); err != nil {
		return models.Order{}, err
	}
	order.Status = to
	return order, nil
}

// SetTracking сохраняет трек-номер.
func (l *Lifecycle) SetTracking(ctx context.Context, adminID, orderID int64, tracking string) (models.Order, error) {
	tracking = strings.TrimSpace(tracking)
	if tracking == "" {
		return models.Order{}, ErrEmptyTracking
	}
	order, err := l.owned(ctx, adminID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if err := l.repo.UpdateOrderTracking(ctx, orderID, tracking); err != nil {
		return models.Order{}, fmt.Errorf("трек-номер заказа #%d: %w", orderID, err)
	}
	order.TrackingNumber = sql.NullString{String: tracking, Valid: true}
	return order, nil
}

// SetRecipient сохраняет данные получателя из сообщения пользователя.
func (l *Lifecycle) SetRecipient(ctx context.Context, userID, orderID int64, text string) (models.Order, error) {
	name, phone, address, err := ParseRecipient(text)
	if err != nil {
		return models.Order{}, err
	}
	order, err := l.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.UserID != userID {
		return models.Order{}, ErrNotFound
	}
	if order.Status == models.StatusCanceled {
		return models.Order{}, ErrBadTransition
	}
	if normalized, ok := utils.NormalizePhoneNumber(phone); ok {
		phone = normalized
	}
	if err := l.repo.UpdateOrderRecipient(ctx, orderID, name, phone, address); err != nil {
		return models.Order{}, fmt.Errorf("данные получателя заказа #%d: %w", orderID, err)
	}
	order.FullName = sql.NullString{String: name, Valid: true}
	order.Phone = sql.NullString{String: phone, Valid: true}
	order.Address = sql.NullString{String: address, Valid: true}
	return order, nil
}

// NeedsRecipient - подтвержденный заказ, для которого покупатель еще не прислал данные доставки.
func NeedsRecipient(o models.Order) bool {
	return o.Status == models.StatusCreated && !o.Address.Valid
}

// ParseRecipient разбирает "ФИО\nТелефон\nАдрес...". Строки адреса склеиваются через пробел.
func ParseRecipient(text string) (name, phone, address string, err error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 3 {
		return "", "", "", ErrAddressFormat
	}
	return lines[0], lines[1], strings.Join(lines[2:], " "), nil
}

func (l *Lifecycle) Get(ctx context.Context, orderID int64) (models.Order, error) {
	order, err := l.repo.GetOrder(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("получение заказа #%d: %w", orderID, err)
	}
	return order, nil
}

func (l *Lifecycle) Items(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return l.repo.ListOrderItems(ctx, orderID)
}

// History - последние заказы пользователя.
func (l *Lifecycle) History(ctx context.Context, userID int64, limit int) ([]models.Order, error) {
	return l.repo.ListUserOrders(ctx, userID, limit)
}

// Recent - последние заказы магазина.
func (l *Lifecycle) Recent(ctx context.Context, limit int) ([]models.Order, error) {
	return l.repo.ListRecentOrders(ctx, limit)
}

func (l *Lifecycle) Stats(ctx context.Context) (models.Stats, error) {
	return l.repo.Stats(ctx, constants.StatsLastOrders)
}

func (l *Lifecycle) owned(ctx context.Context, adminID, orderID int64) (models.Order, error) {
	order, err := l.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.AdminID != adminID {
		return models.Order{}, ErrNotOwner
	}
	return order, nil
}

func (l *Lifecycle) move(ctx context.Context, order models.Order, to models.OrderStatus) error {
	if !CanTransition(order.Status, to) {
		return ErrBadTransition
	}
	ok, err := l.repo.UpdateOrderStatus(ctx, order.ID, order.Status, to)
	if err != nil {
		return fmt.Errorf("статус заказа #%d: %w", order.ID, err)
	}
	if !ok {
		// Статус успели сменить параллельно.
		return ErrBadTransition
	}
	log.Printf("Lifecycle: заказ #%d %s -> %s", order.ID, order.Status, to)
	return nil
}
