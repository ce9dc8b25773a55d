package session

import (
	"database/sql"

	"github.com/M0nstr1k/ds/internal/constants"
)

// Step - шаг диалога. Каждый вариант несет ровно те данные, которые нужны этому шагу.
// Step is a conversation step; each variant carries exactly its own scratch data.
type Step interface {
	State() string
}

// Role участника переписки по тикету.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type CatalogBrowse struct{ Index int }

type SupportMenu struct{}

type SupportCompose struct{}

// TicketChat - живая переписка по тикету. PartnerID == 0 - собеседник еще не подключился.
type TicketChat struct {
	Role      Role
	TicketID  int64
	PartnerID int64
	seq       uint64 // порядок подключения, последний подключившийся админ выигрывает
}

type PromoEntry struct{}

// ChooseShipping хранит итог, посчитанный в корзине, до выбора службы доставки.
type ChooseShipping struct {
	Total int64
	Promo string
}

type AwaitProof struct{ OrderID int64 }

type AwaitAddress struct{ OrderID int64 }

type PromoMenu struct{}

type PromoDelete struct{}

type PromoCodeInput struct{}

type PromoPercentInput struct{ Code string }

type PromoLimitInput struct {
	Code    string
	Percent int
}

type PromoExpiryInput struct {
	Code    string
	Percent int
	Limit   sql.NullInt64
}

type ProductPhotoInput struct{}

type ProductNameInput struct{ Photo string }

type ProductDescInput struct {
	Photo string
	Name  string
}

type ProductPriceInput struct {
	Photo string
	Name  string
	Desc  string
}

type ProductStockInput struct {
	Photo string
	Name  string
	Desc  string
	Price int64
}

type ProductSizesInput struct {
	Photo string
	Name  string
	Desc  string
	Price int64
	Stock int64
}

type OrderStatusEdit struct{ OrderID int64 }

type TrackInput struct{ OrderID int64 }

type BroadcastCompose struct{}

func (CatalogBrowse) State() string     { return constants.STATE_CATALOG }
func (SupportMenu) State() string       { return constants.STATE_SUPPORT_MENU }
func (SupportCompose) State() string    { return constants.STATE_SUPPORT_COMPOSE }
func (TicketChat) State() string        { return constants.STATE_TICKET_CHAT }
func (PromoEntry) State() string        { return constants.STATE_PROMO_ENTRY }
func (ChooseShipping) State() string    { return constants.STATE_CHOOSE_SHIPPING }
func (AwaitProof) State() string        { return constants.STATE_AWAIT_PROOF }
func (AwaitAddress) State() string      { return constants.STATE_AWAIT_ADDRESS }
func (PromoMenu) State() string         { return constants.STATE_PROMO_MENU }
func (PromoDelete) State() string       { return constants.STATE_PROMO_DELETE }
func (PromoCodeInput) State() string    { return constants.STATE_PROMO_CODE }
func (PromoPercentInput) State() string { return constants.STATE_PROMO_PERCENT }
func (PromoLimitInput) State() string   { return constants.STATE_PROMO_LIMIT }
func (PromoExpiryInput) State() string  { return constants.STATE_PROMO_EXPIRY }
func (ProductPhotoInput) State() string { return constants.STATE_PRODUCT_PHOTO }
func (ProductNameInput) State() string  { return constants.STATE_PRODUCT_NAME }
func (ProductDescInput) State() string  { return constants.STATE_PRODUCT_DESC }
func (ProductPriceInput) State() string { return constants.STATE_PRODUCT_PRICE }
func (ProductStockInput) State() string { return constants.STATE_PRODUCT_STOCK }
func (ProductSizesInput) State() string { return constants.STATE_PRODUCT_SIZES }
func (OrderStatusEdit) State() string   { return constants.STATE_ORDER_STATUS_EDIT }
func (TrackInput) State() string        { return constants.STATE_TRACK_INPUT }
func (BroadcastCompose) State() string  { return constants.STATE_BROADCAST }

// StateOf возвращает тег шага, для nil - STATE_IDLE.
func StateOf(step Step) string {
	if step == nil {
		return constants.STATE_IDLE
	}
	return step.State()
}
