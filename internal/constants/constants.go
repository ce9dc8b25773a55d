package constants

import "time"

// Состояния (шаги) диалога
// Conversation steps
const (
	STATE_IDLE = "idle"

	STATE_CATALOG         = "catalog-browse"
	STATE_SUPPORT_MENU    = "support-menu"
	STATE_SUPPORT_COMPOSE = "support-compose"
	STATE_TICKET_CHAT     = "ticket-chat"

	STATE_PROMO_ENTRY = "promo-entry"

	STATE_CHOOSE_SHIPPING = "checkout:choose-shipping"
	STATE_AWAIT_PROOF     = "checkout:await-payment-proof"
	STATE_AWAIT_ADDRESS   = "checkout:await-address"
)

// Админские шаги
// Admin steps
const (
	STATE_PROMO_MENU    = "promo-menu"
	STATE_PROMO_DELETE  = "promo-delete"
	STATE_PROMO_CODE    = "promo-authoring:code"
	STATE_PROMO_PERCENT = "promo-authoring:percent"
	STATE_PROMO_LIMIT   = "promo-authoring:limit"
	STATE_PROMO_EXPIRY  = "promo-authoring:expiry"

	STATE_PRODUCT_PHOTO = "product-authoring:photo"
	STATE_PRODUCT_NAME  = "product-authoring:name"
	STATE_PRODUCT_DESC  = "product-authoring:desc"
	STATE_PRODUCT_PRICE = "product-authoring:price"
	STATE_PRODUCT_STOCK = "product-authoring:stock"
	STATE_PRODUCT_SIZES = "product-authoring:sizes"

	STATE_ORDER_STATUS_EDIT = "order-status-edit"
	STATE_TRACK_INPUT       = "order-status-edit:track"
	STATE_BROADCAST         = "broadcast-compose"
)

// Префиксы и значения callback_data
// Callback data prefixes
const (
	CALLBACK_NOOP         = "noop"
	CALLBACK_CATALOG_PREV = "prev"
	CALLBACK_CATALOG_NEXT = "next"

	CALLBACK_PREFIX_ADD      = "add_"   // add_<productID>
	CALLBACK_PREFIX_ADD_SIZE = "addsz_" // addsz_<productID>_<size>
	CALLBACK_PREFIX_INC      = "inc_"   // inc_<productID>_<size>
	CALLBACK_PREFIX_DEC      = "dec_"   // dec_<productID>_<size>
	CALLBACK_PREFIX_DEL      = "del_"   // del_<productID>_<size>

	CALLBACK_PROMO        = "promo"
	CALLBACK_PAY          = "pay"
	CALLBACK_PREFIX_SHIP  = "svc_"
	CALLBACK_GET_DISCOUNT = "get_discount"
	CALLBACK_REFERRAL_QR  = "referral_qr"

	CALLBACK_PREFIX_CONFIRM_ORDER = "confirm_"
	CALLBACK_PREFIX_CANCEL_ORDER  = "cancel_"
	CALLBACK_PREFIX_PRODUCT_DEL   = "pdel_"
	CALLBACK_PREFIX_ORDER_STATUS  = "ostatus_"
	CALLBACK_PREFIX_SET_STATUS    = "status_"
	CALLBACK_ENTER_TRACK          = "enter_track"
	CALLBACK_PREFIX_ADDRESS       = "addr_" // addr_<orderID>

	CALLBACK_PREFIX_TICKET_USER_OPEN = "uopen_"
	CALLBACK_PREFIX_TICKET_CLAIM     = "topen_"
	CALLBACK_PREFIX_TICKET_CLOSE     = "tclose_"

	CALLBACK_EXPORT_ORDERS    = "export_orders"
	CALLBACK_EXPORT_PROMOS    = "export_promos"
	CALLBACK_EXPORT_REFERRALS = "export_referrals"
)

// Значения status_<статус> для кнопок смены статуса.
// created не предлагается: статусы меняются только вперед, и после подтверждения он уже пройден.
var EditableStatuses = []string{"shipped", "received"}

// Кнопки главного меню
// Main menu buttons
const (
	BTN_CATALOG     = "🛍 Каталог"
	BTN_CART        = "🛒 Корзина"
	BTN_ORDERS      = "📜 Мои заказы"
	BTN_SUPPORT     = "💬 Поддержка"
	BTN_REFERRALS   = "🎁 Рефералы"
	BTN_ADMIN_PANEL = "⚙️ Админ панель"

	BTN_BACK         = "🔙 Назад"
	BTN_ADMIN_BACK   = "🔙 В меню"
	BTN_NEW_TICKET   = "📝 Написать тикет"
	BTN_MY_TICKETS   = "📂 Мои тикеты"
	BTN_PROMO_NEW    = "➕ Новый промокод"
	BTN_PROMO_LIST   = "📃 Список"
	BTN_PROMO_DELETE = "❌ Удалить промокод"
)

// Кнопки админ-панели
// Admin panel buttons
const (
	BTN_ADMIN_ADD_PRODUCT = "➕ Добавить товар"
	BTN_ADMIN_PROMOS      = "🎟 Промокоды"
	BTN_ADMIN_PRODUCTS    = "📝 Товары"
	BTN_ADMIN_ORDERS      = "📦 Заказы"
	BTN_ADMIN_STATS       = "📊 Статистика"
	BTN_ADMIN_BROADCAST   = "📢 Рассылка"
	BTN_ADMIN_TICKETS     = "🎫 Тикеты"
	BTN_ADMIN_REFERRALS   = "👥 Рефералы"
	BTN_ADMIN_STATUSES    = "🚚 Статус заказов"
	BTN_ADMIN_EXPORT      = "📥 Выгрузка заказов"
)

// Службы доставки: значение callback_data -> название
var ShippingServices = map[string]string{
	CALLBACK_PREFIX_SHIP + "boxberry": "Боксберри",
	CALLBACK_PREFIX_SHIP + "sdek":     "СДЭК",
	CALLBACK_PREFIX_SHIP + "post":     "Почта РФ",
}

// ShippingOrder - порядок кнопок выбора доставки.
var ShippingOrder = []string{
	CALLBACK_PREFIX_SHIP + "boxberry",
	CALLBACK_PREFIX_SHIP + "sdek",
	CALLBACK_PREFIX_SHIP + "post",
}

// StatusDisplayMap - подписи статусов заказа.
var StatusDisplayMap = map[string]string{
	"waiting":  "⏳ Ожидает оплаты",
	"paid":     "💳 Оплачен, на проверке",
	"created":  "📦 Создан",
	"shipped":  "🚚 Отправлен",
	"received": "✅ Получен",
	"canceled": "❌ Отменен",
}

const (
	// CurrencySuffix - подпись валюты в сообщениях.
	CurrencySuffix = "руб."

	OrderHistoryLimit  = 5
	UserTicketsLimit   = 5
	AdminOrdersLimit   = 10
	AdminStatusesLimit = 20
	StatsLastOrders    = 10

	// HandlerTimeout ограничивает обработку одного обновления.
	HandlerTimeout = 30 * time.Second
)

// DateTimeLayout - формат даты в списках.
const DateTimeLayout = "2006-01-02 15:04"
