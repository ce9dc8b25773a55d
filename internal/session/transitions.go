package session

import "github.com/M0nstr1k/ds/internal/constants"

// EventKind - тип входящего события.
type EventKind int

const (
	EventText EventKind = iota + 1
	EventPhoto
	EventButton
)

// Verdict - решение таблицы переходов для пары (шаг, событие).
type Verdict int

const (
	// Global - событие уходит в общий роутинг (меню, команды, кнопки).
	Global Verdict = iota
	// Handle - событие обрабатывает только текущий шаг.
	Handle
	// HandleOrGlobal - шаг пробует обработать событие, иначе общий роутинг.
	HandleOrGlobal
	// Reprompt - событие не подходит шагу: повторяем подсказку и остаемся в шаге.
	Reprompt
	// Back - зарезервированная кнопка "назад" в шаге, который ее поддерживает.
	Back
)

type rule struct {
	text   Verdict
	photo  Verdict
	button Verdict
	back   bool
}

// Таблица переходов: шаг x тип события.
// Шаги, которых нет в таблице, ведут себя как отсутствие шага.
var transitions = map[string]rule{
	constants.STATE_CATALOG:         {text: Global, photo: Global, button: Global},
	constants.STATE_SUPPORT_MENU:    {text: HandleOrGlobal, photo: Global, button: Global, back: true},
	constants.STATE_SUPPORT_COMPOSE: {text: Handle, photo: Reprompt, button: Global, back: true},
	constants.STATE_TICKET_CHAT:     {text: Handle, photo: Reprompt, button: Global, back: true},
	constants.STATE_PROMO_ENTRY:     {text: Handle, photo: Reprompt, button: Global, back: true},

	constants.STATE_CHOOSE_SHIPPING: {text: Global, photo: Global, button: Handle},
	constants.STATE_AWAIT_PROOF:     {text: Reprompt, photo: Handle, button: Global, back: true},
	constants.STATE_AWAIT_ADDRESS:   {text: Handle, photo: Reprompt, button: Reprompt},

	constants.STATE_PROMO_MENU:    {text: HandleOrGlobal, photo: Global, button: Global, back: true},
	constants.STATE_PROMO_DELETE:  {text: Handle, photo: Reprompt, button: Global, back: true},
	constants.STATE_PROMO_CODE:    {text: Handle, photo: Reprompt, button: Global, back: true},
	constants.STATE_PROMO_PERCENT: {text: Handle, photo: Reprompt, button: Global, back: true},
	constants.STATE_PROMO_LIMIT:   {text: Handle, photo: Reprompt, button: Global, back: true},
	constants.STATE_PROMO_EXPIRY:  {text: Handle, photo: Reprompt, button: Global, back: true},

	constants.STATE_PRODUCT_PHOTO: {text: Reprompt, photo: Handle, button: Global, back: true},
	constants.STATE_PRODUCT_NAME:  {text: Handle, photo: Reprompt, button: Global, back: true},
	constants.STATE_PRODUCT_DESC:  {text: Handle, photo: Reprompt, button: Global, back: true},
	constants.STATE_PRODUCT_PRICE: {text: Handle, photo: Reprompt, button: Global, back: true},
	constants.STATE_PRODUCT_STOCK: {text: Handle, photo: Reprompt, button: Global, back: true},
	constants.STATE_PRODUCT_SIZES: {text: Handle, photo: Reprompt, button: Global, back: true},

	constants.STATE_ORDER_STATUS_EDIT: {text: Global, photo: Global, button: Handle},
	constants.STATE_TRACK_INPUT:       {text: Handle, photo: Reprompt, button: Global, back: true},
	constants.STATE_BROADCAST:         {text: Handle, photo: Reprompt, button: Global, back: true},
}

// IsBackTrigger сообщает, является ли текст зарезервированной кнопкой "назад".
func IsBackTrigger(text string) bool {
	return text == constants.BTN_BACK || text == constants.BTN_ADMIN_BACK
}

// Route решает, кто обрабатывает событие kind с текстом text в шаге step.
// Route decides who handles an event of the given kind while step is active.
func Route(step Step, kind EventKind, text string) Verdict {
	if step == nil {
		return Global
	}
	r, ok := transitions[step.State()]
	if !ok {
		return Global
	}
	switch kind {
	case EventText:
		if r.back && IsBackTrigger(text) {
			return Back
		}
		return r.text
	case EventPhoto:
		return r.photo
	case EventButton:
		return r.button
	}
	return Global
}
