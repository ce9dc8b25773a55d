package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/orders"
	"github.com/M0nstr1k/ds/internal/utils"
)

const userOrdersLimit = 20

// jsonResponse - вспомогательная структура для стандартного ответа API
type jsonResponse struct {
	Status  string      `json:"status"` // "success" или "error"
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// apiHandler держит зависимости, общие для всех маршрутов.
type apiHandler struct {
	deps ApiDependencies
}

type productView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Sizes       []string `json:"sizes"`
	Stock       *int64   `json:"stock,omitempty"`
	HasPhoto    bool     `json:"has_photo"`
}

type cartLineView struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	Sum       int64  `json:"sum"`
}

type cartView struct {
	Lines      []cartLineView `json:"lines"`
	Total      int64          `json:"total"`
	Discount   int64          `json:"discount"`
	Discounted int64          `json:"discounted"`
	Promo      string         `json:"promo,omitempty"`
}

type orderView struct {
	ID              int64     `json:"id"`
	Total           int64     `json:"total"`
	Status          string    `json:"status"`
	StatusDisplay   string    `json:"status_display"`
	PromoCode       string    `json:"promo_code,omitempty"`
	ShippingService string    `json:"shipping_service"`
	TrackingNumber  string    `json:"tracking_number,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(jsonResponse{Status: "error", Message: message})
}

func writeJSONSuccess(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonResponse{Status: "success", Message: message, Data: data})
}

// Health отвечает ok, если хранилище доступно.
func (h *apiHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store != nil {
		if err := h.deps.Store.Ping(); err != nil {
			log.Printf("Health: база данных недоступна: %v", err)
			writeJSONError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}
	writeJSONSuccess(w, "ok", nil)
}

// GetClientConfig отдает WebApp имя бота.
func (h *apiHandler) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"telegramBotUsername": h.deps.Config.BotUsername,
	}
	writeJSONSuccess(w, "Config retrieved", response)
}

// GetCatalog - публичный список товаров.
func (h *apiHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	products, err := h.deps.Catalog.List(r.Context())
	if err != nil {
		log.Printf("GetCatalog: ошибка получения каталога: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load catalog")
		return
	}
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p))
	}
	writeJSONSuccess(w, "Catalog retrieved", views)
}

func newProductView(p models.Product) productView {
	v := productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Sizes:       p.SizeList(),
		HasPhoto:    p.Photo != "",
	}
	if v.Sizes == nil {
		v.Sizes = []string{}
	}
	if p.Stock.Valid {
		stock := p.Stock.Int64
		v.Stock = &stock
	}
	return v
}

// GetUserCart - корзина текущего пользователя с учетом промокода из сессии бота.
func (h *apiHandler) GetUserCart(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}

	var promoCode string
	if h.deps.Sessions != nil {
		promoCode = h.deps.Sessions.Get(user.TelegramID).Promo
	}

	view := cartView{Lines: []cartLineView{}}
	quote, err := h.deps.Orders.Quote(r.Context(), user.TelegramID, promoCode)
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		writeJSONSuccess(w, "Cart is empty", view)
		return
	case err != nil && !errors.Is(err, orders.ErrPromoInvalid):
		log.Printf("GetUserCart: ошибка расчета корзины пользователя %d: %v", user.TelegramID, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load cart")
		return
	}

	for _, line := range quote.Lines {
		view.Lines = append(view.Lines, cartLineView{
			ProductID: line.ProductID,
			Name:      line.Name,
			Size:      line.Size,
			Quantity:  line.Quantity,
			Price:     line.Price,
			Sum:       line.Sum(),
		})
	}
	view.Total = quote.Total
	view.Discount = quote.Discount
	view.Discounted = quote.Discounted
	view.Promo = quote.Promo
	writeJSONSuccess(w, "Cart retrieved", view)
}

// GetUserOrders - последние заказы текущего пользователя.
func (h *apiHandler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}

	history, err := h.deps.Orders.History(r.Context(), user.TelegramID, userOrdersLimit)
	if err != nil {
		log.Printf("GetUserOrders: ошибка получения заказов пользователя %d: %v", user.TelegramID, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load orders")
		return
	}
	views := make([]orderView, 0, len(history))
	for _, o := range history {
		views = append(views, newOrderView(o))
	}
	writeJSONSuccess(w, "Orders retrieved", views)
}

func newOrderView(o models.Order) orderView {
	return orderView{
		ID:              o.ID,
		Total:           o.Total,
		Status:          string(o.Status),
		StatusDisplay:   utils.StatusDisplay(o.Status),
		PromoCode:       o.PromoCode.String,
		ShippingService: o.ShippingService,
		TrackingNumber:  o.TrackingNumber.String,
		CreatedAt:       o.CreatedAt,
	}
}
