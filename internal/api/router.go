package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/M0nstr1k/ds/internal/catalog"
	"github.com/M0nstr1k/ds/internal/config"
	"github.com/M0nstr1k/ds/internal/orders"
	"github.com/M0nstr1k/ds/internal/session"
	"github.com/M0nstr1k/ds/internal/users"
)

// Pinger - хранилище, умеющее проверять соединение.
type Pinger interface {
	Ping() error
}

// ApiDependencies содержит зависимости для обработчиков API.
type ApiDependencies struct {
	Config   *config.Config
	Catalog  *catalog.Catalog
	Orders   *orders.Lifecycle
	Users    *users.Registry
	Sessions *session.SessionManager // необязательно: промокод из сессии бота для расчета корзины
	Store    Pinger                  // необязательно: nil - health без проверки БД
}

// NewRouter собирает chi-роутер со всеми middleware и маршрутами API.
func NewRouter(deps ApiDependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Telegram-Auth"},
		ExposedHeaders:   []string{"Link", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	SetupRoutes(r, deps)
	return r
}

// SetupRoutes настраивает все маршруты для API.
func SetupRoutes(r chi.Router, deps ApiDependencies) {
	h := &apiHandler{deps: deps}

	r.Group(func(r chi.Router) {
		r.Get("/api/health", h.Health)
		r.Get("/api/client-config", h.GetClientConfig)
		r.Get("/api/catalog", h.GetCatalog)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Config.TelegramToken, deps.Users))

		// --- Маршруты для обычных пользователей ---
		r.Get("/api/user/cart", h.GetUserCart)
		r.Get("/api/user/orders", h.GetUserOrders)

		// --- Маршруты для админов ---
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(AdminMiddleware(deps.Config))

			r.Get("/stats", h.GetStats)
			r.Get("/orders/export", h.ExportOrders)
		})
	})
}
