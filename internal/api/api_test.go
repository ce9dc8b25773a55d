package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/M0nstr1k/ds/internal/cart"
	"github.com/M0nstr1k/ds/internal/catalog"
	"github.com/M0nstr1k/ds/internal/config"
	"github.com/M0nstr1k/ds/internal/memstore"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/orders"
	"github.com/M0nstr1k/ds/internal/promo"
	"github.com/M0nstr1k/ds/internal/reports"
	"github.com/M0nstr1k/ds/internal/session"
	"github.com/M0nstr1k/ds/internal/users"
)

const (
	testToken   = "123456:TEST-TOKEN"
	testAdminID = int64(900)
	testUserID  = int64(100)
)

type fakePinger struct{ err error }

func (p fakePinger) Ping() error { return p.err }

type testServer struct {
	handler  http.Handler
	store    *memstore.Store
	ledger   *cart.Ledger
	sessions *session.SessionManager
	registry *users.Registry
}

func newTestServer(t *testing.T, pinger Pinger) *testServer {
	t.Helper()
	store := memstore.New()
	cfg := &config.Config{
		TelegramToken: testToken,
		BotUsername:   "shop_bot",
		AdminIDs:      []int64{testAdminID},
		Cards:         []models.PaymentCard{{Card: "2200 0000 0000 0001", AdminID: testAdminID}},
	}
	ledger := cart.NewLedger(store)
	promos := promo.NewEngine(store)
	sessions := session.NewSessionManager()
	registry := users.NewRegistry(store, promos, cfg.BotUsername, 5, 30)
	handler := NewRouter(ApiDependencies{
		Config:   cfg,
		Catalog:  catalog.New(store),
		Orders:   orders.NewLifecycle(store, ledger, promos, cfg.Cards),
		Users:    registry,
		Sessions: sessions,
		Store:    pinger,
	})
	return &testServer{handler: handler, store: store, ledger: ledger, sessions: sessions, registry: registry}
}

// initData подписывает данные WebApp так же, как это делает Telegram.
func initData(token string, userID int64) string {
	q := url.Values{}
	q.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	q.Set("query_id", "AAH")
	q.Set("user", fmt.Sprintf(`{"id":%d,"first_name":"Test","username":"tester%d"}`, userID, userID))
	q.Set("hash", signInitData(q, token))
	return q.Encode()
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, path, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("X-Telegram-Auth", auth)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, fakePinger{})
	rr := s.do(t, "/api/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "success", decode(t, rr, nil).Status)
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))

	down := newTestServer(t, fakePinger{err: errors.New("connection refused")})
	rr = down.do(t, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "error", decode(t, rr, nil).Status)
}

func TestRequestIDIsKept(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, "req-42", rr.Header().Get(middleware.RequestIDHeader))
}

func TestCatalog(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.store.CreateProduct(context.Background(), models.Product{
		Name: "Футболка", Description: "Хлопок", Price: 1500, Sizes: "S, M",
		Stock: sql.NullInt64{Int64: 3, Valid: true},
	})
	require.NoError(t, err)
	_, err = s.store.CreateProduct(context.Background(), models.Product{Name: "Кепка", Price: 700, Photo: "file"})
	require.NoError(t, err)

	var products []productView
	rr := s.do(t, "/api/catalog", "")
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &products)
	require.Len(t, products, 2)

	byName := map[string]productView{}
	for _, p := range products {
		byName[p.Name] = p
	}
	assert.Equal(t, []string{"S", "M"}, byName["Футболка"].Sizes)
	require.NotNil(t, byName["Футболка"].Stock)
	assert.Equal(t, int64(3), *byName["Футболка"].Stock)
	assert.Empty(t, byName["Кепка"].Sizes)
	assert.Nil(t, byName["Кепка"].Stock)
	assert.True(t, byName["Кепка"].HasPhoto)
}

func TestUserRoutesRequireValidInitData(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		auth string
	}{
		{"no header", ""},
		{"wrong token", initData("other:TOKEN", testUserID)},
		{"garbage", "hash=deadbeef&user=%7B%22id%22%3A1%7D"},
		{"no user", "auth_date=1&hash=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, "/api/user/orders", tt.auth)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestValidInitDataRegistersUser(t *testing.T) {
	s := newTestServer(t, nil)
	rr := s.do(t, "/api/user/orders", initData(testToken, testUserID))
	require.Equal(t, http.StatusOK, rr.Code)

	var list []orderView
	decode(t, rr, &list)
	assert.Empty(t, list)

	user, err := s.registry.Get(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, "tester100", user.Username.String)
}

func TestBannedUserIsForbidden(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, s.do(t, "/api/user/cart", initData(testToken, testUserID)).Code)
	require.NoError(t, s.registry.Ban(context.Background(), testUserID))

	rr := s.do(t, "/api/user/cart", initData(testToken, testUserID))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestUserCart(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()
	auth := initData(testToken, testUserID)

	var empty cartView
	rr := s.do(t, "/api/user/cart", auth)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &empty)
	assert.Empty(t, empty.Lines)

	pid, err := s.store.CreateProduct(ctx, models.Product{Name: "Худи", Price: 1000, Sizes: "L"})
	require.NoError(t, err)
	_, err = s.ledger.AddOrIncrement(ctx, testUserID, pid, "L")
	require.NoError(t, err)
	_, err = s.ledger.AddOrIncrement(ctx, testUserID, pid, "L")
	require.NoError(t, err)
	require.NoError(t, s.store.SavePromo(ctx, models.PromoCode{Code: "SALE10", Percent: 10}))
	s.sessions.SetPromo(testUserID, "SALE10")

	var view cartView
	rr = s.do(t, "/api/user/cart", auth)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &view)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, "L", view.Lines[0].Size)
	assert.Equal(t, int64(2000), view.Total)
	assert.Equal(t, int64(200), view.Discount)
	assert.Equal(t, int64(1800), view.Discounted)
	assert.Equal(t, "SALE10", view.Promo)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()
	_, err := s.store.CreateOrder(ctx, models.Order{
		UserID: testUserID, Total: 1800, Status: models.StatusPaid,
		AdminID: testAdminID, ShippingService: "СДЭК",
	})
	require.NoError(t, err)

	userAuth := initData(testToken, testUserID)
	assert.Equal(t, http.StatusForbidden, s.do(t, "/api/admin/stats", userAuth).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, "/api/admin/orders/export", userAuth).Code)

	adminAuth := initData(testToken, testAdminID)
	var stats statsView
	rr := s.do(t, "/api/admin/stats", adminAuth)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &stats)
	assert.Equal(t, 1, stats.OrdersCount)
	assert.Equal(t, int64(1800), stats.Revenue)
	require.Len(t, stats.LastOrders, 1)
	assert.Equal(t, "paid", stats.LastOrders[0].Status)

	rr = s.do(t, "/api/admin/orders/export", adminAuth)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, xlsxContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")

	book, err := excelize.OpenReader(rr.Body)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(reports.OrdersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[1][0])
}
