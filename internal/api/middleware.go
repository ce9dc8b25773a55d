package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/M0nstr1k/ds/internal/config"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/users"
)

// UserContextKey - ключ для сохранения пользователя в контексте запроса.
var UserContextKey = &contextKey{"User"}

type contextKey struct {
	name string
}

// userFromContext достает пользователя, положенного AuthMiddleware.
func userFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(models.User)
	return user, ok
}

// RequestIDMiddleware выдает запросу UUID, если клиент не прислал свой X-Request-Id.
// middleware.RequestID дальше берет его из заголовка.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(middleware.RequestIDHeader, id)
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware проверяет заголовок X-Telegram-Auth с initData и регистрирует пользователя.
func AuthMiddleware(botToken string, registry *users.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("X-Telegram-Auth")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized: Missing X-Telegram-Auth header")
				return
			}

			isValid, userData, err := validateInitData(authHeader, botToken)
			if err != nil || !isValid {
				log.Printf("AuthMiddleware: неверный initData: %v", err)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized: Invalid initData")
				return
			}

			user, err := registry.Register(r.Context(), models.Profile{
				TelegramID: userData.ID,
				Username:   userData.Username,
				FirstName:  userData.FirstName,
				LastName:   userData.LastName,
			}, "")
			if err != nil {
				log.Printf("AuthMiddleware: ошибка регистрации пользователя %d: %v", userData.ID, err)
				writeJSONError(w, http.StatusInternalServerError, "Failed to load user")
				return
			}
			if user.Banned {
				writeJSONError(w, http.StatusForbidden, "Forbidden: User is banned")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminMiddleware пропускает только пользователей из ADMIN_IDS.
func AdminMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusForbidden, "Forbidden: User data not found in context")
				return
			}
			if !cfg.IsAdmin(user.TelegramID) {
				writeJSONError(w, http.StatusForbidden, "Forbidden: Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Структура для парсинга JSON из initData
type telegramUserData struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// validateInitData проверяет подпись данных, которые Telegram передает в WebApp.
func validateInitData(initData, botToken string) (bool, telegramUserData, error) {
	var userData telegramUserData

	q, err := url.ParseQuery(initData)
	if err != nil {
		return false, userData, fmt.Errorf("failed to parse initData: %w", err)
	}

	hash := q.Get("hash")
	if hash == "" {
		return false, userData, fmt.Errorf("hash is not present in initData")
	}

	userJSON := q.Get("user")
	if userJSON == "" {
		return false, userData, fmt.Errorf("user data is not present in initData")
	}
	if err := json.Unmarshal([]byte(userJSON), &userData); err != nil {
		return false, userData, fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if userData.ID == 0 {
		return false, userData, fmt.Errorf("user id is empty")
	}

	expected := signInitData(q, botToken)
	return hmac.Equal([]byte(expected), []byte(hash)), userData, nil
}

// signInitData считает hash по отсортированным парам key=value, кроме самого hash.
func signInitData(q url.Values, botToken string) string {
	var pairs []string
	for k, v := range q {
		if k != "hash" {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, v[0]))
		}
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botToken))

	h := hmac.New(sha256.New, secretKey.Sum(nil))
	h.Write([]byte(dataCheckString))
	return hex.EncodeToString(h.Sum(nil))
}
