package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/M0nstr1k/ds/internal/api"
	"github.com/M0nstr1k/ds/internal/cart"
	"github.com/M0nstr1k/ds/internal/catalog"
	"github.com/M0nstr1k/ds/internal/config"
	"github.com/M0nstr1k/ds/internal/db"
	"github.com/M0nstr1k/ds/internal/dispatch"
	"github.com/M0nstr1k/ds/internal/handlers"
	"github.com/M0nstr1k/ds/internal/memstore"
	"github.com/M0nstr1k/ds/internal/orders"
	"github.com/M0nstr1k/ds/internal/promo"
	"github.com/M0nstr1k/ds/internal/session"
	"github.com/M0nstr1k/ds/internal/telegram_api"
	"github.com/M0nstr1k/ds/internal/tickets"
	"github.com/M0nstr1k/ds/internal/users"
	"github.com/M0nstr1k/ds/internal/utils"
)

const (
	updateQueueSize = 100
	shutdownTimeout = 15 * time.Second
)

// storage - все репозитории сразу. Реализуют db.Store и memstore.Store.
type storage interface {
	catalog.Repository
	cart.Repository
	promo.Repository
	orders.Repository
	tickets.Repository
	users.Repository
}

func main() {
	// --- Блок инициализации ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Критическая ошибка: не удалось загрузить конфигурацию: %v", err)
	}

	if err := utils.InitEncryptionKey(cfg.CardEncryptionKeyHex); err != nil {
		log.Fatalf("Критическая ошибка: не удалось инициализировать ключ шифрования: %v", err)
	}

	var store storage
	var pinger api.Pinger
	switch cfg.StorageDriver {
	case config.StorageMemory:
		log.Println("Используется хранилище в памяти, данные не сохранятся после перезапуска.")
		store = memstore.New()
	default:
		if err := db.InitDB(cfg.DatabaseURL); err != nil {
			log.Fatalf("Критическая ошибка: не удалось инициализировать базу данных: %v", err)
		}
		defer db.CloseDB()
		pgStore := db.NewStore(nil)
		store, pinger = pgStore, pgStore
	}

	client, err := telegram_api.InitBot(cfg.TelegramToken, cfg.IsDev())
	if err != nil {
		log.Fatalf("Критическая ошибка: не удалось инициализировать Telegram бота: %v", err)
	}
	botUsername := cfg.BotUsername
	if botUsername == "" {
		botUsername = client.Username()
	}

	// --- Доменные сервисы ---
	sessionManager := session.NewSessionManager()
	ledger := cart.NewLedger(store)
	promos := promo.NewEngine(store)
	lifecycle := orders.NewLifecycle(store, ledger, promos, cfg.Cards)
	registry := users.NewRegistry(store, promos, botUsername, cfg.ReferralPercent, cfg.ReferralPromoDays)
	products := catalog.New(store)

	botHandler := handlers.NewBotHandler(handlers.HandlerDependencies{
		Config:         cfg,
		Sender:         client,
		SessionManager: sessionManager,
		Catalog:        products,
		Cart:           ledger,
		Promos:         promos,
		Orders:         lifecycle,
		Tickets:        tickets.NewRelay(store, sessionManager, cfg.AdminIDs),
		Users:          registry,
	})

	dispatcher := dispatch.New(cfg.Workers, updateQueueSize, func(update tgbotapi.Update) {
		switch {
		case update.Message != nil:
			botHandler.HandleMessage(update)
		case update.CallbackQuery != nil:
			botHandler.HandleCallback(update)
		}
	})

	// --- HTTP API ---
	var server *http.Server
	if cfg.HTTPEnabled {
		server = &http.Server{
			Addr: ":" + cfg.Port,
			Handler: api.NewRouter(api.ApiDependencies{
				Config:   cfg,
				Catalog:  products,
				Orders:   lifecycle,
				Users:    registry,
				Sessions: sessionManager,
				Store:    pinger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("Запуск HTTP-сервера для WebApp API на порту %s", cfg.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("КРИТИЧЕСКАЯ ОШИБКА: не удалось запустить HTTP-сервер: %v", err)
			}
		}()
	}

	// --- Запуск самого бота ---
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := client.GetUpdatesChan(u)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.Printf("Получен сигнал %v, останавливаем бота...", sig)
		client.StopReceivingUpdates()
	}()

	log.Println("Бот запущен и готов к работе...")

	for update := range updates {
		if update.Message != nil && update.Message.From != nil {
			log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)
		} else if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
			log.Printf("Callback от %s: %s", update.CallbackQuery.From.UserName, update.CallbackQuery.Data)
		}
		if !dispatcher.Dispatch(update) {
			log.Printf("main: обновление %d пропущено: не удалось определить чат", update.UpdateID)
		}
	}

	gracefulShutdown(dispatcher, server)
}

// gracefulShutdown дожидается обработки принятых обновлений и останавливает HTTP-сервер.
func gracefulShutdown(dispatcher *dispatch.Dispatcher, server *http.Server) {
	dispatcher.Stop()
	log.Println("Очередь обновлений обработана.")

	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("gracefulShutdown: ошибка остановки HTTP-сервера: %v", err)
		return
	}
	log.Println("HTTP-сервер остановлен.")
}
