package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq" // PostgreSQL driver

	"github.com/M0nstr1k/ds/internal/cart"
	"github.com/M0nstr1k/ds/internal/catalog"
	"github.com/M0nstr1k/ds/internal/orders"
	"github.com/M0nstr1k/ds/internal/promo"
	"github.com/M0nstr1k/ds/internal/tickets"
	"github.com/M0nstr1k/ds/internal/users"
)

var DB *sql.DB // Глобальное подключение к БД

// Коды ошибок PostgreSQL, которые миграции считают "уже сделано".
const (
	pqDuplicateColumn = "42701"
	pqDuplicateObject = "42710"
	pqDuplicateTable  = "42P07"
)

// InitDB открывает соединение, создает таблицы, выполняет миграции и создает индексы.
func InitDB(databaseURL string) (err error) {
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL не установлена")
	}

	parsedURL, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("ошибка парсинга DATABASE_URL: %w", err)
	}
	query := parsedURL.Query()
	if query.Get("sslmode") == "" && (parsedURL.Hostname() == "localhost" || parsedURL.Hostname() == "127.0.0.1") {
		query.Set("sslmode", "disable")
	}
	parsedURL.RawQuery = query.Encode()

	DB, err = sql.Open("postgres", parsedURL.String())
	if err != nil {
		return fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	DB.SetMaxOpenConns(50)
	DB.SetMaxIdleConns(20)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err := DB.Ping(); err != nil {
		return fmt.Errorf("ошибка проверки соединения с базой данных: %w", err)
	}
	log.Println("Успешное подключение к базе данных.")

	// Шаг 1: таблицы
	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции для создания таблиц: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			log.Printf("InitDB: откат транзакции из-за ошибки: %v", err)
			tx.Rollback()
		}
	}()

	createTablesSQL := `
        CREATE TABLE IF NOT EXISTS users (
            telegram_id BIGINT PRIMARY KEY,
            username TEXT,
            first_name TEXT NOT NULL DEFAULT '',
            last_name TEXT,
            banned BOOLEAN NOT NULL DEFAULT FALSE,
            referral_code TEXT UNIQUE,
            referrer_id BIGINT REFERENCES users(telegram_id),
            created_at TIMESTAMP NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS products (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            price BIGINT NOT NULL CHECK (price >= 0),
            photo TEXT NOT NULL DEFAULT '',
            stock BIGINT,
            sizes TEXT NOT NULL DEFAULT ''
        );
        CREATE TABLE IF NOT EXISTS carts (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL,
            product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
            size TEXT NOT NULL DEFAULT '',
            quantity INTEGER NOT NULL CHECK (quantity > 0),
            UNIQUE (user_id, product_id, size)
        );
        CREATE TABLE IF NOT EXISTS promo_codes (
            code TEXT PRIMARY KEY,
            percent INTEGER NOT NULL CHECK (percent BETWEEN 0 AND 100),
            usage_limit INTEGER,
            used_count INTEGER NOT NULL DEFAULT 0,
            expires_at TIMESTAMP
        );
        CREATE TABLE IF NOT EXISTS orders (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL,
            total BIGINT NOT NULL,
            status TEXT NOT NULL,
            promo_code TEXT,
            card TEXT NOT NULL,
            admin_id BIGINT NOT NULL,
            created_at TIMESTAMP NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS order_items (
            id BIGSERIAL PRIMARY KEY,
            order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
            product_id BIGINT NOT NULL,
            name TEXT NOT NULL,
            size TEXT NOT NULL DEFAULT '',
            quantity INTEGER NOT NULL,
            price BIGINT NOT NULL
        );
        CREATE TABLE IF NOT EXISTS support_tickets (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL,
            message TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'open',
            created_at TIMESTAMP NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS ticket_messages (
            id BIGSERIAL PRIMARY KEY,
            ticket_id BIGINT NOT NULL REFERENCES support_tickets(id) ON DELETE CASCADE,
            sender_id BIGINT NOT NULL,
            message TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL DEFAULT NOW()
        );
    `
	if _, err = tx.Exec(createTablesSQL); err != nil {
		return fmt.Errorf("ошибка создания таблиц: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции создания таблиц: %w", err)
	}
	log.Println("Создание таблиц (если не существуют) завершено.")

	// Шаг 2: миграции схемы
	if err = migrateDBSchema(); err != nil {
		return fmt.Errorf("ошибка выполнения миграции схемы: %w", err)
	}
	log.Println("Миграция схемы базы данных успешно завершена.")

	// Шаг 3: индексы
	createIndexesSQL := `
        CREATE INDEX IF NOT EXISTS idx_carts_user_id ON carts(user_id, id);
        CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id, id DESC);
        CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
        CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
        CREATE INDEX IF NOT EXISTS idx_users_referrer_id ON users(referrer_id);
        CREATE INDEX IF NOT EXISTS idx_support_tickets_user_id ON support_tickets(user_id, id DESC);
        CREATE INDEX IF NOT EXISTS idx_support_tickets_status ON support_tickets(status);
        CREATE INDEX IF NOT EXISTS idx_ticket_messages_ticket_id ON ticket_messages(ticket_id, id);
    `
	for _, stmt := range strings.Split(strings.TrimSpace(createIndexesSQL), ";") {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		if _, errIdx := DB.Exec(trimmedStmt); errIdx != nil {
			log.Printf("Предупреждение: ошибка при создании индекса ('%s'): %v", trimmedStmt, errIdx)
		}
	}
	log.Println("Инициализация базы данных успешно завершена.")
	return nil
}

// migrateDBSchema выполняет идемпотентные миграции схемы.
func migrateDBSchema() error {
	migrations := []struct {
		name string
		sql  string
	}{
		{
			name: "orders.shipping_service",
			sql:  `ALTER TABLE orders ADD COLUMN IF NOT EXISTS shipping_service TEXT NOT NULL DEFAULT ''`,
		},
		{
			name: "orders.tracking_number",
			sql:  `ALTER TABLE orders ADD COLUMN IF NOT EXISTS tracking_number TEXT`,
		},
		{
			name: "orders.recipient",
			sql: `ALTER TABLE orders ADD COLUMN IF NOT EXISTS full_name TEXT;
                  ALTER TABLE orders ADD COLUMN IF NOT EXISTS phone TEXT;
                  ALTER TABLE orders ADD COLUMN IF NOT EXISTS address TEXT`,
		},
		{
			name: "orders.status_check",
			sql: `ALTER TABLE orders ADD CONSTRAINT orders_status_check
                  CHECK (status IN ('waiting', 'paid', 'created', 'shipped', 'received', 'canceled'))`,
		},
	}

	for _, m := range migrations {
		if _, err := DB.Exec(m.sql); err != nil {
			if isAlreadyExists(err) {
				log.Printf("migrateDBSchema: миграция '%s' уже применена", m.name)
				continue
			}
			return fmt.Errorf("миграция '%s': %w", m.name, err)
		}
		log.Printf("migrateDBSchema: миграция '%s' выполнена", m.name)
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqDuplicateColumn, pqDuplicateObject, pqDuplicateTable:
			return true
		}
	}
	return strings.Contains(err.Error(), "already exists")
}

// CloseDB закрывает соединение с базой данных.
func CloseDB() {
	if DB != nil {
		if err := DB.Close(); err != nil {
			log.Printf("CloseDB: ошибка закрытия соединения: %v", err)
			return
		}
		log.Println("Соединение с базой данных закрыто.")
	}
}

// Store - реализация всех репозиториев поверх PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore оборачивает подключение. nil - использовать глобальное DB.
func NewStore(conn *sql.DB) *Store {
	if conn == nil {
		conn = DB
	}
	return &Store{db: conn}
}

// Ping проверяет соединение (для /api/health).
func (s *Store) Ping() error {
	return s.db.Ping()
}

var (
	_ catalog.Repository = (*Store)(nil)
	_ cart.Repository    = (*Store)(nil)
	_ promo.Repository   = (*Store)(nil)
	_ orders.Repository  = (*Store)(nil)
	_ tickets.Repository = (*Store)(nil)
	_ users.Repository   = (*Store)(nil)
)
