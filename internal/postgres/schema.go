package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint names are matched in mapErr.
const (
	conUsersEmail    = "users_email_key"
	conStoresOwner   = "stores_owner_id_key"
	conOrdersRequest = "orders_user_request_key"
	conUsersBalance  = "users_balance_check"
	conStoresBalance = "stores_balance_check"
	conBooksCopies   = "books_copies_check"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('Owner','User')),
		store_id      TEXT,
		balance       NUMERIC(18,2) NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT ` + conUsersEmail + ` UNIQUE (email),
		CONSTRAINT ` + conUsersBalance + ` CHECK (balance >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS stores (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		location       TEXT NOT NULL,
		owner_id       TEXT NOT NULL REFERENCES users(id),
		balance        NUMERIC(18,2) NOT NULL DEFAULT 0,
		margin_percent NUMERIC(5,2) NOT NULL DEFAULT 10 CHECK (margin_percent BETWEEN 0 AND 100),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT ` + conStoresOwner + ` UNIQUE (owner_id),
		CONSTRAINT ` + conStoresBalance + ` CHECK (balance >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		author       TEXT NOT NULL,
		publish_year INT NOT NULL,
		copies       INT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		store_id     TEXT NOT NULL REFERENCES stores(id),
		owner_id     TEXT NOT NULL REFERENCES users(id),
		price        NUMERIC(18,2) NOT NULL CHECK (price >= 0),
		genre        TEXT[] NOT NULL DEFAULT '{General}',
		version      BIGINT NOT NULL DEFAULT 1,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT ` + conBooksCopies + ` CHECK (copies >= 0)
	)`,
	`ALTER TABLE books ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 1`,
	`CREATE INDEX IF NOT EXISTS books_store_idx ON books(store_id)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL REFERENCES users(id),
		store_id      TEXT NOT NULL REFERENCES stores(id),
		book_id       TEXT NOT NULL,
		quantity      INT NOT NULL CHECK (quantity > 0),
		price_paid    NUMERIC(18,2) NOT NULL,
		margin_earned NUMERIC(18,2) NOT NULL,
		status        TEXT NOT NULL,
		request_key   TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + conOrdersRequest + `
		ON orders(user_id, request_key) WHERE request_key IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS orders_user_idx ON orders(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		seq           BIGSERIAL UNIQUE,
		id            TEXT PRIMARY KEY,
		user_id       TEXT,
		store_id      TEXT,
		owner_id      TEXT,
		type          TEXT NOT NULL,
		direction     TEXT NOT NULL CHECK (direction IN ('CREDIT','DEBIT')),
		amount        NUMERIC(18,2) NOT NULL CHECK (amount > 0),
		balance_after NUMERIC(18,2) NOT NULL,
		book_id       TEXT,
		order_id      TEXT,
		note          TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_user_idx ON transactions(user_id, seq)`,
	`CREATE INDEX IF NOT EXISTS transactions_store_idx ON transactions(store_id, seq)`,
	`CREATE INDEX IF NOT EXISTS transactions_order_idx ON transactions(order_id)`,
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Migrate creates the schema if it is missing. Every statement is idempotent.
func Migrate(ctx context.Context, db execer) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
