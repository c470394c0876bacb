package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Repo is the Postgres bookstore.Repository. Reads outside a unit go straight to
// the pool.
type Repo struct {
	reader
	DB DB
}

func NewRepo(db DB) *Repo { return &Repo{reader: reader{q: db}, DB: db} }

// WithTx runs fn in one READ COMMITTED transaction. Row locks taken through
// Lock* serialize competing units on the same rows.
func (r *Repo) WithTx(ctx context.Context, fn func(ctx context.Context, tx bookstore.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(ctx, &txRepo{reader: reader{q: tx}}); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// mapErr turns constraint violations into domain errors.
func mapErr(err error) error {
	var pg *pgconn.PgError
	if !errors.As(err, &pg) {
		return err
	}
	switch pg.ConstraintName {
	case conUsersEmail:
		return bookstore.ErrEmailTaken
	case conStoresOwner:
		return bookstore.ErrStoreExists
	case conOrdersRequest:
		return bookstore.ErrDuplicateRequest
	case conUsersBalance, conStoresBalance:
		return bookstore.ErrInsufficientFunds
	case conBooksCopies:
		return bookstore.ErrInsufficientStock
	}
	if pg.Code == "23505" {
		return fmt.Errorf("%w: %s", bookstore.ErrConflict, pg.ConstraintName)
	}
	return err
}

func noRows(err, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return err
}

func genresOut(g []bookstore.Genre) []string {
	out := make([]string, len(g))
	for i, x := range g {
		out[i] = string(x)
	}
	return out
}

func genresIn(s []string) []bookstore.Genre {
	out := make([]bookstore.Genre, len(s))
	for i, x := range s {
		out[i] = bookstore.Genre(x)
	}
	return out
}

// where joins conditions with AND, numbering placeholders in order.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
