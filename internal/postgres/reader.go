package postgres

import (
	"context"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/jackc/pgx/v5"
)

const (
	userCols  = `id, name, email, password_hash, role, COALESCE(store_id, ''), balance, created_at, updated_at`
	storeCols = `id, name, location, owner_id, balance, margin_percent, created_at, updated_at`
	bookCols  = `id, title, author, publish_year, copies, description, store_id, owner_id, price, genre, version, created_at, updated_at`
	orderCols = `id, user_id, store_id, book_id, quantity, price_paid, margin_earned, status, COALESCE(request_key, ''), created_at`
	txCols    = `seq, id, COALESCE(user_id, ''), COALESCE(store_id, ''), COALESCE(owner_id, ''), type, direction,
		amount, balance_after, COALESCE(book_id, ''), COALESCE(order_id, ''), COALESCE(note, ''), created_at`
)

// reader runs against the pool or inside a pgx.Tx.
type reader struct{ q querier }

func scanUser(row pgx.Row) (*bookstore.User, error) {
	var u bookstore.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.StoreID, &u.Balance, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, noRows(err, bookstore.ErrUserNotFound)
	}
	return &u, nil
}

func scanStore(row pgx.Row) (*bookstore.Store, error) {
	var s bookstore.Store
	err := row.Scan(&s.ID, &s.Name, &s.Location, &s.OwnerID, &s.Balance, &s.MarginPercent, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, noRows(err, bookstore.ErrStoreNotFound)
	}
	return &s, nil
}

func scanBook(row pgx.Row) (*bookstore.Book, error) {
	var (
		b     bookstore.Book
		genre []string
	)
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.PublishYear, &b.Copies, &b.Description,
		&b.StoreID, &b.OwnerID, &b.Price, &genre, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, noRows(err, bookstore.ErrBookNotFound)
	}
	b.Genre = genresIn(genre)
	return &b, nil
}

func scanOrder(row pgx.Row) (*bookstore.Order, error) {
	var o bookstore.Order
	err := row.Scan(&o.ID, &o.UserID, &o.StoreID, &o.BookID, &o.Quantity, &o.PricePaid, &o.MarginEarned,
		&o.Status, &o.RequestKey, &o.CreatedAt)
	if err != nil {
		return nil, noRows(err, bookstore.ErrOrderNotFound)
	}
	return &o, nil
}

func scanTx(row pgx.Row) (*bookstore.Transaction, error) {
	var t bookstore.Transaction
	err := row.Scan(&t.Seq, &t.ID, &t.UserID, &t.StoreID, &t.OwnerID, &t.Type, &t.Direction,
		&t.Amount, &t.BalanceAfter, &t.Reference.BookID, &t.Reference.OrderID, &t.Reference.Note, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (r *reader) GetUser(ctx context.Context, id string) (*bookstore.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (r *reader) GetUserByEmail(ctx context.Context, email string) (*bookstore.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
}

func (r *reader) GetStore(ctx context.Context, id string) (*bookstore.Store, error) {
	return scanStore(r.q.QueryRow(ctx, `SELECT `+storeCols+` FROM stores WHERE id=$1`, id))
}

func (r *reader) GetStoreByOwner(ctx context.Context, ownerID string) (*bookstore.Store, error) {
	return scanStore(r.q.QueryRow(ctx, `SELECT `+storeCols+` FROM stores WHERE owner_id=$1`, ownerID))
}

func (r *reader) GetBook(ctx context.Context, id string) (*bookstore.Book, error) {
	return scanBook(r.q.QueryRow(ctx, `SELECT `+bookCols+` FROM books WHERE id=$1`, id))
}

func (r *reader) ListBooks(ctx context.Context, f bookstore.BookFilter) ([]bookstore.Book, error) {
	var w where
	if f.StoreID != "" {
		w.add("store_id = ?", f.StoreID)
	}
	if f.OwnerID != "" {
		w.add("owner_id = ?", f.OwnerID)
	}
	rows, err := r.q.Query(ctx, `SELECT `+bookCols+` FROM books`+w.String()+` ORDER BY created_at, id`, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBook)
}

func (r *reader) GetOrder(ctx context.Context, id string) (*bookstore.Order, error) {
	return scanOrder(r.q.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
}

func (r *reader) ListOrders(ctx context.Context, f bookstore.OrderFilter) ([]bookstore.Order, error) {
	var w where
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
	}
	if f.StoreID != "" {
		w.add("store_id = ?", f.StoreID)
	}
	rows, err := r.q.Query(ctx, `SELECT `+orderCols+` FROM orders`+w.String()+` ORDER BY created_at, id`, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOrder)
}

var (
	userTypes  = []string{string(bookstore.TxUserDeposit), string(bookstore.TxUserWithdraw), string(bookstore.TxBookPurchase)}
	storeTypes = []string{string(bookstore.TxOwnerEarning), string(bookstore.TxOwnerDeposit), string(bookstore.TxOwnerWithdraw)}
)

func (r *reader) ListTransactions(ctx context.Context, f bookstore.TransactionFilter) ([]bookstore.Transaction, error) {
	var w where
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
		if f.Wallet {
			w.add("type = ANY(?)", userTypes)
		}
	}
	if f.StoreID != "" {
		w.add("store_id = ?", f.StoreID)
		if f.Wallet {
			w.add("type = ANY(?)", storeTypes)
		}
	}
	if f.OrderID != "" {
		w.add("order_id = ?", f.OrderID)
	}
	rows, err := r.q.Query(ctx, `SELECT `+txCols+` FROM transactions`+w.String()+` ORDER BY seq`, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTx)
}
