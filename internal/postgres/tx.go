package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// txRepo is one unit. Balance and copy changes are single conditional
// UPDATEs: a row that would go negative is simply not matched.
type txRepo struct {
	reader
}

func (t *txRepo) LockUser(ctx context.Context, id string) (*bookstore.User, error) {
	return scanUser(t.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) LockStore(ctx context.Context, id string) (*bookstore.Store, error) {
	return scanStore(t.q.QueryRow(ctx, `SELECT `+storeCols+` FROM stores WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) LockBook(ctx context.Context, id string) (*bookstore.Book, error) {
	return scanBook(t.q.QueryRow(ctx, `SELECT `+bookCols+` FROM books WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) InsertUser(ctx context.Context, u *bookstore.User) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO users(id, name, email, password_hash, role, balance)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Balance,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapErr(err)
}

func (t *txRepo) InsertStore(ctx context.Context, s *bookstore.Store) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO stores(id, name, location, owner_id, balance, margin_percent)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Location, s.OwnerID, s.Balance, s.MarginPercent,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return mapErr(err)
}

func (t *txRepo) LinkUserStore(ctx context.Context, userID, storeID string) error {
	ct, err := t.q.Exec(ctx, `UPDATE users SET store_id=$2, updated_at=now() WHERE id=$1`, userID, storeID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return bookstore.ErrUserNotFound
	}
	return nil
}

// adjust applies delta to table.col if the result stays non-negative. No
// match means either no row or not enough; the follow-up EXISTS query tells which.
// extra is appended to the SET list.
func (t *txRepo) adjust(ctx context.Context, table, col, extra, id string, delta any, dest any, notFound, short error) error {
	err := t.q.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %[1]s SET %[2]s = %[2]s + $2, updated_at = now()%[3]s
		WHERE id = $1 AND %[2]s + $2 >= 0
		RETURNING %[2]s`, table, col, extra), id, delta).Scan(dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return mapErr(err)
	}
	var exists bool
	if err := t.q.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id=$1)`, table), id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return notFound
	}
	return short
}

func (t *txRepo) AdjustUserBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	var after decimal.Decimal
	err := t.adjust(ctx, "users", "balance", "", id, delta, &after, bookstore.ErrUserNotFound, bookstore.ErrInsufficientFunds)
	return after, err
}

func (t *txRepo) AdjustStoreBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	var after decimal.Decimal
	err := t.adjust(ctx, "stores", "balance", "", id, delta, &after, bookstore.ErrStoreNotFound, bookstore.ErrInsufficientFunds)
	return after, err
}

func (t *txRepo) AdjustBookCopies(ctx context.Context, id string, delta int) (int, error) {
	var copies int
	err := t.adjust(ctx, "books", "copies", ", version = version + 1", id, delta, &copies, bookstore.ErrBookNotFound, bookstore.ErrInsufficientStock)
	return copies, err
}

func (t *txRepo) InsertTransaction(ctx context.Context, tr *bookstore.Transaction) error {
	return t.q.QueryRow(ctx, `
		INSERT INTO transactions(id, user_id, store_id, owner_id, type, direction, amount, balance_after,
			book_id, order_id, note, created_at)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), $5, $6, $7, $8,
			NULLIF($9,''), NULLIF($10,''), NULLIF($11,''), $12)
		RETURNING seq`,
		tr.ID, tr.UserID, tr.StoreID, tr.OwnerID, string(tr.Type), string(tr.Direction), tr.Amount, tr.BalanceAfter,
		tr.Reference.BookID, tr.Reference.OrderID, tr.Reference.Note, tr.CreatedAt,
	).Scan(&tr.Seq)
}

func (t *txRepo) InsertBook(ctx context.Context, b *bookstore.Book) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO books(id, title, author, publish_year, copies, description, store_id, owner_id, price, genre)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING version, created_at, updated_at`,
		b.ID, b.Title, b.Author, b.PublishYear, b.Copies, b.Description, b.StoreID, b.OwnerID, b.Price, genresOut(b.Genre),
	).Scan(&b.Version, &b.CreatedAt, &b.UpdatedAt)
	return mapErr(err)
}

// UpdateBook writes the editable fields. store_id and owner_id are never
// written after insert.
func (t *txRepo) UpdateBook(ctx context.Context, b *bookstore.Book) error {
	err := t.q.QueryRow(ctx, `
		UPDATE books SET title=$2, author=$3, publish_year=$4, copies=$5, description=$6, price=$7, genre=$8,
			version=version+1, updated_at=now()
		WHERE id=$1
		RETURNING store_id, owner_id, version, created_at, updated_at`,
		b.ID, b.Title, b.Author, b.PublishYear, b.Copies, b.Description, b.Price, genresOut(b.Genre),
	).Scan(&b.StoreID, &b.OwnerID, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	return noRows(mapErr(err), bookstore.ErrBookNotFound)
}

func (t *txRepo) DeleteBook(ctx context.Context, id string) error {
	ct, err := t.q.Exec(ctx, `DELETE FROM books WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return bookstore.ErrBookNotFound
	}
	return nil
}

func (t *txRepo) InsertOrder(ctx context.Context, o *bookstore.Order) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, store_id, book_id, quantity, price_paid, margin_earned, status, request_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''))
		RETURNING created_at`,
		o.ID, o.UserID, o.StoreID, o.BookID, o.Quantity, o.PricePaid, o.MarginEarned, string(o.Status), o.RequestKey,
	).Scan(&o.CreatedAt)
	return mapErr(err)
}

func (t *txRepo) FindOrderByRequestKey(ctx context.Context, userID, key string) (*bookstore.Order, error) {
	return scanOrder(t.q.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=$1 AND request_key=$2`, userID, key))
}
