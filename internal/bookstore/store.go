package bookstore

import (
	"context"

	"github.com/shopspring/decimal"
)

type BookFilter struct {
	StoreID string
	OwnerID string
}

type OrderFilter struct {
	UserID  string
	StoreID string
}

// TransactionFilter selects ledger rows. Results are always in Seq order.
type TransactionFilter struct {
	UserID  string
	StoreID string
	OrderID string
	// Wallet keeps only rows that moved the filtered entity's own balance:
	// a purchase debit names the store but moves the user wallet.
	Wallet bool
}

// Matches reports whether t passes the filter.
func (f TransactionFilter) Matches(t *Transaction) bool {
	if f.UserID != "" && (t.UserID != f.UserID || (f.Wallet && t.Type.Account() != AccountUser)) {
		return false
	}
	if f.StoreID != "" && (t.StoreID != f.StoreID || (f.Wallet && t.Type.Account() != AccountStore)) {
		return false
	}
	if f.OrderID != "" && t.Reference.OrderID != f.OrderID {
		return false
	}
	return true
}

// Reader is the read side shared by Store and Tx.
type Reader interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetStore(ctx context.Context, id string) (*Store, error)
	GetStoreByOwner(ctx context.Context, ownerID string) (*Store, error)
	GetBook(ctx context.Context, id string) (*Book, error)
	ListBooks(ctx context.Context, f BookFilter) ([]Book, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)
}

// Tx is one atomic unit against the entity store. Lock* reads hold the row
// until the unit ends. Adjust* are single conditional statements: they refuse
// (ErrInsufficientFunds / ErrInsufficientStock) instead of going below zero.
type Tx interface {
	Reader

	LockUser(ctx context.Context, id string) (*User, error)
	LockStore(ctx context.Context, id string) (*Store, error)
	LockBook(ctx context.Context, id string) (*Book, error)

	InsertUser(ctx context.Context, u *User) error
	InsertStore(ctx context.Context, s *Store) error
	LinkUserStore(ctx context.Context, userID, storeID string) error

	AdjustUserBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
	AdjustStoreBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
	InsertTransaction(ctx context.Context, t *Transaction) error

	InsertBook(ctx context.Context, b *Book) error
	UpdateBook(ctx context.Context, b *Book) error
	AdjustBookCopies(ctx context.Context, id string, delta int) (int, error)
	DeleteBook(ctx context.Context, id string) error

	InsertOrder(ctx context.Context, o *Order) error
	FindOrderByRequestKey(ctx context.Context, userID, key string) (*Order, error)
}

// Repository runs fn inside one atomic unit: every write in fn commits
// together or not at all.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
