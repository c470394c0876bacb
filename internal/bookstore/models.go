package bookstore

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Role         Role            `json:"role"`
	StoreID      string          `json:"store,omitempty"` // only for RoleOwner
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type Store struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Location      string          `json:"location"`
	OwnerID       string          `json:"owner"`
	Balance       decimal.Decimal `json:"balance"`
	MarginPercent decimal.Decimal `json:"marginPercent"` // 0..100
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type Book struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	PublishYear int             `json:"publishYear"`
	Copies      int             `json:"copies"`
	Description string          `json:"description"`
	StoreID     string          `json:"store"`
	OwnerID     string          `json:"owner"`
	Price       decimal.Decimal `json:"price"`
	Genre       []Genre         `json:"genre"`
	Version     int64           `json:"version"` // bumped by every write
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Value is the inventory value of the book at its current price.
func (b *Book) Value() decimal.Decimal {
	return b.Price.Mul(decimal.NewFromInt(int64(b.Copies)))
}

// Clone returns a deep copy, genre slice included.
func (b *Book) Clone() *Book {
	c := *b
	c.Genre = append([]Genre(nil), b.Genre...)
	return &c
}

type Order struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user"`
	StoreID      string          `json:"store"`
	BookID       string          `json:"book"`
	Quantity     int             `json:"quantity"`
	PricePaid    decimal.Decimal `json:"pricePaid"`
	MarginEarned decimal.Decimal `json:"marginEarned"`
	Status       OrderStatus     `json:"status"`
	RequestKey   string          `json:"requestKey,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Reference links a ledger entry to the book/order that caused it.
type Reference struct {
	BookID  string `json:"bookId,omitempty"`
	OrderID string `json:"orderId,omitempty"`
	Note    string `json:"note,omitempty"`
}

type Transaction struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"seq"`
	UserID       string          `json:"user,omitempty"`
	StoreID      string          `json:"store,omitempty"`
	OwnerID      string          `json:"owner,omitempty"`
	Type         TransactionType `json:"type"`
	Direction    Direction       `json:"direction"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	Reference    Reference       `json:"reference"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Signed returns the amount with the sign implied by Direction.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Direction == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Round rounds a money amount to cents.
func Round(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
