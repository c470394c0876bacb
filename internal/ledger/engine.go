// Package ledger is the only code path that moves a wallet balance. Every
// Apply adjusts exactly one balance and appends exactly one Transaction row
// carrying the resulting balance, inside the caller's unit.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Entry struct {
	Account   bookstore.AccountKind
	AccountID string
	Type      bookstore.TransactionType
	Direction bookstore.Direction
	Amount    decimal.Decimal
	Reference bookstore.Reference

	// Recorded on the row for audit; only AccountID's balance moves.
	UserID  string
	StoreID string
	OwnerID string

	// Reason is the client-facing message when a debit is refused.
	Reason string
}

type Engine struct {
	Now func() time.Time
}

func New() *Engine { return &Engine{Now: func() time.Time { return time.Now().UTC() }} }

func (e *Engine) validate(en *Entry) error {
	if !en.Type.Valid() {
		return bookstore.Invalid("type", fmt.Sprintf("unknown transaction type %q", en.Type))
	}
	if !en.Direction.Valid() {
		return bookstore.Invalid("direction", fmt.Sprintf("unknown direction %q", en.Direction))
	}
	if en.Type.Account() != en.Account {
		return bookstore.Invalid("type", fmt.Sprintf("%s does not apply to a %s wallet", en.Type, en.Account))
	}
	if en.AccountID == "" {
		return bookstore.Invalid("account", "missing account id")
	}
	en.Amount = bookstore.Round(en.Amount)
	if !en.Amount.IsPositive() {
		return bookstore.Invalid("amount", "must be greater than zero")
	}
	return nil
}

// Apply checks sufficiency against the locked row, then adjusts the balance
// with a conditional write and appends the Transaction. A refused debit leaves
// no trace; any later failure aborts the caller's unit.
func (e *Engine) Apply(ctx context.Context, tx bookstore.Tx, en Entry) (*bookstore.Transaction, error) {
	if err := e.validate(&en); err != nil {
		return nil, err
	}
	delta := en.Amount
	if en.Direction == bookstore.Debit {
		delta = delta.Neg()
	}

	var (
		after decimal.Decimal
		err   error
	)
	switch en.Account {
	case bookstore.AccountUser:
		after, err = e.applyUser(ctx, tx, &en, delta)
	case bookstore.AccountStore:
		after, err = e.applyStore(ctx, tx, &en, delta)
	default:
		return nil, bookstore.Invalid("account", fmt.Sprintf("unknown account kind %q", en.Account))
	}
	if err != nil {
		return nil, err
	}

	t := &bookstore.Transaction{
		ID:           uuid.NewString(),
		UserID:       en.UserID,
		StoreID:      en.StoreID,
		OwnerID:      en.OwnerID,
		Type:         en.Type,
		Direction:    en.Direction,
		Amount:       en.Amount,
		BalanceAfter: after,
		Reference:    en.Reference,
		CreatedAt:    e.Now(),
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("append %s transaction for %s %s: %w", en.Type, en.Account, en.AccountID, err)
	}
	return t, nil
}

func (e *Engine) applyUser(ctx context.Context, tx bookstore.Tx, en *Entry, delta decimal.Decimal) (decimal.Decimal, error) {
	u, err := tx.LockUser(ctx, en.AccountID)
	if err != nil {
		return decimal.Zero, err
	}
	en.UserID = u.ID
	if delta.IsNegative() && u.Balance.LessThan(en.Amount) {
		return decimal.Zero, insufficient(en, "Insufficient user balance")
	}
	after, err := tx.AdjustUserBalance(ctx, u.ID, delta)
	if err != nil {
		if bookstore.IsInsufficientFunds(err) {
			return decimal.Zero, insufficient(en, "Insufficient user balance")
		}
		return decimal.Zero, fmt.Errorf("adjust user %s balance: %w", u.ID, err)
	}
	return after, nil
}

func (e *Engine) applyStore(ctx context.Context, tx bookstore.Tx, en *Entry, delta decimal.Decimal) (decimal.Decimal, error) {
	s, err := tx.LockStore(ctx, en.AccountID)
	if err != nil {
		return decimal.Zero, err
	}
	en.StoreID = s.ID
	if en.OwnerID == "" {
		en.OwnerID = s.OwnerID
	}
	if delta.IsNegative() && s.Balance.LessThan(en.Amount) {
		return decimal.Zero, insufficient(en, "Insufficient store balance")
	}
	after, err := tx.AdjustStoreBalance(ctx, s.ID, delta)
	if err != nil {
		if bookstore.IsInsufficientFunds(err) {
			return decimal.Zero, insufficient(en, "Insufficient store balance")
		}
		return decimal.Zero, fmt.Errorf("adjust store %s balance: %w", s.ID, err)
	}
	return after, nil
}

func insufficient(en *Entry, def string) error {
	msg := en.Reason
	if msg == "" {
		msg = def
	}
	return bookstore.Reject(bookstore.ErrInsufficientFunds, msg)
}

// UserEntry and StoreEntry build an Entry for one wallet; callers add the
// reference, counterparties and reason.

func UserEntry(userID string, typ bookstore.TransactionType, dir bookstore.Direction, amount decimal.Decimal) Entry {
	return Entry{Account: bookstore.AccountUser, AccountID: userID, UserID: userID, Type: typ, Direction: dir, Amount: amount}
}

func StoreEntry(storeID string, typ bookstore.TransactionType, dir bookstore.Direction, amount decimal.Decimal) Entry {
	return Entry{Account: bookstore.AccountStore, AccountID: storeID, StoreID: storeID, Type: typ, Direction: dir, Amount: amount}
}
