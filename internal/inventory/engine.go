// Package inventory turns changes in a book's copy count or price into ledger
// movements on the owning store, so inventory value and store money never
// diverge.
package inventory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Engine struct {
	Ledger *ledger.Engine
}

func New(l *ledger.Engine) *Engine { return &Engine{Ledger: l} }

// Result is the book after the change plus the ledger rows it produced.
type Result struct {
	Book         *bookstore.Book
	Entries      []*bookstore.Transaction
	StoreBalance decimal.Decimal
	Amount       decimal.Decimal // money moved (cost, earning, refund); zero if none
}

func (r *Result) record(t *bookstore.Transaction) {
	r.Entries = append(r.Entries, t)
	r.StoreBalance = t.BalanceAfter
	r.Amount = t.Amount
}

// Margin is the store's cut of amount, in cents.
func Margin(s *bookstore.Store, amount decimal.Decimal) decimal.Decimal {
	return bookstore.Round(amount.Mul(s.MarginPercent).Div(hundred))
}

func sameStore(book *bookstore.Book, store *bookstore.Store) error {
	if store.ID != book.StoreID {
		return fmt.Errorf("%w: book %s belongs to store %s, not %s", bookstore.ErrIntegrity, book.ID, book.StoreID, store.ID)
	}
	return nil
}

// AdjustStock sets book.Copies to newCopies on behalf of actingStoreID.
// Restocking debits the store price × added copies; destocking credits it
// margin% of price × removed copies. A refused debit leaves copies untouched.
func (e *Engine) AdjustStock(ctx context.Context, tx bookstore.Tx, book *bookstore.Book, store *bookstore.Store, newCopies int, actingStoreID string) (*Result, error) {
	if newCopies < 0 {
		return nil, bookstore.Invalid("copies", "Invalid copies value")
	}
	if actingStoreID == "" || actingStoreID != book.StoreID {
		return nil, bookstore.Reject(bookstore.ErrForbidden, "Not your store")
	}
	if err := sameStore(book, store); err != nil {
		return nil, err
	}

	res := &Result{Book: book, StoreBalance: store.Balance}
	old := book.Copies
	switch {
	case newCopies > old:
		cost := bookstore.Round(book.Price.Mul(decimal.NewFromInt(int64(newCopies - old))))
		if cost.IsPositive() {
			en := ledger.StoreEntry(store.ID, bookstore.TxOwnerWithdraw, bookstore.Debit, cost)
			en.Reference = bookstore.Reference{BookID: book.ID, Note: bookstore.NoteStockAddition}
			en.Reason = "Insufficient store balance to add stock"
			t, err := e.Ledger.Apply(ctx, tx, en)
			if err != nil {
				return nil, err
			}
			res.record(t)
		}
	case newCopies < old:
		earning := Margin(store, book.Price.Mul(decimal.NewFromInt(int64(old-newCopies))))
		if earning.IsPositive() {
			en := ledger.StoreEntry(store.ID, bookstore.TxOwnerEarning, bookstore.Credit, earning)
			en.Reference = bookstore.Reference{BookID: book.ID, Note: bookstore.NoteSoldStock}
			t, err := e.Ledger.Apply(ctx, tx, en)
			if err != nil {
				return nil, err
			}
			res.record(t)
		}
	default:
		return res, nil
	}

	copies, err := tx.AdjustBookCopies(ctx, book.ID, newCopies-old)
	if err != nil {
		return nil, fmt.Errorf("set copies of book %s to %d: %w", book.ID, newCopies, err)
	}
	book.Copies = copies
	return res, nil
}

// Revalue settles the change in inventory value when price and/or copies are
// edited: a higher value is paid by the store, a lower one refunded in full.
// The caller persists the book afterwards.
func (e *Engine) Revalue(ctx context.Context, tx bookstore.Tx, book *bookstore.Book, store *bookstore.Store, newPrice decimal.Decimal, newCopies int) (*Result, error) {
	if newCopies < 0 {
		return nil, bookstore.Invalid("copies", "must not be negative")
	}
	if newPrice.IsNegative() {
		return nil, bookstore.Invalid("price", "must not be negative")
	}
	if err := sameStore(book, store); err != nil {
		return nil, err
	}

	res := &Result{Book: book, StoreBalance: store.Balance}
	newValue := newPrice.Mul(decimal.NewFromInt(int64(newCopies)))
	delta := bookstore.Round(newValue.Sub(book.Value()))

	var en ledger.Entry
	switch delta.Sign() {
	case 1:
		en = ledger.StoreEntry(store.ID, bookstore.TxOwnerWithdraw, bookstore.Debit, delta)
		en.Reference = bookstore.Reference{BookID: book.ID, Note: bookstore.NoteStockAddition}
		en.Reason = "Insufficient store balance for update"
	case -1:
		en = ledger.StoreEntry(store.ID, bookstore.TxOwnerDeposit, bookstore.Credit, delta.Neg())
		en.Reference = bookstore.Reference{BookID: book.ID, Note: bookstore.NoteStockReduction}
	default:
		return res, nil
	}
	t, err := e.Ledger.Apply(ctx, tx, en)
	if err != nil {
		return nil, err
	}
	res.record(t)
	return res, nil
}

// Reserve charges the store for the opening inventory of a new book.
func (e *Engine) Reserve(ctx context.Context, tx bookstore.Tx, book *bookstore.Book, store *bookstore.Store) (*Result, error) {
	if err := sameStore(book, store); err != nil {
		return nil, err
	}
	res := &Result{Book: book, StoreBalance: store.Balance}
	cost := bookstore.Round(book.Value())
	if !cost.IsPositive() {
		return res, nil
	}
	en := ledger.StoreEntry(store.ID, bookstore.TxOwnerWithdraw, bookstore.Debit, cost)
	en.Reference = bookstore.Reference{BookID: book.ID, Note: bookstore.NoteInitialStock}
	en.Reason = "Insufficient store balance to stock this book"
	t, err := e.Ledger.Apply(ctx, tx, en)
	if err != nil {
		return nil, err
	}
	res.record(t)
	return res, nil
}

// Liquidate refunds the full price × copies to the store and removes the book.
func (e *Engine) Liquidate(ctx context.Context, tx bookstore.Tx, book *bookstore.Book, store *bookstore.Store) (*Result, error) {
	if err := sameStore(book, store); err != nil {
		return nil, err
	}
	res := &Result{Book: book, StoreBalance: store.Balance}
	refund := bookstore.Round(book.Value())
	if refund.IsPositive() {
		en := ledger.StoreEntry(store.ID, bookstore.TxOwnerDeposit, bookstore.Credit, refund)
		en.Reference = bookstore.Reference{BookID: book.ID, Note: bookstore.NoteDeletionRefund}
		t, err := e.Ledger.Apply(ctx, tx, en)
		if err != nil {
			return nil, err
		}
		res.record(t)
	}
	if err := tx.DeleteBook(ctx, book.ID); err != nil {
		return nil, fmt.Errorf("delete book %s: %w", book.ID, err)
	}
	return res, nil
}

// Sell takes qty copies out of stock and credits the store its margin on
// total. The decrement is conditional in the store, so two sales racing for
// the last copies cannot both succeed.
func (e *Engine) Sell(ctx context.Context, tx bookstore.Tx, book *bookstore.Book, store *bookstore.Store, qty int, total decimal.Decimal, ref bookstore.Reference) (*Result, error) {
	if qty <= 0 {
		return nil, bookstore.Invalid("quantity", "Invalid quantity")
	}
	if err := sameStore(book, store); err != nil {
		return nil, err
	}
	copies, err := tx.AdjustBookCopies(ctx, book.ID, -qty)
	if err != nil {
		if bookstore.IsInsufficientStock(err) {
			return nil, bookstore.Reject(bookstore.ErrInsufficientStock, "Not enough copies available")
		}
		return nil, fmt.Errorf("take %d copies of book %s: %w", qty, book.ID, err)
	}
	book.Copies = copies

	res := &Result{Book: book, StoreBalance: store.Balance}
	margin := Margin(store, total)
	if margin.IsPositive() {
		en := ledger.StoreEntry(store.ID, bookstore.TxOwnerEarning, bookstore.Credit, margin)
		en.Reference = ref
		t, err := e.Ledger.Apply(ctx, tx, en)
		if err != nil {
			return nil, err
		}
		res.record(t)
	}
	return res, nil
}
