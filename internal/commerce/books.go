package commerce

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateBookInput holds a new listing. Nil numeric fields were absent from
// the request and are rejected.
type CreateBookInput struct {
	Title       string
	Author      string
	PublishYear *int
	Copies      *int
	Description string
	Genre       []bookstore.Genre
	Price       *decimal.Decimal
}

// BookPatch updates only the fields that are set.
type BookPatch struct {
	Title       *string
	Author      *string
	PublishYear *int
	Copies      *int
	Description *string
	Genre       []bookstore.Genre
	Price       *decimal.Decimal
}

func (p BookPatch) empty() bool {
	return p.Title == nil && p.Author == nil && p.PublishYear == nil && p.Copies == nil &&
		p.Description == nil && p.Genre == nil && p.Price == nil
}

const missingFields = "Missing required fields"

func validYear(y int) error {
	if y <= 0 || y > time.Now().Year()+1 {
		return bookstore.Invalid("publishYear", "Invalid publish year")
	}
	return nil
}

func (in *CreateBookInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return bookstore.Invalid("title", "Title is required")
	}
	if in.Author == "" {
		return bookstore.Invalid("author", "Author is required")
	}
	switch {
	case in.PublishYear == nil:
		return bookstore.Invalid("publishYear", missingFields)
	case in.Copies == nil:
		return bookstore.Invalid("copies", missingFields)
	case in.Price == nil:
		return bookstore.Invalid("price", missingFields)
	case in.Description == "":
		return bookstore.Invalid("description", missingFields)
	}
	if err := validYear(*in.PublishYear); err != nil {
		return err
	}
	if *in.Copies < 0 {
		return bookstore.Invalid("copies", "Invalid copies value")
	}
	if err := validAmount("price", *in.Price, true, "Invalid price"); err != nil {
		return err
	}
	g, err := bookstore.NormalizeGenres(in.Genre)
	if err != nil {
		return err
	}
	in.Genre = g
	return nil
}

func (p *BookPatch) validate() error {
	if p.empty() {
		return bookstore.Invalid("", "Nothing to update")
	}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return bookstore.Invalid("title", "Title is required")
		}
		p.Title = &t
	}
	if p.Author != nil {
		a := strings.TrimSpace(*p.Author)
		if a == "" {
			return bookstore.Invalid("author", "Author is required")
		}
		p.Author = &a
	}
	if p.PublishYear != nil {
		if err := validYear(*p.PublishYear); err != nil {
			return err
		}
	}
	if p.Copies != nil && *p.Copies < 0 {
		return bookstore.Invalid("copies", "Invalid copies value")
	}
	if p.Price != nil {
		if err := validAmount("price", *p.Price, true, "Invalid price"); err != nil {
			return err
		}
	}
	if p.Genre != nil {
		g, err := bookstore.NormalizeGenres(p.Genre)
		if err != nil {
			return err
		}
		p.Genre = g
	}
	return nil
}

// ownedBook locks the book and its store and checks the caller owns both.
func ownedBook(ctx context.Context, tx bookstore.Tx, p bookstore.Principal, id, denied string) (*bookstore.Book, *bookstore.Store, error) {
	book, err := tx.LockBook(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "Book not found")
	}
	if book.OwnerID != p.UserID {
		return nil, nil, bookstore.Reject(bookstore.ErrForbidden, denied)
	}
	store, err := tx.LockStore(ctx, book.StoreID)
	if err != nil {
		return nil, nil, notFound(err, "Store not found")
	}
	if store.OwnerID != p.UserID || p.StoreID != store.ID {
		return nil, nil, bookstore.Reject(bookstore.ErrForbidden, "Not your store")
	}
	return book, store, nil
}

// CreateBook lists a new book in the caller's store. With capital
// reservation on, the store pays price × copies up front in the same unit.
func (s *Service) CreateBook(ctx context.Context, p bookstore.Principal, in CreateBookInput) (*inventory.Result, error) {
	if err := p.Require(bookstore.RoleOwner); err != nil {
		return nil, err
	}
	if p.StoreID == "" {
		return nil, bookstore.Reject(bookstore.ErrForbidden, "Owner has no store")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var res *inventory.Result
	err := s.run(ctx, "create_book", func(ctx context.Context, tx bookstore.Tx, pr *progress) error {
		store, err := tx.LockStore(ctx, p.StoreID)
		if err != nil {
			return notFound(err, "Store not found")
		}
		if store.OwnerID != p.UserID {
			return bookstore.Reject(bookstore.ErrForbidden, "Not your store")
		}
		book := &bookstore.Book{
			ID:          uuid.NewString(),
			Title:       in.Title,
			Author:      in.Author,
			PublishYear: *in.PublishYear,
			Copies:      *in.Copies,
			Description: in.Description,
			StoreID:     store.ID,
			OwnerID:     p.UserID,
			Price:       *in.Price,
			Genre:       in.Genre,
		}
		pr.at("validated", "store_id", store.ID, "book_id", book.ID, "value", book.Value().String())

		res = &inventory.Result{Book: book, StoreBalance: store.Balance}
		if s.Opts.ReserveCapitalOnCreate {
			r, err := s.Inventory.Reserve(ctx, tx, book, store)
			if err != nil {
				return err
			}
			res = r
			pr.at("capital_reserved")
		}
		if err := tx.InsertBook(ctx, book); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitLedger(ctx, res.Book.ID, res.Entries...)
	s.Log.Info("book created", "book_id", res.Book.ID, "store_id", res.Book.StoreID, "copies", res.Book.Copies)
	return res, nil
}

// UpdateBook applies patch and settles any change in inventory value with the
// store before persisting.
func (s *Service) UpdateBook(ctx context.Context, p bookstore.Principal, id string, patch BookPatch) (*inventory.Result, error) {
	if err := p.Require(bookstore.RoleOwner); err != nil {
		return nil, err
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}

	var res *inventory.Result
	err := s.run(ctx, "update_book", func(ctx context.Context, tx bookstore.Tx, pr *progress) error {
		book, store, err := ownedBook(ctx, tx, p, id, "Not authorized to update this book")
		if err != nil {
			return err
		}
		newPrice, newCopies := book.Price, book.Copies
		if patch.Price != nil {
			newPrice = *patch.Price
		}
		if patch.Copies != nil {
			newCopies = *patch.Copies
		}
		pr.at("validated", "book_id", book.ID, "store_id", store.ID,
			"old_value", book.Value().String(), "new_price", newPrice.String(), "new_copies", newCopies)

		r, err := s.Inventory.Revalue(ctx, tx, book, store, newPrice, newCopies)
		if err != nil {
			return err
		}
		pr.at("revalued")

		book.Price, book.Copies = newPrice, newCopies
		if patch.Title != nil {
			book.Title = *patch.Title
		}
		if patch.Author != nil {
			book.Author = *patch.Author
		}
		if patch.PublishYear != nil {
			book.PublishYear = *patch.PublishYear
		}
		if patch.Description != nil {
			book.Description = *patch.Description
		}
		if patch.Genre != nil {
			book.Genre = patch.Genre
		}
		if err := tx.UpdateBook(ctx, book); err != nil {
			return err
		}
		r.Book = book
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.refreshBook(ctx, res.Book.ID)
	s.emitLedger(ctx, res.Book.ID, res.Entries...)
	return res, nil
}

// AdjustStock sets the book's copy count, charging or crediting the store.
func (s *Service) AdjustStock(ctx context.Context, p bookstore.Principal, id string, copies int) (*inventory.Result, error) {
	if err := p.Require(bookstore.RoleOwner); err != nil {
		return nil, err
	}
	if copies < 0 {
		return nil, bookstore.Invalid("copies", "Invalid copies value")
	}

	var res *inventory.Result
	err := s.run(ctx, "adjust_stock", func(ctx context.Context, tx bookstore.Tx, pr *progress) error {
		book, store, err := ownedBook(ctx, tx, p, id, "Not authorized to update stock")
		if err != nil {
			return err
		}
		pr.at("validated", "book_id", book.ID, "store_id", store.ID, "old_copies", book.Copies, "new_copies", copies)
		r, err := s.Inventory.AdjustStock(ctx, tx, book, store, copies, p.StoreID)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.refreshBook(ctx, res.Book.ID)
	s.emitLedger(ctx, res.Book.ID, res.Entries...)
	return res, nil
}

// DeleteBook refunds price × copies to the store and removes the book.
// Result.Amount is the refund.
func (s *Service) DeleteBook(ctx context.Context, p bookstore.Principal, id string) (*inventory.Result, error) {
	if err := p.Require(bookstore.RoleOwner); err != nil {
		return nil, err
	}

	var res *inventory.Result
	err := s.run(ctx, "delete_book", func(ctx context.Context, tx bookstore.Tx, pr *progress) error {
		book, store, err := ownedBook(ctx, tx, p, id, "Not authorized to delete this book")
		if err != nil {
			return err
		}
		pr.at("validated", "book_id", book.ID, "store_id", store.ID, "refund", book.Value().String())
		r, err := s.Inventory.Liquidate(ctx, tx, book, store)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Cache.EvictBook(ctx, res.Book.ID)
	s.emitLedger(ctx, res.Book.ID, res.Entries...)
	s.emit(ctx, bookstore.EventBookDeleted, res.Book.StoreID, res.Book.ID, bookstore.BookDeletedPayload{
		BookID:  res.Book.ID,
		StoreID: res.Book.StoreID,
		Refund:  res.Amount,
	})
	s.Log.Info("book deleted", "book_id", res.Book.ID, "store_id", res.Book.StoreID, "refund", res.Amount.String())
	return res, nil
}
