package commerce

import (
	"context"
	"errors"
	"strings"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxRequestKeyLen = 128

type BuyInput struct {
	BookID     string
	Quantity   int
	RequestKey string // optional; repeats of the same key return the first result
}

type BuyResult struct {
	Order        *bookstore.Order         `json:"order"`
	Transactions []*bookstore.Transaction `json:"transactions"`
	StoreBalance decimal.Decimal          `json:"storeBalance"`
	Replayed     bool                     `json:"replayed,omitempty"`
}

func (in *BuyInput) validate() error {
	in.BookID = strings.TrimSpace(in.BookID)
	in.RequestKey = strings.TrimSpace(in.RequestKey)
	if in.BookID == "" {
		return bookstore.Invalid("bookId", "Book id is required")
	}
	if in.Quantity <= 0 {
		return bookstore.Invalid("quantity", "Invalid quantity")
	}
	if len(in.RequestKey) > maxRequestKeyLen {
		return bookstore.Invalid("requestKey", "Idempotency key too long")
	}
	return nil
}

// Buy debits the user, takes the copies out of stock, credits the store its
// margin and records the Order, all in one unit.
func (s *Service) Buy(ctx context.Context, p bookstore.Principal, in BuyInput) (*BuyResult, error) {
	if err := p.Require(bookstore.RoleUser); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	if in.RequestKey != "" {
		if orderID, ok := s.Cache.LookupRequest(ctx, p.UserID, in.RequestKey); ok {
			if res, err := s.replayOrder(ctx, s.Store, orderID, p.UserID, in); err == nil {
				return res, nil
			}
		}
	}

	var res *BuyResult
	err := s.run(ctx, "buy", func(ctx context.Context, tx bookstore.Tx, pr *progress) error {
		res = nil
		if in.RequestKey != "" {
			prior, err := tx.FindOrderByRequestKey(ctx, p.UserID, in.RequestKey)
			switch {
			case err == nil:
				r, err := s.replayOrder(ctx, tx, prior.ID, p.UserID, in)
				if err != nil {
					return err
				}
				res = r
				return nil
			case !bookstore.IsNotFound(err):
				return err
			}
		}

		user, err := tx.LockUser(ctx, p.UserID)
		if err != nil {
			return notFound(err, "User not found")
		}
		book, err := tx.LockBook(ctx, in.BookID)
		if err != nil {
			return notFound(err, "Book not found")
		}
		if book.Copies < in.Quantity {
			return bookstore.Reject(bookstore.ErrInsufficientStock, "Not enough copies available")
		}
		store, err := tx.LockStore(ctx, book.StoreID)
		if err != nil {
			return notFound(err, "Store not found")
		}

		total := bookstore.Round(book.Price.Mul(decimal.NewFromInt(int64(in.Quantity))))
		if user.Balance.LessThan(total) {
			return bookstore.Reject(bookstore.ErrInsufficientFunds, "Insufficient user balance")
		}
		order := &bookstore.Order{
			ID:         uuid.NewString(),
			UserID:     user.ID,
			StoreID:    store.ID,
			BookID:     book.ID,
			Quantity:   in.Quantity,
			PricePaid:  total,
			Status:     bookstore.OrderSuccess,
			RequestKey: in.RequestKey,
		}
		pr.at("validated", "user_id", user.ID, "book_id", book.ID, "store_id", store.ID,
			"order_id", order.ID, "total", total.String())
		ref := bookstore.Reference{BookID: book.ID, OrderID: order.ID}
		out := &BuyResult{Order: order, StoreBalance: store.Balance}

		// A free book moves no money; the Order is still recorded.
		if total.IsPositive() {
			en := ledger.UserEntry(user.ID, bookstore.TxBookPurchase, bookstore.Debit, total)
			en.StoreID, en.OwnerID, en.Reference = store.ID, store.OwnerID, ref
			debit, err := s.Ledger.Apply(ctx, tx, en)
			if err != nil {
				return err
			}
			out.Transactions = append(out.Transactions, debit)
			pr.at("funds_reserved")
		}

		sold, err := s.Inventory.Sell(ctx, tx, book, store, in.Quantity, total, ref)
		if err != nil {
			return err
		}
		pr.at("margin_credited", "margin", sold.Amount.String())
		out.Transactions = append(out.Transactions, sold.Entries...)
		out.StoreBalance = sold.StoreBalance
		if len(sold.Entries) > 0 {
			order.MarginEarned = sold.Amount
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		pr.at("order_recorded")
		res = out
		return nil
	})
	if errors.Is(err, bookstore.ErrDuplicateRequest) {
		// Lost the race to a concurrent request with the same key.
		return s.replayByKey(ctx, p.UserID, in)
	}
	if err != nil {
		return nil, err
	}

	if in.RequestKey != "" {
		s.Cache.RememberRequest(ctx, p.UserID, in.RequestKey, res.Order.ID)
	}
	if res.Replayed {
		return res, nil
	}
	s.refreshBook(ctx, res.Order.BookID)
	s.emitLedger(ctx, res.Order.ID, res.Transactions...)
	s.emit(ctx, bookstore.EventOrderPlaced, res.Order.UserID, res.Order.ID, bookstore.OrderPlacedPayload{
		OrderID:      res.Order.ID,
		UserID:       res.Order.UserID,
		StoreID:      res.Order.StoreID,
		BookID:       res.Order.BookID,
		Quantity:     res.Order.Quantity,
		PricePaid:    res.Order.PricePaid,
		MarginEarned: res.Order.MarginEarned,
	})
	s.Log.Info("order placed", "order_id", res.Order.ID, "user_id", res.Order.UserID,
		"book_id", res.Order.BookID, "quantity", res.Order.Quantity, "total", res.Order.PricePaid.String())
	return res, nil
}

func (s *Service) replayByKey(ctx context.Context, userID string, in BuyInput) (*BuyResult, error) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	var res *BuyResult
	err := s.Store.WithTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		o, err := tx.FindOrderByRequestKey(ctx, userID, in.RequestKey)
		if err != nil {
			return err
		}
		res, err = s.replayOrder(ctx, tx, o.ID, userID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// replayOrder rebuilds the result of an earlier purchase. A key reused for a
// different book or quantity is a conflict, not a replay.
func (s *Service) replayOrder(ctx context.Context, r bookstore.Reader, orderID, userID string, in BuyInput) (*BuyResult, error) {
	o, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, bookstore.ErrOrderNotFound
	}
	if o.BookID != in.BookID || o.Quantity != in.Quantity {
		return nil, bookstore.Reject(bookstore.ErrConflict, "Idempotency key already used for a different purchase")
	}
	txs, err := r.ListTransactions(ctx, bookstore.TransactionFilter{OrderID: o.ID})
	if err != nil {
		return nil, err
	}
	res := &BuyResult{Order: o, Replayed: true}
	for i := range txs {
		t := txs[i]
		res.Transactions = append(res.Transactions, &t)
	}
	st, err := r.GetStore(ctx, o.StoreID)
	if err != nil {
		return nil, err
	}
	res.StoreBalance = st.Balance
	return res, nil
}
