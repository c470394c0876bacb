package commerce

import (
	"context"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/ledger"
)

// GetBook reads through the book cache.
func (s *Service) GetBook(ctx context.Context, id string) (*bookstore.Book, error) {
	if b, ok := s.Cache.GetBook(ctx, id); ok {
		return b, nil
	}
	b, err := s.Store.GetBook(ctx, id)
	if err != nil {
		return nil, notFound(err, "Book not found")
	}
	s.Cache.PutBook(ctx, b)
	return b, nil
}

func (s *Service) ListBooks(ctx context.Context, f bookstore.BookFilter) ([]bookstore.Book, error) {
	return s.Store.ListBooks(ctx, f)
}

func (s *Service) Me(ctx context.Context, p bookstore.Principal) (*bookstore.User, error) {
	if p.UserID == "" {
		return nil, bookstore.Reject(bookstore.ErrUnauthenticated, "Authentication required")
	}
	u, err := s.Store.GetUser(ctx, p.UserID)
	return u, notFound(err, "User not found")
}

func (s *Service) MyStore(ctx context.Context, p bookstore.Principal) (*bookstore.Store, error) {
	if err := p.Require(bookstore.RoleOwner); err != nil {
		return nil, err
	}
	st, err := s.Store.GetStoreByOwner(ctx, p.UserID)
	return st, notFound(err, "Store not found")
}

func (s *Service) ownStore(ctx context.Context, p bookstore.Principal, storeID string) (*bookstore.Store, error) {
	if err := p.Require(bookstore.RoleOwner); err != nil {
		return nil, err
	}
	st, err := s.Store.GetStore(ctx, storeID)
	if err != nil {
		return nil, notFound(err, "Store not found")
	}
	if st.OwnerID != p.UserID {
		return nil, bookstore.Reject(bookstore.ErrForbidden, "Not your store")
	}
	return st, nil
}

// StoreTransactions returns the store with its wallet movements, newest first.
func (s *Service) StoreTransactions(ctx context.Context, p bookstore.Principal, storeID string) (*bookstore.Store, []bookstore.Transaction, error) {
	st, err := s.ownStore(ctx, p, storeID)
	if err != nil {
		return nil, nil, err
	}
	txs, err := s.Store.ListTransactions(ctx, bookstore.TransactionFilter{StoreID: storeID, Wallet: true})
	if err != nil {
		return nil, nil, err
	}
	return st, newestFirst(txs), nil
}

// UserTransactions lists the caller's wallet movements, newest first.
func (s *Service) UserTransactions(ctx context.Context, p bookstore.Principal) ([]bookstore.Transaction, error) {
	if err := p.Require(bookstore.RoleUser); err != nil {
		return nil, err
	}
	txs, err := s.Store.ListTransactions(ctx, bookstore.TransactionFilter{UserID: p.UserID, Wallet: true})
	if err != nil {
		return nil, err
	}
	return newestFirst(txs), nil
}

func (s *Service) UserOrders(ctx context.Context, p bookstore.Principal) ([]bookstore.Order, error) {
	if err := p.Require(bookstore.RoleUser); err != nil {
		return nil, err
	}
	orders, err := s.Store.ListOrders(ctx, bookstore.OrderFilter{UserID: p.UserID})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(orders)-1; i < j; i, j = i+1, j-1 {
		orders[i], orders[j] = orders[j], orders[i]
	}
	return orders, nil
}

// VerifyStoreLedger replays the store's ledger against its balance.
func (s *Service) VerifyStoreLedger(ctx context.Context, p bookstore.Principal, storeID string) (*ledger.Report, error) {
	if _, err := s.ownStore(ctx, p, storeID); err != nil {
		return nil, err
	}
	rep, err := ledger.Verify(ctx, s.Store, bookstore.AccountStore, storeID)
	if err != nil {
		return nil, err
	}
	if !rep.OK() {
		s.Log.Error("integrity failure: store ledger diverges", "store_id", storeID,
			"replayed", rep.Replayed.String(), "balance", rep.Balance.String(), "mismatches", len(rep.Mismatches))
	}
	return rep, nil
}

func newestFirst(txs []bookstore.Transaction) []bookstore.Transaction {
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	return txs
}
