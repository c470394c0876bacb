// Package memstore is an in-process bookstore.Repository. A unit works on a staged
// copy of the whole state under one mutex and swaps it in on success, so units
// are serializable and a failed unit leaves nothing behind.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/shopspring/decimal"
)

type state struct {
	users  map[string]*bookstore.User
	stores map[string]*bookstore.Store
	books  map[string]*bookstore.Book
	orders []*bookstore.Order
	txs    []*bookstore.Transaction
	seq    int64
}

func (s *state) clone() *state {
	c := &state{
		users:  make(map[string]*bookstore.User, len(s.users)),
		stores: make(map[string]*bookstore.Store, len(s.stores)),
		books:  make(map[string]*bookstore.Book, len(s.books)),
		orders: append([]*bookstore.Order(nil), s.orders...),
		txs:    append([]*bookstore.Transaction(nil), s.txs...),
		seq:    s.seq,
	}
	for k, v := range s.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range s.stores {
		st := *v
		c.stores[k] = &st
	}
	for k, v := range s.books {
		c.books[k] = v.Clone()
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	state *state
	fail  map[string]error
	now   func() time.Time
}

func New() *Store {
	return &Store{
		state: &state{
			users:  map[string]*bookstore.User{},
			stores: map[string]*bookstore.Store{},
			books:  map[string]*bookstore.Book{},
		},
		fail: map[string]error{},
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// FailNext makes the next call to the named Tx method (e.g. "InsertTransaction")
// return err. Used to exercise rollback paths.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

// WithTx runs fn against a staged copy. fn must use only the Tx it is given.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx bookstore.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{reader: reader{st: s.state.clone()}, parent: s}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = t.st
	return nil
}

func (s *Store) read() *reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &reader{st: s.state}
}

func (s *Store) GetUser(ctx context.Context, id string) (*bookstore.User, error) {
	return s.read().GetUser(ctx, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*bookstore.User, error) {
	return s.read().GetUserByEmail(ctx, email)
}

func (s *Store) GetStore(ctx context.Context, id string) (*bookstore.Store, error) {
	return s.read().GetStore(ctx, id)
}

func (s *Store) GetStoreByOwner(ctx context.Context, ownerID string) (*bookstore.Store, error) {
	return s.read().GetStoreByOwner(ctx, ownerID)
}

func (s *Store) GetBook(ctx context.Context, id string) (*bookstore.Book, error) {
	return s.read().GetBook(ctx, id)
}

func (s *Store) ListBooks(ctx context.Context, f bookstore.BookFilter) ([]bookstore.Book, error) {
	return s.read().ListBooks(ctx, f)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*bookstore.Order, error) {
	return s.read().GetOrder(ctx, id)
}

func (s *Store) ListOrders(ctx context.Context, f bookstore.OrderFilter) ([]bookstore.Order, error) {
	return s.read().ListOrders(ctx, f)
}

func (s *Store) ListTransactions(ctx context.Context, f bookstore.TransactionFilter) ([]bookstore.Transaction, error) {
	return s.read().ListTransactions(ctx, f)
}

// reader serves reads from one state snapshot. The committed state is never
// mutated in place (units swap in a fresh copy), so a snapshot stays valid.
type reader struct{ st *state }

func (r *reader) GetUser(_ context.Context, id string) (*bookstore.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, bookstore.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *reader) GetUserByEmail(_ context.Context, email string) (*bookstore.User, error) {
	for _, u := range r.st.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, bookstore.ErrUserNotFound
}

func (r *reader) GetStore(_ context.Context, id string) (*bookstore.Store, error) {
	s, ok := r.st.stores[id]
	if !ok {
		return nil, bookstore.ErrStoreNotFound
	}
	c := *s
	return &c, nil
}

func (r *reader) GetStoreByOwner(_ context.Context, ownerID string) (*bookstore.Store, error) {
	for _, s := range r.st.stores {
		if s.OwnerID == ownerID {
			c := *s
			return &c, nil
		}
	}
	return nil, bookstore.ErrStoreNotFound
}

func (r *reader) GetBook(_ context.Context, id string) (*bookstore.Book, error) {
	b, ok := r.st.books[id]
	if !ok {
		return nil, bookstore.ErrBookNotFound
	}
	return b.Clone(), nil
}

func (r *reader) ListBooks(_ context.Context, f bookstore.BookFilter) ([]bookstore.Book, error) {
	out := make([]bookstore.Book, 0, len(r.st.books))
	for _, b := range r.st.books {
		if f.StoreID != "" && b.StoreID != f.StoreID {
			continue
		}
		if f.OwnerID != "" && b.OwnerID != f.OwnerID {
			continue
		}
		out = append(out, *b.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *reader) GetOrder(_ context.Context, id string) (*bookstore.Order, error) {
	for _, o := range r.st.orders {
		if o.ID == id {
			c := *o
			return &c, nil
		}
	}
	return nil, bookstore.ErrOrderNotFound
}

func (r *reader) ListOrders(_ context.Context, f bookstore.OrderFilter) ([]bookstore.Order, error) {
	var out []bookstore.Order
	for _, o := range r.st.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.StoreID != "" && o.StoreID != f.StoreID {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (r *reader) ListTransactions(_ context.Context, f bookstore.TransactionFilter) ([]bookstore.Transaction, error) {
	var out []bookstore.Transaction
	for _, t := range r.st.txs {
		if f.Matches(t) {
			out = append(out, *t)
		}
	}
	return out, nil
}

// tx reads and mutates its private staged state.
type tx struct {
	reader
	parent *Store
}

func (t *tx) injected(op string) error {
	if err, ok := t.parent.fail[op]; ok {
		delete(t.parent.fail, op)
		return err
	}
	return nil
}

func (t *tx) LockUser(ctx context.Context, id string) (*bookstore.User, error) {
	return t.GetUser(ctx, id)
}

func (t *tx) LockStore(ctx context.Context, id string) (*bookstore.Store, error) {
	return t.GetStore(ctx, id)
}

func (t *tx) LockBook(ctx context.Context, id string) (*bookstore.Book, error) {
	if err := t.injected("LockBook"); err != nil {
		return nil, err
	}
	return t.GetBook(ctx, id)
}

func (t *tx) InsertUser(_ context.Context, u *bookstore.User) error {
	if err := t.injected("InsertUser"); err != nil {
		return err
	}
	for _, x := range t.st.users {
		if x.Email == u.Email {
			return bookstore.ErrEmailTaken
		}
	}
	now := t.parent.now()
	u.CreatedAt, u.UpdatedAt = now, now
	c := *u
	t.st.users[u.ID] = &c
	return nil
}

func (t *tx) InsertStore(_ context.Context, s *bookstore.Store) error {
	if err := t.injected("InsertStore"); err != nil {
		return err
	}
	for _, x := range t.st.stores {
		if x.OwnerID == s.OwnerID {
			return bookstore.ErrStoreExists
		}
	}
	now := t.parent.now()
	s.CreatedAt, s.UpdatedAt = now, now
	c := *s
	t.st.stores[s.ID] = &c
	return nil
}

func (t *tx) LinkUserStore(_ context.Context, userID, storeID string) error {
	u, ok := t.st.users[userID]
	if !ok {
		return bookstore.ErrUserNotFound
	}
	u.StoreID = storeID
	u.UpdatedAt = t.parent.now()
	return nil
}

func (t *tx) AdjustUserBalance(_ context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := t.injected("AdjustUserBalance"); err != nil {
		return decimal.Zero, err
	}
	u, ok := t.st.users[id]
	if !ok {
		return decimal.Zero, bookstore.ErrUserNotFound
	}
	next := u.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, bookstore.ErrInsufficientFunds
	}
	u.Balance = next
	u.UpdatedAt = t.parent.now()
	return next, nil
}

func (t *tx) AdjustStoreBalance(_ context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := t.injected("AdjustStoreBalance"); err != nil {
		return decimal.Zero, err
	}
	s, ok := t.st.stores[id]
	if !ok {
		return decimal.Zero, bookstore.ErrStoreNotFound
	}
	next := s.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, bookstore.ErrInsufficientFunds
	}
	s.Balance = next
	s.UpdatedAt = t.parent.now()
	return next, nil
}

func (t *tx) InsertTransaction(_ context.Context, tr *bookstore.Transaction) error {
	if err := t.injected("InsertTransaction"); err != nil {
		return err
	}
	t.st.seq++
	tr.Seq = t.st.seq
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = t.parent.now()
	}
	c := *tr
	t.st.txs = append(t.st.txs, &c)
	return nil
}

func (t *tx) InsertBook(_ context.Context, b *bookstore.Book) error {
	if err := t.injected("InsertBook"); err != nil {
		return err
	}
	now := t.parent.now()
	b.CreatedAt, b.UpdatedAt = now, now
	b.Version = 1
	t.st.books[b.ID] = b.Clone()
	return nil
}

func (t *tx) UpdateBook(_ context.Context, b *bookstore.Book) error {
	if err := t.injected("UpdateBook"); err != nil {
		return err
	}
	cur, ok := t.st.books[b.ID]
	if !ok {
		return bookstore.ErrBookNotFound
	}
	if b.Copies < 0 {
		return bookstore.ErrInsufficientStock
	}
	b.StoreID, b.OwnerID, b.CreatedAt = cur.StoreID, cur.OwnerID, cur.CreatedAt
	b.Version = cur.Version + 1
	b.UpdatedAt = t.parent.now()
	t.st.books[b.ID] = b.Clone()
	return nil
}

func (t *tx) AdjustBookCopies(_ context.Context, id string, delta int) (int, error) {
	if err := t.injected("AdjustBookCopies"); err != nil {
		return 0, err
	}
	b, ok := t.st.books[id]
	if !ok {
		return 0, bookstore.ErrBookNotFound
	}
	if b.Copies+delta < 0 {
		return 0, bookstore.ErrInsufficientStock
	}
	b.Copies += delta
	b.Version++
	b.UpdatedAt = t.parent.now()
	return b.Copies, nil
}

func (t *tx) DeleteBook(_ context.Context, id string) error {
	if err := t.injected("DeleteBook"); err != nil {
		return err
	}
	if _, ok := t.st.books[id]; !ok {
		return bookstore.ErrBookNotFound
	}
	delete(t.st.books, id)
	return nil
}

func (t *tx) InsertOrder(_ context.Context, o *bookstore.Order) error {
	if err := t.injected("InsertOrder"); err != nil {
		return err
	}
	if o.RequestKey != "" {
		for _, x := range t.st.orders {
			if x.UserID == o.UserID && x.RequestKey == o.RequestKey {
				return bookstore.ErrDuplicateRequest
			}
		}
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = t.parent.now()
	}
	c := *o
	t.st.orders = append(t.st.orders, &c)
	return nil
}

func (t *tx) FindOrderByRequestKey(_ context.Context, userID, key string) (*bookstore.Order, error) {
	for _, o := range t.st.orders {
		if o.UserID == userID && o.RequestKey == key {
			c := *o
			return &c, nil
		}
	}
	return nil, bookstore.ErrOrderNotFound
}
