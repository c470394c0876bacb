// Package commerce runs the money-and-inventory workflows. Each exported
// operation is one atomic unit against the entity store; cache and event side
// effects happen only after the unit commits.
package commerce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/inventory"
	"github.com/ariefcatur/go-bookstore-ledger/internal/ledger"
	"github.com/ariefcatur/go-bookstore-ledger/internal/logger"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// Cache is the book cache and the buy-request fast path. PutBook must keep
// the entry holding the highest Book.Version. Implementations are
// best-effort; the entity store stays authoritative.
type Cache interface {
	GetBook(ctx context.Context, id string) (*bookstore.Book, bool)
	PutBook(ctx context.Context, b *bookstore.Book)
	EvictBook(ctx context.Context, id string)
	LookupRequest(ctx context.Context, userID, key string) (orderID string, ok bool)
	RememberRequest(ctx context.Context, userID, key, orderID string)
}

// Publisher is satisfied by the kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Options struct {
	OperationTimeout       time.Duration
	ReserveCapitalOnCreate bool
	DefaultMarginPercent   decimal.Decimal
	ServiceName            string
	BcryptCost             int
}

func DefaultOptions() Options {
	return Options{
		OperationTimeout:       10 * time.Second,
		ReserveCapitalOnCreate: true,
		DefaultMarginPercent:   decimal.NewFromInt(10),
		ServiceName:            "bookstore-api",
		BcryptCost:             10,
	}
}

type Service struct {
	Store     bookstore.Repository
	Ledger    *ledger.Engine
	Inventory *inventory.Engine
	Cache     Cache
	Events    Publisher
	Log       *slog.Logger
	Opts      Options
}

// New wires a service over store. cache and events may be nil.
func New(store bookstore.Repository, cache Cache, events Publisher, opts Options) *Service {
	l := ledger.New()
	if cache == nil {
		cache = noCache{}
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = DefaultOptions().OperationTimeout
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = DefaultOptions().BcryptCost
	}
	return &Service{
		Store:     store,
		Ledger:    l,
		Inventory: inventory.New(l),
		Cache:     cache,
		Events:    events,
		Log:       logger.WithService("commerce"),
		Opts:      opts,
	}
}

// progress tracks how far a unit got, for the integrity log.
type progress struct {
	step    string
	mutated bool
	attrs   []any
}

// at records the step reached and extra log attributes.
func (p *progress) at(step string, kv ...any) {
	p.step = step
	p.attrs = append(p.attrs, kv...)
}

// trackedTx flags the unit as mutated on the first successful write.
type trackedTx struct {
	bookstore.Tx
	p *progress
}

func (t *trackedTx) wrote(err error) error {
	if err == nil {
		t.p.mutated = true
	}
	return err
}

func (t *trackedTx) InsertUser(ctx context.Context, u *bookstore.User) error {
	return t.wrote(t.Tx.InsertUser(ctx, u))
}

func (t *trackedTx) InsertStore(ctx context.Context, st *bookstore.Store) error {
	return t.wrote(t.Tx.InsertStore(ctx, st))
}

func (t *trackedTx) LinkUserStore(ctx context.Context, userID, storeID string) error {
	return t.wrote(t.Tx.LinkUserStore(ctx, userID, storeID))
}

func (t *trackedTx) AdjustUserBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	v, err := t.Tx.AdjustUserBalance(ctx, id, delta)
	return v, t.wrote(err)
}

func (t *trackedTx) AdjustStoreBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	v, err := t.Tx.AdjustStoreBalance(ctx, id, delta)
	return v, t.wrote(err)
}

func (t *trackedTx) InsertTransaction(ctx context.Context, tr *bookstore.Transaction) error {
	return t.wrote(t.Tx.InsertTransaction(ctx, tr))
}

func (t *trackedTx) InsertBook(ctx context.Context, b *bookstore.Book) error {
	return t.wrote(t.Tx.InsertBook(ctx, b))
}

func (t *trackedTx) UpdateBook(ctx context.Context, b *bookstore.Book) error {
	return t.wrote(t.Tx.UpdateBook(ctx, b))
}

func (t *trackedTx) AdjustBookCopies(ctx context.Context, id string, delta int) (int, error) {
	n, err := t.Tx.AdjustBookCopies(ctx, id, delta)
	return n, t.wrote(err)
}

func (t *trackedTx) DeleteBook(ctx context.Context, id string) error {
	return t.wrote(t.Tx.DeleteBook(ctx, id))
}

func (t *trackedTx) InsertOrder(ctx context.Context, o *bookstore.Order) error {
	return t.wrote(t.Tx.InsertOrder(ctx, o))
}

// run executes fn as one unit. The unit is detached from the caller's
// cancellation and bounded by OperationTimeout instead, so a dropped client
// cannot cut it short. A non-business failure after the first write is
// logged with full context and reported as ErrIntegrity.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, tx bookstore.Tx, p *progress) error) error {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	p := &progress{step: "validated"}
	err := s.Store.WithTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		return fn(ctx, &trackedTx{Tx: tx, p: p}, p)
	})
	if err == nil || bookstore.IsBusiness(err) {
		return err
	}
	attrs := append([]any{"op", op, "step", p.step, "error", err}, p.attrs...)
	if p.mutated {
		s.Log.Error("integrity failure: unit rolled back", attrs...)
		return fmt.Errorf("%w: %s aborted at %s: %v", bookstore.ErrIntegrity, op, p.step, err)
	}
	s.Log.Error("unit failed", attrs...)
	return fmt.Errorf("%s: %w", op, err)
}

// detach keeps ctx values but drops its cancellation, bounding the unit by
// OperationTimeout instead.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.Opts.OperationTimeout)
}

// refreshBook writes the committed book through to the cache.
func (s *Service) refreshBook(ctx context.Context, id string) {
	b, err := s.Store.GetBook(ctx, id)
	if err != nil {
		s.Log.Warn("book cache refresh failed", "book_id", id, "error", err)
		return
	}
	s.Cache.PutBook(ctx, b)
}

// notFound rewrites a store miss into the client-facing message.
func notFound(err error, msg string) error {
	if bookstore.IsNotFound(err) {
		return bookstore.Reject(bookstore.ErrNotFound, msg)
	}
	return err
}

// validAmount checks a money input: positive (or non-negative when
// allowZero), in cents. msg is the client-facing message for the sign check.
func validAmount(field string, d decimal.Decimal, allowZero bool, msg string) error {
	if d.IsNegative() || (!allowZero && d.IsZero()) {
		return bookstore.Invalid(field, msg)
	}
	if !d.Equal(d.Round(2)) {
		return bookstore.Invalid(field, "at most 2 decimal places")
	}
	return nil
}

type noCache struct{}

func (noCache) GetBook(context.Context, string) (*bookstore.Book, bool)      { return nil, false }
func (noCache) PutBook(context.Context, *bookstore.Book)                     {}
func (noCache) EvictBook(context.Context, string)                            {}
func (noCache) LookupRequest(context.Context, string, string) (string, bool) { return "", false }
func (noCache) RememberRequest(context.Context, string, string, string)      {}
