package commerce

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/logger"
	"github.com/ariefcatur/go-bookstore-ledger/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRedisCache(t *testing.T, w *world) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	w.svc.Cache = redisx.NewCache(rdb, logger.Discard())
}

func TestBookCache_SlowReaderCannotRestoreOldStock(t *testing.T) {
	w := newWorld(t, "200", "1000", "50", 10)
	withRedisCache(t, w)
	ctx := context.Background()

	// A reader loads the book, then stalls before filling the cache.
	stale, err := w.db.GetBook(ctx, w.book.ID)
	require.NoError(t, err)

	_, err = w.svc.Buy(ctx, w.user, BuyInput{BookID: w.book.ID, Quantity: 3})
	require.NoError(t, err)

	w.svc.Cache.PutBook(ctx, stale)

	got, err := w.svc.GetBook(ctx, w.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Copies)
	assert.Greater(t, got.Version, stale.Version)
}

func TestBookCache_WritesAreVisibleImmediately(t *testing.T) {
	w := newWorld(t, "0", "1000", "50", 10)
	withRedisCache(t, w)
	ctx := context.Background()

	_, err := w.svc.GetBook(ctx, w.book.ID)
	require.NoError(t, err)

	_, err = w.svc.AdjustStock(ctx, w.owner, w.book.ID, 12)
	require.NoError(t, err)
	got, err := w.svc.GetBook(ctx, w.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Copies)

	_, err = w.svc.UpdateBook(ctx, w.owner, w.book.ID, BookPatch{Title: ptr("Go in Production")})
	require.NoError(t, err)
	got, err = w.svc.GetBook(ctx, w.book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go in Production", got.Title)
	assert.Equal(t, 12, got.Copies)
}

func TestBookCache_DeletedBookIsNotRefilled(t *testing.T) {
	w := newWorld(t, "0", "100", "50", 7)
	withRedisCache(t, w)
	ctx := context.Background()

	stale, err := w.db.GetBook(ctx, w.book.ID)
	require.NoError(t, err)

	_, err = w.svc.DeleteBook(ctx, w.owner, w.book.ID)
	require.NoError(t, err)
	w.svc.Cache.PutBook(ctx, stale)

	_, err = w.svc.GetBook(ctx, w.book.ID)
	assert.True(t, bookstore.IsNotFound(err))
}
