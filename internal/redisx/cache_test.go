package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCache_BookRoundTripAndExpiry(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewCache(rdb, logger.Discard())
	ctx := context.Background()

	_, ok := c.GetBook(ctx, "b1")
	assert.False(t, ok)

	c.PutBook(ctx, &bookstore.Book{ID: "b1", Title: "Dune", Copies: 3, Version: 1, Price: decimal.RequireFromString("12.50"),
		Genre: []bookstore.Genre{bookstore.GenreSciFi}})
	got, ok := c.GetBook(ctx, "b1")
	require.True(t, ok)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, []bookstore.Genre{bookstore.GenreSciFi}, got.Genre)

	mr.FastForward(TTLBookCache + time.Second)
	_, ok = c.GetBook(ctx, "b1")
	assert.False(t, ok)
}

func TestCache_OlderVersionNeverReplacesNewer(t *testing.T) {
	_, rdb := newRedis(t)
	c := NewCache(rdb, logger.Discard())
	ctx := context.Background()

	// A reader that loaded version 1 finishes after the write of version 2.
	c.PutBook(ctx, &bookstore.Book{ID: "b1", Copies: 7, Version: 2})
	c.PutBook(ctx, &bookstore.Book{ID: "b1", Copies: 8, Version: 1})

	got, ok := c.GetBook(ctx, "b1")
	require.True(t, ok)
	assert.Equal(t, 7, got.Copies)
	assert.Equal(t, int64(2), got.Version)

	c.PutBook(ctx, &bookstore.Book{ID: "b1", Copies: 6, Version: 3})
	got, ok = c.GetBook(ctx, "b1")
	require.True(t, ok)
	assert.Equal(t, 6, got.Copies)
}

func TestCache_EvictedBookStaysUncached(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewCache(rdb, logger.Discard())
	ctx := context.Background()

	c.PutBook(ctx, &bookstore.Book{ID: "b1", Version: 4})
	c.EvictBook(ctx, "b1")
	_, ok := c.GetBook(ctx, "b1")
	assert.False(t, ok)

	c.PutBook(ctx, &bookstore.Book{ID: "b1", Version: 5})
	_, ok = c.GetBook(ctx, "b1")
	assert.False(t, ok)

	mr.FastForward(TTLBookCache + time.Second)
	assert.False(t, mr.Exists("book:b1"))
}

func TestCache_LegacyEntryIsAMiss(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewCache(rdb, logger.Discard())
	ctx := context.Background()

	require.NoError(t, mr.Set("book:b1", `{"id":"b1"}`))
	_, ok := c.GetBook(ctx, "b1")
	assert.False(t, ok)

	c.PutBook(ctx, &bookstore.Book{ID: "b1", Title: "Dune", Version: 1})
	got, ok := c.GetBook(ctx, "b1")
	require.True(t, ok)
	assert.Equal(t, "Dune", got.Title)
}

func TestCache_RequestPointers(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewCache(rdb, logger.Discard())
	ctx := context.Background()

	c.RememberRequest(ctx, "u1", "k1", "o1")
	id, ok := c.LookupRequest(ctx, "u1", "k1")
	require.True(t, ok)
	assert.Equal(t, "o1", id)
	_, ok = c.LookupRequest(ctx, "u2", "k1")
	assert.False(t, ok)

	ttl := mr.TTL("idem:buy:u1:k1")
	assert.Equal(t, TTLIdempotency, ttl)
}

func TestCache_RedisDownIsAMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()
	c := NewCache(rdb, logger.Discard())

	_, ok := c.GetBook(context.Background(), "b1")
	assert.False(t, ok)
	c.PutBook(context.Background(), &bookstore.Book{ID: "b1"})
	_, ok = c.LookupRequest(context.Background(), "u1", "k1")
	assert.False(t, ok)
}

func TestDedupMarkers(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()

	seen, err := Processed(ctx, rdb, "auditor", "ev1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, MarkProcessed(ctx, rdb, "auditor", "ev1"))
	seen, err = Processed(ctx, rdb, "auditor", "ev1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = Processed(ctx, rdb, "other", "ev1")
	require.NoError(t, err)
	assert.False(t, seen)
}
