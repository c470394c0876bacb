package redisx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/redis/go-redis/v9"
)

// Cache holds book reads and buy-request pointers. Every method is
// best-effort: Redis errors are logged and treated as a miss.
type Cache struct {
	rdb redis.Cmdable
	log *slog.Logger
}

func NewCache(rdb redis.Cmdable, log *slog.Logger) *Cache {
	return &Cache{rdb: rdb, log: log}
}

func (c *Cache) warn(op, key string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warn("redis "+op+" failed", "key", key, "error", err)
	}
}

// Book entries are stored as "<version>|<json>". putNewer only replaces an
// entry holding an older version, so a slow reader cannot overwrite what a
// later write put there.
var putNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local v = tonumber(string.match(cur, '^(%d+)|'))
	if v and v >= tonumber(ARGV[1]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1] .. '|' .. ARGV[2], 'PX', ARGV[3])
return 1
`)

// tombstone outranks every real version; a deleted book stays uncacheable
// until the entry expires.
const tombstone = math.MaxInt64

func (c *Cache) GetBook(ctx context.Context, id string) (*bookstore.Book, bool) {
	key := fmt.Sprintf(KeyBook, id)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		c.warn("get", key, err)
		return nil, false
	}
	ver, body, ok := bytes.Cut(raw, []byte("|"))
	if !ok {
		c.warn("decode", key, errors.New("missing version prefix"))
		return nil, false
	}
	if v, err := strconv.ParseInt(string(ver), 10, 64); err != nil || v == tombstone {
		return nil, false
	}
	var b bookstore.Book
	if err := json.Unmarshal(body, &b); err != nil {
		c.warn("decode", key, err)
		return nil, false
	}
	return &b, true
}

// PutBook caches b unless the entry already holds the same or a newer version.
func (c *Cache) PutBook(ctx context.Context, b *bookstore.Book) {
	key := fmt.Sprintf(KeyBook, b.ID)
	raw, err := json.Marshal(b)
	if err != nil {
		c.warn("encode", key, err)
		return
	}
	c.put(ctx, key, b.Version, raw)
}

// EvictBook marks a deleted book so no in-flight read can cache it again.
func (c *Cache) EvictBook(ctx context.Context, id string) {
	c.put(ctx, fmt.Sprintf(KeyBook, id), tombstone, nil)
}

func (c *Cache) put(ctx context.Context, key string, version int64, raw []byte) {
	err := putNewer.Run(ctx, c.rdb, []string{key},
		strconv.FormatInt(version, 10), raw, TTLBookCache.Milliseconds()).Err()
	c.warn("set", key, err)
}

func (c *Cache) LookupRequest(ctx context.Context, userID, requestKey string) (string, bool) {
	key := fmt.Sprintf(KeyIdemBuy, userID, requestKey)
	id, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		c.warn("get", key, err)
		return "", false
	}
	return id, id != ""
}

func (c *Cache) RememberRequest(ctx context.Context, userID, requestKey, orderID string) {
	key := fmt.Sprintf(KeyIdemBuy, userID, requestKey)
	c.warn("set", key, c.rdb.Set(ctx, key, orderID, TTLIdempotency).Err())
}
