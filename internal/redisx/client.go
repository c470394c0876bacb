package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb redis.Cmdable, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Processed reports whether service already handled event id.
func Processed(ctx context.Context, rdb redis.Cmdable, service, id string) (bool, error) {
	return Exists(ctx, rdb, fmt.Sprintf(KeyDedup, service, id))
}

// MarkProcessed records event id as handled by service.
func MarkProcessed(ctx context.Context, rdb redis.Cmdable, service, id string) error {
	return rdb.Set(ctx, fmt.Sprintf(KeyDedup, service, id), "1", TTLDedup).Err()
}
