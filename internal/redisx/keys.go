package redisx

import "time"

const (
	// Buy idempotency: idem:buy:{user_id}:{request_key} -> order_id
	KeyIdemBuy = "idem:buy:%s:%s"

	// Book read cache: book:{book_id} -> "{version}|{JSON book}"
	KeyBook = "book:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLBookCache   = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
