package redisx

import "time"

const (
	// Order summary cache: order:{order_id} -> order JSON as served by GET /orders/{id}
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderCache = 10 * time.Minute
	TTLDedup      = 48 * time.Hour
)
