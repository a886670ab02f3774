package idempotency

import (
	"context"
	"time"
)

// Repository stores idempotency records.
// Implementations must make AcquireLock atomic per (scope, key).
type Repository interface {
	// AcquireLock returns the stored record for the key, creating and locking
	// it when absent. The boolean is true when this call created the record.
	AcquireLock(ctx context.Context, scope, key string, ttl time.Duration) (*Record, bool, error)

	// StoreResponse marks the record completed with its response payload
	StoreResponse(ctx context.Context, scope, key string, response []byte) error

	// ReleaseLock forgets an uncompleted record so the operation can be retried
	ReleaseLock(ctx context.Context, scope, key string) error
}
