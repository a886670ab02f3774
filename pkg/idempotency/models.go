package idempotency

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record tracks one deduplicated operation. The stored response is replayed to
// retried callers so a retry never repeats the side effects.
type Record struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Key       string             `bson:"key"`
	Scope     string             `bson:"scope"`
	Owner     string             `bson:"owner"`
	LockedAt  *time.Time         `bson:"lockedAt,omitempty"`
	Response  []byte             `bson:"response,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`

	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	ExpiresAt   time.Time  `bson:"expiresAt"`
}

// IsCompleted returns true if a response has been stored
func (r *Record) IsCompleted() bool {
	return r.CompletedAt != nil
}

// IsLocked returns true if the operation is still being processed
func (r *Record) IsLocked() bool {
	return r.LockedAt != nil && r.CompletedAt == nil
}

// ScopeScan is the scope used for scan submissions
const ScopeScan = "scan"

// ScanKey builds the deduplication key for one scan submission
func ScanKey(jobID string, originalIndex, attempt int) string {
	return fmt.Sprintf("%s:%d:%d", jobID, originalIndex, attempt)
}
