package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository for single-instance deployments
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
}

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func memoryKey(scope, key string) string {
	return scope + "|" + key
}

// AcquireLock implements Repository
func (r *MemoryRepository) AcquireLock(_ context.Context, scope, key string, ttl time.Duration) (*Record, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if existing, ok := r.records[memoryKey(scope, key)]; ok && existing.ExpiresAt.After(now) {
		cp := *existing
		return &cp, false, nil
	}

	rec := &Record{
		Key:       key,
		Scope:     scope,
		LockedAt:  &now,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	r.records[memoryKey(scope, key)] = rec
	cp := *rec
	return &cp, true, nil
}

// StoreResponse implements Repository
func (r *MemoryRepository) StoreResponse(_ context.Context, scope, key string, response []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[memoryKey(scope, key)]
	if !ok {
		return ErrNotFound
	}
	now := r.now()
	rec.Response = append([]byte(nil), response...)
	rec.CompletedAt = &now
	rec.LockedAt = nil
	return nil
}

// ReleaseLock implements Repository
func (r *MemoryRepository) ReleaseLock(_ context.Context, scope, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[memoryKey(scope, key)]; ok && !rec.IsCompleted() {
		delete(r.records, memoryKey(scope, key))
	}
	return nil
}
