// Package locking provides an in-process job lock for single-replica deployments.
package locking

import (
	"context"
	"sync"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

// LocalLocker holds job locks in memory. It only serialises callers inside one process.
type LocalLocker struct {
	mu      sync.Mutex
	holders map[string]string
}

// NewLocalLocker creates an empty LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{holders: make(map[string]string)}
}

// Acquire takes the lock on jobID without waiting
func (l *LocalLocker) Acquire(_ context.Context, jobID, holder string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.holders[jobID]; held {
		return nil, domain.ErrLockNotAcquired
	}
	l.holders[jobID] = holder

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.holders, jobID)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

// Holder returns who holds the lock on jobID
func (l *LocalLocker) Holder(jobID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	holder, ok := l.holders[jobID]
	return holder, ok
}
