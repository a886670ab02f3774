package locking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	release, err := locker.Acquire(ctx, "job-1", "picker-1")
	require.NoError(t, err)

	holder, ok := locker.Holder("job-1")
	assert.True(t, ok)
	assert.Equal(t, "picker-1", holder)

	_, err = locker.Acquire(ctx, "job-1", "picker-2")
	assert.ErrorIs(t, err, domain.ErrLockNotAcquired)

	require.NoError(t, release(ctx))
	_, ok = locker.Holder("job-1")
	assert.False(t, ok)

	release2, err := locker.Acquire(ctx, "job-1", "picker-2")
	require.NoError(t, err)

	// a second release of the old handle leaves the new holder alone
	require.NoError(t, release(ctx))
	holder, _ = locker.Holder("job-1")
	assert.Equal(t, "picker-2", holder)
	require.NoError(t, release2(ctx))
}

func TestLocalLocker_Contention(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	var acquired int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := locker.Acquire(ctx, "job-1", "worker"); err == nil {
				atomic.AddInt32(&acquired, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), acquired)
}
