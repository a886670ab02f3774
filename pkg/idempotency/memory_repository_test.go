package idempotency

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanKey(t *testing.T) {
	assert.Equal(t, "job-1:3:2", ScanKey("job-1", 3, 2))
}

func TestValidateKey(t *testing.T) {
	assert.ErrorIs(t, ValidateKey(""), ErrKeyRequired)
	assert.ErrorIs(t, ValidateKey(strings.Repeat("k", MaxKeyLength+1)), ErrKeyTooLong)
	assert.NoError(t, ValidateKey("job-1:0:1"))
}

func TestMemoryRepository_AcquireStoreReplay(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	rec, isNew, err := repo.AcquireLock(ctx, ScopeScan, "job-1:0:1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, rec.IsLocked())

	again, isNew, err := repo.AcquireLock(ctx, ScopeScan, "job-1:0:1", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.True(t, again.IsLocked())
	assert.False(t, again.IsCompleted())

	require.NoError(t, repo.StoreResponse(ctx, ScopeScan, "job-1:0:1", []byte(`{"ok":true}`)))

	replay, isNew, err := repo.AcquireLock(ctx, ScopeScan, "job-1:0:1", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.True(t, replay.IsCompleted())
	assert.JSONEq(t, `{"ok":true}`, string(replay.Response))
}

func TestMemoryRepository_ReleaseLockAllowsRetry(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, _, err := repo.AcquireLock(ctx, ScopeScan, "job-1:0:1", time.Hour)
	require.NoError(t, err)
	require.NoError(t, repo.ReleaseLock(ctx, ScopeScan, "job-1:0:1"))

	_, isNew, err := repo.AcquireLock(ctx, ScopeScan, "job-1:0:1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestMemoryRepository_ReleaseKeepsCompleted(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, _, err := repo.AcquireLock(ctx, ScopeScan, "k", time.Hour)
	require.NoError(t, err)
	require.NoError(t, repo.StoreResponse(ctx, ScopeScan, "k", []byte("{}")))
	require.NoError(t, repo.ReleaseLock(ctx, ScopeScan, "k"))

	rec, isNew, err := repo.AcquireLock(ctx, ScopeScan, "k", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.True(t, rec.IsCompleted())
}

func TestMemoryRepository_ExpiredRecordIsReplaced(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	_, _, err := repo.AcquireLock(ctx, ScopeScan, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, isNew, err := repo.AcquireLock(ctx, ScopeScan, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)
}
