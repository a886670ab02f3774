package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLineItems() []LineItem {
	return []LineItem{
		{ProductID: "prod-c", SKU: "SKU-C", Name: "Widget C", Location: "B-02", ExpectedQty: 4},
		{ProductID: "prod-a", SKU: "SKU-A", Name: "Widget A", Location: "A-01", ExpectedQty: 10},
		{ProductID: "prod-b", SKU: "SKU-B", Name: "Widget B", Location: "A-01", ExpectedQty: 2},
	}
}

func newStartedPick(t *testing.T) *Job {
	t.Helper()
	job, err := NewJob("job-1", JobTypePick, "site-1", PriorityNormal, createTestLineItems(), "mgr-1")
	require.NoError(t, err)
	require.NoError(t, job.Start("worker-1", false))
	return job
}

func TestNewJob(t *testing.T) {
	tests := []struct {
		name        string
		jobType     JobType
		priority    Priority
		items       []LineItem
		expectError error
	}{
		{name: "valid pick job", jobType: JobTypePick, priority: PriorityHigh, items: createTestLineItems()},
		{name: "default priority", jobType: JobTypePutaway, items: createTestLineItems()},
		{name: "empty job is allowed until start", jobType: JobTypeCount, items: nil},
		{name: "unknown type", jobType: "SWEEP", items: createTestLineItems(), expectError: ErrInvalidJobType},
		{name: "unknown priority", jobType: JobTypePick, priority: "Low", items: createTestLineItems(), expectError: ErrInvalidPriority},
		{name: "zero expected quantity", jobType: JobTypePick, items: []LineItem{{SKU: "X", ExpectedQty: 0}}, expectError: ErrInvalidLineItem},
		{name: "missing sku", jobType: JobTypePick, items: []LineItem{{ExpectedQty: 1}}, expectError: ErrInvalidLineItem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := NewJob("7f3c9a1e-0000-4000-8000-000000000001", tt.jobType, "site-1", tt.priority, tt.items, "user-1")
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, job)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, JobStatusPending, job.Status)
			assert.Equal(t, string(tt.jobType)+"-7F3C9A1E", job.JobNumber)
			assert.Len(t, job.DomainEvents, 1)
			for i, item := range job.LineItems {
				assert.Equal(t, i, item.OriginalIndex)
				assert.Equal(t, LineItemPending, item.Status)
			}
			if tt.priority == "" {
				assert.Equal(t, PriorityNormal, job.Priority)
			}
		})
	}
}

func TestJob_PickPathDoesNotReorderArena(t *testing.T) {
	job, err := NewJob("job-1", JobTypePick, "site-1", PriorityNormal, createTestLineItems(), "")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 0}, job.PickPath())
	assert.Equal(t, "SKU-C", job.LineItems[0].SKU)
	assert.Equal(t, "SKU-A", job.LineItems[1].SKU)

	next, ok := job.NextPending()
	require.True(t, ok)
	assert.Equal(t, 1, next.OriginalIndex)
}

func TestJob_Start(t *testing.T) {
	t.Run("auto assigns and moves to in progress", func(t *testing.T) {
		job, _ := NewJob("job-1", JobTypePick, "site-1", "", createTestLineItems(), "")
		require.NoError(t, job.Start("worker-1", false))
		assert.Equal(t, JobStatusInProgress, job.Status)
		assert.Equal(t, "worker-1", job.AssignedTo)
		assert.NotNil(t, job.StartedAt)
	})

	t.Run("empty job is rejected", func(t *testing.T) {
		job, _ := NewJob("job-1", JobTypeCount, "site-1", "", nil, "")
		assert.ErrorIs(t, job.Start("worker-1", false), ErrNoLineItems)
	})

	t.Run("held by another worker", func(t *testing.T) {
		job := newStartedPick(t)
		err := job.Start("worker-2", false)

		var locked *LockedError
		require.True(t, errors.As(err, &locked))
		assert.Equal(t, "worker-1", locked.Holder)
	})

	t.Run("manager override takes the job", func(t *testing.T) {
		job := newStartedPick(t)
		require.NoError(t, job.Start("manager-1", true))
		assert.Equal(t, "manager-1", job.AssignedTo)
	})

	t.Run("restart by holder is a no-op", func(t *testing.T) {
		job := newStartedPick(t)
		events := len(job.DomainEvents)
		require.NoError(t, job.Start("worker-1", false))
		assert.Len(t, job.DomainEvents, events)
	})

	t.Run("unapproved transfer", func(t *testing.T) {
		job, err := NewTransferJob("trf-1", "site-a", "site-b", "", createTestLineItems(), "user-1")
		require.NoError(t, err)
		assert.ErrorIs(t, job.Start("worker-1", false), ErrTransferNotApproved)
	})

	t.Run("cancelled job", func(t *testing.T) {
		job, _ := NewJob("job-1", JobTypePick, "site-1", "", createTestLineItems(), "")
		require.NoError(t, job.Cancel("no longer needed"))
		assert.ErrorIs(t, job.Start("worker-1", false), ErrJobCancelled)
	})
}

func TestJob_RecordScan(t *testing.T) {
	tests := []struct {
		name        string
		qty         int
		forced      LineItemStatus
		expectError error
		expected    LineItemStatus
	}{
		{name: "full quantity is picked", qty: 10, expected: LineItemPicked},
		{name: "short quantity is short", qty: 7, expected: LineItemShort},
		{name: "zero is short", qty: 0, expected: LineItemShort},
		{name: "forced short keeps exact quantity", qty: 10, forced: LineItemShort, expected: LineItemShort},
		{name: "negative quantity", qty: -1, expectError: ErrInvalidQuantity},
		{name: "over pick", qty: 11, expectError: ErrOverPick},
		{name: "forced discrepancy is not allowed", qty: 1, forced: LineItemDiscrepancy, expectError: ErrInvalidForcedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := newStartedPick(t)
			err := job.RecordScan(1, tt.qty, tt.forced)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Equal(t, LineItemPending, job.LineItems[1].Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, job.LineItems[1].Status)
			assert.Equal(t, tt.qty, job.LineItems[1].PickedQty)
		})
	}
}

func TestJob_RecordScanPutawayAllowsOverReceipt(t *testing.T) {
	job, _ := NewJob("job-1", JobTypePutaway, "site-1", "", createTestLineItems(), "")
	require.NoError(t, job.Start("worker-1", false))

	require.NoError(t, job.RecordScan(0, 5, ""))
	assert.Equal(t, 5, job.LineItems[0].ReceivedQty)
	assert.Equal(t, LineItemPicked, job.LineItems[0].Status)
}

func TestJob_RecordScanRequiresPendingItem(t *testing.T) {
	job := newStartedPick(t)
	require.NoError(t, job.RecordScan(1, 10, ""))
	assert.ErrorIs(t, job.RecordScan(1, 10, ""), ErrLineItemNotPending)
	assert.ErrorIs(t, job.RecordScan(9, 1, ""), ErrLineItemNotFound)
}

func TestJob_CompletionMatchesTerminalItems(t *testing.T) {
	job := newStartedPick(t)

	require.NoError(t, job.RecordScan(1, 10, ""))
	require.NoError(t, job.RecordScan(2, 1, ""))
	assert.False(t, job.TryComplete())
	assert.ErrorIs(t, job.Complete(), ErrItemsNotTerminal)
	assert.Equal(t, JobStatusInProgress, job.Status)

	require.NoError(t, job.DiscontinueItem(0))
	assert.Equal(t, LineItemDiscontinued, job.LineItems[0].Status)
	assert.Equal(t, 0, job.LineItems[0].PickedQty)

	assert.True(t, job.TryComplete())
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.True(t, job.AllItemsTerminal())
	assert.Equal(t, 11, job.ProcessedUnits())
	assert.ErrorIs(t, job.Complete(), ErrJobAlreadyCompleted)
}

func TestLineItemStatus_IsTerminal(t *testing.T) {
	terminal := []LineItemStatus{LineItemPicked, LineItemShort, LineItemDiscontinued, LineItemCompleted, LineItemResolved}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, LineItemPending.IsTerminal())
	assert.False(t, LineItemDiscrepancy.IsTerminal())
}

func TestJob_Cancel(t *testing.T) {
	job := newStartedPick(t)
	require.NoError(t, job.Cancel("order withdrawn"))
	assert.Equal(t, JobStatusCancelled, job.Status)
	assert.ErrorIs(t, job.Cancel("again"), ErrJobCancelled)
	assert.ErrorIs(t, job.RecordScan(0, 1, ""), ErrJobCancelled)
}
