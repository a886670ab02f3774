package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/actor"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
)

const (
	siteA = "SITE-A"
	siteB = "SITE-B"
)

var (
	manager   = actor.Actor{UserID: "M1", Role: actor.RoleManager}
	picker    = actor.Actor{UserID: "W1", Role: actor.RolePicker}
	picker2   = actor.Actor{UserID: "W2", Role: actor.RolePicker}
	finance   = actor.Actor{UserID: "F1", Role: actor.RoleFinance}
	requester = actor.Actor{UserID: "R1", Role: actor.RoleReceiver}
)

func qty(n int) *int { return &n }

func (env *testEnv) product(sku, siteID string, stock int) *domain.Product {
	p := domain.NewProduct(uuid.NewString(), sku, sku+" name", siteID, "")
	p.Stock = stock
	return env.catalog.add(p)
}

func (env *testEnv) createJob(t *testing.T, jobType domain.JobType, orderRef string, items ...domain.LineItem) *JobDTO {
	t.Helper()
	dto, err := env.engine.CreateJob(context.Background(), CreateJobCommand{
		Type:      string(jobType),
		SiteID:    siteA,
		OrderRef:  orderRef,
		LineItems: items,
		Actor:     manager,
	})
	require.NoError(t, err)
	return dto
}

func (env *testEnv) start(t *testing.T, jobID string, worker actor.Actor) *JobDTO {
	t.Helper()
	dto, err := env.engine.StartJob(context.Background(), StartJobCommand{JobID: jobID, WorkerID: worker.UserID, Actor: worker})
	require.NoError(t, err)
	return dto
}

func (env *testEnv) scan(jobID string, idx, attempt int, q *int) (*ScanResultDTO, error) {
	return env.engine.ScanItem(context.Background(), ScanItemCommand{
		JobID:         jobID,
		WorkerID:      picker.UserID,
		LineItemIndex: idx,
		Attempt:       attempt,
		Quantity:      q,
		Actor:         picker,
	})
}

func (env *testEnv) storedJob(t *testing.T, jobID string) *domain.Job {
	t.Helper()
	job, err := env.jobs.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func assertKind(t *testing.T, err error, kind errors.Kind) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, kind, appErr.Kind(), appErr.Error())
}

func TestStartJobComputesPickPathAndAutoAssigns(t *testing.T) {
	env := newTestEnv()
	job := env.createJob(t, domain.JobTypePick, "",
		domain.LineItem{SKU: "A", Location: "C-01", ExpectedQty: 1},
		domain.LineItem{SKU: "B", Location: "A-01", ExpectedQty: 1},
		domain.LineItem{SKU: "C", Location: "B-01", ExpectedQty: 1},
	)
	assert.Equal(t, string(domain.JobStatusPending), job.Status)

	started := env.start(t, job.ID, picker)

	assert.Equal(t, string(domain.JobStatusInProgress), started.Status)
	assert.Equal(t, picker.UserID, started.AssignedTo)
	assert.Equal(t, []int{1, 2, 0}, started.PickPath)
	assert.Equal(t, "A", started.LineItems[0].SKU, "arena order is never changed")
}

func TestStartJobRejectsEmptyJob(t *testing.T) {
	env := newTestEnv()
	job := env.createJob(t, domain.JobTypeCount, "")

	_, err := env.engine.StartJob(context.Background(), StartJobCommand{JobID: job.ID, WorkerID: picker.UserID, Actor: picker})
	assertKind(t, err, errors.KindValidation)
}

func TestStartJobLockedByAnotherWorker(t *testing.T) {
	env := newTestEnv()
	job := env.createJob(t, domain.JobTypePick, "", domain.LineItem{SKU: "A", ExpectedQty: 1})
	env.start(t, job.ID, picker)

	_, err := env.engine.StartJob(context.Background(), StartJobCommand{JobID: job.ID, WorkerID: picker2.UserID, Actor: picker2})
	assertKind(t, err, errors.KindConflict)
	appErr, _ := errors.AsAppError(err)
	assert.Equal(t, errors.CodeJobLocked, appErr.Code)
	assert.Equal(t, picker.UserID, appErr.Details["holder"])

	_, err = env.engine.StartJob(context.Background(), StartJobCommand{
		JobID: job.ID, WorkerID: picker2.UserID, ManagerOverride: true, Actor: picker2,
	})
	assertKind(t, err, errors.KindPermission)

	dto, err := env.engine.StartJob(context.Background(), StartJobCommand{
		JobID: job.ID, WorkerID: picker2.UserID, ManagerOverride: true, Actor: manager,
	})
	require.NoError(t, err)
	assert.Equal(t, picker2.UserID, dto.AssignedTo)
}

func TestStartTransferJobRequiresApproval(t *testing.T) {
	env := newTestEnv()
	transfer, err := env.orchestrator.RequestTransfer(context.Background(), RequestTransferCommand{
		SourceSiteID: siteA,
		DestSiteID:   siteB,
		LineItems:    []domain.LineItem{{SKU: "ABC", ExpectedQty: 1}},
		Actor:        requester,
	})
	require.NoError(t, err)

	_, err = env.engine.StartJob(context.Background(), StartJobCommand{JobID: transfer.ID, WorkerID: picker.UserID, Actor: picker})
	assertKind(t, err, errors.KindConflict)
}

func TestScanItemShortIffBelowExpected(t *testing.T) {
	for q := 0; q <= 10; q++ {
		t.Run(fmt.Sprintf("qty=%d", q), func(t *testing.T) {
			env := newTestEnv()
			p := env.product("SKU-1", siteA, 50)
			job := env.createJob(t, domain.JobTypePick, "", domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 10})
			env.start(t, job.ID, picker)

			result, err := env.scan(job.ID, 0, 1, qty(q))
			require.NoError(t, err)

			stored := env.storedJob(t, job.ID)
			item := stored.LineItems[0]
			assert.Equal(t, q, item.PickedQty, "picked quantity is recorded exactly")
			if q < 10 {
				assert.Equal(t, domain.LineItemShort, item.Status)
			} else {
				assert.Equal(t, domain.LineItemPicked, item.Status)
			}
			assert.Equal(t, 50-q, env.catalog.stock(p.ID))
			assert.True(t, result.JobCompleted)
			assert.Equal(t, domain.JobStatusCompleted, stored.Status)
		})
	}
}

func TestScanItemLedgerEntryCarriesJobReason(t *testing.T) {
	env := newTestEnv()
	p := env.product("SKU-1", siteA, 10)
	job := env.createJob(t, domain.JobTypePick, "ORD-9", domain.LineItem{SKU: "SKU-1", ExpectedQty: 4})
	env.start(t, job.ID, picker)

	result, err := env.scan(job.ID, 0, 1, nil)
	require.NoError(t, err)

	movements := env.ledger.all()
	require.Len(t, movements, 1)
	assert.Equal(t, result.MovementID, movements[0].ID)
	assert.Equal(t, domain.DirectionOut, movements[0].Direction)
	assert.Equal(t, 4, movements[0].Quantity)
	assert.Equal(t, "job:"+job.ID, movements[0].Reason)
	assert.Equal(t, "ORD-9", movements[0].Reference)
	assert.Equal(t, p.ID, env.storedJob(t, job.ID).LineItems[0].ProductID, "product linked by sku")
}

func TestScanItemFollowsPickPath(t *testing.T) {
	env := newTestEnv()
	a := env.product("A", siteA, 5)
	b := env.product("B", siteA, 5)
	job := env.createJob(t, domain.JobTypePick, "",
		domain.LineItem{ProductID: a.ID, SKU: "A", Location: "B-02", ExpectedQty: 1},
		domain.LineItem{ProductID: b.ID, SKU: "B", Location: "A-01", ExpectedQty: 1},
	)
	env.start(t, job.ID, picker)

	_, err := env.scan(job.ID, 0, 1, nil)
	assertKind(t, err, errors.KindConflict)
	appErr, _ := errors.AsAppError(err)
	assert.Equal(t, "1", appErr.Details["nextLineItemIndex"])
	assert.Zero(t, env.ledger.count())

	result, err := env.scan(job.ID, 1, 1, nil)
	require.NoError(t, err)
	require.NotNil(t, result.NextItemIndex)
	assert.Equal(t, 0, *result.NextItemIndex)
	assert.False(t, result.JobCompleted)

	result, err = env.scan(job.ID, 0, 1, nil)
	require.NoError(t, err)
	assert.Nil(t, result.NextItemIndex)
	assert.True(t, result.JobCompleted)
}

func TestScanItemDuplicateSubmissionIsReplayed(t *testing.T) {
	env := newTestEnv()
	p := env.product("SKU-1", siteA, 20)
	job := env.createJob(t, domain.JobTypePick, "",
		domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 5},
		domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 5},
	)
	env.start(t, job.ID, picker)

	first, err := env.scan(job.ID, 0, 1, nil)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	replay, err := env.scan(job.ID, 0, 1, nil)
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.MovementID, replay.MovementID)
	assert.Equal(t, first.ItemStatus, replay.ItemStatus)

	assert.Equal(t, 1, env.ledger.count())
	assert.Equal(t, 15, env.catalog.stock(p.ID))
	assert.Equal(t, domain.LineItemPending, env.storedJob(t, job.ID).LineItems[1].Status)
}

func TestScanItemValidation(t *testing.T) {
	env := newTestEnv()
	p := env.product("SKU-1", siteA, 20)
	job := env.createJob(t, domain.JobTypePick, "", domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 10})
	env.start(t, job.ID, picker)

	tests := []struct {
		name string
		cmd  ScanItemCommand
	}{
		{"sku mismatch", ScanItemCommand{ScannedSKU: "OTHER"}},
		{"over pick", ScanItemCommand{Quantity: qty(11)}},
		{"negative", ScanItemCommand{Quantity: qty(-1)}},
		{"bad forced status", ScanItemCommand{ForcedStatus: "Resolved"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd
			cmd.JobID = job.ID
			cmd.WorkerID = picker.UserID
			cmd.Actor = picker
			_, err := env.engine.ScanItem(context.Background(), cmd)
			assertKind(t, err, errors.KindValidation)
		})
	}
	assert.Zero(t, env.ledger.count())

	// the rejected attempt key is released so the operator can retry it
	result, err := env.engine.ScanItem(context.Background(), ScanItemCommand{
		JobID: job.ID, WorkerID: picker.UserID, ScannedSKU: "sku-1", Actor: picker,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.LineItemPicked), result.ItemStatus)
}

func TestScanItemLedgerFailureAbortsScan(t *testing.T) {
	env := newTestEnv()
	p := env.product("SKU-1", siteA, 20)
	job := env.createJob(t, domain.JobTypePick, "", domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 5})
	env.start(t, job.ID, picker)

	env.ledger.failWith = stderrors.New("ledger unavailable")
	_, err := env.scan(job.ID, 0, 1, nil)
	assertKind(t, err, errors.KindLedger)

	stored := env.storedJob(t, job.ID)
	assert.Equal(t, domain.LineItemPending, stored.LineItems[0].Status)
	assert.Zero(t, stored.LineItems[0].PickedQty)
	assert.Equal(t, domain.JobStatusInProgress, stored.Status)

	env.ledger.failWith = nil
	result, err := env.scan(job.ID, 0, 1, nil)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 15, env.catalog.stock(p.ID))
}

func TestScanItemRefusesJobCancelledMidScan(t *testing.T) {
	env := newTestEnv()
	p := env.product("SKU-1", siteA, 20)
	job := env.createJob(t, domain.JobTypePick, "", domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 5})
	env.start(t, job.ID, picker)

	reads := 0
	env.jobs.beforeFind = func(jobID string) {
		reads++
		if reads == 2 {
			env.jobs.mutate(jobID, func(j *domain.Job) { j.Status = domain.JobStatusCancelled })
		}
	}

	_, err := env.scan(job.ID, 0, 1, nil)
	assertKind(t, err, errors.KindConflict)
	assert.Zero(t, env.ledger.count())
	assert.Equal(t, 20, env.catalog.stock(p.ID))
}

func TestScanItemRejectsReentrantScan(t *testing.T) {
	env := newTestEnv()
	p := env.product("SKU-1", siteA, 20)
	job := env.createJob(t, domain.JobTypePick, "", domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 5})
	env.start(t, job.ID, picker)

	release, err := env.locker.Acquire(context.Background(), job.ID, "in-flight")
	require.NoError(t, err)

	_, err = env.scan(job.ID, 0, 1, nil)
	assertKind(t, err, errors.KindConflict)
	assert.Zero(t, env.ledger.count())

	require.NoError(t, release(context.Background()))
	_, err = env.scan(job.ID, 0, 1, nil)
	require.NoError(t, err)
}

func TestScanItemRejectsOtherWorker(t *testing.T) {
	env := newTestEnv()
	p := env.product("SKU-1", siteA, 20)
	job := env.createJob(t, domain.JobTypePick, "", domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 5})
	env.start(t, job.ID, picker2)

	_, err := env.scan(job.ID, 0, 1, nil)
	assertKind(t, err, errors.KindConflict)
}

func TestScanPutawayUnknownProductRequiresApproval(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	job := env.createJob(t, domain.JobTypePutaway, "", domain.LineItem{SKU: "NEW-1", Name: "New thing", Location: "R-01", ExpectedQty: 5})
	env.start(t, job.ID, picker)

	result, err := env.scan(job.ID, 0, 1, nil)
	require.NoError(t, err)
	assert.True(t, result.AwaitingApproval)
	require.NotEmpty(t, result.PendingChangeID)
	assert.Equal(t, string(domain.LineItemPending), result.ItemStatus)
	assert.Zero(t, env.ledger.count(), "no stock mutation before approval")

	pending, err := env.changes.ListPending(ctx, siteA)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.NewProductID, pending[0].ProductID)
	assert.Equal(t, string(domain.ChangeCreate), pending[0].ChangeType)
	assert.Equal(t, 5, pending[0].AdjustmentQty)

	again, err := env.scan(job.ID, 0, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, result.PendingChangeID, again.PendingChangeID, "one change per job line")

	_, err = env.changes.Approve(ctx, DecideChangeCommand{ChangeID: result.PendingChangeID, Actor: manager})
	require.NoError(t, err)
	assert.Zero(t, env.ledger.count(), "approval links the product, the scan books the stock")

	done, err := env.scan(job.ID, 0, 3, nil)
	require.NoError(t, err)
	assert.False(t, done.AwaitingApproval)
	assert.Equal(t, string(domain.LineItemPicked), done.ItemStatus)
	assert.True(t, done.JobCompleted)

	movements := env.ledger.all()
	require.Len(t, movements, 1)
	assert.Equal(t, domain.DirectionIn, movements[0].Direction)
	assert.Equal(t, 5, env.catalog.stock(movements[0].ProductID))
	assert.Equal(t, 5, env.storedJob(t, job.ID).LineItems[0].ReceivedQty)
}

func TestScanItemRejectsTransferJob(t *testing.T) {
	env := newTestEnv()
	transfer := env.requestTransfer(t, domain.LineItem{SKU: "ABC", ExpectedQty: 1})
	_, err := env.orchestrator.ApproveTransfer(context.Background(), TransferCommand{TransferID: transfer.ID, Actor: manager})
	require.NoError(t, err)

	_, err = env.scan(transfer.ID, 0, 1, nil)
	assertKind(t, err, errors.KindConflict)
}

func TestResolveShortStandard(t *testing.T) {
	env := newTestEnv()
	p := env.product("SKU-1", siteA, 20)
	job := env.createJob(t, domain.JobTypePick, "", domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 10})
	env.start(t, job.ID, picker)

	result, err := env.engine.ResolveShort(context.Background(), ResolveShortCommand{
		JobID: job.ID, WorkerID: picker.UserID, LineItemIndex: 0, ActualQty: 4, Resolution: ShortStandard, Actor: picker,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.LineItemShort), result.ItemStatus)
	assert.Equal(t, 4, env.storedJob(t, job.ID).LineItems[0].PickedQty)
	assert.Equal(t, 16, env.catalog.stock(p.ID))
}

func TestResolveShortDiscontinue(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	p := env.product("SKU-1", siteA, 6)
	job := env.createJob(t, domain.JobTypePick, "", domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 10})
	env.start(t, job.ID, picker)

	_, err := env.engine.ResolveShort(ctx, ResolveShortCommand{
		JobID: job.ID, LineItemIndex: 0, Resolution: ShortDiscontinue, Actor: picker,
	})
	assertKind(t, err, errors.KindValidation)

	proposal, err := env.engine.Propose(ctx, ProposeCommand{
		Kind: string(domain.ProposalDiscontinueProduct), JobID: job.ID, LineItemIndex: 0, Reason: "vendor stopped", Actor: picker,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ProposalPending), proposal.Status)

	result, err := env.engine.ResolveShort(ctx, ResolveShortCommand{
		JobID: job.ID, LineItemIndex: 0, Resolution: ShortDiscontinue, ProposalID: proposal.ID, Actor: picker,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.LineItemDiscontinued), result.ItemStatus)
	assert.True(t, result.JobCompleted)

	stored := env.storedJob(t, job.ID)
	assert.Zero(t, stored.LineItems[0].PickedQty)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)

	archived, _ := env.catalog.FindByID(ctx, p.ID)
	assert.True(t, archived.IsArchived())
	assert.Zero(t, archived.Stock)

	movements := env.ledger.all()
	require.Len(t, movements, 1)
	assert.Equal(t, domain.DirectionOut, movements[0].Direction)
	assert.Equal(t, 6, movements[0].Quantity)
	assert.Equal(t, "job:"+job.ID, movements[0].Reason)

	_, err = env.engine.ResolveShort(ctx, ResolveShortCommand{
		JobID: job.ID, LineItemIndex: 0, Resolution: ShortDiscontinue, ProposalID: proposal.ID, Actor: picker,
	})
	assertKind(t, err, errors.KindConflict)
}

func TestResolveShortDiscontinueKeepsProposalWhenLedgerFails(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	p := env.product("SKU-1", siteA, 6)
	job := env.createJob(t, domain.JobTypePick, "", domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 10})
	env.start(t, job.ID, picker)

	proposal, err := env.engine.Propose(ctx, ProposeCommand{
		Kind: string(domain.ProposalDiscontinueProduct), JobID: job.ID, LineItemIndex: 0, Reason: "vendor stopped", Actor: picker,
	})
	require.NoError(t, err)
	cmd := ResolveShortCommand{JobID: job.ID, LineItemIndex: 0, Resolution: ShortDiscontinue, ProposalID: proposal.ID, Actor: picker}

	env.ledger.failWith = stderrors.New("ledger unavailable")
	_, err = env.engine.ResolveShort(ctx, cmd)
	assertKind(t, err, errors.KindLedger)

	stored, err := env.proposals.FindByID(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalPending, stored.Status)
	assert.Equal(t, domain.LineItemPending, env.storedJob(t, job.ID).LineItems[0].Status)
	product, _ := env.catalog.FindByID(ctx, p.ID)
	assert.False(t, product.IsArchived())

	env.ledger.failWith = nil
	result, err := env.engine.ResolveShort(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, string(domain.LineItemDiscontinued), result.ItemStatus)

	stored, err = env.proposals.FindByID(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalConfirmed, stored.Status)
}

func TestProposalMustMatchCommand(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	p := env.product("SKU-1", siteA, 6)
	job := env.createJob(t, domain.JobTypePick, "",
		domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 1},
		domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 1},
	)
	env.start(t, job.ID, picker)

	proposal, err := env.engine.Propose(ctx, ProposeCommand{
		Kind: string(domain.ProposalDiscontinueProduct), JobID: job.ID, LineItemIndex: 1, Actor: picker,
	})
	require.NoError(t, err)

	_, err = env.engine.ResolveShort(ctx, ResolveShortCommand{
		JobID: job.ID, LineItemIndex: 0, Resolution: ShortDiscontinue, ProposalID: proposal.ID, Actor: picker,
	})
	require.Error(t, err)
	assert.Zero(t, env.ledger.count())

	_, err = env.engine.Propose(ctx, ProposeCommand{Kind: "wipe_everything", JobID: job.ID, Actor: picker})
	assertKind(t, err, errors.KindValidation)
}

func TestCompleteJobRequiresTerminalItems(t *testing.T) {
	env := newTestEnv()
	p := env.product("SKU-1", siteA, 20)
	job := env.createJob(t, domain.JobTypePick, "",
		domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 1},
		domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 1},
	)
	env.start(t, job.ID, picker)
	_, err := env.scan(job.ID, 0, 1, nil)
	require.NoError(t, err)

	_, err = env.engine.CompleteJob(context.Background(), CompleteJobCommand{JobID: job.ID, Actor: picker})
	assertKind(t, err, errors.KindConflict)
	assert.Equal(t, domain.JobStatusInProgress, env.storedJob(t, job.ID).Status)
}

func TestCancelJobTwoStep(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	p := env.product("SKU-1", siteA, 20)
	job := env.createJob(t, domain.JobTypePick, "", domain.LineItem{ProductID: p.ID, SKU: "SKU-1", ExpectedQty: 3})
	env.start(t, job.ID, picker)

	_, err := env.engine.CancelJob(ctx, CancelJobCommand{JobID: job.ID, Actor: manager})
	assertKind(t, err, errors.KindValidation)

	proposal, err := env.engine.Propose(ctx, ProposeCommand{Kind: string(domain.ProposalCancelJob), JobID: job.ID, Actor: manager})
	require.NoError(t, err)

	cancelled, err := env.engine.CancelJob(ctx, CancelJobCommand{JobID: job.ID, ProposalID: proposal.ID, Reason: "order voided", Actor: manager})
	require.NoError(t, err)
	assert.Equal(t, string(domain.JobStatusCancelled), cancelled.Status)

	_, err = env.scan(job.ID, 0, 1, nil)
	assertKind(t, err, errors.KindConflict)
	assert.Zero(t, env.ledger.count())
}

func TestJobCompletedIffAllItemsTerminal(t *testing.T) {
	env := newTestEnv()
	p := env.product("SKU-1", siteA, 100)
	job := env.createJob(t, domain.JobTypePick, "",
		domain.LineItem{ProductID: p.ID, SKU: "SKU-1", Location: "A", ExpectedQty: 3},
		domain.LineItem{ProductID: p.ID, SKU: "SKU-1", Location: "B", ExpectedQty: 2},
		domain.LineItem{ProductID: p.ID, SKU: "SKU-1", Location: "C", ExpectedQty: 4},
	)
	env.start(t, job.ID, picker)

	quantities := []int{3, 1, 0}
	for idx, q := range quantities {
		_, err := env.scan(job.ID, idx, 1, qty(q))
		require.NoError(t, err)

		stored := env.storedJob(t, job.ID)
		assert.Equal(t, stored.AllItemsTerminal(), stored.Status == domain.JobStatusCompleted, "after scanning item %d", idx)
	}
	assert.Equal(t, domain.JobStatusCompleted, env.storedJob(t, job.ID).Status)
}
