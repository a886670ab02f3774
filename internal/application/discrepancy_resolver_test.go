package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
)

// receiveShort ships a single-line transfer of 10 and receives 7 of it
func (env *testEnv) receiveShort(t *testing.T) string {
	t.Helper()
	env.product("ABC", siteA, 10)
	id := env.shipTransfer(t, domain.LineItem{SKU: "ABC", Name: "Widget", ExpectedQty: 10})
	_, err := env.orchestrator.FinalizeReceive(context.Background(), FinalizeReceiveCommand{
		TransferID: id,
		Lines:      []domain.ReceivedLine{{LineItemIndex: 0, ReceivedQty: 7}},
		Actor:      requester,
	})
	require.NoError(t, err)
	return id
}

func (env *testEnv) destStock(t *testing.T, sku string) int {
	t.Helper()
	p, err := env.catalog.FindBySKUAtSite(context.Background(), sku, siteB)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Stock
}

func TestClassifyAndResolveClosedRecordIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.receiveShort(t)

	cmd := ClassifyAndResolveCommand{
		TransferID:     id,
		LineItemIndex:  0,
		ResolutionType: string(domain.ResolutionAdjust),
		ReasonCode:     "CARRIER_LOSS",
		Actor:          manager,
	}
	first, err := env.resolver.ClassifyAndResolve(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, first.AlreadyResolved)
	assert.NotEmpty(t, first.MovementID)
	assert.Equal(t, 10, env.destStock(t, "ABC"))
	movements := env.ledger.count()

	again, err := env.resolver.ClassifyAndResolve(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, again.AlreadyResolved)
	assert.Equal(t, first.Resolution.ID, again.Resolution.ID)
	assert.Equal(t, movements, env.ledger.count(), "no second side effect")
	assert.Equal(t, 10, env.destStock(t, "ABC"))

	// a different resolution on a closed record is also a no-op
	other, err := env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, ResolutionType: string(domain.ResolutionReplace), Actor: manager,
	})
	require.NoError(t, err)
	assert.True(t, other.AlreadyResolved)
	assert.Nil(t, other.ReplacementJob)
	assert.Equal(t, string(domain.ResolutionAdjust), other.Resolution.ResolutionType)
}

func TestClassifyAndResolveAcceptCompletesTransfer(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.receiveShort(t)
	before := env.ledger.count()

	result, err := env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, ResolutionType: "ACCEPT", Actor: manager,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ResolutionClosed), result.Resolution.ResolutionStatus)
	assert.Equal(t, string(domain.JobStatusCompleted), result.JobStatus)
	assert.Equal(t, before, env.ledger.count(), "accept has no stock effect")

	stored := env.storedJob(t, id)
	assert.Equal(t, domain.LineItemResolved, stored.LineItems[0].Status)
}

func TestClassifyAndResolveInvestigateKeepsPending(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.receiveShort(t)

	result, err := env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, ResolutionType: string(domain.ResolutionInvestigate),
		Notes: "checking with carrier", Actor: manager,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ResolutionPending), result.Resolution.ResolutionStatus)
	assert.Equal(t, string(domain.JobStatusInProgress), result.JobStatus)

	exceptions, err := env.resolver.ListExceptions(ctx, siteB)
	require.NoError(t, err)
	require.Len(t, exceptions, 1)
	assert.Equal(t, id, exceptions[0].TransferID)

	result, err = env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, ResolutionType: string(domain.ResolutionAccept), Actor: manager,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.JobStatusCompleted), result.JobStatus)

	exceptions, err = env.resolver.ListExceptions(ctx, siteB)
	require.NoError(t, err)
	assert.Empty(t, exceptions)
}

func TestClassifyAndResolveClaimPermission(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.receiveShort(t)
	amount := decimal.NewNullDecimal(decimal.RequireFromString("125.5"))

	_, err := env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, ResolutionType: string(domain.ResolutionClaim), ClaimAmount: amount, Actor: picker,
	})
	assertKind(t, err, errors.KindPermission)

	_, err = env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, ResolutionType: string(domain.ResolutionClaim), Actor: finance,
	})
	assertKind(t, err, errors.KindValidation)

	result, err := env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, ResolutionType: string(domain.ResolutionClaim), ClaimAmount: amount, Actor: finance,
	})
	require.NoError(t, err)
	assert.Equal(t, "125.50", result.Resolution.ClaimAmount)
	assert.Equal(t, string(domain.ResolutionClosed), result.Resolution.ResolutionStatus)
	assert.Equal(t, finance.UserID, result.Resolution.ResolvedBy)
}

func TestClassifyAndResolveRejectRequiresNotes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.receiveShort(t)

	_, err := env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, DiscrepancyType: string(domain.DiscrepancyDamaged),
		ResolutionType: string(domain.ResolutionReject), Quantity: 2, Actor: manager,
	})
	assertKind(t, err, errors.KindValidation)

	result, err := env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, DiscrepancyType: string(domain.DiscrepancyDamaged),
		ResolutionType: string(domain.ResolutionReject), Quantity: 2, Notes: "crushed pallet", Actor: manager,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.DiscrepancyDamaged), result.Resolution.DiscrepancyType)
	assert.Equal(t, 5, env.destStock(t, "ABC"))

	movements := env.ledger.all()
	last := movements[len(movements)-1]
	assert.Equal(t, domain.DirectionOut, last.Direction)
	assert.Equal(t, domain.ResolutionReason(result.Resolution.ID), last.Reason)
}

func TestClassifyAndResolveAdjustOnlyForShortages(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.receiveShort(t)

	_, err := env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, DiscrepancyType: string(domain.DiscrepancyOverage),
		ResolutionType: string(domain.ResolutionAdjust), Actor: manager,
	})
	assertKind(t, err, errors.KindValidation)

	_, err = env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, ResolutionType: "shrug", Actor: manager,
	})
	assertKind(t, err, errors.KindValidation)
}

func TestClassifyAndResolveReportsDamageOnMatchedLine(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.product("ABC", siteA, 10)
	id := env.shipTransfer(t, domain.LineItem{SKU: "ABC", ExpectedQty: 5})
	received, err := env.orchestrator.FinalizeReceive(ctx, FinalizeReceiveCommand{
		TransferID: id,
		Lines:      []domain.ReceivedLine{{LineItemIndex: 0, ReceivedQty: 5}},
		Actor:      requester,
	})
	require.NoError(t, err)
	require.Equal(t, string(domain.JobStatusCompleted), received.Transfer.Status)

	_, err = env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, ResolutionType: string(domain.ResolutionDispose), Notes: "water damage", Actor: manager,
	})
	assertKind(t, err, errors.KindValidation)

	result, err := env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, DiscrepancyType: string(domain.DiscrepancyDamaged),
		ResolutionType: string(domain.ResolutionDispose), Notes: "water damage", Quantity: 2, Actor: manager,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ResolutionClosed), result.Resolution.ResolutionStatus)
	assert.Equal(t, string(domain.JobStatusCompleted), result.JobStatus)
	assert.Equal(t, 3, env.destStock(t, "ABC"))
	assert.Equal(t, domain.LineItemCompleted, env.storedJob(t, id).LineItems[0].Status, "completed transfers are not mutated")
}

func TestClassifyAndResolveReplaceIsCreatedOnce(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.receiveShort(t)

	// the resolution save is lost after the replacement transfer was created
	env.jobs.updateFn = func(job *domain.Job) error {
		if job.ID == id {
			return domain.ErrConcurrentModification
		}
		return nil
	}
	first, err := env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, ResolutionType: string(domain.ResolutionReplace), Actor: manager,
	})
	assertKind(t, err, errors.KindConflict)
	assert.Nil(t, first)
	transfers := env.jobs.byType(domain.JobTypeTransfer)
	require.Len(t, transfers, 2)

	env.jobs.updateFn = nil
	records, err := env.discrepancies.FindByTransfer(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsClosed(), "the record was saved before the transfer update failed")
	assert.NotEmpty(t, records[0].ReplacementJobID)

	retry, err := env.resolver.ClassifyAndResolve(ctx, ClassifyAndResolveCommand{
		TransferID: id, LineItemIndex: 0, ResolutionType: string(domain.ResolutionReplace), Actor: manager,
	})
	require.NoError(t, err)
	assert.True(t, retry.AlreadyResolved)
	assert.Equal(t, string(domain.JobStatusCompleted), retry.JobStatus)
	assert.Equal(t, records[0].ReplacementJobID, retry.Resolution.ReplacementJobID)
	assert.Len(t, env.jobs.byType(domain.JobTypeTransfer), 2)
}
