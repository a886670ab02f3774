package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
)

func TestStockAdjustmentApproval(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	p := env.product("SKU-1", siteA, 10)

	change, err := env.changes.RequestAdjustment(ctx, RequestAdjustmentCommand{
		ProductID: p.ID, Direction: "in", Quantity: 4, Reason: "cycle count", Actor: picker,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ChangeStockAdjustment), change.ChangeType)
	assert.Zero(t, env.ledger.count(), "nothing moves before approval")

	_, err = env.changes.Approve(ctx, DecideChangeCommand{ChangeID: change.ID, Actor: picker})
	assertKind(t, err, errors.KindPermission)

	approved, err := env.changes.Approve(ctx, DecideChangeCommand{ChangeID: change.ID, Actor: manager})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ChangeApproved), approved.Status)
	assert.Equal(t, 14, env.catalog.stock(p.ID))

	movements := env.ledger.all()
	require.Len(t, movements, 1)
	assert.Equal(t, domain.ChangeReason(change.ID), movements[0].Reason)

	_, err = env.changes.Approve(ctx, DecideChangeCommand{ChangeID: change.ID, Actor: manager})
	assertKind(t, err, errors.KindConflict)
	assert.Equal(t, 1, env.ledger.count())
}

func TestStockAdjustmentRejection(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	p := env.product("SKU-1", siteA, 10)

	change, err := env.changes.RequestAdjustment(ctx, RequestAdjustmentCommand{
		ProductID: p.ID, Direction: "OUT", Quantity: 2, Reason: "breakage", Actor: picker,
	})
	require.NoError(t, err)

	rejected, err := env.changes.Reject(ctx, DecideChangeCommand{ChangeID: change.ID, Reason: "recount first", Actor: manager})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ChangeRejected), rejected.Status)
	assert.Equal(t, "recount first", rejected.RejectionReason)
	assert.Equal(t, 10, env.catalog.stock(p.ID))

	pending, err := env.changes.ListPending(ctx, siteA)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRequestAdjustmentValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	p := env.product("SKU-1", siteA, 10)

	_, err := env.changes.RequestAdjustment(ctx, RequestAdjustmentCommand{ProductID: "missing", Direction: "IN", Quantity: 1, Reason: "x", Actor: picker})
	assertKind(t, err, errors.KindNotFound)

	_, err = env.changes.RequestAdjustment(ctx, RequestAdjustmentCommand{ProductID: p.ID, Direction: "SIDEWAYS", Quantity: 1, Reason: "x", Actor: picker})
	assertKind(t, err, errors.KindValidation)

	_, err = env.changes.RequestAdjustment(ctx, RequestAdjustmentCommand{ProductID: p.ID, Direction: "IN", Quantity: 1, Actor: picker})
	assertKind(t, err, errors.KindValidation)

	require.NoError(t, env.catalog.ArchiveProduct(ctx, p.ID))
	_, err = env.changes.RequestAdjustment(ctx, RequestAdjustmentCommand{ProductID: p.ID, Direction: "IN", Quantity: 1, Reason: "x", Actor: picker})
	assertKind(t, err, errors.KindConflict)
}
