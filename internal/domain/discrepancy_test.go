package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferDiscrepancyType(t *testing.T) {
	assert.Equal(t, DiscrepancyShortage, InferDiscrepancyType(-3))
	assert.Equal(t, DiscrepancyOverage, InferDiscrepancyType(2))
	assert.Equal(t, DiscrepancyType(""), InferDiscrepancyType(0))
}

func TestNewDiscrepancyResolution(t *testing.T) {
	transfer := newTestTransfer(t)

	d, err := NewDiscrepancyResolution("disc-1", transfer, 0, 7, "", "recv-1")
	require.NoError(t, err)
	assert.Equal(t, -3, d.Variance)
	assert.Equal(t, DiscrepancyShortage, d.DiscrepancyType)
	assert.Equal(t, ResolutionPending, d.ResolutionStatus)
	assert.Equal(t, "site-b", d.SiteID)
	assert.Len(t, d.DomainEvents, 1)

	_, err = NewDiscrepancyResolution("disc-2", transfer, 0, 10, "", "recv-1")
	assert.ErrorIs(t, err, ErrInvalidDiscrepancyType)

	damaged, err := NewDiscrepancyResolution("disc-3", transfer, 0, 10, DiscrepancyDamaged, "recv-1")
	require.NoError(t, err)
	assert.Equal(t, 0, damaged.Variance)
}

func TestDiscrepancyResolution_ValidateResolution(t *testing.T) {
	transfer := newTestTransfer(t)
	shortage, _ := NewDiscrepancyResolution("d1", transfer, 0, 7, "", "recv-1")
	overage, _ := NewDiscrepancyResolution("d2", transfer, 0, 12, "", "recv-1")

	tests := []struct {
		name        string
		record      *DiscrepancyResolution
		rt          ResolutionType
		details     ResolutionDetails
		expectError error
	}{
		{name: "accept", record: shortage, rt: ResolutionAccept},
		{name: "adjust shortage", record: shortage, rt: ResolutionAdjust, details: ResolutionDetails{Quantity: 2}},
		{name: "adjust more than missing", record: shortage, rt: ResolutionAdjust, details: ResolutionDetails{Quantity: 4}, expectError: ErrInvalidQuantity},
		{name: "adjust overage", record: overage, rt: ResolutionAdjust, expectError: ErrAdjustRequiresShortage},
		{name: "reject without notes", record: overage, rt: ResolutionReject, expectError: ErrNotesRequired},
		{name: "dispose with notes", record: overage, rt: ResolutionDispose, details: ResolutionDetails{Notes: "crushed"}},
		{name: "claim without amount", record: shortage, rt: ResolutionClaim, expectError: ErrClaimAmountRequired},
		{name: "claim with amount", record: shortage, rt: ResolutionClaim, details: ResolutionDetails{ClaimAmount: decimal.NewNullDecimal(decimal.RequireFromString("42.50"))}},
		{name: "unknown type", record: shortage, rt: "shrug", expectError: ErrInvalidResolutionType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.ValidateResolution(tt.rt, tt.details)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDiscrepancyResolution_Resolve(t *testing.T) {
	transfer := newTestTransfer(t)

	t.Run("investigate stays pending", func(t *testing.T) {
		d, _ := NewDiscrepancyResolution("d1", transfer, 0, 7, "", "recv-1")
		require.NoError(t, d.Resolve(ResolutionInvestigate, ResolutionDetails{Notes: "check cctv"}, "mgr-1"))
		assert.Equal(t, ResolutionPending, d.ResolutionStatus)
		assert.Equal(t, ResolutionInvestigate, d.ResolutionType)
		assert.Nil(t, d.ResolvedAt)
	})

	t.Run("accept closes and a second resolve is rejected", func(t *testing.T) {
		d, _ := NewDiscrepancyResolution("d2", transfer, 0, 7, "", "recv-1")
		require.NoError(t, d.Resolve(ResolutionAccept, ResolutionDetails{}, "mgr-1"))
		assert.True(t, d.IsClosed())
		assert.Equal(t, "mgr-1", d.ResolvedBy)
		assert.ErrorIs(t, d.Resolve(ResolutionAccept, ResolutionDetails{}, "mgr-1"), ErrResolutionClosed)
	})

	t.Run("affected quantity", func(t *testing.T) {
		d, _ := NewDiscrepancyResolution("d3", transfer, 0, 7, "", "recv-1")
		assert.Equal(t, 3, d.AffectedQuantity(ResolutionDetails{}))
		assert.Equal(t, 1, d.AffectedQuantity(ResolutionDetails{Quantity: 1}))
		assert.Equal(t, 3, d.Shortfall())
	})
}

func TestProposal_Confirm(t *testing.T) {
	now := time.Now().UTC()

	p, err := NewProposal("p1", ProposalDiscontinueProduct, "job-1", 2, "end of line", "worker-1", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, p.Confirm(ProposalDiscontinueProduct, "job-1", 1, "worker-1", now), ErrProposalMismatch)
	assert.ErrorIs(t, p.Confirm(ProposalCancelJob, "job-1", 2, "worker-1", now), ErrProposalMismatch)
	require.NoError(t, p.Confirm(ProposalDiscontinueProduct, "job-1", 2, "worker-1", now))
	assert.Equal(t, ProposalConfirmed, p.Status)
	assert.ErrorIs(t, p.Confirm(ProposalDiscontinueProduct, "job-1", 2, "worker-1", now), ErrProposalNotPending)

	expired, _ := NewProposal("p2", ProposalCancelJob, "job-1", 0, "", "worker-1", time.Minute)
	assert.ErrorIs(t, expired.Confirm(ProposalCancelJob, "job-1", 0, "worker-1", now.Add(2*time.Minute)), ErrProposalExpired)
	assert.Equal(t, ProposalExpired, expired.Status)

	_, err = NewProposal("p3", "burn_it", "job-1", 0, "", "worker-1", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidProposal)
}

func TestIsRoleCompatible(t *testing.T) {
	tests := []struct {
		jobType JobType
		role    WorkerRole
		want    bool
	}{
		{JobTypePick, RolePicker, true},
		{JobTypePick, RolePacker, false},
		{JobTypePack, RolePacker, true},
		{JobTypePutaway, RolePicker, false},
		{JobTypePutaway, RoleDispatcher, true},
		{JobTypeDispatch, RoleDriver, true},
		{JobTypeCount, RoleManager, true},
		{JobTypeCount, RoleDriver, false},
		{JobTypePick, "Manager", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRoleCompatible(tt.jobType, tt.role), "%s/%s", tt.jobType, tt.role)
	}
}

func TestStockAdjustment_Validate(t *testing.T) {
	valid := StockAdjustment{ProductID: "p1", Quantity: 3, Direction: DirectionOut, Reason: JobReason("job-1")}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, -3, DirectionOut.Signed(3))

	noReason := valid
	noReason.Reason = ""
	assert.ErrorIs(t, noReason.Validate(), ErrLedgerReasonRequired)

	zero := valid
	zero.Quantity = 0
	assert.ErrorIs(t, zero.Validate(), ErrInvalidQuantity)
}
