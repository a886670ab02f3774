package domain

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrInvalidJobType            = errors.New("invalid job type")
	ErrInvalidPriority           = errors.New("invalid priority")
	ErrNoLineItems               = errors.New("job has no line items")
	ErrInvalidLineItem           = errors.New("line item requires a sku and a positive expected quantity")
	ErrInvalidQuantity           = errors.New("invalid quantity")
	ErrNonMonotonicQuantity      = errors.New("quantity cannot decrease")
	ErrOverPick                  = errors.New("quantity exceeds expected quantity")
	ErrSKUMismatch               = errors.New("scanned sku does not match the line item")
	ErrInvalidForcedStatus       = errors.New("forced status must be Picked, Short or Completed")
	ErrLineItemNotFound          = errors.New("line item not found")
	ErrLineItemNotPending        = errors.New("line item is not pending")
	ErrStaleLineItem             = errors.New("line item is not the next pending item")
	ErrNoPendingItems            = errors.New("job has no pending line items")
	ErrJobNotInProgress          = errors.New("job is not in progress")
	ErrJobCancelled              = errors.New("job is cancelled")
	ErrJobAlreadyCompleted       = errors.New("job is already completed")
	ErrItemsNotTerminal          = errors.New("job has line items that are not terminal")
	ErrNotTransfer               = errors.New("job is not a transfer")
	ErrTransferNotApproved       = errors.New("transfer is not approved")
	ErrInvalidTransferTransition = errors.New("invalid transfer status transition")
	ErrSameSite                  = errors.New("source and destination site must differ")
	ErrTransferScan              = errors.New("transfer lines are received through finalize receive")
	ErrConcurrentModification    = errors.New("job was modified concurrently")

	ErrInvalidDiscrepancyType = errors.New("invalid discrepancy type")
	ErrInvalidResolutionType  = errors.New("invalid resolution type")
	ErrAdjustRequiresShortage = errors.New("adjust resolution only applies to shortages")
	ErrNotesRequired          = errors.New("resolution notes are required")
	ErrClaimAmountRequired    = errors.New("claim amount must be positive")
	ErrResolutionClosed       = errors.New("resolution is already closed")

	ErrChangeNotPending = errors.New("inventory change is not pending")

	ErrProposalNotPending = errors.New("proposal is not pending")
	ErrProposalExpired    = errors.New("proposal has expired")
	ErrProposalMismatch   = errors.New("proposal does not match the command")
	ErrInvalidProposal    = errors.New("invalid proposal kind")

	ErrWorkerAtCapacity = errors.New("worker has reached the active assignment cap")
	ErrWorkerOffline    = errors.New("worker is offline")
	ErrZoneLocked       = errors.New("zone is under maintenance lock")
	ErrInvalidWorker    = errors.New("worker requires an id, a site, a known role and a known status")

	ErrLedgerReasonRequired = errors.New("ledger entries require a reason")
	ErrLockNotAcquired      = errors.New("job lock is held by another operation")
)

// LockedError is returned when another worker holds an in-progress job
type LockedError struct {
	JobID  string
	Holder string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("job %s is locked by %s", e.JobID, e.Holder)
}
