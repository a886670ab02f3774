package application

import (
	stderrors "errors"
	"fmt"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
)

var conflictErrors = []error{
	domain.ErrJobCancelled,
	domain.ErrJobAlreadyCompleted,
	domain.ErrJobNotInProgress,
	domain.ErrItemsNotTerminal,
	domain.ErrTransferNotApproved,
	domain.ErrInvalidTransferTransition,
	domain.ErrLineItemNotPending,
	domain.ErrStaleLineItem,
	domain.ErrNoPendingItems,
	domain.ErrTransferScan,
	domain.ErrConcurrentModification,
	domain.ErrResolutionClosed,
	domain.ErrChangeNotPending,
	domain.ErrProposalNotPending,
	domain.ErrProposalExpired,
	domain.ErrWorkerAtCapacity,
	domain.ErrWorkerOffline,
	domain.ErrZoneLocked,
	domain.ErrLockNotAcquired,
}

// mapDomainError translates domain sentinels into API errors.
// Anything unrecognised is reported as a validation error.
func mapDomainError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsAppError(err); ok {
		return err
	}

	var locked *domain.LockedError
	if stderrors.As(err, &locked) {
		return errors.ErrLocked(locked.JobID, locked.Holder).Wrap(err)
	}
	if stderrors.Is(err, domain.ErrLineItemNotFound) {
		return errors.ErrNotFound("line item").Wrap(err)
	}
	for _, target := range conflictErrors {
		if stderrors.Is(err, target) {
			return errors.ErrConflict(err.Error()).Wrap(err)
		}
	}
	return errors.ErrValidation(err.Error()).Wrap(err)
}

// persistenceError wraps repository failures; stale versions become conflicts
func persistenceError(action string, err error) error {
	if stderrors.Is(err, domain.ErrConcurrentModification) {
		return errors.ErrConflict("job was modified concurrently, reload and retry").Wrap(err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
