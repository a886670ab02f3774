package domain

import (
	"fmt"
	"time"
)

// TransferStatus is the shipment pipeline of a TRANSFER job
type TransferStatus string

const (
	TransferRequested TransferStatus = "Requested"
	TransferApproved  TransferStatus = "Approved"
	TransferPicking   TransferStatus = "Picking"
	TransferPicked    TransferStatus = "Picked"
	TransferPacked    TransferStatus = "Packed"
	TransferInTransit TransferStatus = "In-Transit"
	TransferDelivered TransferStatus = "Delivered"
	TransferReceived  TransferStatus = "Received"
	TransferCancelled TransferStatus = "Cancelled"
)

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferRequested: {TransferApproved, TransferCancelled},
	TransferApproved:  {TransferPicking, TransferCancelled},
	TransferPicking:   {TransferPicked, TransferCancelled},
	TransferPicked:    {TransferPacked, TransferCancelled},
	TransferPacked:    {TransferInTransit, TransferCancelled},
	TransferInTransit: {TransferDelivered, TransferReceived},
	TransferDelivered: {TransferReceived},
}

// CanTransitionTo checks whether the edge s→target exists
func (s TransferStatus) CanTransitionTo(target TransferStatus) bool {
	for _, allowed := range transferTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsFinal returns true for Received and Cancelled
func (s TransferStatus) IsFinal() bool {
	return s == TransferReceived || s == TransferCancelled
}

// TransitionTransfer moves the transfer along one edge of the pipeline
func (j *Job) TransitionTransfer(target TransferStatus, actorID string) error {
	if !j.IsTransfer() {
		return ErrNotTransfer
	}
	if !j.TransferStatus.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransferTransition, j.TransferStatus, target)
	}

	now := time.Now().UTC()
	from := j.TransferStatus
	j.TransferStatus = target
	j.UpdatedAt = now

	switch target {
	case TransferInTransit:
		j.ShippedAt = &now
	case TransferReceived:
		j.ReceivedAt = &now
	}

	j.AddDomainEvent(&TransferStatusChangedEvent{
		TransferID: j.ID,
		From:       string(from),
		To:         string(target),
		ActorID:    actorID,
		ChangedAt:  now,
	})
	return nil
}

// Approve runs Requested→Approved→Picking and puts the transfer job in progress
func (j *Job) Approve(approverID string) error {
	if err := j.TransitionTransfer(TransferApproved, approverID); err != nil {
		return err
	}
	if err := j.TransitionTransfer(TransferPicking, approverID); err != nil {
		return err
	}
	j.ApprovedBy = approverID
	if j.Status == JobStatusPending {
		now := time.Now().UTC()
		j.Status = JobStatusInProgress
		j.StartedAt = &now
	}
	return nil
}

// Ship moves a packed transfer to In-Transit
func (j *Job) Ship(trackingNumber, actorID string) error {
	if err := j.TransitionTransfer(TransferInTransit, actorID); err != nil {
		return err
	}
	j.TrackingNumber = trackingNumber
	return nil
}

// CancelTransfer cancels the pipeline and the job together
func (j *Job) CancelTransfer(reason, actorID string) error {
	if err := j.TransitionTransfer(TransferCancelled, actorID); err != nil {
		return err
	}
	return j.Cancel(reason)
}

// ReceivedLine is the received quantity reported for one transfer line
type ReceivedLine struct {
	LineItemIndex int
	ReceivedQty   int
}

// ReceiptOutcome describes how one transfer line was received
type ReceiptOutcome struct {
	LineItemIndex int
	ExpectedQty   int
	ReceivedQty   int
	Listed        bool
}

// Matched reports whether the received quantity equals the expected one
func (o ReceiptOutcome) Matched() bool {
	return o.ReceivedQty == o.ExpectedQty
}

// PlanReceipt validates received lines and returns one outcome per arena item.
// Unlisted lines are treated as received zero.
func (j *Job) PlanReceipt(lines []ReceivedLine) ([]ReceiptOutcome, error) {
	if !j.IsTransfer() {
		return nil, ErrNotTransfer
	}
	if !j.TransferStatus.CanTransitionTo(TransferReceived) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransferTransition, j.TransferStatus, TransferReceived)
	}

	outcomes := make([]ReceiptOutcome, len(j.LineItems))
	for i, item := range j.LineItems {
		outcomes[i] = ReceiptOutcome{LineItemIndex: i, ExpectedQty: item.ExpectedQty}
	}
	for _, line := range lines {
		if line.LineItemIndex < 0 || line.LineItemIndex >= len(j.LineItems) {
			return nil, ErrLineItemNotFound
		}
		if line.ReceivedQty < 0 {
			return nil, ErrInvalidQuantity
		}
		if outcomes[line.LineItemIndex].Listed {
			return nil, fmt.Errorf("%w: line %d reported twice", ErrInvalidQuantity, line.LineItemIndex)
		}
		outcomes[line.LineItemIndex].ReceivedQty = line.ReceivedQty
		outcomes[line.LineItemIndex].Listed = true
	}
	return outcomes, nil
}

// ApplyReceipt records Received unconditionally and flags mismatching lines.
// The job completes only when every line matched.
func (j *Job) ApplyReceipt(outcomes []ReceiptOutcome, actorID string) error {
	if err := j.TransitionTransfer(TransferReceived, actorID); err != nil {
		return err
	}

	for _, o := range outcomes {
		item := &j.LineItems[o.LineItemIndex]
		item.ReceivedQty = o.ReceivedQty
		if o.Matched() {
			item.Status = LineItemCompleted
		} else {
			item.Status = LineItemDiscrepancy
		}
	}
	if j.Status == JobStatusPending {
		j.Status = JobStatusInProgress
	}

	j.AddDomainEvent(&TransferReceivedEvent{
		TransferID:    j.ID,
		ReceivedBy:    actorID,
		Discrepancies: j.DiscrepancyCount(),
		ReceivedAt:    *j.ReceivedAt,
	})

	j.TryComplete()
	return nil
}

// ResolveItem marks a Discrepancy item as Resolved. Resolving twice is a no-op.
func (j *Job) ResolveItem(originalIndex int) error {
	item, err := j.Item(originalIndex)
	if err != nil {
		return err
	}
	switch item.Status {
	case LineItemResolved:
		return nil
	case LineItemDiscrepancy, LineItemCompleted:
		item.Status = LineItemResolved
		j.UpdatedAt = time.Now().UTC()
		return nil
	}
	return ErrLineItemNotPending
}

// FlagDiscrepancy marks a received item as Discrepancy after an explicit report.
// Items of a completed job keep their status; the record alone tracks the report.
func (j *Job) FlagDiscrepancy(originalIndex int) error {
	item, err := j.Item(originalIndex)
	if err != nil {
		return err
	}
	if j.Status.IsTerminal() || item.Status == LineItemResolved || item.Status == LineItemDiscrepancy {
		return nil
	}
	item.Status = LineItemDiscrepancy
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// DiscrepancyCount counts items waiting for a resolution
func (j *Job) DiscrepancyCount() int {
	n := 0
	for _, item := range j.LineItems {
		if item.Status == LineItemDiscrepancy {
			n++
		}
	}
	return n
}
