package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// JobType represents the kind of warehouse work
type JobType string

const (
	JobTypePick      JobType = "PICK"
	JobTypePack      JobType = "PACK"
	JobTypePutaway   JobType = "PUTAWAY"
	JobTypeReplenish JobType = "REPLENISH"
	JobTypeTransfer  JobType = "TRANSFER"
	JobTypeReturns   JobType = "RETURNS"
	JobTypeDispatch  JobType = "DISPATCH"
	JobTypeCount     JobType = "COUNT"
)

// IsValid checks if the job type is known
func (t JobType) IsValid() bool {
	switch t {
	case JobTypePick, JobTypePack, JobTypePutaway, JobTypeReplenish,
		JobTypeTransfer, JobTypeReturns, JobTypeDispatch, JobTypeCount:
		return true
	}
	return false
}

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "Pending"
	JobStatusInProgress JobStatus = "In-Progress"
	JobStatusCompleted  JobStatus = "Completed"
	JobStatusCancelled  JobStatus = "Cancelled"
)

// IsTerminal returns true for Completed and Cancelled
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// Priority represents job urgency
type Priority string

const (
	PriorityNormal   Priority = "Normal"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// IsValid checks if the priority is known
func (p Priority) IsValid() bool {
	return p == PriorityNormal || p == PriorityHigh || p == PriorityCritical
}

// LineItemStatus represents the status of a line item
type LineItemStatus string

const (
	LineItemPending      LineItemStatus = "Pending"
	LineItemPicked       LineItemStatus = "Picked"
	LineItemShort        LineItemStatus = "Short"
	LineItemDiscontinued LineItemStatus = "Discontinued"
	LineItemCompleted    LineItemStatus = "Completed"
	LineItemResolved     LineItemStatus = "Resolved"
	LineItemDiscrepancy  LineItemStatus = "Discrepancy"
)

// IsTerminal reports membership in the terminal set used for job completion.
// Discrepancy is not terminal: it needs a resolution first.
func (s LineItemStatus) IsTerminal() bool {
	switch s {
	case LineItemPicked, LineItemShort, LineItemDiscontinued, LineItemCompleted, LineItemResolved:
		return true
	}
	return false
}

// LineItem is one product-quantity expectation within a job.
// OriginalIndex is its position in the job's arena and never changes.
type LineItem struct {
	OriginalIndex int            `bson:"originalIndex" json:"originalIndex"`
	ProductID     string         `bson:"productId,omitempty" json:"productId,omitempty"`
	SKU           string         `bson:"sku" json:"sku"`
	Name          string         `bson:"name" json:"name"`
	Location      string         `bson:"location,omitempty" json:"location,omitempty"`
	ExpectedQty   int            `bson:"expectedQty" json:"expectedQty"`
	PickedQty     int            `bson:"pickedQty" json:"pickedQty"`
	ReceivedQty   int            `bson:"receivedQty" json:"receivedQty"`
	Status        LineItemStatus `bson:"status" json:"status"`
	BatchNumber   string         `bson:"batchNumber,omitempty" json:"batchNumber,omitempty"`
	ExpiryDate    *time.Time     `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	ScannedAt     *time.Time     `bson:"scannedAt,omitempty" json:"scannedAt,omitempty"`
}

// Job is the aggregate root for fulfillment work
type Job struct {
	ID             string         `bson:"_id"`
	JobNumber      string         `bson:"jobNumber"`
	Type           JobType        `bson:"type"`
	Status         JobStatus      `bson:"status"`
	Priority       Priority       `bson:"priority"`
	SiteID         string         `bson:"siteId"`
	SourceSiteID   string         `bson:"sourceSiteId,omitempty"`
	DestSiteID     string         `bson:"destSiteId,omitempty"`
	Zone           string         `bson:"zone,omitempty"`
	AssignedTo     string         `bson:"assignedTo,omitempty"`
	LineItems      []LineItem     `bson:"lineItems"`
	TransferStatus TransferStatus `bson:"transferStatus,omitempty"`
	OrderRef       string         `bson:"orderRef,omitempty"`
	RequestedBy    string         `bson:"requestedBy,omitempty"`
	ApprovedBy     string         `bson:"approvedBy,omitempty"`
	TrackingNumber string         `bson:"trackingNumber,omitempty"`
	CancelReason   string         `bson:"cancelReason,omitempty"`
	Version        int64          `bson:"version"`
	CreatedAt      time.Time      `bson:"createdAt"`
	UpdatedAt      time.Time      `bson:"updatedAt"`
	StartedAt      *time.Time     `bson:"startedAt,omitempty"`
	CompletedAt    *time.Time     `bson:"completedAt,omitempty"`
	ShippedAt      *time.Time     `bson:"shippedAt,omitempty"`
	ReceivedAt     *time.Time     `bson:"receivedAt,omitempty"`
	DomainEvents   []DomainEvent  `bson:"-"`
}

// NewJob creates a new job in Pending status.
// Items are copied into the arena in the given order; their index becomes their identity.
func NewJob(id string, jobType JobType, siteID string, priority Priority, items []LineItem, requestedBy string) (*Job, error) {
	if !jobType.IsValid() {
		return nil, ErrInvalidJobType
	}
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.IsValid() {
		return nil, ErrInvalidPriority
	}

	arena := make([]LineItem, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.SKU) == "" || item.ExpectedQty <= 0 {
			return nil, fmt.Errorf("line item %d: %w", i, ErrInvalidLineItem)
		}
		arena[i] = LineItem{
			OriginalIndex: i,
			ProductID:     item.ProductID,
			SKU:           item.SKU,
			Name:          item.Name,
			Location:      item.Location,
			ExpectedQty:   item.ExpectedQty,
			Status:        LineItemPending,
			BatchNumber:   item.BatchNumber,
			ExpiryDate:    item.ExpiryDate,
		}
	}

	now := time.Now().UTC()
	job := &Job{
		ID:           id,
		JobNumber:    jobNumber(jobType, id),
		Type:         jobType,
		Status:       JobStatusPending,
		Priority:     priority,
		SiteID:       siteID,
		LineItems:    arena,
		RequestedBy:  requestedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}

	job.AddDomainEvent(&JobCreatedEvent{
		JobID:     id,
		JobType:   string(jobType),
		SiteID:    siteID,
		ItemCount: len(arena),
		CreatedAt: now,
	})

	return job, nil
}

// NewTransferJob creates a TRANSFER job awaiting approval
func NewTransferJob(id, sourceSiteID, destSiteID string, priority Priority, items []LineItem, requestedBy string) (*Job, error) {
	if sourceSiteID == "" || destSiteID == "" || sourceSiteID == destSiteID {
		return nil, ErrSameSite
	}

	job, err := NewJob(id, JobTypeTransfer, sourceSiteID, priority, items, requestedBy)
	if err != nil {
		return nil, err
	}
	job.SourceSiteID = sourceSiteID
	job.DestSiteID = destSiteID
	job.TransferStatus = TransferRequested
	job.OrderRef = "TRF-" + shortID(id)

	job.AddDomainEvent(&TransferRequestedEvent{
		TransferID:   id,
		SourceSiteID: sourceSiteID,
		DestSiteID:   destSiteID,
		RequestedBy:  requestedBy,
		RequestedAt:  job.CreatedAt,
	})

	return job, nil
}

func jobNumber(jobType JobType, id string) string {
	return fmt.Sprintf("%s-%s", jobType, shortID(id))
}

func shortID(id string) string {
	s := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}

// IsTransfer returns true for TRANSFER jobs
func (j *Job) IsTransfer() bool {
	return j.Type == JobTypeTransfer
}

// PickPath returns arena indexes sorted by (location, originalIndex).
// The arena itself is never reordered.
func (j *Job) PickPath() []int {
	path := make([]int, len(j.LineItems))
	for i := range j.LineItems {
		path[i] = i
	}
	sort.SliceStable(path, func(a, b int) bool {
		la, lb := j.LineItems[path[a]].Location, j.LineItems[path[b]].Location
		if la != lb {
			return la < lb
		}
		return path[a] < path[b]
	})
	return path
}

// Item returns the line item at originalIndex
func (j *Job) Item(originalIndex int) (*LineItem, error) {
	if originalIndex < 0 || originalIndex >= len(j.LineItems) {
		return nil, ErrLineItemNotFound
	}
	return &j.LineItems[originalIndex], nil
}

// NextPending returns the first Pending item in path order
func (j *Job) NextPending() (*LineItem, bool) {
	for _, idx := range j.PickPath() {
		if j.LineItems[idx].Status == LineItemPending {
			return &j.LineItems[idx], true
		}
	}
	return nil, false
}

// AllItemsTerminal reports whether every line item is terminal
func (j *Job) AllItemsTerminal() bool {
	if len(j.LineItems) == 0 {
		return false
	}
	for _, item := range j.LineItems {
		if !item.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// Assign sets the worker responsible for the job
func (j *Job) Assign(workerID string) error {
	if j.Status == JobStatusCancelled {
		return ErrJobCancelled
	}
	if j.Status == JobStatusCompleted {
		return ErrJobAlreadyCompleted
	}

	now := time.Now().UTC()
	j.AssignedTo = workerID
	j.UpdatedAt = now

	j.AddDomainEvent(&JobAssignedEvent{
		JobID:      j.ID,
		WorkerID:   workerID,
		AssignedAt: now,
	})
	return nil
}

// Start moves the job to In-Progress for workerID.
// A job held by another worker is locked unless override is set.
func (j *Job) Start(workerID string, override bool) error {
	switch j.Status {
	case JobStatusCancelled:
		return ErrJobCancelled
	case JobStatusCompleted:
		return ErrJobAlreadyCompleted
	}
	if len(j.LineItems) == 0 {
		return ErrNoLineItems
	}
	if j.IsTransfer() && (j.TransferStatus == TransferRequested || j.TransferStatus == TransferCancelled) {
		return ErrTransferNotApproved
	}
	if j.AssignedTo != "" && j.AssignedTo != workerID && !override {
		return &LockedError{JobID: j.ID, Holder: j.AssignedTo}
	}

	if j.AssignedTo != workerID {
		if err := j.Assign(workerID); err != nil {
			return err
		}
	}
	if j.Status == JobStatusInProgress {
		return nil
	}

	now := time.Now().UTC()
	j.Status = JobStatusInProgress
	j.StartedAt = &now
	j.UpdatedAt = now

	j.AddDomainEvent(&JobStartedEvent{
		JobID:     j.ID,
		WorkerID:  workerID,
		StartedAt: now,
	})
	return nil
}

// RecordScan applies a scanned quantity to a pending item.
// The item becomes Short iff qty < expected, otherwise Picked, unless forced is set.
func (j *Job) RecordScan(originalIndex, qty int, forced LineItemStatus) error {
	if j.Status != JobStatusInProgress {
		if j.Status == JobStatusCancelled {
			return ErrJobCancelled
		}
		return ErrJobNotInProgress
	}
	item, err := j.Item(originalIndex)
	if err != nil {
		return err
	}
	if item.Status != LineItemPending {
		return ErrLineItemNotPending
	}
	if err := j.ValidateScanQuantity(item, qty); err != nil {
		return err
	}
	if forced != "" && forced != LineItemPicked && forced != LineItemShort && forced != LineItemCompleted {
		return ErrInvalidForcedStatus
	}

	status := forced
	if status == "" {
		status = LineItemPicked
		if qty < item.ExpectedQty {
			status = LineItemShort
		}
	}

	now := time.Now().UTC()
	if j.Type == JobTypePutaway {
		item.ReceivedQty = qty
	} else {
		item.PickedQty = qty
	}
	item.Status = status
	item.ScannedAt = &now
	j.UpdatedAt = now

	j.AddDomainEvent(&ItemScannedEvent{
		JobID:         j.ID,
		LineItemIndex: originalIndex,
		SKU:           item.SKU,
		Quantity:      qty,
		ExpectedQty:   item.ExpectedQty,
		Status:        string(status),
		ScannedAt:     now,
	})
	return nil
}

// ValidateScanQuantity rejects negative, decreasing and over-picked quantities
func (j *Job) ValidateScanQuantity(item *LineItem, qty int) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}
	current := item.PickedQty
	if j.Type == JobTypePutaway {
		current = item.ReceivedQty
	}
	if qty < current {
		return ErrNonMonotonicQuantity
	}
	if j.Type == JobTypePick && qty > item.ExpectedQty {
		return ErrOverPick
	}
	return nil
}

// DiscontinueItem force-finishes an item whose product is being discontinued
func (j *Job) DiscontinueItem(originalIndex int) error {
	if j.Status == JobStatusCancelled {
		return ErrJobCancelled
	}
	item, err := j.Item(originalIndex)
	if err != nil {
		return err
	}
	if item.Status != LineItemPending && item.Status != LineItemShort {
		return ErrLineItemNotPending
	}

	now := time.Now().UTC()
	item.Status = LineItemDiscontinued
	item.PickedQty = 0
	item.ReceivedQty = 0
	item.ScannedAt = &now
	j.UpdatedAt = now
	return nil
}

// LinkProduct records the catalog product for an item once it exists
func (j *Job) LinkProduct(originalIndex int, productID string) error {
	item, err := j.Item(originalIndex)
	if err != nil {
		return err
	}
	item.ProductID = productID
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete marks the job as completed. Every item must be terminal.
func (j *Job) Complete() error {
	switch j.Status {
	case JobStatusCompleted:
		return ErrJobAlreadyCompleted
	case JobStatusCancelled:
		return ErrJobCancelled
	}
	if !j.AllItemsTerminal() {
		return ErrItemsNotTerminal
	}

	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now

	j.AddDomainEvent(&JobCompletedEvent{
		JobID:       j.ID,
		JobType:     string(j.Type),
		OrderRef:    j.OrderRef,
		WorkerID:    j.AssignedTo,
		Units:       j.ProcessedUnits(),
		CompletedAt: now,
	})
	return nil
}

// TryComplete completes the job when all items are terminal and reports whether it did
func (j *Job) TryComplete() bool {
	if j.Status.IsTerminal() || !j.AllItemsTerminal() {
		return false
	}
	return j.Complete() == nil
}

// Cancel cancels a non-terminal job
func (j *Job) Cancel(reason string) error {
	switch j.Status {
	case JobStatusCompleted:
		return ErrJobAlreadyCompleted
	case JobStatusCancelled:
		return ErrJobCancelled
	}

	now := time.Now().UTC()
	j.Status = JobStatusCancelled
	j.CancelReason = reason
	j.UpdatedAt = now

	j.AddDomainEvent(&JobCancelledEvent{
		JobID:       j.ID,
		Reason:      reason,
		CancelledAt: now,
	})
	return nil
}

// ProcessedUnits sums picked and received quantities
func (j *Job) ProcessedUnits() int {
	total := 0
	for _, item := range j.LineItems {
		total += item.PickedQty + item.ReceivedQty
	}
	return total
}

// ExpectedUnits sums expected quantities
func (j *Job) ExpectedUnits() int {
	total := 0
	for _, item := range j.LineItems {
		total += item.ExpectedQty
	}
	return total
}

// AddDomainEvent adds a domain event
func (j *Job) AddDomainEvent(event DomainEvent) {
	j.DomainEvents = append(j.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (j *Job) ClearDomainEvents() {
	j.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (j *Job) GetDomainEvents() []DomainEvent {
	return j.DomainEvents
}
