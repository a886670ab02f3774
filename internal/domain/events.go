package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// JobCreatedEvent is published when a job is created
type JobCreatedEvent struct {
	JobID     string    `json:"jobId"`
	JobType   string    `json:"jobType"`
	SiteID    string    `json:"siteId"`
	ItemCount int       `json:"itemCount"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *JobCreatedEvent) EventType() string     { return "wms.fulfillment.job-created" }
func (e *JobCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// JobAssignedEvent is published when a worker is assigned
type JobAssignedEvent struct {
	JobID      string    `json:"jobId"`
	WorkerID   string    `json:"workerId"`
	AssignedAt time.Time `json:"assignedAt"`
}

func (e *JobAssignedEvent) EventType() string     { return "wms.fulfillment.job-assigned" }
func (e *JobAssignedEvent) OccurredAt() time.Time { return e.AssignedAt }

// JobStartedEvent is published when a job moves to In-Progress
type JobStartedEvent struct {
	JobID     string    `json:"jobId"`
	WorkerID  string    `json:"workerId"`
	StartedAt time.Time `json:"startedAt"`
}

func (e *JobStartedEvent) EventType() string     { return "wms.fulfillment.job-started" }
func (e *JobStartedEvent) OccurredAt() time.Time { return e.StartedAt }

// ItemScannedEvent is published when a line item reaches a scanned status
type ItemScannedEvent struct {
	JobID         string    `json:"jobId"`
	LineItemIndex int       `json:"lineItemIndex"`
	SKU           string    `json:"sku"`
	Quantity      int       `json:"quantity"`
	ExpectedQty   int       `json:"expectedQty"`
	Status        string    `json:"status"`
	ScannedAt     time.Time `json:"scannedAt"`
}

func (e *ItemScannedEvent) EventType() string {
	if e.Status == string(LineItemShort) {
		return "wms.fulfillment.item-short"
	}
	return "wms.fulfillment.item-scanned"
}
func (e *ItemScannedEvent) OccurredAt() time.Time { return e.ScannedAt }

// JobCompletedEvent is published when every item of a job is terminal
type JobCompletedEvent struct {
	JobID       string    `json:"jobId"`
	JobType     string    `json:"jobType"`
	OrderRef    string    `json:"orderRef,omitempty"`
	WorkerID    string    `json:"workerId,omitempty"`
	Units       int       `json:"units"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *JobCompletedEvent) EventType() string     { return "wms.fulfillment.job-completed" }
func (e *JobCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// JobCancelledEvent is published when a job is cancelled
type JobCancelledEvent struct {
	JobID       string    `json:"jobId"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelledAt"`
}

func (e *JobCancelledEvent) EventType() string     { return "wms.fulfillment.job-cancelled" }
func (e *JobCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }

// TransferRequestedEvent is published when a transfer is requested
type TransferRequestedEvent struct {
	TransferID   string    `json:"transferId"`
	SourceSiteID string    `json:"sourceSiteId"`
	DestSiteID   string    `json:"destSiteId"`
	RequestedBy  string    `json:"requestedBy"`
	RequestedAt  time.Time `json:"requestedAt"`
}

func (e *TransferRequestedEvent) EventType() string     { return "wms.transfer.requested" }
func (e *TransferRequestedEvent) OccurredAt() time.Time { return e.RequestedAt }

// TransferStatusChangedEvent is published on every transfer pipeline edge
type TransferStatusChangedEvent struct {
	TransferID string    `json:"transferId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    string    `json:"actorId,omitempty"`
	ChangedAt  time.Time `json:"changedAt"`
}

func (e *TransferStatusChangedEvent) EventType() string     { return "wms.transfer.status-changed" }
func (e *TransferStatusChangedEvent) OccurredAt() time.Time { return e.ChangedAt }

// TransferReceivedEvent is published when the destination finalizes a receipt
type TransferReceivedEvent struct {
	TransferID    string    `json:"transferId"`
	ReceivedBy    string    `json:"receivedBy"`
	Discrepancies int       `json:"discrepancies"`
	ReceivedAt    time.Time `json:"receivedAt"`
}

func (e *TransferReceivedEvent) EventType() string     { return "wms.transfer.received" }
func (e *TransferReceivedEvent) OccurredAt() time.Time { return e.ReceivedAt }

// DiscrepancyRaisedEvent is published when a variance record is opened
type DiscrepancyRaisedEvent struct {
	ResolutionID    string    `json:"resolutionId"`
	TransferID      string    `json:"transferId"`
	LineItemIndex   int       `json:"lineItemIndex"`
	Variance        int       `json:"variance"`
	DiscrepancyType string    `json:"discrepancyType"`
	RaisedAt        time.Time `json:"raisedAt"`
}

func (e *DiscrepancyRaisedEvent) EventType() string     { return "wms.discrepancy.raised" }
func (e *DiscrepancyRaisedEvent) OccurredAt() time.Time { return e.RaisedAt }

// DiscrepancyResolvedEvent is published when a resolution is decided
type DiscrepancyResolvedEvent struct {
	ResolutionID     string    `json:"resolutionId"`
	TransferID       string    `json:"transferId"`
	LineItemIndex    int       `json:"lineItemIndex"`
	ResolutionType   string    `json:"resolutionType"`
	ResolutionStatus string    `json:"resolutionStatus"`
	ReplacementJobID string    `json:"replacementJobId,omitempty"`
	ResolvedBy       string    `json:"resolvedBy"`
	ResolvedAt       time.Time `json:"resolvedAt"`
}

func (e *DiscrepancyResolvedEvent) EventType() string     { return "wms.discrepancy.resolved" }
func (e *DiscrepancyResolvedEvent) OccurredAt() time.Time { return e.ResolvedAt }

// InventoryChangeRequestedEvent is published when a change enters the approval queue
type InventoryChangeRequestedEvent struct {
	ChangeID    string    `json:"changeId"`
	ChangeType  string    `json:"changeType"`
	SKU         string    `json:"sku"`
	SiteID      string    `json:"siteId"`
	RequestedBy string    `json:"requestedBy"`
	RequestedAt time.Time `json:"requestedAt"`
}

func (e *InventoryChangeRequestedEvent) EventType() string     { return "wms.inventory.change-requested" }
func (e *InventoryChangeRequestedEvent) OccurredAt() time.Time { return e.RequestedAt }
