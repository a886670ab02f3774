package application

import "time"

// LineItemDTO represents a line item in API responses
type LineItemDTO struct {
	OriginalIndex int        `json:"originalIndex"`
	ProductID     string     `json:"productId,omitempty"`
	SKU           string     `json:"sku"`
	Name          string     `json:"name"`
	Location      string     `json:"location,omitempty"`
	ExpectedQty   int        `json:"expectedQty"`
	PickedQty     int        `json:"pickedQty"`
	ReceivedQty   int        `json:"receivedQty"`
	Status        string     `json:"status"`
	BatchNumber   string     `json:"batchNumber,omitempty"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
}

// JobDTO represents a job in API responses
type JobDTO struct {
	ID             string        `json:"id"`
	JobNumber      string        `json:"jobNumber"`
	Type           string        `json:"type"`
	Status         string        `json:"status"`
	Priority       string        `json:"priority"`
	SiteID         string        `json:"siteId"`
	SourceSiteID   string        `json:"sourceSiteId,omitempty"`
	DestSiteID     string        `json:"destSiteId,omitempty"`
	Zone           string        `json:"zone,omitempty"`
	AssignedTo     string        `json:"assignedTo,omitempty"`
	LineItems      []LineItemDTO `json:"lineItems"`
	PickPath       []int         `json:"pickPath"`
	TransferStatus string        `json:"transferStatus,omitempty"`
	OrderRef       string        `json:"orderRef,omitempty"`
	RequestedBy    string        `json:"requestedBy,omitempty"`
	ApprovedBy     string        `json:"approvedBy,omitempty"`
	TrackingNumber string        `json:"trackingNumber,omitempty"`
	Version        int64         `json:"version"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	StartedAt      *time.Time    `json:"startedAt,omitempty"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
	ShippedAt      *time.Time    `json:"shippedAt,omitempty"`
	ReceivedAt     *time.Time    `json:"receivedAt,omitempty"`
}

// ScanResultDTO is the outcome of a scan. Duplicate is set on replays.
type ScanResultDTO struct {
	Job              *JobDTO `json:"job"`
	LineItemIndex    int     `json:"lineItemIndex"`
	ItemStatus       string  `json:"itemStatus"`
	Quantity         int     `json:"quantity"`
	MovementID       string  `json:"movementId,omitempty"`
	PendingChangeID  string  `json:"pendingChangeId,omitempty"`
	AwaitingApproval bool    `json:"awaitingApproval"`
	JobCompleted     bool    `json:"jobCompleted"`
	NextItemIndex    *int    `json:"nextItemIndex,omitempty"`
	Duplicate        bool    `json:"duplicate"`
}

// ProposalDTO represents a proposal in API responses
type ProposalDTO struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	JobID         string    `json:"jobId"`
	LineItemIndex int       `json:"lineItemIndex"`
	Reason        string    `json:"reason,omitempty"`
	ProposedBy    string    `json:"proposedBy"`
	Status        string    `json:"status"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// DiscrepancyDTO represents a discrepancy resolution in API responses
type DiscrepancyDTO struct {
	ID               string     `json:"id"`
	TransferID       string     `json:"transferId"`
	LineItemIndex    int        `json:"lineItemIndex"`
	ProductID        string     `json:"productId,omitempty"`
	SKU              string     `json:"sku"`
	ExpectedQty      int        `json:"expectedQty"`
	ReceivedQty      int        `json:"receivedQty"`
	Variance         int        `json:"variance"`
	DiscrepancyType  string     `json:"discrepancyType"`
	ResolutionType   string     `json:"resolutionType,omitempty"`
	ResolutionStatus string     `json:"resolutionStatus"`
	ResolutionNotes  string     `json:"resolutionNotes,omitempty"`
	ReasonCode       string     `json:"reasonCode,omitempty"`
	ClaimAmount      string     `json:"claimAmount,omitempty"`
	ReplacementJobID string     `json:"replacementJobId,omitempty"`
	ReportedBy       string     `json:"reportedBy"`
	ResolvedBy       string     `json:"resolvedBy,omitempty"`
	SiteID           string     `json:"siteId"`
	CreatedAt        time.Time  `json:"createdAt"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
}

// ReceiveResultDTO is the outcome of finalizing a transfer receipt
type ReceiveResultDTO struct {
	Transfer      *JobDTO          `json:"transfer"`
	Discrepancies []DiscrepancyDTO `json:"discrepancies"`
}

// ResolutionResultDTO is the outcome of classifyAndResolve
type ResolutionResultDTO struct {
	Resolution      *DiscrepancyDTO `json:"resolution"`
	ReplacementJob  *JobDTO         `json:"replacementJob,omitempty"`
	MovementID      string          `json:"movementId,omitempty"`
	TransferStatus  string          `json:"transferStatus"`
	JobStatus       string          `json:"jobStatus"`
	AlreadyResolved bool            `json:"alreadyResolved"`
}

// InventoryChangeDTO represents a pending inventory change in API responses
type InventoryChangeDTO struct {
	ID               string     `json:"id"`
	ProductID        string     `json:"productId"`
	ProductName      string     `json:"productName"`
	ProductSKU       string     `json:"productSku"`
	SiteID           string     `json:"siteId"`
	ChangeType       string     `json:"changeType"`
	AdjustmentType   string     `json:"adjustmentType"`
	AdjustmentQty    int        `json:"adjustmentQty"`
	AdjustmentReason string     `json:"adjustmentReason,omitempty"`
	RequestedBy      string     `json:"requestedBy"`
	RequestedAt      time.Time  `json:"requestedAt"`
	ApprovedBy       string     `json:"approvedBy,omitempty"`
	DecidedAt        *time.Time `json:"decidedAt,omitempty"`
	RejectionReason  string     `json:"rejectionReason,omitempty"`
	Status           string     `json:"status"`
	JobID            string     `json:"jobId,omitempty"`
	LineItemIndex    *int       `json:"lineItemIndex,omitempty"`
}

// WorkerDTO represents a worker in API responses
type WorkerDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	SiteID string `json:"siteId"`
	Status string `json:"status"`
}

// AssignmentDTO represents a job assignment in API responses
type AssignmentDTO struct {
	ID         string    `json:"id"`
	JobID      string    `json:"jobId"`
	WorkerID   string    `json:"workerId"`
	WorkerName string    `json:"workerName"`
	Status     string    `json:"status"`
	AssignedAt time.Time `json:"assignedAt"`
}

// SuggestionDTO is the scheduler's recommendation for a job
type SuggestionDTO struct {
	JobID    string     `json:"jobId"`
	Worker   *WorkerDTO `json:"worker"`
	Workload int        `json:"workload"`
}

// ZoneLockDTO represents a maintenance lock in API responses
type ZoneLockDTO struct {
	SiteID   string    `json:"siteId"`
	Zone     string    `json:"zone"`
	Reason   string    `json:"reason,omitempty"`
	LockedBy string    `json:"lockedBy"`
	LockedAt time.Time `json:"lockedAt"`
}
