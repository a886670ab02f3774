package application

import (
	"github.com/shopspring/decimal"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/actor"
)

// CreateJobCommand requests a manual job
type CreateJobCommand struct {
	Type      string
	SiteID    string
	Priority  string
	Zone      string
	OrderRef  string
	LineItems []domain.LineItem
	Actor     actor.Actor
}

// GetJobQuery fetches one job
type GetJobQuery struct {
	JobID string
}

// StartJobCommand starts a job for a worker
type StartJobCommand struct {
	JobID           string
	WorkerID        string
	ManagerOverride bool
	Actor           actor.Actor
}

// ScanItemCommand submits one scan. Attempt is the client's monotonic
// counter for the line and, with the job and line, forms the idempotency key.
type ScanItemCommand struct {
	JobID         string
	WorkerID      string
	LineItemIndex int
	Attempt       int
	ScannedSKU    string
	Quantity      *int
	ForcedStatus  string
	Actor         actor.Actor
}

// ShortResolution selects how a short pick is finished
type ShortResolution string

const (
	ShortStandard    ShortResolution = "standard"
	ShortDiscontinue ShortResolution = "discontinue"
)

// ResolveShortCommand finishes a short line
type ResolveShortCommand struct {
	JobID         string
	WorkerID      string
	LineItemIndex int
	Attempt       int
	ActualQty     int
	Resolution    ShortResolution
	ProposalID    string
	Actor         actor.Actor
}

// CompleteJobCommand completes a job explicitly
type CompleteJobCommand struct {
	JobID string
	Actor actor.Actor
}

// ProposeCommand opens a propose/confirm destructive command
type ProposeCommand struct {
	Kind          string
	JobID         string
	LineItemIndex int
	Reason        string
	Actor         actor.Actor
}

// CancelJobCommand confirms a cancel_job proposal
type CancelJobCommand struct {
	JobID      string
	ProposalID string
	Reason     string
	Actor      actor.Actor
}

// RequestTransferCommand requests an inter-site transfer
type RequestTransferCommand struct {
	SourceSiteID string
	DestSiteID   string
	Priority     string
	Zone         string
	LineItems    []domain.LineItem
	Actor        actor.Actor
}

// TransferCommand moves a transfer along one pipeline edge
type TransferCommand struct {
	TransferID string
	Actor      actor.Actor
}

// ShipTransferCommand ships a packed transfer
type ShipTransferCommand struct {
	TransferID     string
	TrackingNumber string
	Actor          actor.Actor
}

// CancelTransferCommand cancels a transfer before it ships
type CancelTransferCommand struct {
	TransferID string
	Reason     string
	Actor      actor.Actor
}

// FinalizeReceiveCommand records the destination receipt
type FinalizeReceiveCommand struct {
	TransferID string
	Lines      []domain.ReceivedLine
	Actor      actor.Actor
}

// ClassifyAndResolveCommand classifies a discrepancy and applies a resolution
type ClassifyAndResolveCommand struct {
	TransferID      string
	LineItemIndex   int
	DiscrepancyType string
	ResolutionType  string
	Notes           string
	ReasonCode      string
	ClaimAmount     decimal.NullDecimal
	Quantity        int
	Actor           actor.Actor
}

// AssignCommand assigns a job to a worker
type AssignCommand struct {
	JobID    string
	WorkerID string
	Actor    actor.Actor
}

// RegisterWorkerCommand adds or updates a roster entry
type RegisterWorkerCommand struct {
	WorkerID string
	Name     string
	Role     string
	SiteID   string
	Status   string
	Actor    actor.Actor
}

// ZoneLockCommand locks or unlocks a zone
type ZoneLockCommand struct {
	SiteID string
	Zone   string
	Reason string
	Actor  actor.Actor
}

// RequestAdjustmentCommand queues a manual stock adjustment
type RequestAdjustmentCommand struct {
	ProductID string
	Direction string
	Quantity  int
	Reason    string
	Actor     actor.Actor
}

// DecideChangeCommand approves or rejects a pending inventory change
type DecideChangeCommand struct {
	ChangeID string
	Reason   string
	Actor    actor.Actor
}
