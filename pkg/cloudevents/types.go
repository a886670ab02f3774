package cloudevents

import "time"

// Event types emitted by the fulfillment service
const (
	// Job events
	JobCreated   = "wms.fulfillment.job-created"
	JobStarted   = "wms.fulfillment.job-started"
	JobAssigned  = "wms.fulfillment.job-assigned"
	ItemScanned  = "wms.fulfillment.item-scanned"
	ItemShort    = "wms.fulfillment.item-short"
	JobCompleted = "wms.fulfillment.job-completed"
	JobCancelled = "wms.fulfillment.job-cancelled"

	// Transfer events
	TransferRequested = "wms.transfer.requested"
	TransferStatus    = "wms.transfer.status-changed"
	TransferReceived  = "wms.transfer.received"

	// Discrepancy events
	DiscrepancyRaised   = "wms.discrepancy.raised"
	DiscrepancyResolved = "wms.discrepancy.resolved"

	// Inventory events
	InventoryChangeRequested = "wms.inventory.change-requested"
	ProductDiscontinued      = "wms.inventory.product-discontinued"
)

// SourceFulfillment is the CloudEvents source of this service
const SourceFulfillment = "/wms/fulfillment-service"

// WMSCloudEvent represents a CloudEvents v1.0 compliant event
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// WMS extensions
	CorrelationID string `json:"wmscorrelationid,omitempty"`
	SiteID        string `json:"wmssiteid,omitempty"`
	WorkflowID    string `json:"wmsworkflowid,omitempty"`
}
