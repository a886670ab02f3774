package domain

import (
	"strings"
	"time"
)

// Direction of a ledger movement
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// IsValid checks if the direction is known
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Signed returns qty with the sign of the direction
func (d Direction) Signed(qty int) int {
	if d == DirectionOut {
		return -qty
	}
	return qty
}

// JobReason is the ledger reason for effects triggered by a job
func JobReason(jobID string) string {
	return "job:" + jobID
}

// ResolutionReason is the ledger reason for effects triggered by a discrepancy resolution
func ResolutionReason(resolutionID string) string {
	return "resolution:" + resolutionID
}

// ChangeReason is the ledger reason for effects triggered by an approved inventory change
func ChangeReason(changeID string) string {
	return "change:" + changeID
}

// StockAdjustment is a request to the stock ledger.
// IdempotencyKey makes retried adjustments apply once.
type StockAdjustment struct {
	ProductID      string
	SiteID         string
	Quantity       int
	Direction      Direction
	Reason         string
	Reference      string
	Actor          string
	IdempotencyKey string
}

// Validate checks the adjustment before it reaches the ledger
func (a StockAdjustment) Validate() error {
	if a.ProductID == "" {
		return ErrLineItemNotFound
	}
	if a.Quantity <= 0 || !a.Direction.IsValid() {
		return ErrInvalidQuantity
	}
	if strings.TrimSpace(a.Reason) == "" {
		return ErrLedgerReasonRequired
	}
	return nil
}

// StockMovement is an entry of the append-only stock ledger
type StockMovement struct {
	ID             string    `bson:"_id" json:"id"`
	ProductID      string    `bson:"productId" json:"productId"`
	SiteID         string    `bson:"siteId" json:"siteId"`
	Quantity       int       `bson:"quantity" json:"quantity"`
	Direction      Direction `bson:"direction" json:"direction"`
	Reason         string    `bson:"reason" json:"reason"`
	Reference      string    `bson:"reference,omitempty" json:"reference,omitempty"`
	Actor          string    `bson:"actor,omitempty" json:"actor,omitempty"`
	IdempotencyKey string    `bson:"idempotencyKey,omitempty" json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}

// NewStockMovement builds the ledger entry for a validated adjustment
func NewStockMovement(id string, adj StockAdjustment) *StockMovement {
	return &StockMovement{
		ID:             id,
		ProductID:      adj.ProductID,
		SiteID:         adj.SiteID,
		Quantity:       adj.Quantity,
		Direction:      adj.Direction,
		Reason:         adj.Reason,
		Reference:      adj.Reference,
		Actor:          adj.Actor,
		IdempotencyKey: adj.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
}

// ProductStatus represents catalog status
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductArchived ProductStatus = "archived"
)

// Product is a catalog entry at one site
type Product struct {
	ID        string        `bson:"_id"`
	SKU       string        `bson:"sku"`
	Name      string        `bson:"name"`
	SiteID    string        `bson:"siteId"`
	Location  string        `bson:"location,omitempty"`
	Stock     int           `bson:"stock"`
	Status    ProductStatus `bson:"status"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

// NewProduct creates an active product with zero stock
func NewProduct(id, sku, name, siteID, location string) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:        id,
		SKU:       sku,
		Name:      name,
		SiteID:    siteID,
		Location:  location,
		Status:    ProductActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsArchived returns true for discontinued products
func (p *Product) IsArchived() bool {
	return p.Status == ProductArchived
}

// ChangeType is the kind of pending inventory change
type ChangeType string

const (
	ChangeCreate          ChangeType = "create"
	ChangeStockAdjustment ChangeType = "stock_adjustment"
)

// ChangeStatus is the approval state of a pending change
type ChangeStatus string

const (
	ChangePending  ChangeStatus = "pending"
	ChangeApproved ChangeStatus = "approved"
	ChangeRejected ChangeStatus = "rejected"
)

// NewProductID marks a change whose product does not exist yet
const NewProductID = "new"

// PendingInventoryChange routes stock mutations for unrecognised SKUs through approval
type PendingInventoryChange struct {
	ID               string       `bson:"_id"`
	ProductID        string       `bson:"productId"`
	ProductName      string       `bson:"productName"`
	ProductSKU       string       `bson:"productSku"`
	SiteID           string       `bson:"siteId"`
	Location         string       `bson:"location,omitempty"`
	ChangeType       ChangeType   `bson:"changeType"`
	AdjustmentType   Direction    `bson:"adjustmentType"`
	AdjustmentQty    int          `bson:"adjustmentQty"`
	AdjustmentReason string       `bson:"adjustmentReason,omitempty"`
	RequestedBy      string       `bson:"requestedBy"`
	RequestedAt      time.Time    `bson:"requestedAt"`
	ApprovedBy       string       `bson:"approvedBy,omitempty"`
	DecidedAt        *time.Time   `bson:"decidedAt,omitempty"`
	RejectionReason  string       `bson:"rejectionReason,omitempty"`
	Status           ChangeStatus `bson:"status"`
	JobID            string       `bson:"jobId,omitempty"`
	LineItemIndex    *int         `bson:"lineItemIndex,omitempty"`
}

// NewProductCreationRequest raises a create change for a putaway line with an unknown product
func NewProductCreationRequest(id string, job *Job, item *LineItem, qty int, requestedBy string) *PendingInventoryChange {
	idx := item.OriginalIndex
	return &PendingInventoryChange{
		ID:               id,
		ProductID:        NewProductID,
		ProductName:      item.Name,
		ProductSKU:       item.SKU,
		SiteID:           job.SiteID,
		Location:         item.Location,
		ChangeType:       ChangeCreate,
		AdjustmentType:   DirectionIn,
		AdjustmentQty:    qty,
		AdjustmentReason: JobReason(job.ID),
		RequestedBy:      requestedBy,
		RequestedAt:      time.Now().UTC(),
		Status:           ChangePending,
		JobID:            job.ID,
		LineItemIndex:    &idx,
	}
}

// NewStockAdjustmentRequest raises a manual stock adjustment for approval
func NewStockAdjustmentRequest(id string, product *Product, direction Direction, qty int, reason, requestedBy string) (*PendingInventoryChange, error) {
	if qty <= 0 || !direction.IsValid() {
		return nil, ErrInvalidQuantity
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ErrLedgerReasonRequired
	}
	return &PendingInventoryChange{
		ID:               id,
		ProductID:        product.ID,
		ProductName:      product.Name,
		ProductSKU:       product.SKU,
		SiteID:           product.SiteID,
		ChangeType:       ChangeStockAdjustment,
		AdjustmentType:   direction,
		AdjustmentQty:    qty,
		AdjustmentReason: reason,
		RequestedBy:      requestedBy,
		RequestedAt:      time.Now().UTC(),
		Status:           ChangePending,
	}, nil
}

// Approve marks the change approved
func (c *PendingInventoryChange) Approve(approverID string) error {
	if c.Status != ChangePending {
		return ErrChangeNotPending
	}
	now := time.Now().UTC()
	c.Status = ChangeApproved
	c.ApprovedBy = approverID
	c.DecidedAt = &now
	return nil
}

// Reject marks the change rejected
func (c *PendingInventoryChange) Reject(approverID, reason string) error {
	if c.Status != ChangePending {
		return ErrChangeNotPending
	}
	now := time.Now().UTC()
	c.Status = ChangeRejected
	c.ApprovedBy = approverID
	c.RejectionReason = reason
	c.DecidedAt = &now
	return nil
}
