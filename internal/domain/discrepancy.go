package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscrepancyType classifies a variance
type DiscrepancyType string

const (
	DiscrepancyShortage  DiscrepancyType = "shortage"
	DiscrepancyOverage   DiscrepancyType = "overage"
	DiscrepancyDamaged   DiscrepancyType = "damaged"
	DiscrepancyWrongItem DiscrepancyType = "wrong_item"
	DiscrepancyMissing   DiscrepancyType = "missing"
)

// IsValid checks if the discrepancy type is known
func (t DiscrepancyType) IsValid() bool {
	switch t {
	case DiscrepancyShortage, DiscrepancyOverage, DiscrepancyDamaged, DiscrepancyWrongItem, DiscrepancyMissing:
		return true
	}
	return false
}

// InferDiscrepancyType derives the type from the sign of received - expected
func InferDiscrepancyType(variance int) DiscrepancyType {
	switch {
	case variance < 0:
		return DiscrepancyShortage
	case variance > 0:
		return DiscrepancyOverage
	}
	return ""
}

// ResolutionType is the action taken for a discrepancy
type ResolutionType string

const (
	ResolutionAccept      ResolutionType = "accept"
	ResolutionInvestigate ResolutionType = "investigate"
	ResolutionReplace     ResolutionType = "replace"
	ResolutionAdjust      ResolutionType = "adjust"
	ResolutionReject      ResolutionType = "reject"
	ResolutionDispose     ResolutionType = "dispose"
	ResolutionRecount     ResolutionType = "recount"
	ResolutionClaim       ResolutionType = "claim"
)

// IsValid checks if the resolution type is known
func (t ResolutionType) IsValid() bool {
	switch t {
	case ResolutionAccept, ResolutionInvestigate, ResolutionReplace, ResolutionAdjust,
		ResolutionReject, ResolutionDispose, ResolutionRecount, ResolutionClaim:
		return true
	}
	return false
}

// KeepsPending is true for resolutions that leave the record in the exceptions queue
func (t ResolutionType) KeepsPending() bool {
	return t == ResolutionInvestigate || t == ResolutionRecount
}

// ResolutionStatus is the lifecycle of a discrepancy record
type ResolutionStatus string

const (
	ResolutionPending ResolutionStatus = "pending"
	ResolutionClosed  ResolutionStatus = "closed"
)

// ResolutionDetails carries the operator's decision inputs
type ResolutionDetails struct {
	Notes       string
	ReasonCode  string
	ClaimAmount decimal.NullDecimal
	Quantity    int
}

// DiscrepancyResolution records a variance on one transfer line and its resolution
type DiscrepancyResolution struct {
	ID               string              `bson:"_id"`
	TransferID       string              `bson:"transferId"`
	LineItemIndex    int                 `bson:"lineItemIndex"`
	ProductID        string              `bson:"productId,omitempty"`
	SKU              string              `bson:"sku"`
	ExpectedQty      int                 `bson:"expectedQty"`
	ReceivedQty      int                 `bson:"receivedQty"`
	Variance         int                 `bson:"variance"`
	DiscrepancyType  DiscrepancyType     `bson:"discrepancyType"`
	ResolutionType   ResolutionType      `bson:"resolutionType,omitempty"`
	ResolutionStatus ResolutionStatus    `bson:"resolutionStatus"`
	ResolutionNotes  string              `bson:"resolutionNotes,omitempty"`
	ReasonCode       string              `bson:"reasonCode,omitempty"`
	ClaimAmount      decimal.NullDecimal `bson:"-"`
	ReplacementJobID string              `bson:"replacementJobId,omitempty"`
	ReportedBy       string              `bson:"reportedBy"`
	ResolvedBy       string              `bson:"resolvedBy,omitempty"`
	SiteID           string              `bson:"siteId"`
	CreatedAt        time.Time           `bson:"createdAt"`
	ResolvedAt       *time.Time          `bson:"resolvedAt,omitempty"`
	DomainEvents     []DomainEvent       `bson:"-"`
}

// NewDiscrepancyResolution opens a pending record for one transfer line.
// An empty discrepancyType is inferred from the variance.
func NewDiscrepancyResolution(id string, transfer *Job, originalIndex, receivedQty int, discrepancyType DiscrepancyType, reportedBy string) (*DiscrepancyResolution, error) {
	if !transfer.IsTransfer() {
		return nil, ErrNotTransfer
	}
	item, err := transfer.Item(originalIndex)
	if err != nil {
		return nil, err
	}

	variance := receivedQty - item.ExpectedQty
	if discrepancyType == "" {
		discrepancyType = InferDiscrepancyType(variance)
	}
	if !discrepancyType.IsValid() {
		return nil, ErrInvalidDiscrepancyType
	}

	now := time.Now().UTC()
	d := &DiscrepancyResolution{
		ID:               id,
		TransferID:       transfer.ID,
		LineItemIndex:    originalIndex,
		ProductID:        item.ProductID,
		SKU:              item.SKU,
		ExpectedQty:      item.ExpectedQty,
		ReceivedQty:      receivedQty,
		Variance:         variance,
		DiscrepancyType:  discrepancyType,
		ResolutionStatus: ResolutionPending,
		ReportedBy:       reportedBy,
		SiteID:           transfer.DestSiteID,
		CreatedAt:        now,
	}

	d.DomainEvents = []DomainEvent{&DiscrepancyRaisedEvent{
		ResolutionID:    id,
		TransferID:      transfer.ID,
		LineItemIndex:   originalIndex,
		Variance:        variance,
		DiscrepancyType: string(discrepancyType),
		RaisedAt:        now,
	}}
	return d, nil
}

// IsClosed returns true once a final resolution was applied
func (d *DiscrepancyResolution) IsClosed() bool {
	return d.ResolutionStatus == ResolutionClosed
}

// Reclassify overrides the discrepancy type while the record is pending
func (d *DiscrepancyResolution) Reclassify(t DiscrepancyType) error {
	if d.IsClosed() {
		return ErrResolutionClosed
	}
	if !t.IsValid() {
		return ErrInvalidDiscrepancyType
	}
	d.DiscrepancyType = t
	return nil
}

// ValidateResolution checks the preconditions of a resolution type
func (d *DiscrepancyResolution) ValidateResolution(rt ResolutionType, details ResolutionDetails) error {
	if d.IsClosed() {
		return ErrResolutionClosed
	}
	if !rt.IsValid() {
		return ErrInvalidResolutionType
	}
	if details.Quantity < 0 {
		return ErrInvalidQuantity
	}

	switch rt {
	case ResolutionAdjust:
		if d.DiscrepancyType != DiscrepancyShortage && d.DiscrepancyType != DiscrepancyMissing {
			return ErrAdjustRequiresShortage
		}
		if details.Quantity > d.Shortfall() {
			return ErrInvalidQuantity
		}
	case ResolutionReject, ResolutionDispose:
		if details.Notes == "" {
			return ErrNotesRequired
		}
	case ResolutionClaim:
		if !details.ClaimAmount.Valid || !details.ClaimAmount.Decimal.IsPositive() {
			return ErrClaimAmountRequired
		}
	}
	return nil
}

// Shortfall is the number of units that did not arrive
func (d *DiscrepancyResolution) Shortfall() int {
	if d.Variance < 0 {
		return -d.Variance
	}
	return 0
}

// AffectedQuantity is the quantity a resolution acts on: the explicit quantity
// when given, otherwise the size of the variance.
func (d *DiscrepancyResolution) AffectedQuantity(details ResolutionDetails) int {
	if details.Quantity > 0 {
		return details.Quantity
	}
	if d.Variance < 0 {
		return -d.Variance
	}
	return d.Variance
}

// Resolve records the decision. Investigate and recount keep the record pending.
func (d *DiscrepancyResolution) Resolve(rt ResolutionType, details ResolutionDetails, resolvedBy string) error {
	if err := d.ValidateResolution(rt, details); err != nil {
		return err
	}

	now := time.Now().UTC()
	d.ResolutionType = rt
	d.ResolutionNotes = details.Notes
	d.ReasonCode = details.ReasonCode
	if rt == ResolutionClaim {
		d.ClaimAmount = details.ClaimAmount
	}
	if !rt.KeepsPending() {
		d.ResolutionStatus = ResolutionClosed
		d.ResolvedBy = resolvedBy
		d.ResolvedAt = &now
	}

	d.DomainEvents = append(d.DomainEvents, &DiscrepancyResolvedEvent{
		ResolutionID:     d.ID,
		TransferID:       d.TransferID,
		LineItemIndex:    d.LineItemIndex,
		ResolutionType:   string(rt),
		ResolutionStatus: string(d.ResolutionStatus),
		ReplacementJobID: d.ReplacementJobID,
		ResolvedBy:       resolvedBy,
		ResolvedAt:       now,
	})
	return nil
}

// ClearDomainEvents clears all domain events
func (d *DiscrepancyResolution) ClearDomainEvents() {
	d.DomainEvents = nil
}
