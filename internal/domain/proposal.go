package domain

import "time"

// ProposalKind is a destructive command that needs confirmation
type ProposalKind string

const (
	ProposalDiscontinueProduct ProposalKind = "discontinue_product"
	ProposalCancelJob          ProposalKind = "cancel_job"
)

// IsValid checks if the proposal kind is known
func (k ProposalKind) IsValid() bool {
	return k == ProposalDiscontinueProduct || k == ProposalCancelJob
}

// ProposalStatus is the lifecycle of a proposal
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalConfirmed ProposalStatus = "confirmed"
	ProposalExpired   ProposalStatus = "expired"
)

// Proposal is the first step of a propose/confirm destructive command
type Proposal struct {
	ID            string         `bson:"_id"`
	Kind          ProposalKind   `bson:"kind"`
	JobID         string         `bson:"jobId"`
	LineItemIndex int            `bson:"lineItemIndex"`
	Reason        string         `bson:"reason,omitempty"`
	ProposedBy    string         `bson:"proposedBy"`
	ConfirmedBy   string         `bson:"confirmedBy,omitempty"`
	Status        ProposalStatus `bson:"status"`
	CreatedAt     time.Time      `bson:"createdAt"`
	ExpiresAt     time.Time      `bson:"expiresAt"`
	ConfirmedAt   *time.Time     `bson:"confirmedAt,omitempty"`
}

// NewProposal creates a pending proposal valid for ttl
func NewProposal(id string, kind ProposalKind, jobID string, lineItemIndex int, reason, proposedBy string, ttl time.Duration) (*Proposal, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidProposal
	}
	now := time.Now().UTC()
	return &Proposal{
		ID:            id,
		Kind:          kind,
		JobID:         jobID,
		LineItemIndex: lineItemIndex,
		Reason:        reason,
		ProposedBy:    proposedBy,
		Status:        ProposalPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}, nil
}

// Confirm consumes the proposal for the matching command
func (p *Proposal) Confirm(kind ProposalKind, jobID string, lineItemIndex int, confirmedBy string, now time.Time) error {
	if p.Status != ProposalPending {
		return ErrProposalNotPending
	}
	if now.After(p.ExpiresAt) {
		p.Status = ProposalExpired
		return ErrProposalExpired
	}
	if p.Kind != kind || p.JobID != jobID || (kind == ProposalDiscontinueProduct && p.LineItemIndex != lineItemIndex) {
		return ErrProposalMismatch
	}
	p.Status = ProposalConfirmed
	p.ConfirmedBy = confirmedBy
	p.ConfirmedAt = &now
	return nil
}
