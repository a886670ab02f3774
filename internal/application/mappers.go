package application

import "github.com/wms-platform/fulfillment-service/internal/domain"

// ToJobDTO converts a Job aggregate to its DTO
func ToJobDTO(job *domain.Job) *JobDTO {
	if job == nil {
		return nil
	}

	items := make([]LineItemDTO, 0, len(job.LineItems))
	for _, item := range job.LineItems {
		items = append(items, LineItemDTO{
			OriginalIndex: item.OriginalIndex,
			ProductID:     item.ProductID,
			SKU:           item.SKU,
			Name:          item.Name,
			Location:      item.Location,
			ExpectedQty:   item.ExpectedQty,
			PickedQty:     item.PickedQty,
			ReceivedQty:   item.ReceivedQty,
			Status:        string(item.Status),
			BatchNumber:   item.BatchNumber,
			ExpiryDate:    item.ExpiryDate,
		})
	}

	return &JobDTO{
		ID:             job.ID,
		JobNumber:      job.JobNumber,
		Type:           string(job.Type),
		Status:         string(job.Status),
		Priority:       string(job.Priority),
		SiteID:         job.SiteID,
		SourceSiteID:   job.SourceSiteID,
		DestSiteID:     job.DestSiteID,
		Zone:           job.Zone,
		AssignedTo:     job.AssignedTo,
		LineItems:      items,
		PickPath:       job.PickPath(),
		TransferStatus: string(job.TransferStatus),
		OrderRef:       job.OrderRef,
		RequestedBy:    job.RequestedBy,
		ApprovedBy:     job.ApprovedBy,
		TrackingNumber: job.TrackingNumber,
		Version:        job.Version,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		ShippedAt:      job.ShippedAt,
		ReceivedAt:     job.ReceivedAt,
	}
}

// ToJobDTOs converts a list of jobs
func ToJobDTOs(jobs []*domain.Job) []JobDTO {
	dtos := make([]JobDTO, 0, len(jobs))
	for _, job := range jobs {
		dtos = append(dtos, *ToJobDTO(job))
	}
	return dtos
}

// ToDiscrepancyDTO converts a DiscrepancyResolution to its DTO
func ToDiscrepancyDTO(d *domain.DiscrepancyResolution) *DiscrepancyDTO {
	if d == nil {
		return nil
	}
	dto := &DiscrepancyDTO{
		ID:               d.ID,
		TransferID:       d.TransferID,
		LineItemIndex:    d.LineItemIndex,
		ProductID:        d.ProductID,
		SKU:              d.SKU,
		ExpectedQty:      d.ExpectedQty,
		ReceivedQty:      d.ReceivedQty,
		Variance:         d.Variance,
		DiscrepancyType:  string(d.DiscrepancyType),
		ResolutionType:   string(d.ResolutionType),
		ResolutionStatus: string(d.ResolutionStatus),
		ResolutionNotes:  d.ResolutionNotes,
		ReasonCode:       d.ReasonCode,
		ReplacementJobID: d.ReplacementJobID,
		ReportedBy:       d.ReportedBy,
		ResolvedBy:       d.ResolvedBy,
		SiteID:           d.SiteID,
		CreatedAt:        d.CreatedAt,
		ResolvedAt:       d.ResolvedAt,
	}
	if d.ClaimAmount.Valid {
		dto.ClaimAmount = d.ClaimAmount.Decimal.StringFixed(2)
	}
	return dto
}

// ToDiscrepancyDTOs converts a list of resolutions
func ToDiscrepancyDTOs(records []*domain.DiscrepancyResolution) []DiscrepancyDTO {
	dtos := make([]DiscrepancyDTO, 0, len(records))
	for _, d := range records {
		dtos = append(dtos, *ToDiscrepancyDTO(d))
	}
	return dtos
}

// ToInventoryChangeDTO converts a PendingInventoryChange to its DTO
func ToInventoryChangeDTO(c *domain.PendingInventoryChange) *InventoryChangeDTO {
	if c == nil {
		return nil
	}
	return &InventoryChangeDTO{
		ID:               c.ID,
		ProductID:        c.ProductID,
		ProductName:      c.ProductName,
		ProductSKU:       c.ProductSKU,
		SiteID:           c.SiteID,
		ChangeType:       string(c.ChangeType),
		AdjustmentType:   string(c.AdjustmentType),
		AdjustmentQty:    c.AdjustmentQty,
		AdjustmentReason: c.AdjustmentReason,
		RequestedBy:      c.RequestedBy,
		RequestedAt:      c.RequestedAt,
		ApprovedBy:       c.ApprovedBy,
		DecidedAt:        c.DecidedAt,
		RejectionReason:  c.RejectionReason,
		Status:           string(c.Status),
		JobID:            c.JobID,
		LineItemIndex:    c.LineItemIndex,
	}
}

// ToProposalDTO converts a Proposal to its DTO
func ToProposalDTO(p *domain.Proposal) *ProposalDTO {
	return &ProposalDTO{
		ID:            p.ID,
		Kind:          string(p.Kind),
		JobID:         p.JobID,
		LineItemIndex: p.LineItemIndex,
		Reason:        p.Reason,
		ProposedBy:    p.ProposedBy,
		Status:        string(p.Status),
		ExpiresAt:     p.ExpiresAt,
	}
}

// ToWorkerDTO converts a Worker to its DTO
func ToWorkerDTO(w *domain.Worker) *WorkerDTO {
	if w == nil {
		return nil
	}
	return &WorkerDTO{
		ID:     w.ID,
		Name:   w.Name,
		Role:   string(w.Role),
		SiteID: w.SiteID,
		Status: string(w.Status),
	}
}

// ToAssignmentDTO converts a JobAssignment to its DTO
func ToAssignmentDTO(a *domain.JobAssignment) *AssignmentDTO {
	return &AssignmentDTO{
		ID:         a.ID,
		JobID:      a.JobID,
		WorkerID:   a.WorkerID,
		WorkerName: a.WorkerName,
		Status:     string(a.Status),
		AssignedAt: a.AssignedAt,
	}
}

// ToZoneLockDTO converts a ZoneLock to its DTO
func ToZoneLockDTO(l *domain.ZoneLock) *ZoneLockDTO {
	return &ZoneLockDTO{
		SiteID:   l.SiteID,
		Zone:     l.Zone,
		Reason:   l.Reason,
		LockedBy: l.LockedBy,
		LockedAt: l.LockedAt,
	}
}
