package application

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// AssignmentScheduler matches jobs to workers by role fit and workload
type AssignmentScheduler struct {
	jobs        domain.JobRepository
	workers     domain.WorkerRepository
	assignments domain.AssignmentRepository
	zones       domain.ZoneLockRepository
	logger      *logging.Logger
	metrics     *metrics.Metrics
}

// NewAssignmentScheduler creates a new AssignmentScheduler
func NewAssignmentScheduler(
	jobs domain.JobRepository,
	workers domain.WorkerRepository,
	assignments domain.AssignmentRepository,
	zones domain.ZoneLockRepository,
	logger *logging.Logger,
	m *metrics.Metrics,
) *AssignmentScheduler {
	return &AssignmentScheduler{
		jobs:        jobs,
		workers:     workers,
		assignments: assignments,
		zones:       zones,
		logger:      logger.WithComponent("assignment-scheduler"),
		metrics:     m,
	}
}

// Assign assigns a job to a worker
func (s *AssignmentScheduler) Assign(ctx context.Context, cmd AssignCommand) (*AssignmentDTO, error) {
	job, err := s.loadJob(ctx, cmd.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, mapDomainError(job.Assign(cmd.WorkerID))
	}

	previous, err := s.assignments.FindActiveByJob(ctx, job.ID)
	if err != nil {
		return nil, persistenceError("get active assignment", err)
	}
	if previous != nil && previous.WorkerID == cmd.WorkerID {
		return ToAssignmentDTO(previous), nil
	}

	worker, err := s.checkAvailable(ctx, job, cmd.WorkerID)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		if job.Status != domain.JobStatusPending {
			return nil, mapDomainError(&domain.LockedError{JobID: job.ID, Holder: previous.WorkerID})
		}
		previous.Cancel()
		if err := s.assignments.Save(ctx, previous); err != nil {
			return nil, persistenceError("release previous assignment", err)
		}
	}

	if err := job.Assign(worker.ID); err != nil {
		return nil, mapDomainError(err)
	}
	assignment := domain.NewJobAssignment(uuid.NewString(), job, worker, cmd.Actor.UserID)
	if err := s.assignments.Save(ctx, assignment); err != nil {
		s.logger.WithError(err).Error("Failed to save assignment", "jobId", job.ID, "workerId", worker.ID)
		return nil, persistenceError("save assignment", err)
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.WithError(err).Error("Failed to assign job", "jobId", job.ID)
		return nil, persistenceError("assign job", err)
	}

	s.metrics.RecordAssignment(string(job.Type))
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "job.assigned",
		EntityType: "job",
		EntityID:   job.ID,
		Action:     "assigned",
		RelatedIDs: map[string]string{"workerId": worker.ID, "assignmentId": assignment.ID},
	})

	return ToAssignmentDTO(assignment), nil
}

// checkAvailable returns the worker when it may take on job under the roster,
// zone lock and capacity rules
func (s *AssignmentScheduler) checkAvailable(ctx context.Context, job *domain.Job, workerID string) (*domain.Worker, error) {
	worker, err := s.workers.FindByID(ctx, workerID)
	if err != nil {
		return nil, persistenceError("get worker", err)
	}
	if worker == nil {
		return nil, errors.ErrNotFoundWithID("worker", workerID)
	}
	if worker.Status == domain.WorkerOffline {
		return nil, mapDomainError(domain.ErrWorkerOffline)
	}

	if job.Zone != "" {
		lock, err := s.zones.Find(ctx, job.SiteID, job.Zone)
		if err != nil {
			return nil, persistenceError("check zone lock", err)
		}
		if lock != nil {
			return nil, errors.ErrConflict(domain.ErrZoneLocked.Error()).
				Wrap(domain.ErrZoneLocked).
				WithDetail("zone", job.Zone).
				WithDetail("lockedBy", lock.LockedBy)
		}
	}

	counts, err := s.assignments.CountActiveByWorkers(ctx, []string{worker.ID})
	if err != nil {
		return nil, persistenceError("count active assignments", err)
	}
	if counts[worker.ID] >= domain.MaxActiveAssignments {
		return nil, errors.ErrConflict(domain.ErrWorkerAtCapacity.Error()).
			Wrap(domain.ErrWorkerAtCapacity).
			WithDetail("workerId", worker.ID).
			WithDetail("activeAssignments", fmt.Sprint(counts[worker.ID]))
	}
	return worker, nil
}

// JobClaim is an assignment recorded for a job being started.
// The caller confirms it once the job is saved, or abandons it.
type JobClaim struct {
	assignments domain.AssignmentRepository
	logger      *logging.Logger
	assignment  *domain.JobAssignment
	previous    *domain.JobAssignment
}

// Confirm releases the assignment the claim replaced, if any
func (c *JobClaim) Confirm(ctx context.Context) {
	if c == nil || c.previous == nil {
		return
	}
	c.previous.Cancel()
	if err := c.assignments.Save(ctx, c.previous); err != nil {
		c.logger.WithError(err).Error("Failed to release replaced assignment",
			"assignmentId", c.previous.ID, "jobId", c.previous.JobID)
	}
}

// Abandon cancels the claimed assignment after the job could not be saved
func (c *JobClaim) Abandon(ctx context.Context) {
	if c == nil || c.assignment == nil {
		return
	}
	c.assignment.Cancel()
	if err := c.assignments.Save(ctx, c.assignment); err != nil {
		c.logger.WithError(err).Error("Failed to abandon assignment",
			"assignmentId", c.assignment.ID, "jobId", c.assignment.JobID)
	}
}

// ClaimJob records workerID as the worker starting job. It applies the checks of
// Assign; a worker already holding the job's active assignment gets a nil claim.
func (s *AssignmentScheduler) ClaimJob(ctx context.Context, job *domain.Job, workerID, claimedBy string) (*JobClaim, error) {
	current, err := s.assignments.FindActiveByJob(ctx, job.ID)
	if err != nil {
		return nil, persistenceError("get active assignment", err)
	}
	if current != nil && current.WorkerID == workerID {
		return nil, nil
	}

	worker, err := s.checkAvailable(ctx, job, workerID)
	if err != nil {
		return nil, err
	}
	assignment := domain.NewJobAssignment(uuid.NewString(), job, worker, claimedBy)
	if err := s.assignments.Save(ctx, assignment); err != nil {
		s.logger.WithError(err).Error("Failed to save assignment", "jobId", job.ID, "workerId", worker.ID)
		return nil, persistenceError("save assignment", err)
	}

	s.metrics.RecordAssignment(string(job.Type))
	return &JobClaim{
		assignments: s.assignments,
		logger:      s.logger,
		assignment:  assignment,
		previous:    current,
	}, nil
}

// SuggestWorker returns the least loaded compatible worker at the job's site.
// Worker is nil when nobody has room for more work.
func (s *AssignmentScheduler) SuggestWorker(ctx context.Context, jobID string) (*SuggestionDTO, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	roster, err := s.workers.FindBySite(ctx, job.SiteID)
	if err != nil {
		return nil, persistenceError("list workers", err)
	}
	candidates := make([]*domain.Worker, 0, len(roster))
	ids := make([]string, 0, len(roster))
	for _, w := range roster {
		if w.Status == domain.WorkerOffline || !domain.IsRoleCompatible(job.Type, w.Role) {
			continue
		}
		candidates = append(candidates, w)
		ids = append(ids, w.ID)
	}

	suggestion := &SuggestionDTO{JobID: job.ID}
	if len(candidates) == 0 {
		return suggestion, nil
	}

	workload, err := s.assignments.CountActiveByWorkers(ctx, ids)
	if err != nil {
		return nil, persistenceError("count active assignments", err)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		wi, wj := workload[candidates[i].ID], workload[candidates[j].ID]
		if wi != wj {
			return wi < wj
		}
		return candidates[i].ID < candidates[j].ID
	})

	top := candidates[0]
	if workload[top.ID] < domain.MaxActiveAssignments-1 {
		suggestion.Worker = ToWorkerDTO(top)
		suggestion.Workload = workload[top.ID]
	}
	return suggestion, nil
}

// OnJobCompleted closes the active assignment with the job's throughput
func (s *AssignmentScheduler) OnJobCompleted(ctx context.Context, job *domain.Job) error {
	assignment, err := s.assignments.FindActiveByJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to get assignment for job %s: %w", job.ID, err)
	}
	if assignment == nil {
		return nil
	}

	assignment.Complete(job.ProcessedUnits(), job.ExpectedUnits())
	if err := s.assignments.Save(ctx, assignment); err != nil {
		return fmt.Errorf("failed to close assignment %s: %w", assignment.ID, err)
	}

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "assignment.completed",
		EntityType: "assignment",
		EntityID:   assignment.ID,
		Action:     "completed",
		RelatedIDs: map[string]string{"jobId": job.ID, "workerId": assignment.WorkerID},
		Data:       map[string]any{"units": assignment.UnitsProcessed, "accuracy": assignment.AccuracyRate},
	})
	return nil
}

// OnJobCancelled releases the active assignment of a cancelled job
func (s *AssignmentScheduler) OnJobCancelled(ctx context.Context, job *domain.Job) error {
	assignment, err := s.assignments.FindActiveByJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to get assignment for job %s: %w", job.ID, err)
	}
	if assignment == nil {
		return nil
	}

	assignment.Cancel()
	if err := s.assignments.Save(ctx, assignment); err != nil {
		return fmt.Errorf("failed to release assignment %s: %w", assignment.ID, err)
	}

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "assignment.cancelled",
		EntityType: "assignment",
		EntityID:   assignment.ID,
		Action:     "cancelled",
		RelatedIDs: map[string]string{"jobId": job.ID, "workerId": assignment.WorkerID},
	})
	return nil
}

// RegisterWorker adds a worker to the roster or updates an existing entry
func (s *AssignmentScheduler) RegisterWorker(ctx context.Context, cmd RegisterWorkerCommand) (*WorkerDTO, error) {
	if !cmd.Actor.IsManagerClass() {
		return nil, errors.ErrPermissionDenied("register worker", cmd.Actor.Role)
	}

	status := domain.WorkerStatus(strings.ToLower(cmd.Status))
	if status == "" {
		status = domain.WorkerAvailable
	}
	worker := &domain.Worker{
		ID:     strings.TrimSpace(cmd.WorkerID),
		Name:   cmd.Name,
		Role:   domain.WorkerRole(strings.ToLower(cmd.Role)),
		SiteID: cmd.SiteID,
		Status: status,
	}
	if worker.ID == "" || worker.SiteID == "" || !worker.Role.IsValid() || !worker.Status.IsValid() {
		return nil, mapDomainError(domain.ErrInvalidWorker)
	}

	if err := s.workers.Save(ctx, worker); err != nil {
		return nil, persistenceError("save worker", err)
	}

	s.logger.Audit(ctx, "register_worker", "worker", worker.ID, cmd.Actor.UserID, map[string]any{
		"role":   worker.Role,
		"siteId": worker.SiteID,
		"status": worker.Status,
	})
	return ToWorkerDTO(worker), nil
}

// LockZone puts a zone under maintenance
func (s *AssignmentScheduler) LockZone(ctx context.Context, cmd ZoneLockCommand) (*ZoneLockDTO, error) {
	if !cmd.Actor.IsManagerClass() {
		return nil, errors.ErrPermissionDenied("lock zone", cmd.Actor.Role)
	}
	if cmd.SiteID == "" || cmd.Zone == "" {
		return nil, errors.ErrValidation("siteId and zone are required")
	}

	lock := domain.NewZoneLock(cmd.SiteID, cmd.Zone, cmd.Reason, cmd.Actor.UserID)
	if err := s.zones.Lock(ctx, lock); err != nil {
		return nil, persistenceError("lock zone", err)
	}

	s.logger.Audit(ctx, "lock_zone", "zone", lock.ID, cmd.Actor.UserID, map[string]any{"reason": cmd.Reason})
	return ToZoneLockDTO(lock), nil
}

// UnlockZone lifts a maintenance lock
func (s *AssignmentScheduler) UnlockZone(ctx context.Context, cmd ZoneLockCommand) error {
	if !cmd.Actor.IsManagerClass() {
		return errors.ErrPermissionDenied("unlock zone", cmd.Actor.Role)
	}
	if err := s.zones.Unlock(ctx, cmd.SiteID, cmd.Zone); err != nil {
		return persistenceError("unlock zone", err)
	}

	s.logger.Audit(ctx, "unlock_zone", "zone", domain.ZoneLockID(cmd.SiteID, cmd.Zone), cmd.Actor.UserID, nil)
	return nil
}

func (s *AssignmentScheduler) loadJob(ctx context.Context, jobID string) (*domain.Job, error) {
	if jobID == "" {
		return nil, errors.ErrValidation("jobId is required")
	}
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, persistenceError("get job", err)
	}
	if job == nil {
		return nil, errors.ErrNotFoundWithID("job", jobID)
	}
	return job, nil
}
