package domain

import (
	"strings"
	"time"
)

// MaxActiveAssignments is the per-worker cap on open assignments
const MaxActiveAssignments = 3

// WorkerRole is the operational role of a worker
type WorkerRole string

const (
	RolePicker     WorkerRole = "picker"
	RolePacker     WorkerRole = "packer"
	RoleDispatcher WorkerRole = "dispatcher"
	RoleDriver     WorkerRole = "driver"
	RoleReceiver   WorkerRole = "receiver"
	RoleManager    WorkerRole = "manager"
)

// IsValid checks if the role is known
func (r WorkerRole) IsValid() bool {
	switch r {
	case RolePicker, RolePacker, RoleDispatcher, RoleDriver, RoleReceiver, RoleManager:
		return true
	}
	return false
}

var compatibleRoles = map[JobType][]WorkerRole{
	JobTypePick:     {RolePicker, RoleDispatcher, RoleManager},
	JobTypePack:     {RolePacker, RoleDispatcher, RoleManager},
	JobTypePutaway:  {RoleDispatcher, RoleManager},
	JobTypeDispatch: {RoleDispatcher, RoleDriver, RoleManager},
}

var defaultCompatibleRoles = []WorkerRole{RoleDispatcher, RoleManager}

// IsRoleCompatible reports whether role can work jobs of jobType
func IsRoleCompatible(jobType JobType, role WorkerRole) bool {
	roles, ok := compatibleRoles[jobType]
	if !ok {
		roles = defaultCompatibleRoles
	}
	role = WorkerRole(strings.ToLower(string(role)))
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// WorkerStatus represents worker availability
type WorkerStatus string

const (
	WorkerAvailable WorkerStatus = "available"
	WorkerBusy      WorkerStatus = "busy"
	WorkerOffline   WorkerStatus = "offline"
)

// IsValid checks if the status is known
func (s WorkerStatus) IsValid() bool {
	return s == WorkerAvailable || s == WorkerBusy || s == WorkerOffline
}

// Worker is a person who can be assigned jobs
type Worker struct {
	ID     string       `bson:"_id"`
	Name   string       `bson:"name"`
	Role   WorkerRole   `bson:"role"`
	SiteID string       `bson:"siteId"`
	Status WorkerStatus `bson:"status"`
}

// AssignmentStatus is the lifecycle of a job assignment
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "Assigned"
	AssignmentAccepted   AssignmentStatus = "Accepted"
	AssignmentInProgress AssignmentStatus = "In-Progress"
	AssignmentPaused     AssignmentStatus = "Paused"
	AssignmentCompleted  AssignmentStatus = "Completed"
	AssignmentCancelled  AssignmentStatus = "Cancelled"
)

// IsActive returns true for assignments that count against the cap
func (s AssignmentStatus) IsActive() bool {
	switch s {
	case AssignmentAssigned, AssignmentAccepted, AssignmentInProgress, AssignmentPaused:
		return true
	}
	return false
}

// JobAssignment links a worker to a job
type JobAssignment struct {
	ID             string           `bson:"_id"`
	JobID          string           `bson:"jobId"`
	JobType        JobType          `bson:"jobType"`
	SiteID         string           `bson:"siteId"`
	WorkerID       string           `bson:"workerId"`
	WorkerName     string           `bson:"workerName"`
	AssignedBy     string           `bson:"assignedBy,omitempty"`
	Status         AssignmentStatus `bson:"status"`
	AssignedAt     time.Time        `bson:"assignedAt"`
	CompletedAt    *time.Time       `bson:"completedAt,omitempty"`
	UnitsProcessed int              `bson:"unitsProcessed"`
	AccuracyRate   float64          `bson:"accuracyRate"`
}

// NewJobAssignment creates an active assignment
func NewJobAssignment(id string, job *Job, worker *Worker, assignedBy string) *JobAssignment {
	return &JobAssignment{
		ID:         id,
		JobID:      job.ID,
		JobType:    job.Type,
		SiteID:     job.SiteID,
		WorkerID:   worker.ID,
		WorkerName: worker.Name,
		AssignedBy: assignedBy,
		Status:     AssignmentAssigned,
		AssignedAt: time.Now().UTC(),
	}
}

// Complete closes the assignment with the job's throughput
func (a *JobAssignment) Complete(units, expected int) {
	now := time.Now().UTC()
	a.Status = AssignmentCompleted
	a.CompletedAt = &now
	a.UnitsProcessed = units
	if expected > 0 {
		a.AccuracyRate = float64(units) / float64(expected)
	}
}

// Cancel closes the assignment without throughput
func (a *JobAssignment) Cancel() {
	now := time.Now().UTC()
	a.Status = AssignmentCancelled
	a.CompletedAt = &now
}

// ZoneLock puts a zone of a site under maintenance
type ZoneLock struct {
	ID       string    `bson:"_id"`
	SiteID   string    `bson:"siteId"`
	Zone     string    `bson:"zone"`
	Reason   string    `bson:"reason,omitempty"`
	LockedBy string    `bson:"lockedBy"`
	LockedAt time.Time `bson:"lockedAt"`
}

// ZoneLockID is the identity of the lock for siteID/zone
func ZoneLockID(siteID, zone string) string {
	return siteID + ":" + zone
}

// NewZoneLock creates a maintenance lock
func NewZoneLock(siteID, zone, reason, lockedBy string) *ZoneLock {
	return &ZoneLock{
		ID:       ZoneLockID(siteID, zone),
		SiteID:   siteID,
		Zone:     zone,
		Reason:   reason,
		LockedBy: lockedBy,
		LockedAt: time.Now().UTC(),
	}
}
