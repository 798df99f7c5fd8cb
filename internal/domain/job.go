package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobStatus is the single job status vocabulary.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in-progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

// legacy vocabulary of the earlier web client
var legacyJobStatus = map[string]JobStatus{
	"open":        JobPending,
	"in_progress": JobInProgress,
	"closed":      JobCompleted,
	"canceled":    JobCancelled,
}

// ParseJobStatus accepts both the current and the legacy vocabulary.
func ParseJobStatus(s string) (JobStatus, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch JobStatus(s) {
	case JobPending, JobInProgress, JobCompleted, JobCancelled:
		return JobStatus(s), true
	}
	if st, ok := legacyJobStatus[s]; ok {
		return st, true
	}
	return "", false
}

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobCancelled
}

// LegacyJobStatuses lists stored values that normalize to a different status.
func LegacyJobStatuses() map[string]JobStatus {
	out := make(map[string]JobStatus, len(legacyJobStatus))
	for k, v := range legacyJobStatus {
		out[k] = v
	}
	return out
}

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Material is one line of the materials list of a job.
type Material struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Job is a maintenance task against one property.
type Job struct {
	JobID          uuid.UUID                     `gorm:"column:job_id;type:uuid;primaryKey" json:"job_id"`
	CompanyID      uuid.UUID                     `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	PropertyID     uuid.UUID                     `gorm:"column:property_id;type:uuid;not null;index" json:"property_id"`
	AssignedTo     *uuid.UUID                    `gorm:"column:assigned_to;type:uuid;index" json:"assigned_to"`
	Title          string                        `gorm:"column:title;not null" json:"title"`
	Description    string                        `gorm:"column:description" json:"description"`
	Status         JobStatus                     `gorm:"column:status;not null;index" json:"status"`
	Priority       string                        `gorm:"column:priority;not null" json:"priority"`
	Category       string                        `gorm:"column:category" json:"category"`
	DueDate        *time.Time                    `gorm:"column:due_date" json:"due_date"`
	EstimatedHours *float64                      `gorm:"column:estimated_hours" json:"estimated_hours"`
	ActualHours    *float64                      `gorm:"column:actual_hours" json:"actual_hours"`
	Notes          string                        `gorm:"column:notes;type:text" json:"notes"`
	Materials      datatypes.JSONSlice[Material] `gorm:"column:materials" json:"materials"`
	CreatedAt      time.Time                     `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt      time.Time                     `gorm:"column:updated_at" json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.JobID == uuid.Nil {
		j.JobID = uuid.New()
	}
	return nil
}
