package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"objektbetreuer-backend/internal/application/live"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/tenant"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound             = apperr.New(apperr.KindNotFound, "not_found", "Job not found")
	ErrTitleRequired        = apperr.Validation("missing_field", "Job title is required")
	ErrPropertyRequired     = apperr.Validation("missing_field", "Job property is required")
	ErrInvalidStatus        = apperr.Validation("invalid_field", "Unknown job status")
	ErrInvalidPriority      = apperr.Validation("invalid_field", "Unknown job priority")
	ErrPropertyNotFound     = apperr.New(apperr.KindNotFound, "not_found", "Property not found")
	ErrPropertyInactive     = apperr.New(apperr.KindDomain, "property_inactive", "Property is no longer active")
	ErrAssigneeNotInCompany = apperr.New(apperr.KindDomain, "assignee_not_in_company", "Assignee does not belong to this company")
	ErrInvalidTransition    = apperr.New(apperr.KindDomain, "invalid_status_transition", "Completed or cancelled jobs cannot change status")
	ErrConcurrentUpdate     = apperr.New(apperr.KindConflict, "concurrent_update", "Job was changed concurrently")
)

type Service struct {
	DB      *gorm.DB
	Changes live.Publisher
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type CreateInput struct {
	PropertyID     uuid.UUID         `json:"property_id"`
	AssignedTo     *uuid.UUID        `json:"assigned_to"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Status         string            `json:"status"`
	Priority       string            `json:"priority"`
	Category       string            `json:"category"`
	DueDate        *time.Time        `json:"due_date"`
	EstimatedHours *float64          `json:"estimated_hours"`
	Notes          string            `json:"notes"`
	Materials      []domain.Material `json:"materials"`
}

// Create inserts a job against an active property of the scope. Status
// defaults to pending and priority to medium; legacy status names are accepted.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, in CreateInput) (*domain.Job, error) {
	if !scope.Valid() {
		return nil, apperr.ErrInvalidScope
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if in.PropertyID == uuid.Nil {
		return nil, ErrPropertyRequired
	}
	status := domain.JobPending
	if in.Status != "" {
		st, ok := domain.ParseJobStatus(in.Status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		status = st
	}
	priority := domain.PriorityMedium
	if in.Priority != "" {
		if !domain.IsValidPriority(in.Priority) {
			return nil, ErrInvalidPriority
		}
		priority = in.Priority
	}
	if err := s.checkProperty(ctx, scope, in.PropertyID); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, scope, in.AssignedTo); err != nil {
		return nil, err
	}
	materials := in.Materials
	if materials == nil {
		materials = []domain.Material{}
	}

	now := s.now()
	j := &domain.Job{
		CompanyID:      scope.CompanyID(),
		PropertyID:     in.PropertyID,
		AssignedTo:     in.AssignedTo,
		Title:          title,
		Description:    in.Description,
		Status:         status,
		Priority:       priority,
		Category:       in.Category,
		DueDate:        in.DueDate,
		EstimatedHours: in.EstimatedHours,
		Notes:          in.Notes,
		Materials:      datatypes.NewJSONSlice(materials),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.DB.WithContext(ctx).Create(j).Error; err != nil {
		return nil, err
	}
	live.Notify(ctx, s.Changes, live.EntityJobs, scope.CompanyID())
	return j, nil
}

func (s *Service) checkProperty(ctx context.Context, scope tenant.Scope, propertyID uuid.UUID) error {
	var p domain.Property
	err := s.DB.WithContext(ctx).Scopes(scope.Apply).Select("property_id", "active").
		Where("property_id = ?", propertyID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPropertyNotFound
		}
		return err
	}
	if !p.Active {
		return ErrPropertyInactive
	}
	return nil
}

func (s *Service) checkAssignee(ctx context.Context, scope tenant.Scope, assignee *uuid.UUID) error {
	if assignee == nil {
		return nil
	}
	ok, err := tenant.IsMember(ctx, s.DB, scope, *assignee)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssigneeNotInCompany
	}
	return nil
}

// Get returns the job or nil when the scope has no such job.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*domain.Job, error) {
	var j domain.Job
	err := s.DB.WithContext(ctx).Scopes(scope.Apply).Where("job_id = ?", id).First(&j).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	normalize(&j)
	return &j, nil
}

type ListFilter struct {
	Status     string
	PropertyID *uuid.UUID
	AssignedTo *uuid.UUID
}

func (f ListFilter) Signature() string {
	m := map[string]string{"status": f.Status}
	if f.PropertyID != nil {
		m["property_id"] = f.PropertyID.String()
	}
	if f.AssignedTo != nil {
		m["assigned_to"] = f.AssignedTo.String()
	}
	return live.FilterSignature(m)
}

// List returns the scope's jobs, newest first. A status filter also matches
// rows still stored under the legacy name of that status.
func (s *Service) List(ctx context.Context, scope tenant.Scope, f ListFilter) ([]domain.Job, error) {
	q := s.DB.WithContext(ctx).Scopes(scope.Apply)
	if f.Status != "" {
		st, ok := domain.ParseJobStatus(f.Status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		q = q.Where("status IN ?", storedNames(st))
	}
	if f.PropertyID != nil {
		q = q.Where("property_id = ?", *f.PropertyID)
	}
	if f.AssignedTo != nil {
		q = q.Where("assigned_to = ?", *f.AssignedTo)
	}
	var rows []domain.Job
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		normalize(&rows[i])
	}
	tenant.SortNewestFirst(rows, func(j domain.Job) time.Time { return j.CreatedAt })
	return rows, nil
}

func storedNames(st domain.JobStatus) []string {
	names := []string{string(st)}
	for legacy, cur := range domain.LegacyJobStatuses() {
		if cur == st {
			names = append(names, legacy)
		}
	}
	return names
}

// rows written by the earlier client may still carry legacy status names
func normalize(j *domain.Job) {
	if st, ok := domain.ParseJobStatus(string(j.Status)); ok {
		j.Status = st
	}
	if j.Materials == nil {
		j.Materials = datatypes.JSONSlice[domain.Material]{}
	}
}

// Patch holds the fields of a partial update; nil fields are left unchanged.
// Status changes go through ChangeStatus.
type Patch struct {
	PropertyID     *uuid.UUID         `json:"property_id"`
	AssignedTo     *uuid.UUID         `json:"assigned_to"`
	Unassign       bool               `json:"unassign"`
	Title          *string            `json:"title"`
	Description    *string            `json:"description"`
	Priority       *string            `json:"priority"`
	Category       *string            `json:"category"`
	DueDate        *time.Time         `json:"due_date"`
	EstimatedHours *float64           `json:"estimated_hours"`
	ActualHours    *float64           `json:"actual_hours"`
	Notes          *string            `json:"notes"`
	Materials      *[]domain.Material `json:"materials"`
}

func (s *Service) columns(ctx context.Context, scope tenant.Scope, p Patch) (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		cols["title"] = title
	}
	if p.PropertyID != nil {
		if err := s.checkProperty(ctx, scope, *p.PropertyID); err != nil {
			return nil, err
		}
		cols["property_id"] = *p.PropertyID
	}
	if p.Unassign {
		cols["assigned_to"] = nil
	} else if p.AssignedTo != nil {
		if err := s.checkAssignee(ctx, scope, p.AssignedTo); err != nil {
			return nil, err
		}
		cols["assigned_to"] = *p.AssignedTo
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Priority != nil {
		if !domain.IsValidPriority(*p.Priority) {
			return nil, ErrInvalidPriority
		}
		cols["priority"] = *p.Priority
	}
	if p.Category != nil {
		cols["category"] = *p.Category
	}
	if p.DueDate != nil {
		cols["due_date"] = *p.DueDate
	}
	if p.EstimatedHours != nil {
		cols["estimated_hours"] = *p.EstimatedHours
	}
	if p.ActualHours != nil {
		cols["actual_hours"] = *p.ActualHours
	}
	if p.Notes != nil {
		cols["notes"] = *p.Notes
	}
	if p.Materials != nil {
		m := *p.Materials
		if m == nil {
			m = []domain.Material{}
		}
		cols["materials"] = datatypes.NewJSONSlice(m)
	}
	return cols, nil
}

// Update applies patch and always refreshes updated_at.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, id uuid.UUID, patch Patch) (*domain.Job, error) {
	cols, err := s.columns(ctx, scope, patch)
	if err != nil {
		return nil, err
	}
	cols["updated_at"] = s.now()
	res := s.DB.WithContext(ctx).Model(&domain.Job{}).Scopes(scope.Apply).Where("job_id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	live.Notify(ctx, s.Changes, live.EntityJobs, scope.CompanyID())
	return s.Get(ctx, scope, id)
}

// ChangeStatus moves the job to status and prepends a dated audit line to the
// notes. Completed and cancelled jobs are final. Setting the current status
// again is a no-op.
func (s *Service) ChangeStatus(ctx context.Context, scope tenant.Scope, id uuid.UUID, status, actor string) (*domain.Job, error) {
	next, ok := domain.ParseJobStatus(status)
	if !ok {
		return nil, ErrInvalidStatus
	}
	var stored domain.Job
	err := s.DB.WithContext(ctx).Scopes(scope.Apply).Where("job_id = ?", id).First(&stored).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rawStatus := stored.Status
	normalize(&stored)
	current := stored.Status
	if current == next {
		return &stored, nil
	}
	if current.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	notes := auditLine(now, actor, current, next)
	if stored.Notes != "" {
		notes += "\n" + stored.Notes
	}
	// guarded by the status read above so two concurrent transitions cannot both win
	res := s.DB.WithContext(ctx).Model(&domain.Job{}).Scopes(scope.Apply).
		Where("job_id = ? AND status = ?", id, string(rawStatus)).
		Updates(map[string]interface{}{"status": string(next), "notes": notes, "updated_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConcurrentUpdate
	}
	live.Notify(ctx, s.Changes, live.EntityJobs, scope.CompanyID())
	return s.Get(ctx, scope, id)
}

func auditLine(at time.Time, actor string, from, to domain.JobStatus) string {
	if strings.TrimSpace(actor) == "" {
		actor = "System"
	}
	return fmt.Sprintf("[%s] %s: Status %s -> %s", at.Format("02.01.2006 15:04"), actor, from, to)
}

// Delete removes the job permanently. Appointments booked for it stay but
// lose their job reference.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	var detached int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Scopes(scope.Apply).Where("job_id = ?", id).Delete(&domain.Job{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		res = tx.Model(&domain.Appointment{}).Scopes(scope.Apply).Where("job_id = ?", id).
			Updates(map[string]interface{}{"job_id": nil, "updated_at": s.now()})
		detached = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return err
	}
	live.Notify(ctx, s.Changes, live.EntityJobs, scope.CompanyID())
	if detached > 0 {
		live.Notify(ctx, s.Changes, live.EntityAppointments, scope.CompanyID())
	}
	return nil
}
