package appointments

import (
	"context"
	"errors"
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
	ErrNotFound             = apperr.New(apperr.KindNotFound, "not_found", "Appointment not found")
	ErrTitleRequired        = apperr.Validation("missing_field", "Appointment title is required")
	ErrTimeRequired         = apperr.Validation("missing_field", "Start and end time are required")
	ErrInvalidTimeRange     = apperr.Validation("invalid_time_range", "Appointment must end after it starts")
	ErrInvalidStatus        = apperr.Validation("invalid_field", "Unknown appointment status")
	ErrPropertyNotFound     = apperr.New(apperr.KindNotFound, "not_found", "Property not found")
	ErrJobNotFound          = apperr.New(apperr.KindNotFound, "not_found", "Job not found")
	ErrAssigneeNotInCompany = apperr.New(apperr.KindDomain, "assignee_not_in_company", "Assignee does not belong to this company")
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
	PropertyID  *uuid.UUID `json:"property_id"`
	JobID       *uuid.UUID `json:"job_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Status      string     `json:"status"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
	Location    string     `json:"location"`
	Notes       string     `json:"notes"`
	Attendees   []string   `json:"attendees"`
}

func (s *Service) Create(ctx context.Context, scope tenant.Scope, in CreateInput) (*domain.Appointment, error) {
	if !scope.Valid() {
		return nil, apperr.ErrInvalidScope
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return nil, ErrTimeRequired
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, ErrInvalidTimeRange
	}
	status := domain.AppointmentScheduled
	if in.Status != "" {
		if !domain.IsValidAppointmentStatus(in.Status) {
			return nil, ErrInvalidStatus
		}
		status = in.Status
	}
	if err := s.checkRefs(ctx, scope, in.PropertyID, in.JobID, in.AssignedTo); err != nil {
		return nil, err
	}
	attendees := in.Attendees
	if attendees == nil {
		attendees = []string{}
	}

	now := s.now()
	a := &domain.Appointment{
		CompanyID:   scope.CompanyID(),
		PropertyID:  in.PropertyID,
		JobID:       in.JobID,
		Title:       title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Status:      status,
		AssignedTo:  in.AssignedTo,
		Location:    in.Location,
		Notes:       in.Notes,
		Attendees:   datatypes.NewJSONSlice(attendees),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.DB.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	live.Notify(ctx, s.Changes, live.EntityAppointments, scope.CompanyID())
	return a, nil
}

// checkRefs makes sure every referenced row belongs to the scope.
func (s *Service) checkRefs(ctx context.Context, scope tenant.Scope, propertyID, jobID, assignee *uuid.UUID) error {
	if propertyID != nil {
		ok, err := tenant.Contains(ctx, s.DB, scope, &domain.Property{}, "property_id", *propertyID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPropertyNotFound
		}
	}
	if jobID != nil {
		ok, err := tenant.Contains(ctx, s.DB, scope, &domain.Job{}, "job_id", *jobID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrJobNotFound
		}
	}
	if assignee != nil {
		ok, err := tenant.IsMember(ctx, s.DB, scope, *assignee)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAssigneeNotInCompany
		}
	}
	return nil
}

// Get returns the appointment or nil when the scope has no such appointment.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*domain.Appointment, error) {
	var a domain.Appointment
	err := s.DB.WithContext(ctx).Scopes(scope.Apply).Where("appointment_id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ListFilter narrows a listing. From/To select appointments overlapping the window.
type ListFilter struct {
	From       *time.Time
	To         *time.Time
	AssignedTo *uuid.UUID
	PropertyID *uuid.UUID
	Status     string
}

func (f ListFilter) Signature() string {
	m := map[string]string{"status": f.Status}
	if f.From != nil {
		m["from"] = f.From.UTC().Format(time.RFC3339)
	}
	if f.To != nil {
		m["to"] = f.To.UTC().Format(time.RFC3339)
	}
	if f.AssignedTo != nil {
		m["assigned_to"] = f.AssignedTo.String()
	}
	if f.PropertyID != nil {
		m["property_id"] = f.PropertyID.String()
	}
	return live.FilterSignature(m)
}

func (s *Service) List(ctx context.Context, scope tenant.Scope, f ListFilter) ([]domain.Appointment, error) {
	q := s.DB.WithContext(ctx).Scopes(scope.Apply)
	if f.From != nil {
		q = q.Where("end_time > ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("start_time < ?", *f.To)
	}
	if f.AssignedTo != nil {
		q = q.Where("assigned_to = ?", *f.AssignedTo)
	}
	if f.PropertyID != nil {
		q = q.Where("property_id = ?", *f.PropertyID)
	}
	if f.Status != "" {
		if !domain.IsValidAppointmentStatus(f.Status) {
			return nil, ErrInvalidStatus
		}
		q = q.Where("status = ?", f.Status)
	}
	var rows []domain.Appointment
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	tenant.SortNewestFirst(rows, func(a domain.Appointment) time.Time { return a.CreatedAt })
	return rows, nil
}

// Patch holds the fields of a partial update; nil fields are left unchanged.
type Patch struct {
	PropertyID  *uuid.UUID `json:"property_id"`
	JobID       *uuid.UUID `json:"job_id"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Status      *string    `json:"status"`
	Location    *string    `json:"location"`
	Notes       *string    `json:"notes"`
	Attendees   *[]string  `json:"attendees"`
}

// Update applies patch and always refreshes updated_at. A changed start or end
// is validated against the other, stored bound.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, id uuid.UUID, p Patch) (*domain.Appointment, error) {
	current, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	cols := map[string]interface{}{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		cols["title"] = title
	}
	if p.StartTime != nil || p.EndTime != nil {
		start, end := current.StartTime, current.EndTime
		if p.StartTime != nil {
			start = *p.StartTime
		}
		if p.EndTime != nil {
			end = *p.EndTime
		}
		if !end.After(start) {
			return nil, ErrInvalidTimeRange
		}
		cols["start_time"] = start
		cols["end_time"] = end
	}
	if p.Status != nil {
		if !domain.IsValidAppointmentStatus(*p.Status) {
			return nil, ErrInvalidStatus
		}
		cols["status"] = *p.Status
	}
	if err := s.checkRefs(ctx, scope, p.PropertyID, p.JobID, p.AssignedTo); err != nil {
		return nil, err
	}
	if p.PropertyID != nil {
		cols["property_id"] = *p.PropertyID
	}
	if p.JobID != nil {
		cols["job_id"] = *p.JobID
	}
	if p.AssignedTo != nil {
		cols["assigned_to"] = *p.AssignedTo
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Location != nil {
		cols["location"] = *p.Location
	}
	if p.Notes != nil {
		cols["notes"] = *p.Notes
	}
	if p.Attendees != nil {
		att := *p.Attendees
		if att == nil {
			att = []string{}
		}
		cols["attendees"] = datatypes.NewJSONSlice(att)
	}
	cols["updated_at"] = s.now()

	res := s.DB.WithContext(ctx).Model(&domain.Appointment{}).Scopes(scope.Apply).
		Where("appointment_id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	live.Notify(ctx, s.Changes, live.EntityAppointments, scope.CompanyID())
	return s.Get(ctx, scope, id)
}

// Delete removes the appointment permanently.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Scopes(scope.Apply).Where("appointment_id = ?", id).Delete(&domain.Appointment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	live.Notify(ctx, s.Changes, live.EntityAppointments, scope.CompanyID())
	return nil
}
