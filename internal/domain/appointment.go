package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AppointmentScheduled  = "scheduled"
	AppointmentInProgress = "in-progress"
	AppointmentCompleted  = "completed"
	AppointmentCancelled  = "cancelled"
)

func IsValidAppointmentStatus(s string) bool {
	switch s {
	case AppointmentScheduled, AppointmentInProgress, AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

// Appointment is a scheduled visit, optionally tied to a property and/or a job.
type Appointment struct {
	AppointmentID uuid.UUID                   `gorm:"column:appointment_id;type:uuid;primaryKey" json:"appointment_id"`
	CompanyID     uuid.UUID                   `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	PropertyID    *uuid.UUID                  `gorm:"column:property_id;type:uuid;index" json:"property_id"`
	JobID         *uuid.UUID                  `gorm:"column:job_id;type:uuid;index" json:"job_id"`
	Title         string                      `gorm:"column:title;not null" json:"title"`
	Description   string                      `gorm:"column:description" json:"description"`
	StartTime     time.Time                   `gorm:"column:start_time;not null;index" json:"start_time"`
	EndTime       time.Time                   `gorm:"column:end_time;not null" json:"end_time"`
	Status        string                      `gorm:"column:status;not null" json:"status"`
	AssignedTo    *uuid.UUID                  `gorm:"column:assigned_to;type:uuid;index" json:"assigned_to"`
	Location      string                      `gorm:"column:location" json:"location"`
	Notes         string                      `gorm:"column:notes;type:text" json:"notes"`
	Attendees     datatypes.JSONSlice[string] `gorm:"column:attendees" json:"attendees"`
	CreatedAt     time.Time                   `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at" json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.AppointmentID == uuid.Nil {
		a.AppointmentID = uuid.New()
	}
	return nil
}
