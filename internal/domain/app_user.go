package domain

import (
	"time"

	"objektbetreuer-backend/internal/pkg/constants"

	"github.com/google/uuid"
)

// AppUser is the application profile of a principal, keyed by the principal id.
// Company accounts own a tenant; employees reference the company that owns them.
// Profiles are never hard-deleted: deactivation flips Active.
type AppUser struct {
	UserID      uuid.UUID   `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Role        string      `gorm:"column:role;not null;index" json:"role"`
	DisplayName string      `gorm:"column:display_name;not null" json:"display_name"`
	Email       string      `gorm:"column:email;not null;uniqueIndex" json:"email"`
	CompanyName *string     `gorm:"column:company_name" json:"company_name,omitempty"`
	CompanyID   *uuid.UUID  `gorm:"column:company_id;type:uuid;index" json:"company_id,omitempty"`
	Active      bool        `gorm:"column:active;not null" json:"active"`
	Permissions Permissions `gorm:"embedded;embeddedPrefix:perm_" json:"permissions"`
	LastLoginAt *time.Time  `gorm:"column:last_login_at" json:"last_login_at"`
	CreatedAt   time.Time   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"column:updated_at" json:"updated_at"`
}

func (AppUser) TableName() string {
	return "app_users"
}

// IsCompany reports whether the profile is a company account.
func (u *AppUser) IsCompany() bool {
	return u.Role == constants.RoleCompany
}

// TenantID returns the company the profile acts for: its own id for a company,
// the employer for an employee, uuid.Nil when unlinked.
func (u *AppUser) TenantID() uuid.UUID {
	if u.IsCompany() {
		return u.UserID
	}
	if u.CompanyID == nil {
		return uuid.Nil
	}
	return *u.CompanyID
}
