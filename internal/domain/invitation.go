package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationExpired  = "expired"
)

// Invitation lets a company provision an employee account without handling credentials.
// Status moves pending -> accepted or pending -> expired and never back.
type Invitation struct {
	InviteID    uuid.UUID   `gorm:"column:invite_id;type:uuid;primaryKey" json:"invite_id"`
	CompanyID   uuid.UUID   `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Email       string      `gorm:"column:email;not null;index" json:"email"`
	Token       string      `gorm:"column:token;type:varchar(32);not null;uniqueIndex" json:"-"`
	Status      string      `gorm:"column:status;not null;index" json:"status"`
	Permissions Permissions `gorm:"embedded;embeddedPrefix:perm_" json:"permissions"`
	ExpiresAt   time.Time   `gorm:"column:expires_at;not null" json:"expires_at"`
	AcceptedAt  *time.Time  `gorm:"column:accepted_at" json:"accepted_at"`
	LastSentAt  *time.Time  `gorm:"column:last_sent_at" json:"last_sent_at"`
	CreatedBy   uuid.UUID   `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	CreatedAt   time.Time   `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"column:updated_at" json:"updated_at"`
}

func (Invitation) TableName() string {
	return "employee_invitations"
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.InviteID == uuid.Nil {
		i.InviteID = uuid.New()
	}
	return nil
}

// EffectiveStatus folds the wall clock into the stored status: a pending
// invitation past its expiry is expired even though the row still says pending.
func (i *Invitation) EffectiveStatus(now time.Time) string {
	if i.Status == InvitationPending && now.After(i.ExpiresAt) {
		return InvitationExpired
	}
	return i.Status
}
