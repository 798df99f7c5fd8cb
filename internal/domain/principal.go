package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Principal is an authenticated identity owned by the identity provider.
// Application code reads it but never edits it directly.
type Principal struct {
	PrincipalID   uuid.UUID `gorm:"column:principal_id;type:uuid;primaryKey" json:"principal_id"`
	Email         string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash  string    `gorm:"column:password_hash;not null" json:"-"`
	EmailVerified bool      `gorm:"column:email_verified;not null" json:"email_verified"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Principal) TableName() string {
	return "principals"
}

func (p *Principal) BeforeCreate(tx *gorm.DB) error {
	if p.PrincipalID == uuid.Nil {
		p.PrincipalID = uuid.New()
	}
	return nil
}
