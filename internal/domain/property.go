package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Address is the structured postal address of a property.
type Address struct {
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

// Property is a managed building or site. Deleting a property only clears Active.
type Property struct {
	PropertyID  uuid.UUID                   `gorm:"column:property_id;type:uuid;primaryKey" json:"property_id"`
	CompanyID   uuid.UUID                   `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Name        string                      `gorm:"column:name;not null" json:"name"`
	Address     datatypes.JSONType[Address] `gorm:"column:address" json:"address"`
	Latitude    *float64                    `gorm:"column:latitude" json:"latitude"`
	Longitude   *float64                    `gorm:"column:longitude" json:"longitude"`
	Type        string                      `gorm:"column:type" json:"type"`
	Size        *float64                    `gorm:"column:size_sqm" json:"size"`
	Description string                      `gorm:"column:description" json:"description"`
	Images      datatypes.JSONSlice[string] `gorm:"column:images" json:"images"`
	Active      bool                        `gorm:"column:active;not null;index" json:"active"`
	CreatedAt   time.Time                   `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"column:updated_at" json:"updated_at"`
}

func (Property) TableName() string {
	return "properties"
}

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.PropertyID == uuid.Nil {
		p.PropertyID = uuid.New()
	}
	return nil
}
