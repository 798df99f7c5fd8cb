package properties

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
	ErrNotFound     = apperr.New(apperr.KindNotFound, "not_found", "Property not found")
	ErrNameRequired = apperr.Validation("missing_field", "Property name is required")
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
	Name        string         `json:"name"`
	Address     domain.Address `json:"address"`
	Latitude    *float64       `json:"latitude"`
	Longitude   *float64       `json:"longitude"`
	Type        string         `json:"type"`
	Size        *float64       `json:"size"`
	Description string         `json:"description"`
	Images      []string       `json:"images"`
}

// Create inserts an active property owned by the scope.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, in CreateInput) (*domain.Property, error) {
	if !scope.Valid() {
		return nil, apperr.ErrInvalidScope
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}
	now := s.now()
	p := &domain.Property{
		CompanyID:   scope.CompanyID(),
		Name:        name,
		Address:     datatypes.NewJSONType(in.Address),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Type:        in.Type,
		Size:        in.Size,
		Description: in.Description,
		Images:      datatypes.NewJSONSlice(images),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	live.Notify(ctx, s.Changes, live.EntityProperties, scope.CompanyID())
	return p, nil
}

// Get returns the property, active or not, or nil when the scope has no such property.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*domain.Property, error) {
	var p domain.Property
	err := s.DB.WithContext(ctx).Scopes(scope.Apply).Where("property_id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

type ListFilter struct {
	IncludeInactive bool
	Type            string
	City            string
}

// Signature identifies the filter for shared live feeds.
func (f ListFilter) Signature() string {
	inactive := ""
	if f.IncludeInactive {
		inactive = "1"
	}
	return live.FilterSignature(map[string]string{"inactive": inactive, "type": f.Type, "city": f.City})
}

// List returns the scope's properties, newest first. Soft-deleted properties
// are left out unless IncludeInactive is set.
func (s *Service) List(ctx context.Context, scope tenant.Scope, f ListFilter) ([]domain.Property, error) {
	q := s.DB.WithContext(ctx).Scopes(scope.Apply)
	if !f.IncludeInactive {
		q = q.Where("active = ?", true)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	var rows []domain.Property
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	if f.City != "" {
		rows = filterCity(rows, f.City)
	}
	tenant.SortNewestFirst(rows, func(p domain.Property) time.Time { return p.CreatedAt })
	return rows, nil
}

// address is a JSON column; the city filter runs in Go to stay portable across stores
func filterCity(rows []domain.Property, city string) []domain.Property {
	out := rows[:0]
	for _, p := range rows {
		if strings.EqualFold(p.Address.Data().City, city) {
			out = append(out, p)
		}
	}
	return out
}

// Patch holds the fields of a partial update; nil fields are left unchanged.
type Patch struct {
	Name        *string         `json:"name"`
	Address     *domain.Address `json:"address"`
	Latitude    *float64        `json:"latitude"`
	Longitude   *float64        `json:"longitude"`
	Type        *string         `json:"type"`
	Size        *float64        `json:"size"`
	Description *string         `json:"description"`
	Images      *[]string       `json:"images"`
	Active      *bool           `json:"active"`
}

func (p Patch) columns() (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		cols["name"] = name
	}
	if p.Address != nil {
		cols["address"] = datatypes.NewJSONType(*p.Address)
	}
	if p.Latitude != nil {
		cols["latitude"] = *p.Latitude
	}
	if p.Longitude != nil {
		cols["longitude"] = *p.Longitude
	}
	if p.Type != nil {
		cols["type"] = *p.Type
	}
	if p.Size != nil {
		cols["size_sqm"] = *p.Size
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Images != nil {
		images := *p.Images
		if images == nil {
			images = []string{}
		}
		cols["images"] = datatypes.NewJSONSlice(images)
	}
	if p.Active != nil {
		cols["active"] = *p.Active
	}
	return cols, nil
}

// Update applies patch and always refreshes updated_at, so an empty patch
// touches only the timestamp.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, id uuid.UUID, patch Patch) (*domain.Property, error) {
	cols, err := patch.columns()
	if err != nil {
		return nil, err
	}
	if err := s.update(ctx, scope, id, cols); err != nil {
		return nil, err
	}
	return s.Get(ctx, scope, id)
}

func (s *Service) update(ctx context.Context, scope tenant.Scope, id uuid.UUID, cols map[string]interface{}) error {
	cols["updated_at"] = s.now()
	res := s.DB.WithContext(ctx).Model(&domain.Property{}).Scopes(scope.Apply).
		Where("property_id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	live.Notify(ctx, s.Changes, live.EntityProperties, scope.CompanyID())
	return nil
}

// Delete is a soft delete: the row stays readable by id with Active false.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	return s.update(ctx, scope, id, map[string]interface{}{"active": false})
}

// AddImage appends url to the image list of the property.
func (s *Service) AddImage(ctx context.Context, scope tenant.Scope, id uuid.UUID, url string) (*domain.Property, error) {
	p, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	images := append([]string{}, p.Images...)
	images = append(images, url)
	return s.Update(ctx, scope, id, Patch{Images: &images})
}

// PurgeInactive hard-deletes the scope's soft-deleted properties last changed
// before cutoff. Properties a job still points at are kept.
func (s *Service) PurgeInactive(ctx context.Context, scope tenant.Scope, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Scopes(scope.Apply).
		Where("active = ? AND updated_at < ?", false, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM jobs WHERE jobs.property_id = properties.property_id)").
		Delete(&domain.Property{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		live.Notify(ctx, s.Changes, live.EntityProperties, scope.CompanyID())
	}
	return res.RowsAffected, nil
}
