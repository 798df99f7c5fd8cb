// Package testutil holds fixtures shared by service and handler tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/infrastructure/database"
	"objektbetreuer-backend/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB returns a migrated in-memory SQLite DB. A single connection keeps
// every query (and every transaction) on the same in-memory database.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Redis starts a miniredis server and returns a client for it.
func Redis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

// Clock is a manually advanced clock. Each call to Now moves it forward by
// Step so rows created back to back get distinct timestamps.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), Step: time.Second}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.Step)
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// CreateCompany inserts an active company profile and returns it.
func CreateCompany(t *testing.T, db *gorm.DB, name string) *domain.AppUser {
	t.Helper()
	id := uuid.New()
	cn := name
	u := &domain.AppUser{
		UserID:      id,
		Role:        constants.RoleCompany,
		DisplayName: name,
		Email:       id.String()[:8] + "@company.test",
		CompanyName: &cn,
		Active:      true,
		Permissions: domain.FullPermissions(),
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateEmployee inserts an active employee of company with perms.
func CreateEmployee(t *testing.T, db *gorm.DB, company *domain.AppUser, perms domain.Permissions) *domain.AppUser {
	t.Helper()
	id := uuid.New()
	cid := company.UserID
	u := &domain.AppUser{
		UserID:      id,
		Role:        constants.RoleEmployee,
		DisplayName: "Mitarbeiter " + id.String()[:4],
		Email:       id.String()[:8] + "@employee.test",
		CompanyID:   &cid,
		Active:      true,
		Permissions: perms,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateProperty inserts an active property owned by company.
func CreateProperty(t *testing.T, db *gorm.DB, company *domain.AppUser, name string) *domain.Property {
	t.Helper()
	now := time.Now().UTC()
	p := &domain.Property{
		CompanyID: company.UserID,
		Name:      name,
		Address:   datatypes.NewJSONType(domain.Address{Street: "Hauptstraße", HouseNumber: "1", PostalCode: "80331", City: "München", Country: "DE"}),
		Images:    datatypes.NewJSONSlice([]string{}),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
