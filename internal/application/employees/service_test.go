package employees

import (
	"context"
	"testing"

	"objektbetreuer-backend/internal/application/identity"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/tenant"
	"objektbetreuer-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAndGet_Scoped(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := &Service{DB: db, Now: testutil.NewClock().Now}
	ctx := context.Background()
	a := testutil.CreateCompany(t, db, "A")
	b := testutil.CreateCompany(t, db, "B")
	empA := testutil.CreateEmployee(t, db, a, domain.Permissions{ViewJobs: true})
	testutil.CreateEmployee(t, db, b, domain.Permissions{})
	scopeA, _ := tenant.FromUser(a)

	list, err := svc.List(ctx, scopeA, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, empA.UserID, list[0].UserID)

	// the company account itself is not one of its employees
	got, err := svc.Get(ctx, scopeA, a.UserID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdatePermissions_InvalidatesProfile(t *testing.T) {
	db := testutil.OpenDB(t)
	rdb, _ := testutil.Redis(t)
	resolver := &identity.Resolver{DB: db, Rdb: rdb}
	svc := &Service{DB: db, Rdb: rdb, Profiles: resolver, Now: testutil.NewClock().Now}
	ctx := context.Background()
	company := testutil.CreateCompany(t, db, "A")
	emp := testutil.CreateEmployee(t, db, company, domain.Permissions{ViewJobs: true})
	scope, _ := tenant.FromUser(company)

	require.NotNil(t, resolver.Resolve(ctx, emp.UserID))
	require.NotNil(t, resolver.Cached(ctx, emp.UserID))

	updated, err := svc.UpdatePermissions(ctx, scope, emp.UserID, domain.Permissions{ViewProperties: true, EditProperties: true})
	require.NoError(t, err)
	assert.Equal(t, domain.Permissions{ViewProperties: true, EditProperties: true}, updated.Permissions)
	assert.Nil(t, resolver.Cached(ctx, emp.UserID))
	assert.False(t, resolver.Current(ctx, emp.UserID).Permissions.ViewJobs)
}

func TestSetActive_DeactivationRevokesSessions(t *testing.T) {
	db := testutil.OpenDB(t)
	rdb, mr := testutil.Redis(t)
	resolver := &identity.Resolver{DB: db, Rdb: rdb}
	svc := &Service{DB: db, Rdb: rdb, Profiles: resolver, Now: testutil.NewClock().Now}
	ctx := context.Background()
	company := testutil.CreateCompany(t, db, "A")
	emp := testutil.CreateEmployee(t, db, company, domain.FullPermissions())
	scope, _ := tenant.FromUser(company)
	require.NoError(t, rdb.Set(ctx, identity.SessionKeyPrefix+"sid-1", "{}", 0).Err())
	require.NoError(t, identity.TrackSession(ctx, rdb, emp.UserID.String(), "sid-1"))

	u, err := svc.SetActive(ctx, scope, emp.UserID, false)
	require.NoError(t, err)
	assert.False(t, u.Active)
	assert.False(t, mr.Exists(identity.SessionKeyPrefix+"sid-1"))
	assert.Nil(t, resolver.Resolve(ctx, emp.UserID))

	list, err := svc.List(ctx, scope, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = svc.List(ctx, scope, ListFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	u, err = svc.SetActive(ctx, scope, emp.UserID, true)
	require.NoError(t, err)
	assert.True(t, u.Active)
}

func TestSetActive_ForeignEmployee(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := &Service{DB: db}
	a := testutil.CreateCompany(t, db, "A")
	b := testutil.CreateCompany(t, db, "B")
	empB := testutil.CreateEmployee(t, db, b, domain.FullPermissions())
	scopeA, _ := tenant.FromUser(a)

	_, err := svc.SetActive(context.Background(), scopeA, empB.UserID, false)
	assert.ErrorIs(t, err, ErrNotFound)
}
