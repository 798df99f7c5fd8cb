package tenant

import (
	"context"
	"testing"
	"time"

	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []time.Time{base, base.Add(2 * time.Hour), base.Add(time.Hour)}
	SortNewestFirst(rows, func(t time.Time) time.Time { return t })
	assert.Equal(t, []time.Time{base.Add(2 * time.Hour), base.Add(time.Hour), base}, rows)
}

func TestIsMember(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	a := testutil.CreateCompany(t, db, "A")
	b := testutil.CreateCompany(t, db, "B")
	empA := testutil.CreateEmployee(t, db, a, domain.Permissions{})
	empB := testutil.CreateEmployee(t, db, b, domain.Permissions{})
	scopeA, err := For(a.UserID)
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		user *domain.AppUser
		want bool
	}{
		{"company itself", a, true},
		{"own employee", empA, true},
		{"other company", b, false},
		{"foreign employee", empB, false},
	} {
		got, err := IsMember(ctx, db, scopeA, tc.user.UserID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.name)
	}

	require.NoError(t, db.Model(&domain.AppUser{}).Where("user_id = ?", empA.UserID).Update("active", false).Error)
	got, err := IsMember(ctx, db, scopeA, empA.UserID)
	require.NoError(t, err)
	assert.False(t, got, "deactivated employee")
}
