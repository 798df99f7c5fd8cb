package domain

import (
	"testing"
	"time"

	"objektbetreuer-backend/internal/pkg/constants"

	"github.com/stretchr/testify/assert"
)

func TestPermissions_AllowsIndependentFlags(t *testing.T) {
	p := Permissions{ViewJobs: true, EditProperties: true}
	assert.True(t, p.Allows(constants.CategoryJobs, constants.ActionView))
	assert.False(t, p.Allows(constants.CategoryJobs, constants.ActionEdit))
	assert.True(t, p.Allows(constants.CategoryProperties, constants.ActionEdit))
	assert.False(t, p.Allows(constants.CategoryProperties, constants.ActionView))
	assert.False(t, p.Allows("invoices", constants.ActionView))
}

func TestParseJobStatus_Legacy(t *testing.T) {
	cases := map[string]JobStatus{
		"open":        JobPending,
		"closed":      JobCompleted,
		"canceled":    JobCancelled,
		"In-Progress": JobInProgress,
		"cancelled":   JobCancelled,
	}
	for in, want := range cases {
		got, ok := ParseJobStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseJobStatus("archived")
	assert.False(t, ok)
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.True(t, JobCompleted.IsTerminal())
	assert.True(t, JobCancelled.IsTerminal())
	assert.False(t, JobPending.IsTerminal())
	assert.False(t, JobInProgress.IsTerminal())
}

func TestInvitation_EffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	inv := &Invitation{Status: InvitationPending, ExpiresAt: now.Add(7 * 24 * time.Hour)}
	assert.Equal(t, InvitationPending, inv.EffectiveStatus(now))
	assert.Equal(t, InvitationExpired, inv.EffectiveStatus(now.Add(8*24*time.Hour)))
	assert.Equal(t, InvitationPending, inv.Status)

	inv.Status = InvitationAccepted
	assert.Equal(t, InvitationAccepted, inv.EffectiveStatus(now.Add(8*24*time.Hour)))
}
