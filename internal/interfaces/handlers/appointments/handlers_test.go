package appointments

import (
	"net/url"
	"testing"
	"time"

	apptsvc "objektbetreuer-backend/internal/application/appointments"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/pkg/constants"
	"objektbetreuer-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupApp(db *gorm.DB, u *domain.AppUser) *fiber.App {
	h := &Handlers{Service: &apptsvc.Service{DB: db}}
	app := fiber.New()
	g := app.Group("/appointments", func(c *fiber.Ctx) error {
		middleware.SetProfile(c, u)
		return c.Next()
	})
	view := middleware.RequirePermission(constants.CategoryAppointments, constants.ActionView)
	edit := middleware.RequirePermission(constants.CategoryAppointments, constants.ActionEdit)
	g.Get("/", view, h.List)
	g.Post("/", edit, h.Create)
	g.Get("/:id", view, h.Get)
	g.Patch("/:id", edit, h.Update)
	g.Delete("/:id", edit, h.Delete)
	return app
}

func TestCreateAndWindowFilter(t *testing.T) {
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	app := setupApp(db, company)
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	for i, title := range []string{"Begehung", "Wartung"} {
		s := start.Add(time.Duration(i) * 48 * time.Hour)
		status, env := testutil.Do(t, app, "POST", "/appointments", map[string]interface{}{
			"title": title, "start_time": s, "end_time": s.Add(time.Hour),
		})
		require.Equal(t, fiber.StatusCreated, status, env.Error.Message)
	}

	q := url.Values{}
	q.Set("from", start.Add(-time.Hour).Format(time.RFC3339))
	q.Set("to", start.Add(24*time.Hour).Format(time.RFC3339))
	status, env := testutil.Do(t, app, "GET", "/appointments?"+q.Encode(), nil)
	require.Equal(t, fiber.StatusOK, status, env.Error.Message)
	var list []domain.Appointment
	env.Decode(t, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Begehung", list[0].Title)

	status, _ = testutil.Do(t, app, "GET", "/appointments?from=gestern", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCreate_EndBeforeStart(t *testing.T) {
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	status, env := testutil.Do(t, setupApp(db, company), "POST", "/appointments", map[string]interface{}{
		"title": "Falsch", "start_time": start, "end_time": start.Add(-time.Hour),
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_time_range", env.Code())
}

func TestDelete_IsHardAndScoped(t *testing.T) {
	db := testutil.OpenDB(t)
	a := testutil.CreateCompany(t, db, "A GmbH")
	b := testutil.CreateCompany(t, db, "B GmbH")
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	status, env := testutil.Do(t, setupApp(db, a), "POST", "/appointments", map[string]interface{}{
		"title": "Begehung", "start_time": start, "end_time": start.Add(time.Hour),
	})
	require.Equal(t, fiber.StatusCreated, status)
	var appt domain.Appointment
	env.Decode(t, &appt)

	status, _ = testutil.Do(t, setupApp(db, b), "DELETE", "/appointments/"+appt.AppointmentID.String(), nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = testutil.Do(t, setupApp(db, a), "DELETE", "/appointments/"+appt.AppointmentID.String(), nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = testutil.Do(t, setupApp(db, a), "GET", "/appointments/"+appt.AppointmentID.String(), nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
