package account

import (
	"testing"

	acctsvc "objektbetreuer-backend/internal/application/account"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupApp(db *gorm.DB, u *domain.AppUser) *fiber.App {
	h := &Handlers{Service: &acctsvc.Service{DB: db}}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetProfile(c, u)
		return c.Next()
	})
	app.Get("/account", h.Get)
	app.Patch("/account", h.Update)
	return app
}

func TestUpdate_CompanyName(t *testing.T) {
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")

	status, env := testutil.Do(t, setupApp(db, company), "PATCH", "/account", map[string]string{"company_name": "Hausmeister Süd GmbH"})
	require.Equal(t, fiber.StatusOK, status, env.Error.Message)
	var u domain.AppUser
	env.Decode(t, &u)
	require.NotNil(t, u.CompanyName)
	assert.Equal(t, "Hausmeister Süd GmbH", *u.CompanyName)
}

func TestUpdate_EmployeeCannotRenameCompany(t *testing.T) {
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	emp := testutil.CreateEmployee(t, db, company, domain.Permissions{})
	app := setupApp(db, emp)

	status, _ := testutil.Do(t, app, "PATCH", "/account", map[string]string{"company_name": "Meins"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env := testutil.Do(t, app, "PATCH", "/account", map[string]string{"display_name": "Erika Muster"})
	require.Equal(t, fiber.StatusOK, status)
	var u domain.AppUser
	env.Decode(t, &u)
	assert.Equal(t, "Erika Muster", u.DisplayName)

	status, env = testutil.Do(t, app, "GET", "/account", nil)
	require.Equal(t, fiber.StatusOK, status)
	env.Decode(t, &u)
	assert.Equal(t, emp.UserID, u.UserID)
}
