package properties

import (
	"context"
	"testing"

	propsvc "objektbetreuer-backend/internal/application/properties"
	uploadsvc "objektbetreuer-backend/internal/application/uploads"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/pkg/constants"
	"objektbetreuer-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeStorage struct{}

func (fakeStorage) CreateSignedUploadURL(ctx context.Context, bucket, objectPath string) (string, error) {
	return "https://storage.test/upload/" + objectPath, nil
}

func as(u *domain.AppUser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		middleware.SetProfile(c, u)
		return c.Next()
	}
}

func setupApp(t *testing.T, db *gorm.DB, u *domain.AppUser) *fiber.App {
	h := &Handlers{
		Service: &propsvc.Service{DB: db},
		Uploads: &uploadsvc.Service{Client: fakeStorage{}, SupabaseURL: "https://proj.supabase.co"},
	}
	app := fiber.New()
	g := app.Group("/properties", as(u))
	view := middleware.RequirePermission(constants.CategoryProperties, constants.ActionView)
	edit := middleware.RequirePermission(constants.CategoryProperties, constants.ActionEdit)
	g.Get("/", view, h.List)
	g.Post("/", edit, h.Create)
	g.Get("/:id", view, h.Get)
	g.Patch("/:id", edit, h.Update)
	g.Delete("/:id", edit, h.Delete)
	g.Post("/:id/image-upload", edit, h.ImageUpload)
	g.Post("/:id/images", edit, h.AttachImage)
	return app
}

func TestCreateAndList(t *testing.T) {
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	app := setupApp(t, db, company)

	status, env := testutil.Do(t, app, "POST", "/properties", map[string]interface{}{
		"name":    "Wohnanlage Süd",
		"address": map[string]string{"street": "Ringstraße", "house_number": "4", "postal_code": "10115", "city": "Berlin", "country": "DE"},
		"type":    "residential",
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error.Message)
	var created domain.Property
	env.Decode(t, &created)
	assert.Equal(t, company.UserID, created.CompanyID)

	status, env = testutil.Do(t, app, "GET", "/properties?city=berlin", nil)
	require.Equal(t, fiber.StatusOK, status)
	var list []domain.Property
	env.Decode(t, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Wohnanlage Süd", list[0].Name)
}

func TestGet_OtherTenantIsNotFound(t *testing.T) {
	db := testutil.OpenDB(t)
	a := testutil.CreateCompany(t, db, "A GmbH")
	b := testutil.CreateCompany(t, db, "B GmbH")
	foreign := testutil.CreateProperty(t, db, b, "Fremd")
	app := setupApp(t, db, a)

	status, env := testutil.Do(t, app, "GET", "/properties/"+foreign.PropertyID.String(), nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Code())

	status, _ = testutil.Do(t, app, "PATCH", "/properties/"+foreign.PropertyID.String(), map[string]string{"name": "Gekapert"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = testutil.Do(t, app, "GET", "/properties/not-a-uuid", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestEmployeePermissions(t *testing.T) {
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	viewer := testutil.CreateEmployee(t, db, company, domain.Permissions{ViewProperties: true})
	p := testutil.CreateProperty(t, db, company, "Objekt 1")
	app := setupApp(t, db, viewer)

	status, _ := testutil.Do(t, app, "GET", "/properties/"+p.PropertyID.String(), nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env := testutil.Do(t, app, "DELETE", "/properties/"+p.PropertyID.String(), nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "permission_denied", env.Code())

	none := testutil.CreateEmployee(t, db, company, domain.Permissions{})
	status, _ = testutil.Do(t, setupApp(t, db, none), "GET", "/properties", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestDelete_IsSoft(t *testing.T) {
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	p := testutil.CreateProperty(t, db, company, "Objekt 1")
	app := setupApp(t, db, company)

	status, _ := testutil.Do(t, app, "DELETE", "/properties/"+p.PropertyID.String(), nil)
	require.Equal(t, fiber.StatusOK, status)

	status, env := testutil.Do(t, app, "GET", "/properties", nil)
	require.Equal(t, fiber.StatusOK, status)
	var list []domain.Property
	env.Decode(t, &list)
	assert.Empty(t, list)

	status, env = testutil.Do(t, app, "GET", "/properties/"+p.PropertyID.String(), nil)
	require.Equal(t, fiber.StatusOK, status)
	var got domain.Property
	env.Decode(t, &got)
	assert.False(t, got.Active)
}

func TestImageUploadAndAttach(t *testing.T) {
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	p := testutil.CreateProperty(t, db, company, "Objekt 1")
	app := setupApp(t, db, company)

	status, env := testutil.Do(t, app, "POST", "/properties/"+p.PropertyID.String()+"/image-upload", map[string]string{"file_name": "front.jpg"})
	require.Equal(t, fiber.StatusOK, status, env.Error.Message)
	var res uploadsvc.UploadResult
	env.Decode(t, &res)
	assert.Contains(t, res.PublicURL, company.UserID.String()+"/"+p.PropertyID.String()+"/")

	status, env = testutil.Do(t, app, "POST", "/properties/"+p.PropertyID.String()+"/images", map[string]string{"url": res.PublicURL})
	require.Equal(t, fiber.StatusOK, status, env.Error.Message)
	var got domain.Property
	env.Decode(t, &got)
	assert.Equal(t, []string{res.PublicURL}, []string(got.Images))

	status, _ = testutil.Do(t, app, "POST", "/properties/"+p.PropertyID.String()+"/images", map[string]string{"url": "https://evil.example/x.jpg"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = testutil.Do(t, app, "POST", "/properties/"+uuid.NewString()+"/image-upload", map[string]string{"file_name": "front.jpg"})
	assert.Equal(t, fiber.StatusNotFound, status)
}
