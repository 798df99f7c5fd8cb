package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"objektbetreuer-backend/internal/application/identity"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/pkg/constants"
	"objektbetreuer-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	errObj := out["error"].(map[string]interface{})
	details, _ := errObj["details"].(map[string]interface{})
	code, _ := details["code"].(string)
	return code
}

// login stores a session for u directly in Redis and returns the cookie value.
func login(t *testing.T, rdb *redis.Client, u *domain.AppUser) string {
	sid := "sid-" + u.UserID.String()
	b, _ := json.Marshal(map[string]interface{}{"user": map[string]interface{}{"user_id": u.UserID.String(), "role": u.Role}})
	require.NoError(t, rdb.Set(context.Background(), identity.SessionKeyPrefix+sid, b, time.Hour).Err())
	require.NoError(t, identity.TrackSession(context.Background(), rdb, u.UserID.String(), sid))
	return "s:" + sid
}

func protectedApp(rdb *redis.Client, resolver ProfileResolver, tokens TokenValidator, mw ...fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(SessionStore(rdb))
	handlers := append([]fiber.Handler{BearerAuth(tokens), RequireAuth(), RequireProfile(resolver, rdb, SessionConfig{})}, mw...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": Profile(c).UserID.String()})
	})
	app.Get("/p", handlers...)
	return app
}

func TestRequireAuth_NoSession(t *testing.T) {
	rdb, _ := testutil.Redis(t)
	db := testutil.OpenDB(t)
	app := protectedApp(rdb, &identity.Resolver{DB: db, Rdb: rdb}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/p", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireProfile_SessionUser(t *testing.T) {
	rdb, _ := testutil.Redis(t)
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	app := protectedApp(rdb, &identity.Resolver{DB: db, Rdb: rdb}, nil)

	req := httptest.NewRequest("GET", "/p", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: login(t, rdb, company)})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireProfile_DeactivatedLosesSession(t *testing.T) {
	rdb, _ := testutil.Redis(t)
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	emp := testutil.CreateEmployee(t, db, company, domain.FullPermissions())
	require.NoError(t, db.Model(emp).Update("active", false).Error)
	app := protectedApp(rdb, &identity.Resolver{DB: db, Rdb: rdb}, nil)

	cookie := login(t, rdb, emp)
	req := httptest.NewRequest("GET", "/p", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookie})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "session_revoked", errorCode(t, resp))

	n, err := rdb.Exists(context.Background(), identity.SessionKeyPrefix+cookie[2:]).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRequirePermission(t *testing.T) {
	rdb, _ := testutil.Redis(t)
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	viewer := testutil.CreateEmployee(t, db, company, domain.Permissions{ViewJobs: true})
	app := protectedApp(rdb, &identity.Resolver{DB: db, Rdb: rdb}, nil, RequirePermission(constants.CategoryJobs, constants.ActionEdit))

	req := httptest.NewRequest("GET", "/p", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: login(t, rdb, viewer)})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission_denied", errorCode(t, resp))

	req = httptest.NewRequest("GET", "/p", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: login(t, rdb, company)})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireCompany(t *testing.T) {
	rdb, _ := testutil.Redis(t)
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	emp := testutil.CreateEmployee(t, db, company, domain.FullPermissions())
	app := protectedApp(rdb, &identity.Resolver{DB: db, Rdb: rdb}, nil, RequireCompany())

	req := httptest.NewRequest("GET", "/p", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: login(t, rdb, emp)})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestBearerAuth(t *testing.T) {
	rdb, _ := testutil.Redis(t)
	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	tokens := &identity.TokenService{Secret: []byte("test-secret"), TTL: time.Hour}
	app := protectedApp(rdb, &identity.Resolver{DB: db, Rdb: rdb}, tokens)

	tok, _, err := tokens.Issue(company.UserID, company.Email)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_token", errorCode(t, resp))
}

func TestSessionStore_PersistsAfterLogin(t *testing.T) {
	rdb, _ := testutil.Redis(t)
	app := fiber.New()
	app.Use(SessionStore(rdb))
	app.Post("/login", func(c *fiber.Ctx) error {
		sid := RegenerateSessionID(c)
		SetSessionUser(c, SessionUser{UserID: "u1", Role: constants.RoleCompany})
		return c.SendString(sid)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
	require.NoError(t, err)
	sid, _ := io.ReadAll(resp.Body)
	raw, err := rdb.Get(context.Background(), identity.SessionKeyPrefix+string(sid)).Result()
	require.NoError(t, err)
	assert.Contains(t, raw, `"user_id":"u1"`)
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedSuffix: ".objektbetreuer.de"}))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "https://app.objektbetreuer.de")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://app.objektbetreuer.de", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestErrorHandler_LogsServerErrors(t *testing.T) {
	rdb, _ := testutil.Redis(t)
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(rdb)})
	app.Get("/boom", func(c *fiber.Ctx) error { return io.ErrUnexpectedEOF })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	n, err := rdb.LLen(context.Background(), "health:global:error_log").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTracing_KeepsClientTraceID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Trace-Id", id)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, id, resp.Header.Get("X-Trace-Id"))

	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Trace-Id", "'; DROP TABLE jobs")
	resp, err = app.Test(req)
	require.NoError(t, err)
	_, err = uuid.Parse(resp.Header.Get("X-Trace-Id"))
	assert.NoError(t, err)
}

func TestRouteLogger_TenantAndStreams(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	db := testutil.OpenDB(t)
	company := testutil.CreateCompany(t, db, "Hausmeister GmbH")
	emp := testutil.CreateEmployee(t, db, company, domain.Permissions{ViewJobs: true})

	app := fiber.New()
	app.Use(Tracing(), RouteLogger())
	app.Get("/api/v1/jobs", func(c *fiber.Ctx) error {
		SetProfile(c, emp)
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/api/v1/live/jobs", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest("GET", "/api/v1/jobs", nil))
	require.NoError(t, err)
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Request handled", line["message"])
	assert.Equal(t, emp.UserID.String(), line["user_id"])
	assert.Equal(t, company.UserID.String(), line["company_id"])

	buf.Reset()
	_, err = app.Test(httptest.NewRequest("GET", "/api/v1/live/jobs", nil))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Stream opened", line["message"])
}
