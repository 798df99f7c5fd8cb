package auth

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"objektbetreuer-backend/internal/application/account"
	"objektbetreuer-backend/internal/application/identity"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type resetMailer struct {
	mu    sync.Mutex
	links []string
}

func (m *resetMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

type fixture struct {
	db     *gorm.DB
	rdb    *redis.Client
	mailer *resetMailer
	h      *Handlers
	app    *fiber.App
}

func setup(t *testing.T) fixture {
	db := testutil.OpenDB(t)
	rdb, _ := testutil.Redis(t)
	mailer := &resetMailer{}
	provider := &identity.LocalProvider{DB: db, Rdb: rdb, Mailer: mailer, ResetBaseURL: "https://app.test", BcryptCost: bcrypt.MinCost}
	resolver := &identity.Resolver{DB: db, Rdb: rdb}
	tokens := &identity.TokenService{Secret: []byte("test-secret")}
	h := &Handlers{
		Accounts: &account.Service{DB: db, Identity: provider, Profiles: resolver},
		Provider: provider,
		Profiles: resolver,
		Tokens:   tokens,
		Rdb:      rdb,
	}

	app := fiber.New()
	app.Use(middleware.SessionStore(rdb))
	g := app.Group("/auth")
	g.Post("/register", h.Register)
	g.Post("/login", h.Login)
	g.Post("/token", h.Token)
	g.Post("/password-reset", h.PasswordReset)
	g.Post("/password-reset/confirm", h.ConfirmPasswordReset)
	g.Delete("/logout", h.Logout)
	authed := []fiber.Handler{middleware.BearerAuth(tokens), middleware.RequireAuth(), middleware.RequireProfile(resolver, rdb, h.Config)}
	g.Get("/me", append(authed, h.Me)...)
	return fixture{db: db, rdb: rdb, mailer: mailer, h: h, app: app}
}

// request sends body and returns the status plus the session cookie, if one was set.
func (f fixture) request(t *testing.T, method, path, body, cookie string, headers ...string) (int, string) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.Header.Set("Cookie", middleware.SessionCookieName+"="+cookie)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.SessionCookieName {
			return resp.StatusCode, ck.Value
		}
	}
	return resp.StatusCode, ""
}

const registerBody = `{"email":"chef@hausmeister.de","password":"Hausmeister1!","display_name":"Clara Chef","company_name":"Hausmeister GmbH"}`

func TestRegisterThenMe(t *testing.T) {
	f := setup(t)
	status, cookie := f.request(t, "POST", "/auth/register", registerBody, "")
	require.Equal(t, fiber.StatusCreated, status)
	require.True(t, strings.HasPrefix(cookie, "s:"))

	status, _ = f.request(t, "GET", "/auth/me", "", cookie)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = f.request(t, "POST", "/auth/register", registerBody, "")
	assert.Equal(t, fiber.StatusConflict, status)
}

func TestLogin_EmptyBody(t *testing.T) {
	f := setup(t)
	status, _ := f.request(t, "POST", "/auth/login", "", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := setup(t)
	status, _ := f.request(t, "POST", "/auth/register", registerBody, "")
	require.Equal(t, fiber.StatusCreated, status)

	status, cookie := f.request(t, "POST", "/auth/login", `{"email":"chef@hausmeister.de","password":"Falsch123!"}`, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Empty(t, cookie)
}

func TestLogin_PrincipalWithoutProfile(t *testing.T) {
	f := setup(t)
	_, err := f.h.Provider.Register(context.Background(), "lost@hausmeister.de", "Hausmeister1!")
	require.NoError(t, err)

	status, cookie := f.request(t, "POST", "/auth/login", `{"email":"lost@hausmeister.de","password":"Hausmeister1!"}`, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Empty(t, cookie)
}

func TestLoginLogout(t *testing.T) {
	f := setup(t)
	f.request(t, "POST", "/auth/register", registerBody, "")

	status, cookie := f.request(t, "POST", "/auth/login", `{"email":"Chef@Hausmeister.de","password":"Hausmeister1!"}`, "")
	require.Equal(t, fiber.StatusOK, status)
	require.NotEmpty(t, cookie)

	var u domain.AppUser
	require.NoError(t, f.db.Where("email = ?", "chef@hausmeister.de").First(&u).Error)
	assert.NotNil(t, u.LastLoginAt)

	status, _ = f.request(t, "DELETE", "/auth/logout", "", cookie)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = f.request(t, "GET", "/auth/me", "", cookie)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestToken_BearerMe(t *testing.T) {
	f := setup(t)
	f.request(t, "POST", "/auth/register", registerBody, "")

	status, env := testutil.Do(t, f.app, "POST", "/auth/token", map[string]string{"email": "chef@hausmeister.de", "password": "Hausmeister1!"})
	var out struct {
		AccessToken string `json:"access_token"`
	}
	env.Decode(t, &out)
	require.Equal(t, fiber.StatusOK, status)
	require.NotEmpty(t, out.AccessToken)

	status, _ = f.request(t, "GET", "/auth/me", "", "", "Authorization", "Bearer "+out.AccessToken)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = f.request(t, "GET", "/auth/me", "", "", "Authorization", "Bearer forged")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestPasswordReset(t *testing.T) {
	f := setup(t)
	_, cookie := f.request(t, "POST", "/auth/register", registerBody, "")

	status, _ := f.request(t, "POST", "/auth/password-reset", `{"email":"nobody@hausmeister.de"}`, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, f.mailer.links)

	status, _ = f.request(t, "POST", "/auth/password-reset", `{"email":"chef@hausmeister.de"}`, "")
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, f.mailer.links, 1)
	_, token, _ := strings.Cut(f.mailer.links[0], "token=")

	status, _ = f.request(t, "POST", "/auth/password-reset/confirm", `{"token":"`+token+`","password":"NeuesPasswort2?"}`, "")
	require.Equal(t, fiber.StatusOK, status)

	// existing sessions are gone, the new password works
	status, _ = f.request(t, "GET", "/auth/me", "", cookie)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = f.request(t, "POST", "/auth/login", `{"email":"chef@hausmeister.de","password":"NeuesPasswort2?"}`, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = f.request(t, "POST", "/auth/password-reset/confirm", `{"token":"`+token+`","password":"NeuesPasswort2?"}`, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}
