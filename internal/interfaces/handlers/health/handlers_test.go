package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	healthsvc "objektbetreuer-backend/internal/application/health"
	"objektbetreuer-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping() error { return p.err }

func setupApp(t *testing.T, db healthsvc.DBPinger) (*Handlers, *fiber.App) {
	rdb, _ := testutil.Redis(t)
	h := &Handlers{Rdb: rdb, DB: db, HealthAdminKey: "test-admin-key"}
	app := fiber.New()
	app.Get("/reset", h.Reset)
	app.Get("/health/json", h.JSON)
	app.Get("/health/errors", h.Errors)
	return h, app
}

func getJSON(t *testing.T, app *fiber.App, path string, out interface{}) int {
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, out), string(body))
	return resp.StatusCode
}

func TestReset_Unauthorized(t *testing.T) {
	_, app := setupApp(t, pinger{})

	var out map[string]interface{}
	assert.Equal(t, fiber.StatusForbidden, getJSON(t, app, "/reset", &out))
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "Unauthorized", out["error"].(map[string]interface{})["message"])

	assert.Equal(t, fiber.StatusForbidden, getJSON(t, app, "/reset?key=wrong", &out))
}

func TestReset_Success(t *testing.T) {
	h, app := setupApp(t, pinger{})
	ctx := context.Background()
	require.NoError(t, h.Rdb.Set(ctx, healthsvc.KeyReqTotal, "5", 0).Err())

	var out map[string]interface{}
	assert.Equal(t, fiber.StatusOK, getJSON(t, app, "/reset?key=test-admin-key", &out))
	assert.Equal(t, "Stats reset successfully", out["message"])

	_, err := h.Rdb.Get(ctx, healthsvc.KeyReqTotal).Result()
	assert.Error(t, err)
	_, err = h.Rdb.Get(ctx, healthsvc.KeyStartTime).Result()
	assert.NoError(t, err)
}

func TestJSON_Status(t *testing.T) {
	_, app := setupApp(t, pinger{})
	var out map[string]interface{}
	assert.Equal(t, fiber.StatusOK, getJSON(t, app, "/health/json", &out))
	assert.Equal(t, healthsvc.ServiceName, out["service"])
	assert.Equal(t, "ok", out["status"])
	assert.Contains(t, out, "runtime")
	assert.Contains(t, out, "traffic")

	_, app = setupApp(t, pinger{err: errors.New("down")})
	getJSON(t, app, "/health/json", &out)
	assert.Equal(t, "issue", out["status"])
	deps := out["dependencies"].(map[string]interface{})
	assert.Equal(t, "error", deps["database"].(map[string]interface{})["status"])
}

func TestErrors_ReturnsNewestFirst(t *testing.T) {
	h, app := setupApp(t, pinger{})

	var empty []interface{}
	assert.Equal(t, fiber.StatusOK, getJSON(t, app, "/health/errors", &empty))
	assert.Empty(t, empty)

	ctx := context.Background()
	healthsvc.LogError(ctx, h.Rdb, map[string]interface{}{"path": "/api/v1/jobs", "message": "first"})
	healthsvc.LogError(ctx, h.Rdb, map[string]interface{}{"path": "/api/v1/jobs", "message": "second"})

	var entries []map[string]interface{}
	getJSON(t, app, "/health/errors", &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0]["message"])
}
