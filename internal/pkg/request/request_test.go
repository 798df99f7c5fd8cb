package request

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDParamAndQuery(t *testing.T) {
	app := fiber.New()
	app.Get("/x/:id", func(c *fiber.Ctx) error {
		id, err := UUIDParam(c, "id")
		if err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		q, err := UUIDQuery(c, "property_id")
		if err != nil {
			return c.SendStatus(fiber.StatusUnprocessableEntity)
		}
		if q != nil {
			return c.SendString(id.String() + "|" + q.String())
		}
		return c.SendString(id.String())
	})

	id := uuid.New()
	resp, err := app.Test(httptest.NewRequest("GET", "/x/"+id.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/x/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/x/"+id.String()+"?property_id=bad", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}
