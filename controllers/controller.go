package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"promptforge/models"
	"promptforge/utils"
)

// currentUser returns the caller loaded by the JWT middleware.
func currentUser(c *fiber.Ctx) *models.User {
	return c.Locals("user").(*models.User)
}

// teamContext parses the optional ?team=<id> query parameter. Membership is
// verified later by the visibility resolver, never assumed from the client.
func teamContext(c *fiber.Ctx) (*uint, error) {
	raw := c.Query("team")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid team id")
	}
	teamID := uint(id)
	return &teamID, nil
}

// paramID parses a numeric path parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

// respondAppError maps a service-layer error onto the response. Expected
// business-rule violations carry their own status; anything else becomes a
// generic 500 without leaking details.
func respondAppError(c *fiber.Ctx, err error) error {
	appErr := models.AsAppError(err)
	return utils.ErrorResponse(c, appErr.HTTPStatus(), appErr.Message, nil)
}
