package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"promptforge/utils"
)

type ShareController struct {
	Logger  *logrus.Logger
	Sharing *utils.SharingService
}

func NewShareController(logger *logrus.Logger, sharing *utils.SharingService) *ShareController {
	return &ShareController{Logger: logger, Sharing: sharing}
}

// GetPublicPrompt serves a shared prompt without authentication. The sharing
// gate re-validates the owner's entitlement on every read, so a lapsed
// subscription makes the prompt private immediately regardless of the stored
// flag.
func (sc *ShareController) GetPublicPrompt(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	prompt, err := sc.Sharing.ResolvePublicPrompt(id)
	if err != nil {
		return respondAppError(c, err)
	}

	// Public payload only carries the shareable fields
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"id":          prompt.ID,
		"name":        prompt.Name,
		"description": prompt.Description,
		"sections":    prompt.Render(),
		"score":       prompt.Score,
	}))
}
