package controller

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"promptforge/models"
	"promptforge/utils"
)

type ChainController struct {
	DB         *gorm.DB
	Logger     *logrus.Logger
	Chains     *utils.ChainService
	Membership *utils.MembershipService
	Evaluator  *utils.Evaluator
	Notifier   *EvaluationNotifier
}

func NewChainController(db *gorm.DB, logger *logrus.Logger, chains *utils.ChainService, membership *utils.MembershipService, evaluator *utils.Evaluator) *ChainController {
	return &ChainController{
		DB:         db,
		Logger:     logger,
		Chains:     chains,
		Membership: membership,
		Evaluator:  evaluator,
		Notifier:   NewEvaluationNotifier(),
	}
}

// CreateChain creates a chain from an ordered prompt id list. The engine
// rejects empty input even though the UI disables submission below one step.
func (cc *ChainController) CreateChain(c *fiber.Ctx) error {
	user := currentUser(c)

	teamID, err := teamContext(c)
	if err != nil {
		return err
	}
	if teamID != nil {
		if err := cc.Membership.RequireRole(user.ID, *teamID, models.RoleMember); err != nil {
			return respondAppError(c, err)
		}
	}

	var input struct {
		Name        string `json:"name" validate:"required,max=200"`
		Description string `json:"description" validate:"max=2000"`
		PromptIDs   []uint `json:"prompt_ids"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	chain, err := cc.Chains.CreateChain(user.ID, teamID, input.Name, input.Description, input.PromptIDs)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(chain))
}

func (cc *ChainController) GetChains(c *fiber.Ctx) error {
	user := currentUser(c)

	teamID, err := teamContext(c)
	if err != nil {
		return err
	}
	scope, err := cc.Membership.VisibleScope(user.ID, teamID)
	if err != nil {
		return respondAppError(c, err)
	}

	var chains []models.Chain
	if err := cc.DB.Scopes(scope).Order("updated_at DESC").Find(&chains).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch chains", nil)
	}
	return c.JSON(utils.SuccessResponse(chains))
}

func (cc *ChainController) GetChain(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	chain, err := cc.loadAccessibleChain(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	members, err := cc.Chains.Members(chain.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch chain members", nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"chain":   chain,
		"prompts": members,
	}))
}

func (cc *ChainController) UpdateChain(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	chain, err := cc.loadAccessibleChain(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	var input struct {
		Name        string `json:"name" validate:"required,max=200"`
		Description string `json:"description" validate:"max=2000"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	chain.Name = input.Name
	chain.Description = input.Description
	if err := cc.DB.Save(chain).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update chain", nil)
	}
	return c.JSON(utils.SuccessResponse(chain))
}

// ReplaceChainPrompts swaps the member list wholesale; all-or-nothing.
func (cc *ChainController) ReplaceChainPrompts(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	chain, err := cc.loadAccessibleChain(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	var input struct {
		PromptIDs []uint `json:"prompt_ids"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := cc.Chains.ReplaceMembers(chain, input.PromptIDs); err != nil {
		return respondAppError(c, err)
	}

	members, err := cc.Chains.Members(chain.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch chain members", nil)
	}
	return c.JSON(utils.SuccessResponse(members))
}

func (cc *ChainController) ReorderChainPrompts(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	chain, err := cc.loadAccessibleChain(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	var input struct {
		FromIndex int `json:"from_index"`
		ToIndex   int `json:"to_index"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := cc.Chains.Reorder(chain, input.FromIndex, input.ToIndex); err != nil {
		return respondAppError(c, err)
	}

	members, err := cc.Chains.Members(chain.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch chain members", nil)
	}
	return c.JSON(utils.SuccessResponse(members))
}

func (cc *ChainController) AddChainPrompt(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	chain, err := cc.loadAccessibleChain(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	var input struct {
		PromptID uint `json:"prompt_id" validate:"required"`
		AtIndex  int  `json:"at_index"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	if err := cc.Chains.Insert(chain, input.PromptID, input.AtIndex); err != nil {
		return respondAppError(c, err)
	}

	members, err := cc.Chains.Members(chain.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch chain members", nil)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(members))
}

func (cc *ChainController) RemoveChainPrompt(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	promptID, err := paramID(c, "promptId")
	if err != nil {
		return err
	}

	chain, err := cc.loadAccessibleChain(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	if err := cc.Chains.Remove(chain, promptID); err != nil {
		return respondAppError(c, err)
	}

	members, err := cc.Chains.Members(chain.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch chain members", nil)
	}
	return c.JSON(utils.SuccessResponse(members))
}

func (cc *ChainController) DeleteChain(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	chain, err := cc.loadAccessibleChain(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("chain_id = ?", chain.ID).Delete(&models.ChainPrompt{}).Error; err != nil {
			return err
		}
		return tx.Delete(chain).Error
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// EvaluateChain sends the chain's prompts, in order, to the AI service and
// persists the score. On timeout or service failure the cached score and
// timestamp keep their prior values.
func (cc *ChainController) EvaluateChain(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	chain, err := cc.loadAccessibleChain(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	members, err := cc.Chains.Members(chain.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch chain members", nil)
	}
	if len(members) == 0 {
		return respondAppError(c, models.NewInvalidReferenceError("cannot evaluate an empty chain"))
	}

	prompts := make([]models.Prompt, 0, len(members))
	for _, m := range members {
		var prompt models.Prompt
		if err := cc.DB.First(&prompt, m.PromptID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load chain prompts", nil)
		}
		prompts = append(prompts, prompt)
	}

	cc.Notifier.Publish(chain.ID, EvaluationProgress{Status: "running", Message: "Sending chain to the AI scorer"})

	ctx, cancel := context.WithTimeout(c.Context(), cc.Evaluator.Timeout)
	defer cancel()

	result, err := cc.Evaluator.EvaluateChain(ctx, chain.Name, prompts)
	if err != nil {
		cc.Notifier.Publish(chain.ID, EvaluationProgress{Status: "failed", Message: "Evaluation failed"})
		return respondAppError(c, err)
	}

	if result.Score != nil {
		if err := cc.Chains.SaveEvaluation(chain, *result.Score); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save evaluation", nil)
		}
	}

	cc.Notifier.Publish(chain.ID, EvaluationProgress{Status: "completed", Message: "Evaluation completed", Score: result.Score})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"score":    result.Score,
		"feedback": result.Sections,
	}))
}

// loadAccessibleChain fetches a chain the caller may touch. Inaccessible and
// nonexistent chains are indistinguishable to the caller.
func (cc *ChainController) loadAccessibleChain(userID, chainID uint) (*models.Chain, error) {
	var chain models.Chain
	if err := cc.DB.First(&chain, chainID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("chain not found")
		}
		return nil, err
	}
	if !cc.Membership.CanAccessChain(userID, &chain) {
		return nil, models.NewNotFoundError("chain not found")
	}
	return &chain, nil
}
