package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promptforge/models"
	"promptforge/utils"
)

type PromptController struct {
	DB         *gorm.DB
	Logger     *logrus.Logger
	Membership *utils.MembershipService
	Sharing    *utils.SharingService
	Chains     *utils.ChainService
	Evaluator  *utils.Evaluator
}

func NewPromptController(db *gorm.DB, logger *logrus.Logger, membership *utils.MembershipService, sharing *utils.SharingService, chains *utils.ChainService, evaluator *utils.Evaluator) *PromptController {
	return &PromptController{
		DB:         db,
		Logger:     logger,
		Membership: membership,
		Sharing:    sharing,
		Chains:     chains,
		Evaluator:  evaluator,
	}
}

type promptInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`

	TaskContext              string `json:"task_context"`
	ToneContext              string `json:"tone_context"`
	BackgroundData           string `json:"background_data"`
	DetailedTaskInstructions string `json:"detailed_task_instructions"`
	Examples                 string `json:"examples"`
	ConversationHistory      string `json:"conversation_history"`
	ImmediateTask            string `json:"immediate_task"`
	ThinkingSteps            string `json:"thinking_steps"`
	OutputFormatting         string `json:"output_formatting"`
	PrefilledResponse        string `json:"prefilled_response"`
}

func (input *promptInput) apply(prompt *models.Prompt) {
	prompt.Name = input.Name
	prompt.Description = input.Description
	prompt.TaskContext = input.TaskContext
	prompt.ToneContext = input.ToneContext
	prompt.BackgroundData = input.BackgroundData
	prompt.DetailedTaskInstructions = input.DetailedTaskInstructions
	prompt.Examples = input.Examples
	prompt.ConversationHistory = input.ConversationHistory
	prompt.ImmediateTask = input.ImmediateTask
	prompt.ThinkingSteps = input.ThinkingSteps
	prompt.OutputFormatting = input.OutputFormatting
	prompt.PrefilledResponse = input.PrefilledResponse
}

// CreatePrompt creates a prompt in the caller's personal space or, with
// ?team=, in a team the caller belongs to. The owner row is locked while
// the count is checked, so a lost race is denied like a plain limit hit.
func (pc *PromptController) CreatePrompt(c *fiber.Ctx) error {
	user := currentUser(c)

	teamID, err := teamContext(c)
	if err != nil {
		return err
	}

	var input promptInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	if teamID != nil {
		if err := pc.Membership.RequireRole(user.ID, *teamID, models.RoleMember); err != nil {
			return respondAppError(c, err)
		}
	}

	prompt := models.Prompt{UserID: user.ID, TeamID: teamID}
	input.apply(&prompt)

	// The owner row is locked before counting so two concurrent creates
	// serialize and the second one sees the first one's insert.
	err = pc.DB.Transaction(func(tx *gorm.DB) error {
		if teamID != nil {
			var team models.Team
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&team, *teamID).Error; err != nil {
				return models.NewNotFoundError("team not found")
			}
			var count int64
			if err := tx.Model(&models.Prompt{}).Where("team_id = ?", *teamID).Count(&count).Error; err != nil {
				return err
			}
			if decision := utils.CanCreateTeamPrompt(team.SubscriptionStatus, count); !decision.Allowed {
				return models.NewForbiddenError(decision.Reason)
			}
		} else {
			var owner models.User
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owner, user.ID).Error; err != nil {
				return err
			}
			var count int64
			if err := tx.Model(&models.Prompt{}).Where("user_id = ? AND team_id IS NULL", user.ID).Count(&count).Error; err != nil {
				return err
			}
			if decision := utils.CanCreatePrompt(owner.SubscriptionStatus, count); !decision.Allowed {
				return models.NewForbiddenError(decision.Reason)
			}
		}
		return tx.Create(&prompt).Error
	})
	if err != nil {
		return respondAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(prompt))
}

// GetPrompts lists prompts in the resolved scope: personal by default,
// team-scoped with ?team=.
func (pc *PromptController) GetPrompts(c *fiber.Ctx) error {
	user := currentUser(c)

	teamID, err := teamContext(c)
	if err != nil {
		return err
	}
	scope, err := pc.Membership.VisibleScope(user.ID, teamID)
	if err != nil {
		return respondAppError(c, err)
	}

	var prompts []models.Prompt
	if err := pc.DB.Scopes(scope).Preload("Categories").Order("updated_at DESC").Find(&prompts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prompts", nil)
	}
	return c.JSON(utils.SuccessResponse(prompts))
}

func (pc *PromptController) GetPrompt(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	prompt, err := pc.loadAccessiblePrompt(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}
	if err := pc.DB.Preload("Categories").First(prompt, prompt.ID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prompt", nil)
	}
	return c.JSON(utils.SuccessResponse(prompt))
}

// UpdatePrompt updates the prompt's sections and metadata. The public flag
// has its own endpoint because it is entitlement-gated.
func (pc *PromptController) UpdatePrompt(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	prompt, err := pc.loadAccessiblePrompt(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	var input promptInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	input.apply(prompt)
	if err := pc.DB.Save(prompt).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update prompt", nil)
	}
	return c.JSON(utils.SuccessResponse(prompt))
}

// SetPromptVisibility flips the public flag through the sharing gate.
// Violations are rejected loudly, never silently coerced.
func (pc *PromptController) SetPromptVisibility(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	prompt, err := pc.loadAccessiblePrompt(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	var input struct {
		Public bool `json:"public"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := pc.Sharing.SetPublic(prompt, input.Public); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(utils.SuccessResponse(prompt))
}

func (pc *PromptController) DeletePrompt(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	prompt, err := pc.loadAccessiblePrompt(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	err = pc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("prompt_id = ?", prompt.ID).Delete(&models.PromptCategory{}).Error; err != nil {
			return err
		}
		if err := pc.Chains.DetachPrompt(tx, prompt.ID); err != nil {
			return err
		}
		return tx.Delete(prompt).Error
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// SetPromptCategories replaces the prompt's category assignments. Every
// category must live in the same scope as the prompt.
func (pc *PromptController) SetPromptCategories(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	prompt, err := pc.loadAccessiblePrompt(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	var input struct {
		CategoryIDs []uint `json:"category_ids"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	err = pc.DB.Transaction(func(tx *gorm.DB) error {
		if len(input.CategoryIDs) > 0 {
			query := tx.Model(&models.Category{}).Where("id IN ?", input.CategoryIDs)
			if prompt.TeamID == nil {
				query = query.Where("user_id = ? AND team_id IS NULL", prompt.UserID)
			} else {
				query = query.Where("team_id = ?", *prompt.TeamID)
			}
			var count int64
			if err := query.Count(&count).Error; err != nil {
				return err
			}
			if count != int64(len(input.CategoryIDs)) {
				return models.NewInvalidReferenceError("one or more categories do not exist in this workspace")
			}
		}

		if err := tx.Where("prompt_id = ?", prompt.ID).Delete(&models.PromptCategory{}).Error; err != nil {
			return err
		}
		for _, categoryID := range input.CategoryIDs {
			if err := tx.Create(&models.PromptCategory{PromptID: prompt.ID, CategoryID: categoryID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"updated": true}))
}

// ScorePrompt sends the prompt to the AI service and caches the result. On
// failure the previous score is left untouched.
func (pc *PromptController) ScorePrompt(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	prompt, err := pc.loadAccessiblePrompt(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	result, err := pc.Evaluator.ScorePrompt(c.Context(), prompt)
	if err != nil {
		return respondAppError(c, err)
	}

	if result.Score != nil {
		if err := pc.DB.Model(prompt).Updates(map[string]interface{}{
			"score":          *result.Score,
			"last_scored_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save score", nil)
		}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"score":    result.Score,
		"feedback": result.Sections,
	}))
}

// GenerateSection asks the AI service to draft one methodology section based
// on what the user has written so far. Nothing is persisted; the draft is
// returned for the user to review.
func (pc *PromptController) GenerateSection(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	prompt, err := pc.loadAccessiblePrompt(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	var input struct {
		Section string `json:"section" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	draft, err := pc.Evaluator.GenerateSection(c.Context(), prompt, input.Section)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"section": input.Section,
		"draft":   draft,
	}))
}

// loadAccessiblePrompt fetches a prompt the caller may touch. Inaccessible
// and nonexistent prompts are indistinguishable to the caller.
func (pc *PromptController) loadAccessiblePrompt(userID, promptID uint) (*models.Prompt, error) {
	var prompt models.Prompt
	if err := pc.DB.First(&prompt, promptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("prompt not found")
		}
		return nil, err
	}
	if !pc.Membership.CanAccessPrompt(userID, &prompt) {
		return nil, models.NewNotFoundError("prompt not found")
	}
	return &prompt, nil
}
