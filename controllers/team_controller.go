package controller

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"promptforge/models"
	"promptforge/utils"
)

type TeamController struct {
	DB         *gorm.DB
	Logger     *logrus.Logger
	Membership *utils.MembershipService
}

func NewTeamController(db *gorm.DB, logger *logrus.Logger, membership *utils.MembershipService) *TeamController {
	return &TeamController{DB: db, Logger: logger, Membership: membership}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// CreateTeam creates a team with the caller as first admin. Gated on a Pro
// subscription.
func (tc *TeamController) CreateTeam(c *fiber.Ctx) error {
	user := currentUser(c)

	if decision := utils.CanCreateTeam(user.SubscriptionStatus); !decision.Allowed {
		return respondAppError(c, models.NewForbiddenError(decision.Reason))
	}

	var input struct {
		Name string `json:"name" validate:"required,max=100"`
		Slug string `json:"slug" validate:"max=100"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	slug := input.Slug
	if slug == "" {
		slug = slugify(input.Name)
	} else {
		slug = slugify(slug)
	}
	if slug == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "team name must contain at least one letter or digit", nil)
	}

	team := models.Team{Name: input.Name, Slug: slug}

	err := tc.DB.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Team{}).Where("slug = ?", slug).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return models.NewConflictError("a team with this slug already exists")
		}
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		return tx.Create(&models.TeamMember{
			TeamID: team.ID,
			UserID: user.ID,
			Role:   models.RoleAdmin,
		}).Error
	})
	if err != nil {
		return respondAppError(c, err)
	}

	tc.Logger.WithFields(logrus.Fields{"team_id": team.ID, "slug": team.Slug}).Info("team created")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(team))
}

// GetMyTeams lists the teams the caller belongs to, with their role.
func (tc *TeamController) GetMyTeams(c *fiber.Ctx) error {
	user := currentUser(c)

	var memberships []models.TeamMember
	if err := tc.DB.Preload("Team").Where("user_id = ?", user.ID).Find(&memberships).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch teams", nil)
	}

	type teamWithRole struct {
		models.Team
		Role string `json:"role"`
	}
	teams := make([]teamWithRole, 0, len(memberships))
	for _, m := range memberships {
		teams = append(teams, teamWithRole{Team: m.Team, Role: m.Role})
	}
	return c.JSON(utils.SuccessResponse(teams))
}

// GetTeam fetches a team by slug. Members only; outsiders get 404 so team
// existence is not leaked.
func (tc *TeamController) GetTeam(c *fiber.Ctx) error {
	user := currentUser(c)
	slug := c.Params("slug")

	var team models.Team
	if err := tc.DB.Where("slug = ?", slug).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondAppError(c, models.NewNotFoundError("team not found"))
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch team", nil)
	}
	if !tc.Membership.IsMember(user.ID, team.ID) {
		return respondAppError(c, models.NewNotFoundError("team not found"))
	}
	return c.JSON(utils.SuccessResponse(team))
}

// UpdateTeam renames a team. Admin only.
func (tc *TeamController) UpdateTeam(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := tc.Membership.RequireRole(user.ID, id, models.RoleAdmin); err != nil {
		return respondAppError(c, err)
	}

	var input struct {
		Name string `json:"name" validate:"required,max=100"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var team models.Team
	if err := tc.DB.First(&team, id).Error; err != nil {
		return respondAppError(c, models.NewNotFoundError("team not found"))
	}
	team.Name = input.Name
	if err := tc.DB.Save(&team).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update team", nil)
	}
	return c.JSON(utils.SuccessResponse(team))
}

// DeleteTeam removes a team and cascades to memberships, invitations, and
// all team-owned content. Admin only.
func (tc *TeamController) DeleteTeam(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := tc.Membership.RequireRole(user.ID, id, models.RoleAdmin); err != nil {
		return respondAppError(c, err)
	}

	err = tc.DB.Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.First(&team, id).Error; err != nil {
			return models.NewNotFoundError("team not found")
		}

		// Chain members of team-owned chains first
		var chainIDs []uint
		if err := tx.Model(&models.Chain{}).Where("team_id = ?", id).Pluck("id", &chainIDs).Error; err != nil {
			return err
		}
		if len(chainIDs) > 0 {
			if err := tx.Unscoped().Where("chain_id IN ?", chainIDs).Delete(&models.ChainPrompt{}).Error; err != nil {
				return err
			}
		}
		var promptIDs []uint
		if err := tx.Model(&models.Prompt{}).Where("team_id = ?", id).Pluck("id", &promptIDs).Error; err != nil {
			return err
		}
		if len(promptIDs) > 0 {
			if err := tx.Where("prompt_id IN ?", promptIDs).Delete(&models.PromptCategory{}).Error; err != nil {
				return err
			}
		}

		for _, model := range []interface{}{
			&models.Chain{}, &models.Prompt{}, &models.Category{},
		} {
			if err := tx.Where("team_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		// Memberships and invitations carry unique indexes, delete for real
		for _, model := range []interface{}{&models.TeamInvitation{}, &models.TeamMember{}} {
			if err := tx.Unscoped().Where("team_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&team).Error
	})
	if err != nil {
		return respondAppError(c, err)
	}

	tc.Logger.WithField("team_id", id).Info("team deleted")
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// GetTeamMembers lists members. Any member may see the roster.
func (tc *TeamController) GetTeamMembers(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := tc.Membership.RequireRole(user.ID, id, models.RoleMember); err != nil {
		return respondAppError(c, err)
	}

	var members []models.TeamMember
	if err := tc.DB.Preload("User").Where("team_id = ?", id).Find(&members).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch members", nil)
	}
	return c.JSON(utils.SuccessResponse(members))
}

// UpdateMemberRole changes a member's role. Admin only; the last admin
// cannot be demoted.
func (tc *TeamController) UpdateMemberRole(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	memberUserID, err := paramID(c, "userId")
	if err != nil {
		return err
	}

	if err := tc.Membership.RequireRole(user.ID, id, models.RoleAdmin); err != nil {
		return respondAppError(c, err)
	}

	var input struct {
		Role string `json:"role" validate:"required,oneof=admin member"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	if err := tc.Membership.UpdateRole(id, memberUserID, input.Role); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"updated": true}))
}

// RemoveMember removes a member. Admins may remove anyone; members may only
// remove themselves (leave). The last admin cannot leave.
func (tc *TeamController) RemoveMember(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	memberUserID, err := paramID(c, "userId")
	if err != nil {
		return err
	}

	if memberUserID != user.ID {
		if err := tc.Membership.RequireRole(user.ID, id, models.RoleAdmin); err != nil {
			return respondAppError(c, err)
		}
	} else if err := tc.Membership.RequireRole(user.ID, id, models.RoleMember); err != nil {
		return respondAppError(c, err)
	}

	if err := tc.Membership.RemoveMember(id, memberUserID); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"removed": true}))
}
