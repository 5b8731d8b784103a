package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"promptforge/config"
	"promptforge/models"
	"promptforge/utils"
)

type InvitationController struct {
	DB         *gorm.DB
	Logger     *logrus.Logger
	Membership *utils.MembershipService
	Mailer     *utils.Mailer
}

func NewInvitationController(db *gorm.DB, logger *logrus.Logger, membership *utils.MembershipService, mailer *utils.Mailer) *InvitationController {
	return &InvitationController{DB: db, Logger: logger, Membership: membership, Mailer: mailer}
}

// CreateInvitation invites an email address to a team. Admin only. The
// invitation email is sent best-effort; a delivery failure does not undo the
// invitation, the link can be re-sent.
func (ic *InvitationController) CreateInvitation(c *fiber.Ctx) error {
	user := currentUser(c)
	teamID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := ic.Membership.RequireRole(user.ID, teamID, models.RoleAdmin); err != nil {
		return respondAppError(c, err)
	}

	var input struct {
		Email string `json:"email" validate:"required,email"`
		Role  string `json:"role" validate:"omitempty,oneof=admin member"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	invitation, err := ic.Membership.CreateInvitation(teamID, input.Email, input.Role, user.ID, config.AppConfig.InvitationTTL)
	if err != nil {
		return respondAppError(c, err)
	}

	if ic.Mailer != nil {
		var team models.Team
		if err := ic.DB.First(&team, teamID).Error; err == nil {
			inviterName := user.Email
			if user.Name != nil {
				inviterName = *user.Name
			}
			if err := ic.Mailer.SendInvitation(invitation.Email, team.Name, inviterName, invitation.Role, invitation.Token, invitation.ExpiresAt); err != nil {
				ic.Logger.WithError(err).WithField("invitation_id", invitation.ID).Warn("failed to send invitation email")
			}
		}
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(invitation))
}

// GetPendingInvitations lists a team's pending invitations. Admin only.
func (ic *InvitationController) GetPendingInvitations(c *fiber.Ctx) error {
	user := currentUser(c)
	teamID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := ic.Membership.RequireRole(user.ID, teamID, models.RoleAdmin); err != nil {
		return respondAppError(c, err)
	}

	var invitations []models.TeamInvitation
	if err := ic.DB.Where("team_id = ? AND accepted_at IS NULL AND expires_at > ?", teamID, time.Now()).
		Order("created_at DESC").Find(&invitations).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invitations", nil)
	}
	return c.JSON(utils.SuccessResponse(invitations))
}

// CancelInvitation deletes a pending invitation. Admin only.
func (ic *InvitationController) CancelInvitation(c *fiber.Ctx) error {
	user := currentUser(c)
	teamID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	invitationID, err := paramID(c, "invitationId")
	if err != nil {
		return err
	}

	if err := ic.Membership.RequireRole(user.ID, teamID, models.RoleAdmin); err != nil {
		return respondAppError(c, err)
	}

	if err := ic.Membership.CancelInvitation(invitationID, teamID); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"cancelled": true}))
}

// AcceptInvitation consumes an invitation token for the calling user.
func (ic *InvitationController) AcceptInvitation(c *fiber.Ctx) error {
	user := currentUser(c)

	var input struct {
		Token string `json:"token" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	member, err := ic.Membership.AcceptInvitation(input.Token, user.ID)
	if err != nil {
		return respondAppError(c, err)
	}

	ic.Logger.WithFields(logrus.Fields{
		"team_id": member.TeamID,
		"user_id": member.UserID,
		"role":    member.Role,
	}).Info("invitation accepted")
	return c.JSON(utils.SuccessResponse(member))
}
