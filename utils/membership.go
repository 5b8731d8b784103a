package utils

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promptforge/models"
)

// MembershipService resolves (user, team) pairs to roles and manages the
// invitation lifecycle. Every team-scoped operation in the application goes
// through its predicates.
type MembershipService struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewMembershipService(db *gorm.DB, logger *logrus.Logger) *MembershipService {
	return &MembershipService{DB: db, Logger: logger}
}

// roleRank orders roles for RequireRole. Unknown roles rank below member.
func roleRank(role string) int {
	switch role {
	case models.RoleAdmin:
		return 2
	case models.RoleMember:
		return 1
	default:
		return 0
	}
}

// GetRole returns the caller's role on the team, and whether they are a
// member at all.
func (ms *MembershipService) GetRole(userID, teamID uint) (string, bool) {
	var member models.TeamMember
	err := ms.DB.Where("user_id = ? AND team_id = ?", userID, teamID).First(&member).Error
	if err != nil {
		return "", false
	}
	return member.Role, true
}

func (ms *MembershipService) IsMember(userID, teamID uint) bool {
	_, ok := ms.GetRole(userID, teamID)
	return ok
}

func (ms *MembershipService) IsAdmin(userID, teamID uint) bool {
	role, ok := ms.GetRole(userID, teamID)
	return ok && role == models.RoleAdmin
}

// RequireRole fails with a Forbidden error when the caller's role is absent
// or below minimumRole.
func (ms *MembershipService) RequireRole(userID, teamID uint, minimumRole string) error {
	role, ok := ms.GetRole(userID, teamID)
	if !ok || roleRank(role) < roleRank(minimumRole) {
		return models.NewForbiddenError("you do not have permission to perform this action on this team")
	}
	return nil
}

// CreateInvitation creates a pending invitation, enforcing the single pending
// invitation per (team, email) rule and the member-count entitlement. The
// member count includes pending invitations so invites cannot oversubscribe
// a free team.
func (ms *MembershipService) CreateInvitation(teamID uint, email, role string, invitedByID uint, ttl time.Duration) (*models.TeamInvitation, error) {
	if role != models.RoleAdmin && role != models.RoleMember {
		role = models.RoleMember
	}
	if err := ValidateEmailAddress(email); err != nil {
		return nil, models.NewInvalidReferenceError("invitation email is not valid")
	}

	token, err := GenerateToken(32)
	if err != nil {
		return nil, models.NewInternalError("could not generate invitation token")
	}

	invitation := &models.TeamInvitation{
		Token:       token,
		TeamID:      teamID,
		Email:       email,
		Role:        role,
		InvitedByID: invitedByID,
		ExpiresAt:   time.Now().Add(ttl),
	}

	err = ms.DB.Transaction(func(tx *gorm.DB) error {
		// Lock the team row so concurrent invites serialize on the member
		// count instead of both passing the limit check.
		var team models.Team
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&team, teamID).Error; err != nil {
			return models.NewNotFoundError("team not found")
		}

		now := time.Now()
		var pending int64
		if err := tx.Model(&models.TeamInvitation{}).
			Where("team_id = ? AND email = ? AND accepted_at IS NULL AND expires_at > ?", teamID, email, now).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return models.NewConflictError("an invitation for this email is already pending")
		}

		var memberCount int64
		if err := tx.Model(&models.TeamMember{}).Where("team_id = ?", teamID).Count(&memberCount).Error; err != nil {
			return err
		}
		var pendingTotal int64
		if err := tx.Model(&models.TeamInvitation{}).
			Where("team_id = ? AND accepted_at IS NULL AND expires_at > ?", teamID, now).
			Count(&pendingTotal).Error; err != nil {
			return err
		}
		if decision := CanAddTeamMember(team.SubscriptionStatus, memberCount+pendingTotal); !decision.Allowed {
			return models.NewForbiddenError(decision.Reason)
		}

		return tx.Create(invitation).Error
	})
	if err != nil {
		return nil, err
	}

	if ms.Logger != nil {
		ms.Logger.WithFields(logrus.Fields{
			"team_id": teamID,
			"email":   email,
			"role":    role,
		}).Info("team invitation created")
	}
	return invitation, nil
}

// AcceptInvitation consumes an invitation. Stamping AcceptedAt and creating
// the TeamMember row happen in the same transaction, both-or-neither.
func (ms *MembershipService) AcceptInvitation(token string, acceptingUserID uint) (*models.TeamMember, error) {
	var member *models.TeamMember

	err := ms.DB.Transaction(func(tx *gorm.DB) error {
		var invitation models.TeamInvitation
		if err := tx.Where("token = ?", token).First(&invitation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("invitation not found")
			}
			return err
		}

		now := time.Now()
		if invitation.AcceptedAt != nil {
			return models.NewAlreadyAcceptedError("this invitation has already been accepted")
		}
		if invitation.IsExpired(now) {
			return models.NewExpiredError("this invitation has expired")
		}

		if err := tx.Model(&invitation).Update("accepted_at", now).Error; err != nil {
			return err
		}

		// Create or update the membership with the invitation's role
		var existing models.TeamMember
		err := tx.Where("team_id = ? AND user_id = ?", invitation.TeamID, acceptingUserID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Update("role", invitation.Role).Error; err != nil {
				return err
			}
			member = &existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			created := models.TeamMember{
				TeamID: invitation.TeamID,
				UserID: acceptingUserID,
				Role:   invitation.Role,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			member = &created
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// CancelInvitation deletes a pending invitation. Accepted invitations are
// terminal and cannot be cancelled.
func (ms *MembershipService) CancelInvitation(invitationID, teamID uint) error {
	return ms.DB.Transaction(func(tx *gorm.DB) error {
		var invitation models.TeamInvitation
		if err := tx.Where("id = ? AND team_id = ?", invitationID, teamID).First(&invitation).Error; err != nil {
			return models.NewNotFoundError("invitation not found")
		}
		if invitation.AcceptedAt != nil {
			return models.NewAlreadyAcceptedError("this invitation has already been accepted")
		}
		return tx.Delete(&invitation).Error
	})
}

// UpdateRole changes a member's role. Demoting the last admin is refused so
// a team always keeps at least one admin.
func (ms *MembershipService) UpdateRole(teamID, memberUserID uint, newRole string) error {
	if newRole != models.RoleAdmin && newRole != models.RoleMember {
		return models.NewInvalidReferenceError("unknown role")
	}
	return ms.DB.Transaction(func(tx *gorm.DB) error {
		var member models.TeamMember
		if err := tx.Where("team_id = ? AND user_id = ?", teamID, memberUserID).First(&member).Error; err != nil {
			return models.NewNotFoundError("team member not found")
		}
		if member.Role == models.RoleAdmin && newRole != models.RoleAdmin {
			if err := ms.requireAnotherAdmin(tx, teamID, memberUserID); err != nil {
				return err
			}
		}
		return tx.Model(&member).Update("role", newRole).Error
	})
}

// RemoveMember deletes a membership. Removing the last admin is refused.
func (ms *MembershipService) RemoveMember(teamID, memberUserID uint) error {
	return ms.DB.Transaction(func(tx *gorm.DB) error {
		var member models.TeamMember
		if err := tx.Where("team_id = ? AND user_id = ?", teamID, memberUserID).First(&member).Error; err != nil {
			return models.NewNotFoundError("team member not found")
		}
		if member.Role == models.RoleAdmin {
			if err := ms.requireAnotherAdmin(tx, teamID, memberUserID); err != nil {
				return err
			}
		}
		// Hard delete: the (team, user) unique index must stay reusable
		// if the user is invited back later.
		return tx.Unscoped().Delete(&member).Error
	})
}

func (ms *MembershipService) requireAnotherAdmin(tx *gorm.DB, teamID, excludeUserID uint) error {
	var admins int64
	if err := tx.Model(&models.TeamMember{}).
		Where("team_id = ? AND role = ? AND user_id <> ?", teamID, models.RoleAdmin, excludeUserID).
		Count(&admins).Error; err != nil {
		return err
	}
	if admins == 0 {
		return models.NewConflictError("a team must keep at least one admin")
	}
	return nil
}
