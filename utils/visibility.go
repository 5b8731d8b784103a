package utils

import (
	"gorm.io/gorm"

	"promptforge/models"
)

// VisibleScope computes the GORM scope for "content the caller may see".
// With no team context the scope is strictly personal content; with a team
// context, membership is re-checked server-side before the team scope is
// granted. Client-supplied team ids are never trusted.
func (ms *MembershipService) VisibleScope(userID uint, teamID *uint) (func(*gorm.DB) *gorm.DB, error) {
	if teamID == nil {
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("user_id = ? AND team_id IS NULL", userID)
		}, nil
	}

	if !ms.IsMember(userID, *teamID) {
		return nil, models.NewForbiddenError("you are not a member of this team")
	}
	id := *teamID
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("team_id = ?", id)
	}, nil
}

// CanAccessPrompt reports whether the caller may read the prompt through the
// authenticated API: personal prompts only by their owner, team prompts by
// any current member.
func (ms *MembershipService) CanAccessPrompt(userID uint, prompt *models.Prompt) bool {
	return ms.canAccessOwned(userID, prompt.UserID, prompt.TeamID)
}

// CanAccessChain is CanAccessPrompt for chains.
func (ms *MembershipService) CanAccessChain(userID uint, chain *models.Chain) bool {
	return ms.canAccessOwned(userID, chain.UserID, chain.TeamID)
}

// CanAccessCategory is CanAccessPrompt for categories.
func (ms *MembershipService) CanAccessCategory(userID uint, category *models.Category) bool {
	return ms.canAccessOwned(userID, category.UserID, category.TeamID)
}

func (ms *MembershipService) canAccessOwned(userID, ownerUserID uint, teamID *uint) bool {
	if teamID == nil {
		return ownerUserID == userID
	}
	return ms.IsMember(userID, *teamID)
}

// OwnerStatus resolves the subscription status that governs a piece of
// content: the team's when team-owned, otherwise the creating user's.
// Unresolvable owners read as free tier, fail-closed.
func OwnerStatus(db *gorm.DB, ownerUserID uint, teamID *uint) string {
	if teamID != nil {
		var team models.Team
		if err := db.First(&team, *teamID).Error; err != nil {
			return models.SubscriptionFree
		}
		return team.SubscriptionStatus
	}
	var user models.User
	if err := db.First(&user, ownerUserID).Error; err != nil {
		return models.SubscriptionFree
	}
	return user.SubscriptionStatus
}
