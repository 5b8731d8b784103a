package utils

import (
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promptforge/models"
)

// SharingService enforces the public-visibility entitlement on prompts, at
// write time and again on every public read. The stored flag alone is never
// trusted: a lapsed subscription makes a prompt private immediately, even if
// revocation has not caught up yet.
type SharingService struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewSharingService(db *gorm.DB, logger *logrus.Logger) *SharingService {
	return &SharingService{DB: db, Logger: logger}
}

// SetPublic flips the prompt's public flag. Turning it on requires the
// owner's subscription to be active; violations are rejected with an explicit
// error rather than silently coerced.
func (ss *SharingService) SetPublic(prompt *models.Prompt, public bool) error {
	return ss.DB.Transaction(func(tx *gorm.DB) error {
		if public {
			// Lock the owner row so the entitlement check and the flag write
			// see the same subscription status.
			status := OwnerStatus(tx.Clauses(clause.Locking{Strength: "UPDATE"}), prompt.UserID, prompt.TeamID)
			if decision := CanMakePromptPublic(status); !decision.Allowed {
				return models.NewForbiddenError(decision.Reason)
			}
		}
		return tx.Model(prompt).Update("public", public).Error
	})
}

// ResolvePublicPrompt fetches a prompt for unauthenticated share access. The
// prompt must be flagged public AND its owner's subscription must still be
// active at read time.
func (ss *SharingService) ResolvePublicPrompt(promptID uint) (*models.Prompt, error) {
	var prompt models.Prompt
	if err := ss.DB.First(&prompt, promptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("prompt not found")
		}
		return nil, err
	}
	if !prompt.Public {
		return nil, models.NewNotFoundError("prompt not found")
	}

	status := OwnerStatus(ss.DB, prompt.UserID, prompt.TeamID)
	if decision := CanMakePromptPublic(status); !decision.Allowed {
		// Stale flag from a lapsed subscription: treat as private
		return nil, models.NewNotFoundError("prompt not found")
	}
	return &prompt, nil
}

// RevokeLapsedPublicFlags forces public=false on every prompt whose owner is
// no longer entitled to share. Called from the billing webhook on downgrade
// and periodically from the entitlement worker. Returns how many prompts
// were made private.
func (ss *SharingService) RevokeLapsedPublicFlags() (int64, error) {
	var revoked int64

	err := ss.DB.Transaction(func(tx *gorm.DB) error {
		// Personal prompts of lapsed users
		personal := tx.Model(&models.Prompt{}).
			Where("public = ? AND team_id IS NULL", true).
			Where("user_id IN (?)", tx.Model(&models.User{}).Select("id").
				Where("subscription_status <> ?", models.SubscriptionActive)).
			Update("public", false)
		if personal.Error != nil {
			return personal.Error
		}
		revoked += personal.RowsAffected

		// Team prompts of lapsed teams
		team := tx.Model(&models.Prompt{}).
			Where("public = ? AND team_id IS NOT NULL", true).
			Where("team_id IN (?)", tx.Model(&models.Team{}).Select("id").
				Where("subscription_status <> ?", models.SubscriptionActive)).
			Update("public", false)
		if team.Error != nil {
			return team.Error
		}
		revoked += team.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	if revoked > 0 && ss.Logger != nil {
		ss.Logger.WithField("count", revoked).Info("revoked public flags for lapsed subscriptions")
	}
	return revoked, nil
}
