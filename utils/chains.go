package utils

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"promptforge/models"
)

// ChainService maintains chain membership and its dense ordering invariant:
// after any mutation the positions of a chain's members are exactly 0..n-1.
// Every mutation runs in a single transaction so readers never observe a
// gapped or duplicated sequence, and every membership or order change clears
// the cached evaluation score.
type ChainService struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewChainService(db *gorm.DB, logger *logrus.Logger) *ChainService {
	return &ChainService{DB: db, Logger: logger}
}

// CreateChain creates a chain with the given prompts in the given order. The
// member list must be non-empty and every prompt id must belong to the
// chain's owner scope (the user's personal space, or the team).
func (cs *ChainService) CreateChain(userID uint, teamID *uint, name, description string, promptIDs []uint) (*models.Chain, error) {
	if len(promptIDs) == 0 {
		return nil, models.NewInvalidReferenceError("a chain needs at least one prompt")
	}

	chain := &models.Chain{
		UserID:      userID,
		TeamID:      teamID,
		Name:        name,
		Description: description,
	}

	err := cs.DB.Transaction(func(tx *gorm.DB) error {
		if err := validatePromptScope(tx, userID, teamID, promptIDs); err != nil {
			return err
		}
		if err := tx.Create(chain).Error; err != nil {
			return err
		}
		return insertMembers(tx, chain.ID, promptIDs)
	})
	if err != nil {
		return nil, err
	}

	if cs.Logger != nil {
		cs.Logger.WithFields(logrus.Fields{
			"chain_id": chain.ID,
			"prompts":  len(promptIDs),
		}).Info("chain created")
	}
	return chain, nil
}

// ReplaceMembers swaps the chain's member list wholesale. Validation happens
// before any row is touched; on any invalid id nothing is mutated.
func (cs *ChainService) ReplaceMembers(chain *models.Chain, promptIDs []uint) error {
	if len(promptIDs) == 0 {
		return models.NewInvalidReferenceError("a chain needs at least one prompt")
	}

	return cs.DB.Transaction(func(tx *gorm.DB) error {
		if err := validatePromptScope(tx, chain.UserID, chain.TeamID, promptIDs); err != nil {
			return err
		}
		if err := tx.Unscoped().Where("chain_id = ?", chain.ID).Delete(&models.ChainPrompt{}).Error; err != nil {
			return err
		}
		if err := insertMembers(tx, chain.ID, promptIDs); err != nil {
			return err
		}
		return clearScore(tx, chain)
	})
}

// Reorder moves the member at fromIndex to toIndex, shifting the others and
// renumbering so positions stay dense.
func (cs *ChainService) Reorder(chain *models.Chain, fromIndex, toIndex int) error {
	return cs.DB.Transaction(func(tx *gorm.DB) error {
		members, err := loadMembers(tx, chain.ID)
		if err != nil {
			return err
		}
		n := len(members)
		if fromIndex < 0 || fromIndex >= n || toIndex < 0 || toIndex >= n {
			return models.NewInvalidReferenceError("reorder index out of range")
		}
		if fromIndex == toIndex {
			return nil
		}

		moved := members[fromIndex]
		members = append(members[:fromIndex], members[fromIndex+1:]...)
		members = append(members[:toIndex], append([]models.ChainPrompt{moved}, members[toIndex:]...)...)

		if err := renumber(tx, members); err != nil {
			return err
		}
		return clearScore(tx, chain)
	})
}

// Insert adds a prompt at the given index, clamped into [0, n].
func (cs *ChainService) Insert(chain *models.Chain, promptID uint, atIndex int) error {
	return cs.DB.Transaction(func(tx *gorm.DB) error {
		if err := validatePromptScope(tx, chain.UserID, chain.TeamID, []uint{promptID}); err != nil {
			return err
		}
		members, err := loadMembers(tx, chain.ID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.PromptID == promptID {
				return models.NewConflictError("prompt is already part of this chain")
			}
		}
		if atIndex < 0 {
			atIndex = 0
		}
		if atIndex > len(members) {
			atIndex = len(members)
		}

		added := models.ChainPrompt{ChainID: chain.ID, PromptID: promptID, Position: atIndex}
		if err := tx.Create(&added).Error; err != nil {
			return err
		}

		members = append(members[:atIndex], append([]models.ChainPrompt{added}, members[atIndex:]...)...)
		if err := renumber(tx, members); err != nil {
			return err
		}
		return clearScore(tx, chain)
	})
}

// Remove deletes a prompt from the chain and renumbers the remainder. A
// chain may end up empty through removal; only creation requires a step.
func (cs *ChainService) Remove(chain *models.Chain, promptID uint) error {
	return cs.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Where("chain_id = ? AND prompt_id = ?", chain.ID, promptID).Delete(&models.ChainPrompt{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("prompt is not part of this chain")
		}
		members, err := loadMembers(tx, chain.ID)
		if err != nil {
			return err
		}
		if err := renumber(tx, members); err != nil {
			return err
		}
		return clearScore(tx, chain)
	})
}

// DetachPrompt removes the prompt from every chain that contains it,
// renumbering each affected chain and clearing its cached score. Runs in the
// caller's transaction so prompt deletion and chain cleanup commit together.
func (cs *ChainService) DetachPrompt(tx *gorm.DB, promptID uint) error {
	var chainIDs []uint
	if err := tx.Model(&models.ChainPrompt{}).
		Where("prompt_id = ?", promptID).
		Distinct().Pluck("chain_id", &chainIDs).Error; err != nil {
		return err
	}
	if len(chainIDs) == 0 {
		return nil
	}

	if err := tx.Unscoped().Where("prompt_id = ?", promptID).Delete(&models.ChainPrompt{}).Error; err != nil {
		return err
	}
	for _, chainID := range chainIDs {
		members, err := loadMembers(tx, chainID)
		if err != nil {
			return err
		}
		if err := renumber(tx, members); err != nil {
			return err
		}
		if err := tx.Model(&models.Chain{}).Where("id = ?", chainID).Updates(map[string]interface{}{
			"chain_score":       nil,
			"last_evaluated_at": nil,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

// Members returns the chain's prompts in position order.
func (cs *ChainService) Members(chainID uint) ([]models.ChainPrompt, error) {
	return loadMembers(cs.DB, chainID)
}

// SaveEvaluation persists a completed evaluation result. Nothing is written
// on evaluation failure; the previous score stays intact.
func (cs *ChainService) SaveEvaluation(chain *models.Chain, score float64) error {
	now := time.Now()
	return cs.DB.Model(chain).Updates(map[string]interface{}{
		"chain_score":       score,
		"last_evaluated_at": now,
	}).Error
}

func loadMembers(db *gorm.DB, chainID uint) ([]models.ChainPrompt, error) {
	var members []models.ChainPrompt
	err := db.Where("chain_id = ?", chainID).Order("position ASC").Find(&members).Error
	return members, err
}

func insertMembers(tx *gorm.DB, chainID uint, promptIDs []uint) error {
	for i, promptID := range promptIDs {
		member := models.ChainPrompt{
			ChainID:  chainID,
			PromptID: promptID,
			Position: i,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
	}
	return nil
}

func renumber(tx *gorm.DB, ordered []models.ChainPrompt) error {
	for i, m := range ordered {
		if m.Position == i {
			continue
		}
		if err := tx.Model(&models.ChainPrompt{}).Where("id = ?", m.ID).Update("position", i).Error; err != nil {
			return err
		}
	}
	return nil
}

func clearScore(tx *gorm.DB, chain *models.Chain) error {
	return tx.Model(chain).Updates(map[string]interface{}{
		"chain_score":       nil,
		"last_evaluated_at": nil,
	}).Error
}

// validatePromptScope checks that every id refers to a prompt inside the
// owner scope: personal prompts of userID when teamID is nil, otherwise
// prompts of that team. Duplicate ids are rejected too.
func validatePromptScope(tx *gorm.DB, userID uint, teamID *uint, promptIDs []uint) error {
	seen := make(map[uint]struct{}, len(promptIDs))
	for _, id := range promptIDs {
		if _, dup := seen[id]; dup {
			return models.NewInvalidReferenceError("duplicate prompt in chain")
		}
		seen[id] = struct{}{}
	}

	query := tx.Model(&models.Prompt{}).Where("id IN ?", promptIDs)
	if teamID == nil {
		query = query.Where("user_id = ? AND team_id IS NULL", userID)
	} else {
		query = query.Where("team_id = ?", *teamID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count != int64(len(promptIDs)) {
		return models.NewInvalidReferenceError("one or more prompts do not exist in this workspace")
	}
	return nil
}
