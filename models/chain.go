package models

import (
	"time"

	"gorm.io/gorm"
)

// Chain is an ordered multi-step prompt workflow. Owned by a user or a team,
// mirroring Prompt. ChainScore and LastEvaluatedAt cache the most recent AI
// evaluation and are cleared whenever membership or order changes.
type Chain struct {
	gorm.Model
	UserID uint  `gorm:"not null;index" json:"user_id"`
	TeamID *uint `gorm:"index" json:"team_id,omitempty"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	ChainScore      *float64   `json:"chain_score,omitempty"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty"`

	// Relations
	Prompts []ChainPrompt `gorm:"foreignKey:ChainID" json:"prompts,omitempty"`
}

// IsPersonal reports whether the chain lives in a user's personal space.
func (c *Chain) IsPersonal() bool {
	return c.TeamID == nil
}

// ChainPrompt links a prompt into a chain at a position. Positions within a
// chain are always dense: exactly 0..n-1 with no gaps or duplicates. Every
// mutation that touches membership renumbers inside one transaction so
// readers never observe a gapped or duplicated sequence.
type ChainPrompt struct {
	gorm.Model
	ChainID  uint `gorm:"not null;uniqueIndex:idx_chain_prompt" json:"chain_id"`
	PromptID uint `gorm:"not null;uniqueIndex:idx_chain_prompt" json:"prompt_id"`
	Position int  `gorm:"not null;index" json:"position"`

	// Relations
	Chain  Chain  `json:"-"`
	Prompt Prompt `json:"-"`
}
