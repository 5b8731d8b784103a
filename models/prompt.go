package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Prompt is a structured prompt template following the ten-section
// methodology. A prompt is personal when TeamID is nil and team-owned
// otherwise; UserID always records the creator.
type Prompt struct {
	gorm.Model
	UserID uint  `gorm:"not null;index" json:"user_id"`
	TeamID *uint `gorm:"index" json:"team_id,omitempty"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// The ten methodology sections
	TaskContext              string `gorm:"type:text" json:"task_context"`
	ToneContext              string `gorm:"type:text" json:"tone_context"`
	BackgroundData           string `gorm:"type:text" json:"background_data"`
	DetailedTaskInstructions string `gorm:"type:text" json:"detailed_task_instructions"`
	Examples                 string `gorm:"type:text" json:"examples"`
	ConversationHistory      string `gorm:"type:text" json:"conversation_history"`
	ImmediateTask            string `gorm:"type:text" json:"immediate_task"`
	ThinkingSteps            string `gorm:"type:text" json:"thinking_steps"`
	OutputFormatting         string `gorm:"type:text" json:"output_formatting"`
	PrefilledResponse        string `gorm:"type:text" json:"prefilled_response"`

	// Sharing. Only valid while the owner's subscription is active; the
	// sharing gate re-validates on every public read.
	Public bool `gorm:"default:false" json:"public"`

	// Cached AI scoring results
	Score        *float64   `json:"score,omitempty"`
	LastScoredAt *time.Time `json:"last_scored_at,omitempty"`

	// Relations
	Categories []Category `gorm:"many2many:prompt_categories" json:"categories,omitempty"`
}

// SectionNames lists the ten sections in methodology order.
var SectionNames = []string{
	"Task Context",
	"Tone Context",
	"Background Data",
	"Detailed Task Instructions",
	"Examples",
	"Conversation History",
	"Immediate Task",
	"Thinking Steps",
	"Output Formatting",
	"Prefilled Response",
}

// Sections returns the section bodies in methodology order, parallel to
// SectionNames.
func (p *Prompt) Sections() []string {
	return []string{
		p.TaskContext,
		p.ToneContext,
		p.BackgroundData,
		p.DetailedTaskInstructions,
		p.Examples,
		p.ConversationHistory,
		p.ImmediateTask,
		p.ThinkingSteps,
		p.OutputFormatting,
		p.PrefilledResponse,
	}
}

// Render flattens the prompt into labelled text for the AI scorer. Empty
// sections are skipped.
func (p *Prompt) Render() string {
	var b strings.Builder
	sections := p.Sections()
	for i, name := range SectionNames {
		body := strings.TrimSpace(sections[i])
		if body == "" {
			continue
		}
		b.WriteString("## ")
		b.WriteString(name)
		b.WriteString("\n")
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// IsPersonal reports whether the prompt lives in a user's personal space.
func (p *Prompt) IsPersonal() bool {
	return p.TeamID == nil
}

// Category groups prompts. Owned by a user or a team, mirroring Prompt.
type Category struct {
	gorm.Model
	UserID uint  `gorm:"not null;index" json:"user_id"`
	TeamID *uint `gorm:"index" json:"team_id,omitempty"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Color       string `gorm:"default:'#6366f1'" json:"color"`

	// Relations
	Prompts []Prompt `gorm:"many2many:prompt_categories" json:"prompts,omitempty"`
}

// PromptCategory is the prompt/category join table.
type PromptCategory struct {
	PromptID   uint `gorm:"primaryKey" json:"prompt_id"`
	CategoryID uint `gorm:"primaryKey" json:"category_id"`
}
