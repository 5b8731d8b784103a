package models

import (
	"gorm.io/gorm"
)

// Subscription statuses as reported by the billing provider. Anything we do
// not recognise is treated as free tier, fail-closed.
const (
	SubscriptionFree     = "free"
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// User represents a user account in the system. Authentication is handled by
// the external auth service; we only consume its tokens.
type User struct {
	gorm.Model

	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`

	// Profile information
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Timezone  string  `gorm:"default:'UTC'" json:"timezone"`

	// Account status
	IsActive     bool `gorm:"default:true" json:"is_active"`
	TokenVersion int  `gorm:"default:0" json:"-"`

	// Subscription state, kept current by the billing webhook
	PlanName           string `gorm:"default:'free'" json:"plan_name"` // free, pro
	SubscriptionStatus string `gorm:"default:'free'" json:"subscription_status"`

	// Stripe integration
	StripeCustomerID     *string `gorm:"index" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string `json:"stripe_subscription_id,omitempty"`

	// Relations
	Prompts    []Prompt   `gorm:"foreignKey:UserID" json:"prompts,omitempty"`
	Categories []Category `gorm:"foreignKey:UserID" json:"categories,omitempty"`
	Chains     []Chain    `gorm:"foreignKey:UserID" json:"chains,omitempty"`
}

// Plan represents a subscription tier and the limits it carries.
type Plan struct {
	gorm.Model
	Name        string `gorm:"not null;uniqueIndex" json:"name"` // free, pro
	Description string `json:"description"`

	// Limits (0 means unlimited)
	MaxPrompts     int `gorm:"default:5" json:"max_prompts"`
	MaxTeamPrompts int `gorm:"default:10" json:"max_team_prompts"`
	MaxTeamMembers int `gorm:"default:3" json:"max_team_members"`

	// Features
	CanCreateTeams bool `gorm:"default:false" json:"can_create_teams"`
	CanPublish     bool `gorm:"default:false" json:"can_publish"`

	// For display purposes
	Price        int    `gorm:"default:0" json:"price"` // in cents, per month
	DisplayPrice string `gorm:"-" json:"display_price"` // e.g. "$12"
	IsPopular    bool   `gorm:"default:false" json:"is_popular"`

	StripePriceID   string `json:"stripe_price_id"`
	BillingInterval string `json:"billing_interval" gorm:"default:'monthly'"`
}

// CreateDefaultPlans seeds the plan table during migration.
func CreateDefaultPlans(db *gorm.DB) error {
	defaultPlans := []Plan{
		{
			Name:           "free",
			Description:    "Free plan with up to 5 personal prompts",
			MaxPrompts:     5,
			MaxTeamPrompts: 10,
			MaxTeamMembers: 3,
		},
		{
			Name:           "pro",
			Description:    "Pro plan with unlimited prompts, teams, and public sharing",
			MaxPrompts:     0,
			MaxTeamPrompts: 0,
			MaxTeamMembers: 0,
			CanCreateTeams: true,
			CanPublish:     true,
			Price:          1200, // $12
			DisplayPrice:   "$12",
			IsPopular:      true,
		},
	}
	for _, plan := range defaultPlans {
		if err := db.FirstOrCreate(&plan, "name = ?", plan.Name).Error; err != nil {
			return err
		}
	}
	return nil
}

// HasActiveSubscription reports whether the user is on a paid, current plan.
func (u *User) HasActiveSubscription() bool {
	return u.SubscriptionStatus == SubscriptionActive
}
