package models

import (
	"time"

	"gorm.io/gorm"
)

// Team roles. MEMBER < ADMIN for authorization purposes.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Team represents a workspace that owns shared prompts, categories, and
// chains. Teams carry their own subscription, independent of their members'.
type Team struct {
	gorm.Model
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`
	Name string `gorm:"not null" json:"name"`

	// Subscription state, kept current by the billing webhook
	SubscriptionStatus string  `gorm:"default:'free'" json:"subscription_status"`
	StripeCustomerID   *string `gorm:"index" json:"stripe_customer_id,omitempty"`

	// Relations
	Members     []TeamMember     `gorm:"foreignKey:TeamID" json:"members,omitempty"`
	Invitations []TeamInvitation `gorm:"foreignKey:TeamID" json:"invitations,omitempty"`
	Prompts     []Prompt         `gorm:"foreignKey:TeamID" json:"prompts,omitempty"`
	Categories  []Category       `gorm:"foreignKey:TeamID" json:"categories,omitempty"`
	Chains      []Chain          `gorm:"foreignKey:TeamID" json:"chains,omitempty"`
}

// HasActiveSubscription reports whether the team is on a paid, current plan.
func (t *Team) HasActiveSubscription() bool {
	return t.SubscriptionStatus == SubscriptionActive
}

// TeamMember links a user to a team with a role. One row per (team, user).
type TeamMember struct {
	gorm.Model
	TeamID uint   `gorm:"not null;uniqueIndex:idx_team_user" json:"team_id"`
	UserID uint   `gorm:"not null;uniqueIndex:idx_team_user" json:"user_id"`
	Role   string `gorm:"default:'member'" json:"role"` // admin, member

	// Relations
	Team Team `json:"-"`
	User User `json:"-"`
}

// TeamInvitation is a single-use, expiring invite to join a team. It is
// pending iff AcceptedAt is null and ExpiresAt is in the future; accepting it
// stamps AcceptedAt and creates the TeamMember row in the same transaction.
type TeamInvitation struct {
	gorm.Model
	Token       string     `gorm:"uniqueIndex;not null" json:"-"`
	TeamID      uint       `gorm:"not null;index" json:"team_id"`
	Email       string     `gorm:"not null;index" json:"email"`
	Role        string     `gorm:"default:'member'" json:"role"`
	InvitedByID uint       `gorm:"not null" json:"invited_by_id"`
	ExpiresAt   time.Time  `gorm:"not null" json:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at"`

	// Relations
	Team      Team `json:"-"`
	InvitedBy User `gorm:"foreignKey:InvitedByID" json:"-"`
}

// IsPending reports whether the invitation can still be accepted.
func (i *TeamInvitation) IsPending(now time.Time) bool {
	return i.AcceptedAt == nil && i.ExpiresAt.After(now)
}

// IsExpired reports whether the invitation lapsed before being accepted.
func (i *TeamInvitation) IsExpired(now time.Time) bool {
	return i.AcceptedAt == nil && !i.ExpiresAt.After(now)
}
