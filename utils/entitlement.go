package utils

import "promptforge/models"

// Free-tier limits. Active subscriptions are unlimited.
const (
	FreePromptLimit     = 5
	FreeTeamPromptLimit = 10
	FreeMemberLimit     = 3
)

// Decision is the result of an entitlement check. Reason is user-facing and
// only set when the action is denied.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// isActiveStatus treats any status other than the literal "active" as free
// tier. Unknown or empty statuses fail closed.
func isActiveStatus(status string) bool {
	return status == models.SubscriptionActive
}

// CanCreatePrompt decides whether a user may create another personal prompt.
// The caller must read currentCount inside the same transaction as the
// subsequent create, or the check is racy.
func CanCreatePrompt(ownerStatus string, currentCount int64) Decision {
	if isActiveStatus(ownerStatus) {
		return allow()
	}
	if currentCount < FreePromptLimit {
		return allow()
	}
	return deny("free plan is limited to 5 prompts, upgrade to Pro for unlimited prompts")
}

// CanCreateTeamPrompt decides whether a team may hold another prompt.
func CanCreateTeamPrompt(teamStatus string, currentCount int64) Decision {
	if isActiveStatus(teamStatus) {
		return allow()
	}
	if currentCount < FreeTeamPromptLimit {
		return allow()
	}
	return deny("free teams are limited to 10 prompts, upgrade to Pro for unlimited prompts")
}

// CanAddTeamMember decides whether a team may take another member. The count
// should include pending invitations so invites cannot oversubscribe a team.
func CanAddTeamMember(teamStatus string, currentCount int64) Decision {
	if isActiveStatus(teamStatus) {
		return allow()
	}
	if currentCount < FreeMemberLimit {
		return allow()
	}
	return deny("free teams are limited to 3 members, upgrade to Pro to add more")
}

// CanCreateTeam decides whether a user may create a team at all.
func CanCreateTeam(userStatus string) Decision {
	if isActiveStatus(userStatus) {
		return allow()
	}
	return deny("creating teams requires a Pro subscription")
}

// CanMakePromptPublic decides whether a prompt owner may share it publicly.
// Violations are rejected with an explicit error, never silently coerced.
func CanMakePromptPublic(ownerStatus string) Decision {
	if isActiveStatus(ownerStatus) {
		return allow()
	}
	return deny("public sharing requires a Pro subscription")
}
