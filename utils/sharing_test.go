package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptforge/models"
)

func TestSetPublicRequiresActiveSubscription(t *testing.T) {
	db := newTestDB(t)
	ss := NewSharingService(db, nil)
	freeUser := createUser(t, db, models.SubscriptionFree)
	prompt := createPrompt(t, db, freeUser.ID, nil, "wannabe public")

	err := ss.SetPublic(prompt, true)
	require.Error(t, err)
	assert.Equal(t, models.ErrForbidden, models.AsAppError(err).Kind)

	var stored models.Prompt
	require.NoError(t, db.First(&stored, prompt.ID).Error)
	assert.False(t, stored.Public, "a rejected request must not persist the flag")
}

func TestSetPublicForActiveOwner(t *testing.T) {
	db := newTestDB(t)
	ss := NewSharingService(db, nil)
	proUser := createUser(t, db, models.SubscriptionActive)
	prompt := createPrompt(t, db, proUser.ID, nil, "shared")

	require.NoError(t, ss.SetPublic(prompt, true))
	var stored models.Prompt
	require.NoError(t, db.First(&stored, prompt.ID).Error)
	assert.True(t, stored.Public)

	// Turning it off needs no entitlement.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", proUser.ID).
		Update("subscription_status", models.SubscriptionCanceled).Error)
	require.NoError(t, ss.SetPublic(&stored, false))
}

func TestTeamPromptPublicGovernedByTeamStatus(t *testing.T) {
	db := newTestDB(t)
	ss := NewSharingService(db, nil)
	proUser := createUser(t, db, models.SubscriptionActive)
	freeTeam := createTeam(t, db, models.SubscriptionFree, proUser.ID)
	prompt := createPrompt(t, db, proUser.ID, &freeTeam.ID, "team doc")

	// The creator's own Pro plan does not carry over to a free team.
	err := ss.SetPublic(prompt, true)
	require.Error(t, err)
	assert.Equal(t, models.ErrForbidden, models.AsAppError(err).Kind)
}

func TestResolvePublicPrompt(t *testing.T) {
	db := newTestDB(t)
	ss := NewSharingService(db, nil)
	proUser := createUser(t, db, models.SubscriptionActive)
	prompt := createPrompt(t, db, proUser.ID, nil, "published")
	require.NoError(t, ss.SetPublic(prompt, true))

	resolved, err := ss.ResolvePublicPrompt(prompt.ID)
	require.NoError(t, err)
	assert.Equal(t, prompt.ID, resolved.ID)

	private := createPrompt(t, db, proUser.ID, nil, "private")
	_, err = ss.ResolvePublicPrompt(private.ID)
	require.Error(t, err)
	assert.Equal(t, models.ErrNotFound, models.AsAppError(err).Kind)

	_, err = ss.ResolvePublicPrompt(999999)
	require.Error(t, err)
	assert.Equal(t, models.ErrNotFound, models.AsAppError(err).Kind)
}

func TestResolvePublicPromptReValidatesOwner(t *testing.T) {
	db := newTestDB(t)
	ss := NewSharingService(db, nil)
	owner := createUser(t, db, models.SubscriptionActive)
	prompt := createPrompt(t, db, owner.ID, nil, "published")
	require.NoError(t, ss.SetPublic(prompt, true))

	// Downgrade without revocation: the stale flag must not grant access,
	// and a lapsed prompt is indistinguishable from a missing one.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", owner.ID).
		Update("subscription_status", models.SubscriptionPastDue).Error)

	_, err := ss.ResolvePublicPrompt(prompt.ID)
	require.Error(t, err)
	assert.Equal(t, models.ErrNotFound, models.AsAppError(err).Kind)
}

func TestRevokeLapsedPublicFlags(t *testing.T) {
	db := newTestDB(t)
	ss := NewSharingService(db, nil)

	lapsed := createUser(t, db, models.SubscriptionActive)
	active := createUser(t, db, models.SubscriptionActive)
	lapsedTeam := createTeam(t, db, models.SubscriptionActive, lapsed.ID)

	personal := createPrompt(t, db, lapsed.ID, nil, "lapsed personal")
	keep := createPrompt(t, db, active.ID, nil, "still entitled")
	teamOwned := createPrompt(t, db, lapsed.ID, &lapsedTeam.ID, "lapsed team")
	for _, p := range []*models.Prompt{personal, keep, teamOwned} {
		require.NoError(t, ss.SetPublic(p, true))
	}

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", lapsed.ID).
		Update("subscription_status", models.SubscriptionCanceled).Error)
	require.NoError(t, db.Model(&models.Team{}).Where("id = ?", lapsedTeam.ID).
		Update("subscription_status", models.SubscriptionPastDue).Error)

	revoked, err := ss.RevokeLapsedPublicFlags()
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	var check models.Prompt
	require.NoError(t, db.First(&check, personal.ID).Error)
	assert.False(t, check.Public)
	check = models.Prompt{}
	require.NoError(t, db.First(&check, teamOwned.ID).Error)
	assert.False(t, check.Public)
	check = models.Prompt{}
	require.NoError(t, db.First(&check, keep.ID).Error)
	assert.True(t, check.Public, "entitled owners keep their public prompts")

	// Idempotent: a second sweep finds nothing.
	revoked, err = ss.RevokeLapsedPublicFlags()
	require.NoError(t, err)
	assert.Zero(t, revoked)
}
