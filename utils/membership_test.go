package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"promptforge/models"
)

func countMembers(t *testing.T, db *gorm.DB, teamID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.TeamMember{}).Where("team_id = ?", teamID).Count(&count).Error)
	return count
}

func TestRolePredicates(t *testing.T) {
	db := newTestDB(t)
	ms := NewMembershipService(db, nil)
	admin := createUser(t, db, models.SubscriptionActive)
	member := createUser(t, db, models.SubscriptionFree)
	outsider := createUser(t, db, models.SubscriptionFree)
	team := createTeam(t, db, models.SubscriptionActive, admin.ID)
	require.NoError(t, db.Create(&models.TeamMember{TeamID: team.ID, UserID: member.ID, Role: models.RoleMember}).Error)

	assert.True(t, ms.IsAdmin(admin.ID, team.ID))
	assert.True(t, ms.IsMember(admin.ID, team.ID))
	assert.False(t, ms.IsAdmin(member.ID, team.ID))
	assert.True(t, ms.IsMember(member.ID, team.ID))
	assert.False(t, ms.IsMember(outsider.ID, team.ID))

	assert.NoError(t, ms.RequireRole(admin.ID, team.ID, models.RoleAdmin))
	assert.NoError(t, ms.RequireRole(member.ID, team.ID, models.RoleMember))

	err := ms.RequireRole(member.ID, team.ID, models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, models.ErrForbidden, models.AsAppError(err).Kind)

	err = ms.RequireRole(outsider.ID, team.ID, models.RoleMember)
	require.Error(t, err)
	assert.Equal(t, models.ErrForbidden, models.AsAppError(err).Kind)
}

func TestAcceptInvitationCreatesMembership(t *testing.T) {
	db := newTestDB(t)
	ms := NewMembershipService(db, nil)
	admin := createUser(t, db, models.SubscriptionActive)
	invitee := createUser(t, db, models.SubscriptionFree)
	team := createTeam(t, db, models.SubscriptionActive, admin.ID)

	invitation, err := ms.CreateInvitation(team.ID, invitee.Email, models.RoleMember, admin.ID, 72*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, invitation.Token)

	member, err := ms.AcceptInvitation(invitation.Token, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, team.ID, member.TeamID)
	assert.Equal(t, invitee.ID, member.UserID)
	assert.Equal(t, models.RoleMember, member.Role)

	var stored models.TeamInvitation
	require.NoError(t, db.First(&stored, invitation.ID).Error)
	assert.NotNil(t, stored.AcceptedAt)
}

func TestAcceptInvitationIsSingleUse(t *testing.T) {
	db := newTestDB(t)
	ms := NewMembershipService(db, nil)
	admin := createUser(t, db, models.SubscriptionActive)
	invitee := createUser(t, db, models.SubscriptionFree)
	team := createTeam(t, db, models.SubscriptionActive, admin.ID)

	invitation, err := ms.CreateInvitation(team.ID, invitee.Email, models.RoleMember, admin.ID, 72*time.Hour)
	require.NoError(t, err)

	_, err = ms.AcceptInvitation(invitation.Token, invitee.ID)
	require.NoError(t, err)
	before := countMembers(t, db, team.ID)

	_, err = ms.AcceptInvitation(invitation.Token, invitee.ID)
	require.Error(t, err)
	assert.Equal(t, models.ErrAlreadyAccepted, models.AsAppError(err).Kind)
	assert.Equal(t, before, countMembers(t, db, team.ID), "a replayed token must not change membership")
}

func TestAcceptExpiredInvitation(t *testing.T) {
	db := newTestDB(t)
	ms := NewMembershipService(db, nil)
	admin := createUser(t, db, models.SubscriptionActive)
	invitee := createUser(t, db, models.SubscriptionFree)
	team := createTeam(t, db, models.SubscriptionActive, admin.ID)

	invitation, err := ms.CreateInvitation(team.ID, invitee.Email, models.RoleMember, admin.ID, 72*time.Hour)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.TeamInvitation{}).Where("id = ?", invitation.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err = ms.AcceptInvitation(invitation.Token, invitee.ID)
	require.Error(t, err)
	assert.Equal(t, models.ErrExpired, models.AsAppError(err).Kind)
	assert.Equal(t, int64(1), countMembers(t, db, team.ID))
}

func TestAcceptUnknownToken(t *testing.T) {
	db := newTestDB(t)
	ms := NewMembershipService(db, nil)
	user := createUser(t, db, models.SubscriptionFree)

	_, err := ms.AcceptInvitation("no-such-token", user.ID)
	require.Error(t, err)
	assert.Equal(t, models.ErrNotFound, models.AsAppError(err).Kind)
}

func TestCreateInvitationRejectsDuplicatePending(t *testing.T) {
	db := newTestDB(t)
	ms := NewMembershipService(db, nil)
	admin := createUser(t, db, models.SubscriptionActive)
	team := createTeam(t, db, models.SubscriptionActive, admin.ID)

	_, err := ms.CreateInvitation(team.ID, "new@example.com", models.RoleMember, admin.ID, 72*time.Hour)
	require.NoError(t, err)

	_, err = ms.CreateInvitation(team.ID, "new@example.com", models.RoleMember, admin.ID, 72*time.Hour)
	require.Error(t, err)
	assert.Equal(t, models.ErrConflict, models.AsAppError(err).Kind)
}

func TestCreateInvitationCountsPendingAgainstLimit(t *testing.T) {
	db := newTestDB(t)
	ms := NewMembershipService(db, nil)
	admin := createUser(t, db, models.SubscriptionActive)
	team := createTeam(t, db, models.SubscriptionFree, admin.ID)

	// One admin plus two pending invitations hits the free member cap.
	_, err := ms.CreateInvitation(team.ID, "a@example.com", models.RoleMember, admin.ID, 72*time.Hour)
	require.NoError(t, err)
	_, err = ms.CreateInvitation(team.ID, "b@example.com", models.RoleMember, admin.ID, 72*time.Hour)
	require.NoError(t, err)

	_, err = ms.CreateInvitation(team.ID, "c@example.com", models.RoleMember, admin.ID, 72*time.Hour)
	require.Error(t, err)
	assert.Equal(t, models.ErrForbidden, models.AsAppError(err).Kind)
}

func TestCreateInvitationRejectsBadEmail(t *testing.T) {
	db := newTestDB(t)
	ms := NewMembershipService(db, nil)
	admin := createUser(t, db, models.SubscriptionActive)
	team := createTeam(t, db, models.SubscriptionActive, admin.ID)

	_, err := ms.CreateInvitation(team.ID, "not-an-email", models.RoleMember, admin.ID, 72*time.Hour)
	require.Error(t, err)
	assert.Equal(t, models.ErrInvalidReference, models.AsAppError(err).Kind)
}

func TestCancelInvitation(t *testing.T) {
	db := newTestDB(t)
	ms := NewMembershipService(db, nil)
	admin := createUser(t, db, models.SubscriptionActive)
	invitee := createUser(t, db, models.SubscriptionFree)
	team := createTeam(t, db, models.SubscriptionActive, admin.ID)

	invitation, err := ms.CreateInvitation(team.ID, invitee.Email, models.RoleMember, admin.ID, 72*time.Hour)
	require.NoError(t, err)
	require.NoError(t, ms.CancelInvitation(invitation.ID, team.ID))

	_, err = ms.AcceptInvitation(invitation.Token, invitee.ID)
	require.Error(t, err)
	assert.Equal(t, models.ErrNotFound, models.AsAppError(err).Kind)

	// Accepted invitations are terminal.
	second, err := ms.CreateInvitation(team.ID, invitee.Email, models.RoleMember, admin.ID, 72*time.Hour)
	require.NoError(t, err)
	_, err = ms.AcceptInvitation(second.Token, invitee.ID)
	require.NoError(t, err)
	err = ms.CancelInvitation(second.ID, team.ID)
	require.Error(t, err)
	assert.Equal(t, models.ErrAlreadyAccepted, models.AsAppError(err).Kind)
}

func TestLastAdminIsProtected(t *testing.T) {
	db := newTestDB(t)
	ms := NewMembershipService(db, nil)
	admin := createUser(t, db, models.SubscriptionActive)
	member := createUser(t, db, models.SubscriptionFree)
	team := createTeam(t, db, models.SubscriptionActive, admin.ID)
	require.NoError(t, db.Create(&models.TeamMember{TeamID: team.ID, UserID: member.ID, Role: models.RoleMember}).Error)

	err := ms.UpdateRole(team.ID, admin.ID, models.RoleMember)
	require.Error(t, err)
	assert.Equal(t, models.ErrConflict, models.AsAppError(err).Kind)

	err = ms.RemoveMember(team.ID, admin.ID)
	require.Error(t, err)
	assert.Equal(t, models.ErrConflict, models.AsAppError(err).Kind)

	// With a second admin both operations go through.
	require.NoError(t, ms.UpdateRole(team.ID, member.ID, models.RoleAdmin))
	require.NoError(t, ms.RemoveMember(team.ID, admin.ID))
	assert.Equal(t, int64(1), countMembers(t, db, team.ID))
}

func TestRemovedMemberCanRejoin(t *testing.T) {
	db := newTestDB(t)
	ms := NewMembershipService(db, nil)
	admin := createUser(t, db, models.SubscriptionActive)
	member := createUser(t, db, models.SubscriptionFree)
	team := createTeam(t, db, models.SubscriptionActive, admin.ID)
	require.NoError(t, db.Create(&models.TeamMember{TeamID: team.ID, UserID: member.ID, Role: models.RoleMember}).Error)

	require.NoError(t, ms.RemoveMember(team.ID, member.ID))
	assert.False(t, ms.IsMember(member.ID, team.ID))

	invitation, err := ms.CreateInvitation(team.ID, member.Email, models.RoleMember, admin.ID, 72*time.Hour)
	require.NoError(t, err)
	_, err = ms.AcceptInvitation(invitation.Token, member.ID)
	require.NoError(t, err)
	assert.True(t, ms.IsMember(member.ID, team.ID))
}
