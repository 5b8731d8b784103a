package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptforge/config"
	"promptforge/models"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(32)
	require.NoError(t, err)
	b, err := GenerateToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 64) // hex doubles the byte count
	assert.NotEqual(t, a, b)
}

func TestValidateEmailAddress(t *testing.T) {
	assert.NoError(t, ValidateEmailAddress("person@example.com"))
	assert.Error(t, ValidateEmailAddress("not-an-email"))
	assert.Error(t, ValidateEmailAddress(""))
}

func TestValidateStructMessages(t *testing.T) {
	type input struct {
		Name string `validate:"required,max=10"`
		Role string `validate:"required,oneof=admin member"`
	}

	assert.NoError(t, ValidateStruct(input{Name: "ok", Role: "admin"}))

	err := ValidateStruct(input{Role: "owner"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "role must be one of: admin member")
}

func TestJWTRoundTrip(t *testing.T) {
	config.AppConfig.AuthTokenSecret = "test-secret"

	user := &models.User{TokenVersion: 3}
	user.ID = 42

	token, err := SignJWTToken(user, time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWTToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, 3, claims.TokenVersion)
}

func TestParseJWTTokenRejectsExpired(t *testing.T) {
	config.AppConfig.AuthTokenSecret = "test-secret"

	user := &models.User{}
	user.ID = 1
	token, err := SignJWTToken(user, -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWTToken(token)
	assert.Error(t, err)
}

func TestParseJWTTokenRejectsWrongSecret(t *testing.T) {
	config.AppConfig.AuthTokenSecret = "secret-one"
	user := &models.User{}
	user.ID = 1
	token, err := SignJWTToken(user, time.Hour)
	require.NoError(t, err)

	config.AppConfig.AuthTokenSecret = "secret-two"
	_, err = ParseJWTToken(token)
	assert.Error(t, err)
}
