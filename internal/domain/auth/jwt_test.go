package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "0190a3a2-7c4e-7000-8000-0000000000aa"

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, expiresAt, err := svc.GenerateAccessToken(testUserID, "ops@example.com", []string{"storekeeper"})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	actor, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, testUserID, actor.UserID)
	assert.Equal(t, "ops@example.com", actor.Email)
	assert.Equal(t, []string{"storekeeper"}, actor.Roles)
}

func TestJWTService_RejectsForeignSecret(t *testing.T) {
	token, _, err := NewJWTService(DefaultJWTConfig("other")).GenerateAccessToken(testUserID, "", nil)
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("secret")).ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	cfg := DefaultJWTConfig("secret")
	cfg.AccessTokenTTL = -time.Minute
	svc := NewJWTService(cfg)

	token, _, err := svc.GenerateAccessToken(testUserID, "", nil)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsNonUUIDUser(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, _, err := svc.GenerateAccessToken("admin", "", nil)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
