package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret-that-is-long-enough"

func newTestManager(expiry time.Duration) *JWTManager {
	return NewJWTManager(testSecret, "parc-api", "parc-api", expiry)
}

func TestGenerateAndValidateToken(t *testing.T) {
	mgr := newTestManager(time.Hour)

	token, err := mgr.GenerateToken(42, []string{"GESTIONNAIRE"})
	require.NoError(t, err)

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, []string{"GESTIONNAIRE"}, claims.Roles)
	assert.Equal(t, "parc-api", claims.Issuer)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	mgr := newTestManager(-time.Minute)

	token, err := mgr.GenerateToken(1, []string{"ADMIN"})
	require.NoError(t, err)

	_, err = mgr.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := newTestManager(time.Hour).GenerateToken(1, []string{"ADMIN"})
	require.NoError(t, err)

	other := NewJWTManager("a-completely-different-secret-value", "parc-api", "parc-api", time.Hour)
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestClaimsHasRole(t *testing.T) {
	claims := &Claims{Roles: []string{"LECTURE", "GESTIONNAIRE"}}

	assert.True(t, claims.HasRole("GESTIONNAIRE"))
	assert.True(t, claims.HasRole("ADMIN", "LECTURE"))
	assert.False(t, claims.HasRole("ADMIN"))
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, newTestManager(time.Hour).ValidateConfig())

	assert.Error(t, NewJWTManager("short", "parc-api", "parc-api", time.Hour).ValidateConfig())
	assert.Error(t, NewJWTManager(testSecret, "", "parc-api", time.Hour).ValidateConfig())
	assert.Error(t, newTestManager(0).ValidateConfig())
}
