package auth

import (
	"testing"
	"time"

	"tally/config"
	"tally/internal/domain/entity"
	"tally/internal/domain/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(accessTTL, refreshTTL time.Duration) *config.Config {
	cfg := &config.Config{}
	cfg.SecretKey.Access = "test_access_secret_key_very_long_for_testing"
	cfg.SecretKey.Refresh = "test_refresh_secret_key_very_long_for_testing"
	cfg.Auth = &config.AuthConfig{
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	}

	return cfg
}

func TestJWTService_IssueAndVerifyTokens(t *testing.T) {
	svc, err := NewJWTService(newTestConfig(15*time.Minute, 15*24*time.Hour))
	require.NoError(t, err)

	userID := uuid.New()

	accessToken, err := svc.IssueAccessToken(userID, entity.RoleOwner)
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)

	refreshToken, err := svc.IssueRefreshToken(userID, entity.RoleOwner)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshToken)
	assert.NotEqual(t, accessToken, refreshToken)

	accessClaims, err := svc.VerifyAccessToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, accessClaims.UserID)
	assert.Equal(t, entity.RoleOwner, accessClaims.Role)
	assert.Equal(t, "access", accessClaims.Type)

	refreshClaims, err := svc.VerifyRefreshToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID, refreshClaims.UserID)
	assert.Equal(t, "refresh", refreshClaims.Type)
}

func TestJWTService_TokensAreNotInterchangeable(t *testing.T) {
	svc, err := NewJWTService(newTestConfig(15*time.Minute, 15*24*time.Hour))
	require.NoError(t, err)

	userID := uuid.New()

	accessToken, err := svc.IssueAccessToken(userID, entity.RoleEmployee)
	require.NoError(t, err)
	refreshToken, err := svc.IssueRefreshToken(userID, entity.RoleEmployee)
	require.NoError(t, err)

	// An access token must never pass refresh verification and vice versa:
	// the two kinds are signed with independent secrets.
	_, err = svc.VerifyRefreshToken(accessToken)
	assert.ErrorIs(t, err, service.ErrSignatureInvalid)

	_, err = svc.VerifyAccessToken(refreshToken)
	assert.ErrorIs(t, err, service.ErrSignatureInvalid)
}

func TestJWTService_ExpiredToken(t *testing.T) {
	svc, err := NewJWTService(newTestConfig(-time.Minute, 15*24*time.Hour))
	require.NoError(t, err)

	token, err := svc.IssueAccessToken(uuid.New(), entity.RoleOwner)
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(token)
	assert.ErrorIs(t, err, service.ErrTokenExpired)
	assert.Nil(t, claims)
}

func TestJWTService_MalformedToken(t *testing.T) {
	svc, err := NewJWTService(newTestConfig(15*time.Minute, 15*24*time.Hour))
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken("clearly-not-a-jwt-token-format")
	assert.ErrorIs(t, err, service.ErrSignatureInvalid)
	assert.Nil(t, claims)
}

func TestNewJWTService_RejectsBadSecrets(t *testing.T) {
	cfg := newTestConfig(15*time.Minute, 15*24*time.Hour)
	cfg.SecretKey.Refresh = ""
	_, err := NewJWTService(cfg)
	assert.Error(t, err)

	cfg = newTestConfig(15*time.Minute, 15*24*time.Hour)
	cfg.SecretKey.Refresh = cfg.SecretKey.Access
	_, err = NewJWTService(cfg)
	assert.Error(t, err)
}
