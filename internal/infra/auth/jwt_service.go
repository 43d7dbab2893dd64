// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"time"

	"tally/config"
	"tally/internal/domain/entity"
	"tally/internal/domain/service"
	"tally/internal/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	accessSecret  string        // Secret key for signing access tokens.
	refreshSecret string        // Secret key for signing refresh tokens.
	accessTTL     time.Duration // Time-to-live for access tokens.
	refreshTTL    time.Duration // Time-to-live for refresh tokens.
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// NewJWTService is the constructor for jwtService.
// It takes configuration values to create a new token service instance.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" || cfg.SecretKey.Refresh == "" {
		return nil, errors.New("jwt secrets must be provided")
	}
	if cfg.SecretKey.Access == cfg.SecretKey.Refresh {
		return nil, errors.New("access and refresh secrets must differ")
	}

	return &jwtService{
		accessSecret:  cfg.SecretKey.Access,
		refreshSecret: cfg.SecretKey.Refresh,
		accessTTL:     cfg.Auth.AccessTokenTTL,
		refreshTTL:    cfg.Auth.RefreshTokenTTL,
	}, nil
}

// IssueAccessToken signs a short-lived access token for the user.
func (s *jwtService) IssueAccessToken(userID uuid.UUID, role entity.Role) (string, error) {
	return s.sign(userID, role, tokenTypeAccess, s.accessTTL, s.accessSecret)
}

// IssueRefreshToken signs a long-lived refresh token for the user.
func (s *jwtService) IssueRefreshToken(userID uuid.UUID, role entity.Role) (string, error) {
	return s.sign(userID, role, tokenTypeRefresh, s.refreshTTL, s.refreshSecret)
}

// VerifyAccessToken checks an access token string and returns its claims.
func (s *jwtService) VerifyAccessToken(token string) (*service.Claims, error) {
	return s.verify(token, tokenTypeAccess, s.accessSecret)
}

// VerifyRefreshToken checks a refresh token string and returns its claims.
func (s *jwtService) VerifyRefreshToken(token string) (*service.Claims, error) {
	return s.verify(token, tokenTypeRefresh, s.refreshSecret)
}

// AccessTokenDuration returns the configured access token lifetime.
func (s *jwtService) AccessTokenDuration() time.Duration {
	return s.accessTTL
}

// RefreshTokenDuration returns the configured refresh token lifetime.
func (s *jwtService) RefreshTokenDuration() time.Duration {
	return s.refreshTTL
}

func (s *jwtService) sign(userID uuid.UUID, role entity.Role, tokenType string, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := &service.Claims{
		UserID: userID,
		Role:   role,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}

func (s *jwtService) verify(tokenString, wantType, secret string) (*service.Claims, error) {
	claims := new(service.Claims)

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, service.ErrTokenExpired
		}

		return nil, service.ErrSignatureInvalid
	}

	if !token.Valid || claims.Type != wantType {
		return nil, service.ErrSignatureInvalid
	}

	return claims, nil
}
