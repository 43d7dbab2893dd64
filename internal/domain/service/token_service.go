package service

import (
	"errors"
	"time"

	"tally/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failures collapse to these two cases; callers must treat
// either one uniformly as "unauthenticated" and never surface the
// distinction to clients.
var (
	// ErrSignatureInvalid is returned for malformed tokens, wrong signing
	// methods, or signature mismatches.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired is returned when the token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)

// Claims defines the custom claims embedded in both token kinds.
type Claims struct {
	UserID uuid.UUID
	Role   entity.Role
	Type   string // "access" or "refresh"
	jwt.RegisteredClaims
}

// TokenService defines the interface for issuing and verifying JWTs.
// Access and refresh tokens are signed with two independent secrets so a
// leaked access secret cannot be used to mint refresh tokens.
type TokenService interface {
	// IssueAccessToken signs a short-lived access token for the user.
	IssueAccessToken(userID uuid.UUID, role entity.Role) (string, error)

	// IssueRefreshToken signs a long-lived refresh token for the user.
	IssueRefreshToken(userID uuid.UUID, role entity.Role) (string, error)

	// VerifyAccessToken checks an access token and returns its claims.
	VerifyAccessToken(token string) (*Claims, error)

	// VerifyRefreshToken checks a refresh token and returns its claims.
	VerifyRefreshToken(token string) (*Claims, error)

	// AccessTokenDuration returns the configured access token lifetime.
	AccessTokenDuration() time.Duration

	// RefreshTokenDuration returns the configured refresh token lifetime.
	// It also bounds the store record expiry and the cookie max age.
	RefreshTokenDuration() time.Duration
}
