// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"tally/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new account.
type RegisterInput struct {
	Email       string
	Password    string
	Role        entity.Role
	FirstName   string
	LastName    string
	PhoneNumber string
	IDNumber    string
}

// LoginInput defines the data required for a user to log in. UserAgent is
// used to derive the session's device descriptor.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
}

// ChangePasswordInput defines the data required to change a password.
// KeepSessionToken optionally carries the caller's current refresh token so
// that session survives the revocation of all others.
type ChangePasswordInput struct {
	UserID           uuid.UUID
	CurrentPassword  string
	NewPassword      string
	KeepSessionToken string
}

// --- Output DTOs ---

// RegisterOutput returns the newly created user's ID.
type RegisterOutput struct {
	UserID uuid.UUID
}

// LoginOutput returns the generated tokens after a successful login.
// RefreshToken is the plaintext destined for the httpOnly cookie; it is
// never persisted in this form.
type LoginOutput struct {
	AccessToken  string
	RefreshToken string
	User         *entity.User
}

// RefreshOutput returns the rotated token pair.
type RefreshOutput struct {
	AccessToken  string
	RefreshToken string
}

// AuthUsecase defines the interface for authentication business operations.
// This is the contract that the delivery layer depends on.
type AuthUsecase interface {
	// Register creates a new account. Duplicate emails yield ErrEmailInUse.
	Register(ctx context.Context, input *RegisterInput) (*RegisterOutput, error)

	// Login verifies credentials and opens a new session. Unknown email and
	// wrong password both yield ErrInvalidCredentials.
	Login(ctx context.Context, input *LoginInput) (*LoginOutput, error)

	// Refresh rotates the presented refresh token. A verified token with no
	// matching record means it was already rotated: every session of that
	// user is revoked and ErrTokenReuse is returned.
	Refresh(ctx context.Context, refreshToken string) (*RefreshOutput, error)

	// Logout ends the session matching the presented token. It is idempotent
	// and never fails on an absent or unverifiable token.
	Logout(ctx context.Context, refreshToken string) error

	// LogoutAll revokes every session of the user.
	LogoutAll(ctx context.Context, userID uuid.UUID) error

	// Me returns the user's profile.
	Me(ctx context.Context, userID uuid.UUID) (*entity.User, error)

	// ChangePassword verifies the current password, stores the new hash, and
	// revokes all sessions except the one named by KeepSessionToken.
	ChangePassword(ctx context.Context, input *ChangePasswordInput) error
}
