// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"tally/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for refresh token persistence.
var (
	// ErrRefreshTokenNotFound is returned when no refresh token record matches.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)

// TokenMatcher reports whether a stored token hash corresponds to the
// candidate plaintext the caller holds. The hash is salted per record, so
// matching requires comparing against each row rather than an index lookup.
type TokenMatcher func(tokenHash string) bool

// RefreshTokenRepository defines the persistence operations for refresh
// tokens, each row representing one device's session. Implementations must
// make every mutation a single atomic operation scoped to one record or one
// user's record set.
type RefreshTokenRepository interface {
	// Create persists a new refresh token record. The entity's TokenHash
	// must already be the salted hash; the plaintext is never stored.
	Create(ctx context.Context, token *entity.RefreshToken) error

	// FindMatching scans the user's records and returns the first one whose
	// stored hash satisfies the matcher, or ErrRefreshTokenNotFound. When
	// called inside a transaction the scanned rows are locked for update so
	// a concurrent lookup-then-rotate sequence serializes.
	FindMatching(ctx context.Context, userID uuid.UUID, matches TokenMatcher) (*entity.RefreshToken, error)

	// Rotate replaces the record's hash and expiry and stamps its last-used
	// time. Returns ErrRefreshTokenNotFound when the record no longer exists.
	Rotate(ctx context.Context, id uuid.UUID, newTokenHash string, newExpiresAt time.Time) error

	// DeleteByID removes a refresh token record, ending that session.
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// DeleteAllForUser removes every refresh token record owned by the user.
	// Used for logout-all and for reuse-detection revocation.
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error

	// DeleteOwned removes a record only when it belongs to the user.
	// Reports whether a row was deleted.
	DeleteOwned(ctx context.Context, userID, id uuid.UUID) (bool, error)

	// ListForUser retrieves all records for a user, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*entity.RefreshToken, error)

	// DeleteExpired removes all records whose expiry has passed and returns
	// the number of rows deleted. Called periodically by the janitor.
	DeleteExpired(ctx context.Context) (int64, error)

	// CountActiveForUser returns the number of unexpired sessions for a user.
	CountActiveForUser(ctx context.Context, userID uuid.UUID) (int, error)
}
