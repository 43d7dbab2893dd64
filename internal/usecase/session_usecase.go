// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"

	"tally/internal/domain/entity"

	"github.com/google/uuid"
)

// SessionUsecase defines the interface for session management operations.
type SessionUsecase interface {
	// ListSessions returns the user's sessions, newest first, as safe
	// projections that never include the token hash.
	ListSessions(ctx context.Context, userID uuid.UUID) ([]*entity.SessionInfo, error)

	// RevokeSession deletes the session only when it belongs to the user.
	// Revoking an absent or foreign session is a no-op, not an error.
	RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error

	// RevokeAllSessions deletes every session of the user.
	RevokeAllSessions(ctx context.Context, userID uuid.UUID) error

	// CleanupExpiredSessions removes expired sessions and returns the number
	// deleted. Run periodically by the janitor.
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}
