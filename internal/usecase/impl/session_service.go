package impl

import (
	"context"
	"log/slog"

	"tally/internal/domain/entity"
	domainerrors "tally/internal/domain/errors"
	"tally/internal/domain/repository"
	"tally/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	txManager repository.TransactionManager
	logger    *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(
	txManager repository.TransactionManager,
	logger *slog.Logger,
) usecase.SessionUsecase {
	return &sessionService{
		txManager: txManager,
		logger:    logger,
	}
}

// ListSessions retrieves the user's sessions as safe projections.
func (srv *sessionService) ListSessions(ctx context.Context, userID uuid.UUID) ([]*entity.SessionInfo, error) {
	var sessions []*entity.SessionInfo

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()
		tokenRepo := repoFactory.NewRefreshTokenRepository()

		if _, err := userRepo.FindByID(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}

			return errors.Wrap(err, "failed to find user")
		}

		tokens, err := tokenRepo.ListForUser(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "failed to list refresh tokens")
		}

		sessions = make([]*entity.SessionInfo, 0, len(tokens))
		for _, token := range tokens {
			sessions = append(sessions, token.Info())
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

// RevokeSession deletes the session only when it belongs to the user.
func (srv *sessionService) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		tokenRepo := repoFactory.NewRefreshTokenRepository()

		deleted, err := tokenRepo.DeleteOwned(ctx, userID, sessionID)
		if err != nil {
			return errors.Wrap(err, "failed to revoke session")
		}
		if deleted {
			srv.logger.Info("Session revoked", slog.Any("userID", userID), slog.Any("sessionID", sessionID))
		}

		// Revoking an absent or foreign session is a no-op so the route
		// stays idempotent and leaks nothing about other users' sessions.
		return nil
	})
}

// RevokeAllSessions deletes every session of the user.
func (srv *sessionService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	srv.logger.Info("Revoking all sessions", slog.Any("userID", userID))

	return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		tokenRepo := repoFactory.NewRefreshTokenRepository()

		if err := tokenRepo.DeleteAllForUser(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to delete user sessions")
		}

		return nil
	})
}

// CleanupExpiredSessions removes expired sessions across all users.
func (srv *sessionService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	var deleted int64

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		tokenRepo := repoFactory.NewRefreshTokenRepository()

		count, err := tokenRepo.DeleteExpired(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to delete expired sessions")
		}
		deleted = count

		return nil
	})
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		srv.logger.Info("Expired sessions cleaned up", slog.Int64("deleted", deleted))
	}

	return deleted, nil
}
