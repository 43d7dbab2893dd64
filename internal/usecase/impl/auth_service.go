// Package impl contains the application-specific business rules implementations.
package impl

import (
	"context"
	"log/slog"
	"time"

	"tally/internal/domain/entity"
	domainerrors "tally/internal/domain/errors"
	"tally/internal/domain/repository"
	"tally/internal/domain/service"
	"tally/internal/usecase"
	"tally/internal/util"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager    repository.TransactionManager
	hasher       service.PasswordHasher
	tokenHasher  service.TokenHasher
	tokenService service.TokenService
	logger       *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(
	txManager repository.TransactionManager,
	hasher service.PasswordHasher,
	tokenHasher service.TokenHasher,
	tokenService service.TokenService,
	logger *slog.Logger,
) usecase.AuthUsecase {
	return &authService{
		txManager:    txManager,
		hasher:       hasher,
		tokenHasher:  tokenHasher,
		tokenService: tokenService,
		logger:       logger,
	}
}

// Register orchestrates the account registration process.
func (srv *authService) Register(ctx context.Context, input *usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	srv.logger.Info("Starting registration", slog.String("email", input.Email))

	if !input.Role.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("unknown role")
	}

	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.logger.Error("Failed to hash password during registration", slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to hash password during registration")
	}

	newUser := &entity.User{
		Email:        input.Email,
		PasswordHash: hashedPassword,
		Role:         input.Role,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PhoneNumber:  input.PhoneNumber,
		IDNumber:     input.IDNumber,
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		if err := userRepo.Create(ctx, newUser); err != nil {
			// The unique index on email is the source of truth for duplicates;
			// a prior existence check would still race with concurrent signups.
			if errors.Is(err, repository.ErrDuplicateEmail) {
				return domainerrors.ErrEmailInUse
			}

			return errors.WithStack(err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	srv.logger.Debug("User registered", slog.Any("userID", newUser.ID))

	return &usecase.RegisterOutput{UserID: newUser.ID}, nil
}

// Login verifies credentials and opens a new session for the device.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	srv.logger.Info("Login attempt", slog.String("email", input.Email))

	var out *usecase.LoginOutput

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()
		tokenRepo := repoFactory.NewRefreshTokenRepository()

		user, err := userRepo.FindByEmail(ctx, input.Email)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				// Same error as a wrong password so responses cannot be used
				// to probe which emails are registered.
				return domainerrors.ErrInvalidCredentials
			}

			return errors.Wrap(err, "failed to find user by email")
		}

		if !srv.hasher.Check(input.Password, user.PasswordHash) {
			return domainerrors.ErrInvalidCredentials
		}

		accessToken, err := srv.tokenService.IssueAccessToken(user.ID, user.Role)
		if err != nil {
			return errors.Wrap(err, "failed to issue access token")
		}
		refreshToken, err := srv.tokenService.IssueRefreshToken(user.ID, user.Role)
		if err != nil {
			return errors.Wrap(err, "failed to issue refresh token")
		}

		tokenHash, err := srv.tokenHasher.Hash(refreshToken)
		if err != nil {
			return errors.Wrap(err, "failed to hash refresh token")
		}

		session := &entity.RefreshToken{
			UserID:    user.ID,
			TokenHash: tokenHash,
			Device:    util.DeviceFromUserAgent(input.UserAgent),
			ExpiresAt: time.Now().Add(srv.tokenService.RefreshTokenDuration()),
		}
		if err := tokenRepo.Create(ctx, session); err != nil {
			return errors.WithStack(err)
		}

		count, err := tokenRepo.CountActiveForUser(ctx, user.ID)
		if err != nil {
			return errors.Wrap(err, "failed to count active sessions")
		}
		srv.logger.Debug("Session opened",
			slog.Any("userID", user.ID),
			slog.String("device", session.Device),
			slog.Int("activeSessions", count),
		)

		out = &usecase.LoginOutput{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			User:         user,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Refresh rotates the presented refresh token and returns a new token pair.
func (srv *authService) Refresh(ctx context.Context, refreshToken string) (*usecase.RefreshOutput, error) {
	claims, err := srv.tokenService.VerifyRefreshToken(refreshToken)
	if err != nil {
		// Signature and expiry failures are indistinguishable to the client.
		return nil, domainerrors.ErrInvalidToken
	}

	var out *usecase.RefreshOutput

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		tokenRepo := repoFactory.NewRefreshTokenRepository()

		// The scan locks the user's rows FOR UPDATE, so two concurrent
		// refreshes with the same token serialize here: the first rotates,
		// the second no longer matches and trips reuse detection.
		session, err := tokenRepo.FindMatching(ctx, claims.UserID, func(tokenHash string) bool {
			return srv.tokenHasher.Matches(refreshToken, tokenHash)
		})
		if err != nil {
			if errors.Is(err, repository.ErrRefreshTokenNotFound) {
				// A verified token without a stored record was already
				// rotated once. Someone is replaying it: revoke everything.
				srv.logger.Warn("Refresh token reuse detected; revoking all sessions",
					slog.Any("userID", claims.UserID),
				)
				if delErr := tokenRepo.DeleteAllForUser(ctx, claims.UserID); delErr != nil {
					return errors.Wrap(delErr, "failed to revoke sessions after reuse")
				}

				return domainerrors.ErrTokenReuse
			}

			return errors.Wrap(err, "failed to find refresh token")
		}

		if session.Expired(time.Now()) {
			if delErr := tokenRepo.DeleteByID(ctx, session.ID); delErr != nil &&
				!errors.Is(delErr, repository.ErrRefreshTokenNotFound) {
				return errors.Wrap(delErr, "failed to delete expired refresh token")
			}

			return domainerrors.ErrTokenExpired
		}

		accessToken, err := srv.tokenService.IssueAccessToken(claims.UserID, claims.Role)
		if err != nil {
			return errors.Wrap(err, "failed to issue access token")
		}
		newRefreshToken, err := srv.tokenService.IssueRefreshToken(claims.UserID, claims.Role)
		if err != nil {
			return errors.Wrap(err, "failed to issue refresh token")
		}
		newHash, err := srv.tokenHasher.Hash(newRefreshToken)
		if err != nil {
			return errors.Wrap(err, "failed to hash refresh token")
		}

		newExpiry := time.Now().Add(srv.tokenService.RefreshTokenDuration())
		if err := tokenRepo.Rotate(ctx, session.ID, newHash, newExpiry); err != nil {
			return errors.Wrap(err, "failed to rotate refresh token")
		}

		out = &usecase.RefreshOutput{
			AccessToken:  accessToken,
			RefreshToken: newRefreshToken,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Logout ends the session matching the presented token. Absent or
// unverifiable tokens are treated as already logged out.
func (srv *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	claims, err := srv.tokenService.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil
	}

	return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		tokenRepo := repoFactory.NewRefreshTokenRepository()

		session, err := tokenRepo.FindMatching(ctx, claims.UserID, func(tokenHash string) bool {
			return srv.tokenHasher.Matches(refreshToken, tokenHash)
		})
		if err != nil {
			if errors.Is(err, repository.ErrRefreshTokenNotFound) {
				return nil
			}

			return errors.Wrap(err, "failed to find refresh token")
		}

		if err := tokenRepo.DeleteByID(ctx, session.ID); err != nil &&
			!errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return errors.Wrap(err, "failed to delete refresh token")
		}

		srv.logger.Debug("Session closed", slog.Any("userID", claims.UserID), slog.Any("sessionID", session.ID))

		return nil
	})
}

// LogoutAll revokes every session of the user.
func (srv *authService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	srv.logger.Info("Revoking all sessions", slog.Any("userID", userID))

	return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		tokenRepo := repoFactory.NewRefreshTokenRepository()

		if err := tokenRepo.DeleteAllForUser(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to delete user sessions")
		}

		return nil
	})
}

// Me returns the user's profile.
func (srv *authService) Me(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	var user *entity.User

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		found, err := userRepo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}

			return errors.Wrap(err, "failed to find user")
		}
		user = found

		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes every session except the caller's own.
func (srv *authService) ChangePassword(ctx context.Context, input *usecase.ChangePasswordInput) error {
	srv.logger.Info("Changing password", slog.Any("userID", input.UserID))

	hashedPassword, err := srv.hasher.Hash(input.NewPassword)
	if err != nil {
		return errors.Wrap(err, "failed to hash new password")
	}

	return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()
		tokenRepo := repoFactory.NewRefreshTokenRepository()

		user, err := userRepo.FindByID(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}

			return errors.Wrap(err, "failed to find user")
		}

		if !srv.hasher.Check(input.CurrentPassword, user.PasswordHash) {
			return domainerrors.ErrInvalidCredentials
		}

		if err := userRepo.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
			return errors.Wrap(err, "failed to update password")
		}

		// A password change invalidates every other device's session. The
		// caller's own session survives when its refresh token is presented.
		keepID := uuid.Nil
		if input.KeepSessionToken != "" {
			session, err := tokenRepo.FindMatching(ctx, user.ID, func(tokenHash string) bool {
				return srv.tokenHasher.Matches(input.KeepSessionToken, tokenHash)
			})
			if err == nil {
				keepID = session.ID
			} else if !errors.Is(err, repository.ErrRefreshTokenNotFound) {
				return errors.Wrap(err, "failed to find current session")
			}
		}

		sessions, err := tokenRepo.ListForUser(ctx, user.ID)
		if err != nil {
			return errors.Wrap(err, "failed to list sessions")
		}
		for _, session := range sessions {
			if session.ID == keepID {
				continue
			}
			if err := tokenRepo.DeleteByID(ctx, session.ID); err != nil &&
				!errors.Is(err, repository.ErrRefreshTokenNotFound) {
				return errors.Wrap(err, "failed to revoke session")
			}
		}

		return nil
	})
}
