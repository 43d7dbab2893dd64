package handler

import (
	"log/slog"
	"net/http"

	"tally/config"
	"tally/internal/delivery/http/middleware"
	"tally/internal/delivery/http/response"
	domainerrors "tally/internal/domain/errors"
	"tally/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// SessionHandler holds dependencies for session management handlers.
type SessionHandler struct {
	uc     usecase.SessionUsecase
	cfg    *config.Config
	logger *slog.Logger
}

// NewSessionHandler is the constructor for SessionHandler, injected by Fx.
func NewSessionHandler(uc usecase.SessionUsecase, cfg *config.Config, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{uc: uc, cfg: cfg, logger: logger}
}

// ListSessions returns the authenticated user's sessions, newest first.
func (h *SessionHandler) ListSessions(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	sessions, err := h.uc.ListSessions(c.Request().Context(), userID)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, sessions)
}

// RevokeSession ends one of the authenticated user's sessions. Revoking a
// session that is gone, or was never theirs, still answers 200. The refresh
// cookie is cleared either way since the revoked session may be this device's.
func (h *SessionHandler) RevokeSession(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.Message(c, http.StatusBadRequest, "Invalid session id")
	}

	if err := h.uc.RevokeSession(c.Request().Context(), userID, sessionID); err != nil {
		return errors.WithStack(err)
	}

	clearRefreshCookie(c, h.cfg)

	return response.Message(c, http.StatusOK, "Session revoked")
}
