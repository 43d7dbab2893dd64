// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"

	"tally/config"
	"tally/internal/delivery/http/middleware"
	"tally/internal/delivery/http/response"
	"tally/internal/domain/entity"
	domainerrors "tally/internal/domain/errors"
	"tally/internal/domain/service"
	"tally/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AuthHandler holds dependencies for authentication handlers.
type AuthHandler struct {
	uc       usecase.AuthUsecase
	tokenSvc service.TokenService
	cfg      *config.Config
	logger   *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(uc usecase.AuthUsecase, tokenSvc service.TokenService, cfg *config.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		uc:       uc,
		tokenSvc: tokenSvc,
		cfg:      cfg,
		logger:   logger,
	}
}

type registerRequest struct {
	Email       string `json:"email" form:"email" validate:"required,email"`
	Password    string `json:"password" form:"password" validate:"required,min=8"`
	Role        string `json:"role" form:"role" validate:"required"`
	FirstName   string `json:"firstName" form:"firstName"`
	LastName    string `json:"lastName" form:"lastName"`
	PhoneNumber string `json:"phoneNumber" form:"phoneNumber"`
	IDNumber    string `json:"idNumber" form:"idNumber"`
}

// Register handles the account registration request.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return response.Message(c, http.StatusBadRequest, "Invalid input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	role, ok := entity.RoleFromString(req.Role)
	if !ok {
		return response.Message(c, http.StatusBadRequest, "Invalid input")
	}

	out, err := h.uc.Register(c.Request().Context(), &usecase.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Role:        role,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		IDNumber:    req.IDNumber,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusCreated, response.RegisteredBody{
		Success: true,
		Message: "Account created",
		UserID:  out.UserID.String(),
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles the login request and plants the refresh token cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return response.Message(c, http.StatusBadRequest, "Invalid input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	out, err := h.uc.Login(c.Request().Context(), &usecase.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	h.setRefreshCookie(c, out.RefreshToken)

	return c.JSON(http.StatusOK, response.TokenBody{
		AccessToken: out.AccessToken,
		User:        out.User.Public(),
	})
}

// Refresh rotates the refresh token presented in the cookie and returns a
// new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(h.cfg.Auth.CookieName)
	if err != nil || cookie.Value == "" {
		return domainerrors.ErrNoToken
	}

	out, err := h.uc.Refresh(c.Request().Context(), cookie.Value)
	if err != nil {
		// A rejected token is dead either way; take the cookie with it.
		h.clearRefreshCookie(c)

		return errors.WithStack(err)
	}

	h.setRefreshCookie(c, out.RefreshToken)

	return c.JSON(http.StatusOK, response.TokenBody{AccessToken: out.AccessToken})
}

// Logout ends the cookie's session. It always clears the cookie and always
// answers 200, even when no session existed.
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(h.cfg.Auth.CookieName); err == nil {
		if err := h.uc.Logout(c.Request().Context(), cookie.Value); err != nil {
			return errors.WithStack(err)
		}
	}

	h.clearRefreshCookie(c)

	return response.Message(c, http.StatusOK, "Logged out")
}

// LogoutAll revokes every session of the authenticated user.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	if err := h.uc.LogoutAll(c.Request().Context(), userID); err != nil {
		return errors.WithStack(err)
	}

	h.clearRefreshCookie(c)

	return response.Message(c, http.StatusOK, "All sessions revoked")
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	user, err := h.uc.Me(c.Request().Context(), userID)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, user.Public())
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// ChangePassword updates the password and revokes every other session. The
// caller's own session survives via the refresh cookie, when present.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.Message(c, http.StatusBadRequest, "Invalid input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	input := &usecase.ChangePasswordInput{
		UserID:          userID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}
	if cookie, err := c.Cookie(h.cfg.Auth.CookieName); err == nil {
		input.KeepSessionToken = cookie.Value
	}

	if err := h.uc.ChangePassword(c.Request().Context(), input); err != nil {
		return errors.WithStack(err)
	}

	return response.Message(c, http.StatusOK, "Password changed")
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string) {
	setRefreshCookie(c, h.cfg, token, h.tokenSvc.RefreshTokenDuration())
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	clearRefreshCookie(c, h.cfg)
}
