// Package middleware contains the Echo middleware for the HTTP delivery.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"tally/internal/delivery/http/response"
	"tally/internal/domain/entity"
	"tally/internal/domain/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Context keys set by Authenticate.
const (
	ContextKeyUserID = "userID"
	ContextKeyRole   = "role"
)

// AuthMiddleware provides middleware for JWT authentication and authorization.
type AuthMiddleware struct {
	tokenSvc service.TokenService
	logger   *slog.Logger
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokenSvc service.TokenService, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, logger: logger}
}

// Authenticate validates the bearer access token and injects the user's
// identity into the request context. Every failure mode collapses to the
// same 401 body; the reason lives only in the debug log.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return m.unauthorized(c, "authorization header missing")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return m.unauthorized(c, "not a bearer token")
		}

		claims, err := m.tokenSvc.VerifyAccessToken(tokenString)
		if err != nil {
			return m.unauthorized(c, err.Error())
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRole, claims.Role)

		return next(c)
	}
}

// RequireOwner restricts a route to owner accounts. It must run after
// Authenticate.
func (m *AuthMiddleware) RequireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, ok := RoleFromContext(c)
		if !ok || !role.CanManageEmployees() {
			return response.Message(c, http.StatusForbidden, "Access denied")
		}

		return next(c)
	}
}

func (m *AuthMiddleware) unauthorized(c echo.Context, reason string) error {
	m.logger.Debug("Request rejected",
		slog.String("path", c.Request().URL.Path),
		slog.String("reason", reason),
	)

	return response.Message(c, http.StatusUnauthorized, "Unauthorized")
}

// UserIDFromContext returns the authenticated user's ID set by Authenticate.
func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	userID, ok := c.Get(ContextKeyUserID).(uuid.UUID)

	return userID, ok
}

// RoleFromContext returns the authenticated user's role set by Authenticate.
func RoleFromContext(c echo.Context) (entity.Role, bool) {
	role, ok := c.Get(ContextKeyRole).(entity.Role)

	return role, ok
}
