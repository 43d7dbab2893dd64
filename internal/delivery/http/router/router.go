// Package router contains routing setup for the HTTP delivery.
package router

import (
	"tally/internal/delivery/http/middleware"
	"tally/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	SessionHandler *handler.SessionHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimit      *middleware.RateLimitMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	sessionHandler *handler.SessionHandler
	authMiddleware *middleware.AuthMiddleware
	rateLimit      *middleware.RateLimitMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		sessionHandler: params.SessionHandler,
		authMiddleware: params.AuthMiddleware,
		rateLimit:      params.RateLimit,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	limited := r.rateLimit.Limit()

	authGroup := e.Group("/auth")
	{
		authGroup.POST("/register", r.authHandler.Register)
		authGroup.POST("/login", r.authHandler.Login, limited)
		authGroup.POST("/refresh", r.authHandler.Refresh, limited)
		authGroup.POST("/logout", r.authHandler.Logout)
	}

	// Routes that require a valid access token
	protected := e.Group("/auth")
	protected.Use(r.authMiddleware.Authenticate)
	{
		protected.POST("/logout-all", r.authHandler.LogoutAll)
		protected.GET("/sessions", r.sessionHandler.ListSessions)
		protected.POST("/revoke/:id", r.sessionHandler.RevokeSession)
		protected.GET("/me", r.authHandler.Me)
		protected.POST("/password", r.authHandler.ChangePassword)
	}
}
