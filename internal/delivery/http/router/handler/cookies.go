package handler

import (
	"net/http"
	"time"

	"tally/config"

	"github.com/labstack/echo/v4"
)

// setRefreshCookie plants the refresh token in an httpOnly cookie living as
// long as the token itself. Secure is gated on the environment so local
// development over plain HTTP keeps working.
func setRefreshCookie(c echo.Context, cfg *config.Config, token string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     cfg.Auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie expires the refresh cookie on the calling device.
func clearRefreshCookie(c echo.Context, cfg *config.Config) {
	c.SetCookie(&http.Cookie{
		Name:     cfg.Auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}
