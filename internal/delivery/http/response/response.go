// Package response defines the JSON shapes shared by all handlers.
package response

import "github.com/labstack/echo/v4"

// MessageBody is the uniform body used for errors and simple confirmations.
// Error responses never carry more than this; internal detail stays in logs.
type MessageBody struct {
	Message string `json:"message"`
}

// Message writes a `{message}` body with the given status code.
func Message(c echo.Context, statusCode int, message string) error {
	return c.JSON(statusCode, MessageBody{Message: message})
}

// TokenBody carries a newly issued access token.
type TokenBody struct {
	AccessToken string `json:"accessToken"`
	User        any    `json:"user,omitempty"`
}

// RegisteredBody confirms account creation.
type RegisteredBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"userId"`
}
