package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// successResponse is the envelope of every successful API response.
type successResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the envelope of every failed API response. It is rendered
// by the HTTP error handler and documented here for swagger.
type ErrorResponse struct {
	Success   bool                `json:"success" example:"false"`
	Message   string              `json:"message"`
	ErrorType domain.ErrorKind    `json:"errorType" example:"VALIDATION_ERROR"`
	Errors    []domain.FieldError `json:"errors,omitempty"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, successResponse{Success: true, Message: message, Data: data})
}
