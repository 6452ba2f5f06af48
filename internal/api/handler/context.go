package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// Context keys written by middleware.Protect.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextUser   = "user"
)

// ctxUserID returns the authenticated user id. An empty id means the route was
// registered without the Protect middleware.
func ctxUserID(c echo.Context) (string, error) {
	id, _ := c.Get(ContextUserID).(string)
	if id == "" {
		return "", domain.ErrNotAuthenticated
	}
	return id, nil
}
