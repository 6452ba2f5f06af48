package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/api/handler"
	"github.com/99minutos/auth-service/internal/core/domain"
)

// Authorize enforces role-based access control. It must run after Protect.
func Authorize(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(handler.ContextRole).(domain.Role)
			if !ok {
				return domain.ErrNotAuthenticated
			}
			if _, ok := allowed[role]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}

// AdminOrSuperAdmin allows admin and super admin callers.
func AdminOrSuperAdmin() echo.MiddlewareFunc {
	return Authorize(domain.RoleAdmin, domain.RoleSuperAdmin)
}
