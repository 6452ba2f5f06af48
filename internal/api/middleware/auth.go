package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/api/handler"
	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/service"
)

// AccessTokenVerifier checks the signature and expiry of an access token.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*service.Claims, error)
}

// UserFinder loads the account an access token belongs to.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// Protect validates the bearer access token, loads its user and injects the
// user id, role and user into the context. Missing users are rejected with
// 401 and deactivated accounts with 403.
func Protect(verifier AccessTokenVerifier, users UserFinder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return domain.ErrAuthenticationRequired
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return domain.ErrAuthenticationRequired
			}

			claims, err := verifier.VerifyAccessToken(strings.TrimSpace(parts[1]))
			if err != nil {
				return err
			}

			user, err := users.FindByID(c.Request().Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					return domain.ErrTokenUserNotFound
				}
				return err
			}
			if !user.IsActive() {
				return domain.ErrUserDeactivated
			}

			c.Set(handler.ContextUserID, user.ID)
			c.Set(handler.ContextRole, user.Role)
			c.Set(handler.ContextUser, user)

			return next(c)
		}
	}
}
