package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UpdateProfileInput carries optional profile changes. Nil means unchanged.
type UpdateProfileInput struct {
	Name     *string
	Email    *string
	Password *string
}

// TokenPair is an access token and the refresh token that replaces it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User   *domain.User
	Tokens TokenPair
}

// AuthService exposes the user-facing authentication operations.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Logout(ctx context.Context, userID string) error
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) error
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error)
}

// EventPublisher delivers auth lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.AuthEvent) error
}
