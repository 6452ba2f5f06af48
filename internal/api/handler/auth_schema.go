package handler

import (
	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required" example:"Alice"`
	Email    string `json:"email" validate:"email" example:"alice@example.com"`
	Password string `json:"password" validate:"min=6,max=72" example:"secret1"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"email" example:"alice@example.com"`
	Password string `json:"password" validate:"required" example:"secret1"`
}

// refreshRequest carries no validate tags: a missing token is an
// authentication failure, not a validation one.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"email" example:"alice@example.com"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"min=6,max=72" example:"secret2"`
}

// updateProfileRequest fields are optional; the service validates the ones present.
type updateProfileRequest struct {
	Name     *string `json:"name,omitempty" example:"Alice Liddell"`
	Email    *string `json:"email,omitempty" example:"alice@example.org"`
	Password *string `json:"password,omitempty"`
}

type userResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role" example:"user"`
}

type authResponse struct {
	userResponse
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type resetTokenResponse struct {
	ResetToken string `json:"resetToken"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func toAuthResponse(res *ports.AuthResult) authResponse {
	return authResponse{
		userResponse: toUserResponse(res.User),
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}
}
