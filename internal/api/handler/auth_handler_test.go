package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

type stubAuthService struct {
	registerFn      func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error)
	loginFn         func(ctx context.Context, email, password string) (*ports.AuthResult, error)
	logoutFn        func(ctx context.Context, userID string) error
	refreshFn       func(ctx context.Context, token string) (*ports.TokenPair, error)
	forgotFn        func(ctx context.Context, email string) (string, error)
	resetFn         func(ctx context.Context, token, password string) error
	getProfileFn    func(ctx context.Context, userID string) (*domain.User, error)
	updateProfileFn func(ctx context.Context, userID string, in ports.UpdateProfileInput) (*domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Logout(ctx context.Context, userID string) error {
	return s.logoutFn(ctx, userID)
}

func (s *stubAuthService) Refresh(ctx context.Context, token string) (*ports.TokenPair, error) {
	return s.refreshFn(ctx, token)
}

func (s *stubAuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	return s.forgotFn(ctx, email)
}

func (s *stubAuthService) ResetPassword(ctx context.Context, token, password string) error {
	return s.resetFn(ctx, token, password)
}

func (s *stubAuthService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	return s.getProfileFn(ctx, userID)
}

func (s *stubAuthService) UpdateProfile(ctx context.Context, userID string, in ports.UpdateProfileInput) (*domain.User, error) {
	return s.updateProfileFn(ctx, userID, in)
}

var alice = &domain.User{
	ID:           "u1",
	Name:         "Alice",
	Email:        "alice@x.com",
	PasswordHash: "$2a$hash",
	Role:         domain.RoleUser,
	Status:       domain.StatusActive,
}

func newContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(_ context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
			if in.Name != "Alice" || in.Email != "alice@x.com" || in.Password != "secret1" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &ports.AuthResult{User: alice, Tokens: ports.TokenPair{AccessToken: "at", RefreshToken: "rt"}}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/auth/register", `{"name":"Alice","email":"alice@x.com","password":"secret1"}`)

	if err := NewAuthHandler(stub).Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	resp := decode(t, rec)
	if resp["success"] != true || resp["message"] != "User registered successfully" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	data, ok := resp["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data in response")
	}
	if data["id"] != "u1" || data["email"] != "alice@x.com" || data["role"] != "user" {
		t.Fatalf("unexpected user payload: %+v", data)
	}
	if data["accessToken"] != "at" || data["refreshToken"] != "rt" {
		t.Fatalf("unexpected tokens: %+v", data)
	}
	if strings.Contains(rec.Body.String(), "hash") || strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("credential material leaked: %s", rec.Body.String())
	}
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, ports.RegisterInput) (*ports.AuthResult, error) {
			t.Fatalf("service must not be called")
			return nil, nil
		},
	}
	c, _ := newContext(http.MethodPost, "/auth/register", `{"email":"bad","password":"123"}`)

	err := NewAuthHandler(stub).Register(c)
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	got := map[string]string{}
	for _, f := range de.Fields {
		got[f.Field] = f.Message
	}
	if got["name"] != "Name is required" {
		t.Errorf("unexpected name message %q", got["name"])
	}
	if got["email"] != "Please enter a valid email" {
		t.Errorf("unexpected email message %q", got["email"])
	}
	if got["password"] != "Password must be at least 6 characters long" {
		t.Errorf("unexpected password message %q", got["password"])
	}
}

func TestAuthHandler_Register_PasswordTooLong(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/auth/register",
		`{"name":"Alice","email":"alice@x.com","password":"`+strings.Repeat("a", 73)+`"}`)

	err := NewAuthHandler(&stubAuthService{}).Register(c)
	var de *domain.Error
	if !errors.As(err, &de) || len(de.Fields) != 1 {
		t.Fatalf("expected one field error, got %v", err)
	}
	if de.Fields[0].Message != "Password must be at most 72 characters long" {
		t.Fatalf("unexpected message %q", de.Fields[0].Message)
	}
}

func TestAuthHandler_Register_UserExists(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, ports.RegisterInput) (*ports.AuthResult, error) {
			return nil, domain.ErrUserExists
		},
	}
	c, _ := newContext(http.MethodPost, "/auth/register", `{"name":"Bob","email":"bob@x.com","password":"secret1"}`)

	if err := NewAuthHandler(stub).Register(c); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthHandler_Register_MalformedBody(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/auth/register", `{"name":`)

	err := NewAuthHandler(&stubAuthService{}).Register(c)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, email, password string) (*ports.AuthResult, error) {
			return &ports.AuthResult{User: alice, Tokens: ports.TokenPair{AccessToken: "at", RefreshToken: "rt"}}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/auth/login", `{"email":"alice@x.com","password":"secret1"}`)

	if err := NewAuthHandler(stub).Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode(t, rec); resp["message"] != "Login successful" {
		t.Fatalf("unexpected message: %v", resp["message"])
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(context.Context, string, string) (*ports.AuthResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	c, _ := newContext(http.MethodPost, "/auth/login", `{"email":"alice@x.com","password":"nope"}`)

	if err := NewAuthHandler(stub).Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var gotID string
	stub := &stubAuthService{
		logoutFn: func(_ context.Context, userID string) error {
			gotID = userID
			return nil
		},
	}
	c, rec := newContext(http.MethodPost, "/auth/logout", "")
	c.Set(ContextUserID, "u1")

	if err := NewAuthHandler(stub).Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if gotID != "u1" {
		t.Fatalf("expected user u1, got %q", gotID)
	}
	resp := decode(t, rec)
	if resp["message"] != "Logout successful" {
		t.Fatalf("unexpected message: %v", resp["message"])
	}
	if _, ok := resp["data"]; ok {
		t.Fatal("logout must not return data")
	}
}

func TestAuthHandler_Logout_Unauthenticated(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/auth/logout", "")

	if err := NewAuthHandler(&stubAuthService{}).Logout(c); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	stub := &stubAuthService{
		refreshFn: func(_ context.Context, token string) (*ports.TokenPair, error) {
			if token != "rt" {
				t.Fatalf("unexpected token %q", token)
			}
			return &ports.TokenPair{AccessToken: "at2", RefreshToken: "rt2"}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/auth/refresh-token", `{"refreshToken":"rt"}`)

	if err := NewAuthHandler(stub).RefreshToken(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	data := decode(t, rec)["data"].(map[string]any)
	if data["accessToken"] != "at2" || data["refreshToken"] != "rt2" {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestAuthHandler_RefreshToken_Missing(t *testing.T) {
	stub := &stubAuthService{
		refreshFn: func(_ context.Context, token string) (*ports.TokenPair, error) {
			if token != "" {
				t.Fatalf("expected empty token, got %q", token)
			}
			return nil, domain.ErrRefreshTokenRequired
		},
	}
	c, _ := newContext(http.MethodPost, "/auth/refresh-token", `{}`)

	if err := NewAuthHandler(stub).RefreshToken(c); !errors.Is(err, domain.ErrRefreshTokenRequired) {
		t.Fatalf("expected ErrRefreshTokenRequired, got %v", err)
	}
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	stub := &stubAuthService{
		forgotFn: func(context.Context, string) (string, error) { return "raw-token", nil },
	}
	c, rec := newContext(http.MethodPost, "/auth/forgot-password", `{"email":"alice@x.com"}`)

	if err := NewAuthHandler(stub).ForgotPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	if resp["message"] != "Password reset token generated" {
		t.Fatalf("unexpected message: %v", resp["message"])
	}
	if resp["data"].(map[string]any)["resetToken"] != "raw-token" {
		t.Fatalf("unexpected payload: %+v", resp["data"])
	}
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	stub := &stubAuthService{
		resetFn: func(_ context.Context, token, password string) error {
			if token != "tok" || password != "secret2" {
				t.Fatalf("unexpected args %q %q", token, password)
			}
			return nil
		},
	}
	c, rec := newContext(http.MethodPost, "/auth/reset-password", `{"token":"tok","password":"secret2"}`)

	if err := NewAuthHandler(stub).ResetPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if resp := decode(t, rec); resp["message"] != "Password reset successful" {
		t.Fatalf("unexpected message: %v", resp["message"])
	}
}

func TestAuthHandler_ResetPassword_MissingToken(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/auth/reset-password", `{"password":"secret2"}`)

	err := NewAuthHandler(&stubAuthService{}).ResetPassword(c)
	var de *domain.Error
	if !errors.As(err, &de) || len(de.Fields) != 1 || de.Fields[0].Message != "Token is required" {
		t.Fatalf("expected token field error, got %v", err)
	}
}

func TestAuthHandler_GetProfile(t *testing.T) {
	stub := &stubAuthService{
		getProfileFn: func(_ context.Context, userID string) (*domain.User, error) {
			if userID != "u1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return alice, nil
		},
	}
	c, rec := newContext(http.MethodGet, "/auth/profile", "")
	c.Set(ContextUserID, "u1")

	if err := NewAuthHandler(stub).GetProfile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	data := decode(t, rec)["data"].(map[string]any)
	if len(data) != 4 || data["name"] != "Alice" {
		t.Fatalf("expected id/name/email/role only, got %+v", data)
	}
}

func TestAuthHandler_UpdateProfile(t *testing.T) {
	stub := &stubAuthService{
		updateProfileFn: func(_ context.Context, userID string, in ports.UpdateProfileInput) (*domain.User, error) {
			if in.Name == nil || *in.Name != "Alice L" || in.Email != nil || in.Password != nil {
				t.Fatalf("unexpected input %+v", in)
			}
			u := *alice
			u.Name = *in.Name
			return &u, nil
		},
	}
	c, rec := newContext(http.MethodPut, "/auth/profile", `{"name":"Alice L"}`)
	c.Set(ContextUserID, "u1")

	if err := NewAuthHandler(stub).UpdateProfile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	if resp["message"] != "User profile updated" || resp["data"].(map[string]any)["name"] != "Alice L" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_UpdateProfile_EmailInUse(t *testing.T) {
	stub := &stubAuthService{
		updateProfileFn: func(context.Context, string, ports.UpdateProfileInput) (*domain.User, error) {
			return nil, domain.ErrEmailInUse
		},
	}
	c, _ := newContext(http.MethodPut, "/auth/profile", `{"email":"bob@x.com"}`)
	c.Set(ContextUserID, "u1")

	if err := NewAuthHandler(stub).UpdateProfile(c); !errors.Is(err, domain.ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
}

func TestAdminHandler_GetUser(t *testing.T) {
	stub := &stubAuthService{
		getProfileFn: func(_ context.Context, userID string) (*domain.User, error) {
			if userID != "u1" {
				return nil, domain.ErrUserNotFound
			}
			return alice, nil
		},
	}
	c, rec := newContext(http.MethodGet, "/admin/users/u1", "")
	c.SetParamNames("id")
	c.SetParamValues("u1")

	if err := NewAdminHandler(stub).GetUser(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if decode(t, rec)["data"].(map[string]any)["email"] != "alice@x.com" {
		t.Fatal("unexpected payload")
	}
}
