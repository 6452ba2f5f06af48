package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/pkg/metrics"
)

// AuthService composes the credential store, password hasher, token issuer
// and reset-token generator into the user-facing auth operations.
type AuthService struct {
	repo      ports.UserRepository
	hasher    *PasswordHasher
	tokens    *TokenIssuer
	resets    *ResetTokenGenerator
	publisher ports.EventPublisher
	validate  *validator.Validate
	log       zerolog.Logger
	now       func() time.Time

	// dummyHash is verified against when the email is unknown so that both
	// login failure paths cost one bcrypt comparison.
	dummyHash string
}

// NewAuthService wires an AuthService. publisher may be nil.
func NewAuthService(
	repo ports.UserRepository,
	hasher *PasswordHasher,
	tokens *TokenIssuer,
	resets *ResetTokenGenerator,
	publisher ports.EventPublisher,
	log zerolog.Logger,
) (*AuthService, error) {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}
	return &AuthService{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		resets:    resets,
		publisher: publisher,
		validate:  validator.New(),
		log:       log,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// Register creates an active user with the default role and signs it in.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (res *ports.AuthResult, err error) {
	defer s.observe("register", time.Now(), &err)

	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)

	var fields []domain.FieldError
	if name == "" {
		fields = append(fields, domain.FieldError{Field: "name", Message: "Name is required"})
	}
	if !s.validEmail(email) {
		fields = append(fields, domain.FieldError{Field: "email", Message: "Please enter a valid email"})
	}
	if fe, ok := checkPassword(in.Password); !ok {
		fields = append(fields, fe)
	}
	if len(fields) > 0 {
		return nil, domain.NewValidationError("Validation error", fields...)
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("register: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user, err := s.repo.Create(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		if derr := s.repo.Delete(ctx, user.ID); derr != nil {
			s.log.Error().Err(derr).Str("user_id", user.ID).Msg("failed to roll back registration")
		}
		return nil, err
	}
	user.RefreshToken = pair.RefreshToken

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	s.publish(ctx, domain.EventUserRegistered, user)

	return &ports.AuthResult{User: user, Tokens: pair}, nil
}

// Login checks credentials and account status, issues a new token pair and
// records the login time. Unknown email and wrong password fail identically.
// A failure to record the login time is logged and does not fail the login.
func (s *AuthService) Login(ctx context.Context, email, password string) (res *ports.AuthResult, err error) {
	defer s.observe("login", time.Now(), &err)

	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, domain.ErrAccountInactive
	}

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.RefreshToken = pair.RefreshToken

	now := s.now().UTC()
	if err := s.repo.RecordLogin(ctx, user.ID, now); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	} else {
		user.LastLogin = &now
	}

	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	s.publish(ctx, domain.EventUserLoggedIn, user)

	return &ports.AuthResult{User: user, Tokens: pair}, nil
}

// Logout clears the refresh-token slot. Calling it twice is harmless.
func (s *AuthService) Logout(ctx context.Context, userID string) (err error) {
	defer s.observe("logout", time.Now(), &err)

	if err := s.tokens.Revoke(ctx, userID); err != nil {
		return err
	}
	s.publish(ctx, domain.EventUserLoggedOut, &domain.User{ID: userID})
	return nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented token
// must equal the stored slot and is unusable afterwards.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (pair *ports.TokenPair, err error) {
	defer s.observe("refresh", time.Now(), &err)

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, domain.ErrRefreshTokenRequired
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrTokenUserNotFound
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if !user.IsActive() {
		return nil, domain.ErrAccountInactive
	}

	next, err := s.tokens.Rotate(ctx, user.ID, refreshToken)
	if err != nil {
		return nil, err
	}
	access, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventTokenRefreshed, user)
	return &ports.TokenPair{AccessToken: access, RefreshToken: next}, nil
}

// ForgotPassword issues a reset token for the account registered under email
// and returns the raw token. Unknown emails fail with domain.ErrUserNotFound.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (token string, err error) {
	defer s.observe("forgot_password", time.Now(), &err)

	email = domain.NormalizeEmail(email)
	if !s.validEmail(email) {
		return "", domain.NewValidationError("Validation error",
			domain.FieldError{Field: "email", Message: "Please enter a valid email"})
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("forgot password: %w", err)
	}

	token, err = s.resets.IssueFor(ctx, user)
	if err != nil {
		return "", err
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset requested")
	s.publish(ctx, domain.EventPasswordResetRequest, user)
	return token, nil
}

// ResetPassword sets a new password for the holder of token.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) (err error) {
	defer s.observe("reset_password", time.Now(), &err)

	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrResetTokenInvalid
	}
	if fe, ok := checkPassword(password); !ok {
		return domain.NewValidationError("Validation error", fe)
	}

	user, err := s.resets.Consume(ctx, token, password)
	if err != nil {
		return err
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset completed")
	s.publish(ctx, domain.EventPasswordResetComplete, user)
	return nil
}

// GetProfile returns the user identified by userID.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (user *domain.User, err error) {
	defer s.observe("get_profile", time.Now(), &err)

	return s.repo.FindByID(ctx, userID)
}

// UpdateProfile changes name, email and password of userID. Empty values are
// ignored. Role and status cannot be changed here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ports.UpdateProfileInput) (user *domain.User, err error) {
	defer s.observe("update_profile", time.Now(), &err)

	user, err = s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		upd    domain.ProfileUpdate
		fields []domain.FieldError
	)

	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" && name != user.Name {
			upd.Name = &name
		}
	}

	if in.Email != nil {
		if email := domain.NormalizeEmail(*in.Email); email != "" {
			switch {
			case !s.validEmail(email):
				fields = append(fields, domain.FieldError{Field: "email", Message: "Please enter a valid email"})
			case email != user.Email:
				upd.Email = &email
			}
		}
	}

	passwordChanged := in.Password != nil && *in.Password != ""
	if passwordChanged {
		if fe, ok := checkPassword(*in.Password); !ok {
			fields = append(fields, fe)
		}
	}

	if len(fields) > 0 {
		return nil, domain.NewValidationError("Validation error", fields...)
	}

	if upd.Email != nil {
		taken, err := s.repo.EmailTakenByOther(ctx, *upd.Email, userID)
		if err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
		if taken {
			return nil, domain.ErrEmailInUse
		}
	}

	if passwordChanged {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}

	if upd.Empty() {
		return user, nil
	}

	user, err = s.repo.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", userID).Bool("password_changed", passwordChanged).Msg("profile updated")
	s.publish(ctx, domain.EventProfileUpdated, user)
	return user, nil
}

// EnsureAdmin creates a super admin with the given credentials unless the
// email is already registered. It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*domain.User, bool, error) {
	email = domain.NormalizeEmail(email)
	if _, ok := checkPassword(password); !ok || !s.validEmail(email) {
		return nil, false, domain.NewValidationError("invalid admin credentials")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, fmt.Errorf("ensure admin: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	admin, err := s.repo.Create(ctx, &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, false, err
	}
	return admin, true, nil
}

func (s *AuthService) validEmail(email string) bool {
	return s.validate.Var(email, "required,email") == nil
}

// publish hands an event to the publisher. Failures are logged, never returned.
func (s *AuthService) publish(ctx context.Context, typ domain.AuthEventType, user *domain.User) {
	if s.publisher == nil {
		return
	}
	event := domain.AuthEvent{
		Type:       typ,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(typ)).Str("user_id", user.ID).Msg("failed to publish auth event")
	}
}

func (s *AuthService) observe(operation string, start time.Time, errp *error) {
	outcome := "success"
	if *errp != nil {
		outcome = string(domain.KindOf(*errp))
	}
	metrics.AuthOperationsTotal.WithLabelValues(operation, outcome).Inc()
	metrics.AuthOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// checkPassword enforces the length bounds. The upper bound is counted in
// bytes because that is what bcrypt hashes.
func checkPassword(password string) (domain.FieldError, bool) {
	switch {
	case len(password) < domain.MinPasswordLength:
		return domain.FieldError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters long", domain.MinPasswordLength),
		}, false
	case len(password) > domain.MaxPasswordLength:
		return domain.FieldError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at most %d characters long", domain.MaxPasswordLength),
		}, false
	}
	return domain.FieldError{}, true
}
