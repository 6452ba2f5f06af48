package ports

import (
	"context"
	"time"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// RefreshTokenStore persists the single refresh-token slot of each user.
type RefreshTokenStore interface {
	SetRefreshToken(ctx context.Context, userID, token string) error
	ClearRefreshToken(ctx context.Context, userID string) error
	// SwapRefreshToken replaces the stored token with next only when the
	// stored token equals current. It reports whether the swap happened.
	SwapRefreshToken(ctx context.Context, userID, current, next string) (bool, error)
}

// ResetTokenStore persists password-reset token hashes.
type ResetTokenStore interface {
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// FindByResetToken returns the user whose stored hash equals tokenHash and
	// whose expiry is after now, or domain.ErrUserNotFound.
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)
	// CompleteReset sets the new password hash and clears the reset fields
	// when the stored hash still matches and has not expired. It reports
	// whether the record was updated.
	CompleteReset(ctx context.Context, userID, tokenHash string, now time.Time, passwordHash string) (bool, error)
	// ClearExpiredResetTokens removes reset fields whose expiry is not after
	// now and returns the number of records touched.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// UserRepository is the credential store used by the auth service.
type UserRepository interface {
	RefreshTokenStore
	ResetTokenStore

	// Create inserts a user and returns it with its id. Returns
	// domain.ErrUserExists when the email is taken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// Delete removes the user. Deleting a missing user is not an error.
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailTakenByOther(ctx context.Context, email, excludeID string) (bool, error)
	// UpdateProfile applies upd and returns the updated user. Returns
	// domain.ErrEmailInUse when the new email collides with another user.
	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.User, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
}
