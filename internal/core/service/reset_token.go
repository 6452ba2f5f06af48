package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

const (
	// DefaultResetTTL is how long a password-reset token stays usable.
	DefaultResetTTL = time.Hour

	resetTokenBytes = 32
)

// ResetTokenGenerator issues single-use password-reset tokens. Only the
// SHA-256 of a token is stored; the raw value is handed to the caller once.
type ResetTokenGenerator struct {
	store  ports.ResetTokenStore
	hasher *PasswordHasher
	ttl    time.Duration
	now    func() time.Time
}

// NewResetTokenGenerator returns a generator whose tokens live for ttl.
func NewResetTokenGenerator(store ports.ResetTokenStore, hasher *PasswordHasher, ttl time.Duration) *ResetTokenGenerator {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetTokenGenerator{store: store, hasher: hasher, ttl: ttl, now: time.Now}
}

// Generate returns a random token, its hash and its expiry.
func (g *ResetTokenGenerator) Generate() (raw, hash string, expiresAt time.Time, err error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, HashResetToken(raw), g.now().Add(g.ttl), nil
}

// IssueFor stores a new reset token hash on user, replacing any pending one,
// and returns the raw token.
func (g *ResetTokenGenerator) IssueFor(ctx context.Context, user *domain.User) (string, error) {
	raw, hash, expiresAt, err := g.Generate()
	if err != nil {
		return "", err
	}
	if err := g.store.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return raw, nil
}

// Consume replaces the password of the user holding rawToken and clears the
// reset fields. Unknown, expired and already used tokens all fail with
// domain.ErrResetTokenInvalid. It returns the user as it was before the reset.
func (g *ResetTokenGenerator) Consume(ctx context.Context, rawToken, newPassword string) (*domain.User, error) {
	hash := HashResetToken(rawToken)
	now := g.now()

	user, err := g.store.FindByResetToken(ctx, hash, now)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}

	passwordHash, err := g.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	ok, err := g.store.CompleteReset(ctx, user.ID, hash, now, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("complete reset: %w", err)
	}
	if !ok {
		// consumed concurrently
		return nil, domain.ErrResetTokenInvalid
	}
	return user, nil
}

// HashResetToken returns the hex SHA-256 of a raw reset token. No salt is used:
// the token itself carries full entropy and is single-use.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
