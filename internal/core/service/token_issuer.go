package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/pkg/metrics"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the payload of access and refresh tokens. The user id is the only
// application claim; jti makes every issued token unique.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// RotationLocker serialises refresh rotations of a single user across
// instances. Implementations may be backed by Redis.
type RotationLocker interface {
	Acquire(ctx context.Context, userID string) (release func(), acquired bool, err error)
}

// TokenIssuerConfig holds signing material and lifetimes.
type TokenIssuerConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenIssuer signs and verifies access and refresh tokens and manages the
// single refresh-token slot of each user.
type TokenIssuer struct {
	store         ports.RefreshTokenStore
	locker        RotationLocker
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
	log           zerolog.Logger
}

// NewTokenIssuer returns a TokenIssuer. locker may be nil.
func NewTokenIssuer(store ports.RefreshTokenStore, cfg TokenIssuerConfig, locker RotationLocker, log zerolog.Logger) *TokenIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &TokenIssuer{
		store:         store,
		locker:        locker,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
		log:           log,
	}
}

// IssueAccessToken signs a short-lived access token for userID.
func (t *TokenIssuer) IssueAccessToken(userID string) (string, error) {
	return t.sign(userID, t.accessSecret, t.accessTTL)
}

// IssueRefreshToken signs a refresh token for userID. It does not persist it.
func (t *TokenIssuer) IssueRefreshToken(userID string) (string, error) {
	return t.sign(userID, t.refreshSecret, t.refreshTTL)
}

// VerifyAccessToken checks signature and expiry against the access secret.
func (t *TokenIssuer) VerifyAccessToken(token string) (*Claims, error) {
	return t.verify(token, t.accessSecret)
}

// VerifyRefreshToken checks signature and expiry against the refresh secret.
// Fails with domain.ErrTokenExpired past expiry and domain.ErrTokenInvalid
// otherwise.
func (t *TokenIssuer) VerifyRefreshToken(token string) (*Claims, error) {
	return t.verify(token, t.refreshSecret)
}

// IssuePair signs a new access/refresh pair and stores the refresh token as
// the user's only valid one.
func (t *TokenIssuer) IssuePair(ctx context.Context, userID string) (ports.TokenPair, error) {
	access, err := t.IssueAccessToken(userID)
	if err != nil {
		return ports.TokenPair{}, err
	}
	refresh, err := t.IssueRefreshToken(userID)
	if err != nil {
		return ports.TokenPair{}, err
	}
	if err := t.store.SetRefreshToken(ctx, userID, refresh); err != nil {
		return ports.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return ports.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Rotate replaces the stored refresh token of userID with a new one, provided
// the stored token equals presented. The swap is a single conditional write,
// so of two concurrent rotations with the same token exactly one succeeds.
func (t *TokenIssuer) Rotate(ctx context.Context, userID, presented string) (string, error) {
	if t.locker != nil {
		release, acquired, err := t.locker.Acquire(ctx, userID)
		switch {
		case err != nil:
			t.log.Warn().Err(err).Str("user_id", userID).Msg("refresh lock unavailable, relying on store swap")
		case !acquired:
			metrics.RefreshRotationsTotal.WithLabelValues("contended").Inc()
			return "", domain.ErrRefreshTokenMismatch
		default:
			defer release()
		}
	}

	next, err := t.IssueRefreshToken(userID)
	if err != nil {
		return "", err
	}

	swapped, err := t.store.SwapRefreshToken(ctx, userID, presented, next)
	if err != nil {
		return "", fmt.Errorf("rotate refresh token: %w", err)
	}
	if !swapped {
		metrics.RefreshRotationsTotal.WithLabelValues("mismatch").Inc()
		return "", domain.ErrRefreshTokenMismatch
	}

	metrics.RefreshRotationsTotal.WithLabelValues("rotated").Inc()
	return next, nil
}

// Revoke clears the stored refresh token of userID.
func (t *TokenIssuer) Revoke(ctx context.Context, userID string) error {
	if err := t.store.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (t *TokenIssuer) sign(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) verify(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tkn *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}
