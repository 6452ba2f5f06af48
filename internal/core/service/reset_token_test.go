package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/auth-service/internal/core/domain"
)

func newResetEnv(t *testing.T) (*ResetTokenGenerator, *stubUserRepo, *domain.User) {
	t.Helper()
	repo := newStubUserRepo()
	u, err := repo.Create(context.Background(), &domain.User{Email: "a@example.com", PasswordHash: "old"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return NewResetTokenGenerator(repo, NewPasswordHasher(bcrypt.MinCost), 0), repo, u
}

func TestResetTokenGenerator_Generate(t *testing.T) {
	gen, _, _ := newResetEnv(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	gen.now = func() time.Time { return now }

	raw, hash, expiresAt, err := gen.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw) != 2*resetTokenBytes {
		t.Errorf("expected %d hex chars, got %d", 2*resetTokenBytes, len(raw))
	}
	if hash != HashResetToken(raw) || hash == raw {
		t.Error("hash must be the SHA-256 of the raw token")
	}
	if !expiresAt.Equal(now.Add(DefaultResetTTL)) {
		t.Errorf("expected expiry %s, got %s", now.Add(DefaultResetTTL), expiresAt)
	}

	raw2, _, _, _ := gen.Generate()
	if raw == raw2 {
		t.Error("expected distinct tokens")
	}
}

func TestResetTokenGenerator_IssueFor_StoresHashOnly(t *testing.T) {
	gen, repo, u := newResetEnv(t)

	raw, err := gen.IssueFor(context.Background(), u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.get(u.ID)
	if stored.ResetTokenHash != HashResetToken(raw) {
		t.Fatal("expected stored hash of raw token")
	}
	if stored.ResetTokenHash == raw {
		t.Fatal("raw token must not be stored")
	}
}

func TestResetTokenGenerator_Consume_SingleUse(t *testing.T) {
	gen, repo, u := newResetEnv(t)
	ctx := context.Background()

	raw, _ := gen.IssueFor(ctx, u)
	if _, err := gen.Consume(ctx, raw, "secret2"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	stored := repo.get(u.ID)
	if stored.ResetTokenHash != "" || stored.ResetTokenExpiresAt != nil {
		t.Error("expected reset fields to be cleared")
	}
	if !gen.hasher.Verify("secret2", stored.PasswordHash) {
		t.Error("expected password to be replaced")
	}

	if _, err := gen.Consume(ctx, raw, "secret3"); !errors.Is(err, domain.ErrResetTokenInvalid) {
		t.Fatalf("expected reuse to fail with ErrResetTokenInvalid, got %v", err)
	}
}

func TestResetTokenGenerator_Consume_Expired(t *testing.T) {
	gen, _, u := newResetEnv(t)
	ctx := context.Background()

	issued := time.Now()
	gen.now = func() time.Time { return issued }
	raw, _ := gen.IssueFor(ctx, u)

	gen.now = func() time.Time { return issued.Add(DefaultResetTTL + time.Second) }
	if _, err := gen.Consume(ctx, raw, "secret2"); !errors.Is(err, domain.ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid, got %v", err)
	}
}

func TestResetTokenGenerator_Consume_NewTokenReplacesOld(t *testing.T) {
	gen, _, u := newResetEnv(t)
	ctx := context.Background()

	first, _ := gen.IssueFor(ctx, u)
	second, _ := gen.IssueFor(ctx, u)

	if _, err := gen.Consume(ctx, first, "secret2"); !errors.Is(err, domain.ErrResetTokenInvalid) {
		t.Fatalf("expected superseded token to fail, got %v", err)
	}
	if _, err := gen.Consume(ctx, second, "secret2"); err != nil {
		t.Fatalf("expected latest token to work, got %v", err)
	}
}

func TestResetTokenGenerator_Consume_Unknown(t *testing.T) {
	gen, _, _ := newResetEnv(t)

	if _, err := gen.Consume(context.Background(), "deadbeef", "secret2"); !errors.Is(err, domain.ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid, got %v", err)
	}
}
