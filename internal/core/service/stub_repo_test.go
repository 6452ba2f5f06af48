package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// stubUserRepo is an in-memory ports.UserRepository.
type stubUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int

	setRefreshErr  error
	recordLoginErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	return &cp
}

func (r *stubUserRepo) get(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u)
	}
	return nil
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	stored := cloneUser(user)
	stored.ID = "user-" + strconv.Itoa(r.nextID)
	r.users[stored.ID] = stored
	return cloneUser(stored), nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if u := r.get(id); u != nil {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) EmailTakenByOther(_ context.Context, email, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if u.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubUserRepo) UpdateProfile(_ context.Context, id string, upd domain.ProfileUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) RecordLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordLoginErr != nil {
		return r.recordLoginErr
	}
	if u, ok := r.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (r *stubUserRepo) SetRefreshToken(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setRefreshErr != nil {
		return r.setRefreshErr
	}
	if u, ok := r.users[userID]; ok {
		u.RefreshToken = token
	}
	return nil
}

func (r *stubUserRepo) ClearRefreshToken(ctx context.Context, userID string) error {
	return r.SetRefreshToken(ctx, userID, "")
}

func (r *stubUserRepo) SwapRefreshToken(_ context.Context, userID, current, next string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || current == "" || u.RefreshToken != current {
		return false, nil
	}
	u.RefreshToken = next
	return true, nil
}

func (r *stubUserRepo) SetResetToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.ResetTokenHash = tokenHash
		u.ResetTokenExpiresAt = &expiresAt
	}
	return nil
}

func (r *stubUserRepo) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if resetMatches(u, tokenHash, now) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) CompleteReset(_ context.Context, userID, tokenHash string, now time.Time, passwordHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || !resetMatches(u, tokenHash, now) {
		return false, nil
	}
	u.PasswordHash = passwordHash
	u.ResetTokenHash = ""
	u.ResetTokenExpiresAt = nil
	return true, nil
}

func (r *stubUserRepo) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.ResetTokenExpiresAt != nil && !u.ResetTokenExpiresAt.After(now) {
			u.ResetTokenHash = ""
			u.ResetTokenExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func resetMatches(u *domain.User, tokenHash string, now time.Time) bool {
	return u.ResetTokenHash != "" && u.ResetTokenHash == tokenHash &&
		u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.After(now)
}

// stubPublisher records published events.
type stubPublisher struct {
	mu     sync.Mutex
	events []domain.AuthEvent
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, e domain.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *stubPublisher) types() []domain.AuthEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.AuthEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	repo      *stubUserRepo
	hasher    *PasswordHasher
	tokens    *TokenIssuer
	resets    *ResetTokenGenerator
	publisher *stubPublisher
	svc       *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newStubUserRepo()
	hasher := NewPasswordHasher(bcrypt.MinCost)
	tokens := NewTokenIssuer(repo, TokenIssuerConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
	}, nil, zerolog.Nop())
	resets := NewResetTokenGenerator(repo, hasher, 0)
	pub := &stubPublisher{}

	svc, err := NewAuthService(repo, hasher, tokens, resets, pub, zerolog.Nop())
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return &testEnv{repo: repo, hasher: hasher, tokens: tokens, resets: resets, publisher: pub, svc: svc}
}
