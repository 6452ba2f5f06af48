package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubStore struct {
	cleared int64
	err     error
	gotNow  time.Time
}

func (s *stubStore) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	s.gotNow = now
	return s.cleared, s.err
}

func TestResetSweeper_RunOnce(t *testing.T) {
	store := &stubStore{cleared: 3}
	s, err := NewResetSweeper("", store, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 cleared, got %d", n)
	}
	if !store.gotNow.Equal(fixed) {
		t.Errorf("expected sweep at %s, got %s", fixed, store.gotNow)
	}
}

func TestResetSweeper_RunOnce_StoreError(t *testing.T) {
	store := &stubStore{err: errors.New("mongo down")}
	s, _ := NewResetSweeper("@every 1h", store, zerolog.Nop())

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected store error to surface")
	}
}

func TestResetSweeper_InvalidSchedule(t *testing.T) {
	if _, err := NewResetSweeper("every now and then", &stubStore{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestResetSweeper_StartStop(t *testing.T) {
	s, err := NewResetSweeper("@every 1h", &stubStore{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Start()
	s.Stop()
}
