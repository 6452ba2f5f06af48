package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/pkg/metrics"
)

const (
	DefaultSweepSchedule = "@every 15m"
	sweepTimeout         = 30 * time.Second
)

// ExpiredResetTokenStore clears reset tokens past their expiry.
type ExpiredResetTokenStore interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// ResetSweeper periodically removes expired password-reset tokens from user
// records. Expired tokens are already rejected at consume time; this only
// keeps stale hashes from lingering in the store.
type ResetSweeper struct {
	cron  *cron.Cron
	store ExpiredResetTokenStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewResetSweeper schedules a sweep on the given cron spec. An empty spec
// uses DefaultSweepSchedule.
func NewResetSweeper(spec string, store ExpiredResetTokenStore, log zerolog.Logger) (*ResetSweeper, error) {
	if spec == "" {
		spec = DefaultSweepSchedule
	}
	s := &ResetSweeper{
		cron:  cron.New(),
		store: store,
		log:   log,
		now:   time.Now,
	}
	if _, err := s.cron.AddFunc(spec, func() { _, _ = s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule reset sweeper %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running scheduled sweeps in the background.
func (s *ResetSweeper) Start() {
	s.cron.Start()
	s.log.Info().Msg("reset token sweeper started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *ResetSweeper) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("reset token sweeper stopped")
}

// RunOnce clears expired reset tokens and returns how many were removed.
func (s *ResetSweeper) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	n, err := s.store.ClearExpiredResetTokens(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("reset token sweep failed")
		return 0, err
	}

	metrics.ResetTokensSweptTotal.Add(float64(n))
	if n > 0 {
		s.log.Info().Int64("cleared", n).Msg("expired reset tokens cleared")
	}
	return n, nil
}
