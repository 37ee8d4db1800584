package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"daily-leaderboard/internal/config"
	"daily-leaderboard/internal/constants"
	"daily-leaderboard/internal/dayclock"
	"daily-leaderboard/internal/metrics"
	"daily-leaderboard/internal/repository"

	"github.com/rs/zerolog"
)

const (
	CleanupKindBoundary = "boundary"
	CleanupKindSafety   = "safety"
	CleanupKindStartup  = "startup"
)

// CleanupScheduler rolls the board over at the UTC+8 day boundary and
// periodically re-trims today's rows. It is either idle or running exactly
// one pass; ticks that arrive mid-pass are dropped, never queued.
type CleanupScheduler struct {
	store   repository.RankStore
	ranking *RankingService
	days    *dayclock.Provider
	metrics *metrics.Manager
	logger  zerolog.Logger

	safetyInterval time.Duration
	startupDelay   time.Duration

	cleaning atomic.Bool

	mu             sync.Mutex
	lastCleanupDay string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCleanupScheduler(
	store repository.RankStore,
	ranking *RankingService,
	days *dayclock.Provider,
	m *metrics.Manager,
	cfg *config.Config,
	logger zerolog.Logger,
) *CleanupScheduler {
	safety, startup := constants.SafetyTrimInterval, constants.StartupCleanupDelay
	if cfg != nil {
		safety, startup = cfg.SafetyTrimInterval, cfg.StartupCleanupDelay
	}
	return &CleanupScheduler{
		store:          store,
		ranking:        ranking,
		days:           days,
		metrics:        m,
		logger:         logger.With().Str("component", "cleanup").Logger(),
		safetyInterval: safety,
		startupDelay:   startup,
	}
}

func (s *CleanupScheduler) LastCleanupDay() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCleanupDay
}

func (s *CleanupScheduler) IsCleaning() bool {
	return s.cleaning.Load()
}

// Start launches the timer loop. It returns immediately.
func (s *CleanupScheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()

	s.logger.Info().
		Dur("safety_interval", s.safetyInterval).
		Dur("startup_delay", s.startupDelay).
		Dur("next_boundary_in", s.days.UntilNextMidnight()).
		Msg("cleanup scheduler started")
}

// Stop cancels the loop and waits for any pass in flight.
func (s *CleanupScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("cleanup scheduler stopped")
}

func (s *CleanupScheduler) loop(ctx context.Context) {
	startup := time.NewTimer(s.startupDelay)
	defer startup.Stop()
	safety := time.NewTicker(s.safetyInterval)
	defer safety.Stop()
	boundary := time.NewTimer(s.days.UntilNextMidnight() + constants.MidnightSlack)
	defer boundary.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-startup.C:
			s.spawn(ctx, s.RunStartup)
		case <-safety.C:
			s.spawn(ctx, s.SafetyTick)
		case <-boundary.C:
			s.spawn(ctx, s.BoundaryTick)
			boundary.Reset(s.days.UntilNextMidnight() + constants.MidnightSlack)
		}
	}
}

func (s *CleanupScheduler) spawn(ctx context.Context, pass func(context.Context) bool) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pass(ctx)
	}()
}

// BoundaryTick runs the daily rollover when the clock is in hour 0 and today
// has not been cleaned yet. It reports whether a pass ran.
func (s *CleanupScheduler) BoundaryTick(ctx context.Context) bool {
	today := s.days.Today()
	if s.days.HourOfDay() != 0 || s.LastCleanupDay() == today {
		return false
	}
	if !s.cleaning.CompareAndSwap(false, true) {
		s.metrics.RecordCleanupSkipped(CleanupKindBoundary)
		s.logger.Debug().Msg("boundary tick dropped, cleanup already running")
		return false
	}
	defer s.cleaning.Store(false)

	if s.LastCleanupDay() == today {
		return false
	}
	s.setLastCleanupDay(today)
	s.runPass(ctx, CleanupKindBoundary, today, true)
	return true
}

// SafetyTick re-trims today's rows without touching lastCleanupDay.
func (s *CleanupScheduler) SafetyTick(ctx context.Context) bool {
	if !s.cleaning.CompareAndSwap(false, true) {
		s.metrics.RecordCleanupSkipped(CleanupKindSafety)
		return false
	}
	defer s.cleaning.Store(false)

	s.runPass(ctx, CleanupKindSafety, s.days.Today(), false)
	return true
}

// RunStartup purges and trims once so downtime across a day boundary heals.
func (s *CleanupScheduler) RunStartup(ctx context.Context) bool {
	if !s.cleaning.CompareAndSwap(false, true) {
		s.metrics.RecordCleanupSkipped(CleanupKindStartup)
		return false
	}
	defer s.cleaning.Store(false)

	today := s.days.Today()
	s.setLastCleanupDay(today)
	s.runPass(ctx, CleanupKindStartup, today, true)
	return true
}

// runPass never returns an error: failures are logged and absorbed so the
// next tick can retry.
func (s *CleanupScheduler) runPass(ctx context.Context, kind, today string, purge bool) {
	ctx, cancel := context.WithTimeout(ctx, constants.CleanupTimeout)
	defer cancel()

	start := time.Now()
	var passErr error

	if purge {
		if _, err := s.purgeStaleDays(ctx, today); err != nil {
			passErr = err
		}
	}

	deleted, err := s.ranking.Trim(ctx, today, kind)
	if err != nil && passErr == nil {
		passErr = err
	}

	s.metrics.RecordCleanup(kind, passErr)
	if passErr != nil {
		s.logger.Error().Err(passErr).Str("kind", kind).Str("today", today).Msg("cleanup pass failed")
		return
	}
	s.logger.Info().
		Str("kind", kind).
		Str("today", today).
		Int64("trimmed", deleted).
		Dur("duration", time.Since(start)).
		Msg("cleanup pass completed")
}

func (s *CleanupScheduler) purgeStaleDays(ctx context.Context, today string) (int64, error) {
	n, err := s.store.DeleteOtherDays(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale days: %w", err)
	}
	s.metrics.RecordPurged(n)
	if n > 0 {
		s.logger.Info().Str("today", today).Int64("purged", n).Msg("stale days purged")
	}
	return n, nil
}

func (s *CleanupScheduler) setLastCleanupDay(day string) {
	s.mu.Lock()
	s.lastCleanupDay = day
	s.mu.Unlock()
}
