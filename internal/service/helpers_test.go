package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"daily-leaderboard/internal/config"
	"daily-leaderboard/internal/database"
	"daily-leaderboard/internal/dayclock"
	"daily-leaderboard/internal/db"
	"daily-leaderboard/internal/domain"
	"daily-leaderboard/internal/metrics"
	"daily-leaderboard/internal/repository"
	"daily-leaderboard/internal/service"

	"github.com/rs/zerolog"
)

// 10:00 on 2026-05-01 in UTC+8.
var morning = time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)

type harness struct {
	clock     *dayclock.ManualClock
	days      *dayclock.Provider
	repo      *repository.RankRepository
	ranking   *service.RankingService
	scheduler *service.CleanupScheduler
}

func newHarness(t *testing.T, start time.Time) *harness {
	t.Helper()
	sqlDB, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "board.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	repo := repository.NewRankRepository(sqlDB, db.New(sqlDB, db.DialectSQLite), zerolog.Nop())
	return newHarnessWithStore(t, start, repo, repo)
}

func newHarnessWithStore(t *testing.T, start time.Time, store repository.RankStore, repo *repository.RankRepository) *harness {
	t.Helper()
	clock := dayclock.NewManualClock(start)
	days := dayclock.New(clock)
	m := metrics.NewManager()
	ranking := service.NewRankingService(store, days, m, zerolog.Nop())
	cfg := config.Defaults()
	return &harness{
		clock:     clock,
		days:      days,
		repo:      repo,
		ranking:   ranking,
		scheduler: service.NewCleanupScheduler(store, ranking, days, m, &cfg, zerolog.Nop()),
	}
}

func (h *harness) submit(player, name string, score int64) *domain.SubmitResult {
	h.clock.Advance(time.Millisecond)
	res, err := h.ranking.Submit(context.Background(), domain.SubmitInput{
		PlayerID:   player,
		PlayerName: name,
		Score:      score,
	})
	if err != nil {
		panic(err)
	}
	return res
}

// seed writes directly through the store, bypassing submit-time trimming.
func (h *harness) seed(player, date string, score int64) {
	h.clock.Advance(time.Millisecond)
	_, _, err := h.repo.UpsertIfHigher(context.Background(), domain.UpsertParams{
		PlayerID:   player,
		RecordDate: date,
		PlayerName: "seed-" + player,
		RoleID:     1,
		Score:      score,
		Now:        h.clock.Now(),
	})
	if err != nil {
		panic(err)
	}
}

func intp(v int) *int { return &v }
