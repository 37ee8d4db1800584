package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"daily-leaderboard/internal/config"
	"daily-leaderboard/internal/dayclock"
	"daily-leaderboard/internal/metrics"
	"daily-leaderboard/internal/repository"
	"daily-leaderboard/internal/service"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

// 23:59 on 2026-05-01 in UTC+8.
var beforeMidnight = time.Date(2026, 5, 1, 15, 59, 0, 0, time.UTC)

func TestCleanupScheduler_DayRollover(t *testing.T) {
	Convey("Given rows for today and older days just before midnight", t, func() {
		h := newHarness(t, beforeMidnight)
		ctx := context.Background()
		h.submit("a", "Ann", 10)
		h.submit("b", "Ben", 20)
		h.seed("old", "2026-04-29", 99)

		Convey("When the boundary tick fires before midnight", func() {
			ran := h.scheduler.BoundaryTick(ctx)

			Convey("Then nothing happens", func() {
				So(ran, ShouldBeFalse)
				So(h.scheduler.LastCleanupDay(), ShouldEqual, "")
				count, _ := h.repo.Count(ctx, "2026-05-01")
				So(count, ShouldEqual, 2)
			})
		})

		Convey("When the clock crosses midnight and the boundary tick fires", func() {
			h.clock.Set(beforeMidnight.Add(90 * time.Second))
			So(h.days.Today(), ShouldEqual, "2026-05-02")
			h.submit("c", "Cal", 5)

			ran := h.scheduler.BoundaryTick(ctx)

			Convey("Then every row of another day is gone", func() {
				So(ran, ShouldBeTrue)
				for _, date := range []string{"2026-05-01", "2026-04-29"} {
					count, err := h.repo.Count(ctx, date)
					So(err, ShouldBeNil)
					So(count, ShouldEqual, 0)
				}
				count, _ := h.repo.Count(ctx, "2026-05-02")
				So(count, ShouldEqual, 1)
			})

			Convey("Then the scheduler is idle with today recorded", func() {
				So(h.scheduler.LastCleanupDay(), ShouldEqual, "2026-05-02")
				So(h.scheduler.IsCleaning(), ShouldBeFalse)
			})

			Convey("And a second boundary tick the same day is a no-op", func() {
				h.seed("late", "2026-05-01", 1)
				So(h.scheduler.BoundaryTick(ctx), ShouldBeFalse)
				count, _ := h.repo.Count(ctx, "2026-05-01")
				So(count, ShouldEqual, 1)
			})
		})

		Convey("When the first tick after midnight lands after hour zero", func() {
			h.clock.Set(beforeMidnight.Add(2 * time.Hour))

			Convey("Then the boundary tick declines and the safety tick only trims", func() {
				So(h.scheduler.BoundaryTick(ctx), ShouldBeFalse)
				So(h.scheduler.SafetyTick(ctx), ShouldBeTrue)
				So(h.scheduler.LastCleanupDay(), ShouldEqual, "")
				count, _ := h.repo.Count(ctx, "2026-04-29")
				So(count, ShouldEqual, 1)
			})
		})
	})
}

func TestCleanupScheduler_Startup(t *testing.T) {
	Convey("Given rows left over from a day the process missed", t, func() {
		h := newHarness(t, morning)
		ctx := context.Background()
		h.seed("gone", "2026-04-30", 5)
		for i := 0; i < 105; i++ {
			h.seed(fmt.Sprintf("p%03d", i), "2026-05-01", int64(i))
		}

		Convey("When the startup pass runs", func() {
			So(h.scheduler.RunStartup(ctx), ShouldBeTrue)

			Convey("Then stale days are purged and today is trimmed", func() {
				So(h.scheduler.LastCleanupDay(), ShouldEqual, "2026-05-01")
				stale, _ := h.repo.Count(ctx, "2026-04-30")
				So(stale, ShouldEqual, 0)
				current, _ := h.repo.Count(ctx, "2026-05-01")
				So(current, ShouldEqual, 100)
			})
		})
	})
}

func TestCleanupScheduler_Failures(t *testing.T) {
	Convey("Given a store that is down", t, func() {
		store := &brokenStore{err: errors.New("connection refused")}
		h := newHarnessWithStore(t, time.Date(2026, 5, 1, 16, 0, 30, 0, time.UTC), store, nil)
		ctx := context.Background()

		Convey("When the boundary tick fires", func() {
			var ran bool
			So(func() { ran = h.scheduler.BoundaryTick(ctx) }, ShouldNotPanic)

			Convey("Then the failure is absorbed and the guard released", func() {
				So(ran, ShouldBeTrue)
				So(h.scheduler.IsCleaning(), ShouldBeFalse)
				So(h.scheduler.LastCleanupDay(), ShouldEqual, "2026-05-02")
				So(store.purges, ShouldEqual, 1)
				So(store.trims, ShouldEqual, 1)
			})

			Convey("And the next safety tick still runs", func() {
				So(h.scheduler.SafetyTick(ctx), ShouldBeTrue)
				So(store.trims, ShouldEqual, 2)
			})
		})
	})
}

func TestCleanupScheduler_SkipIfBusy(t *testing.T) {
	Convey("Given a pass blocked inside the store", t, func() {
		store := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
		h := newHarnessWithStore(t, time.Date(2026, 5, 1, 16, 0, 30, 0, time.UTC), store, nil)
		ctx := context.Background()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.scheduler.SafetyTick(ctx)
		}()
		<-store.entered

		Convey("Then concurrent ticks are dropped rather than queued", func() {
			So(h.scheduler.IsCleaning(), ShouldBeTrue)
			So(h.scheduler.BoundaryTick(ctx), ShouldBeFalse)
			So(h.scheduler.SafetyTick(ctx), ShouldBeFalse)
			So(h.scheduler.RunStartup(ctx), ShouldBeFalse)
			So(h.scheduler.LastCleanupDay(), ShouldEqual, "")

			close(store.release)
			wg.Wait()

			So(h.scheduler.IsCleaning(), ShouldBeFalse)
			So(h.scheduler.BoundaryTick(ctx), ShouldBeTrue)
		})
	})
}

func TestCleanupScheduler_StartStop(t *testing.T) {
	Convey("Given a scheduler with a short startup delay", t, func() {
		h := newHarness(t, morning)
		h.seed("gone", "2026-04-30", 5)

		cfg := config.Defaults()
		cfg.StartupCleanupDelay = 10 * time.Millisecond
		cfg.SafetyTrimInterval = time.Hour
		days := dayclock.New(h.clock)
		m := metrics.NewManager()
		scheduler := service.NewCleanupScheduler(h.repo, h.ranking, days, m, &cfg, zerolog.Nop())

		Convey("When it is started", func() {
			scheduler.Start(context.Background())

			deadline := time.Now().Add(5 * time.Second)
			for (scheduler.LastCleanupDay() == "" || scheduler.IsCleaning()) && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			scheduler.Stop()

			Convey("Then the startup pass has run", func() {
				So(scheduler.LastCleanupDay(), ShouldEqual, "2026-05-01")
				So(scheduler.IsCleaning(), ShouldBeFalse)
				count, _ := h.repo.Count(context.Background(), "2026-04-30")
				So(count, ShouldEqual, 0)
			})
		})
	})
}

type brokenStore struct {
	repository.RankStore
	err    error
	mu     sync.Mutex
	purges int
	trims  int
}

func (s *brokenStore) DeleteOtherDays(context.Context, string) (int64, error) {
	s.mu.Lock()
	s.purges++
	s.mu.Unlock()
	return 0, s.err
}

func (s *brokenStore) InTx(context.Context, func(repository.RankStore) error) error {
	s.mu.Lock()
	s.trims++
	s.mu.Unlock()
	return s.err
}

type blockingStore struct {
	repository.RankStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) DeleteOtherDays(context.Context, string) (int64, error) {
	return 0, nil
}

func (s *blockingStore) InTx(ctx context.Context, _ func(repository.RankStore) error) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return nil
}
