package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"daily-leaderboard/internal/api"
	"daily-leaderboard/internal/constants"
	"daily-leaderboard/internal/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPlayers     = 250
	defaultSubmissions = 5000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultRunTimeout  = 10 * time.Minute
	maxScore           = 100000
)

type config struct {
	baseURL      string
	playerHeader string
	players      int
	submissions  int
	workers      int
	timeout      time.Duration
}

func main() {
	var cfg config
	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "Base URL of the service")
	flag.StringVar(&cfg.playerHeader, "header", api.DefaultPlayerHeader, "Player identity header")
	flag.IntVar(&cfg.players, "players", defaultPlayers, "Number of synthetic players")
	flag.IntVar(&cfg.submissions, "submissions", defaultSubmissions, "Total score submissions")
	flag.IntVar(&cfg.workers, "workers", runtime.NumCPU()*defaultWorkers, "Concurrent workers")
	flag.DurationVar(&cfg.timeout, "timeout", defaultTimeout, "Per-request timeout")
	flag.Parse()

	log := logger.New()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("loadgen failed")
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, log zerolog.Logger) error {
	if cfg.players <= 0 || cfg.submissions <= 0 || cfg.workers <= 0 {
		return fmt.Errorf("players, submissions and workers must be positive")
	}

	client := api.NewClient(cfg.baseURL, api.WithPlayerHeader(cfg.playerHeader), api.WithMaxConns(cfg.workers))

	runID := uuid.New().String()[:8]
	players := make([]string, cfg.players)
	for i := range players {
		players[i] = fmt.Sprintf("lg-%s-%04d", runID, i)
	}

	var (
		mu       sync.Mutex
		best     = make(map[string]int64, cfg.players)
		improved atomic.Int64
	)

	start := time.Now()
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for i := 0; i < cfg.submissions; i++ {
		player := players[rand.IntN(len(players))]
		score := rand.Int64N(maxScore)
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(gCtx, cfg.timeout)
			defer cancel()

			res, err := client.Submit(reqCtx, player, api.SubmitRequest{PlayerName: player, Score: score})
			if err != nil {
				return fmt.Errorf("submit %s: %w", player, err)
			}
			if res.Updated {
				improved.Add(1)
			}

			mu.Lock()
			if prev, ok := best[player]; !ok || score > prev {
				best[player] = score
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	log.Info().
		Int("submissions", cfg.submissions).
		Int64("improved", improved.Load()).
		Dur("elapsed", elapsed).
		Float64("rps", float64(cfg.submissions)/elapsed.Seconds()).
		Msg("submissions finished")

	reqCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()
	board, err := client.List(reqCtx, "", "", constants.BoardSize)
	if err != nil {
		return fmt.Errorf("fetch board: %w", err)
	}
	if err := verifyBoard(board.Entries, best); err != nil {
		return err
	}

	stats, err := client.Stats(reqCtx, board.Date)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	log.Info().
		Str("date", board.Date).
		Int("entries", len(board.Entries)).
		Int64("total_players", stats.TotalPlayers).
		Int64("min_score", stats.Top100MinScore).
		Msg("board verified")
	return nil
}
