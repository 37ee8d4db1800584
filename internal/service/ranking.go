package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"daily-leaderboard/internal/constants"
	"daily-leaderboard/internal/dayclock"
	"daily-leaderboard/internal/domain"
	"daily-leaderboard/internal/metrics"
	"daily-leaderboard/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	TrimSourceSubmit   = "submit"
	TrimSourceSafety   = "safety"
	TrimSourceBoundary = "boundary"
	TrimSourceStartup  = "startup"
)

type RankingService struct {
	store   repository.RankStore
	days    *dayclock.Provider
	metrics *metrics.Manager
	logger  zerolog.Logger
}

func NewRankingService(store repository.RankStore, days *dayclock.Provider, m *metrics.Manager, logger zerolog.Logger) *RankingService {
	return &RankingService{store: store, days: days, metrics: m, logger: logger}
}

func (s *RankingService) Today() string {
	return s.days.Today()
}

// Submit records a run for today's board. Only a strictly higher score than
// the stored one writes; anything else returns the stored row with
// Updated=false and skips trimming.
func (s *RankingService) Submit(ctx context.Context, in domain.SubmitInput) (*domain.SubmitResult, error) {
	name := strings.TrimSpace(in.PlayerName)
	roleID := constants.DefaultRoleID
	if in.RoleID != nil {
		roleID = *in.RoleID
	}

	switch {
	case strings.TrimSpace(in.PlayerID) == "":
		s.metrics.RecordSubmission("invalid")
		return nil, fmt.Errorf("%w: player id is required", domain.ErrInvalidArgument)
	case name == "":
		s.metrics.RecordSubmission("invalid")
		return nil, fmt.Errorf("%w: player name is required", domain.ErrInvalidArgument)
	case in.Score < 0:
		s.metrics.RecordSubmission("invalid")
		return nil, fmt.Errorf("%w: score must be a non-negative integer", domain.ErrInvalidArgument)
	case roleID < 0:
		s.metrics.RecordSubmission("invalid")
		return nil, fmt.Errorf("%w: role id must be a non-negative integer", domain.ErrInvalidArgument)
	}

	today := s.days.Today()

	entry, outcome, err := s.store.UpsertIfHigher(ctx, domain.UpsertParams{
		PlayerID:   in.PlayerID,
		RecordDate: today,
		PlayerName: name,
		RoleID:     roleID,
		Score:      in.Score,
		Now:        s.days.Now(),
	})
	if err != nil {
		s.metrics.RecordSubmission("error")
		return nil, fmt.Errorf("failed to submit score: %w", err)
	}
	s.metrics.RecordSubmission(outcome.String())

	result := &domain.SubmitResult{
		PlayerName: entry.PlayerName,
		RoleID:     entry.RoleID,
		Score:      entry.Score,
		Updated:    outcome.Changed(),
		Date:       today,
	}

	if !outcome.Changed() {
		s.logger.Debug().
			Str("player_id", in.PlayerID).
			Int64("submitted", in.Score).
			Int64("stored", entry.Score).
			Msg("score not improved")
		return result, nil
	}

	if _, err := s.Trim(ctx, today, TrimSourceSubmit); err != nil {
		return nil, err
	}

	rank, err := s.PlayerRank(ctx, in.PlayerID, today)
	if err != nil {
		return nil, err
	}
	result.Rank = rank

	s.logger.Info().
		Str("player_id", in.PlayerID).
		Str("outcome", outcome.String()).
		Int64("score", entry.Score).
		Interface("rank", rank).
		Msg("score submitted")

	return result, nil
}

// Trim keeps only the top BoardSize rows of recordDate. The read of the
// window and the delete run in one transaction; a row inserted concurrently
// outside that snapshot may be dropped and is reconciled by the next pass.
func (s *RankingService) Trim(ctx context.Context, recordDate, source string) (int64, error) {
	var deleted int64
	err := s.store.InTx(ctx, func(tx repository.RankStore) error {
		top, err := tx.FindTop(ctx, recordDate, constants.BoardSize)
		if err != nil {
			return err
		}
		if len(top) < constants.BoardSize {
			return nil
		}
		keep := make([]string, len(top))
		for i, e := range top {
			keep[i] = e.ID
		}
		deleted, err = tx.DeleteNotIn(ctx, recordDate, keep)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("record_date", recordDate).Str("source", source).Msg("failed to trim board")
		return 0, fmt.Errorf("failed to trim board: %w", err)
	}

	s.metrics.RecordTrim(source, deleted)
	if deleted > 0 {
		s.logger.Info().Str("record_date", recordDate).Str("source", source).Int64("deleted", deleted).Msg("board trimmed")
	}
	return deleted, nil
}

// PlayerRank returns nil when the player is outside the tracked top window,
// even if a row still exists pending the next trim.
func (s *RankingService) PlayerRank(ctx context.Context, playerID, recordDate string) (*int, error) {
	top, err := s.store.FindTop(ctx, recordDate, constants.BoardSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load board: %w", err)
	}
	return rankWithin(top, playerID), nil
}

func rankWithin(top []domain.RankEntry, playerID string) *int {
	var player *domain.RankEntry
	for i := range top {
		if top[i].PlayerID == playerID {
			player = &top[i]
			break
		}
	}
	if player == nil {
		return nil
	}

	rank := 1
	for _, e := range top {
		if e.Beats(*player) {
			rank++
		}
	}
	return &rank
}

// List returns the board with index-based ranks.
func (s *RankingService) List(ctx context.Context, recordDate string, limit int) ([]domain.RankedEntry, error) {
	top, err := s.listTop(ctx, recordDate, limit)
	if err != nil {
		return nil, err
	}
	return toRanked(top), nil
}

func (s *RankingService) listTop(ctx context.Context, recordDate string, limit int) ([]domain.RankEntry, error) {
	if limit <= 0 || limit > constants.BoardSize {
		limit = constants.BoardSize
	}
	if err := validateDate(recordDate); err != nil {
		return nil, err
	}
	top, err := s.store.FindTop(ctx, recordDate, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load board: %w", err)
	}
	return top, nil
}

func toRanked(top []domain.RankEntry) []domain.RankedEntry {
	out := make([]domain.RankedEntry, len(top))
	for i, e := range top {
		out[i] = domain.RankedEntry{
			Rank:       i + 1,
			PlayerName: e.PlayerName,
			RoleID:     e.RoleID,
			Score:      e.Score,
		}
	}
	return out
}

// Leaderboard is the list call of the API: the board plus the requester's
// own standing when playerID is set. limit only bounds the returned entries;
// the requester's rank is taken from the full top window.
func (s *RankingService) Leaderboard(ctx context.Context, recordDate, playerID string, limit int) (*domain.Leaderboard, error) {
	if err := validateDate(recordDate); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > constants.BoardSize {
		limit = constants.BoardSize
	}

	var (
		top  []domain.RankEntry
		mine *domain.RankEntry
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		top, err = s.listTop(gCtx, recordDate, constants.BoardSize)
		return err
	})
	if playerID != "" {
		g.Go(func() error {
			entry, err := s.store.FindOne(gCtx, playerID, recordDate)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load player entry: %w", err)
			}
			mine = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	window := top
	if len(window) > limit {
		window = window[:limit]
	}
	board := &domain.Leaderboard{
		Entries: toRanked(window),
		Date:    recordDate,
	}
	if playerID == "" {
		return board, nil
	}

	board.MyRank = rankWithin(top, playerID)
	for _, e := range top {
		if e.PlayerID == playerID {
			mine = &e
			break
		}
	}
	if mine != nil {
		score, role := mine.Score, mine.RoleID
		board.MyScore, board.MyRoleID = &score, &role
	}
	return board, nil
}

func (s *RankingService) MyRank(ctx context.Context, playerID, recordDate string) (*domain.MyRank, error) {
	if err := validateDate(recordDate); err != nil {
		return nil, err
	}

	entry, err := s.store.FindOne(ctx, playerID, recordDate)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.MyRank{OnRank: false, Date: recordDate}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player entry: %w", err)
	}

	rank, err := s.PlayerRank(ctx, playerID, recordDate)
	if err != nil {
		return nil, err
	}

	score, role := entry.Score, entry.RoleID
	return &domain.MyRank{
		OnRank:     rank != nil,
		Rank:       rank,
		Score:      &score,
		PlayerName: entry.PlayerName,
		RoleID:     &role,
		Date:       recordDate,
	}, nil
}

func (s *RankingService) Stats(ctx context.Context, recordDate string) (*domain.Stats, error) {
	if err := validateDate(recordDate); err != nil {
		return nil, err
	}

	var (
		total int64
		top   []domain.RankEntry
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.store.Count(gCtx, recordDate)
		if err != nil {
			return fmt.Errorf("failed to count entries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		top, err = s.store.FindTop(gCtx, recordDate, constants.BoardSize)
		if err != nil {
			return fmt.Errorf("failed to load board: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &domain.Stats{
		TotalPlayers: total,
		Top100Count:  len(top),
		Date:         recordDate,
	}
	if len(top) > 0 {
		stats.Top100MinScore = top[len(top)-1].Score
	}
	return stats, nil
}

func validateDate(recordDate string) error {
	if !dayclock.ValidDate(recordDate) {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrInvalidArgument)
	}
	return nil
}
