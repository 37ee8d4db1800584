package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"daily-leaderboard/internal/db"
	"daily-leaderboard/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type RankRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewRankRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *RankRepository {
	return &RankRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// UpsertIfHigher creates the row or raises its score. A submission that does
// not beat the stored score leaves the row untouched and reports
// OutcomeNotImproved together with the stored row.
func (r *RankRepository) UpsertIfHigher(ctx context.Context, p domain.UpsertParams) (*domain.RankEntry, domain.UpsertOutcome, error) {
	entry, outcome, err := r.upsertIfHigher(ctx, p)
	if errors.Is(err, domain.ErrNotFound) {
		// Trimmed between the upsert and the read; the row is gone, so this insert wins.
		r.logger.Debug().Str("player_id", p.PlayerID).Str("record_date", p.RecordDate).Msg("unimproved entry vanished, retrying upsert")
		entry, outcome, err = r.upsertIfHigher(ctx, p)
	}
	if err != nil {
		return nil, domain.OutcomeNotImproved, err
	}
	return entry, outcome, nil
}

func (r *RankRepository) upsertIfHigher(ctx context.Context, p domain.UpsertParams) (*domain.RankEntry, domain.UpsertOutcome, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, domain.OutcomeNotImproved, fmt.Errorf("failed to generate nanoid: %w", err)
	}

	row, err := r.queries.UpsertRankEntryIfHigher(ctx, db.UpsertRankEntryIfHigherParams{
		ID:         id,
		PlayerID:   p.PlayerID,
		RecordDate: p.RecordDate,
		PlayerName: p.PlayerName,
		RoleID:     int64(p.RoleID),
		Score:      p.Score,
		Now:        p.Now.UnixNano(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := r.FindOne(ctx, p.PlayerID, p.RecordDate)
		if err != nil {
			return nil, domain.OutcomeNotImproved, fmt.Errorf("failed to load unimproved entry: %w", err)
		}
		return existing, domain.OutcomeNotImproved, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Str("player_id", p.PlayerID).Str("record_date", p.RecordDate).Msg("failed to upsert rank entry")
		return nil, domain.OutcomeNotImproved, fmt.Errorf("failed to upsert rank entry: %w", err)
	}

	outcome := domain.OutcomeImproved
	if row.ID == id {
		outcome = domain.OutcomeCreated
	}
	entry := toDomain(row)
	return &entry, outcome, nil
}

// FindTop returns up to limit rows ordered by score desc, created_at asc.
func (r *RankRepository) FindTop(ctx context.Context, recordDate string, limit int) ([]domain.RankEntry, error) {
	rows, err := r.queries.ListTopRankEntries(ctx, db.ListTopRankEntriesParams{
		RecordDate: recordDate,
		Limit:      int64(limit),
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.RankEntry, len(rows))
	for i, row := range rows {
		result[i] = toDomain(row)
	}
	return result, nil
}

// FindOne returns domain.ErrNotFound when the player has no row for the day.
func (r *RankRepository) FindOne(ctx context.Context, playerID, recordDate string) (*domain.RankEntry, error) {
	row, err := r.queries.GetRankEntry(ctx, db.GetRankEntryParams{
		PlayerID:   playerID,
		RecordDate: recordDate,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	entry := toDomain(row)
	return &entry, nil
}

func (r *RankRepository) DeleteOtherDays(ctx context.Context, recordDate string) (int64, error) {
	n, err := r.queries.DeleteRankEntriesOutsideDay(ctx, recordDate)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale days: %w", err)
	}
	r.logger.Debug().Str("record_date", recordDate).Int64("deleted", n).Msg("purged rows of other days")
	return n, nil
}

func (r *RankRepository) DeleteNotIn(ctx context.Context, recordDate string, keepIDs []string) (int64, error) {
	n, err := r.queries.DeleteRankEntriesNotIn(ctx, recordDate, keepIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rows outside keep set: %w", err)
	}
	return n, nil
}

func (r *RankRepository) Count(ctx context.Context, recordDate string) (int64, error) {
	return r.queries.CountRankEntries(ctx, recordDate)
}

// InTx runs fn against a repository bound to a single transaction. The
// transaction commits only when fn returns nil.
func (r *RankRepository) InTx(ctx context.Context, fn func(tx RankStore) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txRepo := &RankRepository{
		queries: r.queries.WithTx(tx),
		db:      r.db,
		logger:  r.logger,
	}
	if err := fn(txRepo); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *RankRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func toDomain(row db.RankEntry) domain.RankEntry {
	return domain.RankEntry{
		ID:         row.ID,
		PlayerID:   row.PlayerID,
		RecordDate: row.RecordDate,
		PlayerName: row.PlayerName,
		RoleID:     int(row.RoleID),
		Score:      row.Score,
		CreatedAt:  time.Unix(0, row.CreatedAt),
		UpdatedAt:  time.Unix(0, row.UpdatedAt),
	}
}
