package repository

import (
	"context"

	"daily-leaderboard/internal/domain"
)

// RankStore is the persistence contract of the daily board. Rows are unique
// per (player, record date).
type RankStore interface {
	// UpsertIfHigher atomically creates the row, or overwrites name, role and
	// score when the submitted score is strictly greater than the stored one.
	UpsertIfHigher(ctx context.Context, p domain.UpsertParams) (*domain.RankEntry, domain.UpsertOutcome, error)

	// FindTop orders by score desc, created_at asc.
	FindTop(ctx context.Context, recordDate string, limit int) ([]domain.RankEntry, error)

	// FindOne returns domain.ErrNotFound when absent.
	FindOne(ctx context.Context, playerID, recordDate string) (*domain.RankEntry, error)

	// DeleteOtherDays removes every row whose record date differs from recordDate.
	DeleteOtherDays(ctx context.Context, recordDate string) (int64, error)

	// DeleteNotIn removes rows of recordDate whose id is not in keepIDs.
	DeleteNotIn(ctx context.Context, recordDate string, keepIDs []string) (int64, error)

	Count(ctx context.Context, recordDate string) (int64, error)

	// InTx runs fn against a store bound to one transaction.
	InTx(ctx context.Context, fn func(tx RankStore) error) error

	Ping(ctx context.Context) error
}

var _ RankStore = (*RankRepository)(nil)
