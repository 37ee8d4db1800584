package db

import (
	"context"
	"strings"
)

type RankEntry struct {
	ID         string
	PlayerID   string
	RecordDate string
	PlayerName string
	RoleID     int64
	Score      int64
	CreatedAt  int64
	UpdatedAt  int64
}

const rankEntryColumns = `id, player_id, record_date, player_name, role_id, score, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRankEntry(row rowScanner) (RankEntry, error) {
	var i RankEntry
	err := row.Scan(
		&i.ID,
		&i.PlayerID,
		&i.RecordDate,
		&i.PlayerName,
		&i.RoleID,
		&i.Score,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertRankEntryIfHigher = `
INSERT INTO rank_entries (` + rankEntryColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (player_id, record_date) DO UPDATE SET
    player_name = excluded.player_name,
    role_id     = excluded.role_id,
    score       = excluded.score,
    updated_at  = excluded.updated_at
WHERE excluded.score > rank_entries.score
RETURNING ` + rankEntryColumns

type UpsertRankEntryIfHigherParams struct {
	ID         string
	PlayerID   string
	RecordDate string
	PlayerName string
	RoleID     int64
	Score      int64
	Now        int64
}

// UpsertRankEntryIfHigher returns sql.ErrNoRows when a row exists and the new
// score does not beat it.
func (q *Queries) UpsertRankEntryIfHigher(ctx context.Context, arg UpsertRankEntryIfHigherParams) (RankEntry, error) {
	row := q.db.QueryRowContext(ctx, q.rebind(upsertRankEntryIfHigher),
		arg.ID,
		arg.PlayerID,
		arg.RecordDate,
		arg.PlayerName,
		arg.RoleID,
		arg.Score,
		arg.Now,
		arg.Now,
	)
	return scanRankEntry(row)
}

const getRankEntry = `
SELECT ` + rankEntryColumns + `
FROM rank_entries
WHERE player_id = ? AND record_date = ?`

type GetRankEntryParams struct {
	PlayerID   string
	RecordDate string
}

func (q *Queries) GetRankEntry(ctx context.Context, arg GetRankEntryParams) (RankEntry, error) {
	row := q.db.QueryRowContext(ctx, q.rebind(getRankEntry), arg.PlayerID, arg.RecordDate)
	return scanRankEntry(row)
}

const listTopRankEntries = `
SELECT ` + rankEntryColumns + `
FROM rank_entries
WHERE record_date = ?
ORDER BY score DESC, created_at ASC, id ASC
LIMIT ?`

type ListTopRankEntriesParams struct {
	RecordDate string
	Limit      int64
}

func (q *Queries) ListTopRankEntries(ctx context.Context, arg ListTopRankEntriesParams) ([]RankEntry, error) {
	rows, err := q.db.QueryContext(ctx, q.rebind(listTopRankEntries), arg.RecordDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RankEntry
	for rows.Next() {
		i, err := scanRankEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countRankEntries = `
SELECT COUNT(*) FROM rank_entries WHERE record_date = ?`

func (q *Queries) CountRankEntries(ctx context.Context, recordDate string) (int64, error) {
	row := q.db.QueryRowContext(ctx, q.rebind(countRankEntries), recordDate)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteRankEntriesOutsideDay = `
DELETE FROM rank_entries WHERE record_date <> ?`

func (q *Queries) DeleteRankEntriesOutsideDay(ctx context.Context, recordDate string) (int64, error) {
	result, err := q.db.ExecContext(ctx, q.rebind(deleteRankEntriesOutsideDay), recordDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteRankEntriesForDay = `
DELETE FROM rank_entries WHERE record_date = ?`

// DeleteRankEntriesNotIn removes rows of recordDate whose id is not in keep.
// An empty keep set clears the whole day.
func (q *Queries) DeleteRankEntriesNotIn(ctx context.Context, recordDate string, keep []string) (int64, error) {
	query := deleteRankEntriesForDay
	args := make([]interface{}, 0, len(keep)+1)
	args = append(args, recordDate)
	if len(keep) > 0 {
		query += ` AND id NOT IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(keep)), ", ") + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}
	result, err := q.db.ExecContext(ctx, q.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
