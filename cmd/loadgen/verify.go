package main

import (
	"fmt"

	"daily-leaderboard/internal/constants"
	"daily-leaderboard/internal/domain"
)

// verifyBoard checks ordering and rank numbering of a fetched board, and that
// each of this run's players holds its best submitted score. best is keyed by
// player name; entries from other writers are only checked for ordering.
func verifyBoard(entries []domain.RankedEntry, best map[string]int64) error {
	if len(entries) > constants.BoardSize {
		return fmt.Errorf("board has %d entries, want at most %d", len(entries), constants.BoardSize)
	}

	onBoard := make(map[string]int64, len(entries))
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d", i, e.Rank)
		}
		if i > 0 && entries[i-1].Score < e.Score {
			return fmt.Errorf("rank %d score %d above rank %d score %d", e.Rank, e.Score, entries[i-1].Rank, entries[i-1].Score)
		}
		onBoard[e.PlayerName] = e.Score
	}

	full := len(entries) == constants.BoardSize
	var floor int64
	if full {
		floor = entries[len(entries)-1].Score
	}

	for player, want := range best {
		got, ok := onBoard[player]
		if ok && got != want {
			return fmt.Errorf("player %s stored %d, best submitted %d", player, got, want)
		}
		if !ok && (!full || want > floor) {
			return fmt.Errorf("player %s with score %d missing from board", player, want)
		}
	}
	return nil
}
