package domain

import (
	"time"
)

// RankEntry is one player's row on one day's board.
type RankEntry struct {
	ID         string // nanoid
	PlayerID   string
	RecordDate string // YYYY-MM-DD, UTC+8
	PlayerName string
	RoleID     int
	Score      int64
	CreatedAt  time.Time // first submission of the day, tie-break only
	UpdatedAt  time.Time
}

// Beats reports whether e orders strictly ahead of other.
func (e RankEntry) Beats(other RankEntry) bool {
	if e.Score != other.Score {
		return e.Score > other.Score
	}
	return e.CreatedAt.Before(other.CreatedAt)
}

type UpsertOutcome int

const (
	OutcomeNotImproved UpsertOutcome = iota
	OutcomeCreated
	OutcomeImproved
)

func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeImproved:
		return "improved"
	default:
		return "not_improved"
	}
}

// Changed is true when the stored row was written.
func (o UpsertOutcome) Changed() bool {
	return o == OutcomeCreated || o == OutcomeImproved
}

type UpsertParams struct {
	PlayerID   string
	RecordDate string
	PlayerName string
	RoleID     int
	Score      int64
	Now        time.Time
}

type SubmitInput struct {
	PlayerID   string
	PlayerName string
	RoleID     *int
	Score      int64
}

type SubmitResult struct {
	PlayerName string `json:"playerName"`
	RoleID     int    `json:"roleId"`
	Score      int64  `json:"score"`
	Rank       *int   `json:"rank"`
	Updated    bool   `json:"updated"`
	Date       string `json:"date"`
}

type RankedEntry struct {
	Rank       int    `json:"rank"`
	PlayerName string `json:"playerName"`
	RoleID     int    `json:"roleId"`
	Score      int64  `json:"score"`
}

type Leaderboard struct {
	Entries  []RankedEntry `json:"entries"`
	MyRank   *int          `json:"myRank"`
	MyScore  *int64        `json:"myScore"`
	MyRoleID *int          `json:"myRoleId"`
	Date     string        `json:"date"`
}

type MyRank struct {
	OnRank     bool   `json:"onRank"`
	Rank       *int   `json:"rank,omitempty"`
	Score      *int64 `json:"score,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	RoleID     *int   `json:"roleId,omitempty"`
	Date       string `json:"date"`
}

type Stats struct {
	TotalPlayers   int64  `json:"totalPlayers"`
	Top100MinScore int64  `json:"top100MinScore"`
	Top100Count    int    `json:"top100Count"`
	Date           string `json:"date"`
}
