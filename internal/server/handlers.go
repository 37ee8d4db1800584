package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"daily-leaderboard/internal/constants"
	"daily-leaderboard/internal/domain"
	"daily-leaderboard/internal/middleware"
)

var (
	errMissingPlayer = errors.New("player identity header is required")
	errBadBody       = errors.New("request body must be a JSON object")
)

type submitRequest struct {
	PlayerName string       `json:"playerName"`
	RoleID     *json.Number `json:"roleId"`
	Score      json.Number  `json:"score"`
}

func (req submitRequest) toInput(playerID string) (domain.SubmitInput, error) {
	in := domain.SubmitInput{PlayerID: playerID, PlayerName: req.PlayerName}

	if req.Score == "" {
		return in, errors.New("score is required")
	}
	score, err := strconv.ParseInt(req.Score.String(), 10, 64)
	if err != nil || score < 0 {
		return in, errors.New("score must be a non-negative integer")
	}
	in.Score = score

	if req.RoleID != nil {
		role, err := strconv.Atoi(req.RoleID.String())
		if err != nil || role < 0 {
			return in, errors.New("roleId must be a non-negative integer")
		}
		in.RoleID = &role
	}
	return in, nil
}

// POST /api/rank/submit
func (s *LeaderboardServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.GetPlayerID(r.Context())
	if playerID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", errMissingPlayer)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errBadBody)
		return
	}
	in, err := req.toInput(playerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	res, err := s.ranking.Submit(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/rank/list?date=&limit=
func (s *LeaderboardServer) handleList(w http.ResponseWriter, r *http.Request) {
	limit := constants.BoardSize
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > constants.BoardSize {
			writeError(w, http.StatusBadRequest, "bad_request",
				fmt.Errorf("limit must be an integer between 1 and %d", constants.BoardSize))
			return
		}
		limit = n
	}

	board, err := s.ranking.Leaderboard(r.Context(), s.dateParam(r), middleware.GetPlayerID(r.Context()), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// GET /api/rank/me?date=
func (s *LeaderboardServer) handleMyRank(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.GetPlayerID(r.Context())
	if playerID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", errMissingPlayer)
		return
	}

	me, err := s.ranking.MyRank(r.Context(), playerID, s.dateParam(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// GET /api/rank/stats?date=
func (s *LeaderboardServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ranking.Stats(r.Context(), s.dateParam(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *LeaderboardServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.requestLogger(r).Warn().Err(err).Msg("health check failed")
		writeError(w, http.StatusServiceUnavailable, "unavailable", errors.New("database unreachable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dateParam defaults to the current record date. Validation is left to the
// service so every read path rejects malformed dates the same way.
func (s *LeaderboardServer) dateParam(r *http.Request) string {
	if d := strings.TrimSpace(r.URL.Query().Get("date")); d != "" {
		return d
	}
	return s.ranking.Today()
}
