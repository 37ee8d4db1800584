package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"daily-leaderboard/internal/config"
	"daily-leaderboard/internal/domain"
	"daily-leaderboard/internal/metrics"
	"daily-leaderboard/internal/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	SubmitPath  = "/api/rank/submit"
	ListPath    = "/api/rank/list"
	MyRankPath  = "/api/rank/me"
	StatsPath   = "/api/rank/stats"
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// Ranking is the slice of the ranking service the handlers call.
type Ranking interface {
	Today() string
	Submit(ctx context.Context, in domain.SubmitInput) (*domain.SubmitResult, error)
	Leaderboard(ctx context.Context, recordDate, playerID string, limit int) (*domain.Leaderboard, error)
	MyRank(ctx context.Context, playerID, recordDate string) (*domain.MyRank, error)
	Stats(ctx context.Context, recordDate string) (*domain.Stats, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type LeaderboardServer struct {
	ranking      Ranking
	db           Pinger
	metrics      *metrics.Manager
	playerHeader string
	logger       zerolog.Logger
}

func NewLeaderboardServer(ranking Ranking, db Pinger, m *metrics.Manager, cfg *config.Config, logger zerolog.Logger) *LeaderboardServer {
	return &LeaderboardServer{
		ranking:      ranking,
		db:           db,
		metrics:      m,
		playerHeader: cfg.PlayerHeader,
		logger:       logger,
	}
}

// Register attaches every route to mux.
func (s *LeaderboardServer) Register(mux *http.ServeMux) {
	identity := middleware.PlayerIdentity(s.playerHeader)

	mux.Handle("POST "+SubmitPath, middleware.Metrics(s.metrics, "submit", identity(http.HandlerFunc(s.handleSubmit))))
	mux.Handle("GET "+ListPath, middleware.Metrics(s.metrics, "list", identity(http.HandlerFunc(s.handleList))))
	mux.Handle("GET "+MyRankPath, middleware.Metrics(s.metrics, "me", identity(http.HandlerFunc(s.handleMyRank))))
	mux.Handle("GET "+StatsPath, middleware.Metrics(s.metrics, "stats", http.HandlerFunc(s.handleStats)))
	mux.Handle("GET "+HealthPath, middleware.Metrics(s.metrics, "healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET "+MetricsPath, promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError hides internal failures behind a generic 500.
func (s *LeaderboardServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	s.requestLogger(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal_error", nil)
}

func (s *LeaderboardServer) requestLogger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}
