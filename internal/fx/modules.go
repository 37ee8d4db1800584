package fx

import (
	"database/sql"

	"daily-leaderboard/internal/config"
	"daily-leaderboard/internal/database"
	"daily-leaderboard/internal/dayclock"
	"daily-leaderboard/internal/db"
	"daily-leaderboard/internal/logger"
	"daily-leaderboard/internal/metrics"
	"daily-leaderboard/internal/repository"
	"daily-leaderboard/internal/server"
	"daily-leaderboard/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideQueries(sqlDB *sql.DB, cfg *config.Config) *db.Queries {
	return database.NewQueries(sqlDB, cfg)
}

func ProvideMetrics() *metrics.Manager {
	return metrics.NewManager()
}

func ProvideRankStore(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) repository.RankStore {
	return repository.NewRankRepository(sqlDB, queries, logger)
}

func ProvideServer(
	ranking *service.RankingService,
	store repository.RankStore,
	m *metrics.Manager,
	cfg *config.Config,
	logger zerolog.Logger,
) *server.LeaderboardServer {
	return server.NewLeaderboardServer(ranking, store, m, cfg, logger)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(dayclock.NewSystem),
	fx.Provide(ProvideMetrics),
	fx.Provide(database.New),
	fx.Provide(ProvideQueries),
	// repos
	fx.Provide(ProvideRankStore),
	// svc
	fx.Provide(service.NewRankingService),
	fx.Provide(service.NewCleanupScheduler),
	// server
	fx.Provide(ProvideServer),
)
