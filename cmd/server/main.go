package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"daily-leaderboard/internal/config"
	"daily-leaderboard/internal/constants"
	fxmodules "daily-leaderboard/internal/fx"
	"daily-leaderboard/internal/logger"
	"daily-leaderboard/internal/middleware"
	"daily-leaderboard/internal/server"
	"daily-leaderboard/internal/service"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(applyLogLevel, runServer, startScheduler),
	).Run()
}

func applyLogLevel(cfg *config.Config, log zerolog.Logger) {
	lvl := logger.ApplyLevel(log, cfg.LogLevel)
	log.Info().Str("level", lvl.String()).Msg("log level applied")
}

func startScheduler(lc fx.Lifecycle, scheduler *service.CleanupScheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// ctx only lives for the duration of startup.
			scheduler.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			return nil
		},
	})
}

func runServer(
	lc fx.Lifecycle,
	leaderboard *server.LeaderboardServer,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	srv := newHTTPServer(cfg, leaderboard, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}

func newHTTPServer(cfg *config.Config, leaderboard *server.LeaderboardServer, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	leaderboard.Register(mux)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Origins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", cfg.PlayerHeader, middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           middleware.RequestID(logger)(c.Handler(mux)),
		ReadHeaderTimeout: constants.ReadHeaderTimeout,
		WriteTimeout:      constants.RequestTimeout,
	}
}
