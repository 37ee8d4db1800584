package database

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"daily-leaderboard/internal/config"
	"daily-leaderboard/internal/constants"
	"daily-leaderboard/internal/db"

	_ "github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// sqliteDriver is go-sqlite3 with connectPragmas run on every new pooled
// connection.
const sqliteDriver = "sqlite3_leaderboard"

// Per-connection settings the DSN cannot carry.
var connectPragmas = []struct {
	name  string
	value string
}{
	{"temp_store", "MEMORY"},
	{"mmap_size", "268435456"}, // https://sqlite.org/mmap.html
}

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, pragma := range connectPragmas {
				if _, err := conn.Exec(fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value), nil); err != nil {
					return fmt.Errorf("failed to set PRAGMA %s: %w", pragma.name, err)
				}
			}
			return nil
		},
	})
}

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	return Open(cfg.DBDriver, cfg.DBDSN, logger)
}

// Open connects to driver, tunes the engine and applies pending migrations.
func Open(driver, dsn string, logger zerolog.Logger) (*sql.DB, error) {
	logger.Info().Str("driver", driver).Msg("connecting to database")

	sqlDriver := driver
	if driver == "sqlite3" {
		sqlDriver, dsn = sqliteDriver, sqliteDSN(dsn)
	}

	sqlDB, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB.SetMaxOpenConns(constants.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(constants.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	if err := runMigrations(sqlDB, driver, logger); err != nil {
		sqlDB.Close()
		logger.Error().Err(err).Msg("failed to run migrations")
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Str("driver", driver).Msg("database connection established")
	return sqlDB, nil
}

// Dialect maps a driver name onto the query layer's placeholder style.
func Dialect(driver string) db.Dialect {
	if driver == "postgres" {
		return db.DialectPostgres
	}
	return db.DialectSQLite
}

func NewQueries(sqlDB *sql.DB, cfg *config.Config) *db.Queries {
	return db.New(sqlDB, Dialect(cfg.DBDriver))
}

// sqliteDSN takes the write lock at BEGIN, waits on a busy database instead of
// failing and applies the engine tuning, on every pooled connection.
func sqliteDSN(path string) string {
	params := []string{
		"_txlock=immediate",
		fmt.Sprintf("_busy_timeout=%d", constants.DBBusyTimeoutMS),
		"_journal_mode=WAL",
		"_synchronous=NORMAL",
		fmt.Sprintf("_cache_size=%d", constants.DBCacheSizeKiB),
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + strings.Join(params, "&")
}

func runMigrations(sqlDB *sql.DB, driver string, logger zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	logger.Info().Msg("migrations completed successfully")
	return nil
}
