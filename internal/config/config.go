package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"daily-leaderboard/internal/constants"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	EnvPrefix     = "LB_"
	ConfigFileEnv = "LB_CONFIG"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

type Config struct {
	ServerPort          string        `koanf:"server_port"`
	LogLevel            string        `koanf:"log_level"`
	DBDriver            string        `koanf:"db_driver"`
	DBDSN               string        `koanf:"db_dsn"`
	PlayerHeader        string        `koanf:"player_header"`
	AllowedOrigins      string        `koanf:"allowed_origins"`
	SafetyTrimInterval  time.Duration `koanf:"safety_trim_interval"`
	StartupCleanupDelay time.Duration `koanf:"startup_cleanup_delay"`
}

func Defaults() Config {
	return Config{
		ServerPort:          "8080",
		LogLevel:            "info",
		DBDriver:            "sqlite3",
		DBDSN:               "leaderboard.db",
		PlayerHeader:        "X-Player-Id",
		AllowedOrigins:      "*",
		SafetyTrimInterval:  constants.SafetyTrimInterval,
		StartupCleanupDelay: constants.StartupCleanupDelay,
	}
}

// Load layers defaults, an optional YAML file named by LB_CONFIG and LB_* env
// vars, in that order of precedence.
func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	k := koanf.New(".")

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_driver", cfg.DBDriver).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("player_header", cfg.PlayerHeader).
		Dur("safety_trim_interval", cfg.SafetyTrimInterval).
		Dur("startup_cleanup_delay", cfg.StartupCleanupDelay).
		Msg("configuration loaded")

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ServerPort) == "":
		return fmt.Errorf("%w: server_port is required", ErrInvalidConfig)
	case c.DBDriver != "sqlite3" && c.DBDriver != "postgres":
		return fmt.Errorf("%w: unsupported db_driver %q", ErrInvalidConfig, c.DBDriver)
	case strings.TrimSpace(c.DBDSN) == "":
		return fmt.Errorf("%w: db_dsn is required", ErrInvalidConfig)
	case strings.TrimSpace(c.PlayerHeader) == "":
		return fmt.Errorf("%w: player_header is required", ErrInvalidConfig)
	case c.SafetyTrimInterval <= 0:
		return fmt.Errorf("%w: safety_trim_interval must be positive", ErrInvalidConfig)
	case c.StartupCleanupDelay < 0:
		return fmt.Errorf("%w: startup_cleanup_delay must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

var Module = fx.Provide(Load)
