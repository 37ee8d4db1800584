package constants

import "time"

const (
	BoardSize        = 100
	DefaultRoleID    = 1
	DateLayout       = "2006-01-02"
	DayOffsetSeconds = 8 * 60 * 60
)

const (
	SafetyTrimInterval  = 5 * time.Minute
	StartupCleanupDelay = 5 * time.Second
	MidnightSlack       = time.Second
)

const (
	DatabaseTimeout   = 5 * time.Second
	ReadHeaderTimeout = 5 * time.Second
	RequestTimeout    = 30 * time.Second
	CleanupTimeout    = 2 * time.Minute
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBusyTimeoutMS   = 5000
	DBCacheSizeKiB    = -64000
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	MaxRequestBodyBytes = 1 << 16
)
