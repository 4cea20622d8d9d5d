package constants

import "time"

const (
	CatalogCacheTTL = 1 * time.Hour
	PresenceTTL     = 5 * time.Minute
)

const (
	MaxConcurrentUpstream = 3
	CatalogIDLimit        = 1000
	CatalogNameLimit      = 1000
	CatalogLoadAttempts   = 5
	CatalogRetryDelay     = 5 * time.Second
)

const (
	ExternalAPITimeout = 10 * time.Second
	QueueWaitTimeout   = 30 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	BotID           = "bot"
	BotName         = "Bot"
	BattleIDSuffix  = 9
	MaxJitter       = 10.0
	HistoryPageSize = 100
)
