package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"poke-arena/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	ServerPort     string
	LogLevel       string
	LogFile        string
	PokeAPIBaseURL string
	DBPath         string

	CacheEnabled    bool
	CacheTTL        time.Duration
	MaxConcurrent   int
	UpstreamTimeout time.Duration
	QueueTimeout    time.Duration

	PresenceTTL    time.Duration
	CatalogIDLimit int
}

// LoadEnvFile reads .env into the environment without overriding variables
// that are already set. It is safe to call more than once.
func LoadEnvFile() error {
	return godotenv.Load()
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := LoadEnvFile(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		ServerPort:     getEnv("SERVER_PORT", "3000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        os.Getenv("LOG_FILE"),
		PokeAPIBaseURL: getEnv("POKEAPI_BASE_URL", "https://pokeapi.co/api/v2"),
		DBPath:         getEnv("DB_PATH", ":memory:"),
	}

	var err error
	if cfg.CacheEnabled, err = getBool("ENABLE_CACHING", true); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", constants.CatalogCacheTTL); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrent, err = getInt("MAX_CONCURRENT_REQUESTS", constants.MaxConcurrentUpstream); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = getDuration("UPSTREAM_TIMEOUT", constants.ExternalAPITimeout); err != nil {
		return nil, err
	}
	if cfg.QueueTimeout, err = getDuration("QUEUE_TIMEOUT", constants.QueueWaitTimeout); err != nil {
		return nil, err
	}
	if cfg.PresenceTTL, err = getDuration("PRESENCE_TTL", constants.PresenceTTL); err != nil {
		return nil, err
	}
	if cfg.CatalogIDLimit, err = getInt("MAX_POKEMON_FETCH", constants.CatalogIDLimit); err != nil {
		return nil, err
	}

	if cfg.MaxConcurrent < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_REQUESTS must be at least 1, got %d", cfg.MaxConcurrent)
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("log_file", cfg.LogFile).
		Str("pokeapi_base_url", cfg.PokeAPIBaseURL).
		Bool("cache_enabled", cfg.CacheEnabled).
		Dur("cache_ttl", cfg.CacheTTL).
		Int("max_concurrent", cfg.MaxConcurrent).
		Dur("presence_ttl", cfg.PresenceTTL).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

var Module = fx.Provide(Load)
