package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"killfeed-tracker/internal/constants"
)

type Config struct {
	DBPath              string
	AdminPort           string
	LogLevel            string
	KillfeedInterval    time.Duration
	ServerStatsInterval time.Duration
	FactionSyncInterval time.Duration
	WorkerPoolSize      int
	OfflineThreshold    int
	CoinsPerKill        int64
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:              getEnv("DB_PATH", "killfeed.db"),
		AdminPort:           getEnv("ADMIN_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		KillfeedInterval:    getEnvDuration("KILLFEED_POLL_INTERVAL", constants.KillfeedPollInterval),
		ServerStatsInterval: getEnvDuration("SERVER_STATS_INTERVAL", constants.ServerStatsInterval),
		FactionSyncInterval: getEnvDuration("FACTION_SYNC_INTERVAL", constants.FactionSyncInterval),
		WorkerPoolSize:      getEnvInt("WORKER_POOL_SIZE", constants.WorkerPoolSize),
		OfflineThreshold:    getEnvInt("OFFLINE_THRESHOLD", constants.OfflineThreshold),
		CoinsPerKill:        int64(getEnvInt("COINS_PER_KILL", constants.CoinsPerKill)),
	}

	if cfg.WorkerPoolSize < 1 {
		return nil, fmt.Errorf("WORKER_POOL_SIZE must be at least 1")
	}
	if cfg.OfflineThreshold < 1 {
		return nil, fmt.Errorf("OFFLINE_THRESHOLD must be at least 1")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("admin_port", cfg.AdminPort).
		Str("log_level", cfg.LogLevel).
		Dur("killfeed_interval", cfg.KillfeedInterval).
		Dur("server_stats_interval", cfg.ServerStatsInterval).
		Dur("faction_sync_interval", cfg.FactionSyncInterval).
		Int("worker_pool_size", cfg.WorkerPoolSize).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
