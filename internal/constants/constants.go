package constants

import "time"

const (
	KillfeedPollInterval = 15 * time.Second
	ServerStatsInterval  = 60 * time.Second
	FactionSyncInterval  = 5 * time.Minute
	PollTimeout          = 30 * time.Second
	StatusRequestTimeout = 10 * time.Second
	DatabaseTimeout      = 5 * time.Second
)

const (
	WorkerPoolSize        = 8
	OfflineThreshold      = 3
	FingerprintWindow     = 64
	CursorAdvanceAttempts = 2 // initial attempt plus one retry
	CoinsPerKill          = 10
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
	FeedBufferSize  = 256
)
