package fx

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"killfeed-tracker/internal/api"
	"killfeed-tracker/internal/config"
	"killfeed-tracker/internal/database"
	"killfeed-tracker/internal/feed"
	"killfeed-tracker/internal/logger"
	"killfeed-tracker/internal/remote"
	"killfeed-tracker/internal/repository"
	"killfeed-tracker/internal/server"
	"killfeed-tracker/internal/service"
)

// ProvideCredentials resolves server credential references from the
// environment: FTP_CREDENTIALS_<ID> holds "user:password".
func ProvideCredentials() remote.CredentialFunc {
	return func(credentialID string) (string, string, error) {
		key := "FTP_CREDENTIALS_" + strings.ToUpper(credentialID)
		user, pass, ok := strings.Cut(os.Getenv(key), ":")
		if !ok || user == "" {
			return "", "", fmt.Errorf("no credentials configured under %s", key)
		}
		return user, pass, nil
	}
}

func ProvideSource(src *remote.FTPSource) remote.Source { return src }

func ProvideNotifier(bus *feed.Bus) feed.Notifier { return bus }

func ProvideFactionSync(factions *repository.FactionRepository, cfg *config.Config, logger zerolog.Logger) *service.FactionSync {
	return service.NewFactionSync(factions, cfg.FactionSyncInterval, logger)
}

func ProvideAggregator(
	players *repository.PlayerRepository,
	factions *repository.FactionRepository,
	transactions *repository.TransactionRepository,
	factionSync *service.FactionSync,
	cfg *config.Config,
	logger zerolog.Logger,
) *service.Aggregator {
	return service.NewAggregator(players, factions, transactions, factionSync, cfg.CoinsPerKill, logger)
}

func ProvidePoller(
	servers *repository.ServerRepository,
	cursors *repository.CursorRepository,
	source remote.Source,
	agg *service.Aggregator,
	notifier feed.Notifier,
	cfg *config.Config,
	logger zerolog.Logger,
) *service.Poller {
	return service.NewPoller(servers, cursors, source, agg, notifier, cfg.OfflineThreshold, logger)
}

func ProvideStatsService(servers *repository.ServerRepository, client *api.StatusClient, logger zerolog.Logger) *service.StatsService {
	return service.NewStatsService(servers, client, logger)
}

func ProvideScheduler(
	servers *repository.ServerRepository,
	poller *service.Poller,
	stats *service.StatsService,
	cfg *config.Config,
	logger zerolog.Logger,
) *service.Scheduler {
	return service.NewScheduler(servers, poller, stats, cfg, logger)
}

func ProvideAdminServer(
	factionSync *service.FactionSync,
	poller *service.Poller,
	servers *repository.ServerRepository,
	source remote.Source,
	logger zerolog.Logger,
) *server.AdminServer {
	return server.NewAdminServer(factionSync, poller, servers, source, logger)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewServerRepository),
	fx.Provide(repository.NewCursorRepository),
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewFactionRepository),
	fx.Provide(repository.NewTransactionRepository),
	// remote transport
	fx.Provide(ProvideCredentials),
	fx.Provide(remote.NewFTPSource),
	fx.Provide(ProvideSource),
	// status client
	fx.Provide(api.NewStatusClient),
	// killfeed bus
	fx.Provide(feed.NewBus),
	fx.Provide(ProvideNotifier),
	// svc
	fx.Provide(ProvideFactionSync),
	fx.Provide(ProvideAggregator),
	fx.Provide(ProvidePoller),
	fx.Provide(ProvideStatsService),
	fx.Provide(ProvideScheduler),
	// server
	fx.Provide(ProvideAdminServer),
)
