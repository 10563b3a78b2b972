package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"killfeed-tracker/internal/api"
	"killfeed-tracker/internal/domain"
)

// StatusFetcher resolves a server's live status from its status endpoint.
type StatusFetcher interface {
	Fetch(ctx context.Context, url string) (*api.ServerStatus, error)
}

// StatsService refreshes player counts on the slower server-stats cadence.
// It runs independently of killfeed polling so a slow status endpoint
// never delays log ingestion.
type StatsService struct {
	servers ServerStore
	client  StatusFetcher
	logger  zerolog.Logger
}

func NewStatsService(servers ServerStore, client StatusFetcher, logger zerolog.Logger) *StatsService {
	return &StatsService{servers: servers, client: client, logger: logger}
}

// Refresh queries one server's status endpoint and stores the result.
// Servers without a status URL are skipped.
func (s *StatsService) Refresh(ctx context.Context, srv *domain.Server) error {
	if srv.StatusURL == "" {
		return nil
	}

	status, err := s.client.Fetch(ctx, srv.StatusURL)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("community_id", srv.CommunityID).
			Str("server_id", srv.ServerID).
			Msg("status fetch failed")
		return fmt.Errorf("fetch status for %s: %w", srv.ServerID, err)
	}

	if err := s.servers.UpdateStatus(ctx, srv.CommunityID, srv.ServerID, status.Players, status.MaxPlayers); err != nil {
		return fmt.Errorf("store status for %s: %w", srv.ServerID, err)
	}

	s.logger.Debug().
		Str("server_id", srv.ServerID).
		Int("players", status.Players).
		Int("max_players", status.MaxPlayers).
		Msg("server status refreshed")
	return nil
}
