package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"killfeed-tracker/internal/domain"
)

type ServerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewServerRepository(db *sql.DB, logger zerolog.Logger) *ServerRepository {
	return &ServerRepository{db: db, logger: logger}
}

const serverColumns = `community_id, server_id, name, host, credential_id, log_dirs, status_url,
	online, player_count, max_players, last_seen_at, created_at, updated_at`

func (r *ServerRepository) Get(ctx context.Context, communityID, serverID string) (*domain.Server, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE community_id = ? AND server_id = ?`,
		communityID, serverID)
	srv, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return srv, err
}

func (r *ServerRepository) List(ctx context.Context) ([]domain.Server, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+serverColumns+` FROM servers ORDER BY community_id, server_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectServers(rows)
}

func (r *ServerRepository) ListByCommunity(ctx context.Context, communityID string) ([]domain.Server, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE community_id = ? ORDER BY server_id`,
		communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectServers(rows)
}

func (r *ServerRepository) Upsert(ctx context.Context, srv *domain.Server) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO servers (community_id, server_id, name, host, credential_id, log_dirs, status_url,
			online, player_count, max_players, last_seen_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (community_id, server_id) DO UPDATE SET
			name = excluded.name,
			host = excluded.host,
			credential_id = excluded.credential_id,
			log_dirs = excluded.log_dirs,
			status_url = excluded.status_url,
			updated_at = excluded.updated_at`,
		srv.CommunityID, srv.ServerID, srv.Name, srv.Host, srv.CredentialID,
		strings.Join(srv.LogDirs, ","), srv.StatusURL,
		srv.Online, srv.PlayerCount, srv.MaxPlayers, srv.LastSeenAt, now, now)
	if err != nil {
		r.logger.Error().Err(err).
			Str("community_id", srv.CommunityID).
			Str("server_id", srv.ServerID).
			Msg("failed to upsert server")
	}
	return err
}

// SetOnline flips the online flag; lastSeen is only written when coming
// online so the stored value keeps pointing at the last successful contact.
func (r *ServerRepository) SetOnline(ctx context.Context, communityID, serverID string, online bool) error {
	now := time.Now().UTC()
	var err error
	if online {
		_, err = r.db.ExecContext(ctx, `
			UPDATE servers SET online = 1, last_seen_at = ?, updated_at = ?
			WHERE community_id = ? AND server_id = ?`,
			now, now, communityID, serverID)
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE servers SET online = 0, updated_at = ?
			WHERE community_id = ? AND server_id = ?`,
			now, communityID, serverID)
	}
	return err
}

func (r *ServerRepository) UpdateStatus(ctx context.Context, communityID, serverID string, playerCount, maxPlayers int) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE servers SET player_count = ?, max_players = ?, online = 1, last_seen_at = ?, updated_at = ?
		WHERE community_id = ? AND server_id = ?`,
		playerCount, maxPlayers, now, now, communityID, serverID)
	return err
}

type serverScanner interface {
	Scan(dest ...any) error
}

func scanServer(row serverScanner) (*domain.Server, error) {
	var srv domain.Server
	var logDirs string
	var lastSeen sql.NullTime
	err := row.Scan(&srv.CommunityID, &srv.ServerID, &srv.Name, &srv.Host, &srv.CredentialID,
		&logDirs, &srv.StatusURL, &srv.Online, &srv.PlayerCount, &srv.MaxPlayers,
		&lastSeen, &srv.CreatedAt, &srv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if logDirs != "" {
		srv.LogDirs = strings.Split(logDirs, ",")
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		srv.LastSeenAt = &t
	}
	return &srv, nil
}

func collectServers(rows *sql.Rows) ([]domain.Server, error) {
	var servers []domain.Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, *srv)
	}
	return servers, rows.Err()
}
