package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"killfeed-tracker/internal/domain"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(db *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{db: db, logger: logger}
}

func (r *PlayerRepository) Get(ctx context.Context, communityID, playerID string) (*domain.Player, error) {
	var p domain.Player
	err := r.db.QueryRowContext(ctx, `
		SELECT community_id, player_id, name, kill_count, death_count, coin_balance,
			last_active_at, created_at, updated_at
		FROM players WHERE community_id = ? AND player_id = ?`,
		communityID, playerID).
		Scan(&p.CommunityID, &p.PlayerID, &p.Name, &p.KillCount, &p.DeathCount,
			&p.CoinBalance, &p.LastActiveAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreate auto-provisions a player on first sighting within a community.
// The name is refreshed on every call; players rename freely in game.
func (r *PlayerRepository) GetOrCreate(ctx context.Context, communityID, playerID, name string) (*domain.Player, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO players (community_id, player_id, name, last_active_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (community_id, player_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE players.name END,
			updated_at = excluded.updated_at`,
		communityID, playerID, name, now, now, now)
	if err != nil {
		r.logger.Error().Err(err).
			Str("community_id", communityID).
			Str("player_id", playerID).
			Msg("failed to upsert player")
		return nil, err
	}
	return r.Get(ctx, communityID, playerID)
}

// IncrementKill atomically bumps the kill counter. Increments are applied in
// SQL, never read-modify-write, so concurrent server polls touching the same
// player cannot lose updates.
func (r *PlayerRepository) IncrementKill(ctx context.Context, communityID, playerID string, at time.Time) error {
	return r.increment(ctx, communityID, playerID, "kill_count", at)
}

func (r *PlayerRepository) IncrementDeath(ctx context.Context, communityID, playerID string, at time.Time) error {
	return r.increment(ctx, communityID, playerID, "death_count", at)
}

func (r *PlayerRepository) increment(ctx context.Context, communityID, playerID, column string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE players SET `+column+` = `+column+` + 1, last_active_at = ?, updated_at = ?
		WHERE community_id = ? AND player_id = ?`,
		at.UTC(), time.Now().UTC(), communityID, playerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("player not found")
	}
	return nil
}

// AddCoins atomically adjusts the coin balance.
func (r *PlayerRepository) AddCoins(ctx context.Context, communityID, playerID string, amount int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE players SET coin_balance = coin_balance + ?, updated_at = ?
		WHERE community_id = ? AND player_id = ?`,
		amount, time.Now().UTC(), communityID, playerID)
	return err
}

// TouchActive refreshes last-seen activity from non-death log records.
func (r *PlayerRepository) TouchActive(ctx context.Context, communityID, playerID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE players SET last_active_at = ?, updated_at = ?
		WHERE community_id = ? AND player_id = ?`,
		at.UTC(), time.Now().UTC(), communityID, playerID)
	return err
}
