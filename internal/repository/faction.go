package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"killfeed-tracker/internal/domain"
)

type FactionRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewFactionRepository(db *sql.DB, logger zerolog.Logger) *FactionRepository {
	return &FactionRepository{db: db, logger: logger}
}

func (r *FactionRepository) Get(ctx context.Context, communityID, factionID string) (*domain.Faction, error) {
	var f domain.Faction
	err := r.db.QueryRowContext(ctx, `
		SELECT community_id, faction_id, name, total_kills, total_deaths, total_coins,
			last_active_at, synced_at, created_at, updated_at
		FROM factions WHERE community_id = ? AND faction_id = ?`,
		communityID, factionID).
		Scan(&f.CommunityID, &f.FactionID, &f.Name, &f.TotalKills, &f.TotalDeaths,
			&f.TotalCoins, &f.LastActiveAt, &f.SyncedAt, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	members, err := r.Members(ctx, communityID, factionID)
	if err != nil {
		return nil, err
	}
	f.MemberIDs = members
	return &f, nil
}

func (r *FactionRepository) ListIDs(ctx context.Context, communityID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT faction_id FROM factions WHERE community_id = ? ORDER BY faction_id`,
		communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *FactionRepository) Members(ctx context.Context, communityID, factionID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT player_id FROM faction_members
		WHERE community_id = ? AND faction_id = ? ORDER BY player_id`,
		communityID, factionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// FactionOf returns the faction a player belongs to, or "" when unaffiliated.
func (r *FactionRepository) FactionOf(ctx context.Context, communityID, playerID string) (string, error) {
	var factionID string
	err := r.db.QueryRowContext(ctx, `
		SELECT faction_id FROM faction_members
		WHERE community_id = ? AND player_id = ?`,
		communityID, playerID).Scan(&factionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return factionID, err
}

// SumMemberStats computes the live totals across all current members.
func (r *FactionRepository) SumMemberStats(ctx context.Context, communityID, factionID string) (kills, deaths, coins int64, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.kill_count), 0), COALESCE(SUM(p.death_count), 0), COALESCE(SUM(p.coin_balance), 0)
		FROM faction_members m
		JOIN players p ON p.community_id = m.community_id AND p.player_id = m.player_id
		WHERE m.community_id = ? AND m.faction_id = ?`,
		communityID, factionID).Scan(&kills, &deaths, &coins)
	return kills, deaths, coins, err
}

// ReplaceTotals overwrites aggregates with freshly computed sums.
func (r *FactionRepository) ReplaceTotals(ctx context.Context, communityID, factionID string, kills, deaths, coins int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE factions SET total_kills = ?, total_deaths = ?, total_coins = ?, synced_at = ?, updated_at = ?
		WHERE community_id = ? AND faction_id = ?`,
		kills, deaths, coins, now, now, communityID, factionID)
	return err
}

// ApplyDelta adjusts aggregates incrementally on membership changes.
// Subtractions clamp at zero so stale player data cannot drive totals
// negative.
func (r *FactionRepository) ApplyDelta(ctx context.Context, communityID, factionID string, kills, deaths, coins int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE factions SET
			total_kills = MAX(total_kills + ?, 0),
			total_deaths = MAX(total_deaths + ?, 0),
			total_coins = MAX(total_coins + ?, 0),
			updated_at = ?
		WHERE community_id = ? AND faction_id = ?`,
		kills, deaths, coins, now, communityID, factionID)
	return err
}

func (r *FactionRepository) TouchActive(ctx context.Context, communityID, factionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE factions SET last_active_at = ?, updated_at = ?
		WHERE community_id = ? AND faction_id = ?`,
		at.UTC(), time.Now().UTC(), communityID, factionID)
	return err
}

func (r *FactionRepository) Upsert(ctx context.Context, f *domain.Faction) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO factions (community_id, faction_id, name, total_kills, total_deaths, total_coins,
			last_active_at, synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (community_id, faction_id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at`,
		f.CommunityID, f.FactionID, f.Name, f.TotalKills, f.TotalDeaths, f.TotalCoins,
		now, now, now, now)
	return err
}

func (r *FactionRepository) AddMember(ctx context.Context, communityID, factionID, playerID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO faction_members (community_id, faction_id, player_id, joined_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (community_id, faction_id, player_id) DO NOTHING`,
		communityID, factionID, playerID, time.Now().UTC())
	return err
}

func (r *FactionRepository) RemoveMember(ctx context.Context, communityID, factionID, playerID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM faction_members
		WHERE community_id = ? AND faction_id = ? AND player_id = ?`,
		communityID, factionID, playerID)
	return err
}
