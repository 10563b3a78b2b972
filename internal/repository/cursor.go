package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"killfeed-tracker/internal/domain"
)

type CursorRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCursorRepository(db *sql.DB, logger zerolog.Logger) *CursorRepository {
	return &CursorRepository{db: db, logger: logger}
}

// Get returns the stored cursor, or nil when this file has never been
// polled for this server.
func (r *CursorRepository) Get(ctx context.Context, communityID, serverID, fileID string) (*domain.Cursor, error) {
	var c domain.Cursor
	err := r.db.QueryRowContext(ctx, `
		SELECT community_id, server_id, file_id, byte_offset, fingerprint, advanced_at
		FROM cursors WHERE community_id = ? AND server_id = ? AND file_id = ?`,
		communityID, serverID, fileID).
		Scan(&c.CommunityID, &c.ServerID, &c.FileID, &c.Offset, &c.Fingerprint, &c.AdvancedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Advance persists a new offset and fingerprint. Offsets only move forward
// here; rotation resets go through Reset.
func (r *CursorRepository) Advance(ctx context.Context, c *domain.Cursor) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (community_id, server_id, file_id, byte_offset, fingerprint, advanced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (community_id, server_id, file_id) DO UPDATE SET
			byte_offset = excluded.byte_offset,
			fingerprint = excluded.fingerprint,
			advanced_at = excluded.advanced_at`,
		c.CommunityID, c.ServerID, c.FileID, c.Offset, c.Fingerprint, now)
	if err != nil {
		r.logger.Error().Err(err).
			Str("community_id", c.CommunityID).
			Str("server_id", c.ServerID).
			Str("file_id", c.FileID).
			Int64("offset", c.Offset).
			Msg("failed to advance cursor")
		return err
	}
	c.AdvancedAt = now
	return nil
}

// Reset zeroes the cursor for a rotated file.
func (r *CursorRepository) Reset(ctx context.Context, communityID, serverID, fileID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cursors SET byte_offset = 0, fingerprint = '', advanced_at = ?
		WHERE community_id = ? AND server_id = ? AND file_id = ?`,
		time.Now().UTC(), communityID, serverID, fileID)
	return err
}

// ResetForServer wipes every cursor of a server so the next poll reprocesses
// all files from the start. Used by the administrative reprocess operation.
func (r *CursorRepository) ResetForServer(ctx context.Context, communityID, serverID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cursors WHERE community_id = ? AND server_id = ?`,
		communityID, serverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PruneOrphans deletes cursors whose server no longer exists. Runs once at
// startup.
func (r *CursorRepository) PruneOrphans(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cursors WHERE NOT EXISTS (
			SELECT 1 FROM servers s
			WHERE s.community_id = cursors.community_id AND s.server_id = cursors.server_id
		)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
