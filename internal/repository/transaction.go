package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"killfeed-tracker/internal/domain"
)

type TransactionRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTransactionRepository(db *sql.DB, logger zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, logger: logger}
}

// Insert appends an immutable ledger entry.
func (r *TransactionRepository) Insert(ctx context.Context, txn *domain.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, community_id, player_id, amount, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.CommunityID, txn.PlayerID, txn.Amount, txn.Reason, txn.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).
			Str("community_id", txn.CommunityID).
			Str("player_id", txn.PlayerID).
			Int64("amount", txn.Amount).
			Msg("failed to insert transaction")
	}
	return err
}

func (r *TransactionRepository) ListByPlayer(ctx context.Context, communityID, playerID string, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, community_id, player_id, amount, reason, created_at
		FROM transactions
		WHERE community_id = ? AND player_id = ?
		ORDER BY created_at DESC LIMIT ?`,
		communityID, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.CommunityID, &t.PlayerID, &t.Amount, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
