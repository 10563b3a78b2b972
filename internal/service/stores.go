package service

import (
	"context"
	"time"

	"killfeed-tracker/internal/domain"
)

// Store contracts consumed by the pipeline services. The sqlite
// repositories satisfy them; tests substitute in-memory fakes. Every
// increment method must be atomic per entity.

type ServerStore interface {
	List(ctx context.Context) ([]domain.Server, error)
	Get(ctx context.Context, communityID, serverID string) (*domain.Server, error)
	SetOnline(ctx context.Context, communityID, serverID string, online bool) error
	UpdateStatus(ctx context.Context, communityID, serverID string, playerCount, maxPlayers int) error
}

type CursorStore interface {
	Get(ctx context.Context, communityID, serverID, fileID string) (*domain.Cursor, error)
	Advance(ctx context.Context, c *domain.Cursor) error
	Reset(ctx context.Context, communityID, serverID, fileID string) error
	ResetForServer(ctx context.Context, communityID, serverID string) (int64, error)
}

type PlayerStore interface {
	GetOrCreate(ctx context.Context, communityID, playerID, name string) (*domain.Player, error)
	IncrementKill(ctx context.Context, communityID, playerID string, at time.Time) error
	IncrementDeath(ctx context.Context, communityID, playerID string, at time.Time) error
	AddCoins(ctx context.Context, communityID, playerID string, amount int64) error
	TouchActive(ctx context.Context, communityID, playerID string, at time.Time) error
}

type FactionStore interface {
	Get(ctx context.Context, communityID, factionID string) (*domain.Faction, error)
	ListIDs(ctx context.Context, communityID string) ([]string, error)
	FactionOf(ctx context.Context, communityID, playerID string) (string, error)
	SumMemberStats(ctx context.Context, communityID, factionID string) (kills, deaths, coins int64, err error)
	ReplaceTotals(ctx context.Context, communityID, factionID string, kills, deaths, coins int64) error
	ApplyDelta(ctx context.Context, communityID, factionID string, kills, deaths, coins int64) error
	TouchActive(ctx context.Context, communityID, factionID string, at time.Time) error
}

type TransactionStore interface {
	Insert(ctx context.Context, txn *domain.Transaction) error
}
