package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"killfeed-tracker/internal/domain"
)

// DirtyMarker flags a faction whose aggregates have drifted from member
// stats. The faction sync loop drains the flags on its next pass.
type DirtyMarker interface {
	MarkDirty(communityID, factionID string)
}

// Aggregator turns classified events into durable stat mutations. Every
// mutation is an atomic per-entity increment so two servers crediting the
// same player concurrently cannot lose counts.
type Aggregator struct {
	players      PlayerStore
	factions     FactionStore
	transactions TransactionStore
	dirty        DirtyMarker
	coinsPerKill int64
	logger       zerolog.Logger
}

func NewAggregator(
	players PlayerStore,
	factions FactionStore,
	transactions TransactionStore,
	dirty DirtyMarker,
	coinsPerKill int64,
	logger zerolog.Logger,
) *Aggregator {
	return &Aggregator{
		players:      players,
		factions:     factions,
		transactions: transactions,
		dirty:        dirty,
		coinsPerKill: coinsPerKill,
		logger:       logger,
	}
}

// Apply records one death event. The victim's death always counts; the
// killer is credited with a kill and a coin award only for player-versus-
// player deaths. Any store error aborts immediately so the caller can hold
// the cursor back and replay the batch.
func (a *Aggregator) Apply(ctx context.Context, communityID, serverID string, ev domain.ClassifiedEvent) error {
	if _, err := a.players.GetOrCreate(ctx, communityID, ev.VictimID, ev.VictimName); err != nil {
		return fmt.Errorf("provision victim %s: %w", ev.VictimID, err)
	}
	if err := a.players.IncrementDeath(ctx, communityID, ev.VictimID, ev.Timestamp); err != nil {
		return fmt.Errorf("count death for %s: %w", ev.VictimID, err)
	}
	a.markFactionDirty(ctx, communityID, ev.VictimID)

	if ev.DeathType != domain.DeathTypePlayerVsPlayer {
		return nil
	}

	if _, err := a.players.GetOrCreate(ctx, communityID, ev.KillerID, ev.KillerName); err != nil {
		return fmt.Errorf("provision killer %s: %w", ev.KillerID, err)
	}
	if err := a.players.IncrementKill(ctx, communityID, ev.KillerID, ev.Timestamp); err != nil {
		return fmt.Errorf("count kill for %s: %w", ev.KillerID, err)
	}

	if a.coinsPerKill > 0 {
		txn := &domain.Transaction{
			ID:          uuid.NewString(),
			CommunityID: communityID,
			PlayerID:    ev.KillerID,
			Amount:      a.coinsPerKill,
			Reason:      "kill_reward",
			CreatedAt:   ev.Timestamp,
		}
		if err := a.transactions.Insert(ctx, txn); err != nil {
			return fmt.Errorf("record kill reward for %s: %w", ev.KillerID, err)
		}
		if err := a.players.AddCoins(ctx, communityID, ev.KillerID, a.coinsPerKill); err != nil {
			return fmt.Errorf("award coins to %s: %w", ev.KillerID, err)
		}
	}
	a.markFactionDirty(ctx, communityID, ev.KillerID)

	a.logger.Debug().
		Str("community_id", communityID).
		Str("server_id", serverID).
		Str("killer_id", ev.KillerID).
		Str("victim_id", ev.VictimID).
		Str("death_type", string(ev.DeathType)).
		Msg("pvp kill credited")
	return nil
}

// ApplyActivity handles the non-death records that still prove a player was
// present: connects, disconnects and chat lines.
func (a *Aggregator) ApplyActivity(ctx context.Context, communityID string, rec *domain.ServerRecord) error {
	if rec.PlayerID == "" {
		return nil
	}
	if _, err := a.players.GetOrCreate(ctx, communityID, rec.PlayerID, rec.PlayerName); err != nil {
		return fmt.Errorf("provision player %s: %w", rec.PlayerID, err)
	}
	if err := a.players.TouchActive(ctx, communityID, rec.PlayerID, rec.Timestamp); err != nil {
		return fmt.Errorf("touch player %s: %w", rec.PlayerID, err)
	}
	return nil
}

func (a *Aggregator) markFactionDirty(ctx context.Context, communityID, playerID string) {
	factionID, err := a.factions.FactionOf(ctx, communityID, playerID)
	if err != nil {
		a.logger.Warn().Err(err).
			Str("community_id", communityID).
			Str("player_id", playerID).
			Msg("failed to resolve faction for dirty marking")
		return
	}
	if factionID == "" {
		return
	}
	a.dirty.MarkDirty(communityID, factionID)
}
