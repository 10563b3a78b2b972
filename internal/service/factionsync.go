package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"killfeed-tracker/internal/domain"
)

// FactionSync keeps faction aggregates consistent with member stats. A
// full sync recomputes totals from the membership roster; membership
// changes apply incremental deltas between syncs. Concurrent sync requests
// for the same faction coalesce into a single recompute.
type FactionSync struct {
	factions FactionStore
	logger   zerolog.Logger
	interval time.Duration

	group singleflight.Group

	mu    sync.Mutex
	dirty map[string]factionKey

	done chan struct{}
	wg   sync.WaitGroup
}

type factionKey struct {
	communityID string
	factionID   string
}

func (k factionKey) String() string {
	return k.communityID + "/" + k.factionID
}

func NewFactionSync(factions FactionStore, interval time.Duration, logger zerolog.Logger) *FactionSync {
	return &FactionSync{
		factions: factions,
		logger:   logger,
		interval: interval,
		dirty:    make(map[string]factionKey),
		done:     make(chan struct{}),
	}
}

// MarkDirty schedules a faction for recompute on the next sync pass.
func (s *FactionSync) MarkDirty(communityID, factionID string) {
	key := factionKey{communityID: communityID, factionID: factionID}

	s.mu.Lock()
	s.dirty[key.String()] = key
	s.mu.Unlock()
}

// SyncFaction recomputes a faction's totals from its current members.
// Duplicate concurrent calls for the same faction share one execution.
func (s *FactionSync) SyncFaction(ctx context.Context, communityID, factionID string) error {
	key := factionKey{communityID: communityID, factionID: factionID}

	_, err, _ := s.group.Do(key.String(), func() (any, error) {
		kills, deaths, coins, err := s.factions.SumMemberStats(ctx, communityID, factionID)
		if err != nil {
			return nil, fmt.Errorf("sum member stats: %w", err)
		}
		if err := s.factions.ReplaceTotals(ctx, communityID, factionID, kills, deaths, coins); err != nil {
			return nil, fmt.Errorf("replace totals: %w", err)
		}

		s.logger.Debug().
			Str("community_id", communityID).
			Str("faction_id", factionID).
			Int64("kills", kills).
			Int64("deaths", deaths).
			Int64("coins", coins).
			Msg("faction totals synced")
		return nil, nil
	})
	return err
}

// SyncAllForCommunity recomputes every faction in a community. Failures
// are logged per faction and the pass continues.
func (s *FactionSync) SyncAllForCommunity(ctx context.Context, communityID string) error {
	ids, err := s.factions.ListIDs(ctx, communityID)
	if err != nil {
		return fmt.Errorf("list factions: %w", err)
	}

	var failed int
	for _, id := range ids {
		if err := s.SyncFaction(ctx, communityID, id); err != nil {
			failed++
			s.logger.Error().Err(err).
				Str("community_id", communityID).
				Str("faction_id", id).
				Msg("faction sync failed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d faction syncs failed", failed, len(ids))
	}
	return nil
}

// AddPlayerStats folds a joining player's stats into the faction totals.
func (s *FactionSync) AddPlayerStats(ctx context.Context, communityID, factionID string, p *domain.Player) error {
	return s.factions.ApplyDelta(ctx, communityID, factionID, p.KillCount, p.DeathCount, p.CoinBalance)
}

// RemovePlayerStats subtracts a departing player's stats, clamping each
// total at zero so a stale snapshot cannot drive aggregates negative.
func (s *FactionSync) RemovePlayerStats(ctx context.Context, communityID, factionID string, p *domain.Player) error {
	f, err := s.factions.Get(ctx, communityID, factionID)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("faction %s/%s not found", communityID, factionID)
	}

	kills := clampSub(f.TotalKills, p.KillCount)
	deaths := clampSub(f.TotalDeaths, p.DeathCount)
	coins := clampSub(f.TotalCoins, p.CoinBalance)
	return s.factions.ReplaceTotals(ctx, communityID, factionID, kills, deaths, coins)
}

func clampSub(total, delta int64) int64 {
	if delta >= total {
		return 0
	}
	return total - delta
}

// Start launches the periodic pass that drains the dirty set.
func (s *FactionSync) Start() {
	s.wg.Add(1)
	go s.loop()
}

func (s *FactionSync) Stop() {
	close(s.done)
	s.wg.Wait()
}

func (s *FactionSync) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.drainDirty()
		}
	}
}

func (s *FactionSync) drainDirty() {
	s.mu.Lock()
	batch := s.dirty
	s.dirty = make(map[string]factionKey)
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	for _, key := range batch {
		if err := s.SyncFaction(ctx, key.communityID, key.factionID); err != nil {
			s.logger.Error().Err(err).
				Str("community_id", key.communityID).
				Str("faction_id", key.factionID).
				Msg("dirty faction sync failed, re-queueing")
			s.MarkDirty(key.communityID, key.factionID)
		}
	}
}
