package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"killfeed-tracker/internal/domain"
)

func newTestAggregator() (*Aggregator, *fakePlayers, *fakeFactions, *fakeTransactions, *fakeDirty) {
	players := newFakePlayers()
	factions := newFakeFactions(players)
	txns := &fakeTransactions{}
	dirty := &fakeDirty{}
	agg := NewAggregator(players, factions, txns, dirty, 10, zerolog.Nop())
	return agg, players, factions, txns, dirty
}

func pvpEvent(killerID, victimID string) domain.ClassifiedEvent {
	return domain.ClassifiedEvent{
		DeathRecord: domain.DeathRecord{
			Timestamp:  time.Now(),
			KillerID:   killerID,
			KillerName: "Killer",
			VictimID:   victimID,
			VictimName: "Victim",
			Cause:      "weapon_m4",
		},
		DeathType: domain.DeathTypePlayerVsPlayer,
	}
}

func TestApplyPvPKill(t *testing.T) {
	agg, players, _, txns, _ := newTestAggregator()

	if err := agg.Apply(context.Background(), "c1", "s1", pvpEvent("k1", "v1")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	kills, _, coins := players.stats("c1", "k1")
	if kills != 1 {
		t.Errorf("killer kills = %d, want 1", kills)
	}
	if coins != 10 {
		t.Errorf("killer coins = %d, want 10", coins)
	}
	_, deaths, _ := players.stats("c1", "v1")
	if deaths != 1 {
		t.Errorf("victim deaths = %d, want 1", deaths)
	}
	if txns.count() != 1 {
		t.Errorf("transactions = %d, want 1", txns.count())
	}
}

func TestApplyNonPvPCountsVictimOnly(t *testing.T) {
	agg, players, _, txns, _ := newTestAggregator()

	ev := pvpEvent("v1", "v1")
	ev.DeathType = domain.DeathTypeSuicide
	if err := agg.Apply(context.Background(), "c1", "s1", ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	kills, deaths, coins := players.stats("c1", "v1")
	if kills != 0 || deaths != 1 || coins != 0 {
		t.Errorf("stats = (%d, %d, %d), want (0, 1, 0)", kills, deaths, coins)
	}
	if txns.count() != 0 {
		t.Errorf("transactions = %d, want 0", txns.count())
	}
}

func TestApplyUnknownDeathStillCounts(t *testing.T) {
	agg, players, _, _, _ := newTestAggregator()

	ev := pvpEvent("k1", "v1")
	ev.DeathType = domain.DeathTypeUnknown
	if err := agg.Apply(context.Background(), "c1", "s1", ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	_, deaths, _ := players.stats("c1", "v1")
	if deaths != 1 {
		t.Errorf("victim deaths = %d, want 1", deaths)
	}
	kills, _, _ := players.stats("c1", "k1")
	if kills != 0 {
		t.Errorf("killer kills = %d, want 0", kills)
	}
}

func TestApplyStoreErrorAborts(t *testing.T) {
	agg, players, _, txns, _ := newTestAggregator()
	players.deathErr = fmt.Errorf("disk full")

	if err := agg.Apply(context.Background(), "c1", "s1", pvpEvent("k1", "v1")); err == nil {
		t.Fatal("expected error when death count fails")
	}

	kills, _, _ := players.stats("c1", "k1")
	if kills != 0 {
		t.Errorf("killer kills = %d, want 0 after aborted event", kills)
	}
	if txns.count() != 0 {
		t.Errorf("transactions = %d, want 0 after aborted event", txns.count())
	}
}

func TestApplyMarksFactionsDirty(t *testing.T) {
	agg, players, factions, _, dirty := newTestAggregator()
	players.put(&domain.Player{CommunityID: "c1", PlayerID: "k1"})
	players.put(&domain.Player{CommunityID: "c1", PlayerID: "v1"})
	factions.put(&domain.Faction{CommunityID: "c1", FactionID: "red", MemberIDs: []string{"k1"}})
	factions.put(&domain.Faction{CommunityID: "c1", FactionID: "blue", MemberIDs: []string{"v1"}})

	if err := agg.Apply(context.Background(), "c1", "s1", pvpEvent("k1", "v1")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := map[string]bool{"c1/red": true, "c1/blue": true}
	for _, m := range dirty.marked {
		delete(want, m)
	}
	if len(want) != 0 {
		t.Errorf("factions not marked dirty: %v", want)
	}
}

func TestApplyActivityTouchesPlayer(t *testing.T) {
	agg, players, _, _, _ := newTestAggregator()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &domain.ServerRecord{Timestamp: at, Tag: "CONNECT", PlayerID: "p1", PlayerName: "Echo"}
	if err := agg.ApplyActivity(context.Background(), "c1", rec); err != nil {
		t.Fatalf("ApplyActivity: %v", err)
	}

	p, err := players.Get(context.Background(), "c1", "p1")
	if err != nil || p == nil {
		t.Fatalf("player not provisioned: %v", err)
	}
	if !p.LastActiveAt.Equal(at) {
		t.Errorf("LastActiveAt = %v, want %v", p.LastActiveAt, at)
	}
}
