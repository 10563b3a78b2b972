package ingest

import (
	"testing"

	"killfeed-tracker/internal/domain"
)

func TestClassifyFallIsEnvironmental(t *testing.T) {
	ev := Classify(domain.DeathRecord{KillerID: "k1", VictimID: "v1", Cause: "fall"})
	if ev.DeathType != domain.DeathTypeEnvironmental {
		t.Errorf("expected environmental, got %s", ev.DeathType)
	}
}

func TestClassifySuicideWinsRegardlessOfCause(t *testing.T) {
	// killer == victim beats any cause code, including weapons.
	ev := Classify(domain.DeathRecord{KillerID: "p1", VictimID: "p1", Cause: "mk18"})
	if ev.DeathType != domain.DeathTypeSuicide {
		t.Errorf("expected suicide, got %s", ev.DeathType)
	}

	ev = Classify(domain.DeathRecord{KillerID: "", VictimID: "p1", Cause: "fall"})
	if ev.DeathType != domain.DeathTypeSuicide {
		t.Errorf("expected suicide for absent killer, got %s", ev.DeathType)
	}
}

func TestClassifyPlayerVsPlayer(t *testing.T) {
	ev := Classify(domain.DeathRecord{KillerID: "k1", VictimID: "v1", Cause: "mk18"})
	if ev.DeathType != domain.DeathTypePlayerVsPlayer {
		t.Errorf("expected pvp, got %s", ev.DeathType)
	}
}

func TestClassifyVehicle(t *testing.T) {
	ev := Classify(domain.DeathRecord{KillerID: "k1", VictimID: "v1", Cause: "helicopter"})
	if ev.DeathType != domain.DeathTypeVehicle {
		t.Errorf("expected vehicle, got %s", ev.DeathType)
	}
}

func TestClassifyModdedWeaponPrefix(t *testing.T) {
	ev := Classify(domain.DeathRecord{KillerID: "k1", VictimID: "v1", Cause: "Weapon_LaserRifle"})
	if ev.DeathType != domain.DeathTypePlayerVsPlayer {
		t.Errorf("expected pvp for weapon_ prefix, got %s", ev.DeathType)
	}
}

func TestClassifyUnknown(t *testing.T) {
	ev := Classify(domain.DeathRecord{KillerID: "k1", VictimID: "v1", Cause: "mystery"})
	if ev.DeathType != domain.DeathTypeUnknown {
		t.Errorf("expected unknown, got %s", ev.DeathType)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	rec := domain.DeathRecord{KillerID: "k1", VictimID: "v1", Cause: "AKM"}
	first := Classify(rec)
	for i := 0; i < 10; i++ {
		if got := Classify(rec); got.DeathType != first.DeathType {
			t.Fatalf("classification not deterministic: %s vs %s", got.DeathType, first.DeathType)
		}
	}
}
