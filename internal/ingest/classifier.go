package ingest

import (
	"strings"

	"killfeed-tracker/internal/domain"
)

// Classification is data-driven: membership of the cause code in one of the
// sets below, evaluated through the ordered rule table. New cause codes are
// added to a set, not to control flow.

var environmentalCauses = causeSet(
	"fall", "falldamage", "drowning", "drown", "radiation", "starvation",
	"dehydration", "bleeding", "hypothermia", "fire", "burns", "zone",
	"landmine", "beartrap",
)

var vehicleCauses = causeSet(
	"vehicle", "car", "truck", "helicopter", "heli", "boat", "runover",
	"transport",
)

var weaponCauses = causeSet(
	"mk18", "m4a1", "akm", "ak74", "mosin", "sks", "svd", "shotgun",
	"pistol", "magnum", "crossbow", "knife", "machete", "axe", "grenade",
	"melee", "fists", "bow",
)

type classifierRule struct {
	name      string
	deathType domain.DeathType
	applies   func(r *domain.DeathRecord) bool
}

// rules is evaluated in order; the first match wins. Anything unmatched
// falls through to Unknown.
var rules = []classifierRule{
	{
		name:      "suicide",
		deathType: domain.DeathTypeSuicide,
		applies: func(r *domain.DeathRecord) bool {
			return r.KillerID == "" || r.KillerID == r.VictimID
		},
	},
	{
		name:      "environmental",
		deathType: domain.DeathTypeEnvironmental,
		applies: func(r *domain.DeathRecord) bool {
			return environmentalCauses[normalizeCause(r.Cause)]
		},
	},
	{
		name:      "vehicle",
		deathType: domain.DeathTypeVehicle,
		applies: func(r *domain.DeathRecord) bool {
			return vehicleCauses[normalizeCause(r.Cause)]
		},
	},
	{
		name:      "pvp",
		deathType: domain.DeathTypePlayerVsPlayer,
		applies: func(r *domain.DeathRecord) bool {
			return r.KillerID != "" && r.KillerID != r.VictimID && isWeaponCause(r.Cause)
		},
	},
}

// Classify assigns a death type to a parsed record.
func Classify(rec domain.DeathRecord) domain.ClassifiedEvent {
	for _, rule := range rules {
		if rule.applies(&rec) {
			return domain.ClassifiedEvent{DeathRecord: rec, DeathType: rule.deathType}
		}
	}
	return domain.ClassifiedEvent{DeathRecord: rec, DeathType: domain.DeathTypeUnknown}
}

func isWeaponCause(cause string) bool {
	c := normalizeCause(cause)
	if weaponCauses[c] {
		return true
	}
	// Modded servers prefix custom weapon classes.
	return strings.HasPrefix(c, "weapon_")
}

func normalizeCause(cause string) string {
	return strings.ToLower(strings.TrimSpace(cause))
}

func causeSet(codes ...string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}
