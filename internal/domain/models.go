package domain

import (
	"time"
)

// DeathType categorizes a classified death event.
type DeathType string

const (
	DeathTypePlayerVsPlayer DeathType = "pvp"
	DeathTypeSuicide        DeathType = "suicide"
	DeathTypeEnvironmental  DeathType = "environmental"
	DeathTypeVehicle        DeathType = "vehicle"
	DeathTypeUnknown        DeathType = "unknown"
)

// Server is one monitored game server. (CommunityID, ServerID) is the
// isolation key for every downstream entity.
type Server struct {
	CommunityID  string
	ServerID     string
	Name         string
	Host         string
	CredentialID string
	LogDirs      []string
	StatusURL    string
	Online       bool
	PlayerCount  int
	MaxPlayers   int
	LastSeenAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Cursor records how far into a remote file a server's poll has consumed.
// Offset only ever moves forward except on rotation reset.
type Cursor struct {
	CommunityID string
	ServerID    string
	FileID      string
	Offset      int64
	Fingerprint string
	AdvancedAt  time.Time
}

// DeathRecord is one parsed death-log line. Ephemeral; consumed by the
// classifier immediately and never stored.
type DeathRecord struct {
	Timestamp   time.Time
	KillerID    string
	KillerName  string
	VictimID    string
	VictimName  string
	Cause       string
	Distance    float64
	HasDistance bool
	Raw         string
}

// ServerRecord is a parsed non-death line (connects, chat, lifecycle).
type ServerRecord struct {
	Timestamp  time.Time
	Tag        string
	PlayerID   string
	PlayerName string
	Message    string
	Raw        string
}

// ClassifiedEvent is a DeathRecord with its death-type attached. These are
// the units the aggregator counts and the killfeed surfaces.
type ClassifiedEvent struct {
	DeathRecord
	DeathType DeathType
}

type Player struct {
	CommunityID  string
	PlayerID     string
	Name         string
	KillCount    int64
	DeathCount   int64
	CoinBalance  int64
	LastActiveAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Faction struct {
	CommunityID  string
	FactionID    string
	Name         string
	MemberIDs    []string
	TotalKills   int64
	TotalDeaths  int64
	TotalCoins   int64
	LastActiveAt time.Time
	SyncedAt     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transaction is an immutable economy ledger entry. The aggregator writes
// coin rewards here as a side effect of kill processing.
type Transaction struct {
	ID          string // uuid
	CommunityID string
	PlayerID    string
	Amount      int64
	Reason      string
	CreatedAt   time.Time
}
