package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"killfeed-tracker/internal/domain"
)

// Log lines use a fixed semicolon-delimited layout:
//
//	<timestamp>;<TAG>;<fields...>
//
// DEATH:      killerID;killerName;victimID;victimName;cause[;distance[;...]]
// CONNECT:    playerID;playerName
// DISCONNECT: playerID;playerName
// CHAT:       playerID;playerName;message
// SERVER:     message
//
// Extra trailing fields are tolerated for forward compatibility; missing
// mandatory fields or a malformed timestamp produce a ParseError.

const fieldDelimiter = ";"

const (
	TagDeath      = "DEATH"
	TagConnect    = "CONNECT"
	TagDisconnect = "DISCONNECT"
	TagChat       = "CHAT"
	TagServer     = "SERVER"
)

// ParseError marks one unparseable line. It is counted and skipped, never
// fatal to the batch.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Line, e.Reason)
}

// RecordKind discriminates the two record families a line can produce.
type RecordKind int

const (
	RecordDeath RecordKind = iota
	RecordServer
)

// Record is one fully parsed log line.
type Record struct {
	Kind   RecordKind
	Death  domain.DeathRecord
	Server domain.ServerRecord
}

// ParseLine parses a single complete log line.
func ParseLine(line string) (*Record, error) {
	fields := strings.Split(line, fieldDelimiter)
	if len(fields) < 2 {
		return nil, &ParseError{Line: line, Reason: "missing event tag"}
	}

	ts, err := parseTimestamp(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, &ParseError{Line: line, Reason: "malformed timestamp"}
	}

	tag := strings.ToUpper(strings.TrimSpace(fields[1]))
	rest := fields[2:]

	switch tag {
	case TagDeath:
		return parseDeath(line, ts, rest)
	case TagConnect, TagDisconnect:
		if len(rest) < 2 {
			return nil, &ParseError{Line: line, Reason: "missing player fields"}
		}
		return &Record{
			Kind: RecordServer,
			Server: domain.ServerRecord{
				Timestamp:  ts,
				Tag:        tag,
				PlayerID:   strings.TrimSpace(rest[0]),
				PlayerName: strings.TrimSpace(rest[1]),
				Raw:        line,
			},
		}, nil
	case TagChat:
		if len(rest) < 3 {
			return nil, &ParseError{Line: line, Reason: "missing chat fields"}
		}
		return &Record{
			Kind: RecordServer,
			Server: domain.ServerRecord{
				Timestamp:  ts,
				Tag:        tag,
				PlayerID:   strings.TrimSpace(rest[0]),
				PlayerName: strings.TrimSpace(rest[1]),
				Message:    rest[2],
				Raw:        line,
			},
		}, nil
	case TagServer:
		if len(rest) < 1 {
			return nil, &ParseError{Line: line, Reason: "missing server message"}
		}
		return &Record{
			Kind: RecordServer,
			Server: domain.ServerRecord{
				Timestamp: ts,
				Tag:       tag,
				Message:   rest[0],
				Raw:       line,
			},
		}, nil
	default:
		return nil, &ParseError{Line: line, Reason: fmt.Sprintf("unknown event tag %q", tag)}
	}
}

func parseDeath(line string, ts time.Time, rest []string) (*Record, error) {
	if len(rest) < 5 {
		return nil, &ParseError{Line: line, Reason: "missing death fields"}
	}

	rec := domain.DeathRecord{
		Timestamp:  ts,
		KillerID:   strings.TrimSpace(rest[0]),
		KillerName: strings.TrimSpace(rest[1]),
		VictimID:   strings.TrimSpace(rest[2]),
		VictimName: strings.TrimSpace(rest[3]),
		Cause:      strings.TrimSpace(rest[4]),
		Raw:        line,
	}

	if rec.VictimID == "" || rec.VictimName == "" {
		return nil, &ParseError{Line: line, Reason: "missing victim"}
	}
	if rec.Cause == "" {
		return nil, &ParseError{Line: line, Reason: "missing cause"}
	}

	// Distance is optional; further trailing fields are ignored.
	if len(rest) >= 6 {
		if d, err := strconv.ParseFloat(strings.TrimSpace(rest[5]), 64); err == nil {
			rec.Distance = d
			rec.HasDistance = true
		}
	}

	return &Record{Kind: RecordDeath, Death: rec}, nil
}

// parseTimestamp accepts RFC3339 and the zoneless variant some game servers
// emit.
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}
