package feed

import (
	"context"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"killfeed-tracker/internal/constants"
	"killfeed-tracker/internal/domain"
)

// Event is the stable shape handed to presentation layers. Field names are
// part of the outward contract.
type Event struct {
	ID          string           `json:"id"`
	CommunityID string           `json:"community_id"`
	ServerID    string           `json:"server_id"`
	Timestamp   time.Time        `json:"timestamp"`
	Killer      string           `json:"killer"`
	Victim      string           `json:"victim"`
	Weapon      string           `json:"weapon"`
	DeathType   domain.DeathType `json:"deathType"`
	Distance    float64          `json:"distance,omitempty"`
}

// Notifier receives classified events for outward delivery. The pipeline's
// obligation ends at Publish; formatting and transport belong to the
// presentation layer.
type Notifier interface {
	Publish(ctx context.Context, communityID, serverID string, ev domain.ClassifiedEvent)
}

// Bus is a buffered in-process Notifier that presentation consumers drain.
// Unknown deaths are counted toward stats but never surface on the feed.
type Bus struct {
	out     chan Event
	dropped atomic.Int64
	logger  zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		out:    make(chan Event, constants.FeedBufferSize),
		logger: logger,
	}
}

// Events returns the consumer side of the feed.
func (b *Bus) Events() <-chan Event {
	return b.out
}

func (b *Bus) Publish(ctx context.Context, communityID, serverID string, ev domain.ClassifiedEvent) {
	if ev.DeathType == domain.DeathTypeUnknown {
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to generate feed event id")
		return
	}

	e := Event{
		ID:          id,
		CommunityID: communityID,
		ServerID:    serverID,
		Timestamp:   ev.Timestamp,
		Killer:      ev.KillerName,
		Victim:      ev.VictimName,
		Weapon:      ev.Cause,
		DeathType:   ev.DeathType,
	}
	if ev.HasDistance {
		e.Distance = ev.Distance
	}

	select {
	case b.out <- e:
	default:
		// Slow consumer; the feed is best-effort, stats are not.
		b.dropped.Add(1)
		b.logger.Warn().
			Str("community_id", communityID).
			Str("server_id", serverID).
			Msg("feed buffer full, event dropped")
	}
}
