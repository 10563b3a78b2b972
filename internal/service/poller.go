package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"killfeed-tracker/internal/constants"
	"killfeed-tracker/internal/domain"
	"killfeed-tracker/internal/feed"
	"killfeed-tracker/internal/ingest"
	"killfeed-tracker/internal/remote"
)

// PollResult summarizes one poll of one server.
type PollResult struct {
	Skipped       bool
	FilesPolled   int
	LinesParsed   int
	ParseFailures int
	EventsApplied int
}

// Poller drains new log bytes from every file of a server, parses and
// classifies them, and applies the resulting stat mutations. At most one
// poll runs per server at a time; an overlapping tick skips the server
// rather than queueing behind it.
//
// Ordering within a file is strict: the cursor only advances after every
// complete line before it has been applied. If persisting the advanced
// cursor fails even after a retry, the batch stays applied and is replayed
// next tick, so a persistence outage degrades to at-least-once counting
// rather than losing events.
type Poller struct {
	servers   ServerStore
	cursors   CursorStore
	source    remote.Source
	agg       *Aggregator
	notifier  feed.Notifier
	flight    *keyedFlight
	threshold int
	logger    zerolog.Logger

	mu       sync.Mutex
	failures map[string]int

	invocations atomic.Int64
	completed   atomic.Int64
}

func NewPoller(
	servers ServerStore,
	cursors CursorStore,
	source remote.Source,
	agg *Aggregator,
	notifier feed.Notifier,
	offlineThreshold int,
	logger zerolog.Logger,
) *Poller {
	return &Poller{
		servers:   servers,
		cursors:   cursors,
		source:    source,
		agg:       agg,
		notifier:  notifier,
		flight:    newKeyedFlight(),
		threshold: offlineThreshold,
		failures:  make(map[string]int),
		logger:    logger,
	}
}

// Poll processes all new log content for one server. Returns a skipped
// result without touching anything when a poll for the same server is
// already in flight.
func (p *Poller) Poll(ctx context.Context, srv *domain.Server) (*PollResult, error) {
	p.invocations.Add(1)

	key := srv.CommunityID + "/" + srv.ServerID
	if !p.flight.TryAcquire(key) {
		p.logger.Debug().
			Str("community_id", srv.CommunityID).
			Str("server_id", srv.ServerID).
			Msg("poll already in flight, skipping")
		return &PollResult{Skipped: true}, nil
	}
	defer p.flight.Release(key)
	defer p.completed.Add(1)

	res := &PollResult{}

	files, err := p.source.ListFiles(ctx, srv)
	if err != nil {
		p.recordTransportFailure(ctx, srv, err)
		return res, err
	}

	for _, f := range files {
		if err := p.pollFile(ctx, srv, f, res); err != nil {
			var te *remote.TransportError
			if errors.As(err, &te) {
				if te.Kind == remote.KindNotFound {
					p.logger.Warn().Err(err).
						Str("server_id", srv.ServerID).
						Str("file_id", f.ID).
						Msg("log file vanished between list and read")
					continue
				}
				p.recordTransportFailure(ctx, srv, err)
			}
			return res, err
		}
		res.FilesPolled++
	}

	p.clearTransportFailures(srv)
	if err := p.servers.SetOnline(ctx, srv.CommunityID, srv.ServerID, true); err != nil {
		p.logger.Warn().Err(err).
			Str("server_id", srv.ServerID).
			Msg("failed to mark server online")
	}
	return res, nil
}

func (p *Poller) pollFile(ctx context.Context, srv *domain.Server, f remote.FileInfo, res *PollResult) error {
	cur, err := p.cursors.Get(ctx, srv.CommunityID, srv.ServerID, f.ID)
	if err != nil {
		return fmt.Errorf("load cursor for %s: %w", f.ID, err)
	}
	if cur == nil {
		cur = &domain.Cursor{
			CommunityID: srv.CommunityID,
			ServerID:    srv.ServerID,
			FileID:      f.ID,
		}
	}

	// A file shorter than our offset has been rotated or truncated; start
	// over from the beginning.
	if f.Size < cur.Offset {
		p.logger.Info().
			Str("server_id", srv.ServerID).
			Str("file_id", f.ID).
			Int64("size", f.Size).
			Int64("offset", cur.Offset).
			Msg("remote file shrank, resetting cursor")
		if err := p.cursors.Reset(ctx, srv.CommunityID, srv.ServerID, f.ID); err != nil {
			return fmt.Errorf("reset cursor for %s: %w", f.ID, err)
		}
		cur.Offset = 0
		cur.Fingerprint = ""
	} else if cur.Offset > 0 && cur.Fingerprint != "" {
		p.verifyFingerprint(ctx, srv, f.ID, cur)
	}

	if f.Size == cur.Offset {
		return nil
	}

	rc, err := p.source.ReadFrom(ctx, srv, f.ID, cur.Offset)
	if err != nil {
		return err
	}
	chunk, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return &remote.TransportError{Kind: remote.KindUnreachable, Op: "read " + f.ID, Err: err}
	}

	lines, remainder := ingest.SplitLines(nil, chunk)
	consumed := ingest.Consumed(int64(len(chunk)), remainder)
	if consumed == 0 {
		// Only a partial line arrived; re-read it once it completes.
		return nil
	}

	for _, line := range lines {
		if line == "" {
			continue
		}
		res.LinesParsed++

		rec, err := ingest.ParseLine(line)
		if err != nil {
			var pe *ingest.ParseError
			if errors.As(err, &pe) {
				res.ParseFailures++
				p.logger.Debug().
					Str("server_id", srv.ServerID).
					Str("reason", pe.Reason).
					Msg("skipping malformed log line")
				continue
			}
			return err
		}

		switch rec.Kind {
		case ingest.RecordDeath:
			ev := ingest.Classify(rec.Death)
			if err := p.agg.Apply(ctx, srv.CommunityID, srv.ServerID, ev); err != nil {
				// Leave the cursor where it is; the whole batch replays
				// next tick.
				return fmt.Errorf("apply event from %s: %w", f.ID, err)
			}
			res.EventsApplied++
			p.notifier.Publish(ctx, srv.CommunityID, srv.ServerID, ev)
		case ingest.RecordServer:
			if err := p.agg.ApplyActivity(ctx, srv.CommunityID, &rec.Server); err != nil {
				return fmt.Errorf("apply activity from %s: %w", f.ID, err)
			}
		}
	}

	cur.Offset += consumed
	cur.Fingerprint = fingerprintTail(chunk[:consumed])
	return p.advanceCursor(ctx, cur)
}

// advanceCursor persists the new offset, retrying once. A final failure is
// logged and swallowed: the applied batch will be re-read and re-counted
// next tick, which is the accepted trade against losing it.
func (p *Poller) advanceCursor(ctx context.Context, cur *domain.Cursor) error {
	backoff := retry.WithMaxRetries(constants.CursorAdvanceAttempts-1,
		retry.NewConstant(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.RetryableError(p.cursors.Advance(ctx, cur))
	})
	if err != nil {
		p.logger.Error().Err(err).
			Str("server_id", cur.ServerID).
			Str("file_id", cur.FileID).
			Int64("offset", cur.Offset).
			Msg("cursor advance failed, batch will replay")
	}
	return nil
}

// verifyFingerprint re-reads the window of bytes just before the cursor and
// compares digests. A mismatch on a file that has not shrunk is logged and
// the offset trusted; resetting would double-count everything before it.
func (p *Poller) verifyFingerprint(ctx context.Context, srv *domain.Server, fileID string, cur *domain.Cursor) {
	window := int64(constants.FingerprintWindow)
	if cur.Offset < window {
		window = cur.Offset
	}

	rc, err := p.source.ReadFrom(ctx, srv, fileID, cur.Offset-window)
	if err != nil {
		p.logger.Debug().Err(err).
			Str("server_id", srv.ServerID).
			Str("file_id", fileID).
			Msg("fingerprint window read failed")
		return
	}
	defer rc.Close()

	buf := make([]byte, window)
	if _, err := io.ReadFull(rc, buf); err != nil {
		p.logger.Debug().Err(err).
			Str("server_id", srv.ServerID).
			Str("file_id", fileID).
			Msg("fingerprint window short read")
		return
	}

	if got := fingerprintTail(buf); got != cur.Fingerprint {
		p.logger.Warn().
			Str("server_id", srv.ServerID).
			Str("file_id", fileID).
			Int64("offset", cur.Offset).
			Msg("fingerprint mismatch at stable size, trusting offset")
	}
}

// ReprocessServer clears every cursor for the server and polls it again
// from offset zero.
func (p *Poller) ReprocessServer(ctx context.Context, communityID, serverID string) (*PollResult, error) {
	srv, err := p.servers.Get(ctx, communityID, serverID)
	if err != nil {
		return nil, err
	}
	if srv == nil {
		return nil, fmt.Errorf("server %s/%s not found", communityID, serverID)
	}

	n, err := p.cursors.ResetForServer(ctx, communityID, serverID)
	if err != nil {
		return nil, fmt.Errorf("reset cursors: %w", err)
	}
	p.logger.Info().
		Str("community_id", communityID).
		Str("server_id", serverID).
		Int64("cursors_reset", n).
		Msg("reprocessing server from scratch")

	return p.Poll(ctx, srv)
}

func (p *Poller) recordTransportFailure(ctx context.Context, srv *domain.Server, err error) {
	key := srv.CommunityID + "/" + srv.ServerID

	p.mu.Lock()
	p.failures[key]++
	count := p.failures[key]
	p.mu.Unlock()

	p.logger.Warn().Err(err).
		Str("community_id", srv.CommunityID).
		Str("server_id", srv.ServerID).
		Str("kind", remote.KindOf(err).String()).
		Int("consecutive_failures", count).
		Msg("server poll failed")

	if count == p.threshold {
		if err := p.servers.SetOnline(ctx, srv.CommunityID, srv.ServerID, false); err != nil {
			p.logger.Error().Err(err).
				Str("server_id", srv.ServerID).
				Msg("failed to mark server offline")
		} else {
			p.logger.Info().
				Str("community_id", srv.CommunityID).
				Str("server_id", srv.ServerID).
				Msg("server marked offline")
		}
	}
}

func (p *Poller) clearTransportFailures(srv *domain.Server) {
	key := srv.CommunityID + "/" + srv.ServerID

	p.mu.Lock()
	delete(p.failures, key)
	p.mu.Unlock()
}

// Invocations and Completed expose tick accounting for diagnostics.
func (p *Poller) Invocations() int64 { return p.invocations.Load() }
func (p *Poller) Completed() int64   { return p.completed.Load() }

// fingerprintTail digests the final window of consumed bytes. It is what
// the rotation check compares on the next poll.
func fingerprintTail(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	w := constants.FingerprintWindow
	if len(data) < w {
		w = len(data)
	}
	sum := sha256.Sum256(data[len(data)-w:])
	return hex.EncodeToString(sum[:16])
}
