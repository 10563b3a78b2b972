package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"killfeed-tracker/internal/config"
	"killfeed-tracker/internal/constants"
	"killfeed-tracker/internal/domain"
)

// Scheduler drives the two polling cadences: the fast killfeed tick and
// the slower server-stats tick. Each sweep fans out over the registered
// servers through a bounded worker pool; a server whose previous poll is
// still running is skipped by the poller, never queued.
type Scheduler struct {
	servers ServerStore
	poller  *Poller
	stats   *StatsService
	cfg     *config.Config
	logger  zerolog.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

func NewScheduler(
	servers ServerStore,
	poller *Poller,
	stats *StatsService,
	cfg *config.Config,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		servers: servers,
		poller:  poller,
		stats:   stats,
		cfg:     cfg,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.killfeedLoop()
	go s.statsLoop()
	s.logger.Info().
		Dur("killfeed_interval", s.cfg.KillfeedInterval).
		Dur("stats_interval", s.cfg.ServerStatsInterval).
		Int("workers", s.cfg.WorkerPoolSize).
		Msg("scheduler started")
}

func (s *Scheduler) Stop() {
	close(s.done)
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) killfeedLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.KillfeedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep("killfeed", func(ctx context.Context, srv *domain.Server) error {
				_, err := s.poller.Poll(ctx, srv)
				return err
			})
		}
	}
}

func (s *Scheduler) statsLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ServerStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep("server_stats", s.stats.Refresh)
		}
	}
}

// sweep runs fn for every registered server with bounded concurrency.
// Individual failures are logged by the services; the sweep itself never
// aborts early.
func (s *Scheduler) sweep(name string, fn func(ctx context.Context, srv *domain.Server) error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.PollTimeout)
	defer cancel()

	servers, err := s.servers.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("sweep", name).Msg("failed to list servers")
		return
	}
	if len(servers) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WorkerPoolSize)

	var failures int
	var mu sync.Mutex
	for i := range servers {
		srv := &servers[i]
		g.Go(func() error {
			if err := fn(gctx, srv); err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if failures > 0 {
		s.logger.Warn().
			Str("sweep", name).
			Int("servers", len(servers)).
			Int("failures", failures).
			Msg("sweep finished with failures")
	}
}
