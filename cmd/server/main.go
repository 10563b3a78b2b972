package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"killfeed-tracker/internal/config"
	"killfeed-tracker/internal/constants"
	"killfeed-tracker/internal/feed"
	fxmodules "killfeed-tracker/internal/fx"
	"killfeed-tracker/internal/middleware"
	"killfeed-tracker/internal/repository"
	"killfeed-tracker/internal/server"
	"killfeed-tracker/internal/service"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runPipeline),
		fx.Invoke(runAdminServer),
	).Run()
}

func runPipeline(
	lc fx.Lifecycle,
	scheduler *service.Scheduler,
	factionSync *service.FactionSync,
	bus *feed.Bus,
	cursors *repository.CursorRepository,
	db *sql.DB,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if n, err := cursors.PruneOrphans(ctx); err != nil {
				logger.Warn().Err(err).Msg("cursor pruning failed")
			} else if n > 0 {
				logger.Info().Int64("pruned", n).Msg("orphaned cursors removed")
			}

			go drainFeed(bus, logger)
			factionSync.Start()
			scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			factionSync.Stop()
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
}

// drainFeed is the default feed consumer: it logs each published event.
// Chat-platform presenters replace this by ranging over bus.Events()
// themselves.
func drainFeed(bus *feed.Bus, logger zerolog.Logger) {
	for ev := range bus.Events() {
		logger.Info().
			Str("community_id", ev.CommunityID).
			Str("server_id", ev.ServerID).
			Str("killer", ev.Killer).
			Str("victim", ev.Victim).
			Str("weapon", ev.Weapon).
			Str("death_type", string(ev.DeathType)).
			Msg("killfeed event")
	}
}

func runAdminServer(
	lc fx.Lifecycle,
	admin *server.AdminServer,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()
	admin.Register(mux)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	requestIDMiddleware := middleware.RequestID(logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.AdminPort),
		Handler: requestIDMiddleware(c.Handler(mux)),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("admin server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("admin server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down admin server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("admin server shutdown failed")
				return err
			}
			logger.Info().Msg("admin server stopped gracefully")
			return nil
		},
	})
}
