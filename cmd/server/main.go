package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nrow/internal/analytics"
	"nrow/internal/config"
	"nrow/internal/game"
	"nrow/internal/server"
	"nrow/internal/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg)

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

// run serves until a signal or a fatal error. Deferred closes flush the
// store and the event writer before main exits.
func run(cfg config.Config) error {
	if _, err := game.LookupRegime(cfg.DefaultRegime); err != nil {
		return fmt.Errorf("DEFAULT_REGIME: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Store = storage.NewMemoryStore(game.BotName)
	if cfg.PostgresURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.PostgresURL, game.BotName)
		if err != nil {
			log.Warn().Err(err).Msg("postgres disabled, keeping results in memory")
		} else {
			defer pg.Close()
			if err := pg.EnsureTables(ctx); err != nil {
				log.Warn().Err(err).Msg("postgres ensure tables failed")
			}
			store = pg
		}
	}

	producer := analytics.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	if producer == nil {
		log.Info().Msg("KAFKA_BROKERS not set, analytics disabled")
	}

	srv := server.New(server.Config{
		IdleWindow:    cfg.IdleWindow,
		Store:         store,
		Analytics:     producer,
		FrontendDir:   cfg.FrontendDir,
		DefaultRegime: cfg.DefaultRegime,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("regime", cfg.DefaultRegime).Msg("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.Sweep(gctx, cfg.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
