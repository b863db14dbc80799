package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nrow/internal/analytics"
	"nrow/internal/config"
	"nrow/internal/game"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

const summaryEvery = 30 * time.Second

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg)

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("consumer stopped")
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	brokers := cfg.KafkaBrokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroup,
	})
	defer reader.Close()

	log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Str("group", cfg.KafkaGroup).
		Msg("analytics consumer listening")

	agg := analytics.NewAggregator(game.BotName)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(summaryEvery)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				logSummary(agg.Summary())
				return nil
			case <-ticker.C:
				logSummary(agg.Summary())
			}
		}
	})
	g.Go(func() error {
		for {
			msg, err := reader.ReadMessage(gctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			e, err := analytics.Decode(msg.Value)
			if err != nil {
				log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping malformed event")
				continue
			}
			agg.Record(e)
			log.Debug().Str("event", e.Event).Interface("gameId", e.Payload["gameId"]).
				Interface("winner", e.Payload["winner"]).Msg("event")
		}
	})

	return g.Wait()
}

func logSummary(s analytics.Summary) {
	log.Info().
		Int("totalGames", s.TotalGames).
		Int("movesPlayed", s.MovesPlayed).
		Float64("averageDuration", s.AverageDuration).
		Float64("averageNodes", s.AverageNodes).
		Interface("regimes", s.Regimes).
		Interface("policies", s.Policies).
		Interface("gamesPerDay", s.GamesPerDay).
		Interface("userGames", s.UserGames).
		Interface("userWins", s.UserWins).
		Msg("analytics summary")
}
