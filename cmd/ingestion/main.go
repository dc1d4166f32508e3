package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"marketwatch/config"
	"marketwatch/internal/ingestion"
	"marketwatch/internal/logging"
	"marketwatch/internal/polymarketapi"
	"marketwatch/internal/polymarketevents"
	"marketwatch/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.IsProd)
	defer logger.Sync()

	s, err := store.Open(cfg.Database.DSN)
	if err != nil {
		logger.Fatal("open store failed", zap.Error(err))
	}
	defer s.Close()

	api := polymarketapi.New(cfg.Polymarket.MarketsURL, cfg.Polymarket.TradesURL, cfg.Polymarket.UserAgent, cfg.Polymarket.ClientTimeout)
	events := polymarketevents.New(logger, cfg.Polymarket.EventsWSURL)

	worker := ingestion.NewWorker(logger, s.DB(), api, events, cfg.Ingestion, cfg.Backoff)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Ingestion.UseEventsFeed {
		go worker.RunEventsFeed(ctx)
	}

	logger.Info("ingestion worker starting", zap.Bool("is_prod", cfg.IsProd))
	worker.Run(ctx)
	logger.Info("ingestion worker stopped")
}
