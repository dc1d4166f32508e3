package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"marketwatch/config"
	"marketwatch/internal/logging"
	"marketwatch/internal/notifier"
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

	n := notifier.New(logger, cfg.Notifier.DiscordBotToken, cfg.Notifier.DiscordChannelID)
	defer n.Close()

	worker := notifier.NewWorker(logger, s.DB(), n, notifier.Config{
		AlertLimit:   cfg.Notifier.AlertLimit,
		ReasonsLimit: cfg.Notifier.ReasonsLimit,
		WalletsLimit: cfg.Notifier.WalletsLimit,
		IdleSleep:    cfg.Notifier.IdleSleep,
		BackoffBase:  cfg.Backoff.Base,
		BackoffMax:   cfg.Backoff.Max,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("notifier dispatch starting", zap.Bool("is_prod", cfg.IsProd))
	worker.Run(ctx)
	logger.Info("notifier dispatch stopped")
}
