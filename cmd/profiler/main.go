package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"marketwatch/config"
	"marketwatch/internal/logging"
	"marketwatch/internal/profiler"
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

	worker := profiler.NewWorker(logger, s.DB(), cfg.Profiler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("accuracy profiler starting", zap.Bool("is_prod", cfg.IsProd))
	worker.Run(ctx)
	logger.Info("accuracy profiler stopped")
}
