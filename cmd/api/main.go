package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/app"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/config"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Error("failed to init app", zap.Error(err))
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		lg.Error("application stopped", zap.Error(err))
		os.Exit(1)
	}
}
