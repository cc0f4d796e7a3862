package main

import (
	"context"
	"log"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"consentledger/internal/config"
	"consentledger/internal/infra/db"
	httpinfra "consentledger/internal/infra/http"
)

func main() {
	cfg := config.FromEnv()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	store, err := db.NewStore(cfg)
	if err != nil {
		logger.Fatal("failed to init store", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	migrationHead, err := store.MigrationHead(ctx)
	cancel()
	if err != nil {
		logger.Fatal("failed to read migration head", zap.Error(err))
	}

	if blockers := config.StartupBlockers(cfg, migrationHead); len(blockers) > 0 {
		for _, reason := range blockers {
			logger.Error("startup blocked", zap.String("reason", reason))
		}
		logger.Fatal("refusing to serve", zap.Int("blockers", len(blockers)))
	}

	if cfg.SigningMode == config.SigningModeDisabled {
		logger.Warn("signing explicitly disabled, exports will be unsigned")
	}

	srv, err := httpinfra.NewServer(cfg, logger, store)
	if err != nil {
		logger.Fatal("failed to init server", zap.Error(err))
	}
	logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
	if err := srv.Run(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
