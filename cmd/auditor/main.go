package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-bookstore-ledger/internal/audit"
	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/config"
	kafkax "github.com/ariefcatur/go-bookstore-ledger/internal/kafka"
	"github.com/ariefcatur/go-bookstore-ledger/internal/logger"
	"github.com/ariefcatur/go-bookstore-ledger/internal/postgres"
	"github.com/ariefcatur/go-bookstore-ledger/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithService(cfg.ServiceName + "-auditor")
	if err := cfg.Validate(false); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.Storage != "postgres" {
		log.Error("auditor needs postgres storage", "storage", cfg.Storage)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		log.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &audit.Service{
		Store:       postgres.NewRepo(db),
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-auditor",
		Log:         log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, bookstore.TopicLedger, cfg.AuditWorkers, logger.WithService("consumer"))
	log.Info("auditor started", "group", cfg.AuditGroup, "topic", bookstore.TopicLedger, "workers", cfg.AuditWorkers)
	if err := cons.Start(ctx, svc.HandleEvent); err != nil && ctx.Err() == nil {
		log.Error("consumer exit", "error", err)
		os.Exit(1)
	}
	log.Info("auditor stopped")
}
