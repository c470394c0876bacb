package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-bookstore-ledger/internal/auth"
	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/commerce"
	"github.com/ariefcatur/go-bookstore-ledger/internal/config"
	"github.com/ariefcatur/go-bookstore-ledger/internal/httpx"
	kafkax "github.com/ariefcatur/go-bookstore-ledger/internal/kafka"
	"github.com/ariefcatur/go-bookstore-ledger/internal/logger"
	"github.com/ariefcatur/go-bookstore-ledger/internal/memstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/postgres"
	"github.com/ariefcatur/go-bookstore-ledger/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithService(cfg.ServiceName)
	if err := cfg.Validate(true); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := commerce.DefaultOptions()
	opts.OperationTimeout = cfg.OperationTimeout
	opts.ReserveCapitalOnCreate = cfg.ReserveCapitalOnCreate
	opts.DefaultMarginPercent = cfg.DefaultMarginPercent
	opts.ServiceName = cfg.ServiceName

	var (
		svc  *commerce.Service
		prod *kafkax.Producer
	)
	switch cfg.Storage {
	case "memory":
		log.Warn("using in-memory storage; data is lost on exit, cache and events disabled")
		svc = commerce.New(memstore.New(), nil, nil, opts)
	default:
		// DB
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
		if err != nil {
			log.Error("db connect", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("db migrate", "error", err)
			os.Exit(1)
		}

		// Redis
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()

		// Kafka producer
		prod = kafkax.NewProducer(cfg.KafkaBrokers, bookstore.TopicLedger, 1024, logger.WithService("producer"))
		prod.Start(ctx)

		svc = commerce.New(postgres.NewRepo(db), redisx.NewCache(rdb, logger.WithService("cache")), prod, opts)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	router := httpx.NewRouter(svc, tokens, logger.WithService("http"))

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if prod != nil {
		prod.Close() // flush queued events, then close the writer
		prod.WaitClosed()
	}
}
