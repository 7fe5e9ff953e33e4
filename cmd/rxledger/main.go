package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rxledger/rxledger/internal/app"
	"github.com/rxledger/rxledger/internal/catalog"
	"github.com/rxledger/rxledger/internal/dispensing"
	"github.com/rxledger/rxledger/internal/ledger"
	"github.com/rxledger/rxledger/internal/observability"
	"github.com/rxledger/rxledger/internal/platform/cache"
	"github.com/rxledger/rxledger/internal/platform/db"
	"github.com/rxledger/rxledger/internal/quality"
	"github.com/rxledger/rxledger/internal/receiving"
	"github.com/rxledger/rxledger/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The engine degrades to repository reads without the level cache.
		logger.Warn("redis unavailable, level cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	audit := shared.NewAuditLogger(pool)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)

	levelCache := catalog.NewLevelCache(redisClient, cfg.LevelCacheTTL, logger)
	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, levelCache, ledgerRepo)

	dispensingRepo := dispensing.NewRepository(pool)
	dispensingService := dispensing.NewService(catalogService, ledgerService, dispensingRepo, audit, metrics, dispensing.ServiceConfig{
		MaxRetries: cfg.DispenseMaxRetries,
	})

	receivingService := receiving.NewService(catalogService, ledgerService, audit)
	qualityService := quality.NewService(ledgerService, audit)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		CatalogHandler:    catalog.NewHandler(logger, catalogService),
		LedgerHandler:     ledger.NewHandler(logger, ledgerService),
		ReceivingHandler:  receiving.NewHandler(logger, receivingService),
		QualityHandler:    quality.NewHandler(logger, qualityService),
		DispensingHandler: dispensing.NewHandler(logger, dispensingService),
		Pool:              pool,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
