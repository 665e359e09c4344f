package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/client"
	"github.com/billslocker/backend/internal/config"
	"github.com/billslocker/backend/internal/handlers"
	"github.com/billslocker/backend/internal/logging"
	"github.com/billslocker/backend/internal/services"
	"github.com/billslocker/backend/internal/web"
)

func main() {
	envFile := flag.String("env", "", "path to a .env file (default ./.env when present)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	items, err := services.OpenItemStore(ctx, services.StoreOptions{
		Driver:        cfg.StoreDriver,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
		SQLitePath:    cfg.SQLitePath,
		DataDir:       cfg.DataDir,
	}, logger)
	if err != nil {
		logger.Fatal("failed to open item store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}

	receipts, err := services.NewReceiptService(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		logger.Fatal("failed to prepare upload dir", zap.Error(err))
	}

	routerCfg := handlers.RouterConfig{
		Items:          items,
		Receipts:       receipts,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins(),
	}

	if cfg.UIEnabled {
		api, err := client.New(client.Config{BaseURL: cfg.APIBaseURL, UserAgent: "billslocker-web"})
		if err != nil {
			logger.Fatal("failed to build api client", zap.Error(err))
		}
		ui, err := web.NewHandler(web.Options{Client: api, Logger: logger.Named("web")})
		if err != nil {
			logger.Fatal("failed to load web templates", zap.Error(err))
		}
		routerCfg.UI = ui
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handlers.NewRouter(routerCfg),
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
	}

	go func() {
		logger.Info("Warranty & Bills Locker API server starting",
			zap.String("addr", cfg.ServerAddress),
			zap.String("store", cfg.StoreDriver),
			zap.String("uploads", cfg.UploadDir),
			zap.Bool("ui", cfg.UIEnabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := items.Close(shutdownCtx); err != nil {
		logger.Error("closing item store failed", zap.Error(err))
	}
}
