package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/backend"
	"github.com/Dajungeks/yumold-erp-system-sub000/internal/config"
	httpserver "github.com/Dajungeks/yumold-erp-system-sub000/internal/interfaces/http"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/utils"
)

func main() {
	// Load .env before configuration so DATABASE_URL set there takes part
	// in backend selection.
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ERP storage core",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	embedded, err := database.OpenEmbedded(database.EmbeddedConfig{
		Path: cfg.Database.Path,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open embedded database", zap.Error(err))
	}
	defer embedded.Close()

	var server *database.Server
	if cfg.Database.URL != "" {
		server, err = database.OpenServer(database.ServerConfig{
			DSN:                  cfg.Database.URL,
			MinConns:             cfg.Database.PoolMinConns,
			MaxConns:             cfg.Database.PoolMaxConns,
			AcquireTimeout:       cfg.Database.AcquireTimeout,
			ConnectTimeout:       cfg.Database.ConnectTimeout,
			HealthCheckThreshold: cfg.Database.HealthCheckThreshold,
			ResultCacheTTL:       cfg.Database.ResultCacheTTL,
			ResultCacheCap:       cfg.Database.ResultCacheCap,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to open server database", zap.Error(err))
		}
		defer server.Close()
	}

	selector := backend.New(embedded, server, logger)

	srv := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, selector, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
