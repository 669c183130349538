package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tybug/snitchvisbot/internal/config"
	"github.com/tybug/snitchvisbot/internal/handler"
	"github.com/tybug/snitchvisbot/internal/indexer"
	"github.com/tybug/snitchvisbot/internal/logger"
	"github.com/tybug/snitchvisbot/internal/macro"
	"github.com/tybug/snitchvisbot/internal/platform"
	"github.com/tybug/snitchvisbot/internal/render"
	"github.com/tybug/snitchvisbot/internal/repository/sqlite"
	"github.com/tybug/snitchvisbot/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting snitchd",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort))

	ctx := context.Background()

	client, err := sqlite.NewClient(ctx, &cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}

	repo := sqlite.NewRepository(client, log)
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Failed to close repository", zap.Error(err))
		}
	}()

	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}
	log.Info("Database schema initialized")

	chat := platform.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, cfg.Gateway.Timeout, log)
	renderer := render.NewHTTPRenderer(cfg.Renderer.BaseURL, cfg.Renderer.Timeout, log)

	idx := indexer.New(repo, chat, cfg.Indexer, log)
	macros := macro.NewEngine(repo, log)
	svc := service.New(repo, chat, macros, renderer, cfg.Query, log)

	h := handler.NewHandler(svc, macros, idx, repo, log)

	addr := ":" + cfg.Service.APIPort
	server := &http.Server{Addr: addr, Handler: h}

	go func() {
		log.Info("API server starting", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down gracefully")
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Failed to shut down API server", zap.Error(err))
	}
}
