package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Riley94/multi-cloud-manager/internal/api"
	"github.com/Riley94/multi-cloud-manager/internal/cloud/registry"
	"github.com/Riley94/multi-cloud-manager/internal/config"
	"github.com/Riley94/multi-cloud-manager/internal/db"
	"github.com/Riley94/multi-cloud-manager/internal/logging"
	"github.com/Riley94/multi-cloud-manager/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Env)

	if err := db.Init(cfg, logger); err != nil {
		logger.Fatal("failed to init db", "error", err)
	}

	cc, err := config.LoadCloud(cfg.CloudConfigPath)
	if err != nil {
		logger.Fatal("failed to load cloud config", "error", err, "path", cfg.CloudConfigPath)
	}
	cfg.Cloud = cc

	dispatcher := registry.Dispatcher(context.Background(), cc, logger)
	r := api.Router(cfg, dispatcher, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.HttpPort,
		Handler:           middleware.Recoverer(r, logger),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0, // cloud API calls can be slow; rely on per-request contexts
		WriteTimeout:      0,
		MaxHeaderBytes:    1 << 20, // 1MB headers
	}
	logger.Info("server starting", "addr", srv.Addr, "providers", len(dispatcher.Providers()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}
