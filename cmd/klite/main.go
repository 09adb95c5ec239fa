package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"klite/internal/config"
	"klite/internal/engine"
	"klite/internal/logging"
)

func main() {
	logging.InitFromEnv()

	path := os.Getenv("KLITE_CONFIG")
	if path == "" {
		path = "klite.yml"
	}
	cfg, err := config.LoadEngine(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Log != (config.LogCfg{}) {
		logging.Configure(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Bootstrap(cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		log.Fatalf("engine: %v", err)
	}
}
