package main

import (
	"flag"
	"log"
	"os"

	"ZigmaPulse/internal/di"
	"ZigmaPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path (.yaml or .toml)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s sources=%v ingest=%s history=%s",
		cfg.Environment, cfg.SourceNames(), cfg.Ingest.Backend, cfg.History.Driver)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run blocks until SIGINT or SIGTERM
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
